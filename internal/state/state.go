package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const stateDir = ".wfpath"
const stateFile = "state.json"

// maxHistory bounds the number of remembered selections.
const maxHistory = 20

// Selection is the persisted CLI selection for one task feed.
type Selection struct {
	Feed       string     `json:"feed"`
	TaskID     string     `json:"task_id,omitempty"`
	SelectedAt *time.Time `json:"selected_at,omitempty"`
	History    []Entry    `json:"history,omitempty"` // most recent last

	mu   sync.Mutex
	path string
}

// Entry is one past selection.
type Entry struct {
	TaskID string    `json:"task_id"`
	At     time.Time `json:"at"`
}

// New creates an empty selection for feed and persists it.
func New(feed string) (*Selection, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &Selection{
		Feed: feed,
		path: filepath.Join(stateDir, stateFile),
	}
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads existing state from disk.
func Load() (*Selection, error) {
	path := filepath.Join(stateDir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s Selection
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = path
	return &s, nil
}

// LoadOrNew loads the stored selection if it belongs to feed, and starts a
// fresh one otherwise.
func LoadOrNew(feed string) (*Selection, error) {
	if Exists() {
		s, err := Load()
		if err == nil && s.Feed == feed {
			return s, nil
		}
	}
	return New(feed)
}

// Exists checks if a state file exists.
func Exists() bool {
	_, err := os.Stat(filepath.Join(stateDir, stateFile))
	return err == nil
}

// Save persists the current state to disk.
func (s *Selection) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// Select records taskID as the current selection and saves.
func (s *Selection) Select(taskID string) error {
	now := time.Now()
	s.mu.Lock()
	s.TaskID = taskID
	s.SelectedAt = &now
	s.History = append(s.History, Entry{TaskID: taskID, At: now})
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
	s.mu.Unlock()
	return s.Save()
}

// Clear removes the current selection and saves. History is kept.
func (s *Selection) Clear() error {
	s.mu.Lock()
	s.TaskID = ""
	s.SelectedAt = nil
	s.mu.Unlock()
	return s.Save()
}

// Current returns the selected task id, "" if none.
func (s *Selection) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TaskID
}

// Clean removes the state directory.
func Clean() error {
	return os.RemoveAll(stateDir)
}
