package feed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported feed format")

// Load reads a task feed from disk, choosing the parser by file extension.
func Load(path string) (*Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var f *Feed
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		f, err = ParseJSON(data)
	case ".hcl":
		f, err = ParseHCL(path, data)
	case ".yaml", ".yml":
		f, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return f, nil
}

// ParseYAML reads a task feed with top-level "tasks" and "executions" keys.
func ParseYAML(data []byte) (*Feed, error) {
	var f Feed
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse YAML feed: %w", err)
	}
	for i := range f.Tasks {
		f.Tasks[i].Requires = dedupe(f.Tasks[i].Requires)
		f.Tasks[i].RequiredBy = dedupe(f.Tasks[i].RequiredBy)
	}
	return &f, nil
}
