package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/joshharrison/wfpath/internal/feed"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintBanner renders the wfpath banner to w.
func PrintBanner(w io.Writer, subtitle string) {
	frame := color.New(color.FgCyan)
	nodes := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +----------------------+")
	nodes.Fprintln(w, "   |  o-->o-->o     o-->o  |")
	brand.Fprintln(w, "   |   W  F  P  A  T  H   |")
	nodes.Fprintln(w, "   |  o-->o     o-->o-->o  |")
	frame.Fprintln(w, "   +----------------------+")
	if subtitle != "" {
		fmt.Fprintf(w, "   %s\n", Dim(subtitle))
	}
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// taskColorIndex hashes a task ID to a palette index.
func taskColorIndex(taskID string) int {
	var h uint32
	for _, c := range taskID {
		h = h*31 + uint32(c)
	}
	return int(h % uint32(len(taskColors)))
}

// TaskPrefix returns a colored [task-id] prefix string.
// Each task ID gets a distinct color from the palette.
func TaskPrefix(taskID string) string {
	c := taskColors[taskColorIndex(taskID)]
	return Dim("[") + c(taskID) + Dim("]")
}

// StateIcon returns a colored icon for a task execution state.
func StateIcon(state feed.State) string {
	switch state {
	case feed.StateSuccess:
		return Green("✓")
	case feed.StateRunning:
		return Cyan("●")
	case feed.StateRunningDelayed:
		return Yellow("◐")
	case feed.StateWaiting:
		return Yellow("◌")
	case feed.StateError:
		return Red("✗")
	case feed.StateCancelled:
		return Dim("⊘")
	default:
		return Dim("○")
	}
}

// StateLabel returns the state name colored like its icon.
func StateLabel(state feed.State) string {
	s := string(state)
	switch state {
	case feed.StateSuccess:
		return Green(s)
	case feed.StateRunning:
		return Cyan(s)
	case feed.StateRunningDelayed, feed.StateWaiting:
		return Yellow(s)
	case feed.StateError:
		return Red(s)
	default:
		return Dim(s)
	}
}

// PathMarker renders a task's in-path marker.
func PathMarker(inPath bool) string {
	if inPath {
		return BoldYellow("◆")
	}
	return Dim("·")
}
