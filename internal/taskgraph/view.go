package taskgraph

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/domain"
)

// View is the right-pane projection of a graph: a plain-text outline plus
// the toggle metadata the interactive transport uses for expandable rows.
// The projection is deterministic for a given input and is used as a
// snapshot in tests.
type View struct {
	Lines   []string     `json:"lines"`
	Toggles []ToggleLine `json:"toggles"`
}

// ToggleLine marks a rendered line that toggles a task's detail body.
type ToggleLine struct {
	LineIndex int    `json:"line_index"`
	TaskKey   string `json:"task_key"`
}

// minPaneWidth is the narrowest width the projection renders at.
const minPaneWidth = 8

// RightPaneView renders the graph as an indented outline wrapped to the
// given display width. Each task contributes a header line with a status
// icon, then its body wrapped beneath it.
func RightPaneView(g Graph, width int) View {
	if width < minPaneWidth {
		width = minPaneWidth
	}
	v := View{Lines: []string{"Task Tree"}}
	if g.Len() == 0 {
		v.Lines = append(v.Lines, "  (no tasks queued)")
		return v
	}
	for _, root := range g.Roots() {
		renderNode(g, root, 0, width, &v)
	}
	return v
}

func renderNode(g Graph, t domain.Task, depth, width int, v *View) {
	indent := strings.Repeat("  ", depth+1)
	header := statusIcon(t.Status) + " " + kindLabel(t.Kind) + ": " + t.Title
	if t.Concern != "" {
		header += " [" + t.Concern + "]"
	}

	headerIndex := len(v.Lines)
	for _, seg := range wrapWords(header, width-runewidth.StringWidth(indent)) {
		v.Lines = append(v.Lines, indent+seg)
	}
	v.Toggles = append(v.Toggles, ToggleLine{LineIndex: headerIndex, TaskKey: t.ID})

	if body := strings.TrimSpace(t.Body); body != "" {
		bodyIndent := indent + "    "
		for _, seg := range wrapWords(body, width-runewidth.StringWidth(bodyIndent)) {
			v.Lines = append(v.Lines, bodyIndent+seg)
		}
	}

	for _, child := range g.Children(t.ID) {
		renderNode(g, child, depth+1, width, v)
	}
}

func statusIcon(s constants.TaskStatus) string {
	switch s {
	case constants.TaskStatusPending:
		return "[ ]"
	case constants.TaskStatusRunning:
		return "[~]"
	case constants.TaskStatusPassed:
		return "[x]"
	case constants.TaskStatusFailed:
		return "[!]"
	case constants.TaskStatusSkipped:
		return "[s]"
	default:
		return "[?]"
	}
}

func kindLabel(k constants.TaskKind) string {
	switch k {
	case constants.KindImplementation:
		return "Impl"
	case constants.KindAudit:
		return "Audit"
	case constants.KindTestWrite:
		return "Tests"
	case constants.KindTestRun:
		return "TestRun"
	case constants.KindFinalAudit:
		return "FinalAudit"
	default:
		return string(k)
	}
}

// wrapWords greedily wraps text at word boundaries measured in display
// cells. Words wider than the limit are hard-split.
func wrapWords(text string, width int) []string {
	if width < 1 {
		width = 1
	}
	var out []string
	var current string

	flush := func() {
		if current != "" {
			out = append(out, current)
			current = ""
		}
	}

	for _, word := range strings.Fields(text) {
		wordWidth := runewidth.StringWidth(word)
		if current == "" {
			if wordWidth <= width {
				current = word
			} else {
				out = append(out, splitWord(word, width)...)
			}
			continue
		}
		if runewidth.StringWidth(current)+1+wordWidth <= width {
			current += " " + word
			continue
		}
		flush()
		if wordWidth <= width {
			current = word
		} else {
			out = append(out, splitWord(word, width)...)
		}
	}
	flush()

	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}

// splitWord hard-splits an over-wide word into display-width chunks.
func splitWord(word string, width int) []string {
	var out []string
	var current strings.Builder
	used := 0
	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if used+rw > width && current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
			used = 0
		}
		current.WriteRune(r)
		used += rw
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
