package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Chrome is the number of fixed lines around the group list:
// header, info line, sort bar and status bar.
const Chrome = 4

// Layout manages the arrangement of UI components within terminal dimensions.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a layout for the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight returns the number of list rows that fit.
func (l Layout) ContentHeight() int {
	return max(l.Height-Chrome, 1)
}

// ContentWidth returns the width available for the list.
func (l Layout) ContentWidth() int {
	return max(l.Width, 20)
}

// BarWidth returns the width of the wasted-space bar on group rows.
func (l Layout) BarWidth() int {
	return min(max(l.ContentWidth()-l.rowOverhead()-minLabelWidth, 5), 30)
}

// LabelWidth returns the width left for a group row's label.
func (l Layout) LabelWidth() int {
	return max(l.ContentWidth()-l.rowOverhead()-l.BarWidth(), 8)
}

// PathWidth returns the width left for a member path, after the indicator
// and indent.
func (l Layout) PathWidth() int {
	return max(l.ContentWidth()-memberIndent, 8)
}

const (
	minLabelWidth = 20
	memberIndent  = 6
)

// rowOverhead is the fixed-width part of a group row:
// mark(2) + pct(6) + " ["(2) + "] "(2) + " "(1) + size(10).
func (l Layout) rowOverhead() int {
	return 23
}

// Center centers content in the available width.
func (l Layout) Center(content string) string {
	return lipgloss.PlaceHorizontal(l.Width, lipgloss.Center, content)
}

// FullWidth pads a string with spaces to reach exactly the target visual width.
// If the string is already wider, it is returned as-is (no truncation).
func FullWidth(s string, width int) string {
	visLen := lipgloss.Width(s)
	if visLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visLen)
}
