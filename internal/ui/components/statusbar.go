package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/ui/style"
	"github.com/sadopc/godupe/internal/util"
)

// StatusInfo holds the current state for the status bar.
type StatusInfo struct {
	Group       int // 1-based group under the cursor, 0 when none
	GroupCount  int
	MarkedCount int
	MarkedSize  uint64
	ReadOnly    bool
	ErrorMsg    string
	Hints       string // rendered short key help
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(theme style.Theme, info StatusInfo, width int) string {
	if info.ErrorMsg != "" {
		errLine := " " + lipgloss.NewStyle().Foreground(theme.Warning).Bold(true).Render(info.ErrorMsg)
		return theme.StatusBarStyle.Width(width).Render(errLine)
	}

	var parts []string
	if info.GroupCount > 0 {
		parts = append(parts, fmt.Sprintf("group %d/%d", info.Group, info.GroupCount))
	}
	if info.MarkedCount > 0 {
		marked := lipgloss.NewStyle().
			Foreground(theme.Error).
			Bold(true).
			Render(fmt.Sprintf("* %d marked (%s)", info.MarkedCount, util.FormatBytes(info.MarkedSize)))
		parts = append(parts, marked)
	}
	if info.ReadOnly {
		parts = append(parts, "read-only")
	}
	left := " " + strings.Join(parts, " | ")

	right := info.Hints + " "

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	line := left + strings.Repeat(" ", gap) + right
	return theme.StatusBarStyle.Width(width).Render(line)
}

var sortTabs = []struct {
	field model.SortField
	key   string
	name  string
}{
	{model.SortByWasted, "w", "Wasted"},
	{model.SortBySize, "s", "Size"},
	{model.SortByCount, "c", "Copies"},
	{model.SortByPath, "p", "Path"},
}

// RenderSortBar renders the sort selector, highlighting the active field.
func RenderSortBar(theme style.Theme, sort model.SortConfig, width int) string {
	var tabs []string
	for _, tab := range sortTabs {
		label := fmt.Sprintf("%s %s", tab.key, tab.name)
		if tab.field == sort.Field {
			arrow := "↓"
			if sort.Order == model.SortAsc {
				arrow = "↑"
			}
			tabs = append(tabs, theme.TabActiveStyle.Render(label+" "+arrow))
		} else {
			tabs = append(tabs, theme.TabInactiveStyle.Render(label))
		}
	}
	line := " Sort: " + strings.Join(tabs, " ")
	return lipgloss.NewStyle().
		Foreground(theme.TextSecondary).
		Background(theme.BgLight).
		Width(width).
		Render(line)
}
