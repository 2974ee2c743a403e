package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/ui/style"
	"github.com/sadopc/godupe/internal/util"
)

// ConfirmItem represents a file pending deletion.
type ConfirmItem struct {
	Path string
	Size uint64
}

// RenderConfirmDialog renders the deletion confirmation modal.
func RenderConfirmDialog(theme style.Theme, items []ConfirmItem, width, height int) string {
	boxWidth := min(70, width-4)

	var lines []string
	lines = append(lines, theme.ModalTitle.Render("  Delete Confirmation"))

	warning := lipgloss.NewStyle().
		Foreground(theme.Warning).
		Render(fmt.Sprintf("  The following %d file(s) will be permanently deleted:", len(items)))
	lines = append(lines, warning, "")

	maxShow := min(10, len(items))

	var totalSize uint64
	for _, item := range items {
		totalSize += item.Size
	}

	for _, item := range items[:maxShow] {
		name := util.TruncateLeft(item.Path, boxWidth-20)
		line := lipgloss.NewStyle().Foreground(theme.Error).Render("  "+name) +
			lipgloss.NewStyle().Foreground(theme.TextMuted).Render("  "+util.FormatBytes(item.Size))
		lines = append(lines, line)
	}

	if len(items) > maxShow {
		more := fmt.Sprintf("  ... and %d more", len(items)-maxShow)
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.TextMuted).Render(more))
	}

	lines = append(lines, "")
	totalLine := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.TextPrimary).
		Render(fmt.Sprintf("  Reclaimed: %s", util.FormatBytes(totalSize)))
	lines = append(lines, totalLine, "")

	prompt := lipgloss.NewStyle().
		Foreground(theme.TextPrimary).
		Render("  Press ") +
		lipgloss.NewStyle().Bold(true).Foreground(theme.Success).Render("y") +
		lipgloss.NewStyle().Foreground(theme.TextPrimary).Render(" to confirm, ") +
		lipgloss.NewStyle().Bold(true).Foreground(theme.Error).Render("n/esc") +
		lipgloss.NewStyle().Foreground(theme.TextPrimary).Render(" to cancel")
	lines = append(lines, prompt)

	box := theme.ModalStyle.
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
