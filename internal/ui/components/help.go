package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/ui/style"
)

// RenderHelp renders the help overlay around body, the full key help.
func RenderHelp(theme style.Theme, body string, width, height int) string {
	boxWidth := min(max(lipgloss.Width(body)+6, 40), width-4)

	lines := []string{
		theme.ModalTitle.Render("  godupe - Keyboard Shortcuts"),
		body,
		"",
		lipgloss.NewStyle().Foreground(theme.TextMuted).Render("  Press ? or Esc to close"),
	}

	box := theme.ModalStyle.
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
