package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/engine"
	"github.com/sadopc/godupe/internal/ui/style"
	"github.com/sadopc/godupe/internal/util"
)

// ScanView is the overlay shown while a search runs.
type ScanView struct {
	Theme    style.Theme
	Progress engine.Progress
	Bar      progress.Model
	Spinner  string
	Target   string
}

// NewProgressBar returns a hashing progress bar in the theme's gradient.
func NewProgressBar(theme style.Theme) progress.Model {
	return progress.New(
		progress.WithGradient(string(theme.GradientStart), string(theme.GradientEnd)),
		progress.WithoutPercentage(),
	)
}

// Render renders the overlay centered in width x height.
func (sv ScanView) Render(width, height int) string {
	boxWidth := min(56, width-4)
	p := sv.Progress

	var lines []string

	title := "Walking..."
	if p.Phase != engine.PhaseWalking {
		title = "Hashing..."
	}
	lines = append(lines, lipgloss.NewStyle().
		Bold(true).
		Foreground(sv.Theme.Primary).
		Render(fmt.Sprintf("  %s %s", sv.Spinner, title)))
	if sv.Target != "" {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(sv.Theme.TextMuted).
			Render("  "+util.TruncateLeft(sv.Target, max(boxWidth-8, 1))))
	}
	lines = append(lines, "")

	statStyle := lipgloss.NewStyle().Foreground(sv.Theme.TextSecondary)
	lines = append(lines, statStyle.Render(fmt.Sprintf("  Files:      %s", util.FormatCount(p.Discovered))))
	if p.Phase != engine.PhaseWalking {
		lines = append(lines, statStyle.Render(fmt.Sprintf("  Candidates: %s", util.FormatCount(p.Candidates))))
		lines = append(lines, statStyle.Render(fmt.Sprintf("  Hashed:     %s (%.0f%%)",
			util.FormatCount(p.Hashed), p.Fraction()*100)))

		bar := sv.Bar
		bar.Width = max(boxWidth-8, 1)
		lines = append(lines, "", "  "+bar.ViewAs(p.Fraction()))
	}
	lines = append(lines, statStyle.Render(fmt.Sprintf("  Speed:      %s files/s", util.FormatCount(int64(p.ItemsPerSecond())))))

	lines = append(lines, "")
	elapsed := fmt.Sprintf("  Elapsed: %.1fs", p.Duration.Seconds())
	lines = append(lines, lipgloss.NewStyle().Foreground(sv.Theme.TextMuted).Render(elapsed))

	box := sv.Theme.ModalStyle.
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
