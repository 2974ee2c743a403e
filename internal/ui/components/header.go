package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/ui/style"
	"github.com/sadopc/godupe/internal/util"
)

// RenderHeader renders the top header bar: title, scanned root and totals.
func RenderHeader(theme style.Theme, report *model.Report, width int) string {
	if report == nil || width < 10 {
		return ""
	}

	titleStyled := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render(" godupe")

	stats := fmt.Sprintf("%s groups  %s reclaimable ",
		util.FormatCount(int64(len(report.Groups))),
		util.FormatBytes(report.WastedBytes()),
	)
	statsStyled := lipgloss.NewStyle().Foreground(theme.TextMuted).Render(stats)

	titleW := lipgloss.Width(titleStyled)
	statsW := lipgloss.Width(statsStyled)

	where := report.Root
	if report.Remote != "" {
		where = report.Remote + ":" + report.Root
	}
	pathMaxW := width - titleW - statsW - 3
	if pathMaxW > 5 {
		where = util.TruncateLeft(where, pathMaxW)
	} else {
		where = ""
	}
	pathStyled := lipgloss.NewStyle().Foreground(theme.TextPrimary).Render("  " + where)
	pathW := lipgloss.Width(pathStyled)

	gap := max(width-titleW-pathW-statsW, 1)
	line := titleStyled + pathStyled + strings.Repeat(" ", gap) + statsStyled
	return theme.HeaderStyle.Width(width).Render(line)
}

// RenderInfo renders the line under the header with scan statistics.
func RenderInfo(theme style.Theme, report *model.Report, imported bool, width int) string {
	if report == nil {
		return ""
	}
	parts := []string{
		report.Algorithm,
		fmt.Sprintf("%s files", util.FormatCount(int64(report.TotalFiles))),
		fmt.Sprintf("%s hashed", util.FormatCount(int64(report.Hashed))),
		fmt.Sprintf("%d duplicates", report.DuplicateCount()),
	}
	if report.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d unreadable skipped", report.Skipped))
	}
	if report.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", report.Duration.Seconds()))
	}
	if imported {
		parts = append(parts, "imported")
	}
	line := util.TruncateString(" "+strings.Join(parts, " | "), width)
	return theme.InfoStyle.Width(width).Render(line)
}
