package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/ui/style"
	"github.com/sadopc/godupe/internal/util"
)

// Row addresses one line of the group list. Member is -1 for the group's
// title row.
type Row struct {
	Group  int
	Member int
}

// IsTitle reports whether the row is a group title.
func (r Row) IsTitle() bool { return r.Member < 0 }

// BuildRows flattens groups into a title row followed by one row per member.
func BuildRows(groups []model.DuplicateGroup) []Row {
	var rows []Row
	for gi, g := range groups {
		rows = append(rows, Row{Group: gi, Member: -1})
		for mi := range g.Paths {
			rows = append(rows, Row{Group: gi, Member: mi})
		}
	}
	return rows
}

// GroupList renders the scrolling list of duplicate groups.
type GroupList struct {
	Theme       style.Theme
	Layout      style.Layout
	Groups      []model.DuplicateGroup
	Rows        []Row
	Cursor      int
	Offset      int
	Marked      map[string]bool
	TotalWasted uint64
}

// Render renders the visible window of rows.
func (gl *GroupList) Render() string {
	width := gl.Layout.ContentWidth()
	contentHeight := gl.Layout.ContentHeight()

	if len(gl.Rows) == 0 {
		empty := lipgloss.NewStyle().Foreground(gl.Theme.TextMuted).Render("  No duplicate files found.")
		lines := []string{style.FullWidth(empty, width)}
		for len(lines) < contentHeight {
			lines = append(lines, strings.Repeat(" ", width))
		}
		return strings.Join(lines, "\n")
	}

	start := gl.Offset
	end := min(start+contentHeight, len(gl.Rows))

	var lines []string
	for i := start; i < end; i++ {
		row := gl.Rows[i]
		selected := i == gl.Cursor
		var line string
		if row.IsTitle() {
			line = gl.renderTitle(gl.Groups[row.Group], selected, width)
		} else {
			line = gl.renderMember(gl.Groups[row.Group], row.Member, selected, width)
		}
		lines = append(lines, line)
	}

	for len(lines) < contentHeight {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func (gl *GroupList) renderTitle(g model.DuplicateGroup, selected bool, totalWidth int) string {
	wasted := g.Wasted()
	pct := util.Percent(int64(wasted), int64(gl.TotalWasted))
	pctStr := fmt.Sprintf("%5.1f%%", pct)
	bar := gl.Theme.BarGradient(gl.Layout.BarWidth(), pct/100.0)

	marked := 0
	for _, p := range g.Paths {
		if gl.Marked[p] {
			marked++
		}
	}

	indicator := "  "
	if selected {
		indicator = gl.Theme.CursorIndicator.Render(" >")
	}

	label := fmt.Sprintf("%d x %s", len(g.Paths), util.FormatBytes(g.Size))
	if marked > 0 {
		label += fmt.Sprintf(" (%d marked)", marked)
	}
	labelWidth := gl.Layout.LabelWidth()
	label = util.TruncateString(label, labelWidth)
	labelStyled := gl.Theme.GroupTitle.Render(label)
	if digestRoom := labelWidth - lipgloss.Width(label) - 2; digestRoom >= 8 {
		labelStyled += "  " + gl.Theme.DigestText.Render(util.TruncateString(g.Digest, digestRoom))
	}

	row := fmt.Sprintf("%s%s [%s] %s %s",
		indicator,
		gl.Theme.PercentText.Render(pctStr),
		bar,
		style.FullWidth(labelStyled, labelWidth),
		gl.Theme.SizeText.Width(10).Render(util.FormatBytes(wasted)),
	)
	row = style.FullWidth(row, totalWidth)

	if selected {
		return gl.Theme.SelectedRow.Width(totalWidth).Render(row)
	}
	return row
}

func (gl *GroupList) renderMember(g model.DuplicateGroup, member int, selected bool, totalWidth int) string {
	path := g.Paths[member]
	marked := gl.Marked[path]

	indicator := "  "
	switch {
	case selected && marked:
		indicator = gl.Theme.MarkedIndicator.Render("*") + gl.Theme.CursorIndicator.Render(">")
	case selected:
		indicator = gl.Theme.CursorIndicator.Render(" >")
	case marked:
		indicator = gl.Theme.MarkedIndicator.Render("* ")
	}

	branch := "├─ "
	if member == len(g.Paths)-1 {
		branch = "└─ "
	}
	branch = lipgloss.NewStyle().Foreground(gl.Theme.TextMuted).Render("  " + branch)

	name := util.TruncateLeft(path, gl.Layout.PathWidth()-1)
	var nameStyled string
	switch {
	case marked:
		nameStyled = gl.Theme.ErrorText.Render(name)
	case gl.survivor(g) == member:
		nameStyled = gl.Theme.KeptPath.Render(name)
	default:
		nameStyled = gl.Theme.MemberPath.Render(name)
	}

	row := style.FullWidth(indicator+branch+nameStyled, totalWidth)
	if selected {
		return gl.Theme.SelectedRow.Width(totalWidth).Render(row)
	}
	return row
}

// survivor returns the member that stays when marks are applied, or -1 when
// nothing in the group is marked.
func (gl *GroupList) survivor(g model.DuplicateGroup) int {
	first := -1
	anyMarked := false
	for i, p := range g.Paths {
		if gl.Marked[p] {
			anyMarked = true
		} else if first < 0 {
			first = i
		}
	}
	if !anyMarked {
		return -1
	}
	return first
}

// EnsureVisible adjusts offset to keep cursor visible.
func (gl *GroupList) EnsureVisible() {
	contentHeight := gl.Layout.ContentHeight()
	if gl.Cursor < gl.Offset {
		gl.Offset = gl.Cursor
	}
	if gl.Cursor >= gl.Offset+contentHeight {
		gl.Offset = gl.Cursor - contentHeight + 1
	}
	if gl.Offset < 0 {
		gl.Offset = 0
	}
}
