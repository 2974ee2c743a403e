package util

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
)

const ellipsis = "..."

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBytes is FormatSize for unsigned sizes.
func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatCount returns a human-readable count string.
func FormatCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	if n < 1_000_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
}

// Percent returns the percentage of part relative to total.
func Percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// TruncateString cuts s to at most maxWidth terminal cells, ending in "..."
// when there is room for it.
func TruncateString(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis) {
		return ansi.Truncate(s, maxWidth, "")
	}
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// TruncateLeft is like TruncateString but keeps the end of s, which is the
// informative part of a long path.
func TruncateLeft(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	w := ansi.StringWidth(s)
	if w <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis) {
		return ansi.TruncateLeft(s, w-maxWidth, "")
	}
	return ellipsis + ansi.TruncateLeft(s, w-(maxWidth-len(ellipsis)), "")
}
