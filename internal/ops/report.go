package ops

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/util"
)

const digestPrefixLen = 12

// WriteText prints report as plain text: a summary line followed by one
// block per group, members indented below it.
func WriteText(w io.Writer, report *model.Report) error {
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}

	where := report.Root
	if report.Remote != "" {
		where = report.Remote + ":" + report.Root
	}
	fmt.Fprintf(ew, "%s (%s)\n", where, report.Algorithm)
	fmt.Fprintf(ew, "%s files scanned, %s hashed, %s groups, %s duplicates, %s reclaimable",
		humanize.Comma(int64(report.TotalFiles)),
		humanize.Comma(int64(report.Hashed)),
		humanize.Comma(int64(len(report.Groups))),
		humanize.Comma(int64(report.DuplicateCount())),
		util.FormatBytes(report.WastedBytes()),
	)
	if report.Duration > 0 {
		fmt.Fprintf(ew, " in %s", report.Duration.Round(time.Millisecond))
	}
	ew.WriteString("\n")
	if report.Skipped > 0 {
		fmt.Fprintf(ew, "warning: %s unreadable entries skipped, results may be incomplete\n", humanize.Comma(int64(report.Skipped)))
	}

	for i, g := range report.Groups {
		fmt.Fprintf(ew, "\n[%d] %s x %d  %s\n", i+1, util.FormatBytes(g.Size), len(g.Paths), shortDigest(g.Digest))
		for _, p := range g.Paths {
			fmt.Fprintf(ew, "    %s\n", p)
		}
	}

	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

func shortDigest(d string) string {
	if len(d) <= digestPrefixLen {
		return d
	}
	return d[:digestPrefixLen]
}
