package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/proxemy/muse/batch"
)

func printReport(out io.Writer, report *batch.Report, root string) {
	rows := make([][]string, 0, len(report.Sources))
	for _, s := range report.Sources {
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.Rendered),
			strconv.Itoa(s.Failed),
			s.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Source", "Rendered", "Failed", "Time"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))

	if len(report.Failures) > 0 {
		rows = rows[:0]
		for _, f := range report.Failures {
			rows = append(rows, []string{
				f.Source,
				batch.FeatureTitle(f.Feature),
				f.Stage.Label(),
				f.Err.Error(),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(out, []string{"Source", "Feature", "Stage", "Error"}, rows, nil))
	}

	fmt.Fprintf(out, "\n%d rendered, %d failed in %s -> %s (run %s)\n",
		report.Rendered, report.Failed(), report.Duration.Round(time.Millisecond), root, report.RunID)
}
