package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/datavet/datavet/validate/result"
)

// ConsoleReporter renders a human-readable table of results plus failure
// details for anything that did not pass.
type ConsoleReporter struct {
	out io.Writer
}

func NewConsole() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleWriter writes to an arbitrary writer, for tests.
func NewConsoleWriter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

func (c *ConsoleReporter) Report(summary *result.RunSummary) error {
	fmt.Fprintf(c.out, "\nValidation run %s\n", summary.RunID)
	fmt.Fprintf(c.out, "Started %s, took %s\n\n",
		summary.StartedAt.Format("2006-01-02 15:04:05"), summary.Duration().Round(time.Millisecond))

	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Validation", "Kind", "Status", "Duration", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, res := range summary.Results {
		table.Append([]string{
			res.Name,
			string(res.Kind),
			string(res.Status),
			res.Duration().String(),
			detailFor(res),
		})
	}
	table.Render()

	fmt.Fprintf(c.out, "\n%s\n", summary.Text())

	for _, res := range summary.Results {
		if !res.Status.Failure() && res.Status != result.Warning {
			continue
		}
		fmt.Fprintf(c.out, "\n%s (%s):\n", res.Name, res.Status)
		if res.ErrorMessage != "" {
			fmt.Fprintf(c.out, "  %s: %s\n", res.ErrorKind, res.ErrorMessage)
		}
		for _, chk := range res.Checks {
			if !chk.Passed {
				fmt.Fprintf(c.out, "  [%s] %s\n", chk.Name, chk.Detail)
			}
		}
		for _, col := range res.Columns {
			for _, chk := range col.FailedChecks() {
				fmt.Fprintf(c.out, "  [%s/%s] %s\n", col.Column, chk.Name, chk.Detail)
			}
		}
		for _, diff := range res.SchemaDifferences {
			fmt.Fprintf(c.out, "  %s\n", diff)
		}
	}
	return nil
}

func detailFor(res *result.Result) string {
	switch {
	case res.Status == result.Error:
		return res.ErrorKind + ": " + truncate(res.ErrorMessage, 60)
	case res.SourceCount != nil && res.TargetCount != nil:
		return fmt.Sprintf("source=%d target=%d", *res.SourceCount, *res.TargetCount)
	case len(res.Columns) > 0:
		passed := 0
		for _, col := range res.Columns {
			if col.Passed {
				passed++
			}
		}
		return fmt.Sprintf("%d/%d columns passed", passed, len(res.Columns))
	case len(res.SchemaDifferences) > 0:
		return fmt.Sprintf("%d schema differences", len(res.SchemaDifferences))
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
