package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/schaermu/vtagsync/internal/reconcile"
)

// TableReporter writes the outcomes as an aligned table followed by the run message
type TableReporter struct{}

func (r *TableReporter) Report(w io.Writer, res *reconcile.Result) error {
	if res.Data == nil || res.Data.Len() == 0 {
		_, err := fmt.Fprintf(w, "%s (%s)\n", res.Message, res.Reason)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TAG\tSTATE\tOLD TARGET\tNEW TARGET")
	_, _ = fmt.Fprintln(tw, "---\t-----\t----------\t----------")

	for _, tag := range res.Data.Keys() {
		out, _ := res.Data.Get(tag)
		old := shortSHA(out.OldTarget)
		if old == "" {
			old = "(none)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tag, out.State, old, shortSHA(out.NewTarget))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s (%s)\n", res.Message, res.Reason)
	return err
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
