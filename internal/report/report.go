// Package report renders a reconciliation result for humans or machines.
package report

import (
	"fmt"
	"io"

	"github.com/schaermu/vtagsync/internal/reconcile"
)

// Reporter writes a run result to w
type Reporter interface {
	Report(w io.Writer, res *reconcile.Result) error
}

// New returns the reporter for format. Unknown formats are an error.
func New(format string) (Reporter, error) {
	switch format {
	case "json":
		return &JSONReporter{}, nil
	case "table", "":
		return &TableReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (must be json or table)", format)
	}
}
