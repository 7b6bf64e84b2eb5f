package report

import (
	"encoding/json"
	"io"

	"github.com/schaermu/vtagsync/internal/reconcile"
)

// JSONReporter writes the result as a single JSON document
type JSONReporter struct {
	Indent bool
}

func (r *JSONReporter) Report(w io.Writer, res *reconcile.Result) error {
	enc := json.NewEncoder(w)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
