// Package csv writes account snapshots in the CSV report format.
package csv

import (
	"context"
	stdcsv "encoding/csv"
	"io"
	"strconv"

	"github.com/nkiryanov/payengine/internal/models"
)

var header = []string{"client", "available", "held", "total", "locked"}

// Writer streams snapshot rows as CSV. The header is written before the
// first row, or by Flush when the snapshot turned out empty. Amounts are
// formatted with exactly four fractional digits.
type Writer struct {
	w           *stdcsv.Writer
	wroteHeader bool
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: stdcsv.NewWriter(w)}
}

// WriteAccount implements egress.Sink
func (w *Writer) WriteAccount(ctx context.Context, view models.AccountView) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !w.wroteHeader {
		if err := w.w.Write(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}

	return w.w.Write([]string{
		strconv.FormatUint(uint64(view.ClientID), 10),
		view.Available.String(),
		view.Held.String(),
		view.Total.String(),
		strconv.FormatBool(view.Locked),
	})
}

// Flush writes buffered rows out. An empty snapshot still gets its header.
func (w *Writer) Flush() error {
	if !w.wroteHeader {
		if err := w.w.Write(header); err != nil {
			return err
		}
		w.wroteHeader = true
	}

	w.w.Flush()
	return w.w.Error()
}
