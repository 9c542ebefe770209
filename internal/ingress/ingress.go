package ingress

import (
	"context"
	"fmt"

	"github.com/nkiryanov/payengine/internal/models"
)

// Ingress is a lazy, ordered, finite sequence of transactions.
//
// Next returns io.EOF once the sequence is drained. A *RecordError marks a
// single malformed record: the record is lost but the ingress stays usable
// and Next may be called again. Any other error means the source itself
// failed and no further records can be read.
type Ingress interface {
	Next(ctx context.Context) (models.Transaction, error)
}

// RecordError reports one unparseable record within an otherwise healthy stream
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
