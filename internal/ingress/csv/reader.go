// Package csv adapts transaction CSV input to the ingress contract.
//
// Wire format: header "type,client,tx,amount", one record per line,
// whitespace around fields ignored, amount present only for deposits and
// withdrawals. Malformed records surface as *ingress.RecordError so the
// stream survives individual bad lines.
package csv

import (
	"context"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nkiryanov/payengine/internal/apperrors"
	"github.com/nkiryanov/payengine/internal/ingress"
	"github.com/nkiryanov/payengine/internal/models"
)

// Reader turns CSV input into an ordered transaction stream
type Reader struct {
	r    *stdcsv.Reader
	cols map[string]int
	line int
}

func NewReader(r io.Reader) *Reader {
	cr := stdcsv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	return &Reader{r: cr}
}

// Next implements ingress.Ingress
func (r *Reader) Next(ctx context.Context) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}

	if r.cols == nil {
		if err := r.readHeader(); err != nil {
			return models.Transaction{}, err
		}
	}

	record, err := r.r.Read()
	r.line++
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return models.Transaction{}, io.EOF
	default:
		return models.Transaction{}, &ingress.RecordError{Line: r.line, Err: err}
	}

	tx, err := ParseRecord(r.field(record, "type"), r.field(record, "client"), r.field(record, "tx"), r.field(record, "amount"))
	if err != nil {
		return models.Transaction{}, &ingress.RecordError{Line: r.line, Err: err}
	}

	return tx, nil
}

// readHeader maps column names to indexes. A missing or malformed header is
// fatal for the whole stream, not a per-record error.
func (r *Reader) readHeader() error {
	record, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("reading csv header: %w", err)
	}
	r.line++

	cols := make(map[string]int, len(record))
	for i, name := range record {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"type", "client", "tx"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("csv header misses required column %q", required)
		}
	}

	r.cols = cols
	return nil
}

func (r *Reader) field(record []string, name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParseRecord builds a transaction from the four wire fields. It is shared
// by every adapter speaking the CSV record format.
func ParseRecord(kind, client, tx, amount string) (models.Transaction, error) {
	clientID, err := strconv.ParseUint(strings.TrimSpace(client), 10, 16)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid client id %q", client)
	}

	txID, err := strconv.ParseUint(strings.TrimSpace(tx), 10, 32)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid transaction id %q", tx)
	}

	out := models.Transaction{
		Kind:     models.TransactionKind(strings.ToLower(strings.TrimSpace(kind))),
		ClientID: uint16(clientID),
		TxID:     uint32(txID),
	}
	amount = strings.TrimSpace(amount)

	switch out.Kind {
	case models.TransactionDeposit, models.TransactionWithdrawal:
		if amount == "" {
			return models.Transaction{}, fmt.Errorf("%s requires an amount", out.Kind)
		}
		parsed, err := models.ParseAmount(amount)
		if err != nil {
			return models.Transaction{}, err
		}
		if parsed.IsNegative() {
			return models.Transaction{}, fmt.Errorf("%w: negative amount %q", apperrors.ErrInvalidAmount, amount)
		}
		out.Amount = parsed

	case models.TransactionDispute, models.TransactionResolve, models.TransactionChargeback:
		if amount != "" {
			return models.Transaction{}, fmt.Errorf("%s must not carry an amount", out.Kind)
		}

	default:
		return models.Transaction{}, fmt.Errorf("unknown transaction type %q", kind)
	}

	return out, nil
}
