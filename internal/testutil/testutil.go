package testutil

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/payengine/internal/models"
)

// MustAmount parses an amount or fails the test
func MustAmount(tb testing.TB, s string) models.Amount {
	tb.Helper()

	amount, err := models.ParseAmount(s)
	require.NoError(tb, err, "amount %q should parse", s)
	return amount
}

// Transaction builders keep test bodies close to the wire format

func Deposit(tb testing.TB, client uint16, tx uint32, amount string) models.Transaction {
	tb.Helper()
	return models.Transaction{Kind: models.TransactionDeposit, ClientID: client, TxID: tx, Amount: MustAmount(tb, amount)}
}

func Withdrawal(tb testing.TB, client uint16, tx uint32, amount string) models.Transaction {
	tb.Helper()
	return models.Transaction{Kind: models.TransactionWithdrawal, ClientID: client, TxID: tx, Amount: MustAmount(tb, amount)}
}

func Dispute(client uint16, tx uint32) models.Transaction {
	return models.Transaction{Kind: models.TransactionDispute, ClientID: client, TxID: tx}
}

func Resolve(client uint16, tx uint32) models.Transaction {
	return models.Transaction{Kind: models.TransactionResolve, ClientID: client, TxID: tx}
}

func Chargeback(client uint16, tx uint32) models.Transaction {
	return models.Transaction{Kind: models.TransactionChargeback, ClientID: client, TxID: tx}
}

type sliceItem struct {
	tx  models.Transaction
	err error
}

// SliceIngress replays a fixed sequence of transactions and errors.
// It satisfies ingress.Ingress and ends with io.EOF.
type SliceIngress struct {
	items []sliceItem
	pos   int
}

func NewSliceIngress(txs ...models.Transaction) *SliceIngress {
	s := &SliceIngress{}
	return s.Add(txs...)
}

func (s *SliceIngress) Add(txs ...models.Transaction) *SliceIngress {
	for _, tx := range txs {
		s.items = append(s.items, sliceItem{tx: tx})
	}
	return s
}

// AddError injects an error at the current position in the sequence
func (s *SliceIngress) AddError(err error) *SliceIngress {
	s.items = append(s.items, sliceItem{err: err})
	return s
}

func (s *SliceIngress) Next(ctx context.Context) (models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return models.Transaction{}, err
	}
	if s.pos >= len(s.items) {
		return models.Transaction{}, io.EOF
	}

	item := s.items[s.pos]
	s.pos++
	return item.tx, item.err
}

// CaptureSink collects snapshot rows. It satisfies egress.Sink and can be
// told to start failing after a number of rows.
type CaptureSink struct {
	mu        sync.Mutex
	views     []models.AccountView
	failAfter int
	failErr   error
}

func NewCaptureSink() *CaptureSink {
	return &CaptureSink{failAfter: -1}
}

// FailAfter makes WriteAccount return err once n rows were accepted
func (c *CaptureSink) FailAfter(n int, err error) *CaptureSink {
	c.failAfter = n
	c.failErr = err
	return c
}

func (c *CaptureSink) WriteAccount(ctx context.Context, view models.AccountView) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failAfter >= 0 && len(c.views) >= c.failAfter {
		return c.failErr
	}

	c.views = append(c.views, view)
	return nil
}

// Views returns a copy of all captured rows
func (c *CaptureSink) Views() []models.AccountView {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]models.AccountView, len(c.views))
	copy(views, c.views)
	return views
}

// View returns the captured row for one client
func (c *CaptureSink) View(clientID uint16) (models.AccountView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, view := range c.views {
		if view.ClientID == clientID {
			return view, true
		}
	}
	return models.AccountView{}, false
}
