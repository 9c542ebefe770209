package engine

import (
	"fmt"

	"github.com/nkiryanov/payengine/internal/apperrors"
	"github.com/nkiryanov/payengine/internal/logger"
	"github.com/nkiryanov/payengine/internal/models"
	"github.com/nkiryanov/payengine/internal/storage"
)

// Processor applies transactions against the shared account and transaction
// stores. It is stateless and safe for concurrent use: all synchronization
// lives in the stores' per-shard locks.
type Processor struct {
	accounts     *storage.AccountStore
	transactions *storage.TransactionStore
	logger       logger.Logger
}

func NewProcessor(accounts *storage.AccountStore, transactions *storage.TransactionStore, l logger.Logger) *Processor {
	if l == nil {
		l = logger.NewNoOp()
	}

	return &Processor{
		accounts:     accounts,
		transactions: transactions,
		logger:       l,
	}
}

// Process applies a single transaction. On error neither store has changed,
// except when a deposit or withdrawal loses a race with a concurrent
// transaction of the same id: its account change stays applied, and the
// transaction store keeps the other transaction's record.
func (p *Processor) Process(tx models.Transaction) error {
	switch tx.Kind {
	case models.TransactionDeposit:
		return p.processMonetary(tx, func(a *models.Account) error { return a.ApplyDeposit(tx.Amount) })
	case models.TransactionWithdrawal:
		return p.processMonetary(tx, func(a *models.Account) error { return a.ApplyWithdrawal(tx.Amount) })
	case models.TransactionDispute, models.TransactionResolve, models.TransactionChargeback:
		return p.processDisputeFamily(tx)
	default:
		return fmt.Errorf("unsupported transaction kind %q", tx.Kind)
	}
}

// processMonetary handles deposits and withdrawals: check the id is fresh,
// mutate the account, then record the transaction for later disputes. The
// record is written only after the account mutation succeeded, so a failed
// transition leaves both stores untouched.
func (p *Processor) processMonetary(tx models.Transaction, apply func(*models.Account) error) error {
	if p.transactions.Contains(tx.TxID) {
		return fmt.Errorf("%w: tx %d", apperrors.ErrDuplicateTransaction, tx.TxID)
	}

	p.logger.Debug("processing transaction", "kind", tx.Kind, "client", tx.ClientID, "tx", tx.TxID)

	if err := p.accounts.Entry(tx.ClientID).Update(apply); err != nil {
		return fmt.Errorf("%s tx %d for client %d: %w", tx.Kind, tx.TxID, tx.ClientID, err)
	}

	record := models.TransactionRecord{ClientID: tx.ClientID, Amount: tx.Amount, Kind: tx.Kind}
	if !p.transactions.Insert(tx.TxID, record) {
		// Lost a duplicate-id race after the account was already credited.
		// Input ids are required to be globally unique, so only malformed
		// input gets here; the first record wins and stays immutable.
		p.logger.Warn("transaction id raced a duplicate", "tx", tx.TxID, "client", tx.ClientID)
		return fmt.Errorf("%w: tx %d", apperrors.ErrDuplicateTransaction, tx.TxID)
	}

	return nil
}

func (p *Processor) processDisputeFamily(tx models.Transaction) error {
	record, ok := p.transactions.Get(tx.TxID)
	if !ok {
		return fmt.Errorf("%w: tx %d", apperrors.ErrTransactionNotFound, tx.TxID)
	}
	if record.ClientID != tx.ClientID {
		p.logger.Debug("dispute client mismatch",
			"kind", tx.Kind, "client", tx.ClientID, "tx", tx.TxID, "record_client", record.ClientID)
		return fmt.Errorf("%w: tx %d", apperrors.ErrClientMismatch, tx.TxID)
	}
	if record.Kind != models.TransactionDeposit {
		return fmt.Errorf("%w: tx %d", apperrors.ErrCannotDisputeWithdrawal, tx.TxID)
	}

	p.logger.Debug("processing transaction", "kind", tx.Kind, "client", tx.ClientID, "tx", tx.TxID)

	err := p.accounts.Entry(tx.ClientID).Update(func(a *models.Account) error {
		switch tx.Kind {
		case models.TransactionDispute:
			return a.ApplyDispute(tx.TxID, record.Amount)
		case models.TransactionResolve:
			return a.ApplyResolve(tx.TxID, record.Amount)
		default:
			return a.ApplyChargeback(tx.TxID, record.Amount)
		}
	})
	if err != nil {
		return fmt.Errorf("%s tx %d for client %d: %w", tx.Kind, tx.TxID, tx.ClientID, err)
	}

	return nil
}
