package ledger

import (
	"context"
	"fmt"
	"time"
)

// SubmitTransactionParams contains the parameters for a transaction submission.
// Kind is recorded as given; an empty Kind is recorded as DefaultKind.
type SubmitTransactionParams struct {
	Caller       string
	From         string
	To           string
	Amount       uint64
	Kind         Kind
	IsCrossChain bool
	Memo         []byte
}

// TransactionLedger validates and commits transaction submissions against an
// AccountRegistry.
type TransactionLedger struct {
	registry  *AccountRegistry
	addresses AddressValidator
	now       func() time.Time
}

// LedgerOption configures a TransactionLedger.
type LedgerOption func(*TransactionLedger)

// WithAddressValidator sets the recipient format check. Defaults to StellarAddresses.
func WithAddressValidator(v AddressValidator) LedgerOption {
	return func(l *TransactionLedger) {
		l.addresses = v
	}
}

// WithClock overrides the clock used to stamp RecordedAt. The default clock
// reports UTC at microsecond precision, which Postgres stores losslessly.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *TransactionLedger) {
		l.now = now
	}
}

// NewTransactionLedger creates a ledger backed by registry.
func NewTransactionLedger(registry *AccountRegistry, opts ...LedgerOption) *TransactionLedger {
	l := &TransactionLedger{
		registry:  registry,
		addresses: StellarAddresses,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the ledger commits to.
func (l *TransactionLedger) Registry() *AccountRegistry {
	return l.registry
}

// SubmitTransaction validates p and, if every check passes, debits p.From
// and appends the transaction to its history. Checks run in order:
// amount, sender badge, sender balance, recipient format. The first failing
// check is returned and nothing is mutated. The recipient's account is not
// credited.
func (l *TransactionLedger) SubmitTransaction(ctx context.Context, p SubmitTransactionParams) (*Receipt, error) {
	if p.Amount == 0 {
		return nil, ErrInvalidAmount
	}

	// Checks and commit share one critical section so that two submissions
	// from the same account can't both pass the balance check.
	r := l.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.purityBadgeLocked(p.From) {
		return nil, ErrUnauthorized
	}
	if r.balanceLocked(p.From) < p.Amount {
		return nil, ErrInsufficientFunds
	}
	if err := l.addresses.ValidateAddress(p.To); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	kind := p.Kind
	if kind == "" {
		kind = DefaultKind
	}

	txn := Transaction{
		From:         p.From,
		To:           p.To,
		Amount:       p.Amount,
		Kind:         kind,
		IsCrossChain: p.IsCrossChain,
		Memo:         p.Memo,
		SubmittedBy:  p.Caller,
		RecordedAt:   l.now(),
	}

	index, err := r.debitAndRecordLocked(ctx, p.From, p.Amount, txn)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		Index:       index,
		Transaction: txn.clone(),
	}, nil
}

// UserTransactions returns id's transaction history in submission order.
func (l *TransactionLedger) UserTransactions(id string) []Transaction {
	return l.registry.Transactions(id)
}

// PurityBadge reports whether id holds a purity badge.
func (l *TransactionLedger) PurityBadge(id string) bool {
	return l.registry.PurityBadge(id)
}

// Balance returns id's balance.
func (l *TransactionLedger) Balance(id string) uint64 {
	return l.registry.Balance(id)
}
