package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Journal durably records registry mutations. The registry calls it while
// holding its write lock and before touching in-memory state, so a journal
// error leaves the registry unchanged.
type Journal interface {
	RecordBadge(ctx context.Context, account string, status bool) error
	RecordProvision(ctx context.Context, account string, amount uint64) error
	RecordTransaction(ctx context.Context, index int, txn Transaction) error
}

// Account is a read-only view of an account's state.
type Account struct {
	ID             string        `json:"id"`
	HasPurityBadge bool          `json:"has_purity_badge"`
	Balance        uint64        `json:"balance"`
	Transactions   []Transaction `json:"transactions"`
}

type account struct {
	hasPurityBadge bool
	balance        uint64
	transactions   []Transaction
}

// AccountRegistry is the source of truth for badges, balances and
// transaction history. All mutations are serialized by a single lock.
type AccountRegistry struct {
	mu       sync.RWMutex
	access   *AccessController
	journal  Journal
	accounts map[string]*account
}

// RegistryOption configures an AccountRegistry.
type RegistryOption func(*AccountRegistry)

// WithJournal makes every mutation write-ahead to j.
func WithJournal(j Journal) RegistryOption {
	return func(r *AccountRegistry) {
		r.journal = j
	}
}

// NewAccountRegistry creates an empty registry whose badge mutations are
// authorized by access.
func NewAccountRegistry(access *AccessController, opts ...RegistryOption) *AccountRegistry {
	r := &AccountRegistry{
		access:   access,
		accounts: make(map[string]*account),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPurityBadge sets the badge flag on target. Only the owner may call it.
// The account is created if it does not exist.
func (r *AccountRegistry) SetPurityBadge(ctx context.Context, caller, target string, status bool) error {
	if err := r.access.RequireOwner(caller); err != nil {
		return err
	}
	if target == "" {
		return ErrInvalidAccount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.journal != nil {
		if err := r.journal.RecordBadge(ctx, target, status); err != nil {
			return fmt.Errorf("failed to journal badge change: %w", err)
		}
	}

	r.getOrCreateLocked(target).hasPurityBadge = status
	return nil
}

// Provision credits amount to id. It models the external provisioning step
// that seeds balances and is restricted to the owner.
func (r *AccountRegistry) Provision(ctx context.Context, caller, id string, amount uint64) error {
	if err := r.access.RequireOwner(caller); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if acct, ok := r.accounts[id]; ok && acct.balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}

	if r.journal != nil {
		if err := r.journal.RecordProvision(ctx, id, amount); err != nil {
			return fmt.Errorf("failed to journal provision: %w", err)
		}
	}

	r.getOrCreateLocked(id).balance += amount
	return nil
}

// PurityBadge reports whether id holds a purity badge. Unknown accounts
// report false and are not created.
func (r *AccountRegistry) PurityBadge(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.purityBadgeLocked(id)
}

// Balance returns the balance of id, 0 for unknown accounts.
func (r *AccountRegistry) Balance(id string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.balanceLocked(id)
}

// Transactions returns a copy of id's history in submission order.
func (r *AccountRegistry) Transactions(id string) []Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return []Transaction{}
	}
	return cloneTransactions(acct.transactions)
}

// Account returns a copy of id's full state.
func (r *AccountRegistry) Account(id string) (Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return Account{ID: id, Transactions: []Transaction{}}, false
	}
	return Account{
		ID:             id,
		HasPurityBadge: acct.hasPurityBadge,
		Balance:        acct.balance,
		Transactions:   cloneTransactions(acct.transactions),
	}, true
}

// debitAndRecord decrements id's balance and appends txn as one step.
func (r *AccountRegistry) debitAndRecord(ctx context.Context, id string, amount uint64, txn Transaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debitAndRecordLocked(ctx, id, amount, txn)
}

func (r *AccountRegistry) debitAndRecordLocked(ctx context.Context, id string, amount uint64, txn Transaction) (int, error) {
	if r.balanceLocked(id) < amount {
		return 0, ErrInsufficientFunds
	}

	acct := r.getOrCreateLocked(id)
	index := len(acct.transactions)
	txn = txn.clone()

	if r.journal != nil {
		if err := r.journal.RecordTransaction(ctx, index, txn); err != nil {
			return 0, err
		}
	}

	acct.balance -= amount
	acct.transactions = append(acct.transactions, txn)
	return index, nil
}

func (r *AccountRegistry) purityBadgeLocked(id string) bool {
	acct, ok := r.accounts[id]
	return ok && acct.hasPurityBadge
}

func (r *AccountRegistry) balanceLocked(id string) uint64 {
	if acct, ok := r.accounts[id]; ok {
		return acct.balance
	}
	return 0
}

func (r *AccountRegistry) getOrCreateLocked(id string) *account {
	acct, ok := r.accounts[id]
	if !ok {
		acct = &account{}
		r.accounts[id] = acct
	}
	return acct
}
