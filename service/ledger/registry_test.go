package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journaledTxn struct {
	index int
	txn   Transaction
}

// recordingJournal records journal calls and fails on demand.
type recordingJournal struct {
	mu           sync.Mutex
	badges       map[string]bool
	provisions   map[string]uint64
	txns         []journaledTxn
	badgeErr     error
	provisionErr error
	txnErr       error
}

func (j *recordingJournal) RecordBadge(ctx context.Context, account string, status bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.badgeErr != nil {
		return j.badgeErr
	}
	if j.badges == nil {
		j.badges = make(map[string]bool)
	}
	j.badges[account] = status
	return nil
}

func (j *recordingJournal) RecordProvision(ctx context.Context, account string, amount uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.provisionErr != nil {
		return j.provisionErr
	}
	if j.provisions == nil {
		j.provisions = make(map[string]uint64)
	}
	j.provisions[account] += amount
	return nil
}

func (j *recordingJournal) RecordTransaction(ctx context.Context, index int, txn Transaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.txnErr != nil {
		return j.txnErr
	}
	j.txns = append(j.txns, journaledTxn{index: index, txn: txn})
	return nil
}

func newTestRegistry(t *testing.T, opts ...RegistryOption) *AccountRegistry {
	t.Helper()
	access, err := NewOwnedAccessController(testOwner)
	require.NoError(t, err)
	return NewAccountRegistry(access, opts...)
}

func TestRegistry_Defaults(t *testing.T) {
	r := newTestRegistry(t)

	assert.False(t, r.PurityBadge(alice))
	assert.Equal(t, uint64(0), r.Balance(alice))
	txns := r.Transactions(alice)
	assert.NotNil(t, txns)
	assert.Empty(t, txns)

	// Reads never create accounts.
	_, exists := r.Account(alice)
	assert.False(t, exists)
	assert.Empty(t, r.Snapshot().Accounts)
}

func TestRegistry_SetPurityBadge(t *testing.T) {
	ctx := context.Background()

	t.Run("owner grants and revokes", func(t *testing.T) {
		r := newTestRegistry(t)

		require.NoError(t, r.SetPurityBadge(ctx, testOwner, alice, true))
		assert.True(t, r.PurityBadge(alice))

		acct, exists := r.Account(alice)
		require.True(t, exists)
		assert.True(t, acct.HasPurityBadge)
		assert.Equal(t, uint64(0), acct.Balance)

		require.NoError(t, r.SetPurityBadge(ctx, testOwner, alice, false))
		assert.False(t, r.PurityBadge(alice))
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		r := newTestRegistry(t)

		for _, caller := range []string{alice, bob, "", testOwner + " "} {
			err := r.SetPurityBadge(ctx, caller, alice, true)
			require.ErrorIs(t, err, ErrUnauthorized, "caller %q", caller)
		}
		assert.False(t, r.PurityBadge(alice))
		_, exists := r.Account(alice)
		assert.False(t, exists)
	})

	t.Run("non-owner cannot revoke", func(t *testing.T) {
		r := newTestRegistry(t)
		require.NoError(t, r.SetPurityBadge(ctx, testOwner, alice, true))

		err := r.SetPurityBadge(ctx, alice, alice, false)
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, r.PurityBadge(alice))
	})

	t.Run("empty target is rejected", func(t *testing.T) {
		r := newTestRegistry(t)

		err := r.SetPurityBadge(ctx, testOwner, "", true)
		require.ErrorIs(t, err, ErrInvalidAccount)
		_, exists := r.Account("")
		assert.False(t, exists)
		assert.Empty(t, r.Snapshot().Accounts)
	})

	t.Run("uninitialized controller authorizes nobody", func(t *testing.T) {
		r := NewAccountRegistry(NewAccessController())
		err := r.SetPurityBadge(ctx, testOwner, alice, true)
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestRegistry_Provision(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	require.NoError(t, r.Provision(ctx, testOwner, alice, 70))
	require.NoError(t, r.Provision(ctx, testOwner, alice, 30))
	assert.Equal(t, uint64(100), r.Balance(alice))
	assert.False(t, r.PurityBadge(alice))

	require.ErrorIs(t, r.Provision(ctx, alice, alice, 10), ErrUnauthorized)
	require.ErrorIs(t, r.Provision(ctx, testOwner, alice, 0), ErrInvalidAmount)
	assert.Equal(t, uint64(100), r.Balance(alice))

	require.ErrorIs(t, r.Provision(ctx, testOwner, "", 10), ErrInvalidAccount)
	_, exists := r.Account("")
	assert.False(t, exists)

	require.ErrorIs(t, r.Provision(ctx, testOwner, alice, math.MaxUint64), ErrBalanceOverflow)
	assert.Equal(t, uint64(100), r.Balance(alice))
}

func TestRegistry_DebitAndRecord(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	require.NoError(t, r.Provision(ctx, testOwner, alice, 50))

	txn := Transaction{From: alice, To: bob, Amount: 20, Kind: KindInternal}
	index, err := r.debitAndRecord(ctx, alice, 20, txn)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, uint64(30), r.Balance(alice))

	_, err = r.debitAndRecord(ctx, alice, 31, txn)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(30), r.Balance(alice))
	assert.Len(t, r.Transactions(alice), 1)

	// Unknown accounts have nothing to debit and are not created.
	_, err = r.debitAndRecord(ctx, bob, 1, txn)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	_, exists := r.Account(bob)
	assert.False(t, exists)
}

func TestRegistry_JournalWriteAhead(t *testing.T) {
	ctx := context.Background()
	journal := &recordingJournal{}
	r := newTestRegistry(t, WithJournal(journal))

	require.NoError(t, r.SetPurityBadge(ctx, testOwner, alice, true))
	require.NoError(t, r.Provision(ctx, testOwner, alice, 10))
	assert.True(t, journal.badges[alice])
	assert.Equal(t, uint64(10), journal.provisions[alice])

	journal.badgeErr = errors.New("connection reset")
	err := r.SetPurityBadge(ctx, testOwner, bob, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to journal badge change")
	assert.False(t, r.PurityBadge(bob))

	journal.provisionErr = errors.New("connection reset")
	err = r.Provision(ctx, testOwner, alice, 5)
	require.Error(t, err)
	assert.Equal(t, uint64(10), r.Balance(alice))

	// Unauthorized calls never reach the journal.
	journal.badgeErr = nil
	require.ErrorIs(t, r.SetPurityBadge(ctx, bob, bob, true), ErrUnauthorized)
	_, journaled := journal.badges[bob]
	assert.False(t, journaled)
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	fund(t, l, alice, true, 100)
	fund(t, l, bob, false, 7)

	_, err := submit(l, alice, bob, 25)
	require.NoError(t, err)

	snap := l.Registry().Snapshot()
	require.Len(t, snap.Accounts, 2)
	// Ordered by ID: bob's key sorts before alice's.
	assert.Equal(t, bob, snap.Accounts[0].ID)
	assert.Equal(t, alice, snap.Accounts[1].ID)

	restored := newTestRegistry(t)
	restored.Restore(snap)

	assert.True(t, restored.PurityBadge(alice))
	assert.Equal(t, uint64(75), restored.Balance(alice))
	assert.Equal(t, uint64(7), restored.Balance(bob))
	assert.Equal(t, l.UserTransactions(alice), restored.Transactions(alice))

	// Restored registries keep appending from the restored position.
	rl := NewTransactionLedger(restored)
	receipt, err := submit(rl, alice, bob, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Index)

	// The snapshot is detached from the registry it came from.
	snap.Accounts[1].Transactions[0].Amount = 999
	assert.Equal(t, uint64(25), l.UserTransactions(alice)[0].Amount)
	require.NoError(t, l.Registry().SetPurityBadge(ctx, testOwner, bob, true))
	assert.False(t, snap.Accounts[0].HasPurityBadge)
}
