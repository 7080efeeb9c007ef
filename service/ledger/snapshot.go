package ledger

import "sort"

// Snapshot is a point-in-time copy of every account in a registry.
type Snapshot struct {
	Accounts []Account `json:"accounts"`
}

// Snapshot exports the registry state, ordered by account ID.
func (r *AccountRegistry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := Snapshot{Accounts: make([]Account, 0, len(ids))}
	for _, id := range ids {
		acct := r.accounts[id]
		snap.Accounts = append(snap.Accounts, Account{
			ID:             id,
			HasPurityBadge: acct.hasPurityBadge,
			Balance:        acct.balance,
			Transactions:   cloneTransactions(acct.transactions),
		})
	}
	return snap
}

// Restore replaces the registry state with snap. It bypasses the journal;
// snap is expected to come from the journal's backing store.
func (r *AccountRegistry) Restore(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts = make(map[string]*account, len(snap.Accounts))
	for _, a := range snap.Accounts {
		r.accounts[a.ID] = &account{
			hasPurityBadge: a.HasPurityBadge,
			balance:        a.Balance,
			transactions:   cloneTransactions(a.Transactions),
		}
	}
}
