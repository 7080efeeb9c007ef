package ledger

import (
	"errors"
	"sync"
)

// AccessController gates badge mutation behind a single owner identity.
// The owner is set once and can never be reassigned.
type AccessController struct {
	mu          sync.RWMutex
	owner       string
	initialized bool
}

// NewAccessController returns an uninitialized controller. Until Initialize
// succeeds, RequireOwner rejects every caller.
func NewAccessController() *AccessController {
	return &AccessController{}
}

// NewOwnedAccessController returns a controller already initialized with owner.
func NewOwnedAccessController(owner string) (*AccessController, error) {
	ac := NewAccessController()
	if err := ac.Initialize(owner); err != nil {
		return nil, err
	}
	return ac, nil
}

// Initialize sets the owner. A second call fails with ErrAlreadyInitialized.
func (a *AccessController) Initialize(owner string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.initialized {
		return ErrAlreadyInitialized
	}
	if owner == "" {
		return errors.New("owner identity is required")
	}

	a.owner = owner
	a.initialized = true
	return nil
}

// RequireOwner returns ErrUnauthorized unless caller is the owner.
func (a *AccessController) RequireOwner(caller string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.initialized || caller == "" || caller != a.owner {
		return ErrUnauthorized
	}
	return nil
}

// Owner returns the owner identity and whether one has been set.
func (a *AccessController) Owner() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner, a.initialized
}
