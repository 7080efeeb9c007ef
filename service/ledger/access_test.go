package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessController_Initialize(t *testing.T) {
	ac := NewAccessController()

	_, ok := ac.Owner()
	assert.False(t, ok)
	require.ErrorIs(t, ac.RequireOwner(testOwner), ErrUnauthorized)

	require.NoError(t, ac.Initialize(testOwner))
	owner, ok := ac.Owner()
	assert.True(t, ok)
	assert.Equal(t, testOwner, owner)

	// The owner can never be reassigned.
	require.ErrorIs(t, ac.Initialize(alice), ErrAlreadyInitialized)
	require.ErrorIs(t, ac.Initialize(testOwner), ErrAlreadyInitialized)
	owner, _ = ac.Owner()
	assert.Equal(t, testOwner, owner)
}

func TestAccessController_EmptyOwner(t *testing.T) {
	ac := NewAccessController()
	err := ac.Initialize("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner identity is required")

	_, ok := ac.Owner()
	assert.False(t, ok)

	_, err = NewOwnedAccessController("")
	require.Error(t, err)
}

func TestAccessController_RequireOwner(t *testing.T) {
	ac, err := NewOwnedAccessController(testOwner)
	require.NoError(t, err)

	assert.NoError(t, ac.RequireOwner(testOwner))
	assert.ErrorIs(t, ac.RequireOwner(alice), ErrUnauthorized)
	assert.ErrorIs(t, ac.RequireOwner(""), ErrUnauthorized)
}

func TestAccessController_ConcurrentInitialize(t *testing.T) {
	ac := NewAccessController()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, candidate := range []string{testOwner, alice, bob, testOwner, alice} {
		wg.Add(1)
		go func(owner string) {
			defer wg.Done()
			if err := ac.Initialize(owner); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(candidate)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	_, ok := ac.Owner()
	assert.True(t, ok)
}
