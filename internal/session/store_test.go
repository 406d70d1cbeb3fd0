package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndResolve(t *testing.T) {
	store := NewStore()

	token := store.Create("user@example.com", "secret")
	require.NotEmpty(t, token)

	creds, err := store.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", creds.Address)
	assert.Equal(t, "secret", creds.Secret)
}

func TestTokensAreUniqueAndOpaque(t *testing.T) {
	store := NewStore()

	first := store.Create("user@example.com", "secret")
	second := store.Create("user@example.com", "secret")

	assert.NotEqual(t, first, second)
	// 32 random bytes as unpadded URL-safe base64.
	assert.Len(t, first, 43)
	assert.NotContains(t, first, "user@example.com")
	assert.NotContains(t, first, "secret")
}

func TestResolveUnknownToken(t *testing.T) {
	store := NewStore()

	_, err := store.Resolve("no-such-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestInvalidate(t *testing.T) {
	store := NewStore()

	token := store.Create("user@example.com", "secret")
	store.Invalidate(token)

	_, err := store.Resolve(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// A second invalidation of the same token is not an error.
	store.Invalidate(token)
	store.Invalidate("never-existed")
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := store.Create("user@example.com", "secret")
			if _, err := store.Resolve(token); err != nil {
				t.Error(err)
			}
			store.Invalidate(token)
		}()
	}
	wg.Wait()
}
