// Package session holds validated credentials for the lifetime of the
// process, keyed by opaque bearer tokens. Nothing is ever written to disk.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrUnauthenticated is returned when a token is unknown, either because
// it never existed or because the session was logged out.
var ErrUnauthenticated = errors.New("invalid or expired session")

// Credentials is the address/secret pair a session was created from.
type Credentials struct {
	Address string
	Secret  string
}

// Store is the process-wide session registry. Implementations must be
// safe for concurrent use.
type Store interface {
	Create(address, secret string) string
	Resolve(token string) (Credentials, error)
	Invalidate(token string)
}

type entry struct {
	creds     Credentials
	createdAt time.Time
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]entry
	now      func() time.Time
}

// NewStore returns an empty in-memory store. Sessions live until they are
// invalidated or the process exits; there is no TTL.
func NewStore() Store {
	return &memoryStore{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

func (s *memoryStore) Create(address, secret string) string {
	token := newToken()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = entry{
		creds:     Credentials{Address: address, Secret: secret},
		createdAt: s.now(),
	}
	return token
}

func (s *memoryStore) Resolve(token string) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[token]
	if !ok {
		return Credentials{}, ErrUnauthenticated
	}
	return e.creds, nil
}

func (s *memoryStore) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// newToken returns 256 bits from crypto/rand as URL-safe base64.
func newToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; a broken
		// entropy source is not something to limp past.
		panic(errors.Wrap(err, "reading random token bytes"))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
