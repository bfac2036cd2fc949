// Package memory provides an in-process key store. Entry passwords are kept
// only as bcrypt hashes; the private key is returned when the supplied
// password matches.
package memory

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned for an unknown alias.
	ErrNotFound = errors.New("memory: no entry under alias")
	// ErrIncorrectPassword is returned when the entry password does not match.
	ErrIncorrectPassword = errors.New("memory: incorrect entry password")
)

type entry struct {
	key          crypto.Signer
	chain        []*x509.Certificate
	passwordHash []byte
}

// Store is a concurrency-safe map of alias to key entry.
type Store struct {
	mu      sync.RWMutex
	cost    int
	entries map[string]entry
}

// Option configures a Store.
type Option func(*Store)

// WithCost sets the bcrypt cost used when hashing entry passwords.
func WithCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{cost: bcrypt.DefaultCost, entries: make(map[string]entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores key and its certificate chain (signer first) under alias,
// protected by password. An existing entry is replaced. Passwords longer than
// 72 bytes are rejected by bcrypt.
func (s *Store) Add(alias string, key crypto.Signer, password []byte, chain ...*x509.Certificate) error {
	if key == nil {
		return errors.New("memory: nil private key")
	}
	if len(chain) == 0 {
		return errors.New("memory: at least one certificate is required")
	}
	hash, err := bcrypt.GenerateFromPassword(password, s.cost)
	if err != nil {
		return fmt.Errorf("memory: hash entry password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[alias] = entry{
		key:          key,
		chain:        append([]*x509.Certificate(nil), chain...),
		passwordHash: hash,
	}
	return nil
}

// Remove deletes the entry under alias, if any.
func (s *Store) Remove(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, alias)
}

// Aliases lists the stored aliases in sorted order.
func (s *Store) Aliases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for a := range s.entries {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// ContainsAlias reports whether alias is present.
func (s *Store) ContainsAlias(alias string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[alias]
	return ok, nil
}

// PrivateKey returns the key under alias when password matches.
func (s *Store) PrivateKey(alias string, password []byte) (crypto.Signer, error) {
	e, err := s.get(alias)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(e.passwordHash, password); err != nil {
		return nil, ErrIncorrectPassword
	}
	return e.key, nil
}

// CertificateChain returns a copy of the chain under alias.
func (s *Store) CertificateChain(alias string) ([]*x509.Certificate, error) {
	e, err := s.get(alias)
	if err != nil {
		return nil, err
	}
	return append([]*x509.Certificate(nil), e.chain...), nil
}

func (s *Store) get(alias string) (entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[alias]
	if !ok {
		return entry{}, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	return e, nil
}
