package esiasign

import (
	"crypto"
	"crypto/x509/pkix"
	"io"
	"sort"
	"strings"
	"sync"
)

// Algorithm is a digest plus signature scheme that can produce a CMS
// SignerInfo signature.
type Algorithm interface {
	// Name is the canonical name, e.g. "SHA256WITHECDSA".
	Name() string
	// DigestAlgorithm identifies the digest for SignedData.digestAlgorithms
	// and SignerInfo.digestAlgorithm.
	DigestAlgorithm() pkix.AlgorithmIdentifier
	// SignatureAlgorithm identifies the scheme for SignerInfo.signatureAlgorithm.
	SignatureAlgorithm() pkix.AlgorithmIdentifier
	// Digest hashes data with the algorithm's digest function.
	Digest(data []byte) []byte
	// Sign signs message, the DER encoding of the signed attributes. A key of
	// the wrong type yields an *Error with CodeKeyAccess.
	Sign(rand io.Reader, key crypto.Signer, message []byte) ([]byte, error)
}

// Provider is a named family of algorithms.
type Provider interface {
	Name() string
	// Algorithm returns the algorithm registered under name. Lookup is
	// case-insensitive; a miss returns false.
	Algorithm(name string) (Algorithm, bool)
	// Algorithms lists canonical algorithm names in a stable order.
	Algorithms() []string
}

// Registry resolves (provider, algorithm) name pairs. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns a registry holding providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

var defaultRegistry = NewRegistry(NewGOSTProvider(), NewStandardProvider())

// DefaultRegistry returns the process-wide registry holding the GOGOST and STD
// providers. Providers registered on it are visible to every Signer built
// without WithRegistry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds p, replacing any provider with the same name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToUpper(p.Name())] = p
}

// Provider returns the provider registered under name.
func (r *Registry) Provider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// Lookup resolves an algorithm by provider and algorithm name.
func (r *Registry) Lookup(provider, algorithm string) (Algorithm, bool) {
	p, ok := r.Provider(provider)
	if !ok {
		return nil, false
	}
	return p.Algorithm(algorithm)
}

// Providers lists registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}

// algorithmSet is a case-insensitive table backing the built-in providers.
type algorithmSet struct {
	order []string
	algs  map[string]Algorithm
}

func newAlgorithmSet(algs ...Algorithm) algorithmSet {
	s := algorithmSet{algs: make(map[string]Algorithm, len(algs))}
	for _, a := range algs {
		s.order = append(s.order, a.Name())
		s.algs[strings.ToUpper(a.Name())] = a
	}
	return s
}

func (s algorithmSet) lookup(name string) (Algorithm, bool) {
	a, ok := s.algs[strings.ToUpper(strings.TrimSpace(name))]
	return a, ok
}

func (s algorithmSet) names() []string {
	return append([]string(nil), s.order...)
}
