// Package pkcs11 provides a key store backed by a PKCS#11 token (HSM,
// smart card or SoftHSM) through crypto11.
//
// An alias is the CKA_LABEL shared by the private key and its certificate.
// The token PIN unlocks the session once at Open. Private keys never leave
// the token; PrivateKey returns a crypto.Signer that signs on the device.
package pkcs11

import (
	"crypto"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ThalesIgnite/crypto11"
)

var (
	// ErrNotFound is returned when no key pair carries the alias as label.
	ErrNotFound = errors.New("pkcs11: no key pair under alias")

	// ErrIncorrectPassword is returned when an entry password is supplied
	// that differs from the token PIN.
	ErrIncorrectPassword = errors.New("pkcs11: entry password does not match token PIN")

	// ErrModuleNotFound is returned when no PKCS#11 module library is found.
	ErrModuleNotFound = errors.New("pkcs11: module not found")
)

// DefaultModulePaths are searched when Config.Module is empty.
var DefaultModulePaths = []string{
	"/usr/lib/softhsm/libsofthsm2.so",
	"/usr/lib64/softhsm/libsofthsm2.so",
	"/usr/lib/x86_64-linux-gnu/softhsm/libsofthsm2.so",
	"/usr/lib64/pkcs11/libsofthsm2.so",
	"/usr/local/lib/softhsm/libsofthsm2.so",
	"/opt/homebrew/lib/softhsm/libsofthsm2.so",
	"/usr/local/Cellar/softhsm/*/lib/softhsm/libsofthsm2.so",
}

// Config selects the module and token.
type Config struct {
	// Module is the path of the PKCS#11 library. Empty means search
	// DefaultModulePaths.
	Module     string
	TokenLabel string
	Pin        string
	// Intermediates are appended to the token certificate when building a
	// chain; tokens usually hold only the end-entity certificate.
	Intermediates []*x509.Certificate
}

// Store is an open session with a token. Close it when done.
type Store struct {
	ctx           *crypto11.Context
	pin           string
	intermediates []*x509.Certificate
}

// Open loads the module, logs in to the token and returns a Store.
func Open(cfg Config) (*Store, error) {
	if cfg.TokenLabel == "" {
		return nil, errors.New("pkcs11: token label is required")
	}
	module, err := findModule(cfg.Module, DefaultModulePaths)
	if err != nil {
		return nil, err
	}
	ctx, err := crypto11.Configure(&crypto11.Config{
		Path:       module,
		TokenLabel: cfg.TokenLabel,
		Pin:        cfg.Pin,
	})
	if err != nil {
		return nil, fmt.Errorf("pkcs11: open token %q: %w", cfg.TokenLabel, err)
	}
	return &Store{
		ctx:           ctx,
		pin:           cfg.Pin,
		intermediates: append([]*x509.Certificate(nil), cfg.Intermediates...),
	}, nil
}

// Close logs out and unloads the module.
func (s *Store) Close() error {
	if s.ctx == nil {
		return nil
	}
	return s.ctx.Close()
}

// ContainsAlias reports whether a key pair labelled alias exists.
func (s *Store) ContainsAlias(alias string) (bool, error) {
	key, err := s.ctx.FindKeyPair(nil, []byte(alias))
	if err != nil {
		return false, fmt.Errorf("pkcs11: find key pair %q: %w", alias, err)
	}
	return key != nil, nil
}

// PrivateKey returns a token-backed signer for alias. The session is already
// authenticated, so password must be empty or equal to the PIN.
func (s *Store) PrivateKey(alias string, password []byte) (crypto.Signer, error) {
	if len(password) > 0 && subtle.ConstantTimeCompare(password, []byte(s.pin)) != 1 {
		return nil, ErrIncorrectPassword
	}
	key, err := s.ctx.FindKeyPair(nil, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("pkcs11: find key pair %q: %w", alias, err)
	}
	if key == nil {
		return nil, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	return key, nil
}

// CertificateChain returns the certificate labelled alias followed by the
// configured intermediates.
func (s *Store) CertificateChain(alias string) ([]*x509.Certificate, error) {
	cert, err := s.ctx.FindCertificate(nil, []byte(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("pkcs11: find certificate %q: %w", alias, err)
	}
	if cert == nil {
		return nil, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	return append([]*x509.Certificate{cert}, s.intermediates...), nil
}

// findModule returns explicit if set and present, otherwise the first entry
// of candidates that exists. Candidates may contain glob patterns.
func findModule(explicit string, candidates []string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %w", ErrModuleNotFound, err)
		}
		return explicit, nil
	}
	for _, path := range candidates {
		if strings.Contains(path, "*") {
			if matches, err := filepath.Glob(path); err == nil && len(matches) > 0 {
				return matches[0], nil
			}
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrModuleNotFound
}
