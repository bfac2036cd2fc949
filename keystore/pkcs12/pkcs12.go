// Package pkcs12 provides a key store backed by a PKCS#12 (.p12/.pfx) file.
//
// Open verifies the integrity MAC and loads the certificates. It also
// decrypts each key bag once to pair the key with its certificate, then
// drops the key material. PrivateKey decrypts the bag again on every call
// with the entry password passed to it, and nothing is cached. One password
// protects both the MAC and the key bags, so the entry password of every
// alias equals the store password, as with files written by openssl and
// keytool.
//
// Files using the legacy pbeWithSHAAnd3-KeyTripleDES-CBC and
// pbeWithSHAAnd40BitRC2-CBC schemes are read with golang.org/x/crypto/pkcs12.
// Files it does not implement, such as PBES2 with AES and a SHA-256 MAC as
// written by OpenSSL 3, are read with software.sslmate.com/src/go-pkcs12.
// Only RSA and ECDSA keys are supported; GOST keys live in PEM bundles, see
// package pkcs8.
package pkcs12

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	xpkcs12 "golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/mdean75/esia-sign/internal/ber"
	"github.com/mdean75/esia-sign/internal/certchain"
)

const (
	headerFriendlyName = "friendlyName"
	headerLocalKeyID   = "localKeyId"

	blockCertificate = "CERTIFICATE"
	blockPrivateKey  = "PRIVATE KEY"
)

var (
	// ErrNotFound is returned for an unknown alias.
	ErrNotFound = errors.New("pkcs12: no entry under alias")

	// ErrIncorrectPassword is returned when the MAC or a key bag cannot be
	// verified with the supplied password.
	ErrIncorrectPassword = xpkcs12.ErrIncorrectPassword
)

type entry struct {
	// index is the position of the key bag among all key bags; PrivateKey
	// uses it to find the bag again after decrypting.
	index int
	chain []*x509.Certificate
}

// Store is an opened PKCS#12 file. It is immutable after Open and safe for
// concurrent use.
type Store struct {
	der     []byte
	entries map[string]entry
}

// OpenFile reads and opens the PKCS#12 file at path.
func OpenFile(path string, password []byte) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pkcs12: read %s: %w", path, err)
	}
	return Open(data, password)
}

// Open parses data, which may be BER encoded, and verifies its MAC with
// password. Each private key becomes one entry; its alias is the
// friendlyName bag attribute, or the hex localKeyId, or its 1-based position
// in the file.
func Open(data, password []byte) (*Store, error) {
	der, err := ber.Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("pkcs12: normalize encoding: %w", err)
	}
	blocks, err := toPEM(der, password)
	if err != nil {
		return nil, fmt.Errorf("pkcs12: decode: %w", err)
	}

	var (
		keys  []*pem.Block
		certs []*x509.Certificate
		ids   = make(map[*x509.Certificate]string)
		pubs  []crypto.PublicKey
	)
	for _, b := range blocks {
		switch b.Type {
		case blockCertificate:
			cert, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("pkcs12: parse certificate: %w", err)
			}
			certs = append(certs, cert)
			ids[cert] = b.Headers[headerLocalKeyID]
		case blockPrivateKey:
			key, err := parseKey(b.Bytes)
			clear(b.Bytes)
			if err != nil {
				return nil, err
			}
			keys = append(keys, b)
			pubs = append(pubs, key.Public())
		}
	}

	s := &Store{der: der, entries: make(map[string]entry, len(keys))}
	for i, k := range keys {
		alias := aliasOf(k, i)
		if _, dup := s.entries[alias]; dup {
			return nil, fmt.Errorf("pkcs12: duplicate alias %q", alias)
		}
		leaf := findLeaf(certs, ids, k.Headers[headerLocalKeyID], pubs[i])
		if leaf == nil {
			return nil, fmt.Errorf("pkcs12: no certificate for key %q", alias)
		}
		s.entries[alias] = entry{index: i, chain: certchain.Build(leaf, certs)}
	}
	return s, nil
}

// Aliases lists the entry aliases in sorted order.
func (s *Store) Aliases() []string {
	out := make([]string, 0, len(s.entries))
	for a := range s.entries {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// ContainsAlias reports whether alias names a key entry.
func (s *Store) ContainsAlias(alias string) (bool, error) {
	_, ok := s.entries[alias]
	return ok, nil
}

// PrivateKey decrypts the key bag under alias with password.
func (s *Store) PrivateKey(alias string, password []byte) (crypto.Signer, error) {
	e, ok := s.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	blocks, err := toPEM(s.der, password)
	if err != nil {
		return nil, fmt.Errorf("pkcs12: decrypt entry %q: %w", alias, err)
	}

	var key crypto.Signer
	n := 0
	for _, b := range blocks {
		if b.Type != blockPrivateKey {
			continue
		}
		if n == e.index {
			key, err = parseKey(b.Bytes)
		}
		clear(b.Bytes)
		n++
	}
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("pkcs12: key bag for %q disappeared", alias)
	}
	return key, nil
}

// CertificateChain returns the chain under alias, signer certificate first.
func (s *Store) CertificateChain(alias string) ([]*x509.Certificate, error) {
	e, ok := s.entries[alias]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	return append([]*x509.Certificate(nil), e.chain...), nil
}

// toPEM decodes der with x/crypto and retries with go-pkcs12 when x/crypto
// reports an algorithm it does not implement. Both emit PKCS#1 or SEC 1 key
// bytes under the "PRIVATE KEY" type.
func toPEM(der, password []byte) ([]*pem.Block, error) {
	blocks, err := xpkcs12.ToPEM(der, string(password))
	var unsupported xpkcs12.NotImplementedError
	if !errors.As(err, &unsupported) {
		return blocks, err
	}
	blocks, err = gopkcs12.ToPEM(der, string(password))
	if errors.Is(err, gopkcs12.ErrIncorrectPassword) {
		return nil, ErrIncorrectPassword
	}
	return blocks, err
}

// parseKey decodes the PKCS#1 or SEC 1 bytes that ToPEM emits.
func parseKey(der []byte) (crypto.Signer, error) {
	if k, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(der); err == nil {
		return k, nil
	}
	return nil, errors.New("pkcs12: unsupported private key type")
}

func aliasOf(b *pem.Block, index int) string {
	if name := b.Headers[headerFriendlyName]; name != "" {
		return name
	}
	if id := b.Headers[headerLocalKeyID]; id != "" {
		return id
	}
	return strconv.Itoa(index + 1)
}

// findLeaf prefers the certificate sharing the key's localKeyId and falls
// back to comparing public keys.
func findLeaf(certs []*x509.Certificate, ids map[*x509.Certificate]string, keyID string, pub crypto.PublicKey) *x509.Certificate {
	if keyID != "" {
		for _, c := range certs {
			if ids[c] == keyID {
				return c
			}
		}
	}
	for _, c := range certs {
		if k, ok := c.PublicKey.(interface{ Equal(crypto.PublicKey) bool }); ok && k.Equal(pub) {
			return c
		}
	}
	return nil
}
