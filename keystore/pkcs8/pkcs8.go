// Package pkcs8 provides a key store backed by a PEM bundle holding one
// PKCS#8 private key and its certificate chain. This is the layout openssl
// writes and the one tools exporting keys from CryptoPro containers produce.
//
// Besides the key types crypto/x509 parses, GOST R 34.10-2012 keys (256 and
// 512 bit) are decoded into *gost3410.PrivateKey. An ENCRYPTED PRIVATE KEY
// block is decrypted with the entry password using PBES2 (PBKDF2 and
// AES-CBC). A plain PRIVATE KEY block carries no password, so the entry
// password must be empty.
//
// The key stays encoded in the store and is parsed on every PrivateKey call.
package pkcs8

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdean75/esia-sign/internal/certchain"
)

const (
	blockCertificate         = "CERTIFICATE"
	blockPrivateKey          = "PRIVATE KEY"
	blockEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
)

var (
	// ErrNotFound is returned for an unknown alias.
	ErrNotFound = errors.New("pkcs8: no entry under alias")

	// ErrIncorrectPassword is returned when the entry password does not
	// decrypt the key, or a password is given for an unencrypted key.
	ErrIncorrectPassword = errors.New("pkcs8: incorrect key password")

	// ErrUnsupported is returned for key algorithms and encryption schemes
	// this package cannot decode.
	ErrUnsupported = errors.New("pkcs8: unsupported key encoding")
)

// Store is an opened PEM bundle with a single entry. It is immutable after
// Open and safe for concurrent use.
type Store struct {
	alias     string
	keyDER    []byte
	encrypted bool
	chain     []*x509.Certificate
}

// OpenFile reads the bundle at path. The entry alias is the file name without
// its extension, so /etc/esia/client.pem holds the alias "client".
func OpenFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pkcs8: read %s: %w", path, err)
	}
	base := filepath.Base(path)
	return Open(strings.TrimSuffix(base, filepath.Ext(base)), data)
}

// Open parses a PEM bundle with exactly one PRIVATE KEY or ENCRYPTED PRIVATE
// KEY block and at least one CERTIFICATE block. The first certificate is the
// signer's; the rest are ordered into its chain by issuer.
func Open(alias string, data []byte) (*Store, error) {
	if alias == "" {
		return nil, errors.New("pkcs8: alias must not be empty")
	}
	s := &Store{alias: alias}
	var certs []*x509.Certificate
	for rest := data; ; {
		var b *pem.Block
		b, rest = pem.Decode(rest)
		if b == nil {
			break
		}
		switch b.Type {
		case blockCertificate:
			cert, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("pkcs8: parse certificate: %w", err)
			}
			certs = append(certs, cert)
		case blockPrivateKey, blockEncryptedPrivateKey:
			if s.keyDER != nil {
				return nil, errors.New("pkcs8: bundle holds more than one private key")
			}
			s.keyDER = bytes.Clone(b.Bytes)
			s.encrypted = b.Type == blockEncryptedPrivateKey
		default:
			return nil, fmt.Errorf("pkcs8: unexpected PEM block %q", b.Type)
		}
	}
	if s.keyDER == nil {
		return nil, errors.New("pkcs8: bundle holds no private key")
	}
	if len(certs) == 0 {
		return nil, errors.New("pkcs8: bundle holds no certificate")
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	s.chain = certchain.Build(certs[0], certs[1:])
	return s, nil
}

// check rejects keys that PrivateKey could never decode, without keeping
// the decoded key.
func (s *Store) check() error {
	if s.encrypted {
		_, err := parseEncryptedPrivateKeyInfo(s.keyDER)
		return err
	}
	_, err := parsePrivateKey(s.keyDER)
	return err
}

// Aliases returns the single alias of the bundle.
func (s *Store) Aliases() []string {
	return []string{s.alias}
}

// ContainsAlias reports whether alias names the bundle's entry.
func (s *Store) ContainsAlias(alias string) (bool, error) {
	return alias == s.alias, nil
}

// PrivateKey decodes the key under alias, decrypting it with password when
// the bundle holds an ENCRYPTED PRIVATE KEY.
func (s *Store) PrivateKey(alias string, password []byte) (crypto.Signer, error) {
	if alias != s.alias {
		return nil, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	if !s.encrypted {
		if len(password) != 0 {
			return nil, fmt.Errorf("%w: key %q is not encrypted", ErrIncorrectPassword, alias)
		}
		return parsePrivateKey(s.keyDER)
	}

	der, err := decrypt(s.keyDER, password)
	if err != nil {
		return nil, err
	}
	defer clear(der)
	key, err := parsePrivateKey(der)
	if err != nil && !errors.Is(err, ErrUnsupported) {
		// Garbage that survived the padding check.
		return nil, ErrIncorrectPassword
	}
	return key, err
}

// CertificateChain returns the chain under alias, signer certificate first.
func (s *Store) CertificateChain(alias string) ([]*x509.Certificate, error) {
	if alias != s.alias {
		return nil, fmt.Errorf("%w %q", ErrNotFound, alias)
	}
	return append([]*x509.Certificate(nil), s.chain...), nil
}

// parsePrivateKey decodes a PrivateKeyInfo. GOST keys are decoded here;
// everything else goes to crypto/x509.
func parsePrivateKey(der []byte) (crypto.Signer, error) {
	var info privateKeyInfo
	if err := unmarshalStrict(der, &info); err != nil {
		return nil, fmt.Errorf("pkcs8: malformed PrivateKeyInfo: %w", err)
	}
	if isGOST(info.Algorithm.Algorithm) {
		key, err := parseGOSTKey(info)
		if err != nil {
			return nil, err
		}
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot sign", ErrUnsupported, key)
	}
	return signer, nil
}
