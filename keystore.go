package esiasign

import (
	"crypto"
	"crypto/x509"
)

// KeyStore is a read-only view of a credential container holding private keys
// and their certificate chains under string aliases. Implementations live in
// the keystore/ subpackages; any type with these methods can be supplied.
//
// Implementations must be safe for concurrent use by multiple Sign calls.
type KeyStore interface {
	// ContainsAlias reports whether an entry exists under alias. An error
	// means the store could not be consulted.
	ContainsAlias(alias string) (bool, error)

	// PrivateKey recovers the private key stored under alias using password.
	// The password slice must not be retained.
	PrivateKey(alias string, password []byte) (crypto.Signer, error)

	// CertificateChain returns the certificates stored under alias, signer
	// certificate first.
	CertificateChain(alias string) ([]*x509.Certificate, error)
}
