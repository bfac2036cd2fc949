package esiasign

import (
	"crypto"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"hash"
	"io"

	"go.cypherpunks.ru/gogost/v5/gost3410"
	"go.cypherpunks.ru/gogost/v5/gost34112012256"
	"go.cypherpunks.ru/gogost/v5/gost34112012512"

	pkiasn1 "github.com/mdean75/esia-sign/internal/asn1"
)

// ProviderGOST names the provider backed by gogost.
const ProviderGOST = "GOGOST"

// GOST R 34.10-2012 algorithm names.
const (
	AlgorithmGOST256 = "GOST3411-2012-256WITHECGOST3410-2012-256"
	AlgorithmGOST512 = "GOST3411-2012-512WITHECGOST3410-2012-512"
)

// gostAlgorithm pairs a Streebog digest with GOST R 34.10-2012 signing. The
// key must be a *gost3410.PrivateKey (or any crypto.Signer whose public key is
// a *gost3410.PublicKey) on a curve of the matching size.
type gostAlgorithm struct {
	name      string
	pointSize int
	newHash   func() hash.Hash
	digestOID asn1.ObjectIdentifier
	keyOID    asn1.ObjectIdentifier
}

type gostProvider struct {
	algorithmSet
}

// NewGOSTProvider returns the GOGOST provider with the 256- and 512-bit
// GOST R 34.10-2012 algorithms.
func NewGOSTProvider() Provider {
	return &gostProvider{algorithmSet: newAlgorithmSet(
		&gostAlgorithm{
			name:      AlgorithmGOST256,
			pointSize: 32,
			newHash:   func() hash.Hash { return gost34112012256.New() },
			digestOID: pkiasn1.OIDDigestGOST34112012256,
			keyOID:    pkiasn1.OIDGOST34102012256,
		},
		&gostAlgorithm{
			name:      AlgorithmGOST512,
			pointSize: 64,
			newHash:   func() hash.Hash { return gost34112012512.New() },
			digestOID: pkiasn1.OIDDigestGOST34112012512,
			keyOID:    pkiasn1.OIDGOST34102012512,
		},
	)}
}

func (p *gostProvider) Name() string { return ProviderGOST }

func (p *gostProvider) Algorithm(name string) (Algorithm, bool) { return p.lookup(name) }

func (p *gostProvider) Algorithms() []string { return p.names() }

func (a *gostAlgorithm) Name() string { return a.name }

func (a *gostAlgorithm) DigestAlgorithm() pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{Algorithm: a.digestOID}
}

// SignatureAlgorithm uses the key algorithm OID, as CryptoPro and Bouncy Castle
// do in SignerInfo.
func (a *gostAlgorithm) SignatureAlgorithm() pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{Algorithm: a.keyOID}
}

func (a *gostAlgorithm) Digest(data []byte) []byte {
	h := a.newHash()
	h.Write(data)
	return h.Sum(nil)
}

// Sign returns the big-endian s||r signature (RFC 4491 section 2.2.2) over
// the Streebog digest of message. GOST treats the digest as a little-endian
// integer while gogost reads it big-endian, so the digest is reversed first.
func (a *gostAlgorithm) Sign(rand io.Reader, key crypto.Signer, message []byte) ([]byte, error) {
	pub, ok := key.Public().(*gost3410.PublicKey)
	if !ok {
		return nil, newError(CodeKeyAccess, fmt.Sprintf("%s cannot sign with a %T key", a.name, key.Public()))
	}
	if size := pub.C.PointSize(); size != a.pointSize {
		return nil, newError(CodeKeyAccess,
			fmt.Sprintf("%s requires a %d-bit GOST key, got %d-bit", a.name, a.pointSize*8, size*8))
	}
	return key.Sign(rand, reverse(a.Digest(message)), nil)
}

// reverse returns b with its bytes in reverse order.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
