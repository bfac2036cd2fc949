package esiasign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	pkiasn1 "github.com/mdean75/esia-sign/internal/asn1"
	"github.com/mdean75/esia-sign/keystore/memory"
)

var _ KeyStore = (*memory.Store)(nil)

const (
	testAlias    = "esia-client"
	testPassword = "correct horse battery staple"
)

func generateSelfSignedRSA(t *testing.T, bits int) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)
	return selfSigned(t, key.Public(), key, pkix.Name{CommonName: "test-rsa"}), key
}

func generateSelfSignedECDSA(t *testing.T, curve elliptic.Curve) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return selfSigned(t, key.Public(), key, pkix.Name{CommonName: "test-ecdsa"}), key
}

func generateSelfSignedEd25519(t *testing.T) (*x509.Certificate, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return selfSigned(t, pub, priv, pkix.Name{CommonName: "test-ed25519"}), priv
}

// selfSigned creates a minimal self-signed CA certificate.
func selfSigned(t *testing.T, pub crypto.PublicKey, signer crypto.Signer, subject pkix.Name) *x509.Certificate {
	t.Helper()
	return issue(t, pub, subject, nil, signer)
}

// issue creates a certificate for pub signed by parentKey. A nil parent makes
// it self-signed.
func issue(t *testing.T, pub crypto.PublicKey, subject pkix.Name, parent *x509.Certificate, parentKey crypto.Signer) *x509.Certificate {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	if parent == nil {
		parent = tmpl
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, parentKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

// newStore returns a memory store holding key and chain under testAlias.
func newStore(t *testing.T, key crypto.Signer, chain ...*x509.Certificate) *memory.Store {
	t.Helper()
	s := memory.New(memory.WithCost(bcrypt.MinCost))
	require.NoError(t, s.Add(testAlias, key, []byte(testPassword), chain...))
	return s
}

// newTestBuilder returns a builder wired to store with the test alias and
// password. The caller chooses algorithm and provider.
func newTestBuilder(store KeyStore) *Builder {
	return NewBuilder().
		WithKeyStore(Static(store)).
		WithSigningAlias(Static(testAlias)).
		WithKeyPassword(func() ([]byte, error) { return []byte(testPassword), nil })
}

// parsedEnvelope is the decoded form of a SignedData envelope.
type parsedEnvelope struct {
	sd          pkiasn1.SignedData
	signedAttrs []byte // SET-tagged, as covered by the signature
	attrs       []pkiasn1.Attribute
}

func parseEnvelope(t *testing.T, der []byte) parsedEnvelope {
	t.Helper()
	var ci pkiasn1.ContentInfo
	rest, err := asn1.Unmarshal(der, &ci)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.True(t, ci.ContentType.Equal(pkiasn1.OIDSignedData))

	var sd pkiasn1.SignedData
	_, err = asn1.Unmarshal(ci.Content.Bytes, &sd)
	require.NoError(t, err)
	require.Len(t, sd.SignerInfos, 1)

	raw := append([]byte(nil), sd.SignerInfos[0].SignedAttrs.FullBytes...)
	require.NotEmpty(t, raw)
	raw[0] = 0x31

	var attrs []pkiasn1.Attribute
	_, err = asn1.UnmarshalWithParams(raw, &attrs, "set")
	require.NoError(t, err)

	return parsedEnvelope{sd: sd, signedAttrs: raw, attrs: attrs}
}

// attr returns the single value of the attribute with the given type.
func (p parsedEnvelope) attr(t *testing.T, oid asn1.ObjectIdentifier) (asn1.RawValue, bool) {
	t.Helper()
	for _, a := range p.attrs {
		if a.Type.Equal(oid) {
			var v asn1.RawValue
			_, err := asn1.Unmarshal(a.Values.Bytes, &v)
			require.NoError(t, err)
			return v, true
		}
	}
	return asn1.RawValue{}, false
}

// content returns the attached payload, or false when detached.
func (p parsedEnvelope) content(t *testing.T) ([]byte, bool) {
	t.Helper()
	if p.sd.EncapContentInfo.IsDetached() {
		return nil, false
	}
	// encoding/asn1 keeps the [0] wrapper for RawValue fields; Bytes is the
	// OCTET STRING TLV.
	var octets []byte
	_, err := asn1.Unmarshal(p.sd.EncapContentInfo.EContent.Bytes, &octets)
	require.NoError(t, err)
	return octets, true
}
