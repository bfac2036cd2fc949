package pkcs12

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	esiasign "github.com/mdean75/esia-sign"
)

const storePassword = "changeit"

var _ esiasign.KeyStore = (*Store)(nil)

func newCert(t *testing.T, subject string, pub crypto.PublicKey, parent *x509.Certificate, parentKey crypto.Signer) *x509.Certificate {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: subject},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
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

// fixture is a leaf issued by an intermediate issued by a root.
type fixture struct {
	key                    *ecdsa.PrivateKey
	leaf, intermediate, ca *x509.Certificate
	pfx                    []byte
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ca := newCert(t, "root", caKey.Public(), nil, caKey)

	intKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	intermediate := newCert(t, "intermediate", intKey.Public(), ca, caKey)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leaf := newCert(t, "leaf", key.Public(), intermediate, intKey)

	// CA certificates deliberately out of order.
	pfx, err := gopkcs12.LegacyDES.Encode(key, leaf, []*x509.Certificate{ca, intermediate}, storePassword)
	require.NoError(t, err)
	return fixture{key: key, leaf: leaf, intermediate: intermediate, ca: ca, pfx: pfx}
}

func localKeyID(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return hex.EncodeToString(sum[:])
}

func TestOpen_LoadsEntryAndChain(t *testing.T) {
	f := newFixture(t)
	s, err := Open(f.pfx, []byte(storePassword))
	require.NoError(t, err)

	alias := localKeyID(f.leaf)
	assert.Equal(t, []string{alias}, s.Aliases())

	ok, err := s.ContainsAlias(alias)
	require.NoError(t, err)
	assert.True(t, ok)

	chain, err := s.CertificateChain(alias)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, f.leaf.Raw, chain[0].Raw)
	assert.Equal(t, f.intermediate.Raw, chain[1].Raw)
	assert.Equal(t, f.ca.Raw, chain[2].Raw)

	key, err := s.PrivateKey(alias, []byte(storePassword))
	require.NoError(t, err)
	assert.True(t, f.key.Equal(key))
}

func TestOpen_WrongStorePassword(t *testing.T) {
	f := newFixture(t)
	_, err := Open(f.pfx, []byte("not-it"))
	assert.ErrorIs(t, err, ErrIncorrectPassword)
	assert.NotContains(t, err.Error(), "not-it")
}

func TestOpen_ModernEncryption(t *testing.T) {
	f := newFixture(t)
	pfx, err := gopkcs12.Modern.Encode(f.key, f.leaf, []*x509.Certificate{f.intermediate, f.ca}, storePassword)
	require.NoError(t, err)

	s, err := Open(pfx, []byte(storePassword))
	require.NoError(t, err)
	alias := localKeyID(f.leaf)
	assert.Equal(t, []string{alias}, s.Aliases())

	chain, err := s.CertificateChain(alias)
	require.NoError(t, err)
	assert.Len(t, chain, 3)

	key, err := s.PrivateKey(alias, []byte(storePassword))
	require.NoError(t, err)
	assert.True(t, f.key.Equal(key))

	_, err = s.PrivateKey(alias, []byte("guess"))
	assert.ErrorIs(t, err, ErrIncorrectPassword)
	_, err = Open(pfx, []byte("guess"))
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestOpen_IndefiniteLengthOuterSequence(t *testing.T) {
	f := newFixture(t)
	der := f.pfx
	require.Equal(t, byte(0x30), der[0])
	require.NotZero(t, der[1]&0x80, "fixture expected to use long-form length")
	n := int(der[1] & 0x7f)

	indefinite := append([]byte{0x30, 0x80}, der[2+n:]...)
	indefinite = append(indefinite, 0x00, 0x00)

	s, err := Open(indefinite, []byte(storePassword))
	require.NoError(t, err)
	assert.Len(t, s.Aliases(), 1)
}

func TestOpen_Garbage(t *testing.T) {
	_, err := Open([]byte{0x30, 0x03, 0x02, 0x01}, []byte(storePassword))
	assert.Error(t, err)
}

func TestPrivateKey_WrongPassword(t *testing.T) {
	f := newFixture(t)
	s, err := Open(f.pfx, []byte(storePassword))
	require.NoError(t, err)

	_, err = s.PrivateKey(localKeyID(f.leaf), []byte("guess"))
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestUnknownAlias(t *testing.T) {
	f := newFixture(t)
	s, err := Open(f.pfx, []byte(storePassword))
	require.NoError(t, err)

	_, err = s.PrivateKey("nobody", []byte(storePassword))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CertificateChain("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err := s.ContainsAlias("nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenFile(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "client.p12")
	require.NoError(t, os.WriteFile(path, f.pfx, 0o600))

	s, err := OpenFile(path, []byte(storePassword))
	require.NoError(t, err)
	assert.Len(t, s.Aliases(), 1)

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.p12"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_SignsThroughEngine(t *testing.T) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	cert := newCert(t, "rsa-client", rsaKey.Public(), nil, rsaKey)
	pfx, err := gopkcs12.LegacyDES.Encode(rsaKey, cert, nil, storePassword)
	require.NoError(t, err)

	s, err := Open(pfx, []byte(storePassword))
	require.NoError(t, err)
	alias := localKeyID(cert)

	build := func(password string) *esiasign.Signer {
		signer, err := esiasign.NewBuilder().
			WithKeyStore(esiasign.Static[esiasign.KeyStore](s)).
			WithSigningAlias(esiasign.Static(alias)).
			WithKeyPassword(func() ([]byte, error) { return []byte(password), nil }).
			WithProvider(esiasign.Static(esiasign.ProviderStandard)).
			WithAlgorithm(esiasign.Static("SHA256WITHRSA")).
			Build()
		require.NoError(t, err)
		return signer
	}

	res, err := build(storePassword).Sign([]byte("p12"))
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, res.Certificate.Raw)

	_, err = build("wrong").Sign([]byte("p12"))
	assert.ErrorIs(t, err, esiasign.ErrKeyAccess)
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}
