package memory

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newEntry(t *testing.T) (*ecdsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "memory-store"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return key, cert
}

func TestStore_RoundTrip(t *testing.T) {
	key, cert := newEntry(t)
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.Add("signer", key, []byte("s3cret"), cert))

	ok, err := s.ContainsAlias("signer")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ContainsAlias("other")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.PrivateKey("signer", []byte("s3cret"))
	require.NoError(t, err)
	assert.Same(t, key, got)

	chain, err := s.CertificateChain("signer")
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, cert.Raw, chain[0].Raw)

	assert.Equal(t, []string{"signer"}, s.Aliases())
}

func TestStore_WrongPassword(t *testing.T) {
	key, cert := newEntry(t)
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.Add("signer", key, []byte("right"), cert))

	_, err := s.PrivateKey("signer", []byte("wrong"))
	assert.ErrorIs(t, err, ErrIncorrectPassword)
	assert.NotContains(t, err.Error(), "wrong")
}

func TestStore_UnknownAlias(t *testing.T) {
	s := New(WithCost(bcrypt.MinCost))

	_, err := s.PrivateKey("missing", nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.CertificateChain("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_AddValidation(t *testing.T) {
	key, cert := newEntry(t)
	s := New(WithCost(bcrypt.MinCost))

	assert.Error(t, s.Add("a", nil, nil, cert))
	assert.Error(t, s.Add("a", key, nil))

	ok, _ := s.ContainsAlias("a")
	assert.False(t, ok)
}

func TestStore_Remove(t *testing.T) {
	key, cert := newEntry(t)
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.Add("signer", key, nil, cert))

	s.Remove("signer")

	ok, err := s.ContainsAlias("signer")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ChainIsCopied(t *testing.T) {
	key, cert := newEntry(t)
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.Add("signer", key, nil, cert))

	chain, err := s.CertificateChain("signer")
	require.NoError(t, err)
	chain[0] = nil

	again, err := s.CertificateChain("signer")
	require.NoError(t, err)
	assert.NotNil(t, again[0])
}

func TestStore_ConcurrentReads(t *testing.T) {
	key, cert := newEntry(t)
	s := New(WithCost(bcrypt.MinCost))
	require.NoError(t, s.Add("signer", key, []byte("pw"), cert))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.PrivateKey("signer", []byte("pw"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
