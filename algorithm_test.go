package esiasign

import (
	"bytes"
	"crypto"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LookupIsCaseInsensitive(t *testing.T) {
	r := DefaultRegistry()

	for _, tt := range []struct{ provider, algorithm, want string }{
		{"GOGOST", AlgorithmGOST256, AlgorithmGOST256},
		{"gogost", "gost3411-2012-512withecgost3410-2012-512", AlgorithmGOST512},
		{"std", "sha256withrsa", "SHA256WITHRSA"},
		{" STD ", " Sha384WithECDSA ", "SHA384WITHECDSA"},
		{"STD", "ed25519", "ED25519"},
	} {
		alg, ok := r.Lookup(tt.provider, tt.algorithm)
		require.True(t, ok, "%s/%s", tt.provider, tt.algorithm)
		assert.Equal(t, tt.want, alg.Name())
	}
}

func TestRegistry_Misses(t *testing.T) {
	r := DefaultRegistry()

	alg, ok := r.Lookup("BC", "SHA256WITHRSA")
	assert.False(t, ok)
	assert.Nil(t, alg)

	alg, ok = r.Lookup("STD", "SHA1WITHRSA")
	assert.False(t, ok)
	assert.Nil(t, alg)

	// Algorithms are scoped to their provider.
	_, ok = r.Lookup("STD", AlgorithmGOST256)
	assert.False(t, ok)
}

func TestRegistry_Providers(t *testing.T) {
	assert.Equal(t, []string{"GOGOST", "STD"}, DefaultRegistry().Providers())
	assert.Empty(t, NewRegistry().Providers())
}

type fakeProvider struct{ name string }

func (p fakeProvider) Name() string { return p.name }

func (p fakeProvider) Algorithm(string) (Algorithm, bool) { return fakeAlgorithm{}, true }

func (p fakeProvider) Algorithms() []string { return []string{"ANY"} }

type fakeAlgorithm struct{}

func (fakeAlgorithm) Name() string { return "ANY" }

func (fakeAlgorithm) DigestAlgorithm() pkix.AlgorithmIdentifier { return pkix.AlgorithmIdentifier{} }

func (fakeAlgorithm) SignatureAlgorithm() pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{}
}

func (fakeAlgorithm) Digest(data []byte) []byte { return data }

func (fakeAlgorithm) Sign(io.Reader, crypto.Signer, []byte) ([]byte, error) { return nil, nil }

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(NewStandardProvider())
	r.Register(fakeProvider{name: "std"})

	p, ok := r.Provider("STD")
	require.True(t, ok)
	assert.Equal(t, "std", p.Name())
	assert.Len(t, r.Providers(), 1)
}

func TestProviders_AlgorithmLists(t *testing.T) {
	assert.Equal(t, []string{AlgorithmGOST256, AlgorithmGOST512}, NewGOSTProvider().Algorithms())

	std := NewStandardProvider().Algorithms()
	assert.Len(t, std, 10)
	assert.Contains(t, std, "SHA512WITHRSAANDMGF1")
	assert.Equal(t, "ED25519", std[len(std)-1])

	// Callers cannot mutate the provider's table through the returned slice.
	std[0] = "MUTATED"
	assert.NotContains(t, NewStandardProvider().Algorithms(), "MUTATED")
}

func TestStandardAlgorithm_Identifiers(t *testing.T) {
	alg, ok := DefaultRegistry().Lookup(ProviderStandard, "SHA256WITHRSA")
	require.True(t, ok)
	// PKCS#1 v1.5 signature identifiers carry NULL parameters.
	assert.True(t, bytes.HasSuffix(marshalAlgID(t, alg.SignatureAlgorithm()), []byte{0x05, 0x00}))
	assert.False(t, bytes.HasSuffix(marshalAlgID(t, alg.DigestAlgorithm()), []byte{0x05, 0x00}))

	alg, ok = DefaultRegistry().Lookup(ProviderStandard, "SHA256WITHECDSA")
	require.True(t, ok)
	assert.False(t, bytes.HasSuffix(marshalAlgID(t, alg.SignatureAlgorithm()), []byte{0x05, 0x00}))
}

func marshalAlgID(t *testing.T, id pkix.AlgorithmIdentifier) []byte {
	t.Helper()
	der, err := asn1.Marshal(id)
	require.NoError(t, err)
	return der
}
