package esiasign

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdean75/esia-sign/keystore/memory"
)

func TestBuild_MissingRequiredSuppliers(t *testing.T) {
	store := memory.New()

	// Every combination of the three required suppliers except all-present.
	for mask := 0; mask < 7; mask++ {
		b := NewBuilder()
		var missing int
		if mask&1 != 0 {
			b.WithKeyStore(Static[KeyStore](store))
		} else {
			missing++
		}
		if mask&2 != 0 {
			b.WithSigningAlias(Static("alias"))
		} else {
			missing++
		}
		if mask&4 != 0 {
			b.WithKeyPassword(Static([]byte("pw")))
		} else {
			missing++
		}

		s, err := b.Build()
		require.Error(t, err, "mask %03b", mask)
		assert.Nil(t, s)
		assert.True(t, errors.Is(err, ErrConfiguration), "mask %03b", mask)

		var joined interface{ Unwrap() []error }
		require.True(t, errors.As(err, &joined))
		assert.Len(t, joined.Unwrap(), missing, "mask %03b", mask)
	}
}

func TestBuild_Defaults(t *testing.T) {
	s, err := newTestBuilder(memory.New()).Build()
	require.NoError(t, err)

	cfg := s.Configuration()
	alg, err := cfg.Algorithm()
	require.NoError(t, err)
	assert.Equal(t, "GOST3411-2012-256WITHECGOST3410-2012-256", alg)

	prov, err := cfg.Provider()
	require.NoError(t, err)
	assert.Equal(t, "GOGOST", prov)

	detached, err := cfg.Detached()
	require.NoError(t, err)
	assert.True(t, detached)

	assert.Equal(t, ChainFull, cfg.Chain())
	assert.True(t, cfg.SigningTime())
	assert.Same(t, DefaultRegistry(), cfg.Registry())
}

func TestBuild_InvokesNoSupplier(t *testing.T) {
	calls := 0
	count := func() { calls++ }

	_, err := NewBuilder().
		WithKeyStore(func() (KeyStore, error) { count(); return nil, nil }).
		WithSigningAlias(func() (string, error) { count(); return "", nil }).
		WithKeyPassword(func() ([]byte, error) { count(); return nil, nil }).
		WithAlgorithm(func() (string, error) { count(); return "", nil }).
		WithProvider(func() (string, error) { count(); return "", nil }).
		WithDetached(func() (bool, error) { count(); return false, nil }).
		Build()
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestBuild_NilOptionalSettersAreReported(t *testing.T) {
	_, err := newTestBuilder(memory.New()).
		WithAlgorithm(nil).
		WithProvider(nil).
		WithDetached(nil).
		WithRegistry(nil).
		WithLogger(nil).
		WithMetrics(nil).
		WithChainMode(ChainMode(42)).
		Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 7)
}

func TestBuild_ConfigurationIsImmutable(t *testing.T) {
	b := newTestBuilder(memory.New())
	s, err := b.Build()
	require.NoError(t, err)

	b.WithAlgorithm(Static("SHA256WITHRSA")).WithDetached(Static(false))

	alg, err := s.Configuration().Algorithm()
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, alg)
	detached, err := s.Configuration().Detached()
	require.NoError(t, err)
	assert.True(t, detached)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ESIASIGN_TEST_ALIAS", "from-env")

	v, err := FromEnv("ESIASIGN_TEST_ALIAS")()
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	pw, err := PasswordFromEnv("ESIASIGN_TEST_ALIAS")()
	require.NoError(t, err)
	assert.Equal(t, []byte("from-env"), pw)

	_, err = FromEnv("ESIASIGN_TEST_UNSET_VARIABLE")()
	assert.ErrorContains(t, err, "ESIASIGN_TEST_UNSET_VARIABLE")
}

func TestParseChainMode(t *testing.T) {
	for _, m := range []ChainMode{ChainFull, ChainLeafOnly, ChainNone} {
		got, err := ParseChainMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseChainMode("bundle")
	assert.ErrorIs(t, err, ErrConfiguration)
}
