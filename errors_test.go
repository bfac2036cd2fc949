package esiasign

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := wrapError(CodeKeyAccess, "recover private key", errors.New("bad mac"))

	assert.True(t, errors.Is(err, ErrKeyAccess))
	assert.False(t, errors.Is(err, ErrKeyStoreAccess))
	assert.Equal(t, "recover private key: bad mac", err.Error())
}

func TestError_UnwrapReachesCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := fmt.Errorf("outer: %w", wrapError(CodeKeyStoreAccess, "open", cause))

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrKeyStoreAccess)
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(joinErrors([]error{newConfigError("a"), newConfigError("b")}))
	assert.True(t, ok)
	assert.Equal(t, CodeConfiguration, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorCode_String(t *testing.T) {
	tests := map[ErrorCode]string{
		CodeConfiguration:        "configuration",
		CodeKeyStoreAccess:       "key_store_access",
		CodeKeyEntryNotFound:     "key_entry_not_found",
		CodeKeyAccess:            "key_access",
		CodeAlgorithmUnavailable: "algorithm_unavailable",
		CodeSigning:              "signing",
		CodeEnvelopeEncoding:     "envelope_encoding",
		ErrorCode(99):            "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, code.String())
	}
}

func TestJoinErrors_Empty(t *testing.T) {
	assert.NoError(t, joinErrors(nil))
}
