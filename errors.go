/*
Package esiasign produces CMS (PKCS #7) SignedData signatures for requests to
the ESIA identity gateway.

A Signer is assembled with NewBuilder from lazily evaluated suppliers: the key
store, the entry alias and password, the algorithm and provider names, and the
detached flag are resolved on every Sign call, never at Build time. The default
algorithm is GOST3411-2012-256WITHECGOST3410-2012-256 served by the GOGOST
provider; RSA, RSA-PSS, ECDSA and Ed25519 are available through the STD
provider. Envelopes interoperate with OpenSSL and Bouncy Castle.
*/
package esiasign

import "errors"

// ErrorCode identifies the category of a signing error.
type ErrorCode int

const (
	// CodeConfiguration indicates the builder was given an incomplete or
	// invalid configuration. Multiple problems are joined with errors.Join.
	CodeConfiguration ErrorCode = iota
	// CodeKeyStoreAccess indicates the key store could not be obtained or read.
	CodeKeyStoreAccess
	// CodeKeyEntryNotFound indicates the signing alias is absent from the store.
	CodeKeyEntryNotFound
	// CodeKeyAccess indicates the key entry exists but the private key or its
	// certificate could not be recovered.
	CodeKeyAccess
	// CodeAlgorithmUnavailable indicates the requested algorithm or provider is
	// not registered.
	CodeAlgorithmUnavailable
	// CodeSigning indicates the signature primitive failed.
	CodeSigning
	// CodeEnvelopeEncoding indicates the CMS structure could not be encoded.
	CodeEnvelopeEncoding
)

var codeNames = [...]string{
	CodeConfiguration:        "configuration",
	CodeKeyStoreAccess:       "key_store_access",
	CodeKeyEntryNotFound:     "key_entry_not_found",
	CodeKeyAccess:            "key_access",
	CodeAlgorithmUnavailable: "algorithm_unavailable",
	CodeSigning:              "signing",
	CodeEnvelopeEncoding:     "envelope_encoding",
}

// String returns a stable snake_case name used in logs and metric labels.
func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}

// Error is the error type returned by every esiasign operation. It supports
// errors.Is against the sentinels below and errors.As for the code.
type Error struct {
	// Code identifies the category of this error.
	Code ErrorCode
	// Message is a human-readable description. It never contains secrets.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the message followed by the cause, if present.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, esiasign.ErrKeyAccess) matches regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for category matching with errors.Is.
var (
	// ErrConfiguration is returned by Build when required suppliers are missing.
	ErrConfiguration = &Error{Code: CodeConfiguration}

	// ErrKeyStoreAccess is returned when the key store supplier fails or the
	// store cannot answer an alias lookup.
	ErrKeyStoreAccess = &Error{Code: CodeKeyStoreAccess}

	// ErrKeyEntryNotFound is returned when the signing alias is not in the store.
	ErrKeyEntryNotFound = &Error{Code: CodeKeyEntryNotFound}

	// ErrKeyAccess is returned for a wrong password, a missing certificate, or
	// a key that the selected algorithm cannot use.
	ErrKeyAccess = &Error{Code: CodeKeyAccess}

	// ErrAlgorithmUnavailable is returned when the algorithm/provider pair is
	// not registered.
	ErrAlgorithmUnavailable = &Error{Code: CodeAlgorithmUnavailable}

	// ErrSigning is returned when the signature primitive fails.
	ErrSigning = &Error{Code: CodeSigning}

	// ErrEnvelopeEncoding is returned when the SignedData cannot be encoded.
	ErrEnvelopeEncoding = &Error{Code: CodeEnvelopeEncoding}
)

// CodeOf returns the code carried by err, or false when err is not (and does
// not wrap) an *Error.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func wrapError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func newConfigError(msg string) *Error {
	return &Error{Code: CodeConfiguration, Message: msg}
}

// joinErrors returns the joined errors, or nil for an empty slice.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
