package esiasign

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// Default algorithm and provider names applied by NewBuilder.
const (
	DefaultAlgorithm = "GOST3411-2012-256WITHECGOST3410-2012-256"
	DefaultProvider  = ProviderGOST
)

// Supplier defers retrieval of a configuration value until signing time. A
// Signer invokes each supplier once per Sign call and never caches the result,
// so rotated keys or passwords are picked up on the next call.
type Supplier[T any] func() (T, error)

// Static returns a Supplier that always yields v.
func Static[T any](v T) Supplier[T] {
	return func() (T, error) { return v, nil }
}

// FromEnv returns a Supplier that reads the named environment variable at
// call time. An unset variable is an error; an empty one is not.
func FromEnv(name string) Supplier[string] {
	return func() (string, error) {
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s is not set", name)
		}
		return v, nil
	}
}

// PasswordFromEnv is FromEnv for key passwords.
func PasswordFromEnv(name string) Supplier[[]byte] {
	env := FromEnv(name)
	return func() ([]byte, error) {
		v, err := env()
		if err != nil {
			return nil, err
		}
		return []byte(v), nil
	}
}

// ChainMode controls which certificates are embedded in the SignedData.
type ChainMode int

const (
	// ChainFull embeds every certificate stored under the signing alias,
	// leaf first. This is the default.
	ChainFull ChainMode = iota
	// ChainLeafOnly embeds only the signer certificate.
	ChainLeafOnly
	// ChainNone embeds no certificates.
	ChainNone
)

func (m ChainMode) String() string {
	switch m {
	case ChainFull:
		return "full"
	case ChainLeafOnly:
		return "leaf"
	case ChainNone:
		return "none"
	default:
		return fmt.Sprintf("ChainMode(%d)", int(m))
	}
}

// ParseChainMode parses the names returned by ChainMode.String.
func ParseChainMode(s string) (ChainMode, error) {
	switch s {
	case "", "full":
		return ChainFull, nil
	case "leaf":
		return ChainLeafOnly, nil
	case "none":
		return ChainNone, nil
	}
	return 0, newConfigError(fmt.Sprintf("unknown certificate chain mode %q", s))
}

// Configuration is the immutable result of Builder.Build. It is shared by
// every Sign call of a Signer.
type Configuration struct {
	algorithm    Supplier[string]
	provider     Supplier[string]
	keyStore     Supplier[KeyStore]
	signingAlias Supplier[string]
	keyPassword  Supplier[[]byte]
	detached     Supplier[bool]

	chain       ChainMode
	signingTime bool
	registry    *Registry
	logger      *zap.Logger
	metrics     MetricsRecorder
	now         func() time.Time
	rand        io.Reader
}

// Algorithm evaluates the algorithm supplier.
func (c *Configuration) Algorithm() (string, error) { return c.algorithm() }

// Provider evaluates the provider supplier.
func (c *Configuration) Provider() (string, error) { return c.provider() }

// Detached evaluates the detached-mode supplier.
func (c *Configuration) Detached() (bool, error) { return c.detached() }

// Chain returns the certificate embedding mode.
func (c *Configuration) Chain() ChainMode { return c.chain }

// SigningTime reports whether the signing-time attribute is included.
func (c *Configuration) SigningTime() bool { return c.signingTime }

// Registry returns the algorithm registry consulted at signing time.
func (c *Configuration) Registry() *Registry { return c.registry }
