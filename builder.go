package esiasign

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// Builder accumulates Signer configuration. Setter problems are collected and
// reported together by Build. A Builder is not safe for concurrent use.
type Builder struct {
	cfg  Configuration
	errs []error
}

// NewBuilder returns a Builder with the defaults:
//   - algorithm GOST3411-2012-256WITHECGOST3410-2012-256
//   - provider GOGOST
//   - detached signatures
//   - full certificate chain, signing-time attribute included
//   - DefaultRegistry, no-op logger, no-op metrics
//
// The key store, signing alias and key password suppliers have no default and
// must be set before Build.
func NewBuilder() *Builder {
	return &Builder{cfg: Configuration{
		algorithm:   Static(DefaultAlgorithm),
		provider:    Static(DefaultProvider),
		detached:    Static(true),
		chain:       ChainFull,
		signingTime: true,
		registry:    DefaultRegistry(),
		logger:      zap.NewNop(),
		metrics:     NoopMetricsRecorder{},
		now:         time.Now,
	}}
}

// WithAlgorithm sets the supplier of the algorithm name, for example
// "GOST3411-2012-512WITHECGOST3410-2012-512" or "SHA256WITHRSA".
func (b *Builder) WithAlgorithm(s Supplier[string]) *Builder {
	if s == nil {
		b.errs = append(b.errs, newConfigError("algorithm supplier must not be nil"))
		return b
	}
	b.cfg.algorithm = s
	return b
}

// WithProvider sets the supplier of the provider name.
func (b *Builder) WithProvider(s Supplier[string]) *Builder {
	if s == nil {
		b.errs = append(b.errs, newConfigError("provider supplier must not be nil"))
		return b
	}
	b.cfg.provider = s
	return b
}

// WithKeyStore sets the key store supplier. Required.
func (b *Builder) WithKeyStore(s Supplier[KeyStore]) *Builder {
	b.cfg.keyStore = s
	return b
}

// WithSigningAlias sets the supplier of the key entry alias. Required.
func (b *Builder) WithSigningAlias(s Supplier[string]) *Builder {
	b.cfg.signingAlias = s
	return b
}

// WithKeyPassword sets the supplier of the key entry password. Required.
// The returned slice is zeroed after each use.
func (b *Builder) WithKeyPassword(s Supplier[[]byte]) *Builder {
	b.cfg.keyPassword = s
	return b
}

// WithDetached sets the supplier of the detached flag.
func (b *Builder) WithDetached(s Supplier[bool]) *Builder {
	if s == nil {
		b.errs = append(b.errs, newConfigError("detached supplier must not be nil"))
		return b
	}
	b.cfg.detached = s
	return b
}

// WithChainMode selects which certificates are embedded.
func (b *Builder) WithChainMode(m ChainMode) *Builder {
	switch m {
	case ChainFull, ChainLeafOnly, ChainNone:
		b.cfg.chain = m
	default:
		b.errs = append(b.errs, newConfigError("unknown certificate chain mode "+m.String()))
	}
	return b
}

// WithoutSigningTime omits the signing-time signed attribute.
func (b *Builder) WithoutSigningTime() *Builder {
	b.cfg.signingTime = false
	return b
}

// WithRegistry replaces the algorithm registry.
func (b *Builder) WithRegistry(r *Registry) *Builder {
	if r == nil {
		b.errs = append(b.errs, newConfigError("registry must not be nil"))
		return b
	}
	b.cfg.registry = r
	return b
}

// WithLogger sets the logger. Secrets are never logged.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	if l == nil {
		b.errs = append(b.errs, newConfigError("logger must not be nil"))
		return b
	}
	b.cfg.logger = l
	return b
}

// WithMetrics sets the metrics recorder.
func (b *Builder) WithMetrics(m MetricsRecorder) *Builder {
	if m == nil {
		b.errs = append(b.errs, newConfigError("metrics recorder must not be nil"))
		return b
	}
	b.cfg.metrics = m
	return b
}

// withClock overrides the signing-time source.
func (b *Builder) withClock(now func() time.Time) *Builder {
	b.cfg.now = now
	return b
}

// withRandom overrides the entropy source handed to signature primitives.
func (b *Builder) withRandom(r io.Reader) *Builder {
	b.cfg.rand = r
	return b
}

// Build validates the configuration and returns a Signer. It invokes no
// supplier and performs no I/O. Every missing required supplier is reported
// in a single joined error matching ErrConfiguration.
func (b *Builder) Build() (*Signer, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	cfg := b.cfg
	return &Signer{cfg: &cfg}, nil
}

func (b *Builder) validate() error {
	errs := append([]error(nil), b.errs...)
	if b.cfg.keyStore == nil {
		errs = append(errs, newConfigError("key store supplier is required"))
	}
	if b.cfg.signingAlias == nil {
		errs = append(errs, newConfigError("signing alias supplier is required"))
	}
	if b.cfg.keyPassword == nil {
		errs = append(errs, newConfigError("key password supplier is required"))
	}
	return joinErrors(errs)
}
