package esiasign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// unresolved labels metrics for calls that failed before the algorithm was
// resolved, keeping label cardinality bounded.
const unresolved = "unresolved"

// Signer produces CMS SignedData envelopes. It holds no mutable state; Sign is
// safe for concurrent use.
type Signer struct {
	cfg *Configuration
}

// Configuration returns the immutable configuration the Signer was built with.
func (s *Signer) Configuration() *Configuration {
	return s.cfg
}

// SignReader reads r to EOF and signs its contents.
func (s *Signer) SignReader(r io.Reader) (*SignatureResult, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(CodeSigning, "read payload", err)
	}
	return s.Sign(payload)
}

// Sign signs payload. Every supplier is invoked once, in this order: key
// store, signing alias, key password, algorithm, provider, detached flag. On
// failure the result is nil and the error matches one of the package
// sentinels.
func (s *Signer) Sign(payload []byte) (*SignatureResult, error) {
	start := time.Now()
	call := &signCall{algorithm: unresolved, provider: unresolved}

	res, err := s.sign(call, payload)

	outcome := "success"
	if err != nil {
		outcome = "unknown"
		if code, ok := CodeOf(err); ok {
			outcome = code.String()
		}
		s.cfg.logger.Debug("signing failed",
			zap.String("alias", call.alias),
			zap.String("algorithm", call.algorithm),
			zap.String("provider", call.provider),
			zap.String("code", outcome),
			zap.Error(err))
	} else {
		s.cfg.logger.Debug("payload signed",
			zap.String("alias", call.alias),
			zap.String("algorithm", res.Algorithm),
			zap.String("provider", res.Provider),
			zap.Bool("detached", res.Detached),
			zap.Int("payload_bytes", len(payload)),
			zap.Int("envelope_bytes", len(res.Envelope)),
			zap.Duration("elapsed", time.Since(start)))
	}
	s.cfg.metrics.RecordSign(call.algorithm, call.provider, outcome, time.Since(start))
	return res, err
}

// signCall carries the names resolved so far for logging and metrics.
type signCall struct {
	alias     string
	algorithm string
	provider  string
}

func (s *Signer) sign(call *signCall, payload []byte) (*SignatureResult, error) {
	store, err := s.cfg.keyStore()
	if err != nil {
		return nil, wrapError(CodeKeyStoreAccess, "obtain key store", err)
	}
	if store == nil {
		return nil, newError(CodeKeyStoreAccess, "key store supplier returned nil")
	}

	alias, err := s.cfg.signingAlias()
	if err != nil {
		return nil, wrapError(CodeKeyAccess, "resolve signing alias", err)
	}
	call.alias = alias
	found, err := store.ContainsAlias(alias)
	if err != nil {
		return nil, wrapError(CodeKeyStoreAccess, fmt.Sprintf("look up alias %q", alias), err)
	}
	if !found {
		return nil, newError(CodeKeyEntryNotFound, fmt.Sprintf("no key entry under alias %q", alias))
	}

	key, chain, err := s.recoverKey(store, alias)
	if err != nil {
		return nil, err
	}

	alg, provider, err := s.resolveAlgorithm()
	if err != nil {
		return nil, err
	}
	call.algorithm, call.provider = alg.Name(), provider

	detached, err := s.cfg.detached()
	if err != nil {
		return nil, wrapError(CodeConfiguration, "resolve detached mode", err)
	}

	env := &envelope{
		alg:      alg,
		cert:     chain[0],
		certs:    s.embeddedCertificates(chain),
		content:  payload,
		detached: detached,
	}
	if s.cfg.signingTime {
		env.signingTime = s.cfg.now()
	}

	signedAttrs, err := env.signedAttributes(alg.Digest(payload))
	if err != nil {
		return nil, err
	}
	sig, err := alg.Sign(s.random(), key, signedAttrs)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, err
		}
		return nil, wrapError(CodeSigning, alg.Name()+" signature failed", err)
	}
	si, err := env.signerInfo(signedAttrs, sig)
	if err != nil {
		return nil, err
	}
	der, err := env.encode(si)
	if err != nil {
		return nil, err
	}

	return &SignatureResult{
		Envelope:    der,
		Signature:   sig,
		Algorithm:   alg.Name(),
		Provider:    provider,
		Detached:    detached,
		Certificate: chain[0],
	}, nil
}

// recoverKey fetches the private key and certificate chain for alias. The
// password slice is zeroed before returning.
func (s *Signer) recoverKey(store KeyStore, alias string) (crypto.Signer, []*x509.Certificate, error) {
	password, err := s.cfg.keyPassword()
	if err != nil {
		return nil, nil, wrapError(CodeKeyAccess, "resolve key password", err)
	}
	defer clear(password)

	key, err := store.PrivateKey(alias, password)
	if err != nil {
		return nil, nil, wrapError(CodeKeyAccess, fmt.Sprintf("recover private key for alias %q", alias), err)
	}
	if key == nil {
		return nil, nil, newError(CodeKeyAccess, fmt.Sprintf("no private key under alias %q", alias))
	}

	chain, err := store.CertificateChain(alias)
	if err != nil {
		return nil, nil, wrapError(CodeKeyAccess, fmt.Sprintf("read certificate chain for alias %q", alias), err)
	}
	if len(chain) == 0 || chain[0] == nil {
		return nil, nil, newError(CodeKeyAccess, fmt.Sprintf("no certificate under alias %q", alias))
	}
	if !certificateMatchesKey(chain[0], key) {
		return nil, nil, newError(CodeKeyAccess,
			fmt.Sprintf("certificate under alias %q does not match its private key", alias))
	}
	return key, chain, nil
}

func (s *Signer) resolveAlgorithm() (Algorithm, string, error) {
	algName, err := s.cfg.algorithm()
	if err != nil {
		return nil, "", wrapError(CodeAlgorithmUnavailable, "resolve algorithm name", err)
	}
	provName, err := s.cfg.provider()
	if err != nil {
		return nil, "", wrapError(CodeAlgorithmUnavailable, "resolve provider name", err)
	}
	p, ok := s.cfg.registry.Provider(provName)
	if !ok {
		return nil, "", newError(CodeAlgorithmUnavailable, fmt.Sprintf("provider %q is not registered", provName))
	}
	alg, ok := p.Algorithm(algName)
	if !ok {
		return nil, "", newError(CodeAlgorithmUnavailable,
			fmt.Sprintf("algorithm %q is not available from provider %q", algName, p.Name()))
	}
	return alg, p.Name(), nil
}

func (s *Signer) embeddedCertificates(chain []*x509.Certificate) []*x509.Certificate {
	switch s.cfg.chain {
	case ChainLeafOnly:
		return chain[:1]
	case ChainNone:
		return nil
	default:
		return chain
	}
}

func (s *Signer) random() io.Reader {
	if s.cfg.rand != nil {
		return s.cfg.rand
	}
	return rand.Reader
}

// certificateMatchesKey compares public keys when both sides are types the
// standard library understands. GOST certificates parse with a nil public
// key, so they are accepted as is.
func certificateMatchesKey(cert *x509.Certificate, key crypto.Signer) bool {
	switch key.Public().(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
	default:
		return true
	}
	pub, ok := cert.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return true
	}
	return pub.Equal(key.Public())
}
