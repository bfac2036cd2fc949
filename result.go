package esiasign

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
)

// PEMType is the PEM block type used by SignatureResult.PEM, matching the
// output of "openssl cms -outform PEM".
const PEMType = "CMS"

// SignatureResult is the outcome of a successful Sign call.
type SignatureResult struct {
	// Envelope is the DER-encoded ContentInfo carrying the SignedData.
	Envelope []byte
	// Signature is the raw SignerInfo signature value.
	Signature []byte
	// Algorithm and Provider are the canonical names that produced Envelope.
	Algorithm string
	Provider  string
	// Detached reports whether the payload was left out of the envelope.
	Detached bool
	// Certificate is the signer certificate.
	Certificate *x509.Certificate
}

// Base64 returns the envelope in standard padded base64.
func (r *SignatureResult) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Envelope)
}

// Base64URL returns the envelope in padded URL-safe base64, the form ESIA
// expects for client_secret.
func (r *SignatureResult) Base64URL() string {
	return base64.URLEncoding.EncodeToString(r.Envelope)
}

// PEM returns the envelope as a PEM block.
func (r *SignatureResult) PEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: PEMType, Bytes: r.Envelope})
}
