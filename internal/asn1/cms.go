package pkiasn1

import (
	"crypto/x509/pkix"
	"encoding/asn1"
)

// ContentInfo is the outermost CMS wrapper (RFC 5652 section 3).
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	// Content is assigned pre-built [0] EXPLICIT bytes through FullBytes;
	// encoding/asn1 ignores the struct tag when FullBytes is set.
	Content asn1.RawValue `asn1:"explicit,tag:0"`
}

// SignedData is the CMS SignedData content type (RFC 5652 section 5.1).
type SignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	// Certificates is encoded with IMPLICIT [0] and omitted when empty.
	Certificates []asn1.RawValue `asn1:"optional,tag:0"`
	CRLs         []asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos  []SignerInfo    `asn1:"set"`
}

// EncapsulatedContentInfo carries the signed content type and, for attached
// signatures, the content itself.
//
// An absent EContent means a detached signature. A present EContent holding
// a zero-length OCTET STRING means a signed empty payload. The two encodings
// are distinct on the wire.
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// IsDetached reports whether EContent is absent.
func (e *EncapsulatedContentInfo) IsDetached() bool {
	return len(e.EContent.FullBytes) == 0
}

// SignerInfo is the per-signer structure (RFC 5652 section 5.3).
type SignerInfo struct {
	// Version is 1 for IssuerAndSerialNumber and 3 for SubjectKeyIdentifier.
	Version int
	// SID holds the pre-encoded SignerIdentifier CHOICE.
	SID             asn1.RawValue
	DigestAlgorithm pkix.AlgorithmIdentifier
	// SignedAttrs travels as IMPLICIT [0]. The signature covers the same bytes
	// re-tagged as a universal SET (0x31).
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

// Attribute is a CMS attribute: an OID and a SET OF values.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

// RawAttributes is a SET OF Attribute as it appears on the wire.
type RawAttributes []Attribute
