// Package pkiasn1 defines the ASN.1 wire types and object identifiers used to
// assemble CMS SignedData envelopes (RFC 5652) for RSA, ECDSA, Ed25519 and
// GOST R 34.10-2012 signers.
package pkiasn1

import "encoding/asn1"

// Content type OIDs, RFC 5652 section 3.
var (
	// OIDData identifies raw encapsulated content.
	OIDData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}

	// OIDSignedData identifies the SignedData content type.
	OIDSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
)

// Signed attribute OIDs from PKCS #9.
var (
	OIDAttributeContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDAttributeMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDAttributeSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

// NIST digest algorithms.
var (
	OIDDigestAlgorithmSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDDigestAlgorithmSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDDigestAlgorithmSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// RSA, ECDSA and EdDSA signature algorithms.
var (
	OIDSignatureAlgorithmSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSignatureAlgorithmSHA384WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSignatureAlgorithmSHA512WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}

	// OIDSignatureAlgorithmRSAPSS requires RSASSA-PSS-params in the
	// AlgorithmIdentifier (RFC 4056).
	OIDSignatureAlgorithmRSAPSS = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}

	OIDSignatureAlgorithmECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDSignatureAlgorithmECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	OIDSignatureAlgorithmECDSAWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}

	// OIDSignatureAlgorithmEd25519 carries no parameters (RFC 8419).
	OIDSignatureAlgorithmEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	// OIDMGF1 is the mask generation function referenced by RSASSA-PSS params.
	OIDMGF1 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// GOST R 34.10-2012 and GOST R 34.11-2012 (Streebog) identifiers assigned by
// TC 26, as used in CMS by RFC 9215 and the ESIA gateway.
var (
	// OIDDigestGOST34112012256 identifies Streebog-256.
	OIDDigestGOST34112012256 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 2, 2}

	// OIDDigestGOST34112012512 identifies Streebog-512.
	OIDDigestGOST34112012512 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 2, 3}

	// OIDGOST34102012256 identifies a GOST R 34.10-2012 256-bit key. CMS signers
	// place it in SignerInfo.signatureAlgorithm.
	OIDGOST34102012256 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 1, 1}

	// OIDGOST34102012512 identifies a GOST R 34.10-2012 512-bit key.
	OIDGOST34102012512 = asn1.ObjectIdentifier{1, 2, 643, 7, 1, 1, 1, 2}
)
