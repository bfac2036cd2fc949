package pkiasn1

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
)

// IssuerAndSerialNumber names a certificate by issuer DN and serial number
// (RFC 5652 section 10.2.4).
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// RSAPSSParams is RSASSA-PSS-params from RFC 4055 section 3.1. Every field is
// written explicitly so no SHA-1 default is implied.
type RSAPSSParams struct {
	HashAlgorithm    pkix.AlgorithmIdentifier `asn1:"explicit,optional,tag:0"`
	MaskGenAlgorithm pkix.AlgorithmIdentifier `asn1:"explicit,optional,tag:1"`
	SaltLength       int                      `asn1:"explicit,optional,tag:2"`
	TrailerField     int                      `asn1:"explicit,optional,tag:3"`
}
