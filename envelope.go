package esiasign

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"time"

	pkiasn1 "github.com/mdean75/esia-sign/internal/asn1"
)

// implicitTag0 is the wire tag of SignerInfo.signedAttrs. The signature is
// computed over the same bytes tagged as a universal SET (0x31), RFC 5652
// section 5.4.
const implicitTag0 = byte(0xA0)

// envelope holds everything needed to encode one SignedData.
type envelope struct {
	alg      Algorithm
	cert     *x509.Certificate
	certs    []*x509.Certificate
	content  []byte
	detached bool
	// signingTime is omitted from the signed attributes when zero.
	signingTime time.Time
}

// signedAttributes returns the DER SET OF signed attributes: content-type,
// message-digest and, when set, signing-time. encoding/asn1 sorts the SET
// members into DER order.
func (e *envelope) signedAttributes(digest []byte) ([]byte, error) {
	ct, err := asn1.Marshal(pkiasn1.OIDData)
	if err != nil {
		return nil, wrapError(CodeEnvelopeEncoding, "marshal content-type attribute", err)
	}
	md, err := asn1.Marshal(digest)
	if err != nil {
		return nil, wrapError(CodeEnvelopeEncoding, "marshal message-digest attribute", err)
	}
	attrs := []pkiasn1.Attribute{
		{Type: pkiasn1.OIDAttributeContentType, Values: asn1.RawValue{FullBytes: marshalSet(ct)}},
		{Type: pkiasn1.OIDAttributeMessageDigest, Values: asn1.RawValue{FullBytes: marshalSet(md)}},
	}
	if !e.signingTime.IsZero() {
		// UTCTime through 2049, GeneralizedTime after, as RFC 5652 section 11.3 requires.
		st, err := asn1.Marshal(e.signingTime.UTC().Truncate(time.Second))
		if err != nil {
			return nil, wrapError(CodeEnvelopeEncoding, "marshal signing-time attribute", err)
		}
		attrs = append(attrs, pkiasn1.Attribute{
			Type:   pkiasn1.OIDAttributeSigningTime,
			Values: asn1.RawValue{FullBytes: marshalSet(st)},
		})
	}
	encoded, err := asn1.MarshalWithParams(pkiasn1.RawAttributes(attrs), "set")
	if err != nil {
		return nil, wrapError(CodeEnvelopeEncoding, "marshal signed attributes", err)
	}
	return encoded, nil
}

// signerInfo assembles the SignerInfo for signature sig over signedAttrs.
func (e *envelope) signerInfo(signedAttrs, sig []byte) (pkiasn1.SignerInfo, error) {
	sid, err := issuerAndSerial(e.cert)
	if err != nil {
		return pkiasn1.SignerInfo{}, err
	}
	wire := make([]byte, len(signedAttrs))
	copy(wire, signedAttrs)
	wire[0] = implicitTag0

	return pkiasn1.SignerInfo{
		Version:            1,
		SID:                sid,
		DigestAlgorithm:    e.alg.DigestAlgorithm(),
		SignedAttrs:        asn1.RawValue{FullBytes: wire},
		SignatureAlgorithm: e.alg.SignatureAlgorithm(),
		Signature:          sig,
	}, nil
}

// encode wraps si in SignedData and ContentInfo and returns the DER bytes.
func (e *envelope) encode(si pkiasn1.SignerInfo) ([]byte, error) {
	eci, err := e.encapsulatedContent()
	if err != nil {
		return nil, err
	}
	sd := pkiasn1.SignedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{e.alg.DigestAlgorithm()},
		EncapContentInfo: eci,
		SignerInfos:      []pkiasn1.SignerInfo{si},
	}
	seen := make(map[string]bool, len(e.certs))
	for _, c := range e.certs {
		if c == nil || seen[string(c.Raw)] {
			continue
		}
		seen[string(c.Raw)] = true
		sd.Certificates = append(sd.Certificates, asn1.RawValue{FullBytes: c.Raw})
	}

	sdBytes, err := asn1.Marshal(sd)
	if err != nil {
		return nil, wrapError(CodeEnvelopeEncoding, "marshal SignedData", err)
	}
	explicit0, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      sdBytes,
	})
	if err != nil {
		return nil, wrapError(CodeEnvelopeEncoding, "marshal ContentInfo [0] wrapper", err)
	}
	der, err := asn1.Marshal(pkiasn1.ContentInfo{
		ContentType: pkiasn1.OIDSignedData,
		Content:     asn1.RawValue{FullBytes: explicit0},
	})
	if err != nil {
		return nil, wrapError(CodeEnvelopeEncoding, "marshal ContentInfo", err)
	}
	return der, nil
}

// encapsulatedContent leaves eContent absent for detached signatures and
// otherwise wraps the payload as [0] EXPLICIT OCTET STRING, including the
// zero-length case.
func (e *envelope) encapsulatedContent() (pkiasn1.EncapsulatedContentInfo, error) {
	eci := pkiasn1.EncapsulatedContentInfo{EContentType: pkiasn1.OIDData}
	if e.detached {
		return eci, nil
	}
	octets, err := asn1.Marshal(e.content)
	if err != nil {
		return eci, wrapError(CodeEnvelopeEncoding, "marshal eContent", err)
	}
	explicit0, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      octets,
	})
	if err != nil {
		return eci, wrapError(CodeEnvelopeEncoding, "marshal eContent [0] wrapper", err)
	}
	eci.EContent = asn1.RawValue{FullBytes: explicit0}
	return eci, nil
}

func issuerAndSerial(cert *x509.Certificate) (asn1.RawValue, error) {
	if cert.SerialNumber == nil || len(cert.RawIssuer) == 0 {
		return asn1.RawValue{}, newError(CodeEnvelopeEncoding, "signer certificate has no issuer or serial number")
	}
	encoded, err := asn1.Marshal(pkiasn1.IssuerAndSerialNumber{
		Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
		SerialNumber: cert.SerialNumber,
	})
	if err != nil {
		return asn1.RawValue{}, wrapError(CodeEnvelopeEncoding, "marshal IssuerAndSerialNumber", err)
	}
	return asn1.RawValue{FullBytes: encoded}, nil
}

// marshalSet wraps one DER value in a SET. Wrapping already-encoded bytes
// cannot fail; a failure is a programming error.
func marshalSet(inner []byte) []byte {
	encoded, err := asn1.Marshal(asn1.RawValue{
		Tag:        asn1.TagSet,
		IsCompound: true,
		Bytes:      inner,
	})
	if err != nil {
		panic(fmt.Sprintf("esiasign: marshalSet: %v", err))
	}
	return encoded
}
