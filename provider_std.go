package esiasign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"io"

	pkiasn1 "github.com/mdean75/esia-sign/internal/asn1"
)

// ProviderStandard names the provider backed by the Go standard library.
const ProviderStandard = "STD"

type signatureFamily int

const (
	familyRSAPKCS1 signatureFamily = iota
	familyRSAPSS
	familyECDSA
	familyEd25519
)

func (f signatureFamily) String() string {
	switch f {
	case familyRSAPKCS1:
		return "RSA"
	case familyRSAPSS:
		return "RSA-PSS"
	case familyECDSA:
		return "ECDSA"
	default:
		return "Ed25519"
	}
}

var digestOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA256: pkiasn1.OIDDigestAlgorithmSHA256,
	crypto.SHA384: pkiasn1.OIDDigestAlgorithmSHA384,
	crypto.SHA512: pkiasn1.OIDDigestAlgorithmSHA512,
}

// stdAlgorithm is an RSA, RSA-PSS, ECDSA or Ed25519 scheme over SHA-2.
type stdAlgorithm struct {
	name   string
	hash   crypto.Hash
	family signatureFamily
	sigAlg pkix.AlgorithmIdentifier
}

type standardProvider struct {
	algorithmSet
}

// NewStandardProvider returns the STD provider:
//
//	SHA256WITHRSA, SHA384WITHRSA, SHA512WITHRSA
//	SHA256WITHRSAANDMGF1, SHA384WITHRSAANDMGF1, SHA512WITHRSAANDMGF1
//	SHA256WITHECDSA, SHA384WITHECDSA, SHA512WITHECDSA
//	ED25519
func NewStandardProvider() Provider {
	var algs []Algorithm
	for _, h := range []crypto.Hash{crypto.SHA256, crypto.SHA384, crypto.SHA512} {
		bits := h.Size() * 8
		algs = append(algs,
			&stdAlgorithm{
				name:   fmt.Sprintf("SHA%dWITHRSA", bits),
				hash:   h,
				family: familyRSAPKCS1,
				sigAlg: rsaPKCS1AlgID(h),
			},
			&stdAlgorithm{
				name:   fmt.Sprintf("SHA%dWITHRSAANDMGF1", bits),
				hash:   h,
				family: familyRSAPSS,
				sigAlg: rsaPSSAlgID(h),
			},
			&stdAlgorithm{
				name:   fmt.Sprintf("SHA%dWITHECDSA", bits),
				hash:   h,
				family: familyECDSA,
				sigAlg: ecdsaAlgID(h),
			},
		)
	}
	algs = append(algs, &stdAlgorithm{
		name:   "ED25519",
		hash:   crypto.SHA512,
		family: familyEd25519,
		sigAlg: pkix.AlgorithmIdentifier{Algorithm: pkiasn1.OIDSignatureAlgorithmEd25519},
	})
	return &standardProvider{algorithmSet: newAlgorithmSet(algs...)}
}

func (p *standardProvider) Name() string { return ProviderStandard }

func (p *standardProvider) Algorithm(name string) (Algorithm, bool) { return p.lookup(name) }

func (p *standardProvider) Algorithms() []string { return p.names() }

func (a *stdAlgorithm) Name() string { return a.name }

// DigestAlgorithm omits the NULL parameters, per RFC 5754.
func (a *stdAlgorithm) DigestAlgorithm() pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{Algorithm: digestOIDs[a.hash]}
}

func (a *stdAlgorithm) SignatureAlgorithm() pkix.AlgorithmIdentifier { return a.sigAlg }

func (a *stdAlgorithm) Digest(data []byte) []byte {
	h := a.hash.New()
	h.Write(data)
	return h.Sum(nil)
}

// Sign hashes message and signs the digest. Ed25519 signs message directly
// (PureEdDSA, RFC 8419).
func (a *stdAlgorithm) Sign(rand io.Reader, key crypto.Signer, message []byte) ([]byte, error) {
	if err := a.checkKey(key); err != nil {
		return nil, err
	}
	switch a.family {
	case familyRSAPKCS1, familyECDSA:
		// ecdsa keys already return the DER Ecdsa-Sig-Value through crypto.Signer.
		return key.Sign(rand, a.Digest(message), a.hash)
	case familyRSAPSS:
		return key.Sign(rand, a.Digest(message), &rsa.PSSOptions{
			SaltLength: a.hash.Size(),
			Hash:       a.hash,
		})
	default:
		return key.Sign(rand, message, crypto.Hash(0))
	}
}

func (a *stdAlgorithm) checkKey(key crypto.Signer) error {
	var ok bool
	switch pub := key.Public().(type) {
	case *rsa.PublicKey:
		ok = a.family == familyRSAPKCS1 || a.family == familyRSAPSS
	case *ecdsa.PublicKey:
		ok = a.family == familyECDSA
	case ed25519.PublicKey:
		ok = a.family == familyEd25519
	default:
		return newError(CodeKeyAccess, fmt.Sprintf("%s cannot sign with a %T key", a.name, pub))
	}
	if !ok {
		return newError(CodeKeyAccess, fmt.Sprintf("%s requires an %s key", a.name, a.family))
	}
	return nil
}

func rsaPKCS1AlgID(h crypto.Hash) pkix.AlgorithmIdentifier {
	oid := map[crypto.Hash]asn1.ObjectIdentifier{
		crypto.SHA256: pkiasn1.OIDSignatureAlgorithmSHA256WithRSA,
		crypto.SHA384: pkiasn1.OIDSignatureAlgorithmSHA384WithRSA,
		crypto.SHA512: pkiasn1.OIDSignatureAlgorithmSHA512WithRSA,
	}[h]
	return pkix.AlgorithmIdentifier{Algorithm: oid, Parameters: asn1.NullRawValue}
}

// rsaPSSAlgID always carries explicit RSASSA-PSS-params with the salt length
// equal to the digest size (RFC 4056).
func rsaPSSAlgID(h crypto.Hash) pkix.AlgorithmIdentifier {
	hashAlg := pkix.AlgorithmIdentifier{Algorithm: digestOIDs[h]}
	mgfParams := mustMarshal(hashAlg)
	params := pkiasn1.RSAPSSParams{
		HashAlgorithm: hashAlg,
		MaskGenAlgorithm: pkix.AlgorithmIdentifier{
			Algorithm:  pkiasn1.OIDMGF1,
			Parameters: asn1.RawValue{FullBytes: mgfParams},
		},
		SaltLength:   h.Size(),
		TrailerField: 1,
	}
	return pkix.AlgorithmIdentifier{
		Algorithm:  pkiasn1.OIDSignatureAlgorithmRSAPSS,
		Parameters: asn1.RawValue{FullBytes: mustMarshal(params)},
	}
}

func ecdsaAlgID(h crypto.Hash) pkix.AlgorithmIdentifier {
	oid := map[crypto.Hash]asn1.ObjectIdentifier{
		crypto.SHA256: pkiasn1.OIDSignatureAlgorithmECDSAWithSHA256,
		crypto.SHA384: pkiasn1.OIDSignatureAlgorithmECDSAWithSHA384,
		crypto.SHA512: pkiasn1.OIDSignatureAlgorithmECDSAWithSHA512,
	}[h]
	return pkix.AlgorithmIdentifier{Algorithm: oid}
}

// mustMarshal encodes fixed algorithm parameters built at init time. A failure
// is a programming error.
func mustMarshal(v any) []byte {
	b, err := asn1.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("esiasign: marshal %T: %v", v, err))
	}
	return b
}
