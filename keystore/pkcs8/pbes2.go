package pkcs8

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// maxIterations bounds the PBKDF2 work an input file can demand.
const maxIterations = 10_000_000

var (
	oidPBES2  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 13}
	oidPBKDF2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 5, 12}

	oidHMACWithSHA1   = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 7}
	oidHMACWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 9}
	oidHMACWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 10}
	oidHMACWithSHA512 = asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 11}

	oidAES128CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 2}
	oidAES192CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 22}
	oidAES256CBC = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 1, 42}
)

type encryptedPrivateKeyInfo struct {
	Algorithm     pkix.AlgorithmIdentifier
	EncryptedData []byte
}

type pbes2Params struct {
	KeyDerivationFunc pkix.AlgorithmIdentifier
	EncryptionScheme  pkix.AlgorithmIdentifier
}

type pbkdf2Params struct {
	Salt           []byte
	IterationCount int
	KeyLength      int                      `asn1:"optional"`
	PRF            pkix.AlgorithmIdentifier `asn1:"optional"`
}

// pbes2Scheme is a parsed PBES2 header.
type pbes2Scheme struct {
	salt       []byte
	iterations int
	prf        func() hash.Hash
	keyLen     int
	iv         []byte
	ciphertext []byte
}

func parseEncryptedPrivateKeyInfo(der []byte) (*pbes2Scheme, error) {
	var info encryptedPrivateKeyInfo
	if err := unmarshalStrict(der, &info); err != nil {
		return nil, fmt.Errorf("pkcs8: malformed EncryptedPrivateKeyInfo: %w", err)
	}
	if !info.Algorithm.Algorithm.Equal(oidPBES2) {
		return nil, fmt.Errorf("%w: key encryption %s", ErrUnsupported, info.Algorithm.Algorithm)
	}
	var params pbes2Params
	if err := unmarshalStrict(info.Algorithm.Parameters.FullBytes, &params); err != nil {
		return nil, fmt.Errorf("pkcs8: malformed PBES2 parameters: %w", err)
	}

	if !params.KeyDerivationFunc.Algorithm.Equal(oidPBKDF2) {
		return nil, fmt.Errorf("%w: key derivation %s", ErrUnsupported, params.KeyDerivationFunc.Algorithm)
	}
	var kdf pbkdf2Params
	if err := unmarshalStrict(params.KeyDerivationFunc.Parameters.FullBytes, &kdf); err != nil {
		return nil, fmt.Errorf("pkcs8: malformed PBKDF2 parameters: %w", err)
	}
	if kdf.IterationCount < 1 || kdf.IterationCount > maxIterations {
		return nil, fmt.Errorf("%w: %d PBKDF2 iterations", ErrUnsupported, kdf.IterationCount)
	}

	s := &pbes2Scheme{salt: kdf.Salt, iterations: kdf.IterationCount, ciphertext: info.EncryptedData}
	switch prf := kdf.PRF.Algorithm; {
	case len(prf) == 0, prf.Equal(oidHMACWithSHA1):
		s.prf = sha1.New
	case prf.Equal(oidHMACWithSHA256):
		s.prf = sha256.New
	case prf.Equal(oidHMACWithSHA384):
		s.prf = sha512.New384
	case prf.Equal(oidHMACWithSHA512):
		s.prf = sha512.New
	default:
		return nil, fmt.Errorf("%w: PBKDF2 PRF %s", ErrUnsupported, prf)
	}

	switch enc := params.EncryptionScheme.Algorithm; {
	case enc.Equal(oidAES128CBC):
		s.keyLen = 16
	case enc.Equal(oidAES192CBC):
		s.keyLen = 24
	case enc.Equal(oidAES256CBC):
		s.keyLen = 32
	default:
		return nil, fmt.Errorf("%w: cipher %s", ErrUnsupported, enc)
	}
	if kdf.KeyLength != 0 && kdf.KeyLength != s.keyLen {
		return nil, fmt.Errorf("pkcs8: PBKDF2 key length %d does not fit the cipher", kdf.KeyLength)
	}
	if err := unmarshalStrict(params.EncryptionScheme.Parameters.FullBytes, &s.iv); err != nil {
		return nil, fmt.Errorf("pkcs8: malformed cipher IV: %w", err)
	}
	if len(s.iv) != aes.BlockSize {
		return nil, fmt.Errorf("pkcs8: cipher IV is %d bytes", len(s.iv))
	}
	if len(s.ciphertext) == 0 || len(s.ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("pkcs8: ciphertext is not a whole number of blocks")
	}
	return s, nil
}

// decrypt returns the PrivateKeyInfo inside an EncryptedPrivateKeyInfo. A
// wrong password surfaces as ErrIncorrectPassword.
func decrypt(der, password []byte) ([]byte, error) {
	s, err := parseEncryptedPrivateKeyInfo(der)
	if err != nil {
		return nil, err
	}
	key := pbkdf2.Key(password, s.salt, s.iterations, s.keyLen, s.prf)
	defer clear(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(s.ciphertext))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(out, s.ciphertext)

	n := int(out[len(out)-1])
	if n == 0 || n > aes.BlockSize || n > len(out) {
		clear(out)
		return nil, ErrIncorrectPassword
	}
	if subtle.ConstantTimeCompare(out[len(out)-n:], bytes.Repeat([]byte{byte(n)}, n)) != 1 {
		clear(out)
		return nil, ErrIncorrectPassword
	}
	return out[:len(out)-n], nil
}
