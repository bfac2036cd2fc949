package pkcs8

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"go.cypherpunks.ru/gogost/v5/gost3410"

	pkiasn1 "github.com/mdean75/esia-sign/internal/asn1"
)

// privateKeyInfo is the PKCS#8 structure; attributes and the optional public
// key of OneAsymmetricKey are ignored.
type privateKeyInfo struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// gostKeyParams are the GostR3410-2012-PublicKeyParameters; the digest and
// encryption parameter sets that may follow are ignored.
type gostKeyParams struct {
	Curve asn1.ObjectIdentifier
}

// gostCurves maps public key parameter set OIDs to gogost curves.
var gostCurves = map[string]func() *gost3410.Curve{
	"1.2.643.7.1.2.1.1.1": gost3410.CurveIdtc26gost34102012256paramSetA,
	"1.2.643.7.1.2.1.1.2": gost3410.CurveIdtc26gost34102012256paramSetB,
	"1.2.643.7.1.2.1.1.3": gost3410.CurveIdtc26gost34102012256paramSetC,
	"1.2.643.7.1.2.1.1.4": gost3410.CurveIdtc26gost34102012256paramSetD,
	"1.2.643.7.1.2.1.2.1": gost3410.CurveIdtc26gost34102012512paramSetA,
	"1.2.643.7.1.2.1.2.2": gost3410.CurveIdtc26gost34102012512paramSetB,
	"1.2.643.7.1.2.1.2.3": gost3410.CurveIdtc26gost34102012512paramSetC,
	"1.2.643.2.2.35.1":    gost3410.CurveIdGostR34102001CryptoProAParamSet,
	"1.2.643.2.2.35.2":    gost3410.CurveIdGostR34102001CryptoProBParamSet,
	"1.2.643.2.2.35.3":    gost3410.CurveIdGostR34102001CryptoProCParamSet,
	"1.2.643.2.2.36.0":    gost3410.CurveIdGostR34102001CryptoProXchAParamSet,
	"1.2.643.2.2.36.1":    gost3410.CurveIdGostR34102001CryptoProXchBParamSet,
}

func isGOST(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(pkiasn1.OIDGOST34102012256) || oid.Equal(pkiasn1.OIDGOST34102012512)
}

// parseGOSTKey decodes a GOST R 34.10-2012 PrivateKeyInfo.
func parseGOSTKey(info privateKeyInfo) (*gost3410.PrivateKey, error) {
	var params gostKeyParams
	if err := unmarshalStrict(info.Algorithm.Parameters.FullBytes, &params); err != nil {
		// Some encoders put the bare parameter set OID here.
		if err := unmarshalStrict(info.Algorithm.Parameters.FullBytes, &params.Curve); err != nil {
			return nil, fmt.Errorf("%w: GOST key parameters: %v", ErrUnsupported, err)
		}
	}
	newCurve, ok := gostCurves[params.Curve.String()]
	if !ok {
		return nil, fmt.Errorf("%w: GOST parameter set %s", ErrUnsupported, params.Curve)
	}
	curve := newCurve()

	size := 32
	if info.Algorithm.Algorithm.Equal(pkiasn1.OIDGOST34102012512) {
		size = 64
	}
	if curve.PointSize() != size {
		return nil, fmt.Errorf("%w: parameter set %s does not fit a %d-bit key",
			ErrUnsupported, params.Curve, size*8)
	}

	raw, err := gostScalar(info.PrivateKey, size)
	if err != nil {
		return nil, err
	}
	defer clear(raw)
	key, err := gost3410.NewPrivateKey(curve, raw)
	if err != nil {
		return nil, fmt.Errorf("pkcs8: GOST private key: %w", err)
	}
	return key, nil
}

// gostScalar returns the little-endian private scalar of size bytes. The key
// field holds an OCTET STRING of the little-endian value (RFC 9215), an
// INTEGER as some older encoders write, or the bare little-endian bytes.
func gostScalar(b []byte, size int) ([]byte, error) {
	var le []byte
	if err := unmarshalStrict(b, &le); err == nil {
		if len(le) > size {
			return nil, fmt.Errorf("%w: GOST key is %d bytes, want %d", ErrUnsupported, len(le), size)
		}
		out := make([]byte, size)
		copy(out, le)
		return out, nil
	}
	var n *big.Int
	if err := unmarshalStrict(b, &n); err == nil {
		if n.Sign() <= 0 || n.BitLen() > size*8 {
			return nil, fmt.Errorf("%w: GOST key integer out of range", ErrUnsupported)
		}
		be := n.FillBytes(make([]byte, size))
		for i, j := 0, len(be)-1; i < j; i, j = i+1, j-1 {
			be[i], be[j] = be[j], be[i]
		}
		return be, nil
	}
	if len(b) == size {
		return append([]byte(nil), b...), nil
	}
	return nil, fmt.Errorf("%w: unrecognised GOST key encoding", ErrUnsupported)
}

// unmarshalStrict is asn1.Unmarshal rejecting trailing data.
func unmarshalStrict(der []byte, v any) error {
	rest, err := asn1.Unmarshal(der, v)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errors.New("trailing data after ASN.1 value")
	}
	return nil
}
