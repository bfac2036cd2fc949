// Package ber rewrites BER-encoded ASN.1 into DER.
//
// PKCS#12 files exported by Java keytool, CryptoPro and older Windows tooling
// commonly use indefinite lengths and chunked OCTET STRINGs, which
// encoding/asn1 rejects. Normalize canonicalizes the framing without touching
// the bytes inside primitive values, so MACs computed over OCTET STRING
// contents still match after conversion.
package ber

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	classMask      = 0xC0
	constructedBit = 0x20
	tagNumberMask  = 0x1F

	lengthIndefinite = 0x80
	maxLengthOctets  = 4

	// maxDepth bounds recursion on hostile input.
	maxDepth = 64
)

const (
	tagBoolean     = 0x01
	tagInteger     = 0x02
	tagBitString   = 0x03
	tagOctetString = 0x04
)

// ErrTruncated is returned when the input ends inside an element.
var ErrTruncated = errors.New("ber: truncated input")

// Normalize returns the DER form of the single BER element in data. Trailing
// bytes after the element are an error.
func Normalize(data []byte) ([]byte, error) {
	d := decoder{in: data}
	var out bytes.Buffer
	if err := d.element(&out, 0); err != nil {
		return nil, err
	}
	if d.pos != len(d.in) {
		return nil, fmt.Errorf("ber: %d trailing bytes after element", len(d.in)-d.pos)
	}
	return out.Bytes(), nil
}

type header struct {
	tag        []byte // identifier octets, possibly multi-byte
	length     int
	indefinite bool
}

func (h header) class() byte       { return h.tag[0] & classMask }
func (h header) constructed() bool { return h.tag[0]&constructedBit != 0 }
func (h header) number() byte      { return h.tag[0] & tagNumberMask }

// universalString reports whether DER requires the primitive form for h.
func (h header) universalString() bool {
	if h.class() != 0 || len(h.tag) != 1 {
		return false
	}
	switch h.number() {
	case tagBitString, tagOctetString,
		0x0C, 0x12, 0x13, 0x14, 0x16, 0x17, 0x18, 0x1A, 0x1B, 0x1E:
		return true
	}
	return false
}

type decoder struct {
	in  []byte
	pos int
}

func (d *decoder) readHeader() (header, error) {
	start := d.pos
	if d.pos >= len(d.in) {
		return header{}, ErrTruncated
	}
	d.pos++
	if d.in[start]&tagNumberMask == tagNumberMask {
		for {
			if d.pos >= len(d.in) {
				return header{}, ErrTruncated
			}
			b := d.in[d.pos]
			d.pos++
			if b&0x80 == 0 {
				break
			}
		}
	}
	h := header{tag: d.in[start:d.pos]}

	if d.pos >= len(d.in) {
		return header{}, ErrTruncated
	}
	lb := d.in[d.pos]
	d.pos++
	switch {
	case lb == lengthIndefinite:
		if !h.constructed() {
			return header{}, errors.New("ber: indefinite length on primitive element")
		}
		h.indefinite = true
	case lb&0x80 == 0:
		h.length = int(lb)
	default:
		n := int(lb & 0x7F)
		if n > maxLengthOctets {
			return header{}, fmt.Errorf("ber: length field of %d octets not supported", n)
		}
		if d.pos+n > len(d.in) {
			return header{}, ErrTruncated
		}
		for _, b := range d.in[d.pos : d.pos+n] {
			h.length = h.length<<8 | int(b)
		}
		d.pos += n
		if h.length < 0 {
			return header{}, errors.New("ber: negative length")
		}
	}
	if !h.indefinite && h.length > len(d.in)-d.pos {
		return header{}, ErrTruncated
	}
	return h, nil
}

// atEOC reports whether the cursor sits on an end-of-contents marker.
func (d *decoder) atEOC() bool {
	return d.pos+1 < len(d.in) && d.in[d.pos] == 0 && d.in[d.pos+1] == 0
}

// children normalizes every child of a constructed element into out and
// leaves the cursor after the element.
func (d *decoder) children(h header, out *bytes.Buffer, depth int) error {
	if h.indefinite {
		for !d.atEOC() {
			if d.pos >= len(d.in) {
				return errors.New("ber: missing end-of-contents")
			}
			if err := d.element(out, depth+1); err != nil {
				return err
			}
		}
		d.pos += 2
		return nil
	}
	sub := decoder{in: d.in[:d.pos+h.length], pos: d.pos}
	for sub.pos < len(sub.in) {
		if err := sub.element(out, depth+1); err != nil {
			return err
		}
	}
	d.pos = sub.pos
	return nil
}

func (d *decoder) element(out *bytes.Buffer, depth int) error {
	if depth > maxDepth {
		return errors.New("ber: nesting too deep")
	}
	h, err := d.readHeader()
	if err != nil {
		return err
	}

	if h.constructed() && h.universalString() {
		var segments bytes.Buffer
		if err := d.children(h, &segments, depth); err != nil {
			return err
		}
		value, err := joinSegments(segments.Bytes(), h.number() == tagBitString)
		if err != nil {
			return err
		}
		tag := append([]byte{}, h.tag...)
		tag[0] &^= constructedBit
		writeElement(out, tag, value)
		return nil
	}

	if h.constructed() {
		var inner bytes.Buffer
		if err := d.children(h, &inner, depth); err != nil {
			return err
		}
		writeElement(out, h.tag, inner.Bytes())
		return nil
	}

	value := d.in[d.pos : d.pos+h.length]
	d.pos += h.length
	if h.class() == 0 {
		switch h.number() {
		case tagBoolean:
			if len(value) != 1 {
				return errors.New("ber: BOOLEAN must be one octet")
			}
			if value[0] != 0 {
				value = []byte{0xFF}
			}
		case tagInteger:
			if len(value) == 0 {
				return errors.New("ber: empty INTEGER")
			}
			for len(value) > 1 && value[0] == 0 && value[1]&0x80 == 0 {
				value = value[1:]
			}
		}
	}
	writeElement(out, h.tag, value)
	return nil
}

// joinSegments concatenates the values of already-normalized primitive
// segments. BIT STRING segments each lead with an unused-bits octet and only
// the last may be non-zero.
func joinSegments(der []byte, bitString bool) ([]byte, error) {
	var value []byte
	var unused byte
	if bitString {
		value = []byte{0}
	}
	d := decoder{in: der}
	for d.pos < len(der) {
		h, err := d.readHeader()
		if err != nil {
			return nil, err
		}
		seg := der[d.pos : d.pos+h.length]
		d.pos += h.length
		if !bitString {
			value = append(value, seg...)
			continue
		}
		if len(seg) == 0 {
			return nil, errors.New("ber: BIT STRING segment without unused-bits octet")
		}
		if unused != 0 {
			return nil, errors.New("ber: unused bits in non-final BIT STRING segment")
		}
		unused = seg[0]
		value = append(value, seg[1:]...)
	}
	if bitString {
		value[0] = unused
	}
	return value, nil
}

func writeElement(out *bytes.Buffer, tag, value []byte) {
	out.Write(tag)
	n := len(value)
	switch {
	case n < 0x80:
		out.WriteByte(byte(n))
	default:
		var lenBytes []byte
		for v := n; v > 0; v >>= 8 {
			lenBytes = append([]byte{byte(v)}, lenBytes...)
		}
		out.WriteByte(0x80 | byte(len(lenBytes)))
		out.Write(lenBytes)
	}
	out.Write(value)
}
