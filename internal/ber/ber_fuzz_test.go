package ber

import (
	"bytes"
	"testing"
)

// FuzzNormalize checks that Normalize never panics and that its output is a
// fixed point.
func FuzzNormalize(f *testing.F) {
	f.Add([]byte{0x30, 0x00})
	f.Add([]byte{0x01, 0x01, 0x01})
	f.Add([]byte{0x02, 0x02, 0x00, 0x01})
	f.Add([]byte{0x30, 0x80, 0x01, 0x01, 0xFF, 0x00, 0x00})
	f.Add([]byte{0x24, 0x80, 0x04, 0x01, 'a', 0x00, 0x00})
	f.Add([]byte{0x23, 0x04, 0x03, 0x02, 0x00, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		first, err := Normalize(data)
		if err != nil {
			return
		}
		second, err := Normalize(first)
		if err != nil {
			t.Fatalf("normalized output rejected: %v", err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("Normalize is not idempotent")
		}
	})
}
