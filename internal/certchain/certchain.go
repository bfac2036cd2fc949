// Package certchain orders loose certificates into a signer chain.
package certchain

import (
	"bytes"
	"crypto/x509"
)

// Build follows issuer links from leaf through certs until it reaches a
// self-signed certificate or an issuer that is not in certs. The result
// starts with leaf.
func Build(leaf *x509.Certificate, certs []*x509.Certificate) []*x509.Certificate {
	chain := []*x509.Certificate{leaf}
	seen := map[*x509.Certificate]bool{leaf: true}
	for cur := leaf; !bytes.Equal(cur.RawIssuer, cur.RawSubject); {
		var next *x509.Certificate
		for _, c := range certs {
			if !seen[c] && bytes.Equal(c.RawSubject, cur.RawIssuer) {
				next = c
				break
			}
		}
		if next == nil {
			break
		}
		seen[next] = true
		chain = append(chain, next)
		cur = next
	}
	return chain
}
