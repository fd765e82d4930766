////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package certauthority

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
)

// CertNKey is an immutable bundle of a leaf certificate, its private key,
// and the (possibly empty) issuer chain above it, as described in
// spec.md §3. Every profile that shares material (e.g. the same CA signing
// many leaves) shares one CertNKey for that material rather than
// regenerating it.
type CertNKey struct {
	Leaf  *x509.Certificate
	Key   *rsa.PrivateKey
	Chain []*x509.Certificate

	// LeafPath/KeyPath are set once the bundle has been persisted to a
	// FileBag; empty until then.
	LeafPath string
	KeyPath  string
}

// TLSCertificate builds the tls.Certificate sslcaudit presents on the wire:
// the leaf followed by its chain, nearest issuer first, as RFC 8446 §4.4.2
// requires ("each subsequent certificate MUST directly certify the one
// immediately preceding it"). Chain is stored oldest-issuer-first (root
// before intermediate, per Sign's "issuer.Chain ++ [issuer.Leaf]"
// accumulation), so it's walked in reverse here.
func (c CertNKey) TLSCertificate() tls.Certificate {
	der := make([][]byte, 0, 1+len(c.Chain))
	der = append(der, c.Leaf.Raw)
	for i := len(c.Chain) - 1; i >= 0; i-- {
		der = append(der, c.Chain[i].Raw)
	}
	return tls.Certificate{
		Certificate: der,
		PrivateKey:  c.Key,
		Leaf:        c.Leaf,
	}
}

// KeyPair is a generated RSA key pair, fixed at 2048 bits per spec.md §4.1.
type KeyPair struct {
	Private *rsa.PrivateKey
}

// Public returns the corresponding public key.
func (k KeyPair) Public() *rsa.PublicKey {
	return &k.Private.PublicKey
}

// CSR is a parsed certificate signing request together with the key that
// produced it, since sslcaudit always generates and signs in the same
// breath rather than accepting CSRs from elsewhere.
type CSR struct {
	Request *x509.CertificateRequest
	Key     *rsa.PrivateKey
}
