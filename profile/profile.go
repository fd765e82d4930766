////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package profile

import (
	"crypto/tls"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
)

// HandlerKind labels which handshake strategy a Profile uses. Every
// profile is driven through the same handshake machinery; the kind records
// which module produced a profile, and its values are the module names the
// "-m MODULE" selector accepts.
type HandlerKind string

const (
	// HandlerSSLCert is the certificate-variation module (self-signed,
	// CA-signed, intermediate-CA variants).
	HandlerSSLCert HandlerKind = "sslcert"
	// HandlerSSLProto is the protocol/cipher sweep module.
	HandlerSSLProto HandlerKind = "sslproto"
)

// Profile is one fully-materialized server-side TLS configuration: the
// certificate chain and key to present, plus which handler module
// produced it. Profiles are ordered within a Plan; that order is the
// contract clients are tested against (spec.md §3).
type Profile struct {
	Spec        Spec
	CertNKey    certauthority.CertNKey
	HandlerKind HandlerKind

	// TLSConfigOverride narrows the protocol/cipher suite offered for this
	// profile. Nil for every module except sslproto, where it carries the
	// swept (min/max version, cipher suite) combination.
	TLSConfigOverride *tls.Config
}

// Plan is the ordered list of profiles a single client is tested against.
type Plan []Profile
