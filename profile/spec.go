////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package profile enumerates the audit plan: the ordered list of
// certificate/protocol profiles a client is tested against, per spec.md §4.2.
package profile

import (
	"fmt"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
)

// Spec is the closed sum type describing, in human terms, what a profile
// means — one of SelfSigned, Signed, IMCASigned, or SSLProtoSpec, per
// spec.md §3, plus UserSupplied for --user-cert/--user-key. Two specs are equal iff all their fields are equal; every
// variant here is a plain comparable struct so Go's == does the right
// thing directly, and callers needing a map key can use a Spec value as
// one.
type Spec interface {
	fmt.Stringer
	isSpec()
}

// SelfSigned is a leaf certificate that signs itself.
type SelfSigned struct {
	CN string
}

func (SelfSigned) isSpec() {}
func (s SelfSigned) String() string {
	return fmt.Sprintf("SelfSigned(%s)", s.CN)
}

// Signed is a leaf certificate signed directly by a CA.
type Signed struct {
	CN   string
	CACN string
}

func (Signed) isSpec() {}
func (s Signed) String() string {
	return fmt.Sprintf("Signed(%s, %s)", s.CN, s.CACN)
}

// IMCASigned is a leaf certificate signed through a synthesized
// intermediate CA carrying the given BasicConstraints variant.
type IMCASigned struct {
	CN       string
	Variant  certauthority.BasicConstraintsVariant
	RootCACN string
}

func (IMCASigned) isSpec() {}
func (s IMCASigned) String() string {
	return fmt.Sprintf("IMCASigned(%s, %s, %s)", s.CN, s.Variant, s.RootCACN)
}

// UserSupplied presents the operator's own cert+key verbatim as one
// profile, per spec.md §6's --user-cert/--user-key flags.
type UserSupplied struct {
	CN string
}

func (UserSupplied) isSpec() {}
func (s UserSupplied) String() string {
	return fmt.Sprintf("UserSupplied(%s)", s.CN)
}

// SSLProtoSpec is a protocol/cipher sweep entry; its leaf is a throwaway
// self-signed certificate, per spec.md §3.
type SSLProtoSpec struct {
	Proto  string
	Cipher string
}

func (SSLProtoSpec) isSpec() {}
func (s SSLProtoSpec) String() string {
	return fmt.Sprintf("SSLProtoSpec(%s, %s)", s.Proto, s.Cipher)
}
