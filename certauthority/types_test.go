////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package certauthority

import (
	"bytes"
	"testing"
)

// TestTLSCertificate_ChainOrderIsLeafFirst exercises the wire order
// TestSign_IntermediateBasicConstraintsVariants never does (it builds its
// own x509.CertPool rather than going through TLSCertificate): the DER list
// must read leaf, intermediate, root — the reverse of Chain's
// oldest-issuer-first storage order.
func TestTLSCertificate_ChainOrderIsLeafFirst(t *testing.T) {
	a := newTestAuthority(t)
	root, err := a.DefaultCA("root-ca.test")
	if err != nil {
		t.Fatalf("DefaultCA: %v", err)
	}

	imCSR, err := a.MakeCSR("intermediate.test")
	if err != nil {
		t.Fatalf("MakeCSR: %v", err)
	}
	bc := BCTrue
	intermediate, err := a.Sign(imCSR, root, &bc)
	if err != nil {
		t.Fatalf("Sign intermediate: %v", err)
	}

	leafCSR, err := a.MakeCSR("leaf.test")
	if err != nil {
		t.Fatalf("MakeCSR: %v", err)
	}
	leaf, err := a.Sign(leafCSR, intermediate, nil)
	if err != nil {
		t.Fatalf("Sign leaf: %v", err)
	}

	cert := leaf.TLSCertificate()
	if len(cert.Certificate) != 3 {
		t.Fatalf("want 3 DER certs (leaf, intermediate, root), got %d", len(cert.Certificate))
	}
	if !bytes.Equal(cert.Certificate[0], leaf.Leaf.Raw) {
		t.Errorf("wire position 0 is not the leaf certificate")
	}
	if !bytes.Equal(cert.Certificate[1], intermediate.Leaf.Raw) {
		t.Errorf("wire position 1 is not the intermediate certificate")
	}
	if !bytes.Equal(cert.Certificate[2], root.Leaf.Raw) {
		t.Errorf("wire position 2 is not the root certificate")
	}
}
