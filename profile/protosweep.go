////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package profile

import "crypto/tls"

// protoSweepEntry is one (protocol, cipher-class) combination in the
// sslproto module's grid. spec.md §4.2 describes the grid as
// {sslv23} × {HIGH, MEDIUM, LOW, EXPORT} — OpenSSL vocabulary that has no
// literal equivalent in Go's crypto/tls (no SSLv2/SSLv3, no named cipher
// rule-lists, and the stdlib simply never implements export-grade
// ciphers). Each entry below approximates one class using the closest
// thing crypto/tls actually offers; see SPEC_FULL.md §4.2 and DESIGN.md
// for the reasoning, and spec.md §9's note that this module exists but
// isn't wired into the default plan.
type protoSweepEntry struct {
	ProtoLabel  string
	CipherLabel string
	Config      *tls.Config
}

func protoSweepGrid() []protoSweepEntry {
	modern := []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	}
	cbc := []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
		tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
		tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	}
	weak := []uint16{
		tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA,
		tls.TLS_RSA_WITH_RC4_128_SHA,
	}

	cfg := func(suites []uint16) *tls.Config {
		return &tls.Config{
			MinVersion:   tls.VersionTLS12,
			MaxVersion:   tls.VersionTLS12,
			CipherSuites: suites,
		}
	}

	return []protoSweepEntry{
		{ProtoLabel: "sslv23", CipherLabel: "HIGH", Config: cfg(modern)},
		{ProtoLabel: "sslv23", CipherLabel: "MEDIUM", Config: cfg(cbc)},
		{ProtoLabel: "sslv23", CipherLabel: "LOW", Config: cfg(weak)},
		// EXPORT: Go's stdlib has never implemented 40/56-bit export
		// ciphers; the weakest still-constructible suite stands in for it
		// so the slot in the grid is occupied rather than silently
		// dropped — see DESIGN.md's Open Question resolution.
		{ProtoLabel: "sslv23", CipherLabel: "EXPORT", Config: cfg(weak[len(weak)-1:])},
	}
}
