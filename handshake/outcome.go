////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package handshake drives one TLS handshake and a short post-handshake
// probe against an accepted connection, classifying what happened per
// spec.md §4.3.
package handshake

import "fmt"

// Outcome is the closed sum type a single handshake attempt produces.
type Outcome interface {
	fmt.Stringer
	isOutcome()
	// Matches implements the relaxed structural equality spec.md §4.3
	// describes: equal tag, equal alert for HandshakeError, and
	// ConnectedReadTimeout always matching ConnectedReadTimeout regardless
	// of any captured payload.
	Matches(other Outcome) bool
}

// HandshakeError means the TLS handshake itself failed. Alert carries the
// TLS alert name the peer sent, when known (e.g. "unknown_ca").
type HandshakeError struct {
	Alert string
}

func (HandshakeError) isOutcome() {}
func (o HandshakeError) String() string {
	if o.Alert == "" {
		return "HandshakeError"
	}
	return fmt.Sprintf("HandshakeError(%s)", o.Alert)
}
func (o HandshakeError) Matches(other Outcome) bool {
	peer, ok := other.(HandshakeError)
	return ok && peer.Alert == o.Alert
}

// UnexpectedEOF means the TCP connection closed before any TLS record
// arrived — a plain-TCP client, typically.
type UnexpectedEOF struct{}

func (UnexpectedEOF) isOutcome() {}
func (UnexpectedEOF) String() string { return "UnexpectedEOF" }
func (UnexpectedEOF) Matches(other Outcome) bool {
	_, ok := other.(UnexpectedEOF)
	return ok
}

// ConnectedReadTimeout means the handshake succeeded but no data arrived
// from the peer within the post-handshake read window. Handle leaves Data
// empty (any bytes read produce ConnectedGotRequest instead); it never
// affects equality.
type ConnectedReadTimeout struct {
	Data []byte
}

func (ConnectedReadTimeout) isOutcome()    {}
func (ConnectedReadTimeout) String() string { return "ConnectedReadTimeout" }
func (ConnectedReadTimeout) Matches(other Outcome) bool {
	_, ok := other.(ConnectedReadTimeout)
	return ok
}

// ConnectedGotRequest means the handshake succeeded and the peer sent data,
// captured as opaque bytes.
type ConnectedGotRequest struct {
	Data []byte
}

func (ConnectedGotRequest) isOutcome() {}
func (o ConnectedGotRequest) String() string {
	return fmt.Sprintf("ConnectedGotRequest(%d bytes)", len(o.Data))
}
func (o ConnectedGotRequest) Matches(other Outcome) bool {
	_, ok := other.(ConnectedGotRequest)
	return ok
}

// ConnectedSentClientCert means the handshake succeeded and the peer
// offered a client certificate; Chain holds the raw DER certificates it
// presented.
type ConnectedSentClientCert struct {
	Chain [][]byte
}

func (ConnectedSentClientCert) isOutcome() {}
func (o ConnectedSentClientCert) String() string {
	return fmt.Sprintf("ConnectedSentClientCert(%d certs)", len(o.Chain))
}
func (o ConnectedSentClientCert) Matches(other Outcome) bool {
	_, ok := other.(ConnectedSentClientCert)
	return ok
}
