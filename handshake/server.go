////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package handshake

import (
	"crypto/tls"
	"io"
	"net"
	"strings"
	"time"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
)

// probeBufSize bounds the single post-handshake read spec.md §4.3 step 4
// calls for.
const probeBufSize = 4096

// Options configures one Handle call. HandshakeTimeout and ReadTimeout
// default to 5s each when zero, matching spec.md §4.3's stated defaults —
// kept as Options fields rather than constants, per original_source's
// SSLServerHandler base class taking them as constructor parameters.
type Options struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 5 * time.Second
	}
	return o
}

// Handle drives one TLS handshake over conn using cnk's certificate chain
// and key, requesting (but not requiring) a client certificate, then
// performs the single non-blocking probe read spec.md §4.3 describes. conn
// is closed before Handle returns.
func Handle(conn net.Conn, cnk certauthority.CertNKey, override *tls.Config, opts Options) Outcome {
	defer conn.Close()
	opts = opts.withDefaults()

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cnk.TLSCertificate()},
		ClientAuth:   tls.RequestClientCert,
	}
	if override != nil {
		cfg.MinVersion = override.MinVersion
		cfg.MaxVersion = override.MaxVersion
		cfg.CipherSuites = override.CipherSuites
	}

	tlsConn := tls.Server(conn, cfg)

	if err := conn.SetDeadline(time.Now().Add(opts.HandshakeTimeout)); err != nil {
		return HandshakeError{Alert: "local_deadline_error"}
	}
	if err := tlsConn.Handshake(); err != nil {
		return classifyHandshakeError(err)
	}

	if certs := tlsConn.ConnectionState().PeerCertificates; len(certs) > 0 {
		chain := make([][]byte, len(certs))
		for i, c := range certs {
			chain[i] = c.Raw
		}
		return ConnectedSentClientCert{Chain: chain}
	}

	if err := conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout)); err != nil {
		return ConnectedReadTimeout{}
	}
	buf := make([]byte, probeBufSize)
	n, err := tlsConn.Read(buf)
	if n > 0 {
		return ConnectedGotRequest{Data: buf[:n]}
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ConnectedReadTimeout{}
		}
		if err == io.EOF {
			return ConnectedReadTimeout{}
		}
	}
	return ConnectedReadTimeout{}
}

// classifyHandshakeError turns the opaque errors crypto/tls returns into
// the outcome taxonomy spec.md §4.3 describes. crypto/tls does not expose
// a structured alert code, only a human-readable error string, so this is
// a best-effort substring classifier — the Go adaptation of the "read the
// TLS alert" behavior original_source implements by reading off the
// socket directly.
func classifyHandshakeError(err error) Outcome {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return UnexpectedEOF{}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unexpected eof") || strings.Contains(msg, "connection reset"):
		return UnexpectedEOF{}
	case strings.Contains(msg, "unknown authority") || strings.Contains(msg, "unknown certificate authority"):
		return HandshakeError{Alert: "unknown_ca"}
	case strings.Contains(msg, "bad certificate") || strings.Contains(msg, "certificate is not valid") || strings.Contains(msg, "certificate invalid"):
		return HandshakeError{Alert: "bad_certificate"}
	case strings.Contains(msg, "certificate expired"):
		return HandshakeError{Alert: "certificate_expired"}
	case strings.Contains(msg, "no cipher suite") || strings.Contains(msg, "no mutually supported"):
		return HandshakeError{Alert: "handshake_failure"}
	case strings.Contains(msg, "protocol version"):
		return HandshakeError{Alert: "protocol_version"}
	case strings.Contains(msg, "timeout"):
		return HandshakeError{Alert: "timeout"}
	default:
		return HandshakeError{Alert: "handshake_failure"}
	}
}
