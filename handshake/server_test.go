////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package handshake

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"gitlab.com/sslcaudit/sslcaudit/certauthority"
)

func testCertNKey(t *testing.T) certauthority.CertNKey {
	t.Helper()
	bag, err := certauthority.NewFileBag(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBag: %v", err)
	}
	t.Cleanup(func() { _ = bag.Close() })
	a := certauthority.NewAuthority(bag)
	csr, err := a.MakeCSR("leaf.test")
	if err != nil {
		t.Fatalf("MakeCSR: %v", err)
	}
	cnk, err := a.SelfSign(csr)
	if err != nil {
		t.Fatalf("SelfSign: %v", err)
	}
	return cnk
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func TestHandle_PlainTCPClient(t *testing.T) {
	ln := listen(t)
	cnk := testCertNKey(t)

	outcomeCh := make(chan Outcome, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			outcomeCh <- HandshakeError{Alert: "accept_failed"}
			return
		}
		outcomeCh <- Handle(conn, cnk, nil, Options{HandshakeTimeout: time.Second, ReadTimeout: time.Second})
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.Close() // plain-TCP client: close before any TLS record

	got := <-outcomeCh
	if !got.Matches(UnexpectedEOF{}) {
		t.Errorf("want UnexpectedEOF, got %s", got)
	}
}

func TestHandle_NonValidatingClient_SendsNothing(t *testing.T) {
	ln := listen(t)
	cnk := testCertNKey(t)

	outcomeCh := make(chan Outcome, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			outcomeCh <- HandshakeError{Alert: "accept_failed"}
			return
		}
		outcomeCh <- Handle(conn, cnk, nil, Options{HandshakeTimeout: time.Second, ReadTimeout: 200 * time.Millisecond})
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("tls.Dial: %v", err)
	}
	defer conn.Close()

	got := <-outcomeCh
	if !got.Matches(ConnectedReadTimeout{}) {
		t.Errorf("want ConnectedReadTimeout, got %s", got)
	}
}

func TestHandle_ClientSendsRequest(t *testing.T) {
	ln := listen(t)
	cnk := testCertNKey(t)

	outcomeCh := make(chan Outcome, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			outcomeCh <- HandshakeError{Alert: "accept_failed"}
			return
		}
		outcomeCh <- Handle(conn, cnk, nil, Options{HandshakeTimeout: time.Second, ReadTimeout: time.Second})
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("tls.Dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := <-outcomeCh
	if _, ok := got.(ConnectedGotRequest); !ok {
		t.Errorf("want ConnectedGotRequest, got %s", got)
	}
}

func TestHandle_ChainValidatingClient_RejectsUnknownCA(t *testing.T) {
	ln := listen(t)
	cnk := testCertNKey(t) // self-signed, not trusted by the dialer below

	outcomeCh := make(chan Outcome, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			outcomeCh <- HandshakeError{Alert: "accept_failed"}
			return
		}
		outcomeCh <- Handle(conn, cnk, nil, Options{HandshakeTimeout: time.Second, ReadTimeout: time.Second})
	}()

	dialErrCh := make(chan error, 1)
	go func() {
		conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{})
		if conn != nil {
			conn.Close()
		}
		dialErrCh <- err
	}()

	if err := <-dialErrCh; err == nil {
		t.Fatalf("expected dial to fail chain validation")
	}

	got := <-outcomeCh
	if _, ok := got.(HandshakeError); !ok {
		t.Errorf("want HandshakeError, got %s", got)
	}
}

func TestHandle_ClientPresentsCert(t *testing.T) {
	ln := listen(t)
	bag, err := certauthority.NewFileBag(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBag: %v", err)
	}
	defer bag.Close()
	a := certauthority.NewAuthority(bag)

	serverCSR, err := a.MakeCSR("server.test")
	if err != nil {
		t.Fatalf("MakeCSR: %v", err)
	}
	serverCert, err := a.SelfSign(serverCSR)
	if err != nil {
		t.Fatalf("SelfSign: %v", err)
	}

	clientCSR, err := a.MakeCSR("client.test")
	if err != nil {
		t.Fatalf("MakeCSR: %v", err)
	}
	clientCert, err := a.SelfSign(clientCSR)
	if err != nil {
		t.Fatalf("SelfSign: %v", err)
	}

	outcomeCh := make(chan Outcome, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			outcomeCh <- HandshakeError{Alert: "accept_failed"}
			return
		}
		outcomeCh <- Handle(conn, serverCert, nil, Options{HandshakeTimeout: time.Second, ReadTimeout: time.Second})
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{
		InsecureSkipVerify: true,
		Certificates:       []tls.Certificate{clientCert.TLSCertificate()},
	})
	if err != nil {
		t.Fatalf("tls.Dial: %v", err)
	}
	defer conn.Close()

	got := <-outcomeCh
	if _, ok := got.(ConnectedSentClientCert); !ok {
		t.Errorf("want ConnectedSentClientCert, got %s", got)
	}
}
