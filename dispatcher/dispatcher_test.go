////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

package dispatcher

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"gitlab.com/sslcaudit/sslcaudit/audit"
	"gitlab.com/sslcaudit/sslcaudit/certauthority"
	"gitlab.com/sslcaudit/sslcaudit/handshake"
	"gitlab.com/sslcaudit/sslcaudit/profile"
)

func testPlan(t *testing.T, n int) profile.Plan {
	t.Helper()
	bag, err := certauthority.NewFileBag(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileBag: %v", err)
	}
	t.Cleanup(func() { _ = bag.Close() })
	a := certauthority.NewAuthority(bag)

	var plan profile.Plan
	for i := 0; i < n; i++ {
		csr, err := a.MakeCSR("plan-step.test")
		if err != nil {
			t.Fatalf("MakeCSR: %v", err)
		}
		cnk, err := a.SelfSign(csr)
		if err != nil {
			t.Fatalf("SelfSign: %v", err)
		}
		plan = append(plan, profile.Profile{
			Spec:        profile.SelfSigned{CN: "plan-step.test"},
			CertNKey:    cnk,
			HandlerKind: profile.HandlerSSLCert,
		})
	}
	return plan
}

func TestDispatcher_SingleClientWalksPlanInOrder(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	plan := testPlan(t, 3)
	d := New(ln, plan, handshake.Options{HandshakeTimeout: time.Second, ReadTimeout: 100 * time.Millisecond}, 1)

	go d.Run()

	for i := 0; i < len(plan); i++ {
		conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true})
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conn.Close()
	}

	var results []audit.Event
	deadline := time.After(3 * time.Second)
	sawStart, sawEnd := false, false
	for len(results) < len(plan)+2 {
		select {
		case ev := <-d.Events():
			results = append(results, ev)
			switch ev.(type) {
			case audit.ClientAuditStart:
				sawStart = true
			case audit.ClientAuditEnd:
				sawEnd = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d so far", len(results))
		}
	}

	if !sawStart || !sawEnd {
		t.Errorf("expected a ClientAuditStart and ClientAuditEnd, start=%v end=%v", sawStart, sawEnd)
	}

	var resultCount int
	for _, ev := range results {
		if _, ok := ev.(audit.ClientConnectionAuditResult); ok {
			resultCount++
		}
	}
	if resultCount != len(plan) {
		t.Errorf("want %d ClientConnectionAuditResult events, got %d", len(plan), resultCount)
	}

	d.Stop()
	d.Wait()
}

func TestClientIDFromAddr_DropsPort(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 54321}
	if got := clientIDFromAddr(addr); got != "127.0.0.1" {
		t.Errorf("want 127.0.0.1, got %s", got)
	}
}
