////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package audit defines the events the dispatcher publishes and a sink
// consumes, per spec.md §4.4 and §6's result-line format.
package audit

import (
	"fmt"

	"gitlab.com/sslcaudit/sslcaudit/handshake"
	"gitlab.com/sslcaudit/sslcaudit/profile"
)

// Event is the closed sum type published by the dispatcher.
type Event interface {
	isEvent()
}

// ClientAuditStart is published when a new client_id is first seen.
type ClientAuditStart struct {
	ClientID string
}

func (ClientAuditStart) isEvent() {}

// ClientConnectionAuditResult is published once per completed connection;
// this is the event the sink renders as a result line (spec.md §6).
type ClientConnectionAuditResult struct {
	ClientID string
	// RemoteAddr is the connection's full remote address (host:port), kept
	// separate from ClientID since ClientID intentionally drops the port
	// so that a client's reconnecting on a new ephemeral port is still
	// recognized as the same client for plan serialization (spec.md §4.4).
	RemoteAddr string
	Profile    profile.Profile
	Outcome    handshake.Outcome
}

func (ClientConnectionAuditResult) isEvent() {}

// ClientAuditEnd is published once a client's cursor passes the last
// profile in the plan.
type ClientAuditEnd struct {
	ClientID string
}

func (ClientAuditEnd) isEvent() {}

// InternalError is published for the "Internal" error category spec.md §7
// describes — a worker panic or I/O failure unrelated to any one client's
// outcome. The run continues; this does not stop the listener.
type InternalError struct {
	Message string
}

func (InternalError) isEvent() {}

// String renders events in a form suitable for the default sink and for
// diagnostic logging.
func String(e Event) string {
	switch ev := e.(type) {
	case ClientAuditStart:
		return fmt.Sprintf("ClientAuditStart(%s)", ev.ClientID)
	case ClientConnectionAuditResult:
		return fmt.Sprintf("%-22s %-70s %s", ev.RemoteAddr, ev.Profile.Spec.String(), ev.Outcome.String())
	case ClientAuditEnd:
		return fmt.Sprintf("ClientAuditEnd(%s)", ev.ClientID)
	case InternalError:
		return fmt.Sprintf("InternalError(%s)", ev.Message)
	default:
		return "unknown event"
	}
}
