////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package sink defines the seam between the core and wherever result
// events end up — stdout by default, but spec.md §1 notes a GUI wrapper is
// a separate external collaborator that could consume the same interface.
package sink

import (
	"fmt"
	"io"
	"sync"

	"gitlab.com/sslcaudit/sslcaudit/audit"
)

// Sink consumes audit events as they're published.
type Sink interface {
	Consume(audit.Event)
}

// LineSink writes the fixed-column result-line format of spec.md §6 to an
// io.Writer, normally stdout. TestName is prefixed onto every line; it is
// the -N flag's value.
type LineSink struct {
	mu       sync.Mutex
	w        io.Writer
	TestName string
}

// NewLineSink returns a LineSink writing to w with the given test name.
func NewLineSink(w io.Writer, testName string) *LineSink {
	return &LineSink{w: w, TestName: testName}
}

// Consume implements Sink. Only ClientConnectionAuditResult events produce
// the fixed-column result line; the other event kinds produce no output
// here, since spec.md §6 defines the line format specifically for
// connection results.
func (s *LineSink) Consume(e audit.Event) {
	result, ok := e.(audit.ClientConnectionAuditResult)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%-25s %-22s %-70s %s\n",
		s.TestName, result.RemoteAddr, result.Profile.Spec.String(), result.Outcome.String())
}

// DiscardSink drops every event; used by tests and by embedders that only
// want to poll a separate channel of their own.
type DiscardSink struct{}

func (DiscardSink) Consume(audit.Event) {}
