////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package controller wires the dispatcher to a sink and owns the run's
// overall start/stop lifecycle, per spec.md §4.5.
package controller

import (
	"context"
	"net"
	"sync"
	"time"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/pkg/errors"

	"gitlab.com/sslcaudit/sslcaudit/audit"
	"gitlab.com/sslcaudit/sslcaudit/certauthority"
	"gitlab.com/sslcaudit/sslcaudit/dispatcher"
	"gitlab.com/sslcaudit/sslcaudit/handshake"
	"gitlab.com/sslcaudit/sslcaudit/options"
	"gitlab.com/sslcaudit/sslcaudit/profile"
	"gitlab.com/sslcaudit/sslcaudit/sink"
)

// resultPollInterval bounds how long the result-reader blocks on an empty
// event channel before re-checking for shutdown, mirroring the
// dispatcher's accept-loop poll in spec.md §4.4.
const resultPollInterval = 200 * time.Millisecond

// Controller builds the plan, owns the listener and dispatcher, and runs
// the result-reader goroutine that forwards events to a Sink.
type Controller struct {
	opts      options.Options
	authority *certauthority.Authority
	sink      sink.Sink

	ln   net.Listener
	disp *dispatcher.Dispatcher

	wg   sync.WaitGroup
	done chan struct{}
}

// New constructs a Controller; it does not bind a listener or start
// anything until Start is called.
func New(opts options.Options, authority *certauthority.Authority, s sink.Sink) *Controller {
	return &Controller{opts: opts, authority: authority, sink: s, done: make(chan struct{})}
}

// Start builds the audit plan, binds the listener, and spawns the
// dispatcher and result-reader goroutines. Only configuration and startup
// errors propagate out of Start, per spec.md §7's propagation policy —
// everything after this point is converted into an event.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.opts.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	if c.opts.HasUserCA() {
		if _, err := c.authority.LoadUserCA(c.opts.UserCACertPath, c.opts.UserCAKeyPath); err != nil {
			return errors.Wrap(err, "load user CA")
		}
	}

	plan, err := profile.BuildPlan(c.opts, c.authority)
	if err != nil {
		return errors.Wrap(err, "build audit plan")
	}
	jww.INFO.Printf("built plan with %d profiles", len(plan))

	ln, err := net.Listen("tcp", c.opts.Listen)
	if err != nil {
		return errors.Wrapf(err, "bind %s", c.opts.Listen)
	}
	c.ln = ln

	handshakeO := handshake.Options{
		HandshakeTimeout: c.opts.HandshakeTimeout,
		ReadTimeout:      c.opts.ReadTimeout,
	}
	c.disp = dispatcher.New(ln, plan, handshakeO, c.opts.NumClients)

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.disp.Run()
	}()
	go func() {
		defer c.wg.Done()
		c.resultReader(ctx)
	}()

	return nil
}

func (c *Controller) resultReader(ctx context.Context) {
	defer close(c.done)
	completed := 0
	events := c.disp.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.sink.Consume(ev)
			if _, isEnd := ev.(audit.ClientAuditEnd); isEnd {
				completed++
				if completed >= c.opts.NumClients {
					return
				}
			}
		case <-time.After(resultPollInterval):
		}
	}
}

// Stop signals the dispatcher to stop accepting, closes the listener, and
// joins the accept and result-reader goroutines up to JoinTimeout. Stop
// never returns an error itself; a join timeout is logged, per spec.md §7.
func (c *Controller) Stop() {
	if c.disp != nil {
		c.disp.Stop()
	}
	if c.ln != nil {
		if err := c.ln.Close(); err != nil {
			jww.WARN.Printf("close listener: %v", err)
		}
	}

	joined := make(chan struct{})
	go func() {
		if c.disp != nil {
			c.disp.Wait()
		}
		c.wg.Wait()
		close(joined)
	}()

	timeout := c.opts.JoinTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	select {
	case <-joined:
	case <-time.After(timeout):
		jww.WARN.Printf("controller stop: join timeout (%s) exceeded, some workers may still be finishing", timeout)
	}
}

// Done is closed once the result-reader has exited, i.e. once nclients
// clients have completed the plan or Stop was called.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}
