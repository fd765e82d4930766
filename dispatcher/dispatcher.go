////////////////////////////////////////////////////////////////////////////////
// Copyright © 2026 sslcaudit contributors                                     /
// Use of this source code is governed by a license that can be found in the  /
// LICENSE file.                                                              /
////////////////////////////////////////////////////////////////////////////////

// Package dispatcher accepts connections, derives a client_id from the
// remote address, and walks each client through its audit plan in strict
// order while distinct clients run fully concurrently, per spec.md §4.4.
package dispatcher

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-collections/collections/queue"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/sslcaudit/sslcaudit/audit"
	"gitlab.com/sslcaudit/sslcaudit/handshake"
	"gitlab.com/sslcaudit/sslcaudit/profile"
)

// acceptPollInterval bounds how long Accept blocks before re-checking
// shouldStop, per spec.md §4.4's "≤100ms" requirement.
const acceptPollInterval = 100 * time.Millisecond

// ClientID identifies a client by its remote IP, stripped of port, per
// spec.md §4.4 step 1.
type ClientID string

func clientIDFromAddr(addr net.Addr) ClientID {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ClientID(addr.String())
	}
	return ClientID(host)
}

// planCursor serializes the connections from one client_id through its
// plan in order. Incoming connections are enqueued on a FIFO queue and
// drained by exactly one goroutine per client, so ordering falls out of
// "one queue, one drainer" rather than an explicit per-connection lock —
// the same "enqueue onto a task-queue handle rather than spawning a worker
// directly" shape spec.md §9 calls out.
type planCursor struct {
	mu    sync.Mutex
	q     *queue.Queue
	index int
	done  bool

	wake chan struct{}
}

func newPlanCursor() *planCursor {
	return &planCursor{q: queue.New(), wake: make(chan struct{}, 1)}
}

func (c *planCursor) push(conn net.Conn) {
	c.mu.Lock()
	c.q.Enqueue(conn)
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *planCursor) pop() (net.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.q.Len() == 0 {
		return nil, false
	}
	return c.q.Dequeue().(net.Conn), true
}

// Dispatcher implements the Auditor/Dispatcher component. It owns the
// listener, the client_id → planCursor map, and the bounded event channel
// the Controller's result-reader drains.
type Dispatcher struct {
	ln         net.Listener
	plan       profile.Plan
	handshakeO handshake.Options
	nclients   int

	events chan audit.Event

	mu      sync.Mutex
	cursors map[ClientID]*planCursor

	completed  atomic.Int64
	shouldStop atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}

	wg sync.WaitGroup
}

// New builds a Dispatcher bound to ln, walking every accepted client
// through plan, stopping once nclients distinct clients have completed it.
func New(ln net.Listener, plan profile.Plan, handshakeO handshake.Options, nclients int) *Dispatcher {
	return &Dispatcher{
		ln:         ln,
		plan:       plan,
		handshakeO: handshakeO,
		nclients:   nclients,
		events:     make(chan audit.Event, 256),
		cursors:    make(map[ClientID]*planCursor),
		stopCh:     make(chan struct{}),
	}
}

// Events returns the channel the Controller's result-reader drains.
func (d *Dispatcher) Events() <-chan audit.Event { return d.events }

// Stop signals the accept loop to stop and in-flight drainers to wind down
// once their current connection finishes; it does not block.
func (d *Dispatcher) Stop() {
	d.shouldStop.Store(true)
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Run drives the accept loop until nclients clients complete their plan or
// Stop is called. It returns once the accept loop exits; in-flight
// drainers may still be finishing their current connection — callers join
// via Wait.
func (d *Dispatcher) Run() {
	for {
		if d.shouldStop.Load() || int(d.completed.Load()) >= d.nclients {
			return
		}

		if tcl, ok := d.ln.(*net.TCPListener); ok {
			_ = tcl.SetDeadline(time.Now().Add(acceptPollInterval))
		}
		conn, err := d.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if d.shouldStop.Load() {
				return
			}
			jww.WARN.Printf("accept error: %v", err)
			continue
		}

		d.dispatch(conn)
	}
}

// Wait blocks until every spawned drainer goroutine has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(conn net.Conn) {
	id := clientIDFromAddr(conn.RemoteAddr())

	d.mu.Lock()
	cursor, exists := d.cursors[id]
	if !exists {
		cursor = newPlanCursor()
		d.cursors[id] = cursor
	}
	d.mu.Unlock()

	if !exists {
		d.publish(audit.ClientAuditStart{ClientID: string(id)})
		d.wg.Add(1)
		go d.drain(id, cursor)
	}

	cursor.push(conn)
}

func (d *Dispatcher) drain(id ClientID, cursor *planCursor) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.publish(audit.InternalError{Message: recoverMessage(r)})
		}
	}()

	for {
		conn, ok := cursor.pop()
		if !ok {
			select {
			case <-cursor.wake:
				continue
			case <-d.stopCh:
				return
			}
		}

		cursor.mu.Lock()
		idx := cursor.index
		finished := cursor.done
		cursor.mu.Unlock()
		if finished || idx >= len(d.plan) {
			conn.Close()
			continue
		}

		prof := d.plan[idx]
		remote := conn.RemoteAddr().String()
		outcome := handshake.Handle(conn, prof.CertNKey, prof.TLSConfigOverride, d.handshakeO)
		d.publish(audit.ClientConnectionAuditResult{
			ClientID:   string(id),
			RemoteAddr: remote,
			Profile:    prof,
			Outcome:    outcome,
		})

		cursor.mu.Lock()
		cursor.index++
		reachedEnd := cursor.index >= len(d.plan)
		if reachedEnd {
			cursor.done = true
		}
		cursor.mu.Unlock()

		if reachedEnd {
			d.publish(audit.ClientAuditEnd{ClientID: string(id)})
			d.completed.Add(1)
			return
		}
	}
}

func (d *Dispatcher) publish(e audit.Event) {
	select {
	case d.events <- e:
	default:
		jww.WARN.Printf("event channel full, dropping event: %T", e)
	}
}

func recoverMessage(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic in worker"
}
