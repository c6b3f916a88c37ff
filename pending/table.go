// Package pending implements the correlation table between an outbound
// RPC request and its eventual response, error, timeout, or shutdown.
// One Table belongs to exactly one runtime instance (a Client, or one
// Server-side Connection's outbound-call state) for its whole lifetime.
package pending

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// ErrShutdown is the error every outstanding entry is rejected with when
// the owning runtime closes.
var ErrShutdown = errors.New("pending: runtime closed")

// ErrTimeout is wrapped with the method name and returned when a pending
// entry's timer fires before settle is called.
var ErrTimeout = errors.New("pending: call timed out")

// entry is the pending-call-table record for one outstanding RPC
// request: a resolver, a rejecter, and an optional timer.
type entry struct {
	method  string
	resolve func(payload any)
	reject  func(err error)
	timer   *time.Timer
}

// Table is the per-runtime pending-call table: a map from correlation id
// to entry, safe for concurrent use from the outbound call path and the
// inbound dispatch path at once.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Register inserts a pending entry for id. If timeout is positive, a
// timer is armed that — unless the entry is settled or abandoned first —
// removes the entry and calls reject with an error naming method.
func (t *Table) Register(id, method string, resolve func(payload any), reject func(err error), timeout time.Duration) {
	e := &entry{method: method, resolve: resolve, reject: reject}

	t.mu.Lock()
	t.entries[id] = e
	t.mu.Unlock()

	if timeout > 0 {
		e.timer = time.AfterFunc(timeout, func() {
			if t.remove(id) {
				reject(fmt.Errorf("%w: %s", ErrTimeout, method))
			}
		})
	}
}

// remove deletes id from the table if present and stops its timer,
// reporting whether an entry was actually removed (it may already have
// been settled, timed out, or abandoned).
func (t *Table) remove(id string) bool {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if ok && e.timer != nil {
		e.timer.Stop()
	}
	return ok
}

// Resolve settles id with a successful payload (an rpc_res envelope was
// received). Unknown or already-settled ids are silently dropped, per
// the tie-break rule: a late response for a timed-out or otherwise
// terminal call is ignored.
func (t *Table) Resolve(id string, payload any) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.resolve(payload)
}

// Reject settles id with a failure (an rpc_err envelope was received, or
// m is the error message to surface). Unknown or already-settled ids are
// silently dropped.
func (t *Table) Reject(id string, errMessage string) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.reject(errors.New(errMessage))
}

// Cancel removes id without settling its resolver/rejecter, invoking
// reject with err directly. Used on the outbound send path when
// validation, middleware, or the transport itself fails before any
// response could ever arrive.
func (t *Table) Cancel(id string, err error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.reject(err)
}

// Len reports the number of outstanding entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// AbandonAll rejects every outstanding entry with ErrShutdown, clears
// every timer, and empties the table. It returns the aggregate of every
// individual rejection error — useful for a caller of Close that wants
// to know exactly how many, and which, correlation ids were outstanding
// — while each rejecter still independently receives the plain
// ErrShutdown error.
func (t *Table) AbandonAll() error {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*entry)
	t.mu.Unlock()

	var errs error
	for id, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.reject(ErrShutdown)
		errs = multierr.Append(errs, fmt.Errorf("pending %s (%s): %w", id, e.method, ErrShutdown))
	}
	return errs
}
