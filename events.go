// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import "slices"

// Events is the system-integration seam. The embedder supplies one
// provider per domain through an EventsFactory; the scheduler drains it
// at every scheduling point so the program never blocks on computation
// while an external event could be serviced.
type Events interface {
	// Select is called with the domain's pending suspension ids. When
	// poll is true the provider may block indefinitely; when false it
	// must return promptly. The provider may call IsPending from inside
	// Select to probe individual suspensions. The pending slice is
	// reused between calls; copy it to retain.
	Select(poll bool, pending []SyscallUID) []Continue

	// Interrupt causes an in-progress blocking Select on this provider
	// to return promptly. Called from other domains; must be safe to
	// call concurrently with Select.
	Interrupt()
}

// EventsFactory builds the per-domain provider. Invoked once per
// domain with that domain's id.
type EventsFactory func(DomainUID) Events

// doorbell is the default provider for embedders with no event source:
// Select parks on a one-slot channel until a peer rings Interrupt.
type doorbell struct {
	ring chan struct{}
}

func newDoorbell() *doorbell {
	return &doorbell{ring: make(chan struct{}, 1)}
}

func (b *doorbell) Select(poll bool, _ []SyscallUID) []Continue {
	if poll {
		<-b.ring
	}
	return nil
}

func (b *doorbell) Interrupt() {
	select {
	case b.ring <- struct{}{}:
	default:
	}
}

// drainEvents is the event bridge: prune suspensions of cancelled
// tasks, marshal the still-pending ids, call the provider, and apply
// the returned continue records. Runs as the shared epilogue of every
// scheduling point (poll=false) and as the sleep state of an otherwise
// idle domain (poll=true).
func (d *domain) drainEvents(poll bool) {
	d.pruneSuspensions()
	ids := d.scratch[:0]
	for uid := range d.syscalls {
		ids = append(ids, uid)
	}
	slices.Sort(ids)
	d.scratch = ids

	d.inSelect = true
	records := d.events.Select(poll, ids)
	d.inSelect = false

	for _, c := range records {
		d.applyContinue(c)
	}
}

// pruneSuspensions drops table entries whose owning tasks have been
// cancelled, so the provider only ever sees live ids.
func (d *domain) pruneSuspensions() {
	for uid, e := range d.syscalls {
		if e.task.dead {
			delete(d.syscalls, uid)
		}
	}
}

// applyContinue releases one suspension: run the pre-function and the
// syscall callback, then hand the parked task back to the ready queue.
// Stale records (already released, cancelled, or from a foreign
// syscall instance) are ignored.
func (d *domain) applyContinue(c Continue) {
	if c.sc == nil {
		return
	}
	e, ok := d.syscalls[c.sc.uid]
	if !ok || e.sc != c.sc || e.task.dead {
		return
	}
	delete(d.syscalls, c.sc.uid)
	t := e.task
	if err := runHook(c.pre, c.sc.fn); err != nil {
		d.failTask(t, err)
		return
	}
	t.resumePending, t.resumeVal = true, struct{}{}
	d.enqueue(t)
}

func runHook(pre, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	if pre != nil {
		pre()
	}
	if fn != nil {
		fn()
	}
	return nil
}
