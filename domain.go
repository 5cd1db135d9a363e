// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// inboxCapacity bounds each cross-domain SPSC queue. Senders back off
// on a full queue while draining their own inbox, so bounded capacity
// cannot wedge two mutually-sending domains.
const inboxCapacity = 256

// Cross-domain envelope kinds. Envelopes are the only values that
// cross a domain boundary besides promise pointers themselves.
type envKind uint8

const (
	envStart    envKind = iota // parent ships a spawned task to its hosting domain
	envCancel                  // parent requests cancellation of a remote child
	envSettled                 // child's domain notifies the parent's domain
	envTransfer                // child ships a duplicated ledger entry to the parent's domain
)

type envelope struct {
	kind     envKind
	task     *task
	promise  *Promise
	resource *Resource
}

// syscallEntry is one parked suspension.
type syscallEntry struct {
	sc   *Syscall
	task *task
}

// domain is one scheduling domain: a ready FIFO, a suspension table, a
// waiter set, and one bounded SPSC inbox per peer. Everything except
// the inboxes is touched only by the domain's own goroutine.
type domain struct {
	uid   DomainUID
	sched *scheduler

	ready    []*task
	syscalls map[SyscallUID]syscallEntry
	waiters  []*task
	uids     uidSource
	live     int

	events   Events
	inSelect bool
	scratch  []SyscallUID

	// inbox[i] carries envelopes produced by domain i. Single producer
	// (the peer), single consumer (this domain); the queue's internal
	// ordering is the fence that publishes envelope payloads.
	inbox []lfq.SPSC[envelope]
}

func newDomain(s *scheduler, uid DomainUID, total int) *domain {
	d := &domain{
		uid:      uid,
		sched:    s,
		syscalls: make(map[SyscallUID]syscallEntry),
		inbox:    make([]lfq.SPSC[envelope], total),
	}
	for i := range d.inbox {
		d.inbox[i].Init(inboxCapacity)
	}
	return d
}

// hostPromise takes ownership of a promise: assigns its domain-local
// uid and counts it live.
func (d *domain) hostPromise(p *Promise) {
	p.uid.Store(uint32(d.uids.nextTask()))
	d.live++
}

func (d *domain) enqueue(t *task) {
	d.ready = append(d.ready, t)
}

func (d *domain) popReady() *task {
	for len(d.ready) > 0 {
		t := d.ready[0]
		d.ready[0] = nil
		d.ready = d.ready[1:]
		if t.dead {
			continue
		}
		return t
	}
	return nil
}

// send delivers an envelope to a peer, draining the local inbox while
// backing off on a full queue, then rings the peer awake.
func (d *domain) send(to *domain, env envelope) {
	q := &to.inbox[d.uid]
	var bo iox.Backoff
	for q.Enqueue(&env) != nil {
		if d.sched.stopped() {
			return
		}
		d.drainInbox()
		bo.Wait()
	}
	to.events.Interrupt()
}

// drainInbox consumes every queued envelope from every peer.
func (d *domain) drainInbox() {
	for i := range d.inbox {
		for {
			env, err := d.inbox[i].Dequeue()
			if err != nil {
				break
			}
			d.deliver(env)
		}
	}
}

func (d *domain) deliver(env envelope) {
	switch env.kind {
	case envStart:
		p := env.promise
		if p.state.Load() != statePending || p.resultKind != resultPending {
			// Cancelled before the start was consumed; drop the body.
			return
		}
		d.hostPromise(p)
		p.task = env.task
		d.enqueue(env.task)
	case envCancel:
		d.cancelLocal(env.promise)
	case envSettled:
		d.onChildSettled(env.promise)
	case envTransfer:
		env.promise.ledger = append(env.promise.ledger, env.resource)
	}
}

// unpark removes a task's suspension table entries without running
// their continuations. Waiter entries are dropped lazily by the sweep.
func (d *domain) unpark(t *task) {
	for uid, e := range d.syscalls {
		if e.task == t {
			delete(d.syscalls, uid)
		}
	}
}

// terminalize finishes a promise hosted here and notifies whoever
// observes it: the parent's domain for a child, nobody for the root
// (the driver polls the state word).
func (d *domain) terminalize(p *Promise) {
	p.state.Store(stateTerminal)
	if p.uid.Load() != 0 {
		d.live--
	}
	if p.parent == nil {
		return
	}
	pd := p.parent.domain
	if pd == d.uid {
		d.onChildSettled(p)
		return
	}
	d.send(d.sched.domains[pd], envelope{kind: envSettled, promise: p})
}

// trySettle moves a promise whose computation has ended into settling
// until its children drain, reaping the already-terminal ones first.
func (d *domain) trySettle(p *Promise) {
	kept := p.children[:0]
	for _, c := range p.children {
		if c.terminal() {
			c.reaped = true
			continue
		}
		kept = append(kept, c)
	}
	p.children = kept
	if len(p.children) == 0 {
		d.terminalize(p)
		return
	}
	p.state.Store(stateSettling)
}

// onChildSettled runs on the parent's owning domain whenever a child
// becomes terminal: orphan delivery, settling-parent reaping, and the
// waiter sweep (run by the domain loop) take it from here.
func (d *domain) onChildSettled(c *Promise) {
	if c.orphans != nil {
		c.orphans.live--
		c.orphans.queue = append(c.orphans.queue, c)
	}
	parent := c.parent
	if parent.state.Load() != stateSettling {
		return
	}
	d.reapChild(c)
	if len(parent.children) == 0 {
		d.terminalize(parent)
	}
}

// reapChild detaches an observed child from its parent.
func (d *domain) reapChild(c *Promise) {
	if c.reaped {
		return
	}
	c.reaped = true
	parent := c.parent
	for i, x := range parent.children {
		if x == c {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			break
		}
	}
}

// parkAwait enters an await: validate the parent/child relation, try
// to satisfy immediately, otherwise park in the waiter set.
func (d *domain) parkAwait(t *task, mode awaitMode, ps []*Promise) (any, disposition) {
	for _, p := range ps {
		if p == nil || p.parent != t.promise {
			raiseFatal(d.uid, ErrNotAChild)
		}
	}
	t.mode, t.awaits, t.winner = mode, ps, -1
	if v, done := d.evalWaiter(t); done {
		t.mode, t.awaits = awaitNone, nil
		return v, dispPoint
	}
	d.waiters = append(d.waiters, t)
	return nil, dispPark
}

// sweepWaiters re-evaluates parked awaiters. Runs once per loop
// iteration; tasks killed by cancellation are dropped here.
func (d *domain) sweepWaiters() {
	if len(d.waiters) == 0 {
		return
	}
	kept := d.waiters[:0]
	for _, t := range d.waiters {
		if t.dead {
			continue
		}
		v, done := d.evalWaiter(t)
		if !done {
			kept = append(kept, t)
			continue
		}
		t.mode, t.awaits = awaitNone, nil
		t.resumePending, t.resumeVal = true, v
		d.enqueue(t)
	}
	d.waiters = kept
}

// evalWaiter decides whether a parked await is satisfied and computes
// its resumption value.
//
// awaitFirstOf selects its winner deterministically: the earliest
// list-order entry that resolved normally, else the earliest terminal
// entry. Selection cancels the losers, and the await only returns once
// every entry is terminal, so the caller gets back a fully drained
// list.
func (d *domain) evalWaiter(t *task) (any, bool) {
	settled := func(p *Promise) bool { return p.reaped || p.terminal() }
	switch t.mode {
	case awaitSingle:
		p := t.awaits[0]
		if !settled(p) {
			return nil, false
		}
		d.reapChild(p)
		return p.outcome(), true
	case awaitAllOf:
		for _, p := range t.awaits {
			if !settled(p) {
				return nil, false
			}
		}
		rs := make([]Result, len(t.awaits))
		for i, p := range t.awaits {
			d.reapChild(p)
			rs[i] = p.outcome()
		}
		return rs, true
	case awaitFirstOf:
		if t.winner < 0 {
			w := -1
			for i, p := range t.awaits {
				if settled(p) && !p.overridden && p.resultKind == resultResolved {
					w = i
					break
				}
			}
			if w < 0 {
				for i, p := range t.awaits {
					if settled(p) {
						w = i
						break
					}
				}
			}
			if w >= 0 {
				t.winner = w
				for i, p := range t.awaits {
					if i != w && !p.reaped {
						d.requestCancel(p)
					}
				}
			}
		}
		if t.winner < 0 {
			return nil, false
		}
		for _, p := range t.awaits {
			if !settled(p) {
				return nil, false
			}
		}
		win := t.awaits[t.winner]
		out := win.outcome()
		for _, p := range t.awaits {
			d.reapChild(p)
		}
		return out, true
	case awaitOneOf:
		for _, p := range t.awaits {
			if settled(p) {
				d.reapChild(p)
				return p.outcome(), true
			}
		}
		return nil, false
	}
	return nil, false
}

// loop is the domain scheduling loop: inbox, waiter sweep, one ready
// task, else drain events (blocking if suspensions exist), else back
// off. done, when non-nil, stops the loop between tasks; it is how the
// driver runs domain 0 until the root settles.
func (d *domain) loop(done func() bool) {
	var bo iox.Backoff
	for {
		if d.sched.stopped() {
			return
		}
		d.drainInbox()
		d.sweepWaiters()
		if done != nil && done() {
			return
		}
		if t := d.popReady(); t != nil {
			d.runTask(t)
			bo.Reset()
			continue
		}
		if len(d.syscalls) > 0 {
			d.drainEvents(true)
			bo.Reset()
			continue
		}
		bo.Wait()
	}
}

// runWorker is the goroutine entry of a worker domain. A fatal raised
// here is latched on the scheduler and halts the pool.
func (d *domain) runWorker() {
	defer d.sched.wg.Done()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if f, ok := r.(*Fatal); ok {
			d.sched.reportFatal(f)
			return
		}
		d.sched.reportFatal(&Fatal{Cond: panicError(r), Domain: d.uid})
	}()
	d.loop(nil)
}
