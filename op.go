// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import (
	"errors"

	"code.hybscloud.com/kont"
)

// disposition classifies the outcome of dispatching one effect.
type disposition uint8

const (
	dispQuery disposition = iota // resume now; not a scheduling point
	dispPoint                    // resume now; consumes a slice, drains events
	dispYield                    // re-enqueue at the tail; resume on the next turn
	dispPark                     // do not resume; the task is parked elsewhere
	dispFail                     // fail the task with the carried error
)

// schedulerOp is the structural interface for scheduler operations,
// dispatched by the quantum executor on the owning domain.
type schedulerOp interface {
	DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition)
}

// Spawn is the effect operation for creating a same-domain child
// (call_cc). The child is enqueued at the tail of the ready queue; the
// parent keeps running until its next scheduling point. Give transfers
// ledger entries by duplication; Orphans optionally attaches the child
// to a collector.
type Spawn struct {
	kont.Phantom[*Promise]
	Fn      kont.Eff[any]
	Give    []*Resource
	Orphans *Orphans
}

func (s Spawn) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return d.spawnChild(t, d, s.Fn, s.Give, s.Orphans), dispPoint
}

// Call is the effect operation for creating a child on a worker
// domain, chosen round-robin among domains that are neither domain 0
// nor the caller. No eligible domain raises ErrNoDomainAvailable.
type Call struct {
	kont.Phantom[*Promise]
	Fn      kont.Eff[any]
	Give    []*Resource
	Orphans *Orphans
}

func (c Call) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return d.spawnChild(t, d.pickWorker(), c.Fn, c.Give, c.Orphans), dispPoint
}

// Forall is the effect operation of the parallel constructor: one
// child per item, distributed across the non-zero domains in
// ceil(N/W) chunks. Resumes with the promises in item order; pair
// with AwaitAll for the fork-join.
type Forall struct {
	kont.Phantom[[]*Promise]
	Fn    func(any) kont.Eff[any]
	Items []any
}

func (f Forall) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return d.spawnForall(t, f.Fn, f.Items), dispPoint
}

// Await is the effect operation for blocking on one child until it is
// terminal. Resumes with the child's Result. Awaiting a promise the
// caller did not create raises ErrNotAChild.
type Await struct {
	kont.Phantom[Result]
	P *Promise
}

func (a Await) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return d.parkAwait(t, awaitSingle, []*Promise{a.P})
}

// AwaitAll is the effect operation for draining a list of children.
// Resumes with every Result positionally.
type AwaitAll struct {
	kont.Phantom[[]Result]
	Ps []*Promise
}

func (a AwaitAll) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	if len(a.Ps) == 0 {
		return []Result{}, dispPoint
	}
	return d.parkAwait(t, awaitAllOf, a.Ps)
}

// AwaitFirst is the effect operation for racing children: the first
// terminal entry wins (normal completions preferred, list order breaks
// ties), the rest are cancelled, and the effect resumes once every
// entry is terminal.
type AwaitFirst struct {
	kont.Phantom[Result]
	Ps []*Promise
}

func (a AwaitFirst) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return d.parkAwait(t, awaitFirstOf, a.Ps)
}

// AwaitOne is the effect operation for taking the first terminal
// result without cancelling the rest; the caller remains responsible
// for the remaining children.
type AwaitOne struct {
	kont.Phantom[Result]
	Ps []*Promise
}

func (a AwaitOne) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return d.parkAwait(t, awaitOneOf, a.Ps)
}

// Yield is the effect operation for giving up the current turn: the
// task re-enqueues at the tail and resumes on its next turn.
type Yield struct {
	kont.Phantom[struct{}]
}

func (Yield) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return struct{}{}, dispYield
}

// Cancel is the effect operation for asynchronously cancelling a
// child. It may resume before the target has stopped; completion is
// observable by awaiting the target. Cancelling a promise the caller
// did not create raises ErrNotAChild.
type Cancel struct {
	kont.Phantom[struct{}]
	P *Promise
}

func (c Cancel) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	if c.P == nil || c.P.parent != t.promise {
		raiseFatal(d.uid, ErrNotAChild)
	}
	d.requestCancel(c.P)
	return struct{}{}, dispPoint
}

// Make is the effect operation for declaring a suspension point on the
// current domain. fn, if non-nil, runs when the point is released.
type Make struct {
	kont.Phantom[*Syscall]
	Fn func()
}

func (m Make) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return &Syscall{uid: d.uids.nextSyscall(), d: d, fn: m.Fn}, dispQuery
}

// Suspend is the effect operation for parking on a syscall until the
// events provider releases it with a continue record. Suspending on a
// foreign domain's syscall raises ErrNotOwner; a second outstanding
// suspension on the same syscall is a programming error.
type Suspend struct {
	kont.Phantom[struct{}]
	S *Syscall
}

func (s Suspend) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	sc := s.S
	if sc == nil || sc.d != d {
		raiseFatal(d.uid, ErrNotOwner)
	}
	if _, dup := d.syscalls[sc.uid]; dup {
		panic("miou: syscall already suspended")
	}
	d.syscalls[sc.uid] = syscallEntry{sc: sc, task: t}
	return nil, dispPark
}

// Fail is the effect operation for failing the current task with err.
// It never resumes; the error is observed by whoever awaits.
type Fail struct {
	kont.Phantom[any]
	Err error
}

func (f Fail) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	err := f.Err
	if err == nil {
		err = errors.New("miou: failed")
	}
	return err, dispFail
}

// Self is the effect operation for retrieving the current promise.
type Self struct {
	kont.Phantom[*Promise]
}

func (Self) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return t.promise, dispQuery
}

// DomainStats is a point-in-time snapshot of the current domain.
type DomainStats struct {
	Domain    DomainUID
	Ready     int // runnable tasks queued
	Suspended int // outstanding suspension points
	Waiting   int // tasks parked on an await
	Live      int // hosted promises not yet terminal
}

// Stats is the effect operation for sampling the current domain.
type Stats struct {
	kont.Phantom[DomainStats]
}

func (Stats) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	return DomainStats{
		Domain:    d.uid,
		Ready:     len(d.ready),
		Suspended: len(d.syscalls),
		Waiting:   len(d.waiters),
		Live:      d.live,
	}, dispQuery
}

// Care is the effect operation for non-blocking retrieval from an
// orphan collector. Call it from the task that spawned the entries.
type Care struct {
	kont.Phantom[CareAnswer]
	O *Orphans
}

func (c Care) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	o := c.O
	if o == nil {
		return CareAnswer{}, dispQuery
	}
	if len(o.queue) > 0 {
		p := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		return CareAnswer{Promise: p, Active: true}, dispQuery
	}
	return CareAnswer{Active: o.live > 0}, dispQuery
}

// Own is the effect operation for appending a resource to the current
// task's ledger. Finally, if non-nil, receives Value when the ledger
// reaps the entry; it must not perform scheduler effects.
type Own struct {
	kont.Phantom[*Resource]
	Value   any
	Finally func(any)
}

func (o Own) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	r := &Resource{
		uid:     d.uids.nextResource(),
		owner:   t.promise,
		value:   o.Value,
		finally: o.Finally,
	}
	t.promise.ledger = append(t.promise.ledger, r)
	return r, dispQuery
}

// Disown is the effect operation for releasing a handle without
// running its finaliser. Disowning a foreign handle raises ErrNotOwner.
type Disown struct {
	kont.Phantom[struct{}]
	R *Resource
}

func (o Disown) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	h := t.promise.findOwned(o.R)
	if h == nil {
		raiseFatal(d.uid, ErrNotOwner)
	}
	h.state = resourceDisowned
	return struct{}{}, dispQuery
}

// Transfer is the effect operation for reassigning a handle to the
// current task's parent: the live entry moves up one level (the parent
// becomes responsible for releasing it) and a transferred stub remains
// in the local ledger, so a later Check here reports ErrNotOwner.
// Transferring from the root raises ErrNotOwner.
type Transfer struct {
	kont.Phantom[struct{}]
	R *Resource
}

func (o Transfer) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	h := t.promise.findOwned(o.R)
	if h == nil {
		raiseFatal(d.uid, ErrNotOwner)
	}
	parent := t.promise.parent
	if parent == nil {
		raiseFatal(d.uid, ErrNotOwner)
	}
	stub := &Resource{
		uid:    h.uid,
		owner:  t.promise,
		value:  h.value,
		state:  resourceTransferred,
		origin: rootOf(h),
	}
	for i, x := range t.promise.ledger {
		if x == h {
			t.promise.ledger[i] = stub
			break
		}
	}
	h.owner = parent
	if parent.domain == d.uid {
		parent.ledger = append(parent.ledger, h)
	} else {
		d.send(d.sched.domains[parent.domain], envelope{kind: envTransfer, promise: parent, resource: h})
	}
	return struct{}{}, dispQuery
}

// Check is the effect operation asserting that the current task owns a
// handle; a foreign (or transferred) handle raises ErrNotOwner.
type Check struct {
	kont.Phantom[struct{}]
	R *Resource
}

func (o Check) DispatchScheduler(d *domain, t *task) (kont.Resumed, disposition) {
	if t.promise.findOwned(o.R) == nil {
		raiseFatal(d.uid, ErrNotOwner)
	}
	return struct{}{}, dispQuery
}
