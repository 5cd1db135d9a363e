// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import (
	"fmt"

	"code.hybscloud.com/kont"
)

// runTask grants one scheduling turn: dispatch effects one at a time
// until the task completes, parks, yields, or exhausts its quantum.
// Every scheduling point drains the event bridge before execution
// continues; that epilogue is what keeps the domain available to
// external events.
func (d *domain) runTask(t *task) {
	slices := d.sched.quanta
	for {
		if t.dead {
			d.drainEvents(false)
			return
		}
		if !t.started {
			d.startTask(t)
			continue
		}
		if t.resumePending {
			v := t.resumeVal
			t.resumePending, t.resumeVal = false, nil
			d.resumeTask(t, v)
			continue
		}
		if t.susp == nil {
			d.complete(t)
			d.drainEvents(false)
			return
		}
		op, ok := t.susp.Op().(schedulerOp)
		if !ok {
			panic(fmt.Sprintf("miou: unhandled effect %T", t.susp.Op()))
		}
		v, disp := op.DispatchScheduler(d, t)
		switch disp {
		case dispQuery:
			// Introspection and ledger ops are not scheduling points:
			// no slice, no event drain.
			d.resumeTask(t, v)
		case dispPoint:
			slices--
			d.drainEvents(false)
			if t.dead {
				return
			}
			d.resumeTask(t, v)
			if t.dead {
				return
			}
			if slices <= 0 {
				if t.susp == nil {
					d.complete(t)
					d.drainEvents(false)
				} else {
					// Forced yield: re-enqueue at the tail.
					d.enqueue(t)
				}
				return
			}
		case dispYield:
			t.resumePending, t.resumeVal = true, v
			d.enqueue(t)
			d.drainEvents(false)
			return
		case dispPark:
			d.drainEvents(false)
			return
		case dispFail:
			d.failTask(t, v.(error))
			d.drainEvents(false)
			return
		}
	}
}

// startTask steps a task body to its first effect. The optional
// handler wrapper is applied here, on the owning domain.
func (d *domain) startTask(t *task) {
	t.started = true
	body := t.body
	t.body = nil
	if w := d.sched.handler; w != nil {
		body = w(body)
	}
	defer d.captureFailure(t)
	t.value, t.susp = kont.StepExpr(kont.Reify(body))
}

// resumeTask advances a task past a dispatched effect. A panic in the
// user code between effects becomes a task-local failure; a *Fatal
// keeps unwinding.
func (d *domain) resumeTask(t *task, v kont.Resumed) {
	if t.dead || t.susp == nil {
		return
	}
	defer d.captureFailure(t)
	s := t.susp
	t.susp = nil
	t.value, t.susp = s.Resume(v)
}

func (d *domain) captureFailure(t *task) {
	r := recover()
	if r == nil {
		return
	}
	if f, ok := r.(*Fatal); ok {
		panic(f)
	}
	d.failTask(t, panicError(r))
}

// complete settles a normally finished task. Terminating with children
// attached, or with a resource still held, is a structural violation.
func (d *domain) complete(t *task) {
	p := t.promise
	t.dead = true
	if len(p.children) > 0 {
		raiseFatal(d.uid, ErrStillHasChildren)
	}
	leaked := p.anyHeld()
	p.runFinalisers()
	if leaked {
		raiseFatal(d.uid, ErrResourceLeak)
	}
	p.resultKind = resultResolved
	p.value = t.value
	d.terminalize(p)
}

// failTask settles a task on the failure channel: reap resources,
// cancel children, settle until they drain.
func (d *domain) failTask(t *task, err error) {
	p := t.promise
	t.dead = true
	if p.state.Load() != statePending {
		// Already settled by a cancellation that raced the failure.
		return
	}
	if t.susp != nil {
		t.susp.Discard()
		t.susp = nil
	}
	d.unpark(t)
	p.resultKind = resultFailed
	p.err = err
	p.runFinalisers()
	d.cancelChildren(p)
	d.trySettle(p)
}
