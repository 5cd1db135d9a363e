// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

// Cancellation engine. A cancel request is asynchronous: the caller's
// domain marks the observation side (cancellation wins retroactively,
// even over a promise that already resolved) and the owning domain of
// each affected promise performs the teardown: discard the pending
// suspension without running it, reap held resources in reverse
// acquisition order, propagate to children, settle until they drain.

// requestCancel is called on the parent's owning domain. target's
// observed outcome becomes cancelled from this point on; the teardown
// happens here for a local child or is shipped to the hosting domain
// for a remote one.
func (d *domain) requestCancel(target *Promise) {
	target.overridden = true
	if target.domain == d.uid {
		d.cancelLocal(target)
		return
	}
	if log := d.sched.log; log != nil {
		log.Debug("miou: cross-domain cancel", "from", d.uid, "target", target.String())
	}
	d.send(d.sched.domains[target.domain], envelope{kind: envCancel, promise: target})
}

// cancelLocal tears down a promise hosted on this domain. Terminal
// promises need no work (the observation override already happened on
// the parent's domain); settling promises only flip their result slot.
func (d *domain) cancelLocal(p *Promise) {
	switch p.state.Load() {
	case stateTerminal:
		return
	case stateSettling:
		p.resultKind = resultCancelled
		return
	}
	if t := p.task; t != nil {
		t.dead = true
		if t.susp != nil {
			t.susp.Discard()
			t.susp = nil
		}
		d.unpark(t)
	}
	p.resultKind = resultCancelled
	p.runFinalisers()
	d.cancelChildren(p)
	d.trySettle(p)
}

// cancelChildren propagates a cancellation mark one level down; each
// child's own domain recurses from there.
func (d *domain) cancelChildren(p *Promise) {
	if len(p.children) == 0 {
		return
	}
	cs := make([]*Promise, len(p.children))
	copy(cs, p.children)
	for _, c := range cs {
		d.requestCancel(c)
	}
}
