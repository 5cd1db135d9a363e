// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import "code.hybscloud.com/kont"

// Parallel dispatcher: worker placement for Call and Forall. Domain 0
// never hosts parallel children, and a Call never targets the caller's
// own domain (that would deadlock the single-worker
// awaits-its-own-feeder shape). Forall spreads over every worker,
// the calling one included.

// pickWorker chooses the next eligible worker round-robin. The cursor
// is scheduler-global and seeded by WithSeed.
func (d *domain) pickWorker() *domain {
	ds := d.sched.domains
	w := len(ds) - 1
	if w == 0 {
		raiseFatal(d.uid, ErrNoDomainAvailable)
	}
	idx := d.sched.cursor.Add(1)
	for k := 0; k < w; k++ {
		cand := ds[1+int(uint32(idx+uint32(k))%uint32(w))]
		if cand != d {
			return cand
		}
	}
	raiseFatal(d.uid, ErrNoDomainAvailable)
	return nil
}

// spawnChild creates a child promise of t on the target domain: gifts
// are duplicated into the child's ledger, the child is registered with
// the parent, and the task is either enqueued locally or shipped in a
// start envelope. Runs on the parent's owning domain; until the start
// envelope is published the child is untouched by any other domain.
func (d *domain) spawnChild(t *task, target *domain, body kont.Eff[any], give []*Resource, orphans *Orphans) *Promise {
	parent := t.promise
	child := &Promise{domain: target.uid, parent: parent}
	if orphans != nil {
		child.orphans = orphans
		orphans.live++
	}
	for _, g := range give {
		if g == nil || g.owner != parent {
			raiseFatal(d.uid, ErrNotOwner)
		}
		child.ledger = append(child.ledger, dupResource(g, child, d.uids.nextResource()))
	}
	parent.children = append(parent.children, child)
	ct := newTask(child, body)
	if target == d {
		d.hostPromise(child)
		child.task = ct
		d.enqueue(ct)
		return child
	}
	d.send(target, envelope{kind: envStart, task: ct, promise: child})
	return child
}

// spawnForall distributes one child per item across the worker
// domains in ceil(N/W) chunks, in item order.
func (d *domain) spawnForall(t *task, fn func(any) kont.Eff[any], items []any) []*Promise {
	workers := d.sched.domains[1:]
	if len(workers) == 0 {
		raiseFatal(d.uid, ErrNoDomainAvailable)
	}
	n := len(items)
	if n == 0 {
		return []*Promise{}
	}
	chunk := (n + len(workers) - 1) / len(workers)
	ps := make([]*Promise, n)
	for i, item := range items {
		ps[i] = d.spawnChild(t, workers[i/chunk], fn(item), nil, nil)
	}
	return ps
}
