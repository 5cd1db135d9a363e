// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import "fmt"

// Resource ledger states.
type resourceState uint8

const (
	resourceHeld resourceState = iota
	resourceDisowned
	resourceTransferred
)

// Resource is a value owned by a promise, released through its
// finaliser. A finaliser runs at most once: automatically when the
// owner terminates abnormally, or on normal termination while the
// handle is still held, which additionally raises ErrResourceLeak.
//
// Finalisers are plain functions, not effects, and run outside any
// task context; they cannot reenter the scheduler.
type Resource struct {
	uid     ResourceUID
	owner   *Promise
	value   any
	finally func(any)
	state   resourceState
	ran     bool
	origin  *Resource // for duplicated entries, the handle they were cloned from
}

// UID returns the resource identifier, unique within the domain that
// allocated it.
func (r *Resource) UID() ResourceUID { return r.uid }

// String formats the resource as r:uid.
func (r *Resource) String() string { return fmt.Sprintf("r:%d", r.uid) }

// dupResource clones a ledger entry for a new owner. Used by spawn-time
// gifts: both giver and receiver hold independently and must disown
// independently. The clone remembers its origin so the receiver may
// operate through the giver's handle.
func dupResource(r *Resource, owner *Promise, uid ResourceUID) *Resource {
	return &Resource{uid: uid, owner: owner, value: r.value, finally: r.finally, origin: rootOf(r)}
}

func rootOf(r *Resource) *Resource {
	if r.origin != nil {
		return r.origin
	}
	return r
}

// findOwned resolves a handle within p's ledger: the handle itself
// when p owns it, else p's live duplicate of it. Transferred stubs do
// not resolve; ownership has moved.
func (p *Promise) findOwned(r *Resource) *Resource {
	if r == nil {
		return nil
	}
	if r.owner == p && r.state != resourceTransferred {
		return r
	}
	root := rootOf(r)
	for _, x := range p.ledger {
		if x.origin == root && x.owner == p && x.state != resourceTransferred {
			return x
		}
	}
	return nil
}

// anyHeld reports whether the ledger still holds a live entry.
func (p *Promise) anyHeld() bool {
	for _, r := range p.ledger {
		if r.state == resourceHeld {
			return true
		}
	}
	return false
}

// runFinalisers reaps held entries in reverse acquisition order.
func (p *Promise) runFinalisers() {
	for i := len(p.ledger) - 1; i >= 0; i-- {
		r := p.ledger[i]
		if r.state != resourceHeld || r.ran {
			continue
		}
		r.ran = true
		r.state = resourceDisowned
		if r.finally != nil {
			r.finally(r.value)
		}
	}
}
