// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import (
	"fmt"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Result is the observable outcome of a promise: Right on resolution,
// Left on failure, Left(ErrCancelled) on cancellation.
type Result = kont.Either[error, any]

// Promise lifecycle. The word is atomic so a peer domain may observe
// terminality; every other promise field is written by exactly one
// domain (see the field groups below).
const (
	statePending uint32 = iota
	stateSettling
	stateTerminal
)

// Result slot kinds.
const (
	resultPending uint8 = iota
	resultResolved
	resultFailed
	resultCancelled
)

// Promise is the observable handle of a task: its identity, its place
// in the ownership tree, and its result slot.
//
// Field ownership follows the single-writer policy. The owning domain
// writes the result slot, the child list, the ledger and the lifecycle
// word; the parent's owning domain writes the observation fields
// (orphans, reaped, overridden). Peers read the lifecycle word
// atomically and the result slot only after observing stateTerminal.
type Promise struct {
	uid    atomix.Uint32 // TaskUID, assigned when the owning domain hosts the promise
	domain DomainUID
	parent *Promise

	// Owning-domain state.
	state      atomix.Uint32
	resultKind uint8
	value      any
	err        error
	children   []*Promise
	ledger     []*Resource
	task       *task

	// Parent-domain state.
	orphans    *Orphans
	reaped     bool
	overridden bool // cancel requested; the outcome reads as cancelled even if already settled
}

// UID returns the promise identifier, unique within its owning domain.
// Zero until the owning domain has hosted the promise.
func (p *Promise) UID() TaskUID { return TaskUID(p.uid.Load()) }

// Domain returns the identifier of the domain hosting the task.
func (p *Promise) Domain() DomainUID { return p.domain }

// String formats the promise as [domain:uid].
func (p *Promise) String() string {
	return fmt.Sprintf("[%d:%d]", p.domain, p.uid.Load())
}

// terminal reports whether the promise has settled and all of its
// children have drained. Safe to call from any domain.
func (p *Promise) terminal() bool { return p.state.Load() == stateTerminal }

// outcome reads the result slot. Only legal on the parent's owning
// domain after terminal() (or on the driver for the root).
func (p *Promise) outcome() Result {
	if p.overridden || p.resultKind == resultCancelled {
		return kont.Left[error, any](ErrCancelled)
	}
	if p.resultKind == resultFailed {
		return kont.Left[error, any](p.err)
	}
	return kont.Right[error, any](p.value)
}

// Await modes for a parked task.
type awaitMode uint8

const (
	awaitNone awaitMode = iota
	awaitSingle
	awaitAllOf
	awaitFirstOf
	awaitOneOf
)

// task is the execution record of a promise: the suspended computation
// and, when parked, what it is waiting for. Owned by the hosting domain.
type task struct {
	promise *Promise
	body    kont.Eff[any]
	susp    *kont.Suspension[any]
	value   any
	started bool
	dead    bool

	// Pending resumption value delivered by an unpark.
	resumePending bool
	resumeVal     kont.Resumed

	// Await state while parked in the domain waiter set.
	mode   awaitMode
	awaits []*Promise
	winner int
}

func newTask(p *Promise, body kont.Eff[any]) *task {
	return &task{promise: p, body: body, winner: -1}
}
