// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/miou"
)

// effecting builds a task body whose side effect runs on the owning
// domain during the task's first turn, not at construction time. The
// leading Self effect is the lazy boundary.
func effecting(f func() any) kont.Eff[any] {
	return miou.SelfBind(func(*miou.Promise) kont.Eff[any] {
		return kont.Pure(f())
	})
}

// twoPhase runs first, yields, then runs second and resolves with v.
func twoPhase(first, second func(), v any) kont.Eff[any] {
	return miou.SelfBind(func(*miou.Promise) kont.Eff[any] {
		first()
		return kont.Bind(kont.Perform(miou.Yield{}), func(struct{}) kont.Eff[any] {
			second()
			return kont.Pure(v)
		})
	})
}

// rightOf asserts a resolved Result and returns its value.
func rightOf(t *testing.T, r miou.Result) any {
	t.Helper()
	v, ok := r.GetRight()
	if !ok {
		e, _ := r.GetLeft()
		t.Fatalf("expected Right, got Left(%v)", e)
	}
	return v
}

// leftOf asserts a failed or cancelled Result and returns its error.
func leftOf(t *testing.T, r miou.Result) error {
	t.Helper()
	e, ok := r.GetLeft()
	if !ok {
		v, _ := r.GetRight()
		t.Fatalf("expected Left, got Right(%v)", v)
	}
	return e
}

// sleepHub backs a timer-based events provider shared by every domain
// of a run. Tasks register deadlines against their own syscalls; each
// domain's provider releases the due ones.
type sleepHub struct {
	mu     sync.Mutex
	sleeps map[*miou.Syscall]time.Time
}

func newSleepHub() *sleepHub {
	return &sleepHub{sleeps: make(map[*miou.Syscall]time.Time)}
}

func (h *sleepHub) add(sc *miou.Syscall, d time.Duration) {
	h.mu.Lock()
	h.sleeps[sc] = time.Now().Add(d)
	h.mu.Unlock()
}

func (h *sleepHub) factory(dom miou.DomainUID) miou.Events {
	return &sleepEvents{dom: dom, hub: h, wake: make(chan struct{}, 1)}
}

type sleepEvents struct {
	dom  miou.DomainUID
	hub  *sleepHub
	wake chan struct{}
}

func (e *sleepEvents) Select(poll bool, pending []miou.SyscallUID) []miou.Continue {
	now := time.Now()
	var due []miou.Continue
	var next time.Time
	e.hub.mu.Lock()
	for sc, at := range e.hub.sleeps {
		if sc.Domain() != e.dom || !miou.IsPending(sc) {
			continue
		}
		if !at.After(now) {
			due = append(due, miou.ContinueWith(sc, nil))
			delete(e.hub.sleeps, sc)
			continue
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	e.hub.mu.Unlock()
	if len(due) > 0 || !poll {
		return due
	}
	var timer <-chan time.Time
	if !next.IsZero() {
		timer = time.After(time.Until(next))
	}
	select {
	case <-e.wake:
	case <-timer:
	}
	return nil
}

func (e *sleepEvents) Interrupt() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// sleeper parks for d on the hub's clock and resolves with v.
func sleeper(hub *sleepHub, d time.Duration, v any) kont.Eff[any] {
	return miou.MakeBind(nil, func(sc *miou.Syscall) kont.Eff[any] {
		hub.add(sc, d)
		return miou.SuspendThen(sc, kont.Pure(v))
	})
}

// relayHub backs a provider whose releases are registered explicitly,
// pre-function included.
type relayHub struct {
	mu    sync.Mutex
	ready []miou.Continue
}

func (h *relayHub) release(sc *miou.Syscall, pre func()) {
	h.mu.Lock()
	h.ready = append(h.ready, miou.ContinueWith(sc, pre))
	h.mu.Unlock()
}

func (h *relayHub) factory(dom miou.DomainUID) miou.Events {
	return &relayEvents{dom: dom, hub: h, wake: make(chan struct{}, 1)}
}

type relayEvents struct {
	dom  miou.DomainUID
	hub  *relayHub
	wake chan struct{}
}

func (e *relayEvents) Select(poll bool, _ []miou.SyscallUID) []miou.Continue {
	e.hub.mu.Lock()
	var out, kept []miou.Continue
	for _, c := range e.hub.ready {
		if c.Syscall().Domain() == e.dom {
			out = append(out, c)
		} else {
			kept = append(kept, c)
		}
	}
	e.hub.ready = kept
	e.hub.mu.Unlock()
	if len(out) > 0 || !poll {
		return out
	}
	<-e.wake
	return nil
}

func (e *relayEvents) Interrupt() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
