// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import "fmt"

// Syscall is a user-declared suspension point, created by the Make
// effect and released by a Continue record returned from the events
// provider. A syscall is bound to its creating domain: suspending on it
// from another domain is an ownership violation, and at most one
// suspension may be outstanding per syscall at a time.
type Syscall struct {
	uid SyscallUID
	d   *domain
	fn  func() // runs when the point is released
}

// UID returns the syscall identifier, unique within its owning domain.
func (s *Syscall) UID() SyscallUID { return s.uid }

// Domain returns the identifier of the owning domain.
func (s *Syscall) Domain() DomainUID { return s.d.uid }

// String formats the syscall as s[domain:uid].
func (s *Syscall) String() string {
	return fmt.Sprintf("s[%d:%d]", s.d.uid, s.uid)
}

// Continue pairs a syscall with a pre-function. Produced by the events
// provider in response to an event; consumed by the event bridge to
// unpark the suspended task. The pre-function runs before the syscall
// callback; a panic in either discontinues the suspension and the
// owning task observes the error.
type Continue struct {
	sc  *Syscall
	pre func()
}

// ContinueWith builds a continue record for sc. pre may be nil.
func ContinueWith(sc *Syscall, pre func()) Continue {
	return Continue{sc: sc, pre: pre}
}

// Syscall returns the suspension point this record releases.
func (c Continue) Syscall() *Syscall { return c.sc }

// IsPending reports whether sc has an outstanding suspension. Only
// legal from inside the events provider's Select call on the owning
// domain; it panics when that domain is not inside Select.
func IsPending(sc *Syscall) bool {
	d := sc.d
	if !d.inSelect {
		panic("miou: IsPending outside Select")
	}
	e, ok := d.syscalls[sc.uid]
	return ok && e.sc == sc
}
