// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import "code.hybscloud.com/atomix"

// Serial is a monotonically increasing scheduler instance identifier.
// Each call to Run assigns the next serial value.
type Serial = uint32

// counter is the global monotonic counter for scheduler serials.
var counter atomix.Uint32

// nextSerial returns the next monotonically increasing serial.
func nextSerial() Serial {
	return counter.Add(1)
}

// DomainUID identifies a scheduling domain. Domain 0 is the domain
// that called Run.
type DomainUID uint32

// TaskUID identifies a promise. Unique within its owning domain only;
// the same numeric value may legally recur on another domain.
type TaskUID uint32

// SyscallUID identifies a suspension point. Unique within its owning
// domain only.
type SyscallUID uint32

// ResourceUID identifies an owned resource. Unique within the domain
// that allocated it.
type ResourceUID uint32

// uidSource allocates domain-local identifiers. Each domain owns one
// source and is its only writer, so plain counters suffice.
type uidSource struct {
	task     uint32
	syscall  uint32
	resource uint32
}

func (u *uidSource) nextTask() TaskUID {
	u.task++
	return TaskUID(u.task)
}

func (u *uidSource) nextSyscall() SyscallUID {
	u.syscall++
	return SyscallUID(u.syscall)
}

func (u *uidSource) nextResource() ResourceUID {
	u.resource++
	return ResourceUID(u.resource)
}
