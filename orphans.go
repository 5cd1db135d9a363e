// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

// Orphans collects settled background promises for non-blocking
// retrieval. Attach a collector at spawn time (the Orphans field of
// Spawn and Call) and drain it with the Care effect from the task that
// spawned the entries. Every attached promise must eventually be
// retrieved and awaited; terminating with entries outstanding raises
// ErrStillHasChildren.
//
// The collector is owned by the spawner's domain and must only be
// touched by tasks hosted there.
type Orphans struct {
	queue []*Promise // settled, not yet retrieved
	live  int        // attached, not yet settled
}

// NewOrphans creates an empty collector.
func NewOrphans() *Orphans { return &Orphans{} }

// CareAnswer is the result of the Care effect.
//
//   - Promise non-nil: a settled entry ready to be awaited.
//   - Promise nil, Active true: entries are still running; retry after
//     a scheduling point.
//   - Promise nil, Active false: the collector is drained.
type CareAnswer struct {
	Promise *Promise
	Active  bool
}
