// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package miou provides a cooperative, availability-first task
// scheduler with structured concurrency on parallel worker domains,
// built on algebraic effects from [code.hybscloud.com/kont].
//
// Every task is owned by its creator and must be explicitly awaited or
// cancelled; a task terminating with live children is a structural
// violation. At every scheduling point the owning domain drains its
// events provider, so the program never blocks on computation while an
// external event could be serviced.
//
// # Architecture
//
//   - Tasks: [kont.Eff] computations stepped one effect at a time; a
//     scheduling point is a [kont.Suspension] dispatched by the owning
//     domain's quantum executor.
//   - Domains: one goroutine per domain. Domain 0 is the domain that
//     called [Run]; parallel children are placed on worker domains
//     round-robin and never on domain 0.
//   - Transport: bounded lock-free SPSC inboxes via
//     [code.hybscloud.com/lfq], one per (sender, receiver) pair, carry
//     start, cancel, settle and transfer envelopes. Promise state is
//     mutated only by its owning domain.
//   - Cancellation: asynchronous, propagates through the whole
//     subtree, discards pending suspensions without running them, and
//     wakes sleeping peer domains through their interrupt hook.
//   - Resources: per-task ledgers with finalisers, reaped in reverse
//     acquisition order on abnormal termination.
//
// # API Topologies
//
//   - Operations: [Spawn], [Call], [Forall], [Await], [AwaitAll],
//     [AwaitFirst], [AwaitOne], [Yield], [Cancel], [Make], [Suspend],
//     [Fail], [Self], [Stats], [Care], [Own], [Disown], [Transfer],
//     [Check].
//   - Fused constructors: [SpawnBind], [CallBind], [AwaitBind],
//     [AwaitExn], [Both], [YieldThen], [ParallelBind], [Loop], and
//     friends.
//   - Results: [Result] is a [kont.Either]; failures and cancellation
//     ([ErrCancelled]) travel on the Left. Structural violations are
//     uncatchable and surface from [Run] as [*Fatal].
//
// # Integration
//
//   - Events: the embedder supplies an [EventsFactory]; each domain's
//     [Events] provider is drained with poll=false at every scheduling
//     point and with poll=true when the domain has no ready task but
//     has outstanding suspensions. A domain with neither backs off.
//     [ContinueWith] releases suspensions; [IsPending] probes them
//     from inside Select.
//   - Suspension points: [Make] declares a [Syscall] bound to its
//     creating domain, [Suspend] parks on it.
//
// # Example
//
//	sum, err := miou.Run(miou.SpawnBind(
//		kont.Pure(21),
//		func(p *miou.Promise) kont.Eff[int] {
//			return miou.AwaitBind(p, func(r miou.Result) kont.Eff[int] {
//				v, _ := r.GetRight()
//				return kont.Pure(v.(int) * 2)
//			})
//		},
//	))
//	// sum == 42, err == nil
package miou
