// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import (
	"code.hybscloud.com/kont"
)

// Erase forgets a task body's result type. Spawn operations carry
// kont.Eff[any]; promises deliver the value back through Result.
func Erase[T any](m kont.Eff[T]) kont.Eff[any] {
	return kont.Map[kont.Resumed, T, any](m, func(v T) any { return v })
}

// SpawnBind spawns fn as a same-domain child and passes its promise to k.
// Fuses Perform(Spawn{...}) + Bind.
func SpawnBind[T, B any](fn kont.Eff[T], k func(*Promise) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Spawn{Fn: Erase(fn)}), k)
}

// CallBind spawns fn on a worker domain and passes its promise to k.
// Fuses Perform(Call{...}) + Bind.
func CallBind[T, B any](fn kont.Eff[T], k func(*Promise) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Call{Fn: Erase(fn)}), k)
}

// AwaitBind awaits p and passes its Result to k.
// Fuses Perform(Await{...}) + Bind.
func AwaitBind[B any](p *Promise, k func(Result) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Await{P: p}), k)
}

// AwaitExn awaits p, returning its value and re-raising its failure as
// the caller's own.
func AwaitExn(p *Promise) kont.Eff[any] {
	return kont.Bind(kont.Perform(Await{P: p}), func(r Result) kont.Eff[any] {
		if e, ok := r.GetLeft(); ok {
			return kont.Perform(Fail{Err: e})
		}
		v, _ := r.GetRight()
		return kont.Pure(v)
	})
}

// AwaitAllBind drains ps and passes every Result positionally to k.
func AwaitAllBind[B any](ps []*Promise, k func([]Result) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(AwaitAll{Ps: ps}), k)
}

// AwaitFirstBind races ps, cancelling the losers, and passes the
// winning Result to k.
func AwaitFirstBind[B any](ps []*Promise, k func(Result) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(AwaitFirst{Ps: ps}), k)
}

// AwaitOneBind passes the first terminal Result among ps to k without
// cancelling the rest.
func AwaitOneBind[B any](ps []*Promise, k func(Result) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(AwaitOne{Ps: ps}), k)
}

// Both awaits p and q as a pair.
func Both(p, q *Promise) kont.Eff[[2]Result] {
	return kont.Bind(kont.Perform(AwaitAll{Ps: []*Promise{p, q}}), func(rs []Result) kont.Eff[[2]Result] {
		return kont.Pure([2]Result{rs[0], rs[1]})
	})
}

// YieldThen gives up the current turn and continues with next.
// Fuses Perform(Yield{}) + Then.
func YieldThen[B any](next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Yield{}), next)
}

// CancelThen cancels p and continues with next. Cancellation is
// asynchronous; await p to observe completion.
func CancelThen[B any](p *Promise, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Cancel{P: p}), next)
}

// MakeBind declares a suspension point and passes it to k.
func MakeBind[B any](fn func(), k func(*Syscall) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Make{Fn: fn}), k)
}

// SuspendThen parks on sc until the events provider releases it, then
// continues with next.
func SuspendThen[B any](sc *Syscall, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Suspend{S: sc}), next)
}

// SelfBind passes the current promise to k.
func SelfBind[B any](k func(*Promise) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Self{}), k)
}

// StatsBind passes a snapshot of the current domain to k.
func StatsBind[B any](k func(DomainStats) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Stats{}), k)
}

// CareBind retrieves from an orphan collector and passes the answer to k.
func CareBind[B any](o *Orphans, k func(CareAnswer) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Care{O: o}), k)
}

// OwnBind appends v to the current task's ledger and passes the handle
// to k. finally runs when the ledger reaps the entry.
func OwnBind[B any](v any, finally func(any), k func(*Resource) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Own{Value: v, Finally: finally}), k)
}

// DisownThen releases r without running its finaliser, then continues
// with next.
func DisownThen[B any](r *Resource, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Disown{R: r}), next)
}

// TransferThen reassigns r to the parent, then continues with next.
func TransferThen[B any](r *Resource, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Transfer{R: r}), next)
}

// CheckThen asserts ownership of r, then continues with next.
func CheckThen[B any](r *Resource, next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Check{R: r}), next)
}

// ParallelBind runs fn over items as a fork-join on the worker
// domains and passes the Results, in item order, to k.
// Fuses Perform(Forall{...}) + AwaitAll + Bind.
func ParallelBind[T, B any](items []T, fn func(T) kont.Eff[any], k func([]Result) kont.Eff[B]) kont.Eff[B] {
	erased := make([]any, len(items))
	for i, it := range items {
		erased[i] = it
	}
	apply := func(it any) kont.Eff[any] { return fn(it.(T)) }
	return kont.Bind(kont.Perform(Forall{Fn: apply, Items: erased}), func(ps []*Promise) kont.Eff[B] {
		return kont.Bind(kont.Perform(AwaitAll{Ps: ps}), k)
	})
}

// Loop runs an iterative task body. step returns Left(nextState) to
// continue or Right(result) to finish.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if left, ok := e.GetLeft(); ok {
			return Loop(left, step)
		}
		right, _ := e.GetRight()
		return kont.Pure(right)
	})
}
