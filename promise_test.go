// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/miou"
)

func TestAwaitAllPositional(t *testing.T) {
	v, err := miou.Run(
		miou.SpawnBind(effecting(func() any { return "one" }), func(p1 *miou.Promise) kont.Eff[any] {
			return miou.SpawnBind(effecting(func() any { return "two" }), func(p2 *miou.Promise) kont.Eff[any] {
				return miou.SpawnBind(effecting(func() any { return "three" }), func(p3 *miou.Promise) kont.Eff[any] {
					return miou.AwaitAllBind([]*miou.Promise{p1, p2, p3}, func(rs []miou.Result) kont.Eff[any] {
						out := make([]any, len(rs))
						for i, r := range rs {
							out[i], _ = r.GetRight()
						}
						return kont.Pure(any(out))
					})
				})
			})
		}),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	got := v.([]any)
	if got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Fatalf("got %v, want [one two three]", got)
	}
}

func TestAwaitAllDeliversFailurePositionally(t *testing.T) {
	boom := errors.New("boom")
	v, err := miou.Run(
		miou.SpawnBind(effecting(func() any { return "ok" }), func(p1 *miou.Promise) kont.Eff[any] {
			return miou.SpawnBind(effecting(func() any { panic(boom) }), func(p2 *miou.Promise) kont.Eff[any] {
				return miou.AwaitAllBind([]*miou.Promise{p1, p2}, func(rs []miou.Result) kont.Eff[any] {
					return kont.Pure(any(rs))
				})
			})
		}),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	rs := v.([]miou.Result)
	if got := rightOf(t, rs[0]); got != "ok" {
		t.Fatalf("rs[0] got %v, want ok", got)
	}
	if got := leftOf(t, rs[1]); !errors.Is(got, boom) {
		t.Fatalf("rs[1] got %v, want %v", got, boom)
	}
}

// When several entries have already settled, the winner is the
// earliest normally completed one, even if a failure settled earlier
// in list order.
func TestAwaitFirstPrefersResolved(t *testing.T) {
	boom := errors.New("boom")
	v, err := miou.Run(
		miou.SpawnBind(effecting(func() any { panic(boom) }), func(bad *miou.Promise) kont.Eff[any] {
			return miou.SpawnBind(effecting(func() any { return 42 }), func(good *miou.Promise) kont.Eff[any] {
				// Let both settle before racing them.
				return miou.YieldThen(miou.YieldThen(
					miou.AwaitFirstBind([]*miou.Promise{bad, good}, func(r miou.Result) kont.Eff[any] {
						return kont.Pure(any(rightOf(t, r)))
					}),
				))
			})
		}),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %v, want 42", v)
	}
}

// The losers of a race are cancelled, and the race only returns once
// they are terminal: a sleeping loser's finaliser has run by then.
func TestAwaitFirstCancelsLosers(t *testing.T) {
	reaped := 0
	forever := miou.MakeBind(nil, func(sc *miou.Syscall) kont.Eff[any] {
		return kont.Bind(kont.Perform(miou.Own{Value: "conn", Finally: func(any) { reaped++ }}), func(*miou.Resource) kont.Eff[any] {
			return miou.SuspendThen(sc, kont.Pure(any(nil)))
		})
	})
	v, err := miou.Run(
		miou.SpawnBind(forever, func(slow *miou.Promise) kont.Eff[any] {
			return miou.SpawnBind(effecting(func() any { return "fast" }), func(fast *miou.Promise) kont.Eff[any] {
				return miou.AwaitFirstBind([]*miou.Promise{slow, fast}, func(r miou.Result) kont.Eff[any] {
					return kont.Pure(any(rightOf(t, r)))
				})
			})
		}),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if v != "fast" {
		t.Fatalf("got %v, want fast", v)
	}
	if reaped != 1 {
		t.Fatalf("loser finaliser ran %d times, want 1", reaped)
	}
}

// AwaitOne surfaces the first terminal result but leaves the caller
// responsible for the rest.
func TestAwaitOneLeavesRest(t *testing.T) {
	forever := miou.MakeBind(nil, func(sc *miou.Syscall) kont.Eff[any] {
		return miou.SuspendThen(sc, kont.Pure(any(nil)))
	})
	v, err := miou.Run(
		miou.SpawnBind(forever, func(slow *miou.Promise) kont.Eff[any] {
			return miou.SpawnBind(effecting(func() any { return "fast" }), func(fast *miou.Promise) kont.Eff[any] {
				return miou.AwaitOneBind([]*miou.Promise{slow, fast}, func(r miou.Result) kont.Eff[any] {
					first := rightOf(t, r)
					// Still our child: cancel and drain it explicitly.
					return miou.CancelThen(slow, miou.AwaitBind(slow, func(rs miou.Result) kont.Eff[any] {
						if !errors.Is(leftOf(t, rs), miou.ErrCancelled) {
							t.Fatalf("slow loser should observe cancellation")
						}
						return kont.Pure(first)
					}))
				})
			})
		}),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if v != "fast" {
		t.Fatalf("got %v, want fast", v)
	}
}

// both(p, q) is the pair (await p, await q).
func TestBothPair(t *testing.T) {
	v, err := miou.Run(
		miou.SpawnBind(effecting(func() any { return 1 }), func(p *miou.Promise) kont.Eff[any] {
			return miou.SpawnBind(effecting(func() any { return 2 }), func(q *miou.Promise) kont.Eff[any] {
				return kont.Bind(miou.Both(p, q), func(pair [2]miou.Result) kont.Eff[any] {
					a := rightOf(t, pair[0])
					b := rightOf(t, pair[1])
					return kont.Pure(any(a.(int)*10 + b.(int)))
				})
			})
		}),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if v != 12 {
		t.Fatalf("got %v, want 12", v)
	}
}

// Awaiting a promise created by another task is a structural
// violation that invalidates the scheduler.
func TestAwaitNotAChild(t *testing.T) {
	_, err := miou.Run(
		miou.SpawnBind(effecting(func() any { return nil }), func(p *miou.Promise) kont.Eff[any] {
			stranger := miou.AwaitBind(p, func(miou.Result) kont.Eff[any] {
				return kont.Pure(any(nil))
			})
			return miou.SpawnBind(stranger, func(q *miou.Promise) kont.Eff[any] {
				return miou.AwaitAllBind([]*miou.Promise{p, q}, func([]miou.Result) kont.Eff[any] {
					return kont.Pure(any(nil))
				})
			})
		}),
		miou.WithDomains(0),
	)
	if !errors.Is(err, miou.ErrNotAChild) {
		t.Fatalf("got %v, want ErrNotAChild", err)
	}
}

func TestOrphansCare(t *testing.T) {
	o := miou.NewOrphans()
	spawnOrphan := func(i int, next kont.Eff[any]) kont.Eff[any] {
		return kont.Bind(kont.Perform(miou.Spawn{Fn: effecting(func() any { return i }), Orphans: o}), func(*miou.Promise) kont.Eff[any] {
			return next
		})
	}
	drain := miou.Loop(0, func(sum int) kont.Eff[kont.Either[int, any]] {
		return miou.CareBind(o, func(ans miou.CareAnswer) kont.Eff[kont.Either[int, any]] {
			if ans.Promise != nil {
				return miou.AwaitBind(ans.Promise, func(r miou.Result) kont.Eff[kont.Either[int, any]] {
					v := rightOf(t, r)
					return kont.Pure(kont.Left[int, any](sum + v.(int)))
				})
			}
			if ans.Active {
				return miou.YieldThen(kont.Pure(kont.Left[int, any](sum)))
			}
			return kont.Pure(kont.Right[int, any](any(sum)))
		})
	})
	v, err := miou.Run(
		spawnOrphan(1, spawnOrphan(2, spawnOrphan(3, drain))),
		miou.WithDomains(0),
	)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if v != 6 {
		t.Fatalf("got %v, want 6", v)
	}
}

// An orphan collector dropped with unretrieved entries is the same
// violation as dropping a child.
func TestOrphansDroppedEntries(t *testing.T) {
	o := miou.NewOrphans()
	_, err := miou.Run(
		kont.Bind(kont.Perform(miou.Spawn{Fn: effecting(func() any { return nil }), Orphans: o}), func(*miou.Promise) kont.Eff[any] {
			return kont.Pure(any("dropped"))
		}),
		miou.WithDomains(0),
	)
	if !errors.Is(err, miou.ErrStillHasChildren) {
		t.Fatalf("got %v, want ErrStillHasChildren", err)
	}
}
