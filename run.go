// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package miou

import (
	"log/slog"
	"math/rand"
	"os"
	"runtime"
	"strconv"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// defaultQuanta is the scheduling slice budget per turn. Two slices
// let a spawning parent run past the spawn before its forced yield.
const defaultQuanta = 2

// scheduler is one Run instance: the domain pool plus the shared
// latches that cross domain boundaries.
type scheduler struct {
	serial  Serial
	quanta  int
	domains []*domain
	cursor  atomix.Uint32
	handler func(kont.Eff[any]) kont.Eff[any]
	log     *slog.Logger

	halt      atomix.Uint32
	fatalFlag atomix.Uint32
	fatalErr  *Fatal
	wg        sync.WaitGroup
}

func (s *scheduler) stopped() bool { return s.halt.Load() != 0 }

// reportFatal latches the first uncatchable condition and halts the
// pool. Later fatals still halt but do not overwrite the first.
func (s *scheduler) reportFatal(f *Fatal) {
	if s.fatalFlag.CompareAndSwap(0, 1) {
		s.fatalErr = f
		if s.log != nil {
			s.log.Error("miou: fatal", "domain", f.Domain, "cond", f.Cond)
		}
	}
	s.halt.Store(1)
	s.interruptAll()
}

func (s *scheduler) interruptAll() {
	for _, d := range s.domains {
		d.events.Interrupt()
	}
}

type config struct {
	quanta  int
	workers int
	seed    int64
	events  EventsFactory
	handler func(kont.Eff[any]) kont.Eff[any]
	log     *slog.Logger
}

// Option configures Run.
type Option func(*config)

// WithQuanta sets the scheduling slice budget per turn. Values below 1
// are clamped to 1. Overrides MIOU_QUANTA.
func WithQuanta(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.quanta = n
	}
}

// WithDomains sets the worker domain count (domain 0 excluded). Zero
// is legal: parallel spawns then raise ErrNoDomainAvailable.
// Overrides MIOU_DOMAINS.
func WithDomains(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.workers = n
	}
}

// WithSeed makes the dispatcher's scheduling choices reproducible.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithEvents installs the per-domain events provider factory. The
// factory is invoked once per domain with that domain's id before any
// task runs.
func WithEvents(f EventsFactory) Option {
	return func(c *config) {
		if f != nil {
			c.events = f
		}
	}
}

// WithHandler wraps every task body with a user effect handler before
// the scheduler steps it. The wrapper must translate foreign effects
// into scheduler operations or handle them itself.
func WithHandler(w func(kont.Eff[any]) kont.Eff[any]) Option {
	return func(c *config) { c.handler = w }
}

// WithLogger enables coarse lifecycle logging. The default is silent.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

func defaultConfig() config {
	c := config{
		quanta:  defaultQuanta,
		workers: runtime.NumCPU() - 1,
		seed:    1,
		events:  func(DomainUID) Events { return newDoorbell() },
	}
	if v := os.Getenv("MIOU_QUANTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.quanta = n
		}
	}
	if v := os.Getenv("MIOU_DOMAINS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.workers = n
		}
	}
	if c.workers < 0 {
		c.workers = 0
	}
	return c
}

// Run boots a domain pool, hosts fn as the root task on domain 0, and
// drives the pool until the root settles. The root's failure is
// returned as an ordinary error; an uncatchable condition is returned
// as a *Fatal and invalidates the scheduler.
func Run[R any](fn kont.Eff[R], opts ...Option) (R, error) {
	var zero R
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	s := &scheduler{
		serial:  nextSerial(),
		quanta:  cfg.quanta,
		handler: cfg.handler,
		log:     cfg.log,
	}
	total := cfg.workers + 1
	s.domains = make([]*domain, total)
	for i := range s.domains {
		s.domains[i] = newDomain(s, DomainUID(i), total)
	}
	for _, d := range s.domains {
		d.events = cfg.events(d.uid)
	}
	if cfg.workers > 0 {
		rng := rand.New(rand.NewSource(cfg.seed))
		s.cursor.Store(uint32(rng.Intn(cfg.workers)))
	}
	if s.log != nil {
		s.log.Debug("miou: run", "serial", s.serial, "domains", total, "quanta", s.quanta)
	}

	d0 := s.domains[0]
	root := &Promise{domain: 0}
	d0.hostPromise(root)
	rt := newTask(root, Erase(fn))
	root.task = rt
	d0.enqueue(rt)

	s.wg.Add(total - 1)
	for _, w := range s.domains[1:] {
		go w.runWorker()
	}

	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if f, ok := r.(*Fatal); ok {
				s.reportFatal(f)
				return
			}
			s.reportFatal(&Fatal{Cond: panicError(r), Domain: 0})
		}()
		d0.loop(func() bool { return root.terminal() })
	}()

	s.halt.Store(1)
	s.interruptAll()
	s.wg.Wait()

	if s.fatalFlag.Load() != 0 {
		return zero, s.fatalErr
	}
	switch root.resultKind {
	case resultResolved:
		v, _ := root.value.(R)
		return v, nil
	case resultFailed:
		return zero, root.err
	default:
		return zero, ErrCancelled
	}
}
