package localex

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Builder configures and runs a local executor.
//
//	err := localex.NewBuilder().
//		Name("net-0").
//		Pin(0).
//		Preempt(10 * time.Millisecond).
//		Run(func(w *localex.Worker) error { ... })
type Builder struct {
	name    string
	cpu     int
	quantum time.Duration
	logger  *zerolog.Logger
}

// NewBuilder returns a Builder with no thread name, no CPU pinning, no
// preemption quantum and logging disabled.
func NewBuilder() *Builder {
	return &Builder{cpu: -1}
}

// Name sets the OS thread name, applied before any task runs.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Pin pins the worker thread to the given CPU id before running any task.
// On platforms without affinity APIs, Run fails with ErrUnsupported.
func (b *Builder) Pin(cpu int) *Builder {
	b.cpu = cpu
	return b
}

// Preempt sets the cooperative time-slice hint used by Worker.MaybeYield.
func (b *Builder) Preempt(quantum time.Duration) *Builder {
	b.quantum = quantum
	return b
}

// Logger sets the executor logger; if never called, logging is disabled.
func (b *Builder) Logger(l *zerolog.Logger) *Builder {
	b.logger = l
	return b
}

// Run blocks the calling thread, creates the worker context on a dedicated
// OS-locked thread, and runs fn plus every task it spawns until fn
// completes. Returns fn's error, ErrStalled if every task blocked with no
// timer left to wake one, or the pin error if affinity setup failed.
func (b *Builder) Run(fn func(*Worker) error) error {
	log := b.logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	errc := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if b.name != "" {
			if err := setThreadName(b.name); err != nil {
				log.Warn().Err(err).Str("name", b.name).Msg("can't set thread name")
			}
		}
		if b.cpu >= 0 {
			if err := pinThread(b.cpu); err != nil {
				errc <- err
				return
			}
		}

		errc <- newWorker(log, b.quantum).run(fn)
	}()
	return <-errc
}
