package pipeline

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Pipeline is the runtime chain of handlers between a transport feeding R
// values in at the head, and an application writing W values in at the tail.
//
// A pipeline is built (AddBack/AddFront + Finalize, or the typed builder),
// then driven by a transport loop: TransportActive, HandleRead per inbound
// chunk, PollWrite drained after each dispatch, HandleTimeout/PollTimeout
// for timers, TransportInactive and Close on teardown.
//
// All methods must be called from the single thread (goroutine) that drives
// the pipeline. The pipeline is shared between the transport adapter, the
// handler contexts and the driving task; none of that sharing crosses
// threads, so there are no locks here.
type Pipeline[R, W any] struct {
	*zerolog.Logger

	// ID identifies the pipeline in logs and events.
	ID uuid.UUID

	// KV is a generic per-pipeline key-value store shared by handlers.
	// Always thread-safe, unlike the pipeline itself.
	KV *xsync.MapOf[string, any]

	// Options; modify before Finalize().
	Options Options

	stages  []stage
	built   bool
	active  bool
	closed  bool
	drained bool // post-close outbound drain finished
	dropped uint64

	evseq  uint64
	events map[string][]*EvHandler
}

// NewPipeline returns an empty pipeline for the untyped path. Configure it
// through Options, add erased handlers, then call Finalize. The typed
// builder (New/AddBack/Build) wraps this with compile-time adjacency checks.
func NewPipeline[R, W any]() *Pipeline[R, W] {
	p := &Pipeline[R, W]{
		ID: uuid.New(),
		KV: xsync.NewMapOf[string, any](),
	}
	p.Options = DefaultOptions
	nop := zerolog.Nop()
	p.Logger = &nop
	return p
}

// AddBack appends h at the tail (application side).
func (p *Pipeline[R, W]) AddBack(h AnyHandler) error {
	if p.built {
		return ErrFinalized
	}
	if h != nil {
		p.stages = append(p.stages, h)
	}
	return nil
}

// AddFront prepends h at the head (transport side).
func (p *Pipeline[R, W]) AddFront(h AnyHandler) error {
	if p.built {
		return ErrFinalized
	}
	if h != nil {
		p.stages = append([]stage{h}, p.stages...)
	}
	return nil
}

// Finalize applies Options, wires each handler's context with links to its
// neighbors, verifies the neighbor-type invariant as a defense in depth, and
// freezes the handler list. Must be called exactly once; a second call
// returns ErrFinalized.
func (p *Pipeline[R, W]) Finalize() error {
	if p.built {
		return ErrFinalized
	}
	p.apply(&p.Options)
	p.wire()
	p.built = true
	p.Event(EVENT_START, 0)
	return nil
}

// Update re-wires the contexts after the handler list was logically replaced
// in-place. Reserved for the untyped path; requires a finalized pipeline.
func (p *Pipeline[R, W]) Update() error {
	if !p.built {
		return ErrNotFinalized
	}
	p.wire()
	return nil
}

func (p *Pipeline[R, W]) apply(opts *Options) {
	if opts.Logger != nil {
		p.Logger = opts.Logger
	} else {
		nop := zerolog.Nop()
		p.Logger = &nop
	}
	p.attachEvents()
}

// wire connects contexts and checks static neighbor types. A mismatch is
// only a warning: an untyped chain may carry values whose dynamic types
// still downcast fine, and the hand-off check catches the rest.
func (p *Pipeline[R, W]) wire() {
	for i, s := range p.stages {
		var prev, next stage
		if i > 0 {
			prev = p.stages[i-1]
		}
		if i < len(p.stages)-1 {
			next = p.stages[i+1]
		}
		s.bind(prev, next, p.Logger)
	}
	for i := 0; i+1 < len(p.stages); i++ {
		a, b := p.stages[i], p.stages[i+1]
		if !typesCompatible(a.rout(), b.rin()) {
			p.Warn().Str("upstream", a.Name()).Str("downstream", b.Name()).
				Msgf("inbound type mismatch: %s -> %s", a.rout(), b.rin())
		}
		if !typesCompatible(b.wout(), a.win()) {
			p.Warn().Str("upstream", a.Name()).Str("downstream", b.Name()).
				Msgf("outbound type mismatch: %s -> %s", b.wout(), a.win())
		}
	}
}

func typesCompatible(from, to reflect.Type) bool {
	return from == to || from.AssignableTo(to) ||
		from.Kind() == reflect.Interface || to.Kind() == reflect.Interface
}

// TransportActive notifies every handler, head to tail, that the transport
// is up. Each call delivers one notification; the active flag is idempotent.
func (p *Pipeline[R, W]) TransportActive() {
	p.checkBuilt()
	if p.closed {
		return
	}
	for _, s := range p.stages {
		s.transportActive()
	}
	p.active = true
	p.Event(EVENT_ACTIVE, DIR_IN)
}

// TransportInactive notifies every handler, head to tail, that the transport
// is down. Allowed even after Close.
func (p *Pipeline[R, W]) TransportInactive() {
	p.checkBuilt()
	for _, s := range p.stages {
		s.transportInactive()
	}
	p.active = false
	p.Event(EVENT_INACTIVE, DIR_IN)
}

// HandleRead injects one inbound message at the head. Propagation is
// handler-driven: it stops at the first handler that does not fire, or at
// the tail. On a closed pipeline the message is dropped and counted.
func (p *Pipeline[R, W]) HandleRead(msg R) {
	p.checkBuilt()
	if p.closed {
		p.dropped++
		return
	}
	if len(p.stages) == 0 {
		return
	}
	p.stages[0].handleRead(msg)
}

// ReadException injects a transport error at the head. Handlers absorb or
// forward it; by default it surfaces at the tail.
func (p *Pipeline[R, W]) ReadException(err error) {
	p.checkBuilt()
	if p.closed || len(p.stages) == 0 {
		return
	}
	p.Event(EVENT_EXCEPTION, DIR_IN, err)
	p.stages[0].readException(err)
}

// ReadEOF signals end of inbound stream at the head.
func (p *Pipeline[R, W]) ReadEOF() {
	p.checkBuilt()
	if p.closed || len(p.stages) == 0 {
		return
	}
	p.Event(EVENT_EOF, DIR_IN)
	p.stages[0].readEOF()
}

// HandleTimeout broadcasts the current time to every handler, head to tail.
func (p *Pipeline[R, W]) HandleTimeout(now time.Time) {
	p.checkBuilt()
	if p.closed {
		return
	}
	for _, s := range p.stages {
		s.handleTimeout(now)
	}
}

// PollTimeout lets every handler lower *eto to its earliest pending
// deadline. The transport loop uses the accumulated minimum to size its
// next I/O wait.
func (p *Pipeline[R, W]) PollTimeout(eto *time.Time) {
	p.checkBuilt()
	if p.closed {
		return
	}
	for _, s := range p.stages {
		s.pollTimeout(eto)
	}
}

// Write delivers one outbound message to the tail handler. The message is
// queued by the chain regardless of the active flag; an inactive transport
// simply does not drain. Dropped and counted after Close.
func (p *Pipeline[R, W]) Write(msg W) {
	p.checkBuilt()
	if p.closed {
		p.dropped++
		return
	}
	if len(p.stages) == 0 {
		return
	}
	p.stages[len(p.stages)-1].write(msg)
}

// PollWrite pulls the next outbound message from the head, or returns false
// when nothing is ready. After Close the outbound side drains once; when the
// drain runs dry the pipeline refuses further polls.
func (p *Pipeline[R, W]) PollWrite() (R, bool) {
	var zero R
	p.checkBuilt()
	if p.drained || len(p.stages) == 0 {
		return zero, false
	}
	head := p.stages[0]
	v, ok := head.pollWrite()
	if !ok {
		if p.closed {
			p.drained = true
		}
		return zero, false
	}
	out, ok := v.(R)
	if !ok {
		panic(fmt.Sprintf("msg can't downcast::<%s> in %s handler",
			typeName[R](), head.Name()))
	}
	return out, true
}

// Close releases handler resources, tail to head, and marks the pipeline
// closed. Further events are no-ops except TransportInactive and the one
// outbound drain via PollWrite.
func (p *Pipeline[R, W]) Close() {
	p.checkBuilt()
	if p.closed {
		return
	}
	for i := len(p.stages) - 1; i >= 0; i-- {
		p.stages[i].closeStage()
	}
	p.closed = true
	p.Event(EVENT_CLOSE, DIR_BOTH)
}

func (p *Pipeline[R, W]) checkBuilt() {
	if !p.built {
		panic(ErrNotFinalized)
	}
}

// Active returns true iff the transport last reported up.
func (p *Pipeline[R, W]) Active() bool { return p.active }

// Closed returns true iff Close() has been called.
func (p *Pipeline[R, W]) Closed() bool { return p.closed }

// Len returns the number of handlers.
func (p *Pipeline[R, W]) Len() int { return len(p.stages) }

// Dropped returns the number of messages dropped after Close.
func (p *Pipeline[R, W]) Dropped() uint64 { return p.dropped }

// Names returns the handler names, head to tail.
func (p *Pipeline[R, W]) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}
