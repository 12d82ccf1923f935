package pipeline

import (
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
)

// AnyHandler is a type-erased handler stage, as stored by the pipeline.
// It internalizes the four message types as opaque values and performs a
// dynamic type check at every neighbor hand-off. Obtain one with Erase;
// the typed builder erases handlers itself.
type AnyHandler interface {
	// Name returns the wrapped handler's name.
	Name() string

	bind(prev, next AnyHandler, log *zerolog.Logger)
	transportActive()
	transportInactive()
	handleRead(msg any)
	readException(err error)
	readEOF()
	handleTimeout(now time.Time)
	pollTimeout(eto *time.Time)
	write(msg any)
	pollWrite() (any, bool)
	closeStage()
	rin() reflect.Type
	rout() reflect.Type
	win() reflect.Type
	wout() reflect.Type
}

// stage is the internal alias used where the erased view is meant.
type stage = AnyHandler

// Erase wraps a typed handler for the untyped pipeline path. The typed
// builder gives the same result with the adjacency checks moved to compile
// time.
func Erase[Rin, Rout, Win, Wout any](h Handler[Rin, Rout, Win, Wout]) AnyHandler {
	return &stageOf[Rin, Rout, Win, Wout]{h: h}
}

// stageOf adapts one typed handler to the erased stage contract. It owns
// the handler's context; Finalize wires the context's neighbor links.
type stageOf[Rin, Rout, Win, Wout any] struct {
	h   Handler[Rin, Rout, Win, Wout]
	ctx Context[Rout, Win, Wout]
}

func (s *stageOf[Rin, Rout, Win, Wout]) Name() string { return s.h.Name() }

func (s *stageOf[Rin, Rout, Win, Wout]) bind(prev, next AnyHandler, log *zerolog.Logger) {
	s.ctx.link = link{name: s.h.Name(), log: log, prev: prev, next: next}
}

func (s *stageOf[Rin, Rout, Win, Wout]) transportActive()   { s.h.TransportActive(&s.ctx) }
func (s *stageOf[Rin, Rout, Win, Wout]) transportInactive() { s.h.TransportInactive(&s.ctx) }

func (s *stageOf[Rin, Rout, Win, Wout]) handleRead(msg any) {
	m, ok := msg.(Rin)
	if !ok {
		panic(fmt.Sprintf("msg can't downcast::<%s> in %s handler",
			typeName[Rin](), s.h.Name()))
	}
	s.h.HandleRead(&s.ctx, m)
}

func (s *stageOf[Rin, Rout, Win, Wout]) readException(err error) { s.h.ReadException(&s.ctx, err) }
func (s *stageOf[Rin, Rout, Win, Wout]) readEOF()                { s.h.ReadEOF(&s.ctx) }

func (s *stageOf[Rin, Rout, Win, Wout]) handleTimeout(now time.Time) {
	s.h.HandleTimeout(&s.ctx, now)
}

func (s *stageOf[Rin, Rout, Win, Wout]) pollTimeout(eto *time.Time) {
	s.h.PollTimeout(&s.ctx, eto)
}

func (s *stageOf[Rin, Rout, Win, Wout]) write(msg any) {
	m, ok := msg.(Win)
	if !ok {
		panic(fmt.Sprintf("msg can't downcast::<%s> in %s handler",
			typeName[Win](), s.h.Name()))
	}
	s.h.Write(&s.ctx, m)
}

func (s *stageOf[Rin, Rout, Win, Wout]) pollWrite() (any, bool) {
	m, ok := s.h.PollWrite(&s.ctx)
	if !ok {
		return nil, false
	}
	return m, true
}

func (s *stageOf[Rin, Rout, Win, Wout]) closeStage() { s.h.Close(&s.ctx) }

func (s *stageOf[Rin, Rout, Win, Wout]) rin() reflect.Type  { return reflect.TypeOf((*Rin)(nil)).Elem() }
func (s *stageOf[Rin, Rout, Win, Wout]) rout() reflect.Type { return reflect.TypeOf((*Rout)(nil)).Elem() }
func (s *stageOf[Rin, Rout, Win, Wout]) win() reflect.Type  { return reflect.TypeOf((*Win)(nil)).Elem() }
func (s *stageOf[Rin, Rout, Win, Wout]) wout() reflect.Type { return reflect.TypeOf((*Wout)(nil)).Elem() }
