package pipeline

import "time"

// Adapter provides default implementations for every Handler callback
// except Name. Embed it and override the callbacks the stage cares about:
//
//	type sink struct {
//		pipeline.Adapter[string, string, string, string]
//	}
//
// Defaults: lifecycle and timer callbacks do nothing; ReadException and
// ReadEOF forward downstream; HandleRead and Write absorb their message;
// PollWrite reports nothing ready.
type Adapter[Rin, Rout, Win, Wout any] struct{}

func (Adapter[Rin, Rout, Win, Wout]) TransportActive(ctx *Context[Rout, Win, Wout])   {}
func (Adapter[Rin, Rout, Win, Wout]) TransportInactive(ctx *Context[Rout, Win, Wout]) {}

func (Adapter[Rin, Rout, Win, Wout]) HandleRead(ctx *Context[Rout, Win, Wout], msg Rin) {}

func (Adapter[Rin, Rout, Win, Wout]) ReadException(ctx *Context[Rout, Win, Wout], err error) {
	ctx.FireReadException(err)
}

func (Adapter[Rin, Rout, Win, Wout]) ReadEOF(ctx *Context[Rout, Win, Wout]) {
	ctx.FireReadEOF()
}

func (Adapter[Rin, Rout, Win, Wout]) HandleTimeout(ctx *Context[Rout, Win, Wout], now time.Time) {}
func (Adapter[Rin, Rout, Win, Wout]) PollTimeout(ctx *Context[Rout, Win, Wout], eto *time.Time)  {}

func (Adapter[Rin, Rout, Win, Wout]) Write(ctx *Context[Rout, Win, Wout], msg Win) {}

func (Adapter[Rin, Rout, Win, Wout]) PollWrite(ctx *Context[Rout, Win, Wout]) (Wout, bool) {
	var zero Wout
	return zero, false
}

func (Adapter[Rin, Rout, Win, Wout]) Close(ctx *Context[Rout, Win, Wout]) {}
