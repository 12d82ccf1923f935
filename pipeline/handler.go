// Package pipeline provides a bidirectional, type-checked handler pipeline
// that decouples protocol logic from concrete transports.
//
// A pipeline is an ordered chain of handlers between a transport (head side)
// and an application (tail side). Inbound bytes flow head→tail through
// HandleRead; outbound messages flow tail→head and are pulled by the
// transport through PollWrite. No handler performs I/O: the enclosing
// transport loop reads and writes sockets, and drives the pipeline through
// its boundary operations.
//
// Use New/AddBack/Build for the typed path, which verifies neighbor type
// compatibility at compile time. The untyped path (Pipeline.AddBack with
// Erase) defers the same checks to run time.
package pipeline

import "time"

// Handler is one stage of a pipeline. It declares four message types:
//
//   - Rin: accepted on the inbound path from the upstream neighbor
//   - Rout: emitted on the inbound path to the downstream neighbor
//   - Win: accepted on the outbound path from the downstream neighbor
//   - Wout: emitted on the outbound path to the upstream neighbor
//
// "Upstream" means closer to the transport, "downstream" closer to the
// application. All callbacks run on the single thread that drives the
// pipeline and must return promptly; offload long work to a localex task.
//
// A handler may consume an inbound message and emit zero messages, transform
// it and fire once, split it into several fires, or buffer it for a later
// event. Propagation of HandleRead, ReadException and ReadEOF is
// handler-driven: the event stops at the first handler that does not fire.
// TransportActive, TransportInactive, HandleTimeout, PollTimeout and Close
// are broadcast by the pipeline itself to every handler.
type Handler[Rin, Rout, Win, Wout any] interface {
	// Name returns a human-readable handler name, used in diagnostics.
	Name() string

	// TransportActive is called when the transport reports up.
	TransportActive(ctx *Context[Rout, Win, Wout])

	// TransportInactive is called when the transport reports down.
	TransportInactive(ctx *Context[Rout, Win, Wout])

	// HandleRead processes one inbound message from the upstream neighbor.
	// Call ctx.FireHandleRead to pass a result downstream.
	HandleRead(ctx *Context[Rout, Win, Wout], msg Rin)

	// ReadException processes a transport error. Absorb it, or forward
	// with ctx.FireReadException.
	ReadException(ctx *Context[Rout, Win, Wout], err error)

	// ReadEOF signals the upstream peer closed its end. Absorb or forward
	// with ctx.FireReadEOF.
	ReadEOF(ctx *Context[Rout, Win, Wout])

	// HandleTimeout lets the handler run work scheduled before now.
	HandleTimeout(ctx *Context[Rout, Win, Wout], now time.Time)

	// PollTimeout lowers *eto to the handler's earliest pending deadline,
	// if sooner than the current value.
	PollTimeout(ctx *Context[Rout, Win, Wout], eto *time.Time)

	// Write accepts one outbound message from the downstream neighbor
	// (at the tail: from the application).
	Write(ctx *Context[Rout, Win, Wout], msg Win)

	// PollWrite yields the next outbound message for the upstream
	// neighbor, or false if nothing is ready. Pull from downstream with
	// ctx.FirePollWrite.
	PollWrite(ctx *Context[Rout, Win, Wout]) (Wout, bool)

	// Close releases handler-owned resources. Called tail→head.
	Close(ctx *Context[Rout, Win, Wout])
}
