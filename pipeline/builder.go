package pipeline

// The typed builder constructs a Pipeline[R, W] while verifying neighbor
// type compatibility at compile time. It carries four marker type
// parameters alongside the boundary types:
//
//   - HRin, HWout: the current head handler's Rin and Wout
//   - TRout, TWin: the current tail handler's Rout and Win
//
// AddBack accepts a handler only if its Rin matches the tail's Rout and its
// Wout matches the tail's Win; AddFront is the dual for the head side. On an
// empty builder the markers equal the boundary types, which makes the first
// AddBack enforce the head constraints (Rin == R, Wout == R). Build accepts
// the builder only once the tail's Win equals W.
//
// The markers are erased before dispatch: the builder is a zero-cost veneer
// over the runtime pipeline, and the dynamic downcast at each hand-off
// remains as defense in depth.
//
// Because Go infers the marker types from the static type of the handler
// argument, pass handlers as Handler[...] interface values (constructors in
// the codec package already return them). A mismatched neighbor type fails
// to compile with an error naming the mismatched type arguments.

// Builder accumulates handlers for a Pipeline[R, W]. Use New to start.
type Builder[R, W, HRin, HWout, TRout, TWin any] struct {
	p *Pipeline[R, W]
}

// New returns an empty typed builder for a Pipeline[R, W].
func New[R, W any]() Builder[R, W, R, R, R, R] {
	return Builder[R, W, R, R, R, R]{p: NewPipeline[R, W]()}
}

// Options exposes the underlying pipeline options; modify before Build.
func (b Builder[R, W, HRin, HWout, TRout, TWin]) Options() *Options {
	return &b.p.Options
}

// AddBack appends h at the tail. Compiles only if h's Rin equals the current
// tail's Rout and h's Wout equals the current tail's Win.
func AddBack[R, W, HRin, HWout, TRout, TWin, Rout, Win any](
	b Builder[R, W, HRin, HWout, TRout, TWin],
	h Handler[TRout, Rout, Win, TWin],
) Builder[R, W, HRin, HWout, Rout, Win] {
	b.p.AddBack(Erase(h))
	return Builder[R, W, HRin, HWout, Rout, Win]{p: b.p}
}

// AddFront prepends h at the head. Compiles only if h's Rout equals the
// current head's Rin, h's Win equals the current head's Wout, and h's own
// boundary types match the transport (Rin == R, Wout == R).
func AddFront[R, W, HRin, HWout, TRout, TWin any](
	b Builder[R, W, HRin, HWout, TRout, TWin],
	h Handler[R, HRin, HWout, R],
) Builder[R, W, R, R, TRout, TWin] {
	b.p.AddFront(Erase(h))
	return Builder[R, W, R, R, TRout, TWin]{p: b.p}
}

// Build finalizes the pipeline and returns the shared handle. Compiles only
// if the tail's Win equals the application write type W. Panics if the
// underlying pipeline was already finalized (one Build per builder chain).
func Build[R, W, HRin, HWout, TRout any](
	b Builder[R, W, HRin, HWout, TRout, W],
) *Pipeline[R, W] {
	if err := b.p.Finalize(); err != nil {
		panic(err)
	}
	return b.p
}
