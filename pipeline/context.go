package pipeline

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog"
)

// link is the untyped part of a handler context: non-owning references to
// the neighbor stages, wired by Finalize. The pipeline owns the stages;
// links only point at them.
type link struct {
	name string
	log  *zerolog.Logger
	prev stage // upstream neighbor (toward transport), nil at head
	next stage // downstream neighbor (toward application), nil at tail
}

// Context is a handler's view of the pipeline. The Fire methods forward the
// current event to a neighbor; they are the sole means by which a handler
// reaches the rest of the chain. A fired event completes before Fire returns
// (depth-first, synchronous), so a handler must not hold its own state in a
// way that breaks if the neighbor re-enters it.
type Context[Rout, Win, Wout any] struct {
	link link
}

// Name returns the owning handler's name.
func (c *Context[Rout, Win, Wout]) Name() string {
	return c.link.name
}

// FireHandleRead passes msg to the downstream neighbor's HandleRead.
// At the tail the message is absorbed: inbound propagation simply stops.
func (c *Context[Rout, Win, Wout]) FireHandleRead(msg Rout) {
	if c.link.next == nil {
		return
	}
	c.link.next.handleRead(msg)
}

// FireReadException passes err to the downstream neighbor.
func (c *Context[Rout, Win, Wout]) FireReadException(err error) {
	if c.link.next == nil {
		return
	}
	c.link.next.readException(err)
}

// FireReadEOF passes the end-of-stream signal to the downstream neighbor.
func (c *Context[Rout, Win, Wout]) FireReadEOF() {
	if c.link.next == nil {
		return
	}
	c.link.next.readEOF()
}

// FireWrite hands msg to the upstream neighbor's Write. At the head there is
// no upstream handler: the transport pulls via PollWrite instead, so a
// message fired past the head is dropped.
func (c *Context[Rout, Win, Wout]) FireWrite(msg Wout) {
	if c.link.prev == nil {
		c.link.log.Debug().Str("handler", c.link.name).Msg("write fired past the head, dropped")
		return
	}
	c.link.prev.write(msg)
}

// FirePollWrite pulls the next outbound message from the downstream
// neighbor. Returns false if there is no downstream neighbor or nothing
// is ready.
func (c *Context[Rout, Win, Wout]) FirePollWrite() (Win, bool) {
	var zero Win
	if c.link.next == nil {
		return zero, false
	}
	v, ok := c.link.next.pollWrite()
	if !ok {
		return zero, false
	}
	win, ok := v.(Win)
	if !ok {
		panic(fmt.Sprintf("msg can't downcast::<%s> in %s handler",
			typeName[Win](), c.link.name))
	}
	return win, true
}

// typeName returns a printable name for T, including interface types.
func typeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.String()
}
