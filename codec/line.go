// Package codec provides ready-made pipeline handlers: framers that turn a
// byte stream into discrete frames, and codecs that turn frames into
// application messages. All handlers are sans-I/O and single-threaded, like
// every pipeline stage.
package codec

import (
	"bytes"
	"slices"
	"time"

	"github.com/pipefix/pipefix/pipeline"
)

// LineFramer splits the inbound byte stream into lines. Partial lines are
// buffered until the terminator arrives. Emitted frames have the line
// terminator stripped (both "\n" and "\r\n" accepted); outbound frames get
// "\r\n" appended.
type LineFramer struct {
	buf []byte
	wq  [][]byte
}

// NewLineFramer returns a line framer stage.
func NewLineFramer() pipeline.Handler[[]byte, []byte, []byte, []byte] {
	return &LineFramer{}
}

func (f *LineFramer) Name() string { return "line-framer" }

func (f *LineFramer) TransportActive(ctx *pipeline.Context[[]byte, []byte, []byte])   {}
func (f *LineFramer) TransportInactive(ctx *pipeline.Context[[]byte, []byte, []byte]) {}

func (f *LineFramer) HandleRead(ctx *pipeline.Context[[]byte, []byte, []byte], msg []byte) {
	f.buf = append(f.buf, msg...)
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			return
		}
		line := f.buf[:idx]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		out := slices.Clone(line)
		f.buf = f.buf[idx+1:]
		ctx.FireHandleRead(out)
	}
}

func (f *LineFramer) ReadException(ctx *pipeline.Context[[]byte, []byte, []byte], err error) {
	ctx.FireReadException(err)
}

func (f *LineFramer) ReadEOF(ctx *pipeline.Context[[]byte, []byte, []byte]) {
	// an unterminated trailing line is dropped
	f.buf = f.buf[:0]
	ctx.FireReadEOF()
}

func (f *LineFramer) HandleTimeout(ctx *pipeline.Context[[]byte, []byte, []byte], now time.Time) {}
func (f *LineFramer) PollTimeout(ctx *pipeline.Context[[]byte, []byte, []byte], eto *time.Time)  {}

func (f *LineFramer) Write(ctx *pipeline.Context[[]byte, []byte, []byte], msg []byte) {
	f.wq = append(f.wq, msg)
}

func (f *LineFramer) PollWrite(ctx *pipeline.Context[[]byte, []byte, []byte]) ([]byte, bool) {
	var msg []byte
	if len(f.wq) > 0 {
		msg = f.wq[0]
		f.wq = f.wq[1:]
	} else {
		var ok bool
		msg, ok = ctx.FirePollWrite()
		if !ok {
			return nil, false
		}
	}
	out := make([]byte, 0, len(msg)+2)
	out = append(out, msg...)
	out = append(out, '\r', '\n')
	return out, true
}

func (f *LineFramer) Close(ctx *pipeline.Context[[]byte, []byte, []byte]) {
	// keep wq: pending frames flush in the post-close drain
	f.buf = nil
}
