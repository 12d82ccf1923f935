package codec

import (
	"encoding/binary"
	"errors"
	"slices"
	"time"

	"github.com/pipefix/pipefix/pipeline"
)

// DefaultMaxFrame is the inbound frame size limit used when none is given.
const DefaultMaxFrame = 1 << 20

var ErrFrameTooLong = errors.New("frame exceeds size limit")

// LengthField frames messages with a 4-byte big-endian length prefix in
// both directions. An inbound frame longer than the limit is treated as
// garbled input: the framer reports ErrFrameTooLong downstream, throws away
// the buffered bytes and resyncs on whatever arrives next.
type LengthField struct {
	max int
	buf []byte
	wq  [][]byte
}

// NewLengthField returns a length-prefix framer stage.
// maxFrame <= 0 selects DefaultMaxFrame.
func NewLengthField(maxFrame int) pipeline.Handler[[]byte, []byte, []byte, []byte] {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	return &LengthField{max: maxFrame}
}

func (f *LengthField) Name() string { return "length-field" }

func (f *LengthField) TransportActive(ctx *pipeline.Context[[]byte, []byte, []byte])   {}
func (f *LengthField) TransportInactive(ctx *pipeline.Context[[]byte, []byte, []byte]) {}

func (f *LengthField) HandleRead(ctx *pipeline.Context[[]byte, []byte, []byte], msg []byte) {
	f.buf = append(f.buf, msg...)
	for {
		if len(f.buf) < 4 {
			return
		}
		n := int(binary.BigEndian.Uint32(f.buf))
		if n > f.max {
			f.buf = f.buf[:0]
			ctx.FireReadException(ErrFrameTooLong)
			return
		}
		if len(f.buf) < 4+n {
			return
		}
		frame := slices.Clone(f.buf[4 : 4+n])
		f.buf = f.buf[4+n:]
		ctx.FireHandleRead(frame)
	}
}

func (f *LengthField) ReadException(ctx *pipeline.Context[[]byte, []byte, []byte], err error) {
	ctx.FireReadException(err)
}

func (f *LengthField) ReadEOF(ctx *pipeline.Context[[]byte, []byte, []byte]) {
	f.buf = f.buf[:0]
	ctx.FireReadEOF()
}

func (f *LengthField) HandleTimeout(ctx *pipeline.Context[[]byte, []byte, []byte], now time.Time) {}
func (f *LengthField) PollTimeout(ctx *pipeline.Context[[]byte, []byte, []byte], eto *time.Time)  {}

func (f *LengthField) Write(ctx *pipeline.Context[[]byte, []byte, []byte], msg []byte) {
	f.wq = append(f.wq, msg)
}

func (f *LengthField) PollWrite(ctx *pipeline.Context[[]byte, []byte, []byte]) ([]byte, bool) {
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
	out := make([]byte, 4, 4+len(msg))
	binary.BigEndian.PutUint32(out, uint32(len(msg)))
	return append(out, msg...), true
}

func (f *LengthField) Close(ctx *pipeline.Context[[]byte, []byte, []byte]) {
	// keep wq: pending frames flush in the post-close drain
	f.buf = nil
}
