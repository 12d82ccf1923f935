package codec

import (
	"time"

	"github.com/pipefix/pipefix/pipeline"
)

// StringCodec converts inbound byte frames to strings and outbound strings
// back to bytes. It sits between a framer and string-typed application
// handlers.
type StringCodec struct {
	wq []string
}

// NewStringCodec returns a bytes/string codec stage.
func NewStringCodec() pipeline.Handler[[]byte, string, string, []byte] {
	return &StringCodec{}
}

func (c *StringCodec) Name() string { return "string-codec" }

func (c *StringCodec) TransportActive(ctx *pipeline.Context[string, string, []byte])   {}
func (c *StringCodec) TransportInactive(ctx *pipeline.Context[string, string, []byte]) {}

func (c *StringCodec) HandleRead(ctx *pipeline.Context[string, string, []byte], msg []byte) {
	ctx.FireHandleRead(string(msg))
}

func (c *StringCodec) ReadException(ctx *pipeline.Context[string, string, []byte], err error) {
	ctx.FireReadException(err)
}

func (c *StringCodec) ReadEOF(ctx *pipeline.Context[string, string, []byte]) {
	ctx.FireReadEOF()
}

func (c *StringCodec) HandleTimeout(ctx *pipeline.Context[string, string, []byte], now time.Time) {}
func (c *StringCodec) PollTimeout(ctx *pipeline.Context[string, string, []byte], eto *time.Time)  {}

func (c *StringCodec) Write(ctx *pipeline.Context[string, string, []byte], msg string) {
	c.wq = append(c.wq, msg)
}

func (c *StringCodec) PollWrite(ctx *pipeline.Context[string, string, []byte]) ([]byte, bool) {
	if len(c.wq) > 0 {
		msg := c.wq[0]
		c.wq = c.wq[1:]
		return []byte(msg), true
	}
	msg, ok := ctx.FirePollWrite()
	if !ok {
		return nil, false
	}
	return []byte(msg), true
}

func (c *StringCodec) Close(ctx *pipeline.Context[string, string, []byte]) {}
