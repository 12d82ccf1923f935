package codec

import (
	"time"

	"github.com/miekg/dns"
	"github.com/pipefix/pipefix/pipeline"
)

// DNSCodec converts inbound byte frames into *dns.Msg and packs outbound
// *dns.Msg back to wire format. Pair it with LengthField over TCP (RFC 1035
// uses a 2-byte prefix there; LengthField is the in-house 4-byte variant) or
// use it directly over datagram transports.
type DNSCodec struct {
	wq []*dns.Msg
}

// NewDNSCodec returns a DNS message codec stage.
func NewDNSCodec() pipeline.Handler[[]byte, *dns.Msg, *dns.Msg, []byte] {
	return &DNSCodec{}
}

func (c *DNSCodec) Name() string { return "dns-codec" }

func (c *DNSCodec) TransportActive(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte])   {}
func (c *DNSCodec) TransportInactive(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte]) {}

func (c *DNSCodec) HandleRead(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte], msg []byte) {
	m := new(dns.Msg)
	if err := m.Unpack(msg); err != nil {
		ctx.FireReadException(err)
		return
	}
	ctx.FireHandleRead(m)
}

func (c *DNSCodec) ReadException(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte], err error) {
	ctx.FireReadException(err)
}

func (c *DNSCodec) ReadEOF(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte]) {
	ctx.FireReadEOF()
}

func (c *DNSCodec) HandleTimeout(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte], now time.Time) {
}

func (c *DNSCodec) PollTimeout(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte], eto *time.Time) {}

func (c *DNSCodec) Write(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte], msg *dns.Msg) {
	c.wq = append(c.wq, msg)
}

func (c *DNSCodec) PollWrite(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte]) ([]byte, bool) {
	for {
		var msg *dns.Msg
		if len(c.wq) > 0 {
			msg = c.wq[0]
			c.wq = c.wq[1:]
		} else {
			var ok bool
			msg, ok = ctx.FirePollWrite()
			if !ok {
				return nil, false
			}
		}
		out, err := msg.Pack()
		if err != nil {
			continue // unpackable message, skip it
		}
		return out, true
	}
}

func (c *DNSCodec) Close(ctx *pipeline.Context[*dns.Msg, *dns.Msg, []byte]) {}
