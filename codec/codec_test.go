package codec

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipefix/pipefix/pipeline"
)

// echoTail records and echoes inbound strings; application writes queue too.
type echoTail struct {
	pipeline.Adapter[string, string, string, string]
	reads []string
	wq    []string
}

func (e *echoTail) Name() string { return "echo" }

func (e *echoTail) HandleRead(ctx *pipeline.Context[string, string, string], msg string) {
	e.reads = append(e.reads, msg)
	e.wq = append(e.wq, msg)
}

func (e *echoTail) Write(ctx *pipeline.Context[string, string, string], msg string) {
	e.wq = append(e.wq, msg)
}

func (e *echoTail) PollWrite(ctx *pipeline.Context[string, string, string]) (string, bool) {
	if len(e.wq) == 0 {
		return "", false
	}
	m := e.wq[0]
	e.wq = e.wq[1:]
	return m, true
}

// byteSink records inbound byte frames and transport errors at the tail.
type byteSink struct {
	pipeline.Adapter[[]byte, []byte, []byte, []byte]
	reads [][]byte
	errs  []error
	wq    [][]byte
}

func (s *byteSink) Name() string { return "byte-sink" }

func (s *byteSink) HandleRead(ctx *pipeline.Context[[]byte, []byte, []byte], msg []byte) {
	s.reads = append(s.reads, msg)
}

func (s *byteSink) ReadException(ctx *pipeline.Context[[]byte, []byte, []byte], err error) {
	s.errs = append(s.errs, err)
}

func (s *byteSink) Write(ctx *pipeline.Context[[]byte, []byte, []byte], msg []byte) {
	s.wq = append(s.wq, msg)
}

func (s *byteSink) PollWrite(ctx *pipeline.Context[[]byte, []byte, []byte]) ([]byte, bool) {
	if len(s.wq) == 0 {
		return nil, false
	}
	m := s.wq[0]
	s.wq = s.wq[1:]
	return m, true
}

func drain[R, W any](p *pipeline.Pipeline[R, W]) []R {
	var out []R
	for {
		m, ok := p.PollWrite()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

func echoPipe(t *testing.T) (*pipeline.Pipeline[[]byte, string], *echoTail) {
	t.Helper()
	tail := &echoTail{}
	var ht pipeline.Handler[string, string, string, string] = tail
	p := pipeline.Build(
		pipeline.AddBack(
			pipeline.AddBack(
				pipeline.AddBack(pipeline.New[[]byte, string](), NewLineFramer()),
				NewStringCodec()),
			ht))
	return p, tail
}

func TestEchoLine(t *testing.T) {
	p, tail := echoPipe(t)

	p.HandleRead([]byte("hello\r\nworld\r\n"))
	assert.Equal(t, []string{"hello", "world"}, tail.reads)
	assert.Equal(t, [][]byte{[]byte("hello\r\n"), []byte("world\r\n")}, drain(p))
}

func TestPartialFrame(t *testing.T) {
	p, tail := echoPipe(t)

	p.HandleRead([]byte("hel"))
	assert.Empty(t, tail.reads)

	p.HandleRead([]byte("lo\r\n"))
	assert.Equal(t, []string{"hello"}, tail.reads)
	assert.Equal(t, [][]byte{[]byte("hello\r\n")}, drain(p))
}

func TestBareNewline(t *testing.T) {
	p, tail := echoPipe(t)

	p.HandleRead([]byte("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, tail.reads)
}

// fanout splits one application write into three outbound frames.
type fanout struct {
	pipeline.Adapter[string, string, string, string]
	wq []string
}

func (f *fanout) Name() string { return "fanout" }

func (f *fanout) Write(ctx *pipeline.Context[string, string, string], msg string) {
	for i := 1; i <= 3; i++ {
		f.wq = append(f.wq, fmt.Sprintf("%s#%d", msg, i))
	}
}

func (f *fanout) PollWrite(ctx *pipeline.Context[string, string, string]) (string, bool) {
	if len(f.wq) == 0 {
		return "", false
	}
	m := f.wq[0]
	f.wq = f.wq[1:]
	return m, true
}

func TestWriteFanout(t *testing.T) {
	var ht pipeline.Handler[string, string, string, string] = &fanout{}
	p := pipeline.Build(
		pipeline.AddBack(
			pipeline.AddBack(
				pipeline.AddBack(pipeline.New[[]byte, string](), NewLineFramer()),
				NewStringCodec()),
			ht))

	p.Write("msg")
	out := drain(p)
	require.Len(t, out, 3)
	assert.Equal(t, [][]byte{
		[]byte("msg#1\r\n"), []byte("msg#2\r\n"), []byte("msg#3\r\n"),
	}, out)

	_, ok := p.PollWrite()
	assert.False(t, ok)
}

func lengthPipe(t *testing.T, max int) (*pipeline.Pipeline[[]byte, []byte], *byteSink) {
	t.Helper()
	sink := &byteSink{}
	var hs pipeline.Handler[[]byte, []byte, []byte, []byte] = sink
	p := pipeline.Build(
		pipeline.AddBack(
			pipeline.AddBack(pipeline.New[[]byte, []byte](), NewLengthField(max)),
			hs))
	return p, sink
}

func frame(payload string) []byte {
	out := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	return append(out, payload...)
}

func TestLengthFieldRoundTrip(t *testing.T) {
	p, sink := lengthPipe(t, 0)

	// two frames split across three reads
	wire := append(frame("alpha"), frame("beta")...)
	p.HandleRead(wire[:3])
	p.HandleRead(wire[3:10])
	p.HandleRead(wire[10:])
	assert.Equal(t, [][]byte{[]byte("alpha"), []byte("beta")}, sink.reads)

	p.Write([]byte("gamma"))
	out := drain(p)
	require.Len(t, out, 1)
	assert.Equal(t, frame("gamma"), out[0])
}

func TestLengthFieldOversize(t *testing.T) {
	p, sink := lengthPipe(t, 8)

	p.HandleRead(frame("way too long for the limit"))
	require.Len(t, sink.errs, 1)
	assert.ErrorIs(t, sink.errs[0], ErrFrameTooLong)
	assert.Empty(t, sink.reads)

	// the framer resyncs on fresh input
	p.HandleRead(frame("ok"))
	assert.Equal(t, [][]byte{[]byte("ok")}, sink.reads)
}

// dnsSink records decoded DNS messages and queues replies.
type dnsSink struct {
	pipeline.Adapter[*dns.Msg, *dns.Msg, *dns.Msg, *dns.Msg]
	reads []*dns.Msg
	wq    []*dns.Msg
}

func (s *dnsSink) Name() string { return "dns-sink" }

func (s *dnsSink) HandleRead(ctx *pipeline.Context[*dns.Msg, *dns.Msg, *dns.Msg], msg *dns.Msg) {
	s.reads = append(s.reads, msg)
}

func (s *dnsSink) Write(ctx *pipeline.Context[*dns.Msg, *dns.Msg, *dns.Msg], msg *dns.Msg) {
	s.wq = append(s.wq, msg)
}

func (s *dnsSink) PollWrite(ctx *pipeline.Context[*dns.Msg, *dns.Msg, *dns.Msg]) (*dns.Msg, bool) {
	if len(s.wq) == 0 {
		return nil, false
	}
	m := s.wq[0]
	s.wq = s.wq[1:]
	return m, true
}

func TestDNSCodec(t *testing.T) {
	sink := &dnsSink{}
	var hs pipeline.Handler[*dns.Msg, *dns.Msg, *dns.Msg, *dns.Msg] = sink
	p := pipeline.Build(
		pipeline.AddBack(
			pipeline.AddBack(pipeline.New[[]byte, *dns.Msg](), NewDNSCodec()),
			hs))

	q := new(dns.Msg)
	q.SetQuestion("example.org.", dns.TypeA)
	wire, err := q.Pack()
	require.NoError(t, err)

	p.HandleRead(wire)
	require.Len(t, sink.reads, 1)
	assert.Equal(t, "example.org.", sink.reads[0].Question[0].Name)

	reply := new(dns.Msg)
	reply.SetReply(sink.reads[0])
	p.Write(reply)

	out := drain(p)
	require.Len(t, out, 1)
	back := new(dns.Msg)
	require.NoError(t, back.Unpack(out[0]))
	assert.Equal(t, q.Id, back.Id)
	assert.True(t, back.Response)
}

func TestCloseFlushesPending(t *testing.T) {
	p, _ := echoPipe(t)

	p.HandleRead([]byte("bye\r\n"))
	p.Close()
	assert.Equal(t, [][]byte{[]byte("bye\r\n")}, drain(p))

	// second drain refused after close
	_, ok := p.PollWrite()
	assert.False(t, ok)
}
