package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newEventPipe(t *testing.T, opts func(o *Options)) *Pipeline[string, string] {
	t.Helper()
	p := NewPipeline[string, string]()
	opts(&p.Options)
	require.NoError(t, p.Finalize())
	return p
}

func TestEventOrder(t *testing.T) {
	var got []string
	add := func(o *Options, name string, f func(*EvHandler)) {
		h := o.OnEvent(func(ev *Event) bool {
			got = append(got, name)
			return true
		}, EVENT_ACTIVE)
		if f != nil {
			f(h)
		}
	}

	p := newEventPipe(t, func(o *Options) {
		add(o, "post", func(h *EvHandler) { h.Post = true })
		add(o, "mid", nil)
		add(o, "pre", func(h *EvHandler) { h.Pre = true })
	})

	p.TransportActive()
	assert.Equal(t, []string{"pre", "mid", "post"}, got)
}

func TestEventWildcardAndTypes(t *testing.T) {
	var all, closes []string
	p := newEventPipe(t, func(o *Options) {
		o.OnEvent(func(ev *Event) bool {
			all = append(all, ev.Type)
			return true
		})
		o.OnClose(func(ev *Event) bool {
			closes = append(closes, ev.Type)
			return true
		})
	})

	p.TransportActive()
	p.Close()

	assert.Equal(t, []string{EVENT_START, EVENT_ACTIVE, EVENT_CLOSE}, all)
	assert.Equal(t, []string{EVENT_CLOSE}, closes)
}

func TestEventHandlerDrop(t *testing.T) {
	count := 0
	p := newEventPipe(t, func(o *Options) {
		o.OnActive(func(ev *Event) bool {
			count++
			return false // unregister after first call
		})
	})

	p.TransportActive()
	p.TransportInactive()
	p.TransportActive()
	assert.Equal(t, 1, count)
}

func TestEventRateLimitSkip(t *testing.T) {
	count := 0
	p := newEventPipe(t, func(o *Options) {
		h := o.OnActive(func(ev *Event) bool {
			count++
			return true
		})
		h.LimitRate = rate.NewLimiter(rate.Every(time.Hour), 1)
		h.LimitSkip = true
	})

	p.TransportActive()
	p.TransportActive()
	p.TransportActive()
	assert.Equal(t, 1, count)
}

func TestEventSeqAndError(t *testing.T) {
	var evs []*Event
	p := newEventPipe(t, func(o *Options) {
		o.OnEvent(func(ev *Event) bool {
			evs = append(evs, ev)
			return true
		})
	})

	p.Event("test.CUSTOM", DIR_OUT, assert.AnError, 42)

	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, "test.CUSTOM", last.Type)
	assert.Equal(t, DIR_OUT, last.Dir)
	assert.ErrorIs(t, last.Error, assert.AnError)
	assert.Equal(t, 42, last.Value)
	// sequence numbers increase
	for i := 1; i < len(evs); i++ {
		assert.Greater(t, evs[i].Seq, evs[i-1].Seq)
	}
}

func TestEventJSON(t *testing.T) {
	ev := &Event{
		Seq:   7,
		Time:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Type:  "pipefix/pipeline.CLOSE",
		Dir:   DIR_BOTH,
		Error: assert.AnError,
		Value: "detail",
	}

	buf := ev.ToJSON(nil)
	assert.Contains(t, string(buf), `"type":"pipefix/pipeline.CLOSE"`)

	var back Event
	require.NoError(t, back.FromJSON(buf))
	assert.Equal(t, ev.Seq, back.Seq)
	assert.True(t, ev.Time.Equal(back.Time))
	assert.Equal(t, ev.Type, back.Type)
	assert.Equal(t, ev.Dir, back.Dir)
	assert.Equal(t, ev.Error.Error(), back.Error.Error())
	assert.Equal(t, "detail", back.Value)
}

func TestDirString(t *testing.T) {
	assert.Equal(t, DIR_OUT, DIR_IN.Flip())
	assert.Equal(t, DIR_IN, DIR_OUT.Flip())
	assert.Equal(t, "IN", DIR_IN.String())

	d, err := DirString("INOUT")
	require.NoError(t, err)
	assert.Equal(t, DIR_BOTH, d)
	_, err = DirString("sideways")
	assert.ErrorIs(t, err, ErrDir)
}
