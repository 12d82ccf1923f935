package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pipefix/pipefix/json"
)

// a collection of events generated internally by pipeline
var (
	// pipeline has been finalized
	EVENT_START = "pipefix/pipeline.START"

	// transport reported up
	EVENT_ACTIVE = "pipefix/pipeline.ACTIVE"

	// transport reported down
	EVENT_INACTIVE = "pipefix/pipeline.INACTIVE"

	// transport error injected at the head
	EVENT_EXCEPTION = "pipefix/pipeline.EXCEPTION"

	// inbound stream ended
	EVENT_EOF = "pipefix/pipeline.EOF"

	// pipeline closed
	EVENT_CLOSE = "pipefix/pipeline.CLOSE"
)

// Event represents an arbitrary pipeline event.
// Dispatch is synchronous: every registered handler runs on the driving
// thread before Event returns.
type Event struct {
	Seq  uint64    `json:"seq,omitempty"`  // event sequence number
	Time time.Time `json:"time,omitempty"` // event timestamp

	Type  string `json:"type"`  // type, usually "lib/pkg.NAME"
	Dir   Dir    `json:"dir"`   // optional event direction
	Error error  `json:"err"`   // optional error related to the event
	Value any    `json:"value"` // optional value, type-specific

	Handler *EvHandler `json:"-"` // currently running handler (may be nil)
}

// String returns event type and seq number as string
func (ev *Event) String() string {
	if ev == nil {
		return "nil"
	} else {
		return fmt.Sprintf("E%d:%s", ev.Seq, ev.Type)
	}
}

// attachEvents indexes Options.Handlers by event type.
func (p *Pipeline[R, W]) attachEvents() {
	p.events = make(map[string][]*EvHandler)

	// first pass: add non-wildcard handlers, collect wildcards
	var wildcards []*EvHandler
	for _, hd := range p.Options.Handlers {
		// is valid?
		if hd == nil || hd.Func == nil {
			continue
		} else if len(hd.Types) == 0 {
			wildcards = append(wildcards, hd)
			continue
		}

		types := slices.Clone(hd.Types)
		slices.Sort(types)
		for _, typ := range slices.Compact(types) {
			if typ == "*" {
				wildcards = append(wildcards, hd)
			} else {
				p.events[typ] = append(p.events[typ], hd)
			}
		}
	}

	// second pass: add wildcards (avoid duplicates)
	for typ, hds := range p.events {
		for _, wh := range wildcards {
			if !slices.Contains(hds, wh) {
				hds = append(hds, wh)
			}
		}
		p.events[typ] = hds
	}
	p.events["*"] = wildcards

	// final pass: sort all handlers
	for _, hds := range p.events {
		slices.SortStableFunc(hds, func(a, b *EvHandler) int {
			if a.Pre != b.Pre {
				if a.Pre {
					return -1
				} else {
					return 1
				}
			}
			if a.Post != b.Post {
				if a.Post {
					return 1
				} else {
					return -1
				}
			}
			return a.Order - b.Order
		})
	}
}

// Event announces a new event type et to the pipeline, with optional
// arguments. All error arguments are joined into ev.Error; the remaining
// arguments become ev.Value. Handlers run before Event returns.
func (p *Pipeline[R, W]) Event(et string, d Dir, args ...any) *Event {
	p.evseq++
	ev := &Event{
		Seq:  p.evseq,
		Time: time.Now().UTC(),
		Type: et,
		Dir:  d,
	}

	// process args
	var errs []error
	var vals []any
	for _, arg := range args {
		if err, ok := arg.(error); ok {
			errs = append(errs, err)
		} else {
			vals = append(vals, arg)
		}
	}
	switch len(errs) {
	case 0:
	case 1:
		ev.Error = errs[0]
	default:
		ev.Error = errors.Join(errs...)
	}
	switch len(vals) {
	case 0:
	case 1:
		ev.Value = vals[0]
	default:
		ev.Value = vals
	}

	// prepare the handlers
	hs := p.events[ev.Type]
	if len(hs) == 0 {
		hs = p.events["*"]
	}

	// call handlers
	for _, h := range hs {
		// skip handler?
		if h.Dropped {
			continue
		} else if h.Dir != 0 && h.Dir&ev.Dir == 0 {
			continue // different direction
		} else if h.Enabled != nil && !h.Enabled.Load() {
			continue // disabled
		}

		// rate limit?
		if h.LimitRate != nil {
			if h.LimitSkip {
				if !h.LimitRate.Allow() {
					continue
				}
			} else {
				time.Sleep(h.LimitRate.Reserve().Delay())
			}
		}

		// run the handler, block until done
		ev.Handler = h
		if !h.Func(ev) {
			h.Drop()
		}
		ev.Handler = nil
	}

	return ev
}

// ToJSON marshals ev to JSON
func (ev *Event) ToJSON(dst []byte) []byte {
	dst = append(dst, `{"seq":`...)
	dst = json.U64(dst, ev.Seq)

	dst = append(dst, `,"time":"`...)
	dst = ev.Time.AppendFormat(dst, time.RFC3339Nano)

	dst = append(dst, `","type":"`...)
	dst = json.Ascii(dst, []byte(ev.Type))

	dst = append(dst, `","dir":"`...)
	dst = append(dst, ev.Dir.String()...)
	dst = append(dst, '"')

	if ev.Error != nil {
		dst = append(dst, `,"err":"`...)
		dst = json.Ascii(dst, []byte(ev.Error.Error()))
		dst = append(dst, '"')
	}

	if ev.Value != nil {
		dst = append(dst, `,"value":"`...)
		dst = json.Ascii(dst, []byte(fmt.Sprint(ev.Value)))
		dst = append(dst, '"')
	}

	return append(dst, '}')
}

// FromJSON unmarshals ev from JSON
func (ev *Event) FromJSON(src []byte) error {
	return json.ObjectEach(src, func(key, val []byte) error {
		switch json.S(key) {
		case "seq":
			v, err := json.UnU64(val)
			if err != nil {
				return err
			}
			ev.Seq = v
		case "time":
			t, err := time.Parse(time.RFC3339Nano, json.SQ(val))
			if err != nil {
				return err
			}
			ev.Time = t
		case "type":
			ev.Type = string(json.Q(val))
		case "dir":
			if s := json.SQ(val); s != "?" {
				d, err := DirString(s)
				if err != nil {
					return err
				}
				ev.Dir = d
			}
		case "err":
			ev.Error = errors.New(string(json.Q(val)))
		case "value":
			ev.Value = string(json.Q(val))
		}
		return nil
	})
}
