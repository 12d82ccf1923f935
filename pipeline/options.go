package pipeline

import (
	"fmt"
	"reflect"
	"runtime"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Default pipeline options
var DefaultOptions = Options{}

// Pipeline options; modify before Finalize().
type Options struct {
	Logger *zerolog.Logger // if nil logging is disabled

	Handlers []*EvHandler // event handlers
}

// EvHandler represents a function to call for matching pipeline events
type EvHandler struct {
	Id      int          // optional handler id number (zero means none)
	Name    string       // optional name
	Order   int          // the lower the order, the sooner handler is run
	Enabled *atomic.Bool // if non-nil, disables the handler unless true
	Dropped bool         // if true, permanently drops (unregisters) the handler

	Pre  bool // run before non-pre handlers?
	Post bool // run after non-post handlers?

	Dir       Dir           // if non-zero, limits the direction
	Types     []string      // if non-empty, limits event types
	LimitRate *rate.Limiter // if non-nil, limits the rate of handler invocations
	LimitSkip bool          // if true, skips the event when rate limit exceeded (else blocks)

	Func EvFunc // the function to call
}

// EvFunc handles event ev.
// Return false to unregister the handler (all types).
type EvFunc func(ev *Event) (keep_handler bool)

// AddHandler adds a handler function using tpl as its template (if present).
// It returns the added EvHandler, which can be further configured.
func (o *Options) AddHandler(hdf EvFunc, tpl ...*EvHandler) *EvHandler {
	var h EvHandler

	// deep copy the tpl?
	if len(tpl) > 0 {
		h = *tpl[0]
		h.Types = nil
		h.Types = append(h.Types, tpl[0].Types...)
	}

	// all types?
	if len(h.Types) == 0 {
		h.Types = []string{"*"}
	}

	// override the function?
	if hdf != nil {
		h.Func = hdf
	}

	// override the name?
	if len(h.Name) == 0 {
		h.Name = runtime.FuncForPC(reflect.ValueOf(hdf).Pointer()).Name()
	}

	o.Handlers = append(o.Handlers, &h)
	return &h
}

// String returns handler name and id as string
func (h *EvHandler) String() string {
	return fmt.Sprintf("EV%d:%s", h.Id, h.Name)
}

// Enable sets h.Enabled to true and returns true. If h.Enabled is nil, returns false.
func (h *EvHandler) Enable() bool {
	if h == nil || h.Enabled == nil {
		return false
	} else {
		h.Enabled.Store(true)
		return true
	}
}

// Disable sets h.Enabled to false and returns true. If h.Enabled is nil, returns false.
func (h *EvHandler) Disable() bool {
	if h == nil || h.Enabled == nil {
		return false
	} else {
		h.Enabled.Store(false)
		return true
	}
}

// Drop drops the handler, permanently unregistering it from running
func (h *EvHandler) Drop() {
	if h != nil {
		h.Dropped = true
	}
}

// OnEvent requests hdf to be called for given event types.
// If no types provided, it requests to call hdf on *every* event.
func (o *Options) OnEvent(hdf EvFunc, types ...string) *EvHandler {
	return o.AddHandler(hdf, &EvHandler{
		Order: len(o.Handlers) + 1,
		Types: types,
	})
}

// OnEventPre is like OnEvent but requests to run hdf before other handlers
func (o *Options) OnEventPre(hdf EvFunc, types ...string) *EvHandler {
	return o.AddHandler(hdf, &EvHandler{
		Pre:   true,
		Order: -len(o.Handlers) - 1,
		Types: types,
	})
}

// OnEventPost is like OnEvent but requests to run hdf after other handlers
func (o *Options) OnEventPost(hdf EvFunc, types ...string) *EvHandler {
	return o.AddHandler(hdf, &EvHandler{
		Post:  true,
		Order: len(o.Handlers) + 1,
		Types: types,
	})
}

// OnActive requests hdf to be called when the transport reports up.
func (o *Options) OnActive(hdf EvFunc) *EvHandler {
	return o.OnEvent(hdf, EVENT_ACTIVE)
}

// OnInactive requests hdf to be called when the transport reports down.
func (o *Options) OnInactive(hdf EvFunc) *EvHandler {
	return o.OnEvent(hdf, EVENT_INACTIVE)
}

// OnClose requests hdf to be called when the pipeline closes.
func (o *Options) OnClose(hdf EvFunc) *EvHandler {
	return o.OnEvent(hdf, EVENT_CLOSE)
}

// OnException requests hdf to be called on an injected transport error.
func (o *Options) OnException(hdf EvFunc) *EvHandler {
	return o.OnEvent(hdf, EVENT_EXCEPTION)
}
