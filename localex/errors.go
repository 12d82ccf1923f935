package localex

import "errors"

var (
	ErrNotWorker   = errors.New("not inside a worker context")
	ErrCanceled    = errors.New("task canceled")
	ErrStalled     = errors.New("executor stalled: all tasks blocked")
	ErrUnsupported = errors.New("not supported on this platform")
)
