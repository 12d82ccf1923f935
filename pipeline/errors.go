package pipeline

import "errors"

var (
	ErrFinalized    = errors.New("pipeline already finalized")
	ErrNotFinalized = errors.New("pipeline not finalized")
	ErrDir          = errors.New("invalid direction")
)
