package photoverify

import (
	"errors"
	"fmt"
)

var (
	// ErrImageNotFound is returned when the image path does not exist.
	ErrImageNotFound = errors.New("photoverify: image not found")
	// ErrImageCorrupt is returned when the image exists but cannot be decoded.
	ErrImageCorrupt = errors.New("photoverify: image corrupt or undecodable")
	// ErrClassIndexMismatch means the model output does not fit the resolved class index.
	ErrClassIndexMismatch = errors.New("photoverify: model output inconsistent with class index")
	// ErrInference wraps runtime failures of a loaded backend.
	ErrInference = errors.New("photoverify: inference failed")
	// ErrRuntimeUnavailable means the runtime library is not built in or cannot be loaded.
	ErrRuntimeUnavailable = errors.New("photoverify: runtime unavailable")
	// ErrNoModel is returned by the heuristic-only backend's Predict.
	ErrNoModel = errors.New("photoverify: no model loaded")
	// ErrClosed is returned by Score after Close.
	ErrClosed = errors.New("photoverify: verifier closed")
	// ErrInvalidConfig is returned by Config.Validate and New.
	ErrInvalidConfig = errors.New("photoverify: invalid config")
)

// ClassIndexError describes a multiclass output that has no entry at the valid index.
type ClassIndexError struct {
	Index   int
	Outputs int
}

func (e *ClassIndexError) Error() string {
	return fmt.Sprintf("photoverify: valid class index %d out of range for %d model outputs", e.Index, e.Outputs)
}

// Is makes errors.Is(err, ErrClassIndexMismatch) hold for a *ClassIndexError.
func (e *ClassIndexError) Is(target error) bool {
	return target == ErrClassIndexMismatch
}
