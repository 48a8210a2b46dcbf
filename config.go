package photoverify

import (
	"fmt"
	"log/slog"
	"time"
)

// Defaults for the configuration surface.
const (
	DefaultActionCutoff      = 0.50
	DefaultValidClassIndex   = 0
	DefaultHeuristicFloor    = 0.10
	DefaultHeuristicBias     = 0.0
	DefaultDuplicateDistance = 5
	DefaultDuplicatePenalty  = 0.40
	DefaultModelPath         = "photo_verifier.onnx"
	DefaultModelVersion      = "smart_v1"
	DefaultClassMapPath      = "ai/class_map.json"
)

// DuplicatePolicy selects which history entry is reported as duplicate_of.
type DuplicatePolicy int

const (
	// DuplicateFirstMatch reports the first candidate, in caller order, within the distance threshold.
	DuplicateFirstMatch DuplicatePolicy = iota
	// DuplicateNearest reports the closest candidate within the threshold; ties go to the earliest.
	DuplicateNearest
)

func (p DuplicatePolicy) String() string {
	switch p {
	case DuplicateNearest:
		return "nearest"
	default:
		return "first"
	}
}

// ParseDuplicatePolicy maps "first" / "nearest" to a DuplicatePolicy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch s {
	case "", "first", "first-match":
		return DuplicateFirstMatch, nil
	case "nearest":
		return DuplicateNearest, nil
	default:
		return DuplicateFirstMatch, fmt.Errorf("%w: unknown duplicate policy %q", ErrInvalidConfig, s)
	}
}

// ScoreEvent is reported to Config.OnScore after every Score call.
type ScoreEvent struct {
	Path     string
	Backend  BackendKind
	Result   *ScoreResult // nil when Err != nil
	Duration time.Duration
	Err      error
}

// Config holds thresholds, paths and optional hooks. It is built once at
// process start and passed by value to New; the Verifier never mutates it.
type Config struct {
	ActionCutoff    float64 // label/status cutoff on action_score (default 0.50)
	ValidClassIndex int     // fallback valid-class index when no class map resolves (default 0)
	HeuristicFloor  float64 // lower clamp for the heuristic relevance (default 0.10)
	HeuristicBias   float64 // added to the heuristic's constant bias (default 0.0)

	DisableDuplicatePenalty bool            // hash is still computed, nothing is reported
	DuplicateDistance       int             // max Hamming distance for a duplicate (default 5)
	DuplicatePenalty        float64         // subtracted from action_score on a duplicate (default 0.40)
	DuplicatePolicy         DuplicatePolicy // default DuplicateFirstMatch

	ModelPath    string // model artifact; extension picks the runtime
	ModelVersion string // tag prefixed to the backend kind in ScoreResult.ModelVersion
	ClassMapPath string // optional class map override

	ONNXLibraryPath string // optional path to the onnxruntime shared library
	TFLiteThreads   int    // interpreter threads (0 = runtime.NumCPU())

	// Runtimes overrides the runtime probe order. Nil means ONNX first, then TFLite.
	Runtimes []Runtime

	// Logger receives construction and scoring diagnostics (nil = slog.Default()).
	Logger *slog.Logger

	// Optional callbacks for metrics/logging.
	OnScore       func(ScoreEvent)
	OnBackendLoad func(LoadAttempt)
}

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() Config {
	return Config{
		ActionCutoff:      DefaultActionCutoff,
		ValidClassIndex:   DefaultValidClassIndex,
		HeuristicFloor:    DefaultHeuristicFloor,
		HeuristicBias:     DefaultHeuristicBias,
		DuplicateDistance: DefaultDuplicateDistance,
		DuplicatePenalty:  DefaultDuplicatePenalty,
		DuplicatePolicy:   DuplicateFirstMatch,
		ModelPath:         DefaultModelPath,
		ModelVersion:      DefaultModelVersion,
	}
}

// Validate reports values that would break the [0,1] score invariants.
func (c Config) Validate() error {
	switch {
	case c.ActionCutoff < 0 || c.ActionCutoff > 1:
		return fmt.Errorf("%w: action cutoff %v outside [0,1]", ErrInvalidConfig, c.ActionCutoff)
	case c.HeuristicFloor < 0 || c.HeuristicFloor > 1:
		return fmt.Errorf("%w: heuristic floor %v outside [0,1]", ErrInvalidConfig, c.HeuristicFloor)
	case c.DuplicatePenalty < 0 || c.DuplicatePenalty > 1:
		return fmt.Errorf("%w: duplicate penalty %v outside [0,1]", ErrInvalidConfig, c.DuplicatePenalty)
	case c.DuplicateDistance < 0:
		return fmt.Errorf("%w: negative duplicate distance %d", ErrInvalidConfig, c.DuplicateDistance)
	case c.ValidClassIndex < 0:
		return fmt.Errorf("%w: negative valid class index %d", ErrInvalidConfig, c.ValidClassIndex)
	case c.TFLiteThreads < 0:
		return fmt.Errorf("%w: negative tflite threads %d", ErrInvalidConfig, c.TFLiteThreads)
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// runtimes returns the effective runtime probe order.
func (c *Config) runtimes() []Runtime {
	if c.Runtimes != nil {
		return c.Runtimes
	}
	return []Runtime{
		&ONNXRuntime{LibraryPath: c.ONNXLibraryPath},
		&TFLiteRuntime{Threads: c.TFLiteThreads},
	}
}
