package photoverify

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// BackendKind names the variant that produced a relevance score.
type BackendKind string

const (
	BackendHeuristic BackendKind = "heuristic"
	BackendONNX      BackendKind = "onnx"
	BackendTFLite    BackendKind = "tflite"
)

// primaryExt is the model extension owned by the primary runtime.
const primaryExt = ".onnx"

// Backend runs a loaded model. Predict returns the raw, flattened output vector.
type Backend interface {
	Kind() BackendKind
	Predict(t Tensor) ([]float32, error)
	Close() error
}

// Runtime is an inference runtime that may load a model artifact.
type Runtime interface {
	Kind() BackendKind
	// Available reports whether the runtime library can be used in this process.
	Available() error
	// Accepts reports whether the runtime handles artifacts at path (extension rule).
	Accepts(path string) bool
	Load(path string) (Backend, error)
}

// LoadOutcome is the typed result of one runtime attempt.
type LoadOutcome string

const (
	LoadSkippedUnavailable LoadOutcome = "skipped_unavailable"
	LoadSkippedMissing     LoadOutcome = "skipped_missing"
	LoadSkippedExtension   LoadOutcome = "skipped_extension"
	LoadFailed             LoadOutcome = "failed"
	LoadOK                 LoadOutcome = "loaded"
)

// LoadAttempt records what happened when a runtime was probed at construction.
type LoadAttempt struct {
	Runtime BackendKind
	Path    string
	Outcome LoadOutcome
	Err     error
}

// unavailableBackend is the heuristic-only variant.
type unavailableBackend struct{}

func (unavailableBackend) Kind() BackendKind { return BackendHeuristic }

func (unavailableBackend) Predict(Tensor) ([]float32, error) { return nil, ErrNoModel }

func (unavailableBackend) Close() error { return nil }

// hasPrimaryExt reports whether path carries the primary runtime's extension.
func hasPrimaryExt(path string) bool {
	return strings.EqualFold(filepath.Ext(path), primaryExt)
}

// selectBackend walks runtimes in order and returns the first that loads
// modelPath. It never fails: when nothing loads, the heuristic-only backend is
// returned. Every probe is recorded as a LoadAttempt.
func selectBackend(runtimes []Runtime, modelPath string, log *slog.Logger, onLoad func(LoadAttempt)) (Backend, []LoadAttempt) {
	attempts := make([]LoadAttempt, 0, len(runtimes))
	record := func(a LoadAttempt) {
		attempts = append(attempts, a)
		if onLoad != nil {
			onLoad(a)
		}
	}

	exists := modelPath != "" && isFile(modelPath)

	for _, rt := range runtimes {
		a := LoadAttempt{Runtime: rt.Kind(), Path: modelPath}

		if err := rt.Available(); err != nil {
			a.Outcome, a.Err = LoadSkippedUnavailable, err
			log.Debug("photoverify: runtime unavailable", "runtime", a.Runtime, "error", err.Error())
			record(a)
			continue
		}
		if !exists {
			a.Outcome = LoadSkippedMissing
			record(a)
			continue
		}
		if !rt.Accepts(modelPath) {
			a.Outcome = LoadSkippedExtension
			record(a)
			continue
		}

		b, err := loadSafely(rt, modelPath)
		if err != nil {
			a.Outcome, a.Err = LoadFailed, err
			log.Warn("photoverify: model load failed, falling through", "runtime", a.Runtime, "path", modelPath, "error", err.Error())
			record(a)
			continue
		}

		a.Outcome = LoadOK
		log.Info("photoverify: model loaded", "runtime", a.Runtime, "path", modelPath)
		record(a)
		return b, attempts
	}

	if exists {
		log.Info("photoverify: no runtime could load model, using heuristic only", "path", modelPath)
	} else {
		log.Info("photoverify: model not found, using heuristic only", "path", modelPath)
	}
	return unavailableBackend{}, attempts
}

// loadSafely converts a panicking cgo loader into an error.
func loadSafely(rt Runtime, path string) (b Backend, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%s loader panic: %v", rt.Kind(), r)
		}
	}()
	b, err = rt.Load(path)
	if err == nil && b == nil {
		err = errors.New("loader returned no backend")
	}
	return b, err
}

// ONNXRuntime loads .onnx graphs through onnxruntime. It is the primary runtime.
// Without the "onnx" build tag it always reports ErrRuntimeUnavailable.
type ONNXRuntime struct {
	LibraryPath string // onnxruntime shared library; empty = platform default
}

func (*ONNXRuntime) Kind() BackendKind { return BackendONNX }

func (*ONNXRuntime) Accepts(path string) bool { return hasPrimaryExt(path) }

// TFLiteRuntime loads TensorFlow Lite flatbuffers. It is the secondary runtime.
// Without the "tflite" build tag it always reports ErrRuntimeUnavailable.
type TFLiteRuntime struct {
	Threads int // 0 = runtime.NumCPU()
}

func (*TFLiteRuntime) Kind() BackendKind { return BackendTFLite }

func (*TFLiteRuntime) Accepts(path string) bool { return !hasPrimaryExt(path) }
