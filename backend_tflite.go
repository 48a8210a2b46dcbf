//go:build tflite

package photoverify

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	tflite "github.com/tphakala/go-tflite"
)

// Available always succeeds: the TFLite C library is linked at build time.
func (r *TFLiteRuntime) Available() error { return nil }

// Load creates an interpreter for the model at path and allocates its tensors.
func (r *TFLiteRuntime) Load(path string) (Backend, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, fmt.Errorf("cannot load tflite model %s", path)
	}

	threads := r.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("cannot create tflite interpreter")
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		options.Delete()
		model.Delete()
		return nil, errors.New("tflite tensor allocation failed")
	}

	return &tfliteBackend{model: model, options: options, interp: interp}, nil
}

// tfliteBackend serializes Predict: an interpreter owns a single set of
// input/output buffers.
type tfliteBackend struct {
	mu      sync.Mutex
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
}

func (b *tfliteBackend) Kind() BackendKind { return BackendTFLite }

func (b *tfliteBackend) Predict(t Tensor) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	input := b.interp.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("%w: cannot get tflite input tensor", ErrInference)
	}
	dst := input.Float32s()
	if len(dst) != len(t.Data) {
		return nil, fmt.Errorf("%w: tflite input holds %d values, tensor has %d", ErrInference, len(dst), len(t.Data))
	}
	copy(dst, t.Data)

	if status := b.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("%w: tflite invoke failed", ErrInference)
	}

	output := b.interp.GetOutputTensor(0)
	if output == nil {
		return nil, fmt.Errorf("%w: cannot get tflite output tensor", ErrInference)
	}
	src := output.Float32s()
	res := make([]float32, len(src))
	copy(res, src)
	return res, nil
}

func (b *tfliteBackend) Close() error {
	b.interp.Delete()
	b.options.Delete()
	b.model.Delete()
	return nil
}
