//go:build onnx

package photoverify

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnvMu guards the process-wide onnxruntime environment.
var ortEnvMu sync.Mutex

// Available initializes the onnxruntime environment once per process. A
// missing or incompatible shared library is reported as ErrRuntimeUnavailable.
func (r *ONNXRuntime) Available() error {
	ortEnvMu.Lock()
	defer ortEnvMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if r.LibraryPath != "" {
		ort.SetSharedLibraryPath(r.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: onnxruntime: %v", ErrRuntimeUnavailable, err)
	}
	return nil
}

// Load opens a session bound to the graph's first input and first output.
func (r *ONNXRuntime) Load(path string) (Backend, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read onnx io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("onnx graph has no inputs or outputs")
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx session options: %w", err)
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx session: %w", err)
	}
	return &onnxBackend{session: session}, nil
}

// onnxBackend is safe for concurrent Predict calls; onnxruntime sessions
// support concurrent Run.
type onnxBackend struct {
	session *ort.DynamicAdvancedSession
}

func (b *onnxBackend) Kind() BackendKind { return BackendONNX }

func (b *onnxBackend) Predict(t Tensor) ([]float32, error) {
	in, err := ort.NewTensor(ort.NewShape(t.Shape.int64s()...), t.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: onnx input tensor: %v", ErrInference, err)
	}
	defer in.Destroy()

	out := []ort.Value{nil}
	if err := b.session.Run([]ort.Value{in}, out); err != nil {
		return nil, fmt.Errorf("%w: onnx run: %v", ErrInference, err)
	}
	defer out[0].Destroy()

	ft, ok := out[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: onnx output is %T, want float32 tensor", ErrInference, out[0])
	}
	data := ft.GetData()
	res := make([]float32, len(data))
	copy(res, data)
	return res, nil
}

func (b *onnxBackend) Close() error {
	return b.session.Destroy()
}
