//go:build !onnx

package photoverify

func (*ONNXRuntime) Available() error { return ErrRuntimeUnavailable }

func (*ONNXRuntime) Load(string) (Backend, error) { return nil, ErrRuntimeUnavailable }
