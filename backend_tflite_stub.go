//go:build !tflite

package photoverify

func (*TFLiteRuntime) Available() error { return ErrRuntimeUnavailable }

func (*TFLiteRuntime) Load(string) (Backend, error) { return nil, ErrRuntimeUnavailable }
