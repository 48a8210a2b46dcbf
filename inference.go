package photoverify

import (
	"errors"
	"fmt"
	"math"
)

// InterpretOutput turns a raw model output vector into a relevance value in [0,1].
//
// A single value is a binary head: values already in [0,1] pass through,
// anything else is treated as a logit. Longer vectors are multiclass logits;
// the softmax probability at validIndex is returned. NaN anywhere in out is an
// inference failure; infinite logits saturate.
func InterpretOutput(out []float32, validIndex int) (float64, error) {
	for i, v := range out {
		if math.IsNaN(float64(v)) {
			return 0, fmt.Errorf("%w: model output %d is NaN", ErrInference, i)
		}
	}

	switch len(out) {
	case 0:
		return 0, fmt.Errorf("%w: empty model output", ErrInference)
	case 1:
		v := float64(out[0])
		if v < 0 || v > 1 {
			v = sigmoid(v)
		}
		return clamp01(v), nil
	}

	if validIndex < 0 || validIndex >= len(out) {
		return 0, &ClassIndexError{Index: validIndex, Outputs: len(out)}
	}
	logits := make([]float64, len(out))
	live := false
	for i, v := range out {
		logits[i] = float64(v)
		live = live || !math.IsInf(logits[i], -1)
	}
	if !live {
		return 0, fmt.Errorf("%w: every model output is -Inf", ErrInference)
	}
	return clamp01(softmax(logits)[validIndex]), nil
}

// sigmoid is evaluated on the side that keeps exp from overflowing.
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// softmax subtracts the maximum before exponentiating. +Inf entries split
// the whole mass between them. At least one entry must exceed -Inf.
func softmax(v []float64) []float64 {
	out := make([]float64, len(v))
	maxV := math.Inf(-1)
	posInf := 0
	for _, x := range v {
		if math.IsInf(x, 1) {
			posInf++
		}
		if x > maxV {
			maxV = x
		}
	}
	if posInf > 0 {
		for i, x := range v {
			if math.IsInf(x, 1) {
				out[i] = 1 / float64(posInf)
			}
		}
		return out
	}

	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// modelScorer produces relevance from a loaded backend.
type modelScorer struct {
	backend    Backend
	validIndex int
}

func (s *modelScorer) relevance(li *loadedImage) (float64, error) {
	out, err := s.backend.Predict(Preprocess(li.img))
	if err != nil {
		if errors.Is(err, ErrInference) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s predict: %w", ErrInference, s.backend.Kind(), err)
	}
	return InterpretOutput(out, s.validIndex)
}
