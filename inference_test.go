package photoverify

import (
	"errors"
	"math"
	"testing"
)

func TestInterpretOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		out        []float32
		validIndex int
		want       float64
	}{
		// Binary head.
		{name: "probability passes through", out: []float32{0.7}, want: 0.7},
		{name: "zero passes through", out: []float32{0}, want: 0},
		{name: "one passes through", out: []float32{1}, want: 1},
		{name: "positive logit", out: []float32{2}, want: 0.880797},
		{name: "negative logit", out: []float32{-3}, want: 0.047426},
		{name: "huge positive logit", out: []float32{1000}, want: 1},
		{name: "huge negative logit", out: []float32{-1000}, want: 0},
		{name: "binary ignores valid index", out: []float32{0.3}, validIndex: 5, want: 0.3},

		// Multiclass.
		{name: "softmax at index 0", out: []float32{2.0, 0.5, -1.0}, validIndex: 0, want: 0.785597},
		{name: "softmax at index 2", out: []float32{2.0, 0.5, 0.1}, validIndex: 2, want: 0.108960},
		{name: "equal logits", out: []float32{3, 3, 3, 3}, validIndex: 1, want: 0.25},
		{name: "large equal logits", out: []float32{1e30, 1e30}, validIndex: 0, want: 0.5},
		{name: "dominant logit", out: []float32{-1000, 1000}, validIndex: 1, want: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := InterpretOutput(tc.out, tc.validIndex)
			if err != nil {
				t.Fatalf("InterpretOutput(%v, %d) error: %v", tc.out, tc.validIndex, err)
			}
			if math.IsNaN(got) {
				t.Fatalf("InterpretOutput(%v, %d) = NaN", tc.out, tc.validIndex)
			}
			if math.Abs(got-tc.want) > 1e-5 {
				t.Errorf("InterpretOutput(%v, %d) = %.6f, want %.6f", tc.out, tc.validIndex, got, tc.want)
			}
		})
	}
}

func TestInterpretOutput_ClassIndexMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		out        []float32
		validIndex int
	}{
		{name: "index past end", out: []float32{0.1, 0.2, 0.3}, validIndex: 3},
		{name: "index far past end", out: []float32{0.1, 0.2}, validIndex: 10},
		{name: "negative index", out: []float32{0.1, 0.2}, validIndex: -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := InterpretOutput(tc.out, tc.validIndex)
			if !errors.Is(err, ErrClassIndexMismatch) {
				t.Fatalf("error = %v, want ErrClassIndexMismatch", err)
			}
			var cie *ClassIndexError
			if !errors.As(err, &cie) {
				t.Fatalf("error %T is not *ClassIndexError", err)
			}
			if cie.Index != tc.validIndex || cie.Outputs != len(tc.out) {
				t.Errorf("ClassIndexError = %+v, want index %d outputs %d", cie, tc.validIndex, len(tc.out))
			}
		})
	}
}

func TestInterpretOutput_Invalid(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())
	negInf := float32(math.Inf(-1))
	for name, out := range map[string][]float32{
		"empty":              {},
		"nil":                nil,
		"nan":                {nan},
		"multiclass nan":     {nan, 0.5, -1},
		"nan off index":      {2, 0.5, nan},
		"all negative inf":   {negInf, negInf},
		"nan with bad index": {nan, 1, 2, 3, 4},
	} {
		if _, err := InterpretOutput(out, 0); !errors.Is(err, ErrInference) {
			t.Errorf("%s: error = %v, want ErrInference", name, err)
		}
	}
}

func TestInterpretOutput_InfiniteLogits(t *testing.T) {
	t.Parallel()

	posInf := float32(math.Inf(1))
	negInf := float32(math.Inf(-1))
	tests := []struct {
		name       string
		out        []float32
		validIndex int
		want       float64
	}{
		{"binary +inf", []float32{posInf}, 0, 1},
		{"binary -inf", []float32{negInf}, 0, 0},
		{"+inf at valid index", []float32{posInf, 0.5}, 0, 1},
		{"+inf elsewhere", []float32{posInf, 0.5}, 1, 0},
		{"two +inf share", []float32{posInf, posInf, 3}, 1, 0.5},
		{"-inf at valid index", []float32{negInf, 0.5}, 0, 0},
		{"-inf elsewhere", []float32{negInf, 0.5}, 1, 1},
	}
	for _, tc := range tests {
		got, err := InterpretOutput(tc.out, tc.validIndex)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
			continue
		}
		if math.IsNaN(got) || math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("%s: InterpretOutput = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSoftmax_SumsToOne(t *testing.T) {
	t.Parallel()

	for _, logits := range [][]float64{
		{2.0, 0.5, 0.1},
		{-5, 0, 5, 10},
		{700, 710, 720},
		{-700, -710},
	} {
		var sum float64
		for _, p := range softmax(logits) {
			if p < 0 || p > 1 || math.IsNaN(p) {
				t.Fatalf("softmax(%v) produced %v", logits, p)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("softmax(%v) sums to %v", logits, sum)
		}
	}
}

func TestSigmoid_Stable(t *testing.T) {
	t.Parallel()

	for _, x := range []float64{-1e6, -745, -1, 0, 1, 745, 1e6} {
		got := sigmoid(x)
		if math.IsNaN(got) || got < 0 || got > 1 {
			t.Errorf("sigmoid(%v) = %v", x, got)
		}
	}
	if got := sigmoid(0); got != 0.5 {
		t.Errorf("sigmoid(0) = %v, want 0.5", got)
	}
}

func TestModelScorer_WrapsPredictErrors(t *testing.T) {
	t.Parallel()

	li := &loadedImage{img: solidImage(32, 32, whiteRGBA)}
	boom := errors.New("session run failed")
	s := &modelScorer{backend: &fakeBackend{kind: BackendONNX, err: boom}}

	_, err := s.relevance(li)
	if !errors.Is(err, ErrInference) {
		t.Fatalf("error = %v, want ErrInference", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want cause preserved", err)
	}
}

func TestModelScorer_FeedsModelInputTensor(t *testing.T) {
	t.Parallel()

	b := &fakeBackend{kind: BackendTFLite, out: []float32{0.9}}
	s := &modelScorer{backend: b}

	got, err := s.relevance(&loadedImage{img: noiseImage(50, 80, 3)})
	if err != nil {
		t.Fatalf("relevance: %v", err)
	}
	if math.Abs(got-0.9) > 1e-6 {
		t.Errorf("relevance = %v, want 0.9", got)
	}
	if n := b.predicts.Load(); n != 1 {
		t.Errorf("predicts = %d, want 1", n)
	}
}
