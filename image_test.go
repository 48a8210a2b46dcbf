package photoverify

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nrgbaImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestPreprocess_TransparentKeepsStoredColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  image.Image
		want [3]float32
	}{
		{"transparent white", nrgbaImage(224, 224, color.NRGBA{255, 255, 255, 0}), [3]float32{255, 255, 255}},
		{"half transparent red", nrgbaImage(300, 200, color.NRGBA{200, 10, 30, 128}), [3]float32{200, 10, 30}},
		{"opaque white", solidImage(224, 224, whiteRGBA), [3]float32{255, 255, 255}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tensor := Preprocess(tc.img)
			require.Len(t, tensor.Data, tensor.Shape.Size())
			for _, i := range []int{0, len(tensor.Data)/2 - len(tensor.Data)/2%3, len(tensor.Data) - 3} {
				assert.Equal(t, tc.want[:], tensor.Data[i:i+3], "pixel at %d", i)
			}
		})
	}
}

func TestHeuristic_TransparentMatchesOpaque(t *testing.T) {
	t.Parallel()

	transparent := nrgbaImage(224, 224, color.NRGBA{255, 255, 255, 0})
	opaque := solidImage(224, 224, whiteRGBA)

	assert.Equal(t, AnalyzeHeuristic(opaque), AnalyzeHeuristic(transparent))
	assert.Equal(t, DefaultHeuristicFloor, HeuristicRelevance(transparent, DefaultHeuristicFloor, 0))
}

func TestDropAlpha(t *testing.T) {
	t.Parallel()

	opaque := solidImage(4, 4, whiteRGBA)
	assert.Same(t, opaque, dropAlpha(opaque))

	base := nrgbaImage(8, 8, color.NRGBA{10, 20, 30, 0})
	base.SetNRGBA(5, 5, color.NRGBA{40, 50, 60, 7})
	sub := base.SubImage(image.Rect(4, 4, 8, 8))

	got := dropAlpha(sub)
	assert.Equal(t, sub.Bounds(), got.Bounds())
	assert.Equal(t, color.NRGBA{40, 50, 60, 255}, got.At(5, 5))
	assert.Equal(t, color.NRGBA{10, 20, 30, 255}, got.At(7, 7))

	mask := image.NewAlpha(image.Rect(0, 0, 2, 2))
	for _, c := range []color.Color{dropAlpha(mask).At(0, 0), dropAlpha(mask).At(1, 1)} {
		_, _, _, a := c.RGBA()
		assert.Equal(t, uint32(0xFFFF), a)
	}
}
