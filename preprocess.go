package photoverify

import "image"

// Model input contract. The exported graphs carry their own normalization, so
// the tensor holds raw 0..255 channel values in NHWC order. Changing the size,
// the layout or the value range without re-exporting the model breaks
// inference silently.
const (
	ModelInputHeight   = 224
	ModelInputWidth    = 224
	ModelInputChannels = 3
)

// Shape is an NHWC tensor shape.
type Shape [4]int

func (s Shape) int64s() []int64 {
	return []int64{int64(s[0]), int64(s[1]), int64(s[2]), int64(s[3])}
}

// Size is the number of elements described by the shape.
func (s Shape) Size() int {
	return s[0] * s[1] * s[2] * s[3]
}

// Tensor is a dense float32 model input.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// Preprocess converts img to the model input tensor: RGB, 224×224,
// shape [1,224,224,3], values in 0..255.
func Preprocess(img image.Image) Tensor {
	rgba := resizeRGB(img, ModelInputWidth, ModelInputHeight)
	shape := Shape{1, ModelInputHeight, ModelInputWidth, ModelInputChannels}
	data := make([]float32, 0, shape.Size())

	for y := 0; y < ModelInputHeight; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+ModelInputWidth*4]
		for x := 0; x < ModelInputWidth; x++ {
			px := row[x*4 : x*4+3]
			data = append(data, float32(px[0]), float32(px[1]), float32(px[2]))
		}
	}

	return Tensor{Shape: shape, Data: data}
}
