package photoverify

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// loadedImage is one upload read from disk: raw bytes for metadata, the
// decoded image for hashing and scoring.
type loadedImage struct {
	data   []byte
	img    image.Image
	format string // image.Decode format name: "jpeg", "png", "gif", "webp"
}

// loadImage reads and decodes path. Missing files yield ErrImageNotFound,
// undecodable content ErrImageCorrupt.
func loadImage(path string) (*loadedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageCorrupt, path, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrImageCorrupt, path)
	}

	return &loadedImage{data: data, img: img, format: format}, nil
}

// resizeRGB draws src onto a w×h RGBA canvas using bicubic (Catmull-Rom)
// resampling. Alpha is dropped first, so every output pixel is opaque.
func resizeRGB(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), dropAlpha(src), src.Bounds(), draw.Src, nil)
	return dst
}

// dropAlpha returns src with every pixel made opaque while keeping its
// stored (non-premultiplied) color. Opaque images are returned as is.
func dropAlpha(src image.Image) image.Image {
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return src
	}

	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok {
		dst := image.NewNRGBA(b)
		for y := 0; y < b.Dy(); y++ {
			row := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()*4]
			copy(row, n.Pix[n.PixOffset(b.Min.X, b.Min.Y+y):])
			for i := 3; i < len(row); i += 4 {
				row[i] = 0xFF
			}
		}
		return dst
	}

	dst := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			c.A = 0xFF
			dst.SetNRGBA(x, y, c)
		}
	}
	return dst
}
