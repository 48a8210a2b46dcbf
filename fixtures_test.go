package photoverify

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var whiteRGBA = color.RGBA{255, 255, 255, 255}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h, square int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/square+y/square)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			}
		}
	}
	return img
}

// noiseImage is deterministic pseudo-random texture (LCG seeded by seed).
func noiseImage(w, h int, seed uint32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	state := seed
	next := func() uint8 {
		state = state*1664525 + 1013904223
		return uint8(state >> 24)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{next(), next(), next(), 255})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return writeFile(t, dir, name, buf.Bytes())
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

// EXIF construction. Only the types the tests need: ASCII (2), LONG (4) and
// RATIONAL (5).
const (
	exifASCII    = 2
	exifLONG     = 4
	exifRATIONAL = 5

	tagGPSLatitudeRef   = 0x0001
	tagGPSLatitude      = 0x0002
	tagGPSLongitudeRef  = 0x0003
	tagGPSLongitude     = 0x0004
	tagMake             = 0x010F
	tagDateTime         = 0x0132
	tagExifIFDPointer   = 0x8769
	tagGPSIFDPointer    = 0x8825
	tagDateTimeOriginal = 0x9003
)

type exifEntry struct {
	tag   uint16
	typ   uint16
	value string   // ASCII payload
	rats  []uint32 // RATIONAL numerator/denominator pairs
}

// encode returns the TIFF count field and the raw value bytes.
func (e exifEntry) encode() (uint32, []byte) {
	if e.typ == exifRATIONAL {
		var val []byte
		for _, v := range e.rats {
			val = binary.LittleEndian.AppendUint32(val, v)
		}
		return uint32(len(e.rats) / 2), val
	}
	val := append([]byte(e.value), 0)
	return uint32(len(val)), val
}

// gpsFix builds GPS IFD entries from whole degrees, minutes and seconds.
func gpsFix(latRef string, lat [3]uint32, lonRef string, lon [3]uint32) []exifEntry {
	dms := func(v [3]uint32) []uint32 { return []uint32{v[0], 1, v[1], 1, v[2], 1} }
	return []exifEntry{
		{tag: tagGPSLatitudeRef, typ: exifASCII, value: latRef},
		{tag: tagGPSLatitude, typ: exifRATIONAL, rats: dms(lat)},
		{tag: tagGPSLongitudeRef, typ: exifASCII, value: lonRef},
		{tag: tagGPSLongitude, typ: exifRATIONAL, rats: dms(lon)},
	}
}

// buildTIFF lays out a little-endian TIFF block with IFD0 and, when exif or
// gps is non-empty, an Exif or GPS sub-IFD linked from IFD0.
func buildTIFF(ifd0, exif, gps []exifEntry) []byte {
	le := binary.LittleEndian
	ifdSize := func(n int) int { return 2 + 12*n + 4 }

	var pointers [][12]byte
	pointer := func(tag uint16, off int) {
		var p [12]byte
		le.PutUint16(p[0:], tag)
		le.PutUint16(p[2:], exifLONG)
		le.PutUint32(p[4:], 1)
		le.PutUint32(p[8:], uint32(off))
		pointers = append(pointers, p)
	}

	n0 := len(ifd0)
	if len(exif) > 0 {
		n0++
	}
	if len(gps) > 0 {
		n0++
	}
	const ifd0Off = 8
	off := ifd0Off + ifdSize(n0)
	if len(exif) > 0 {
		pointer(tagExifIFDPointer, off)
		off += ifdSize(len(exif))
	}
	if len(gps) > 0 {
		pointer(tagGPSIFDPointer, off)
		off += ifdSize(len(gps))
	}
	dataOff := off

	var data []byte
	writeIFD := func(buf []byte, entries []exifEntry, extra [][12]byte) []byte {
		buf = le.AppendUint16(buf, uint16(len(entries)+len(extra)))
		for _, e := range entries {
			count, val := e.encode()
			buf = le.AppendUint16(buf, e.tag)
			buf = le.AppendUint16(buf, e.typ)
			buf = le.AppendUint32(buf, count)
			if len(val) <= 4 {
				var inline [4]byte
				copy(inline[:], val)
				buf = append(buf, inline[:]...)
				continue
			}
			buf = le.AppendUint32(buf, uint32(dataOff+len(data)))
			data = append(data, val...)
			if len(data)%2 == 1 {
				data = append(data, 0)
			}
		}
		for _, p := range extra {
			buf = append(buf, p[:]...)
		}
		return le.AppendUint32(buf, 0)
	}

	out := []byte{'I', 'I', 0x2A, 0x00}
	out = le.AppendUint32(out, ifd0Off)
	out = writeIFD(out, ifd0, pointers)
	if len(exif) > 0 {
		out = writeIFD(out, exif, nil)
	}
	if len(gps) > 0 {
		out = writeIFD(out, gps, nil)
	}
	return append(out, data...)
}

// jpegWithEXIF inserts an APP1 Exif segment right after SOI.
func jpegWithEXIF(t *testing.T, img image.Image, ifd0, exif []exifEntry) []byte {
	t.Helper()
	return jpegWithTIFF(t, img, buildTIFF(ifd0, exif, nil))
}

func jpegWithTIFF(t *testing.T, img image.Image, tiff []byte) []byte {
	t.Helper()
	plain := encodeJPEG(t, img)
	require.True(t, len(plain) > 2 && plain[0] == 0xFF && plain[1] == 0xD8)

	payload := append([]byte("Exif\x00\x00"), tiff...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	out := append([]byte{0xFF, 0xD8}, seg...)
	return append(out, plain[2:]...)
}

// fakeRuntime stands in for a cgo runtime.
type fakeRuntime struct {
	kind     BackendKind
	availErr error
	loadErr  error
	panics   bool
	backend  *fakeBackend
	loads    atomic.Int32
}

func (r *fakeRuntime) Kind() BackendKind { return r.kind }

func (r *fakeRuntime) Available() error { return r.availErr }

func (r *fakeRuntime) Accepts(path string) bool {
	if r.kind == BackendONNX {
		return hasPrimaryExt(path)
	}
	return !hasPrimaryExt(path)
}

func (r *fakeRuntime) Load(string) (Backend, error) {
	r.loads.Add(1)
	if r.panics {
		panic("native loader crashed")
	}
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.backend == nil {
		r.backend = &fakeBackend{kind: r.kind}
	}
	return r.backend, nil
}

type fakeBackend struct {
	kind     BackendKind
	out      []float32
	err      error
	predicts atomic.Int32
	closes   atomic.Int32
}

func (b *fakeBackend) Kind() BackendKind { return b.kind }

func (b *fakeBackend) Predict(t Tensor) ([]float32, error) {
	b.predicts.Add(1)
	if t.Shape != (Shape{1, ModelInputHeight, ModelInputWidth, ModelInputChannels}) || len(t.Data) != t.Shape.Size() {
		return nil, errTensorShape
	}
	if b.err != nil {
		return nil, b.err
	}
	out := make([]float32, len(b.out))
	copy(out, b.out)
	return out, nil
}

func (b *fakeBackend) Close() error {
	b.closes.Add(1)
	return nil
}

var errTensorShape = errors.New("fake backend: unexpected tensor shape")
