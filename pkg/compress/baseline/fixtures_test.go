package baseline

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/jpfielding/jpegdec.go/pkg/raster"
	"github.com/stretchr/testify/require"
)

var (
	black  = color.RGBA{0, 0, 0, 255}
	white  = color.RGBA{255, 255, 255, 255}
	red    = color.RGBA{255, 0, 0, 255}
	green  = color.RGBA{0, 255, 0, 255}
	blue   = color.RGBA{0, 0, 255, 255}
	yellow = color.RGBA{255, 255, 0, 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// tiles paints 8x8 cells, colors[row][col].
func tiles(colors [][]color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8*len(colors[0]), 8*len(colors)))
	for y := range img.Bounds().Dy() {
		for x := range img.Bounds().Dx() {
			img.Set(x, y, colors[y/8][x/8])
		}
	}
	return img
}

func encodeFixture(t *testing.T, img image.Image, opts *Encoder) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, opts))
	return buf.Bytes()
}

// findSegment walks the header segments and returns the offset of the
// 0xFF prefix of the first segment with the given marker.
func findSegment(t *testing.T, data []byte, marker byte) int {
	t.Helper()
	i := 2
	for i+4 <= len(data) {
		require.Equal(t, byte(0xFF), data[i], "offset %d", i)
		m := data[i+1]
		if m == marker {
			return i
		}
		if m == MarkerSOS {
			break
		}
		i += 2 + (int(data[i+2])<<8 | int(data[i+3]))
	}
	t.Fatalf("marker %s not found", MarkerName(marker))
	return -1
}

// scanStart is the offset of the first entropy coded byte.
func scanStart(t *testing.T, data []byte) int {
	t.Helper()
	i := findSegment(t, data, MarkerSOS)
	return i + 2 + (int(data[i+2])<<8 | int(data[i+3]))
}

func insert(data []byte, at int, extra ...byte) []byte {
	out := make([]byte, 0, len(data)+len(extra))
	out = append(out, data[:at]...)
	out = append(out, extra...)
	return append(out, data[at:]...)
}

func clone(data []byte) []byte {
	return append([]byte(nil), data...)
}

// requireRegion checks that every pixel of the rectangle is on the expected
// side of the 0.2/0.8 thresholds per channel.
func requireRegion(t *testing.T, img *raster.Raster, r image.Rectangle, want color.RGBA) {
	t.Helper()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			px := img.Pixel(x, y)
			for c, on := range []bool{want.R > 127, want.G > 127, want.B > 127} {
				if on {
					require.Greater(t, px[c], float32(0.8), "pixel (%d,%d) channel %d", x, y, c)
				} else {
					require.Less(t, px[c], float32(0.2), "pixel (%d,%d) channel %d", x, y, c)
				}
			}
		}
	}
}
