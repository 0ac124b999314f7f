// Package raster holds decoded pixels in a caller described memory layout.
//
// A pixel is a run of BytesPerPixel bytes. Its components are packed
// LSB-first in Components order, each with its own bit depth, so an RGB565
// layout or a 16 bit gray layout is described the same way as 8 bit RGB.
// Component values cross the API normalized to [0,1].
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
)

var ErrLayout = errors.New("invalid raster layout")

type ComponentType int

const (
	Alpha ComponentType = iota // 0 opaque, max transparent
	Red
	Green
	Blue
	Luminance
	ChromaBlue
	ChromaRed
)

func (c ComponentType) String() string {
	switch c {
	case Alpha:
		return "A"
	case Red:
		return "R"
	case Green:
		return "G"
	case Blue:
		return "B"
	case Luminance:
		return "Y"
	case ChromaBlue:
		return "Cb"
	case ChromaRed:
		return "Cr"
	}
	return fmt.Sprintf("ComponentType(%d)", int(c))
}

type Component struct {
	Type ComponentType
	Bits int
}

func (c Component) max() uint64 {
	return 1<<uint(c.Bits) - 1
}

// PixelSink receives normalized component values for one pixel at a time.
type PixelSink interface {
	SetPixel(x, y int, values []float32)
}

type Raster struct {
	Width            int
	Height           int
	BytesPerPixel    int
	BytesPerScanline int
	Components       []Component
	Pix              []byte
}

// New allocates a zeroed raster. Pixels use the fewest bytes that hold the
// sum of the component depths, and scanlines are padded to 4 bytes.
func New(width, height int, components ...Component) (*Raster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrLayout, width, height)
	}
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrLayout)
	}
	bits := 0
	for i, c := range components {
		if c.Bits < 1 || c.Bits > 32 {
			return nil, fmt.Errorf("%w: component %d has %d bits", ErrLayout, i, c.Bits)
		}
		bits += c.Bits
	}
	if bits > 64 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrLayout, bits)
	}
	bpp := (bits + 7) / 8
	stride := (width*bpp + 3) &^ 3
	return &Raster{
		Width:            width,
		Height:           height,
		BytesPerPixel:    bpp,
		BytesPerScanline: stride,
		Components:       append([]Component(nil), components...),
		Pix:              make([]byte, stride*height),
	}, nil
}

// NewRGB is the 8 bit per channel layout the decoder produces by default.
func NewRGB(width, height int) (*Raster, error) {
	return New(width, height,
		Component{Type: Red, Bits: 8},
		Component{Type: Green, Bits: 8},
		Component{Type: Blue, Bits: 8},
	)
}

func (r *Raster) offset(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return 0, false
	}
	return y*r.BytesPerScanline + x*r.BytesPerPixel, true
}

func quantize(v float32, max uint64) uint64 {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 1:
		return max
	}
	return uint64(math.Round(float64(v) * float64(max)))
}

// SetPixel stores one value per component. Coordinates outside the raster
// are ignored and values are clamped to [0,1]. Missing trailing values are
// written as zero.
func (r *Raster) SetPixel(x, y int, values []float32) {
	off, ok := r.offset(x, y)
	if !ok {
		return
	}
	var packed uint64
	shift := 0
	for i, c := range r.Components {
		var v float32
		if i < len(values) {
			v = values[i]
		}
		packed |= quantize(v, c.max()) << uint(shift)
		shift += c.Bits
	}
	for i := 0; i < r.BytesPerPixel; i++ {
		r.Pix[off+i] = byte(packed >> uint(8*i))
	}
}

// Pixel returns normalized component values. Outside the raster every
// component reads as zero.
func (r *Raster) Pixel(x, y int) []float32 {
	values := make([]float32, len(r.Components))
	off, ok := r.offset(x, y)
	if !ok {
		return values
	}
	var packed uint64
	for i := 0; i < r.BytesPerPixel; i++ {
		packed |= uint64(r.Pix[off+i]) << uint(8*i)
	}
	shift := 0
	for i, c := range r.Components {
		raw := (packed >> uint(shift)) & c.max()
		values[i] = float32(float64(raw) / float64(c.max()))
		shift += c.Bits
	}
	return values
}

func (r *Raster) ColorModel() color.Model {
	return color.NRGBA64Model
}

func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

// At maps the component layout onto NRGBA64. Luminance alone yields gray;
// YCbCr triples are converted with the JFIF equations.
func (r *Raster) At(x, y int) color.Color {
	values := r.Pixel(x, y)
	var red, green, blue, lum, cb, cr float64
	alpha := 1.0
	hasRGB, hasY, hasChroma := false, false, false
	for i, c := range r.Components {
		v := float64(values[i])
		switch c.Type {
		case Red:
			red, hasRGB = v, true
		case Green:
			green, hasRGB = v, true
		case Blue:
			blue, hasRGB = v, true
		case Alpha:
			alpha = 1 - v
		case Luminance:
			lum, hasY = v, true
		case ChromaBlue:
			cb, hasChroma = v-0.5, true
		case ChromaRed:
			cr, hasChroma = v-0.5, true
		}
	}
	if !hasRGB && hasY {
		red, green, blue = lum, lum, lum
		if hasChroma {
			red = lum + 1.402*cr
			green = lum - 0.344136*cb - 0.714136*cr
			blue = lum + 1.772*cb
		}
	}
	return color.NRGBA64{
		R: to16(red),
		G: to16(green),
		B: to16(blue),
		A: to16(alpha),
	}
}

func to16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	}
	return uint16(math.Round(v * 0xffff))
}
