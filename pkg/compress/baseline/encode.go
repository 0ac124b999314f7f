package baseline

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"math"
	"math/bits"
	"strings"
)

// Subsampling selects the chroma resolution written by the encoder.
type Subsampling int

const (
	Subsample444 Subsampling = iota
	Subsample422
	Subsample420
)

func (s Subsampling) String() string {
	switch s {
	case Subsample422:
		return "4:2:2"
	case Subsample420:
		return "4:2:0"
	}
	return "4:4:4"
}

// lumaFactors are the H and V sampling factors of the Y channel; chroma
// is always 1x1.
func (s Subsampling) lumaFactors() (int, int) {
	switch s {
	case Subsample422:
		return 2, 1
	case Subsample420:
		return 2, 2
	}
	return 1, 1
}

// ParseSubsampling accepts "444", "4:2:2" and similar spellings.
func ParseSubsampling(v string) (Subsampling, error) {
	switch strings.ReplaceAll(v, ":", "") {
	case "444", "":
		return Subsample444, nil
	case "422":
		return Subsample422, nil
	case "420":
		return Subsample420, nil
	}
	return 0, fmt.Errorf("%w: subsampling %q", ErrArgument, v)
}

// Encoder writes baseline JPEG with the standard Annex K tables.
type Encoder struct {
	// Quality 1-100, default 75
	Quality     int
	Subsampling Subsampling
	// Comment is written as a COM segment when not empty
	Comment string
}

const defaultQuality = 75

// Encode writes img to w as a baseline (SOF0) JPEG.
func Encode(w io.Writer, img image.Image, opts *Encoder) error {
	enc := &encoder{
		w:       bufio.NewWriter(w),
		quality: defaultQuality,
	}
	if opts != nil {
		if opts.Quality >= 1 && opts.Quality <= 100 {
			enc.quality = opts.Quality
		}
		enc.sub = opts.Subsampling
		enc.comment = opts.Comment
	}
	return enc.encode(img)
}

type encoder struct {
	w       *bufio.Writer
	err     error
	quality int
	sub     Subsampling
	comment string

	width  int
	height int
	planes [3][]float64 // Y-128, Cb, Cr
	quant  [2]*QuantizationTable
	codes  [4][256]huffmanCode
}

func (e *encoder) encode(img image.Image) error {
	b := img.Bounds()
	e.width, e.height = b.Dx(), b.Dy()
	if e.width <= 0 || e.height <= 0 || e.width > 0xFFFF || e.height > 0xFFFF {
		return fmt.Errorf("%w: cannot encode %dx%d image", ErrArgument, e.width, e.height)
	}
	for i := range e.quant {
		e.quant[i] = NewQuantizationTable(scaledQuant(standardQuant[i], e.quality))
	}
	for i, s := range standardHuffman {
		h, err := NewHuffmanTable(s.counts, s.symbols)
		if err != nil {
			return err
		}
		e.codes[i] = h.encoding()
	}
	e.convert(img)

	e.writeMarker(MarkerSOI)
	e.writeAPP0()
	if e.comment != "" {
		e.writeSegment(MarkerCOM, []byte(e.comment))
	}
	e.writeDQT()
	e.writeSOF0()
	e.writeDHT()
	e.writeSOS()
	e.encodeScan()
	e.writeMarker(MarkerEOI)
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// convert splits img into level shifted YCbCr planes.
func (e *encoder) convert(img image.Image) {
	b := img.Bounds()
	n := e.width * e.height
	for i := range e.planes {
		e.planes[i] = make([]float64, n)
	}
	for y := range e.height {
		for x := range e.width {
			r32, g32, b32, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r, g, bl := float64(r32>>8), float64(g32>>8), float64(b32>>8)
			i := y*e.width + x
			e.planes[0][i] = 0.299*r + 0.587*g + 0.114*bl - 128
			e.planes[1][i] = -0.168736*r - 0.331264*g + 0.5*bl
			e.planes[2][i] = 0.5*r - 0.418688*g - 0.081312*bl
		}
	}
}

// sample averages the w x h pixel area at (x, y) of a plane, replicating
// the last row and column past the image edge.
func (e *encoder) sample(plane []float64, x, y, w, h int) float64 {
	var sum float64
	for dy := range h {
		sy := min(y+dy, e.height-1)
		for dx := range w {
			sx := min(x+dx, e.width-1)
			sum += plane[sy*e.width+sx]
		}
	}
	return sum / float64(w*h)
}

func (e *encoder) writeByte(c byte) {
	if e.err != nil {
		return
	}
	e.err = e.w.WriteByte(c)
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) writeMarker(marker byte) {
	e.write([]byte{0xFF, marker})
}

func (e *encoder) writeSegment(marker byte, payload []byte) {
	if len(payload)+2 > 0xFFFF {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %s segment of %d bytes", ErrArgument, MarkerName(marker), len(payload))
		}
		return
	}
	e.writeMarker(marker)
	n := len(payload) + 2
	e.write([]byte{byte(n >> 8), byte(n)})
	e.write(payload)
}

func (e *encoder) writeAPP0() {
	e.writeSegment(MarkerAPP0, appendJFIF(nil, JFIF{Major: 1, Minor: 1, XDensity: 1, YDensity: 1}))
}

// writeDQT emits both tables in a single segment.
func (e *encoder) writeDQT() {
	payload := make([]byte, 0, 2*65)
	for i, q := range e.quant {
		zz := q.Zigzag()
		payload = append(payload, byte(i))
		payload = append(payload, zz[:]...)
	}
	e.writeSegment(MarkerDQT, payload)
}

func (e *encoder) writeSOF0() {
	h, v := e.sub.lumaFactors()
	e.writeSegment(MarkerSOF0, []byte{
		8,
		byte(e.height >> 8), byte(e.height),
		byte(e.width >> 8), byte(e.width),
		3,
		byte(ChannelY), byte(h<<4 | v), 0,
		byte(ChannelCb), 0x11, 1,
		byte(ChannelCr), 0x11, 1,
	})
}

// writeDHT emits one segment per table.
func (e *encoder) writeDHT() {
	refs := [4]byte{0x00, 0x10, 0x01, 0x11}
	for i, s := range standardHuffman {
		payload := make([]byte, 0, 17+len(s.symbols))
		payload = append(payload, refs[i])
		payload = append(payload, s.counts[:]...)
		payload = append(payload, s.symbols...)
		e.writeSegment(MarkerDHT, payload)
	}
}

func (e *encoder) writeSOS() {
	e.writeSegment(MarkerSOS, []byte{
		3,
		byte(ChannelY), 0x00,
		byte(ChannelCb), 0x11,
		byte(ChannelCr), 0x11,
		0, 63, 0,
	})
}

func (e *encoder) encodeScan() {
	bw := newBitWriter(e.w)
	hMax, vMax := e.sub.lumaFactors()
	mcuW, mcuH := blockSide*hMax, blockSide*vMax
	var pred [3]int
	var b Block
	for my := 0; my < e.height; my += mcuH {
		for mx := 0; mx < e.width; mx += mcuW {
			for by := range vMax {
				for bx := range hMax {
					for y := range blockSide {
						for x := range blockSide {
							b[y*blockSide+x] = e.sample(e.planes[0], mx+bx*blockSide+x, my+by*blockSide+y, 1, 1)
						}
					}
					e.writeBlock(bw, &b, e.quant[0], &pred[0], &e.codes[tableLuminanceDC], &e.codes[tableLuminanceAC])
				}
			}
			for c := 1; c <= 2; c++ {
				for y := range blockSide {
					for x := range blockSide {
						b[y*blockSide+x] = e.sample(e.planes[c], mx+x*hMax, my+y*vMax, hMax, vMax)
					}
				}
				e.writeBlock(bw, &b, e.quant[1], &pred[c], &e.codes[tableChrominanceDC], &e.codes[tableChrominanceAC])
			}
		}
	}
	bw.flush()
	if e.err == nil {
		e.err = bw.err
	}
}

// magnitude returns the category and the extra bits of v.
func magnitude(v int) (int, uint32) {
	a := v
	if v < 0 {
		a = -v
		v--
	}
	n := bits.Len(uint(a))
	return n, uint32(v) & (1<<n - 1)
}

func (e *encoder) writeBlock(bw *bitWriter, b *Block, q *QuantizationTable, pred *int, dc, ac *[256]huffmanCode) {
	b.DCT()
	var zz [64]int
	for i, n := range zigzagToNatural {
		zz[i] = int(math.Round(b[n] / float64(q[n])))
	}
	zz[0] = min(max(zz[0], -1024), 1023)

	size, extra := magnitude(zz[0] - *pred)
	*pred = zz[0]
	bw.writeCode(dc[size])
	bw.writeBits(extra, size)

	run := 0
	for k := 1; k < 64; k++ {
		v := min(max(zz[k], -1023), 1023)
		if v == 0 {
			run++
			continue
		}
		for run > 15 {
			bw.writeCode(ac[0xF0])
			run -= 16
		}
		size, extra := magnitude(v)
		bw.writeCode(ac[run<<4|size])
		bw.writeBits(extra, size)
		run = 0
	}
	if run > 0 {
		bw.writeCode(ac[0x00])
	}
}

// bitWriter packs codes MSB first and stuffs a zero after every 0xFF.
type bitWriter struct {
	w    io.ByteWriter
	buf  uint32
	bits int
	err  error
}

func newBitWriter(w io.ByteWriter) *bitWriter {
	return &bitWriter{w: w}
}

func (b *bitWriter) writeByte(c byte) {
	if b.err == nil {
		b.err = b.w.WriteByte(c)
	}
}

func (b *bitWriter) writeBits(val uint32, n int) {
	if n == 0 {
		return
	}
	b.buf = b.buf<<n | val&(1<<n-1)
	b.bits += n
	for b.bits >= 8 {
		b.bits -= 8
		c := byte(b.buf >> b.bits)
		b.writeByte(c)
		if c == 0xFF {
			b.writeByte(0x00)
		}
	}
}

func (b *bitWriter) writeCode(c huffmanCode) {
	b.writeBits(uint32(c.code), int(c.size))
}

// flush pads the last byte with 1 bits.
func (b *bitWriter) flush() error {
	if b.bits > 0 {
		n := 8 - b.bits
		b.writeBits(1<<n-1, n)
	}
	return b.err
}
