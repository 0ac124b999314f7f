package baseline

import (
	"fmt"
)

// JFIF YCbCr to RGB
const (
	crToR = 1.402
	cbToG = 0.344136
	crToG = 0.714136
	cbToB = 1.772
)

// scanDecoder turns the entropy coded data of a single interleaved scan
// into pixels, one MCU at a time.
type scanDecoder struct {
	frame *FrameInfo
	scan  *ScanInfo
	src   *ScanReader

	pred  []int       // DC predictor per scan channel
	mcu   [][]float64 // samples of the current MCU per frame channel
	block Block
	pixel []float32
}

func newScanDecoder(frame *FrameInfo, scan *ScanInfo, src *ScanReader) *scanDecoder {
	sd := &scanDecoder{
		frame: frame,
		scan:  scan,
		src:   src,
		pred:  make([]int, len(scan.Components)),
		mcu:   make([][]float64, len(frame.Components)),
		pixel: make([]float32, 3),
	}
	for i, c := range frame.Components {
		sd.mcu[i] = make([]float64, blockSide*c.H*blockSide*c.V)
	}
	return sd
}

func (sd *scanDecoder) decode(sink PixelSink) error {
	f := sd.frame
	mcuW, mcuH := f.MCUWidth(), f.MCUHeight()
	for y := 0; y < f.Height; y += mcuH {
		for x := 0; x < f.Width; x += mcuW {
			if err := sd.decodeMCU(); err != nil {
				return fmt.Errorf("mcu at (%d,%d): %w", x, y, err)
			}
			sd.emit(sink, x, y)
		}
	}
	return nil
}

// decodeMCU reads H x V blocks for every channel, in scan order and then
// row major within the channel.
func (sd *scanDecoder) decodeMCU() error {
	for si := range sd.scan.Components {
		sc := &sd.scan.Components[si]
		fc := &sd.frame.Components[sc.frame]
		stride := blockSide * fc.H
		for by := range fc.V {
			for bx := range fc.H {
				if err := sd.decodeBlock(si, sc, fc.Table); err != nil {
					return fmt.Errorf("channel %s block %d,%d: %w", sc.ID, bx, by, err)
				}
				plane := sd.mcu[sc.frame]
				for y := range blockSide {
					row := (by*blockSide+y)*stride + bx*blockSide
					copy(plane[row:row+blockSide], sd.block[y*blockSide:(y+1)*blockSide])
				}
			}
		}
	}
	return nil
}

func (sd *scanDecoder) decodeBlock(si int, sc *ScanComponent, q *QuantizationTable) error {
	b := &sd.block
	b.Reset()

	size, err := sc.DC.NextSymbol(sd.src)
	if err != nil {
		return err
	}
	if size > 11 {
		return fmt.Errorf("%w: DC magnitude category %d", ErrInvalidFileFormat, size)
	}
	diff, err := sd.src.NextNumber(int(size))
	if err != nil {
		return err
	}
	sd.pred[si] += diff
	b[0] = float64(sd.pred[si])

	for k := 1; k < 64; {
		rs, err := sc.AC.NextSymbol(sd.src)
		if err != nil {
			return err
		}
		switch rs {
		case 0x00: // EOB
			k = 64
			continue
		case 0xF0: // ZRL, may end exactly on the last coefficient
			k += 16
			if k > 64 {
				return fmt.Errorf("%w: zero run past end of block", ErrInvalidFileFormat)
			}
			continue
		}
		run, size := int(rs>>4), int(rs&0x0F)
		if size == 0 || size > 10 {
			return fmt.Errorf("%w: AC symbol 0x%02X", ErrInvalidFileFormat, rs)
		}
		k += run
		if k > 63 {
			return fmt.Errorf("%w: AC coefficient index %d", ErrInvalidFileFormat, k)
		}
		v, err := sd.src.NextNumber(size)
		if err != nil {
			return err
		}
		b[zigzagToNatural[k]] = float64(v)
		k++
	}

	q.MultiplyBlock(b)
	b.InverseDCT()
	return nil
}

// emit upsamples the MCU by nearest neighbour and converts each pixel to RGB.
func (sd *scanDecoder) emit(sink PixelSink, x0, y0 int) {
	f := sd.frame
	lum, cb, cr := f.Components[0], f.Components[1], f.Components[2]
	for py := range f.MCUHeight() {
		y := y0 + py
		if y >= f.Height {
			break
		}
		for px := range f.MCUWidth() {
			x := x0 + px
			if x >= f.Width {
				break
			}
			yv := sd.sample(0, lum, px, py) + 128
			cbv := sd.sample(1, cb, px, py)
			crv := sd.sample(2, cr, px, py)
			sd.pixel[0] = float32((yv + crToR*crv) / 255)
			sd.pixel[1] = float32((yv - cbToG*cbv - crToG*crv) / 255)
			sd.pixel[2] = float32((yv + cbToB*cbv) / 255)
			sink.SetPixel(x, y, sd.pixel)
		}
	}
}

func (sd *scanDecoder) sample(i int, c FrameComponent, px, py int) float64 {
	sx := px * c.H / sd.frame.HMax
	sy := py * c.V / sd.frame.VMax
	return sd.mcu[i][sy*blockSide*c.H+sx]
}
