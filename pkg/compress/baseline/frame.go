package baseline

import "fmt"

// ChannelType is the component identifier declared in SOF and SOS.
type ChannelType uint8

const (
	ChannelY  ChannelType = 1
	ChannelCb ChannelType = 2
	ChannelCr ChannelType = 3
)

func (c ChannelType) String() string {
	switch c {
	case ChannelY:
		return "Y"
	case ChannelCb:
		return "Cb"
	case ChannelCr:
		return "Cr"
	}
	return fmt.Sprintf("C%d", uint8(c))
}

// FrameComponent is one channel of SOF0. Table is bound when the scan starts.
type FrameComponent struct {
	ID      ChannelType
	H       int
	V       int
	TableID int
	Table   *QuantizationTable `json:"-"`
}

type FrameInfo struct {
	Precision  int
	Width      int
	Height     int
	Components []FrameComponent
	HMax       int
	VMax       int
}

// MCUWidth is the pixel width covered by one minimum coded unit.
func (f *FrameInfo) MCUWidth() int {
	return blockSide * f.HMax
}

func (f *FrameInfo) MCUHeight() int {
	return blockSide * f.VMax
}

// MCUs is the number of units across and down the image.
func (f *FrameInfo) MCUs() (int, int) {
	w, h := f.MCUWidth(), f.MCUHeight()
	return (f.Width + w - 1) / w, (f.Height + h - 1) / h
}

func (f *FrameInfo) component(id ChannelType) (int, bool) {
	for i, c := range f.Components {
		if c.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Subsampling renders the factors the way encoders name them, e.g. "4:2:0".
func (f *FrameInfo) Subsampling() string {
	if len(f.Components) != 3 {
		return fmt.Sprintf("%d channel", len(f.Components))
	}
	c := f.Components[1]
	if f.Components[0].H != f.HMax || f.Components[0].V != f.VMax ||
		f.Components[2].H != c.H || f.Components[2].V != c.V {
		return "custom"
	}
	switch {
	case c.H == f.HMax && c.V == f.VMax:
		return "4:4:4"
	case 2*c.H == f.HMax && c.V == f.VMax:
		return "4:2:2"
	case 2*c.H == f.HMax && 2*c.V == f.VMax:
		return "4:2:0"
	case 4*c.H == f.HMax && c.V == f.VMax:
		return "4:1:1"
	case c.H == f.HMax && 2*c.V == f.VMax:
		return "4:4:0"
	}
	return "custom"
}

// ScanComponent binds a frame channel to its entropy tables.
type ScanComponent struct {
	ID      ChannelType
	DCTable int
	ACTable int
	DC      *HuffmanTable `json:"-"`
	AC      *HuffmanTable `json:"-"`
	frame   int
}

type ScanInfo struct {
	Components []ScanComponent
	// spectral selection and successive approximation, fixed for baseline
	Ss, Se, Ah, Al int
}

func frameSegmentSize(channels int) int {
	return 8 + 3*channels
}

func scanSegmentSize(channels int) int {
	return 6 + 2*channels
}
