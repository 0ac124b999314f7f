package baseline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acStep is one AC symbol followed by its magnitude bits.
type acStep struct {
	symbol byte
	bits   uint32
	size   int
}

const (
	acEOB    = 0x00
	acZRL    = 0xF0
	acRun0   = 0x01
	acRun14  = 0xE1
	acRun15  = 0xF1
	dcZeroed = 0x00
)

// blockDecoder builds a single channel decoder reading a block whose DC
// difference is zero and whose AC symbols are steps.
func blockDecoder(t *testing.T, steps ...acStep) (*scanDecoder, *ScanComponent) {
	t.Helper()
	var dcCounts, acCounts [16]uint8
	dcCounts[0] = 1
	acCounts[2] = 5
	dc, err := NewHuffmanTable(dcCounts, []byte{dcZeroed})
	require.NoError(t, err)
	ac, err := NewHuffmanTable(acCounts, []byte{acEOB, acZRL, acRun0, acRun15, acRun14})
	require.NoError(t, err)

	var buf bytes.Buffer
	bw := newBitWriter(&buf)
	dcCodes, acCodes := dc.encoding(), ac.encoding()
	bw.writeCode(dcCodes[dcZeroed])
	for _, s := range steps {
		bw.writeCode(acCodes[s.symbol])
		bw.writeBits(s.bits, s.size)
	}
	require.NoError(t, bw.flush())

	frame := &FrameInfo{
		Precision:  8,
		Width:      8,
		Height:     8,
		Components: []FrameComponent{{ID: ChannelY, H: 1, V: 1}},
		HMax:       1,
		VMax:       1,
	}
	scan := &ScanInfo{Components: []ScanComponent{{ID: ChannelY, DC: dc, AC: ac}}, Se: 63}
	sd := newScanDecoder(frame, scan, NewScanReader(bytes.NewReader(buf.Bytes())))
	return sd, &scan.Components[0]
}

func unitQuant() *QuantizationTable {
	var zz [64]byte
	for i := range zz {
		zz[i] = 1
	}
	return NewQuantizationTable(zz)
}

func TestScanDecoder_ACRuns(t *testing.T) {
	tests := []struct {
		name  string
		steps []acStep
		want  map[int]float64 // zig-zag index -> coefficient
	}{
		{
			name:  "zero run then value",
			steps: []acStep{{symbol: acZRL}, {acRun0, 1, 1}, {symbol: acEOB}},
			want:  map[int]float64{17: 1},
		},
		{
			name:  "zero run then run of fifteen",
			steps: []acStep{{symbol: acZRL}, {acRun15, 0, 1}, {symbol: acEOB}},
			want:  map[int]float64{32: -1},
		},
		{
			name:  "value at the last position",
			steps: []acStep{{symbol: acZRL}, {symbol: acZRL}, {symbol: acZRL}, {acRun14, 1, 1}},
			want:  map[int]float64{63: 1},
		},
		{
			name:  "zero run ending on the last position closes the block",
			steps: []acStep{{symbol: acZRL}, {symbol: acZRL}, {acRun14, 0, 1}, {symbol: acZRL}},
			want:  map[int]float64{47: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd, sc := blockDecoder(t, tt.steps...)
			require.NoError(t, sd.decodeBlock(0, sc, unitQuant()))

			b := sd.block
			b.DCT()
			for i, n := range zigzagToNatural {
				assert.InDelta(t, tt.want[i], b[n], 1e-9, "zig-zag %d", i)
			}
		})
	}
}

func TestScanDecoder_ACOverflow(t *testing.T) {
	tests := []struct {
		name  string
		steps []acStep
	}{
		{"run past the last position", []acStep{{symbol: acZRL}, {symbol: acZRL}, {symbol: acZRL}, {acRun15, 1, 1}}},
		{"zero run past the end", []acStep{{symbol: acZRL}, {symbol: acZRL}, {symbol: acZRL}, {symbol: acZRL}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sd, sc := blockDecoder(t, tt.steps...)
			err := sd.decodeBlock(0, sc, unitQuant())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidFileFormat)
		})
	}
}
