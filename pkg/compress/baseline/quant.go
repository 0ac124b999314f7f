package baseline

import (
	"fmt"
	"strings"
)

// zigzagLevelStart is the zig-zag index of the first cell on each
// anti-diagonal x+y, shifted for the lower half so that adding x (even
// diagonals) or y (odd diagonals) lands on the cell.
var zigzagLevelStart = [15]int{0, 1, 3, 6, 10, 15, 21, 28, 35, 41, 46, 50, 53, 55, 56}

func zigzagPosition(x, y int) int {
	level := x + y
	if level&1 == 1 {
		return zigzagLevelStart[level] + y
	}
	return zigzagLevelStart[level] + x
}

// QuantizationTable holds the 64 step sizes in row major order.
type QuantizationTable [64]uint16

// NewQuantizationTable reorders the zig-zag ordered DQT payload.
func NewQuantizationTable(zigzag [64]byte) *QuantizationTable {
	var q QuantizationTable
	for y := range blockSide {
		for x := range blockSide {
			q[y*blockSide+x] = uint16(zigzag[zigzagPosition(x, y)])
		}
	}
	return &q
}

// Zigzag is the inverse of NewQuantizationTable, used when writing DQT.
func (q *QuantizationTable) Zigzag() [64]byte {
	var out [64]byte
	for i, n := range zigzagToNatural {
		out[i] = byte(q[n])
	}
	return out
}

// MultiplyBlock dequantizes coefficients in place.
func (q *QuantizationTable) MultiplyBlock(b *Block) {
	for i := range b {
		b[i] *= float64(q[i])
	}
}

func (q *QuantizationTable) String() string {
	var sb strings.Builder
	for y := range blockSide {
		for x := range blockSide {
			if x > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%3d", q[y*blockSide+x])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
