package baseline

import (
	"fmt"
	"math"
	"strings"
)

const blockSide = 8

// zigzagToNatural maps the coefficient order of the bitstream onto the
// row major position (y*8 + x) of the block.
var zigzagToNatural = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10, 17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34, 27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36, 29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46, 53, 60, 61, 54, 47, 55, 62, 63,
}

// dctBasis[k][n] = C(k) cos((2n+1)kπ/16)
var dctBasis = func() (b [blockSide][blockSide]float64) {
	for k := range blockSide {
		c := math.Sqrt(2.0 / blockSide)
		if k == 0 {
			c = math.Sqrt(1.0 / blockSide)
		}
		for n := range blockSide {
			b[k][n] = c * math.Cos(float64((2*n+1)*k)*math.Pi/(2*blockSide))
		}
	}
	return b
}()

// Block is an 8x8 unit of samples or coefficients in row major order. For
// coefficients, horizontal frequency u and vertical frequency v live at v*8 + u.
type Block [64]float64

func (b *Block) Reset() {
	*b = Block{}
}

func (b *Block) Add(o *Block) {
	for i := range b {
		b[i] += o[i]
	}
}

func (b *Block) Sub(o *Block) {
	for i := range b {
		b[i] -= o[i]
	}
}

// Scale multiplies elementwise.
func (b *Block) Scale(o *Block) {
	for i := range b {
		b[i] *= o[i]
	}
}

func (b *Block) AddScalar(v float64) {
	for i := range b {
		b[i] += v
	}
}

func (b *Block) DivScalar(v float64) {
	for i := range b {
		b[i] /= v
	}
}

func (b *Block) At(x, y int) float64 {
	return b[y*blockSide+x]
}

// SetAtZigzag stores v at zig-zag index i.
func (b *Block) SetAtZigzag(i int, v float64) error {
	if i < 0 || i >= len(zigzagToNatural) {
		return fmt.Errorf("%w: zig-zag index %d", ErrArgument, i)
	}
	b[zigzagToNatural[i]] = v
	return nil
}

// DCT replaces the samples with their orthonormal type-II transform.
func (b *Block) DCT() {
	var tmp Block
	// rows: tmp[y][u] = Σx f[y][x] basis[u][x]
	for y := range blockSide {
		for u := range blockSide {
			var s float64
			for x := range blockSide {
				s += b[y*blockSide+x] * dctBasis[u][x]
			}
			tmp[y*blockSide+u] = s
		}
	}
	// columns: F[v][u] = Σy basis[v][y] tmp[y][u]
	for v := range blockSide {
		for u := range blockSide {
			var s float64
			for y := range blockSide {
				s += dctBasis[v][y] * tmp[y*blockSide+u]
			}
			b[v*blockSide+u] = s
		}
	}
}

// InverseDCT replaces the coefficients with samples (type-III transform).
func (b *Block) InverseDCT() {
	var tmp Block
	for v := range blockSide {
		for x := range blockSide {
			var s float64
			for u := range blockSide {
				s += b[v*blockSide+u] * dctBasis[u][x]
			}
			tmp[v*blockSide+x] = s
		}
	}
	for y := range blockSide {
		for x := range blockSide {
			var s float64
			for v := range blockSide {
				s += dctBasis[v][y] * tmp[v*blockSide+x]
			}
			b[y*blockSide+x] = s
		}
	}
}

func (b *Block) String() string {
	var sb strings.Builder
	for y := range blockSide {
		for x := range blockSide {
			if x > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%8.2f", b[y*blockSide+x])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
