package baseline

import (
	"errors"
	"fmt"
	"io"
)

// BitSource yields single bits, most significant bit of each byte first.
type BitSource interface {
	NextBit() (uint8, error)
}

// BitReader unpacks bits from a byte stream.
type BitReader struct {
	next func() (byte, error)
	cur  byte
	left uint
}

func NewBitReader(r io.ByteReader) *BitReader {
	return &BitReader{next: r.ReadByte}
}

func (b *BitReader) NextBit() (uint8, error) {
	if b.left == 0 {
		c, err := b.next()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, fmt.Errorf("%w: reading bits: %w", ErrInvalidFileFormat, io.ErrUnexpectedEOF)
			}
			return 0, err
		}
		b.cur = c
		b.left = 8
	}
	b.left--
	return (b.cur >> b.left) & 1, nil
}

// ReadBits reads n bits as an unsigned big endian value.
func (b *BitReader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 16 {
		return 0, fmt.Errorf("%w: cannot read %d bits at once", ErrArgument, n)
	}
	var v uint32
	for i := 0; i < n; i++ {
		bit, err := b.NextBit()
		if err != nil {
			return 0, err
		}
		v = v<<1 | uint32(bit)
	}
	return v, nil
}

// NextNumber reads an n bit magnitude category value. A leading zero bit
// marks a negative number stored as the one's complement of its magnitude.
func (b *BitReader) NextNumber(n int) (int, error) {
	raw, err := b.ReadBits(n)
	if err != nil || n == 0 {
		return 0, err
	}
	return extend(raw, n), nil
}

func extend(raw uint32, n int) int {
	if raw>>(n-1) == 0 {
		return -int(raw ^ (1<<n - 1))
	}
	return int(raw)
}

// ScanReader reads entropy coded data. Stuffed 0xFF 0x00 pairs become a
// literal 0xFF. Any marker inside the data stops decoding.
type ScanReader struct {
	BitReader
	r     io.ByteReader
	bytes int64
}

func NewScanReader(r io.ByteReader) *ScanReader {
	s := &ScanReader{r: r}
	s.next = s.readDataByte
	return s
}

// Consumed is the number of stream bytes read so far, stuffing included.
func (s *ScanReader) Consumed() int64 {
	return s.bytes
}

func (s *ScanReader) readDataByte() (byte, error) {
	c, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.bytes++
	if c != 0xFF {
		return c, nil
	}
	m, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.bytes++
	switch {
	case m == 0x00:
		return 0xFF, nil
	case isRST(m):
		return 0, fmt.Errorf("%w: restart marker %s in scan data", ErrUnsupportedFeature, MarkerName(m))
	default:
		return 0, fmt.Errorf("%w: marker %s inside scan data", ErrUnsupportedFeature, MarkerName(m))
	}
}

// readBigEndian reads an n byte unsigned big endian integer.
func readBigEndian(r io.Reader, n int) (uint32, error) {
	if n <= 0 || n > 4 {
		return 0, fmt.Errorf("%w: big endian width %d", ErrArgument, n)
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		return 0, truncated("segment field", err)
	}
	var v uint32
	for _, c := range buf[:n] {
		v = v<<8 | uint32(c)
	}
	return v, nil
}
