package baseline

import (
	"fmt"
	"io"
)

// HuffmanTable is a canonical code given as a count of codes per length
// (1 to 16 bits) and the symbols in code order.
//
// Codes are compared left aligned in a 16 bit space: every code of length L
// falls in [start[L], start[L+1]).
type HuffmanTable struct {
	counts  [16]uint8
	symbols []byte
	start   [18]uint32
	offset  [17]int
}

// NewHuffmanTable validates the code lengths against the Kraft inequality
// and the symbol count.
func NewHuffmanTable(counts [16]uint8, symbols []byte) (*HuffmanTable, error) {
	h := &HuffmanTable{counts: counts}
	total := 0
	for l := 1; l <= 16; l++ {
		n := int(counts[l-1])
		h.offset[l] = total
		h.start[l+1] = h.start[l] + uint32(n)<<(16-l)
		total += n
	}
	if h.start[17] > 1<<16 {
		return nil, fmt.Errorf("%w: huffman code lengths overflow the code space", ErrInvalidFileFormat)
	}
	if total != len(symbols) {
		return nil, fmt.Errorf("%w: huffman table declares %d codes for %d symbols", ErrInvalidFileFormat, total, len(symbols))
	}
	h.symbols = append([]byte(nil), symbols...)
	return h, nil
}

// ReadHuffmanTable reads the 16 code counts followed by the symbols. It
// returns the bytes consumed.
func ReadHuffmanTable(r io.Reader) (*HuffmanTable, int, error) {
	var counts [16]uint8
	if _, err := io.ReadFull(r, counts[:]); err != nil {
		return nil, 0, truncated("huffman counts", err)
	}
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	symbols := make([]byte, total)
	if _, err := io.ReadFull(r, symbols); err != nil {
		return nil, 0, truncated("huffman symbols", err)
	}
	h, err := NewHuffmanTable(counts, symbols)
	if err != nil {
		return nil, 0, err
	}
	return h, 16 + total, nil
}

// NextSymbol consumes one code from src.
func (h *HuffmanTable) NextSymbol(src BitSource) (byte, error) {
	var code uint32
	for l := 1; l <= 16; l++ {
		bit, err := src.NextBit()
		if err != nil {
			return 0, err
		}
		code |= uint32(bit) << (16 - l)
		if code >= h.start[l] && code < h.start[l+1] {
			return h.symbols[h.offset[l]+int((code-h.start[l])>>(16-l))], nil
		}
	}
	return 0, fmt.Errorf("%w: huffman symbol not found", ErrInvalidFileFormat)
}

func (h *HuffmanTable) Counts() [16]uint8 {
	return h.counts
}

func (h *HuffmanTable) Symbols() []byte {
	return h.symbols
}

// huffmanCode is the right aligned code for one symbol.
type huffmanCode struct {
	code uint16
	size uint8
}

// encoding inverts the table for the writer. Symbols absent from the
// table have size 0.
func (h *HuffmanTable) encoding() [256]huffmanCode {
	var lut [256]huffmanCode
	for l := 1; l <= 16; l++ {
		first := h.start[l] >> (16 - l)
		for i := 0; i < int(h.counts[l-1]); i++ {
			sym := h.symbols[h.offset[l]+i]
			lut[sym] = huffmanCode{code: uint16(first) + uint16(i), size: uint8(l)}
		}
	}
	return lut
}
