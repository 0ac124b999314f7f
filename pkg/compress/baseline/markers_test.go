package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkerName(t *testing.T) {
	tests := map[byte]string{
		0xC0: "SOF0",
		0xC2: "SOF2",
		0xC3: "SOF3",
		0xCF: "SOF15",
		0xC4: "DHT",
		0xCC: "DAC",
		0xD3: "RST3",
		0xD8: "SOI",
		0xD9: "EOI",
		0xDA: "SOS",
		0xDB: "DQT",
		0xDD: "DRI",
		0xE0: "APP0",
		0xE1: "APP1",
		0xFE: "COM",
		0x01: "0x01",
	}
	for m, want := range tests {
		assert.Equal(t, want, MarkerName(m))
	}
}

func TestIsSOF(t *testing.T) {
	for m := 0xC0; m <= 0xCF; m++ {
		want := m != 0xC4 && m != 0xC8 && m != 0xCC
		assert.Equal(t, want, isSOF(byte(m)), "marker %X", m)
	}
	assert.False(t, isSOF(0xDA))
}
