package baseline

import "fmt"

// JPEG marker codes (second byte after 0xFF)
const (
	MarkerSOF0  = 0xC0 // baseline DCT
	MarkerSOF1  = 0xC1 // extended sequential
	MarkerSOF2  = 0xC2 // progressive
	MarkerSOF3  = 0xC3 // lossless
	MarkerDHT   = 0xC4
	MarkerSOF5  = 0xC5
	MarkerSOF6  = 0xC6
	MarkerSOF7  = 0xC7
	MarkerJPG   = 0xC8
	MarkerSOF9  = 0xC9
	MarkerSOF10 = 0xCA
	MarkerSOF11 = 0xCB
	MarkerDAC   = 0xCC
	MarkerSOF13 = 0xCD
	MarkerSOF14 = 0xCE
	MarkerSOF15 = 0xCF
	MarkerRST0  = 0xD0
	MarkerRST7  = 0xD7
	MarkerSOI   = 0xD8
	MarkerEOI   = 0xD9
	MarkerSOS   = 0xDA
	MarkerDQT   = 0xDB
	MarkerDNL   = 0xDC
	MarkerDRI   = 0xDD
	MarkerAPP0  = 0xE0
	MarkerAPP15 = 0xEF
	MarkerCOM   = 0xFE
)

func isRST(m byte) bool {
	return m >= MarkerRST0 && m <= MarkerRST7
}

// isSOF matches every start of frame marker. C4, C8 and CC share the range
// but are DHT, JPG and DAC.
func isSOF(m byte) bool {
	return m >= MarkerSOF0 && m <= MarkerSOF15 &&
		m != MarkerDHT && m != MarkerJPG && m != MarkerDAC
}

// MarkerName renders a marker byte for logs and the analyze dump.
func MarkerName(m byte) string {
	switch {
	case m == MarkerSOF0:
		return "SOF0"
	case m == MarkerSOF2:
		return "SOF2"
	case isSOF(m):
		return fmt.Sprintf("SOF%d", m-MarkerSOF0)
	case m == MarkerDHT:
		return "DHT"
	case m == MarkerJPG:
		return "JPG"
	case m == MarkerDAC:
		return "DAC"
	case isRST(m):
		return fmt.Sprintf("RST%d", m-MarkerRST0)
	case m == MarkerSOI:
		return "SOI"
	case m == MarkerEOI:
		return "EOI"
	case m == MarkerSOS:
		return "SOS"
	case m == MarkerDQT:
		return "DQT"
	case m == MarkerDNL:
		return "DNL"
	case m == MarkerDRI:
		return "DRI"
	case m >= MarkerAPP0 && m <= MarkerAPP15:
		return fmt.Sprintf("APP%d", m-MarkerAPP0)
	case m == MarkerCOM:
		return "COM"
	}
	return fmt.Sprintf("0x%02X", m)
}
