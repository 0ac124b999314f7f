package baseline

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var jfifIdent = []byte("JFIF\x00")

// JFIF is the APP0 header most encoders write ahead of the frame.
type JFIF struct {
	Major       uint8
	Minor       uint8
	Units       uint8 // 0 aspect ratio only, 1 dots per inch, 2 dots per cm
	XDensity    uint16
	YDensity    uint16
	ThumbWidth  uint8
	ThumbHeight uint8
}

func (j JFIF) Version() string {
	return fmt.Sprintf("%d.%02d", j.Major, j.Minor)
}

// parseJFIF reads an APP0 payload. Other APP0 formats (JFXX) report false.
func parseJFIF(payload []byte) (*JFIF, bool) {
	if len(payload) < 14 || !bytes.HasPrefix(payload, jfifIdent) {
		return nil, false
	}
	p := payload[len(jfifIdent):]
	return &JFIF{
		Major:       p[0],
		Minor:       p[1],
		Units:       p[2],
		XDensity:    binary.BigEndian.Uint16(p[3:5]),
		YDensity:    binary.BigEndian.Uint16(p[5:7]),
		ThumbWidth:  p[7],
		ThumbHeight: p[8],
	}, true
}

// appendJFIF is the inverse, used by the encoder.
func appendJFIF(dst []byte, j JFIF) []byte {
	dst = append(dst, jfifIdent...)
	dst = append(dst, j.Major, j.Minor, j.Units)
	dst = binary.BigEndian.AppendUint16(dst, j.XDensity)
	dst = binary.BigEndian.AppendUint16(dst, j.YDensity)
	return append(dst, 0, 0)
}
