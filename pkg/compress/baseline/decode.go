package baseline

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/jpfielding/jpegdec.go/pkg/raster"
)

// PixelSink receives every decoded pixel as normalized R, G, B values.
type PixelSink = raster.PixelSink

// Segment records one marker as it was found in the stream.
type Segment struct {
	Marker byte
	Offset int64 // position of the 0xFF prefix
	Length int   // declared length, 0 for standalone markers
}

func (s Segment) String() string {
	return fmt.Sprintf("%-5s @%d len=%d", MarkerName(s.Marker), s.Offset, s.Length)
}

// Info is everything the headers say about an image.
type Info struct {
	Frame     FrameInfo
	Scan      ScanInfo
	JFIF      *JFIF                      `json:",omitempty"`
	Comments  []string                   `json:",omitempty"`
	Quant     map[int]*QuantizationTable `json:"-"`
	DC        map[int]*HuffmanTable      `json:"-"`
	AC        map[int]*HuffmanTable      `json:"-"`
	Segments  []Segment                  `json:"-"`
	ScanBytes int64                      `json:"-"`
}

// Decoder holds the state of a single decode. It is not safe for
// concurrent use, but independent decoders share nothing.
type Decoder struct {
	r   *bufio.Reader
	pos int64

	quant [16]*QuantizationTable
	dc    [16]*HuffmanTable
	ac    [16]*HuffmanTable

	frame     *FrameInfo
	scan      *ScanInfo
	jfif      *JFIF
	comments  []string
	segments  []Segment
	scanBytes int64
}

func NewDecoder(r io.Reader) *Decoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Decoder{r: br}
}

// Decode reads a baseline JPEG into an 8 bit RGB raster.
func Decode(r io.Reader) (*raster.Raster, error) {
	return NewDecoder(r).Decode()
}

// DecodeInto decodes into a caller supplied sink, built once the frame
// header is known.
func DecodeInto(r io.Reader, newSink func(FrameInfo) (PixelSink, error)) error {
	return NewDecoder(r).DecodeInto(newSink)
}

// DecodeConfig parses the headers up to and including SOS without
// decoding the scan.
func DecodeConfig(r io.Reader) (Info, error) {
	d := NewDecoder(r)
	if err := d.readHeaders(); err != nil {
		return d.Info(), err
	}
	return d.Info(), nil
}

func (d *Decoder) Decode() (*raster.Raster, error) {
	var img *raster.Raster
	err := d.DecodeInto(func(f FrameInfo) (PixelSink, error) {
		var err error
		img, err = raster.NewRGB(f.Width, f.Height)
		return img, err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (d *Decoder) DecodeInto(newSink func(FrameInfo) (PixelSink, error)) error {
	if err := d.readHeaders(); err != nil {
		return err
	}
	if n := len(d.frame.Components); n != 3 {
		return fmt.Errorf("%w: %d channel frame", ErrUnsupportedFeature, n)
	}
	if n := len(d.scan.Components); n != 3 {
		return fmt.Errorf("%w: %d channel scan", ErrUnsupportedFeature, n)
	}
	sink, err := newSink(*d.frame)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArgument, err)
	}
	sr := NewScanReader(d)
	sd := newScanDecoder(d.frame, d.scan, sr)
	err = sd.decode(sink)
	d.scanBytes = sr.Consumed()
	if err != nil {
		return err
	}
	slog.Debug("scan decoded", slog.Int64("bytes", d.scanBytes))
	return d.expectEOI()
}

// Info snapshots what has been parsed so far. It is also meaningful after
// a failed decode.
func (d *Decoder) Info() Info {
	info := Info{
		JFIF:      d.jfif,
		Comments:  d.comments,
		Quant:     map[int]*QuantizationTable{},
		DC:        map[int]*HuffmanTable{},
		AC:        map[int]*HuffmanTable{},
		Segments:  d.segments,
		ScanBytes: d.scanBytes,
	}
	if d.frame != nil {
		info.Frame = *d.frame
	}
	if d.scan != nil {
		info.Scan = *d.scan
	}
	for i := range 16 {
		if d.quant[i] != nil {
			info.Quant[i] = d.quant[i]
		}
		if d.dc[i] != nil {
			info.DC[i] = d.dc[i]
		}
		if d.ac[i] != nil {
			info.AC[i] = d.ac[i]
		}
	}
	return info
}

// ReadByte lets the scan reader pull entropy coded bytes through the
// decoder's position accounting.
func (d *Decoder) ReadByte() (byte, error) {
	c, err := d.r.ReadByte()
	if err == nil {
		d.pos++
	}
	return c, err
}

func (d *Decoder) readFull(buf []byte, what string) error {
	n, err := io.ReadFull(d.r, buf)
	d.pos += int64(n)
	if err != nil {
		return truncated(what, err)
	}
	return nil
}

// readMarker expects 0xFF, skips fill bytes and returns the marker code.
func (d *Decoder) readMarker() (byte, int64, error) {
	start := d.pos
	c, err := d.ReadByte()
	if err != nil {
		return 0, start, truncated("marker", err)
	}
	if c != 0xFF {
		return 0, start, fmt.Errorf("%w: expected marker at offset %d, found 0x%02X", ErrInvalidFileFormat, start, c)
	}
	for {
		c, err = d.ReadByte()
		if err != nil {
			return 0, start, truncated("marker", err)
		}
		if c != 0xFF {
			break
		}
	}
	if c == 0x00 {
		return 0, start, fmt.Errorf("%w: stuffed byte outside scan data at offset %d", ErrInvalidFileFormat, start)
	}
	return c, start, nil
}

// readSegment reads the declared length and the payload that follows it.
func (d *Decoder) readSegment(marker byte, offset int64) ([]byte, error) {
	var lb [2]byte
	if err := d.readFull(lb[:], MarkerName(marker)+" length"); err != nil {
		return nil, err
	}
	length := int(lb[0])<<8 | int(lb[1])
	d.segments = append(d.segments, Segment{Marker: marker, Offset: offset, Length: length})
	if length < 2 {
		return nil, fmt.Errorf("%w: %s length %d", ErrInvalidFileFormat, MarkerName(marker), length)
	}
	payload := make([]byte, length-2)
	if err := d.readFull(payload, MarkerName(marker)+" payload"); err != nil {
		return nil, err
	}
	slog.Debug("segment",
		slog.String("marker", MarkerName(marker)),
		slog.Int64("offset", offset),
		slog.Int("length", length))
	return payload, nil
}

func (d *Decoder) readHeaders() error {
	var soi [2]byte
	if err := d.readFull(soi[:], "SOI"); err != nil {
		return err
	}
	if soi[0] != 0xFF || soi[1] != MarkerSOI {
		return fmt.Errorf("%w: missing SOI, found % X", ErrInvalidFileFormat, soi)
	}
	d.segments = append(d.segments, Segment{Marker: MarkerSOI})

	for {
		marker, offset, err := d.readMarker()
		if err != nil {
			return err
		}
		switch {
		case marker == MarkerSOI, marker == MarkerEOI:
			d.segments = append(d.segments, Segment{Marker: marker, Offset: offset})
			return fmt.Errorf("%w: %s before scan", ErrInvalidFileFormat, MarkerName(marker))
		case isRST(marker):
			d.segments = append(d.segments, Segment{Marker: marker, Offset: offset})
			return fmt.Errorf("%w: %s outside scan data", ErrInvalidFileFormat, MarkerName(marker))
		case marker == 0x01: // TEM carries no length
			d.segments = append(d.segments, Segment{Marker: marker, Offset: offset})
			continue
		}

		payload, err := d.readSegment(marker, offset)
		if err != nil {
			return err
		}
		switch {
		case marker == MarkerDQT:
			err = d.parseDQT(payload)
		case marker == MarkerDHT:
			err = d.parseDHT(payload)
		case marker == MarkerSOF0:
			err = d.parseSOF(payload)
		case marker == MarkerSOF2:
			err = fmt.Errorf("%w: progressive jpeg", ErrUnsupportedFeature)
		case isSOF(marker):
			err = fmt.Errorf("%w: frame type %s", ErrUnsupportedFeature, MarkerName(marker))
		case marker == MarkerDRI:
			err = d.parseDRI(payload)
		case marker == MarkerAPP0:
			d.parseAPP0(payload)
		case marker == MarkerCOM:
			d.comments = append(d.comments, string(bytes.TrimRight(payload, "\x00")))
		case marker == MarkerSOS:
			return d.parseSOS(payload)
		}
		if err != nil {
			return err
		}
	}
}

func (d *Decoder) parseDQT(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty DQT", ErrInvalidFileFormat)
	}
	r := bytes.NewReader(payload)
	for r.Len() > 0 {
		pq, _ := r.ReadByte()
		if pq>>4 == 1 {
			return fmt.Errorf("%w: 16 bit quantization table", ErrUnsupportedFeature)
		}
		var zz [64]byte
		if _, err := io.ReadFull(r, zz[:]); err != nil {
			return truncated("DQT", err)
		}
		if pq > 15 {
			slog.Warn("quantization table id out of range, skipping", slog.Int("id", int(pq)))
			continue
		}
		d.quant[pq] = NewQuantizationTable(zz)
		slog.Debug("quantization table", slog.Int("id", int(pq)))
	}
	return nil
}

func (d *Decoder) parseDHT(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty DHT", ErrInvalidFileFormat)
	}
	r := bytes.NewReader(payload)
	for r.Len() > 0 {
		ref, _ := r.ReadByte()
		class, id := ref>>4, ref&0x0F
		if class > 1 {
			return fmt.Errorf("%w: huffman table class %d", ErrInvalidFileFormat, class)
		}
		h, n, err := ReadHuffmanTable(r)
		if err != nil {
			return fmt.Errorf("DHT %d/%d: %w", class, id, err)
		}
		if class == 0 {
			d.dc[id] = h
		} else {
			d.ac[id] = h
		}
		slog.Debug("huffman table", slog.Int("class", int(class)), slog.Int("id", int(id)), slog.Int("bytes", n))
	}
	return nil
}

func (d *Decoder) parseSOF(payload []byte) error {
	if d.frame != nil {
		return fmt.Errorf("%w: second frame header", ErrInvalidFileFormat)
	}
	if len(payload) < 6 {
		return fmt.Errorf("%w: SOF0 length %d", ErrInvalidFileFormat, len(payload)+2)
	}
	n := int(payload[5])
	if len(payload)+2 != frameSegmentSize(n) {
		return fmt.Errorf("%w: SOF0 length %d for %d channels, expected %d",
			ErrInvalidFileFormat, len(payload)+2, n, frameSegmentSize(n))
	}
	f := &FrameInfo{
		Precision: int(payload[0]),
		Height:    int(payload[1])<<8 | int(payload[2]),
		Width:     int(payload[3])<<8 | int(payload[4]),
	}
	if f.Precision != 8 {
		return fmt.Errorf("%w: %d bit samples", ErrUnsupportedFeature, f.Precision)
	}
	if f.Height == 0 {
		return fmt.Errorf("%w: height defined by DNL", ErrUnsupportedFeature)
	}
	if f.Width == 0 || n == 0 {
		return fmt.Errorf("%w: frame %dx%d with %d channels", ErrInvalidFileFormat, f.Width, f.Height, n)
	}
	for i := range n {
		p := payload[6+3*i:]
		c := FrameComponent{
			ID:      ChannelType(p[0]),
			H:       int(p[1] >> 4),
			V:       int(p[1] & 0x0F),
			TableID: int(p[2]),
		}
		if _, dup := f.component(c.ID); dup {
			return fmt.Errorf("%w: channel %s declared twice", ErrInvalidFileFormat, c.ID)
		}
		if c.H == 0 || c.V == 0 {
			return fmt.Errorf("%w: channel %s sampling %dx%d", ErrInvalidFileFormat, c.ID, c.H, c.V)
		}
		if c.TableID > 15 {
			return fmt.Errorf("%w: channel %s quantization table %d", ErrInvalidFileFormat, c.ID, c.TableID)
		}
		f.HMax = max(f.HMax, c.H)
		f.VMax = max(f.VMax, c.V)
		f.Components = append(f.Components, c)
	}
	d.frame = f
	slog.Debug("frame",
		slog.Int("width", f.Width),
		slog.Int("height", f.Height),
		slog.Int("channels", n),
		slog.String("subsampling", f.Subsampling()))
	return nil
}

func (d *Decoder) parseDRI(payload []byte) error {
	if len(payload) != 2 {
		return fmt.Errorf("%w: DRI length %d", ErrInvalidFileFormat, len(payload)+2)
	}
	if interval := int(payload[0])<<8 | int(payload[1]); interval != 0 {
		return fmt.Errorf("%w: restart interval %d", ErrUnsupportedFeature, interval)
	}
	return nil
}

func (d *Decoder) parseAPP0(payload []byte) {
	if j, ok := parseJFIF(payload); ok {
		d.jfif = j
		slog.Debug("jfif", slog.String("version", j.Version()), slog.Int("units", int(j.Units)))
	}
}

// parseSOS validates the scan header against the frame and binds the
// quantization and entropy tables each channel will use.
func (d *Decoder) parseSOS(payload []byte) error {
	if d.frame == nil {
		return fmt.Errorf("%w: SOS before SOF", ErrInvalidFileFormat)
	}
	if len(payload) < 1 {
		return fmt.Errorf("%w: empty SOS", ErrInvalidFileFormat)
	}
	n := int(payload[0])
	if len(payload)+2 != scanSegmentSize(n) {
		return fmt.Errorf("%w: SOS length %d for %d channels, expected %d",
			ErrInvalidFileFormat, len(payload)+2, n, scanSegmentSize(n))
	}
	s := &ScanInfo{}
	for i := range n {
		id, ref := ChannelType(payload[1+2*i]), payload[2+2*i]
		fi, ok := d.frame.component(id)
		if !ok {
			return fmt.Errorf("%w: scan channel %s not in frame", ErrInvalidFileFormat, id)
		}
		for _, prev := range s.Components {
			if prev.ID == id {
				return fmt.Errorf("%w: scan channel %s listed twice", ErrInvalidFileFormat, id)
			}
		}
		// the low nibble selects both the DC and the AC table
		table := int(ref & 0x0F)
		sc := ScanComponent{
			ID:      id,
			DCTable: table,
			ACTable: table,
			frame:   fi,
		}
		sc.DC, sc.AC = d.dc[sc.DCTable], d.ac[sc.ACTable]
		if sc.DC == nil || sc.AC == nil {
			return fmt.Errorf("%w: channel %s references missing huffman table %d/%d",
				ErrInvalidFileFormat, id, sc.DCTable, sc.ACTable)
		}
		s.Components = append(s.Components, sc)
	}
	trailer := payload[1+2*n:]
	s.Ss, s.Se = int(trailer[0]), int(trailer[1])
	s.Ah, s.Al = int(trailer[2]>>4), int(trailer[2]&0x0F)

	for i := range d.frame.Components {
		c := &d.frame.Components[i]
		c.Table = d.quant[c.TableID]
		if c.Table == nil {
			return fmt.Errorf("%w: channel %s references missing quantization table %d",
				ErrInvalidFileFormat, c.ID, c.TableID)
		}
	}
	d.scan = s
	slog.Debug("scan", slog.Int("channels", n))
	return nil
}

func (d *Decoder) expectEOI() error {
	marker, offset, err := d.readMarker()
	if err != nil {
		return err
	}
	d.segments = append(d.segments, Segment{Marker: marker, Offset: offset})
	if marker != MarkerEOI {
		return fmt.Errorf("%w: expected EOI after scan, found %s", ErrInvalidFileFormat, MarkerName(marker))
	}
	return nil
}
