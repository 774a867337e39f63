// Package sweep decodes NEXRAD Level II (Archive II) volumes and renders the
// lowest reflectivity cut as a transparent PPI image.
package sweep

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/i474232898/radar-imagery/internal/radar"
)

const (
	volumeHeaderSize = 24
	ctmSize          = 12 // legacy channel terminal manager padding
	msgHeaderSize    = 16
	fixedFrameSize   = 2432 // frame of every message type except 31
	msgTypeDigital   = 31
)

// Radial is one azimuth of reflectivity.
type Radial struct {
	Azimuth     float64   // degrees clockwise from north
	Elevation   float64   // degrees
	FirstGate   float64   // range to the center of the first gate, meters
	GateSpacing float64   // meters
	Values      []float64 // dBZ; NaN where the RDA reported no data
}

// Sweep is the lowest elevation cut of a volume.
type Sweep struct {
	Station string
	Lat     float64
	Lon     float64
	Height  float64 // meters above sea level
	Radials []Radial
}

// Decode parses an Archive II volume and returns its first reflectivity cut.
func Decode(raw []byte) (*Sweep, error) {
	if len(raw) < volumeHeaderSize || !bytes.HasPrefix(raw, []byte("AR2V")) {
		return nil, fmt.Errorf("%w: missing AR2V volume header", radar.ErrDecode)
	}

	stream, err := decompressRecords(raw[volumeHeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", radar.ErrDecode, err)
	}

	sw, err := parseMessages(stream)
	if err != nil {
		return nil, err
	}
	if sw.Station == "" {
		sw.Station = string(bytes.TrimRight(raw[20:24], "\x00 "))
	}
	return sw, nil
}

// decompressRecords concatenates the LDM records following the volume header.
// Each record is a 4-byte big-endian control word (negative on the last
// record of a volume) followed by a bzip2 stream. Volumes written without
// compression are passed through.
func decompressRecords(body []byte) ([]byte, error) {
	if len(body) >= 6 && !bytes.Equal(body[4:6], []byte("BZ")) {
		return body, nil
	}

	var out bytes.Buffer
	for off := 0; off+4 <= len(body); {
		size := int(int32(binary.BigEndian.Uint32(body[off : off+4])))
		if size < 0 {
			size = -size
		}
		off += 4
		if size == 0 || off+size > len(body) {
			return nil, fmt.Errorf("ldm record at %d: size %d exceeds volume", off-4, size)
		}
		if _, err := io.Copy(&out, bzip2.NewReader(bytes.NewReader(body[off:off+size]))); err != nil {
			return nil, fmt.Errorf("ldm record at %d: %w", off-4, err)
		}
		off += size
	}
	return out.Bytes(), nil
}

// parseMessages walks the message stream and collects the radials of
// elevation cut 1.
func parseMessages(stream []byte) (*Sweep, error) {
	sw := &Sweep{}
	haveSite := false

	for off := 0; off+ctmSize+msgHeaderSize <= len(stream); {
		hdr := stream[off+ctmSize : off+ctmSize+msgHeaderSize]
		halfwords := int(binary.BigEndian.Uint16(hdr[0:2]))
		msgType := hdr[3]

		if msgType != msgTypeDigital {
			off += fixedFrameSize
			continue
		}

		size := halfwords * 2
		if size < msgHeaderSize {
			return nil, fmt.Errorf("%w: message 31 at %d has size %d", radar.ErrDecode, off, size)
		}
		start := off + ctmSize + msgHeaderSize
		end := off + ctmSize + size
		if end > len(stream) {
			return nil, fmt.Errorf("%w: truncated message 31 at %d", radar.ErrDecode, off)
		}
		off = end

		rad, site, ok, err := parseDigitalRadial(stream[start:end])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !haveSite && site.ok {
			sw.Station, sw.Lat, sw.Lon, sw.Height = site.id, site.lat, site.lon, site.height
			haveSite = true
		}
		sw.Radials = append(sw.Radials, rad)
	}

	if len(sw.Radials) == 0 {
		return nil, fmt.Errorf("%w: no reflectivity radials in lowest cut", radar.ErrDecode)
	}
	if !haveSite {
		return nil, fmt.Errorf("%w: no volume block with site location", radar.ErrDecode)
	}
	return sw, nil
}

type siteInfo struct {
	ok       bool
	id       string
	lat, lon float64
	height   float64
}

// parseDigitalRadial decodes the body of one message 31. ok is false for
// radials outside the lowest cut or without a REF moment.
func parseDigitalRadial(b []byte) (rad Radial, site siteInfo, ok bool, err error) {
	if len(b) < 32 {
		return rad, site, false, fmt.Errorf("%w: message 31 body too short", radar.ErrDecode)
	}

	if b[22] != 1 { // elevation number
		return rad, site, false, nil
	}

	rad.Azimuth = float64(math.Float32frombits(binary.BigEndian.Uint32(b[12:16])))
	rad.Elevation = float64(math.Float32frombits(binary.BigEndian.Uint32(b[24:28])))

	blocks := int(binary.BigEndian.Uint16(b[30:32]))
	if 32+4*blocks > len(b) {
		return rad, site, false, fmt.Errorf("%w: message 31 block table overruns body", radar.ErrDecode)
	}

	hasRef := false
	for i := 0; i < blocks; i++ {
		ptr := int(binary.BigEndian.Uint32(b[32+4*i : 36+4*i]))
		if ptr == 0 || ptr+4 > len(b) {
			continue
		}
		name := string(b[ptr+1 : ptr+4])
		switch {
		case b[ptr] == 'R' && name == "VOL":
			if ptr+20 > len(b) {
				return rad, site, false, fmt.Errorf("%w: truncated VOL block", radar.ErrDecode)
			}
			site = siteInfo{
				ok:     true,
				id:     string(bytes.TrimRight(b[0:4], "\x00 ")),
				lat:    float64(math.Float32frombits(binary.BigEndian.Uint32(b[ptr+8 : ptr+12]))),
				lon:    float64(math.Float32frombits(binary.BigEndian.Uint32(b[ptr+12 : ptr+16]))),
				height: float64(int16(binary.BigEndian.Uint16(b[ptr+16 : ptr+18]))),
			}
		case b[ptr] == 'D' && name == "REF":
			if err := parseMoment(b[ptr:], &rad); err != nil {
				return rad, site, false, err
			}
			hasRef = true
		}
	}

	return rad, site, hasRef, nil
}

// parseMoment fills rad from a generic moment data block.
func parseMoment(b []byte, rad *Radial) error {
	if len(b) < 28 {
		return fmt.Errorf("%w: truncated REF block", radar.ErrDecode)
	}
	gates := int(binary.BigEndian.Uint16(b[8:10]))
	rad.FirstGate = float64(binary.BigEndian.Uint16(b[10:12]))
	rad.GateSpacing = float64(binary.BigEndian.Uint16(b[12:14]))
	wordSize := int(b[19])
	scale := float64(math.Float32frombits(binary.BigEndian.Uint32(b[20:24])))
	offset := float64(math.Float32frombits(binary.BigEndian.Uint32(b[24:28])))

	if scale == 0 || rad.GateSpacing == 0 {
		return fmt.Errorf("%w: REF block has zero scale or gate spacing", radar.ErrDecode)
	}
	if wordSize != 8 && wordSize != 16 {
		return fmt.Errorf("%w: unsupported REF word size %d", radar.ErrDecode, wordSize)
	}

	data := b[28:]
	if len(data) < gates*wordSize/8 {
		return fmt.Errorf("%w: REF block holds fewer than %d gates", radar.ErrDecode, gates)
	}

	rad.Values = make([]float64, gates)
	for g := 0; g < gates; g++ {
		var code uint16
		if wordSize == 8 {
			code = uint16(data[g])
		} else {
			code = binary.BigEndian.Uint16(data[2*g : 2*g+2])
		}
		// 0 is below threshold, 1 is range folded.
		if code < 2 {
			rad.Values[g] = math.NaN()
			continue
		}
		rad.Values[g] = (float64(code) - offset) / scale
	}
	return nil
}
