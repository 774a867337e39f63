// Package sweeptest builds small uncompressed Archive II volumes for tests.
package sweeptest

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	volumeHeaderSize = 24
	ctmSize          = 12
	msgHeaderSize    = 16
	fixedFrameSize   = 2432
	msgTypeDigital   = 31

	// REF encoding used by every synthesized radial.
	refScale  = 2
	refOffset = 66

	// FirstGate and GateSpacing are the REF gate geometry in meters.
	FirstGate   = 2125
	GateSpacing = 250
)

// Radial describes one message 31 to synthesize.
type Radial struct {
	Azimuth   float32
	Elevation float32
	ElevNum   uint8
	Codes     []byte // raw 8-bit REF codes; see DBZ
}

// DBZ returns the 8-bit REF code for a reflectivity value.
func DBZ(v float64) byte { return byte(v*refScale + refOffset) }

func putF32(b []byte, v float32) { binary.BigEndian.PutUint32(b, math.Float32bits(v)) }

// Message31 returns CTM padding, message header and a message 31 body
// carrying a VOL block and an 8-bit REF block.
func Message31(site string, lat, lon float32, r Radial) []byte {
	const (
		volPtr = 32 + 4*2
		volLen = 44
		refPtr = volPtr + volLen
	)
	body := make([]byte, refPtr+28+len(r.Codes))
	copy(body[0:4], site)
	putF32(body[12:16], r.Azimuth)
	body[22] = r.ElevNum
	putF32(body[24:28], r.Elevation)
	binary.BigEndian.PutUint16(body[30:32], 2)
	binary.BigEndian.PutUint32(body[32:36], volPtr)
	binary.BigEndian.PutUint32(body[36:40], refPtr)

	vol := body[volPtr:]
	vol[0] = 'R'
	copy(vol[1:4], "VOL")
	binary.BigEndian.PutUint16(vol[4:6], volLen)
	putF32(vol[8:12], lat)
	putF32(vol[12:16], lon)
	binary.BigEndian.PutUint16(vol[16:18], 88)

	ref := body[refPtr:]
	ref[0] = 'D'
	copy(ref[1:4], "REF")
	binary.BigEndian.PutUint16(ref[8:10], uint16(len(r.Codes)))
	binary.BigEndian.PutUint16(ref[10:12], FirstGate)
	binary.BigEndian.PutUint16(ref[12:14], GateSpacing)
	ref[19] = 8
	putF32(ref[20:24], refScale)
	putF32(ref[24:28], refOffset)
	copy(ref[28:], r.Codes)

	if len(body)%2 == 1 {
		body = append(body, 0)
	}

	msg := make([]byte, ctmSize+msgHeaderSize, ctmSize+msgHeaderSize+len(body))
	binary.BigEndian.PutUint16(msg[ctmSize:ctmSize+2], uint16((msgHeaderSize+len(body))/2))
	msg[ctmSize+3] = msgTypeDigital
	return append(msg, body...)
}

// FixedFrame returns a non-31 message occupying a full fixed frame.
func FixedFrame(msgType byte) []byte {
	frame := make([]byte, fixedFrameSize)
	binary.BigEndian.PutUint16(frame[ctmSize:ctmSize+2], 1208)
	frame[ctmSize+3] = msgType
	return frame
}

// Volume assembles an uncompressed volume: header, one metadata frame, then
// the given radials.
func Volume(site string, lat, lon float32, radials ...Radial) []byte {
	var buf bytes.Buffer
	hdr := make([]byte, volumeHeaderSize)
	copy(hdr, "AR2V0006.001")
	copy(hdr[20:24], site)
	buf.Write(hdr)
	buf.Write(FixedFrame(2))
	for _, r := range radials {
		buf.Write(Message31(site, lat, lon, r))
	}
	return buf.Bytes()
}

// Ring is a full 360-radial lowest cut with every gate at dbz.
func Ring(site string, lat, lon float32, dbz float64, gates int) []byte {
	codes := bytes.Repeat([]byte{DBZ(dbz)}, gates)
	radials := make([]Radial, 0, 360)
	for az := 0; az < 360; az++ {
		radials = append(radials, Radial{
			Azimuth:   float32(az) + 0.5,
			Elevation: 0.5,
			ElevNum:   1,
			Codes:     codes,
		})
	}
	return Volume(site, lat, lon, radials...)
}
