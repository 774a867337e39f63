package sweep

import (
	"image/color"
	"math"
)

// nwsBase is the lower edge (dBZ) of the first palette entry; entries are
// 5 dBZ apart.
const nwsBase = 5.0

// nwsReflectivity is the NWS reflectivity color table.
var nwsReflectivity = []color.NRGBA{
	{0x04, 0xe9, 0xe7, 0xff}, // 5
	{0x01, 0x9f, 0xf4, 0xff}, // 10
	{0x03, 0x00, 0xf4, 0xff}, // 15
	{0x02, 0xfd, 0x02, 0xff}, // 20
	{0x01, 0xc5, 0x01, 0xff}, // 25
	{0x00, 0x8e, 0x00, 0xff}, // 30
	{0xfd, 0xf8, 0x02, 0xff}, // 35
	{0xe5, 0xbc, 0x00, 0xff}, // 40
	{0xfd, 0x95, 0x00, 0xff}, // 45
	{0xfd, 0x00, 0x00, 0xff}, // 50
	{0xd4, 0x00, 0x00, 0xff}, // 55
	{0xbc, 0x00, 0x00, 0xff}, // 60
	{0xf8, 0x00, 0xfd, 0xff}, // 65
	{0x98, 0x54, 0xc6, 0xff}, // 70
	{0xfd, 0xfd, 0xfd, 0xff}, // 75
}

// Palette maps reflectivity to a stepped color, clamped to a display range.
type Palette struct {
	min, max, step float64
}

// NewPalette builds a palette for [min, max] quantized to step dBZ.
func NewPalette(lo, hi, step float64) Palette {
	if step <= 0 {
		step = 5
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return Palette{min: lo, max: hi, step: step}
}

// Color returns the color for v. Values outside the display range take the
// color of the nearest end.
func (p Palette) Color(v float64) color.NRGBA {
	v = math.Max(p.min, math.Min(p.max, v))
	q := p.min + math.Floor((v-p.min)/p.step)*p.step

	i := int(math.Floor((q - nwsBase) / 5))
	if i < 0 {
		i = 0
	}
	if i >= len(nwsReflectivity) {
		i = len(nwsReflectivity) - 1
	}
	return nwsReflectivity[i]
}
