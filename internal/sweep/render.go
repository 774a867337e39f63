package sweep

import (
	"image"
	"math"
	"sort"

	"github.com/i474232898/radar-imagery/internal/radar"
)

// DefaultImageSize is the edge length of rendered images in pixels.
const DefaultImageSize = 1024

// PPIRenderer draws the lowest reflectivity cut of a Level II volume onto a
// square transparent image spanning the extent of its unmasked gates.
type PPIRenderer struct {
	Size int
}

var _ radar.Renderer = (*PPIRenderer)(nil)

// NewPPIRenderer returns a renderer producing size x size images.
func NewPPIRenderer(size int) *PPIRenderer {
	if size <= 0 {
		size = DefaultImageSize
	}
	return &PPIRenderer{Size: size}
}

// Render decodes raw and draws it.
func (r *PPIRenderer) Render(raw []byte, opts radar.RenderOptions) (radar.Rendering, error) {
	sw, err := Decode(raw)
	if err != nil {
		return radar.Rendering{}, err
	}
	return r.RenderSweep(sw, opts)
}

// RenderSweep draws an already decoded sweep.
func (r *PPIRenderer) RenderSweep(sw *Sweep, opts radar.RenderOptions) (radar.Rendering, error) {
	grid := GateGrid(sw, opts.Floor)

	bounds, err := radar.ComputeBounds(grid)
	if err != nil {
		return radar.Rendering{}, err
	}

	img := r.draw(sw, bounds, opts)
	return radar.Rendering{Image: img, Grid: grid}, nil
}

// GateGrid computes the coordinates of every gate of sw. Rows are radials and
// columns gates; radials shorter than the longest one are padded with masked
// gates. Gates without data or below floor are masked.
func GateGrid(sw *Sweep, floor float64) radar.GateGrid {
	cols := 0
	for _, rd := range sw.Radials {
		cols = max(cols, len(rd.Values))
	}
	rows := len(sw.Radials)

	grid := radar.GateGrid{
		Rows:   rows,
		Cols:   cols,
		Lat:    make([]float64, rows*cols),
		Lon:    make([]float64, rows*cols),
		Masked: make([]bool, rows*cols),
	}

	for i, rd := range sw.Radials {
		for g := 0; g < cols; g++ {
			idx := i*cols + g
			rng := rd.FirstGate + float64(g)*rd.GateSpacing
			grid.Lat[idx], grid.Lon[idx] = gateLocation(sw.Lat, sw.Lon, rd.Azimuth, rd.Elevation, rng)

			if g >= len(rd.Values) {
				grid.Masked[idx] = true
				continue
			}
			v := rd.Values[g]
			grid.Masked[idx] = math.IsNaN(v) || v < floor
		}
	}
	return grid
}

// draw maps every pixel back to (azimuth, range), looks up the nearest gate
// and colors it. Pixels without an unmasked gate stay transparent.
func (r *PPIRenderer) draw(sw *Sweep, bounds radar.BoundingBox, opts radar.RenderOptions) *image.NRGBA {
	size := r.Size
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	pal := NewPalette(opts.DisplayMin, opts.DisplayMax, opts.Step)

	idx := newAzimuthIndex(sw.Radials)
	latSpan := bounds.MaxLat - bounds.MinLat
	lonSpan := bounds.MaxLon - bounds.MinLon

	for py := 0; py < size; py++ {
		lat := bounds.MaxLat - (float64(py)+0.5)/float64(size)*latSpan
		for px := 0; px < size; px++ {
			lon := bounds.MinLon + (float64(px)+0.5)/float64(size)*lonSpan

			x, y := toCartesian(sw.Lat, sw.Lon, lat, lon)
			az := math.Mod(toDeg(math.Atan2(x, y))+360, 360)

			rd, ok := idx.nearest(az)
			if !ok {
				continue
			}
			rng := slantRange(math.Hypot(x, y), rd.Elevation)
			g := int(math.Floor((rng-rd.FirstGate)/rd.GateSpacing + 0.5))
			if g < 0 || g >= len(rd.Values) {
				continue
			}
			v := rd.Values[g]
			if math.IsNaN(v) || v < opts.Floor {
				continue
			}
			img.SetNRGBA(px, py, pal.Color(v))
		}
	}
	return img
}

// azimuthIndex finds the radial closest to an azimuth.
type azimuthIndex struct {
	radials []*Radial // sorted by azimuth
	maxGap  float64   // degrees; farther than this from any radial is empty
}

func newAzimuthIndex(radials []Radial) azimuthIndex {
	sorted := make([]*Radial, len(radials))
	for i := range radials {
		sorted[i] = &radials[i]
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Azimuth < sorted[j].Azimuth })

	gap := 1.0
	if len(sorted) > 0 {
		gap = 360.0 / float64(len(sorted))
	}
	return azimuthIndex{radials: sorted, maxGap: gap}
}

func (ix azimuthIndex) nearest(az float64) (*Radial, bool) {
	n := len(ix.radials)
	if n == 0 {
		return nil, false
	}
	i := sort.Search(n, func(i int) bool { return ix.radials[i].Azimuth >= az })

	// Candidates on either side, wrapping around north.
	a := ix.radials[(i-1+n)%n]
	b := ix.radials[i%n]
	best, dist := a, angularDistance(a.Azimuth, az)
	if d := angularDistance(b.Azimuth, az); d < dist {
		best, dist = b, d
	}

	if dist > ix.maxGap {
		return nil, false
	}
	return best, true
}

func angularDistance(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}
