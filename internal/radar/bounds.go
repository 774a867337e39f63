package radar

import (
	"fmt"
	"math"
)

// ComputeBounds returns the min/max latitude and longitude over every
// unmasked gate of grid. No interpolation or outlier rejection is applied.
func ComputeBounds(grid GateGrid) (BoundingBox, error) {
	n := grid.Rows * grid.Cols
	if n <= 0 {
		return BoundingBox{}, fmt.Errorf("%w: empty gate grid", ErrDecode)
	}
	if len(grid.Lat) != n || len(grid.Lon) != n {
		return BoundingBox{}, fmt.Errorf("%w: grid shape %dx%d does not match %d lat / %d lon values",
			ErrDecode, grid.Rows, grid.Cols, len(grid.Lat), len(grid.Lon))
	}
	if grid.Masked != nil && len(grid.Masked) != n {
		return BoundingBox{}, fmt.Errorf("%w: mask has %d entries, want %d", ErrDecode, len(grid.Masked), n)
	}

	box := BoundingBox{
		MinLat: math.Inf(1),
		MaxLat: math.Inf(-1),
		MinLon: math.Inf(1),
		MaxLon: math.Inf(-1),
	}
	used := 0

	for i := 0; i < n; i++ {
		if grid.Masked != nil && grid.Masked[i] {
			continue
		}
		lat, lon := grid.Lat[i], grid.Lon[i]
		if math.IsNaN(lat) || math.IsNaN(lon) {
			continue
		}
		box.MinLat = math.Min(box.MinLat, lat)
		box.MaxLat = math.Max(box.MaxLat, lat)
		box.MinLon = math.Min(box.MinLon, lon)
		box.MaxLon = math.Max(box.MaxLon, lon)
		used++
	}

	if used == 0 {
		return BoundingBox{}, fmt.Errorf("%w: every gate is masked", ErrDecode)
	}
	return box, nil
}
