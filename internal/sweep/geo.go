package sweep

import "math"

const (
	earthRadius     = 6370997.0 // meters, sphere used by the projection
	effectiveRadius = 6371000.0 * 4.0 / 3.0
)

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

// groundDistance converts slant range r (meters) at elevation elev (degrees)
// to distance along the surface, using the 4/3 effective earth radius model.
func groundDistance(r, elev float64) float64 {
	e := toRad(elev)
	z := math.Sqrt(r*r+effectiveRadius*effectiveRadius+2*r*effectiveRadius*math.Sin(e)) - effectiveRadius
	return effectiveRadius * math.Asin(r*math.Cos(e)/(effectiveRadius+z))
}

// slantRange approximately inverts groundDistance for the shallow angles of
// a lowest cut.
func slantRange(s, elev float64) float64 {
	return s / math.Cos(toRad(elev))
}

// toGeographic maps cartesian (x east, y north; meters) around a site to
// latitude/longitude with an inverse azimuthal equidistant projection.
func toGeographic(siteLat, siteLon, x, y float64) (lat, lon float64) {
	rho := math.Hypot(x, y)
	if rho == 0 {
		return siteLat, siteLon
	}
	c := rho / earthRadius
	lat0 := toRad(siteLat)

	lat = math.Asin(math.Cos(c)*math.Sin(lat0) + y*math.Sin(c)*math.Cos(lat0)/rho)
	lon = toRad(siteLon) + math.Atan2(x*math.Sin(c), rho*math.Cos(lat0)*math.Cos(c)-y*math.Sin(lat0)*math.Sin(c))

	lon = math.Mod(toDeg(lon)+540, 360) - 180
	return toDeg(lat), lon
}

// toCartesian is the forward azimuthal equidistant projection around a site.
func toCartesian(siteLat, siteLon, lat, lon float64) (x, y float64) {
	lat0, lat1 := toRad(siteLat), toRad(lat)
	dlon := toRad(lon - siteLon)

	cosC := math.Sin(lat0)*math.Sin(lat1) + math.Cos(lat0)*math.Cos(lat1)*math.Cos(dlon)
	cosC = math.Max(-1, math.Min(1, cosC))
	c := math.Acos(cosC)
	k := 1.0
	if c != 0 {
		k = c / math.Sin(c)
	}

	x = earthRadius * k * math.Cos(lat1) * math.Sin(dlon)
	y = earthRadius * k * (math.Cos(lat0)*math.Sin(lat1) - math.Sin(lat0)*math.Cos(lat1)*math.Cos(dlon))
	return x, y
}

// gateLocation returns the latitude/longitude of the gate at slant range r
// along a beam with the given azimuth and elevation.
func gateLocation(siteLat, siteLon, azimuth, elev, r float64) (lat, lon float64) {
	s := groundDistance(r, elev)
	az := toRad(azimuth)
	return toGeographic(siteLat, siteLon, s*math.Sin(az), s*math.Cos(az))
}
