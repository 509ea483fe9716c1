// Package astro converts between celestial (RA, Dec, r) and Cartesian
// coordinates for the frontend's 3D visualization.
package astro

import "math"

type Coordinates3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RADecToXYZ converts right ascension and declination (degrees) plus a
// distance r into Cartesian coordinates.
func RADecToXYZ(ra, dec, r float64) Coordinates3D {
	raRad := ra * math.Pi / 180
	decRad := dec * math.Pi / 180

	return Coordinates3D{
		X: r * math.Cos(decRad) * math.Cos(raRad),
		Y: r * math.Cos(decRad) * math.Sin(raRad),
		Z: r * math.Sin(decRad),
	}
}

// XYZToRADec is the inverse conversion. RA is normalized to [0, 360).
func XYZToRADec(x, y, z float64) (ra, dec, r float64) {
	r = math.Sqrt(x*x + y*y + z*z)
	if r > 0 {
		dec = math.Asin(z/r) * 180 / math.Pi
	}
	ra = math.Atan2(y, x) * 180 / math.Pi
	if ra < 0 {
		ra += 360
	}
	return ra, dec, r
}

// NormalizeCoordinates wraps RA into [0, 360) and clamps Dec to [-90, 90].
func NormalizeCoordinates(ra, dec float64) (float64, float64) {
	ra = math.Mod(ra, 360)
	if ra < 0 {
		ra += 360
	}
	dec = math.Max(-90, math.Min(90, dec))
	return ra, dec
}

// AngularDistance returns the great-circle separation between two sky
// positions in degrees, using the haversine formula.
func AngularDistance(ra1, dec1, ra2, dec2 float64) float64 {
	toRad := math.Pi / 180
	ra1r, dec1r := ra1*toRad, dec1*toRad
	ra2r, dec2r := ra2*toRad, dec2*toRad

	deltaRA := ra2r - ra1r
	deltaDec := dec2r - dec1r

	a := math.Pow(math.Sin(deltaDec/2), 2) +
		math.Cos(dec1r)*math.Cos(dec2r)*math.Pow(math.Sin(deltaRA/2), 2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * 180 / math.Pi
}
