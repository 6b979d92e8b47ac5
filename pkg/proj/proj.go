// Package proj implements the map projections the atlas pipeline needs:
// northern-hemisphere UTM zones on NAD83 (EPSG:269xx) and WGS84
// (EPSG:326xx), and two Lambert conformal conics, Statistics Canada
// (EPSG:3347) and Canada Atlas (EPSG:3978). Formulas follow EPSG
// Guidance Note 7 part 2 (coordinate conversions and transformations).
// Only the projections the published datasets actually use are
// implemented; this is not a general PROJ replacement.
package proj

import (
	"fmt"
	"math"
)

// GRS80 ellipsoid, shared by NAD83 and the census Lambert grid.
const (
	a  = 6378137.0
	f  = 1.0 / 298.257222101
	e2 = 2*f - f*f
)

var (
	e   = math.Sqrt(e2)
	ep2 = e2 / (1 - e2)
)

// A Projection converts between geographic coordinates (EPSG:4326 degrees,
// longitude first) and projected coordinates in metres.
type Projection interface {
	Forward(lon, lat float64) (x, y float64)
	Inverse(x, y float64) (lon, lat float64)
	// Code is the EPSG code of the projected CRS.
	Code() int
}

// LonLat is the identity projection. It lets raster code treat geographic
// grids and projected grids uniformly.
type LonLat struct{}

func (LonLat) Forward(lon, lat float64) (float64, float64) { return lon, lat }
func (LonLat) Inverse(x, y float64) (float64, float64)     { return x, y }
func (LonLat) Code() int                                   { return 4326 }

// ByCode returns the projection for an EPSG code used anywhere in the
// pipeline. 4326 returns the identity.
func ByCode(code int) (Projection, error) {
	switch {
	case code == 4326:
		return LonLat{}, nil
	case code == 3347:
		return StatCanLambert(), nil
	case code == 3978:
		return CanadaAtlasLambert(), nil
	case code >= 26901 && code <= 26960:
		return NAD83UTM(code - 26900), nil
	case code >= 32601 && code <= 32660:
		return WGS84UTM(code - 32600), nil
	}
	return nil, fmt.Errorf("unsupported EPSG code %d", code)
}

// UTMZone returns the UTM zone number containing a longitude.
func UTMZone(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone
}

// TransverseMercator is a northern-hemisphere transverse Mercator projection
// on GRS80.
type TransverseMercator struct {
	lon0 float64 // central meridian, radians
	k0   float64
	fe   float64
	fn   float64
	code int
}

// NAD83UTM returns the NAD83 UTM projection for a zone (EPSG:269xx).
func NAD83UTM(zone int) *TransverseMercator {
	return &TransverseMercator{
		lon0: (float64(zone)*6 - 183) * math.Pi / 180,
		k0:   0.9996,
		fe:   500000,
		fn:   0,
		code: 26900 + zone,
	}
}

// WGS84UTM returns the WGS84 UTM projection for a northern zone
// (EPSG:326xx), the grid Sentinel-2 products ship in. WGS84 and GRS80
// differ by a tenth of a millimetre in flattening, so the GRS80 math
// serves both.
func WGS84UTM(zone int) *TransverseMercator {
	tm := NAD83UTM(zone)
	tm.code = 32600 + zone
	return tm
}

func (tm *TransverseMercator) Code() int { return tm.code }

// meridionalArc is the distance along the meridian from the equator.
func meridionalArc(phi float64) float64 {
	return a * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))
}

func (tm *TransverseMercator) Forward(lon, lat float64) (float64, float64) {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	aa := (lam - tm.lon0) * cosPhi
	m := meridionalArc(phi)

	x := tm.fe + tm.k0*n*(aa+
		(1-t+c)*aa*aa*aa/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(aa, 5)/120)
	y := tm.fn + tm.k0*(m+n*tanPhi*(aa*aa/2+
		(5-t+9*c+4*c*c)*math.Pow(aa, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(aa, 6)/720))

	return x, y
}

func (tm *TransverseMercator) Inverse(x, y float64) (float64, float64) {
	m := (y - tm.fn) / tm.k0
	mu := m / (a * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	n1 := a / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := a * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := (x - tm.fe) / (n1 * tm.k0)

	phi := phi1 - (n1 * tanPhi1 / r1) * (d*d/2 -
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24 +
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)
	lam := tm.lon0 + (d-
		(1+2*t1+c1)*d*d*d/6+
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120)/cosPhi1

	return lam * 180 / math.Pi, phi * 180 / math.Pi
}

// LambertConformalConic is the two-standard-parallel Lambert projection on
// GRS80.
type LambertConformalConic struct {
	n    float64
	bigF float64
	rho0 float64
	lon0 float64 // radians
	fe   float64
	fn   float64
	code int
}

// StatCanLambert returns the Statistics Canada Lambert projection
// (EPSG:3347) used by census boundary files. The original datasets use it
// for equal-ish area measurement across Canada.
func StatCanLambert() *LambertConformalConic {
	return NewLambertConformalConic(
		-91.0-52.0/60.0, // 91 52'W
		63.390675,
		49, 77,
		6200000, 3000000,
		3347,
	)
}

// CanadaAtlasLambert returns the NRCan Canada Atlas Lambert projection
// (EPSG:3978), the grid the national land-cover rasters ship in.
func CanadaAtlasLambert() *LambertConformalConic {
	return NewLambertConformalConic(
		-95, 49,
		49, 77,
		0, 0,
		3978,
	)
}

// NewLambertConformalConic builds an LCC projection from its defining
// parameters (degrees and metres).
func NewLambertConformalConic(lonF, latF, lat1, lat2, fe, fn float64, code int) *LambertConformalConic {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	phiF := latF * math.Pi / 180

	m1 := lccM(phi1)
	m2 := lccM(phi2)
	t1 := lccT(phi1)
	t2 := lccT(phi2)
	tF := lccT(phiF)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	bigF := m1 / (n * math.Pow(t1, n))
	rho0 := a * bigF * math.Pow(tF, n)

	return &LambertConformalConic{
		n:    n,
		bigF: bigF,
		rho0: rho0,
		lon0: lonF * math.Pi / 180,
		fe:   fe,
		fn:   fn,
		code: code,
	}
}

func lccM(phi float64) float64 {
	sinPhi := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e2*sinPhi*sinPhi)
}

func lccT(phi float64) float64 {
	sinPhi := math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) /
		math.Pow((1-e*sinPhi)/(1+e*sinPhi), e/2)
}

func (lcc *LambertConformalConic) Code() int { return lcc.code }

func (lcc *LambertConformalConic) Forward(lon, lat float64) (float64, float64) {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	rho := a * lcc.bigF * math.Pow(lccT(phi), lcc.n)
	theta := lcc.n * (lam - lcc.lon0)

	x := lcc.fe + rho*math.Sin(theta)
	y := lcc.fn + lcc.rho0 - rho*math.Cos(theta)

	return x, y
}

func (lcc *LambertConformalConic) Inverse(x, y float64) (float64, float64) {
	dx := x - lcc.fe
	dy := lcc.rho0 - (y - lcc.fn)

	rho := math.Sqrt(dx*dx + dy*dy)
	if lcc.n < 0 {
		rho = -rho
	}
	theta := math.Atan2(dx, dy)

	t := math.Pow(rho/(a*lcc.bigF), 1/lcc.n)
	lam := theta/lcc.n + lcc.lon0

	// Iterate for the latitude; converges in a handful of rounds.
	phi := math.Pi/2 - 2*math.Atan(t)
	for i := 0; i < 15; i++ {
		sinPhi := math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-e*sinPhi)/(1+e*sinPhi), e/2))
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	return lam * 180 / math.Pi, phi * 180 / math.Pi
}

// RingArea returns the planar shoelace area of a projected ring in square
// metres. The ring does not need to be explicitly closed.
func RingArea(ring [][2]float64) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	for i := 0; i < len(ring); i++ {
		j := (i + 1) % len(ring)
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	return math.Abs(sum) / 2
}
