package proj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUTMZone(t *testing.T) {
	assert.Equal(t, 17, UTMZone(-81.0))   // zone 17 central meridian
	assert.Equal(t, 17, UTMZone(-78.001)) // just inside zone 17
	assert.Equal(t, 18, UTMZone(-78.0))   // zone boundary belongs to 18
	assert.Equal(t, 18, UTMZone(-76.92))  // eastern edge of the treaty area
}

func TestUTMCentralMeridian(t *testing.T) {
	utm := NAD83UTM(17)

	// On the central meridian at the equator the projection is its false
	// origin by definition.
	x, y := utm.Forward(-81.0, 0)
	assert.InDelta(t, 500000, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	// 44 N on the central meridian: x stays on the false easting, y is the
	// scaled meridional arc (~4,870 km).
	x, y = utm.Forward(-81.0, 44.0)
	assert.InDelta(t, 500000, x, 1e-6)
	assert.Greater(t, y, 4.8e6)
	assert.Less(t, y, 4.9e6)

	// East of the central meridian eastings grow.
	x, _ = utm.Forward(-78.5, 44.0)
	assert.Greater(t, x, 500000.0)
}

func TestUTMRoundTrip(t *testing.T) {
	utm := NAD83UTM(17)

	points := [][2]float64{
		{-79.8, 43.8}, // fallback AOI southwest corner
		{-78.3, 44.8},
		{-78.968, 44.171},
		{-80.81, 43.64},
	}

	for _, p := range points {
		x, y := utm.Forward(p[0], p[1])
		lon, lat := utm.Inverse(x, y)
		assert.InDelta(t, p[0], lon, 1e-8)
		assert.InDelta(t, p[1], lat, 1e-8)
	}
}

func TestUTMZone18RoundTrip(t *testing.T) {
	utm := NAD83UTM(18)
	assert.Equal(t, 26918, utm.Code())

	x, y := utm.Forward(-77.5, 45.5)
	lon, lat := utm.Inverse(x, y)
	assert.InDelta(t, -77.5, lon, 1e-8)
	assert.InDelta(t, 45.5, lat, 1e-8)
}

func TestStatCanLambertOrigin(t *testing.T) {
	lcc := StatCanLambert()
	assert.Equal(t, 3347, lcc.Code())

	// The false origin maps to the false easting/northing exactly.
	x, y := lcc.Forward(-91.0-52.0/60.0, 63.390675)
	assert.InDelta(t, 6200000, x, 1e-3)
	assert.InDelta(t, 3000000, y, 1e-3)
}

func TestStatCanLambertRoundTrip(t *testing.T) {
	lcc := StatCanLambert()

	points := [][2]float64{
		{-79.0, 44.0},
		{-80.81, 43.64},
		{-76.92, 46.39},
	}

	for _, p := range points {
		x, y := lcc.Forward(p[0], p[1])
		lon, lat := lcc.Inverse(x, y)
		assert.InDelta(t, p[0], lon, 1e-7)
		assert.InDelta(t, p[1], lat, 1e-7)
	}
}

func TestCanadaAtlasLambert(t *testing.T) {
	lcc := CanadaAtlasLambert()
	assert.Equal(t, 3978, lcc.Code())

	// No false offsets, so the origin maps to (0, 0).
	x, y := lcc.Forward(-95, 49)
	assert.InDelta(t, 0, x, 1e-3)
	assert.InDelta(t, 0, y, 1e-3)

	// The treaty area sits far east of the central meridian; south of the
	// 49 N origin the cone curvature pulls northings negative.
	x, y = lcc.Forward(-79.0, 44.4)
	assert.Greater(t, x, 1.0e6)
	assert.Less(t, y, 0.0)

	lon, lat := lcc.Inverse(x, y)
	assert.InDelta(t, -79.0, lon, 1e-7)
	assert.InDelta(t, 44.4, lat, 1e-7)
}

func TestByCode(t *testing.T) {
	p, err := ByCode(26917)
	assert.NoError(t, err)
	assert.Equal(t, 26917, p.Code())

	p, err = ByCode(4326)
	assert.NoError(t, err)
	x, y := p.Forward(-79.0, 44.0)
	assert.Equal(t, -79.0, x)
	assert.Equal(t, 44.0, y)

	p, err = ByCode(32617)
	assert.NoError(t, err)
	assert.Equal(t, 32617, p.Code())

	p, err = ByCode(3978)
	assert.NoError(t, err)
	assert.Equal(t, 3978, p.Code())

	_, err = ByCode(3857)
	assert.Error(t, err) // web mercator is not used anywhere in the pipeline
}

func TestWGS84UTMMatchesNAD83(t *testing.T) {
	w := WGS84UTM(17)
	n := NAD83UTM(17)

	wx, wy := w.Forward(-79.37, 44.52)
	nx, ny := n.Forward(-79.37, 44.52)
	assert.InDelta(t, nx, wx, 1e-9)
	assert.InDelta(t, ny, wy, 1e-9)

	lon, lat := w.Inverse(wx, wy)
	assert.InDelta(t, -79.37, lon, 1e-7)
	assert.InDelta(t, 44.52, lat, 1e-7)
}

func TestRingArea(t *testing.T) {
	square := [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	assert.InDelta(t, 1.0, RingArea(square), 1e-12)

	// Closed rings give the same answer.
	closed := append(square, [2]float64{0, 0})
	assert.InDelta(t, 1.0, RingArea(closed), 1e-12)

	rect := [][2]float64{{0, 0}, {3, 0}, {3, 2}, {0, 2}}
	assert.InDelta(t, 6.0, RingArea(rect), 1e-12)

	assert.Equal(t, 0.0, RingArea(square[:2]))
}

func TestProjectedCellArea(t *testing.T) {
	// A 0.01 x 0.01 degree cell near 44 N is roughly 1.11 km x 0.80 km.
	utm := NAD83UTM(17)

	ring := [][2]float64{}
	for _, c := range [][2]float64{{-78.5, 44.0}, {-78.49, 44.0}, {-78.49, 44.01}, {-78.5, 44.01}} {
		x, y := utm.Forward(c[0], c[1])
		ring = append(ring, [2]float64{x, y})
	}

	area := RingArea(ring)
	assert.Greater(t, area, 0.85e6)
	assert.Less(t, area, 0.95e6)
}
