package raster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williamstreaties/atlas/pkg/geotiff"
	"github.com/williamstreaties/atlas/pkg/proj"
)

func testRaster(originX, originY float64, width, height int, res float64, epsg int, values []float64) *geotiff.Raster {
	r := geotiff.New(geotiff.Grid{
		OriginX: originX, OriginY: originY,
		DX: res, DY: res,
		Width: width, Height: height,
		EPSG: epsg,
	}, geotiff.Float32)
	copy(r.Pix, values)
	return r
}

func TestGridForBound(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-79.8, 43.8}, Max: orb.Point{-78.3, 44.8}}
	g := GridForBound(b, 0.01, 4326)

	assert.Equal(t, 150, g.Width)
	assert.Equal(t, 100, g.Height)
	assert.Equal(t, -79.8, g.OriginX)
	assert.Equal(t, 44.8, g.OriginY)
	assert.Equal(t, 4326, g.EPSG)
}

func TestBoundInCRS(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-79.8, 43.8}, Max: orb.Point{-78.3, 44.8}}

	same, err := BoundInCRS(b, 4326)
	require.NoError(t, err)
	assert.Equal(t, b, same)

	utm, err := BoundInCRS(b, 26917)
	require.NoError(t, err)
	// Zone 17 eastings around the AOI sit between 100 km and 700 km
	assert.Greater(t, utm.Min[0], 100000.0)
	assert.Less(t, utm.Max[0], 700000.0)
	assert.Greater(t, utm.Min[1], 4.8e6)
	assert.Less(t, utm.Max[1], 5.0e6)
}

func TestWindow(t *testing.T) {
	// 4x4 raster with values 0..15, origin (0, 4), 1 unit pixels
	values := make([]float64, 16)
	for i := range values {
		values[i] = float64(i)
	}
	r := testRaster(0, 4, 4, 4, 1, 26917, values)

	// Middle 2x2 block: x 1..3, y 1..3
	w, err := Window(r, orb.Bound{Min: orb.Point{1.2, 1.2}, Max: orb.Point{2.8, 2.8}})
	require.NoError(t, err)

	assert.Equal(t, 2, w.Grid.Width)
	assert.Equal(t, 2, w.Grid.Height)
	assert.Equal(t, 1.0, w.Grid.OriginX)
	assert.Equal(t, 3.0, w.Grid.OriginY)

	// Rows 1-2, cols 1-2 of the source
	assert.Equal(t, 5.0, w.At(0, 0))
	assert.Equal(t, 6.0, w.At(1, 0))
	assert.Equal(t, 9.0, w.At(0, 1))
	assert.Equal(t, 10.0, w.At(1, 1))
}

func TestWindowClampsToRaster(t *testing.T) {
	r := testRaster(0, 2, 2, 2, 1, 4326, []float64{1, 2, 3, 4})

	w, err := Window(r, orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}})
	require.NoError(t, err)
	assert.Equal(t, 2, w.Grid.Width)
	assert.Equal(t, 2, w.Grid.Height)

	_, err = Window(r, orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{101, 101}})
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	r := testRaster(0, 2, 4, 2, 1, 4326, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	r.SetNoData(-9999)

	// Left half only
	left := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	m, err := Mask(r, left)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 2.0, m.At(1, 0))
	assert.Equal(t, -9999.0, m.At(2, 0))
	assert.Equal(t, -9999.0, m.At(3, 0))
	assert.Equal(t, 5.0, m.At(0, 1))
	assert.Equal(t, -9999.0, m.At(3, 1))
}

func TestMaskRejectsNonPolygon(t *testing.T) {
	r := testRaster(0, 2, 2, 2, 1, 4326, []float64{1, 2, 3, 4})
	_, err := Mask(r, orb.LineString{{0, 0}, {1, 1}})
	assert.Error(t, err)
}

func TestMergeAdjacent(t *testing.T) {
	t1 := testRaster(0, 2, 2, 2, 1, 26917, []float64{1, 1, 1, 1})
	t1.SetNoData(-9999)
	t2 := testRaster(2, 2, 2, 2, 1, 26917, []float64{2, 2, 2, 2})
	t2.SetNoData(-9999)

	m, err := Merge([]*geotiff.Raster{t1, t2})
	require.NoError(t, err)

	assert.Equal(t, 4, m.Grid.Width)
	assert.Equal(t, 2, m.Grid.Height)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 1.0, m.At(1, 1))
	assert.Equal(t, 2.0, m.At(2, 0))
	assert.Equal(t, 2.0, m.At(3, 1))
}

func TestMergeOverlapFirstWins(t *testing.T) {
	t1 := testRaster(0, 2, 2, 2, 1, 26917, []float64{1, 1, 1, 1})
	t1.SetNoData(-9999)
	t2 := testRaster(1, 2, 2, 2, 1, 26917, []float64{2, 2, 2, 2})
	t2.SetNoData(-9999)

	m, err := Merge([]*geotiff.Raster{t1, t2})
	require.NoError(t, err)

	assert.Equal(t, 3, m.Grid.Width)
	assert.Equal(t, 1.0, m.At(1, 0)) // overlap keeps the first tile
	assert.Equal(t, 2.0, m.At(2, 0))
}

func TestMergeFillsGapsWithNoData(t *testing.T) {
	t1 := testRaster(0, 1, 1, 1, 1, 26917, []float64{1})
	t1.SetNoData(-9999)
	t2 := testRaster(2, 1, 1, 1, 1, 26917, []float64{2})
	t2.SetNoData(-9999)

	m, err := Merge([]*geotiff.Raster{t1, t2})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Grid.Width)
	assert.Equal(t, -9999.0, m.At(1, 0))
}

func TestMergeRejectsMixedCRS(t *testing.T) {
	t1 := testRaster(0, 1, 1, 1, 1, 26917, []float64{1})
	t2 := testRaster(0, 1, 1, 1, 1, 26918, []float64{2})
	_, err := Merge([]*geotiff.Raster{t1, t2})
	assert.Error(t, err)
}

func TestDownsampleAverage(t *testing.T) {
	r := testRaster(0, 2, 4, 2, 1, 26917, []float64{
		1, 3, 10, 20,
		5, 7, 30, 40,
	})
	r.SetNoData(-9999)

	d, err := Downsample(r, 2, true)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Grid.Width)
	assert.Equal(t, 1, d.Grid.Height)
	assert.Equal(t, 2.0, d.Grid.DX)
	assert.Equal(t, 4.0, d.At(0, 0))
	assert.Equal(t, 25.0, d.At(1, 0))
}

func TestDownsampleNearest(t *testing.T) {
	r := testRaster(0, 2, 4, 2, 1, 26917, []float64{
		1, 3, 10, 20,
		5, 7, 30, 40,
	})

	d, err := Downsample(r, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.At(0, 0))
	assert.Equal(t, 10.0, d.At(1, 0))
}

func TestDownsampleSkipsNoData(t *testing.T) {
	r := testRaster(0, 2, 2, 2, 1, 26917, []float64{
		4, -9999,
		-9999, 8,
	})
	r.SetNoData(-9999)

	d, err := Downsample(r, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 6.0, d.At(0, 0))
}

func TestClipGeographic(t *testing.T) {
	values := make([]float64, 16)
	for i := range values {
		values[i] = float64(i + 1)
	}
	r := testRaster(0, 4, 4, 4, 1, 4326, values)

	leftHalf := orb.Polygon{orb.Ring{{0, 0}, {2, 0}, {2, 4}, {0, 4}, {0, 0}}}
	out, err := Clip(r, leftHalf)
	require.NoError(t, err)

	// The window keeps the column whose left edge sits on the polygon
	// boundary; masking blanks it.
	assert.Equal(t, 3, out.Grid.Width)
	assert.Equal(t, 4, out.Grid.Height)
	assert.Equal(t, 1.0, out.At(0, 0))
	assert.Equal(t, 14.0, out.At(1, 3))
	assert.True(t, out.IsNoData(out.At(2, 0)))
}

func TestClipProjected(t *testing.T) {
	p := proj.NAD83UTM(17)
	x, y := p.Forward(-79.0, 44.0)

	values := make([]float64, 400)
	for i := range values {
		values[i] = 7
	}
	r := testRaster(x-1000, y+1000, 20, 20, 100, 26917, values)

	small := orb.Polygon{orb.Ring{
		{-79.003, 43.997},
		{-78.997, 43.997},
		{-78.997, 44.003},
		{-79.003, 44.003},
		{-79.003, 43.997},
	}}
	out, err := Clip(r, small)
	require.NoError(t, err)

	assert.Less(t, out.Grid.Width, 20)
	assert.Equal(t, 26917, out.Grid.EPSG)

	s := Summary(out)
	assert.Greater(t, s.Valid, 0)
	assert.Equal(t, 7.0, s.Min)
	assert.Equal(t, 7.0, s.Max)
}
