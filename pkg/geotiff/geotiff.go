// Package geotiff reads and writes single-band GeoTIFF rasters. It covers
// the subset of the format the pipeline's datasets actually use: classic
// (non-Big) TIFFs, strip or tile organisation, no compression or Deflate,
// horizontal-differencing predictor, and unsigned/signed integer or floating
// point samples. Georeferencing follows the GeoTIFF 1.1 specification
// (ModelPixelScale + ModelTiepoint + GeoKeyDirectory) and the GDAL nodata
// convention (ASCII tag 42113).
package geotiff

import (
	"fmt"
	"math"
)

// SampleType identifies the on-disk sample encoding of a band.
type SampleType int

const (
	Uint8 SampleType = iota
	Uint16
	Int16
	Uint32
	Float32
	Float64
)

func (t SampleType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "unknown"
}

// bits returns bits per sample and the TIFF sample format code.
func (t SampleType) bits() (uint16, uint16) {
	switch t {
	case Uint8:
		return 8, 1
	case Uint16:
		return 16, 1
	case Int16:
		return 16, 2
	case Uint32:
		return 32, 1
	case Float32:
		return 32, 3
	case Float64:
		return 64, 3
	}
	return 0, 0
}

// A Grid georeferences a regular raster: the world coordinate of the outer
// corner of pixel (0,0), pixel sizes in CRS units, dimensions and the EPSG
// code. DY is positive; rows advance southward (north-up rasters only).
type Grid struct {
	OriginX float64
	OriginY float64
	DX      float64
	DY      float64
	Width   int
	Height  int
	EPSG    int
}

// Bounds returns (minX, minY, maxX, maxY) of the full grid in CRS units.
func (g Grid) Bounds() (float64, float64, float64, float64) {
	return g.OriginX,
		g.OriginY - float64(g.Height)*g.DY,
		g.OriginX + float64(g.Width)*g.DX,
		g.OriginY
}

// PixelCenter returns the CRS coordinate of a pixel's centre.
func (g Grid) PixelCenter(col, row int) (float64, float64) {
	return g.OriginX + (float64(col)+0.5)*g.DX,
		g.OriginY - (float64(row)+0.5)*g.DY
}

// Cell returns the pixel containing a CRS coordinate. The pixel may lie
// outside the grid; callers check bounds.
func (g Grid) Cell(x, y float64) (int, int) {
	return int(math.Floor((x - g.OriginX) / g.DX)),
		int(math.Floor((g.OriginY - y) / g.DY))
}

// Contains reports whether the pixel indices are inside the grid.
func (g Grid) Contains(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Width && row < g.Height
}

// A Raster is a decoded single-band image. Samples are held as float64
// regardless of the on-disk type so that masking, resampling and band math
// share one code path; Type is preserved for round-tripping.
type Raster struct {
	Grid   Grid
	Type   SampleType
	NoData *float64
	Pix    []float64
}

// New allocates a raster for a grid. Pixels start at zero.
func New(grid Grid, typ SampleType) *Raster {
	return &Raster{
		Grid: grid,
		Type: typ,
		Pix:  make([]float64, grid.Width*grid.Height),
	}
}

// NewFilled allocates a raster with every pixel set to the nodata value.
func NewFilled(grid Grid, typ SampleType, nodata float64) *Raster {
	r := New(grid, typ)
	r.SetNoData(nodata)
	for i := range r.Pix {
		r.Pix[i] = nodata
	}
	return r
}

func (r *Raster) At(col, row int) float64 {
	return r.Pix[row*r.Grid.Width+col]
}

func (r *Raster) Set(col, row int, v float64) {
	r.Pix[row*r.Grid.Width+col] = v
}

// SetNoData records the nodata marker for the band.
func (r *Raster) SetNoData(v float64) {
	r.NoData = &v
}

// IsNoData reports whether a sample equals the band's nodata marker.
func (r *Raster) IsNoData(v float64) bool {
	if r.NoData == nil {
		return false
	}
	if math.IsNaN(*r.NoData) {
		return math.IsNaN(v)
	}
	return v == *r.NoData
}

// Validate checks internal consistency before encoding.
func (r *Raster) Validate() error {
	if r.Grid.Width <= 0 || r.Grid.Height <= 0 {
		return fmt.Errorf("invalid raster dimensions %dx%d", r.Grid.Width, r.Grid.Height)
	}
	if r.Grid.DX <= 0 || r.Grid.DY <= 0 {
		return fmt.Errorf("invalid pixel size %g x %g", r.Grid.DX, r.Grid.DY)
	}
	if len(r.Pix) != r.Grid.Width*r.Grid.Height {
		return fmt.Errorf("pixel buffer has %d samples, want %d", len(r.Pix), r.Grid.Width*r.Grid.Height)
	}
	return nil
}
