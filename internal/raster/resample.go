package raster

import (
	"math"

	"github.com/williamstreaties/atlas/pkg/geotiff"
	"github.com/williamstreaties/atlas/pkg/proj"
)

// Method picks how pixel values are interpolated. Continuous surfaces
// (elevation, NDVI) use Bilinear; categorical ones (land cover classes, fuel
// types) must use Nearest so no invented class values appear.
type Method int

const (
	Nearest Method = iota
	Bilinear
)

// Sample reads the value at a point in the raster's CRS. The second return
// is false outside the raster or on nodata.
func Sample(r *geotiff.Raster, x, y float64, m Method) (float64, bool) {
	if m == Nearest {
		col, row := r.Grid.Cell(x, y)
		if !r.Grid.Contains(col, row) {
			return 0, false
		}
		v := r.At(col, row)
		if r.IsNoData(v) || math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}

	// Continuous pixel coordinates with centers at integer positions
	fx := (x-r.Grid.OriginX)/r.Grid.DX - 0.5
	fy := (r.Grid.OriginY-y)/r.Grid.DY - 0.5

	c0 := int(math.Floor(fx))
	r0 := int(math.Floor(fy))
	wx := fx - float64(c0)
	wy := fy - float64(r0)

	type neighbor struct {
		col, row int
		weight   float64
	}
	neighbors := [4]neighbor{
		{c0, r0, (1 - wx) * (1 - wy)},
		{c0 + 1, r0, wx * (1 - wy)},
		{c0, r0 + 1, (1 - wx) * wy},
		{c0 + 1, r0 + 1, wx * wy},
	}

	var sum, weight float64
	for _, n := range neighbors {
		if !r.Grid.Contains(n.col, n.row) {
			continue
		}
		v := r.At(n.col, n.row)
		if r.IsNoData(v) || math.IsNaN(v) {
			continue
		}
		sum += v * n.weight
		weight += n.weight
	}
	if weight <= 0 {
		return 0, false
	}
	return sum / weight, true
}

// Reproject warps a raster onto a destination grid, possibly in another
// CRS. Every destination pixel center is pulled back through both
// projections and sampled from the source.
func Reproject(src *geotiff.Raster, dst geotiff.Grid, m Method) (*geotiff.Raster, error) {
	srcProj, err := proj.ByCode(src.Grid.EPSG)
	if err != nil {
		return nil, err
	}
	dstProj, err := proj.ByCode(dst.EPSG)
	if err != nil {
		return nil, err
	}

	nodata := DefaultNoData
	if src.NoData != nil {
		nodata = *src.NoData
	}
	out := geotiff.NewFilled(dst, src.Type, nodata)

	for row := 0; row < dst.Height; row++ {
		for col := 0; col < dst.Width; col++ {
			x, y := dst.PixelCenter(col, row)
			lon, lat := dstProj.Inverse(x, y)
			sx, sy := srcProj.Forward(lon, lat)
			if v, ok := Sample(src, sx, sy, m); ok {
				out.Set(col, row, v)
			}
		}
	}
	return out, nil
}
