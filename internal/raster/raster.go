// Package raster has the grid operations the elevation, land cover and fuel
// commands share: windowing, polygon masking, mosaicking, downsampling and
// CRS warps. Everything works on the one-band rasters pkg/geotiff reads.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/geotiff"
	"github.com/williamstreaties/atlas/pkg/proj"
)

// DefaultNoData fills pixels no source covered.
const DefaultNoData = -9999.0

// GridForBound lays a north-up grid over a bound at the given resolution.
// Width and height round up so the grid always covers the full bound.
func GridForBound(b orb.Bound, res float64, epsg int) geotiff.Grid {
	width := int(math.Ceil((b.Max[0] - b.Min[0]) / res))
	height := int(math.Ceil((b.Max[1] - b.Min[1]) / res))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return geotiff.Grid{
		OriginX: b.Min[0],
		OriginY: b.Max[1],
		DX:      res,
		DY:      res,
		Width:   width,
		Height:  height,
		EPSG:    epsg,
	}
}

// BoundInCRS projects a geographic bound into another CRS. The edges are
// densified before projecting because straight edges bow under projection.
func BoundInCRS(b orb.Bound, epsg int) (orb.Bound, error) {
	if epsg == 4326 {
		return b, nil
	}
	p, err := proj.ByCode(epsg)
	if err != nil {
		return orb.Bound{}, err
	}

	out := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	extend := func(lon, lat float64) {
		x, y := p.Forward(lon, lat)
		out.Min[0] = math.Min(out.Min[0], x)
		out.Min[1] = math.Min(out.Min[1], y)
		out.Max[0] = math.Max(out.Max[0], x)
		out.Max[1] = math.Max(out.Max[1], y)
	}

	const steps = 16
	for i := 0; i <= steps; i++ {
		t := float64(i) / steps
		lon := b.Min[0] + t*(b.Max[0]-b.Min[0])
		lat := b.Min[1] + t*(b.Max[1]-b.Min[1])
		extend(lon, b.Min[1])
		extend(lon, b.Max[1])
		extend(b.Min[0], lat)
		extend(b.Max[0], lat)
	}
	return out, nil
}

// GeographicBound returns a grid's footprint as a WGS84 bbox, densifying
// the edges on the way back just like BoundInCRS does on the way in.
func GeographicBound(g geotiff.Grid) (orb.Bound, error) {
	minX, minY, maxX, maxY := g.Bounds()
	if g.EPSG == 4326 {
		return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}, nil
	}
	p, err := proj.ByCode(g.EPSG)
	if err != nil {
		return orb.Bound{}, err
	}

	out := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	extend := func(x, y float64) {
		lon, lat := p.Inverse(x, y)
		out.Min[0] = math.Min(out.Min[0], lon)
		out.Min[1] = math.Min(out.Min[1], lat)
		out.Max[0] = math.Max(out.Max[0], lon)
		out.Max[1] = math.Max(out.Max[1], lat)
	}

	const steps = 16
	for i := 0; i <= steps; i++ {
		t := float64(i) / steps
		x := minX + t*(maxX-minX)
		y := minY + t*(maxY-minY)
		extend(x, minY)
		extend(x, maxY)
		extend(minX, y)
		extend(maxX, y)
	}
	return out, nil
}

// Window copies the sub-raster covering a bound given in the raster's own
// CRS. The window is clamped to the raster; an empty intersection is an
// error.
func Window(r *geotiff.Raster, b orb.Bound) (*geotiff.Raster, error) {
	minCol, minRow := r.Grid.Cell(b.Min[0], b.Max[1])
	maxCol, maxRow := r.Grid.Cell(b.Max[0], b.Min[1])

	if minCol < 0 {
		minCol = 0
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxCol > r.Grid.Width-1 {
		maxCol = r.Grid.Width - 1
	}
	if maxRow > r.Grid.Height-1 {
		maxRow = r.Grid.Height - 1
	}
	if minCol > maxCol || minRow > maxRow {
		return nil, fmt.Errorf("window does not intersect raster")
	}

	grid := geotiff.Grid{
		OriginX: r.Grid.OriginX + float64(minCol)*r.Grid.DX,
		OriginY: r.Grid.OriginY - float64(minRow)*r.Grid.DY,
		DX:      r.Grid.DX,
		DY:      r.Grid.DY,
		Width:   maxCol - minCol + 1,
		Height:  maxRow - minRow + 1,
		EPSG:    r.Grid.EPSG,
	}

	out := geotiff.New(grid, r.Type)
	out.NoData = r.NoData
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			out.Set(col, row, r.At(minCol+col, minRow+row))
		}
	}
	return out, nil
}

// Mask writes nodata over every pixel whose center falls outside the
// geometry. The geometry must be polygonal and in the raster's CRS.
func Mask(r *geotiff.Raster, g orb.Geometry) (*geotiff.Raster, error) {
	mp, err := asMultiPolygon(g)
	if err != nil {
		return nil, err
	}

	out := geotiff.New(r.Grid, r.Type)
	nodata := DefaultNoData
	if r.NoData != nil {
		nodata = *r.NoData
	}
	out.SetNoData(nodata)

	for row := 0; row < r.Grid.Height; row++ {
		for col := 0; col < r.Grid.Width; col++ {
			x, y := r.Grid.PixelCenter(col, row)
			if planar.MultiPolygonContains(mp, orb.Point{x, y}) {
				out.Set(col, row, r.At(col, row))
			} else {
				out.Set(col, row, nodata)
			}
		}
	}
	return out, nil
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	case orb.Bound:
		return orb.MultiPolygon{v.ToPolygon()}, nil
	}
	return nil, fmt.Errorf("cannot mask with geometry type %T", g)
}

// Clip windows a raster to a geographic geometry's envelope and masks the
// pixels outside it. The geometry is EPSG:4326 and gets projected into the
// raster's CRS first.
func Clip(r *geotiff.Raster, g orb.Geometry) (*geotiff.Raster, error) {
	if r.Grid.EPSG != 4326 {
		p, err := proj.ByCode(r.Grid.EPSG)
		if err != nil {
			return nil, err
		}
		g = geo.ToProjected(g, p)
	}

	windowed, err := Window(r, g.Bound())
	if err != nil {
		return nil, err
	}
	return Mask(windowed, g)
}

// ToGeographic warps a projected raster onto an EPSG:4326 grid covering the
// same footprint with the same pixel dimensions. Geographic rasters pass
// through untouched.
func ToGeographic(r *geotiff.Raster, m Method) (*geotiff.Raster, error) {
	if r.Grid.EPSG == 4326 {
		return r, nil
	}

	b, err := GeographicBound(r.Grid)
	if err != nil {
		return nil, err
	}
	dst := geotiff.Grid{
		OriginX: b.Min[0],
		OriginY: b.Max[1],
		DX:      (b.Max[0] - b.Min[0]) / float64(r.Grid.Width),
		DY:      (b.Max[1] - b.Min[1]) / float64(r.Grid.Height),
		Width:   r.Grid.Width,
		Height:  r.Grid.Height,
		EPSG:    4326,
	}
	return Reproject(r, dst, m)
}

// Merge mosaics tiles sharing a CRS and resolution onto one grid. Where
// tiles overlap the first valid value wins.
func Merge(tiles []*geotiff.Raster) (*geotiff.Raster, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles to merge")
	}

	first := tiles[0]
	for _, t := range tiles[1:] {
		if t.Grid.EPSG != first.Grid.EPSG {
			return nil, fmt.Errorf("cannot merge tiles in different CRSs (%d and %d)", first.Grid.EPSG, t.Grid.EPSG)
		}
		if math.Abs(t.Grid.DX-first.Grid.DX) > 1e-9 || math.Abs(t.Grid.DY-first.Grid.DY) > 1e-9 {
			return nil, fmt.Errorf("cannot merge tiles with different resolutions")
		}
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, t := range tiles {
		x0, y0, x1, y1 := t.Grid.Bounds()
		minX = math.Min(minX, x0)
		minY = math.Min(minY, y0)
		maxX = math.Max(maxX, x1)
		maxY = math.Max(maxY, y1)
	}

	nodata := DefaultNoData
	for _, t := range tiles {
		if t.NoData != nil {
			nodata = *t.NoData
			break
		}
	}

	grid := geotiff.Grid{
		OriginX: minX,
		OriginY: maxY,
		DX:      first.Grid.DX,
		DY:      first.Grid.DY,
		Width:   int(math.Round((maxX - minX) / first.Grid.DX)),
		Height:  int(math.Round((maxY - minY) / first.Grid.DY)),
		EPSG:    first.Grid.EPSG,
	}
	out := geotiff.NewFilled(grid, first.Type, nodata)

	for _, t := range tiles {
		col0 := int(math.Round((t.Grid.OriginX - grid.OriginX) / grid.DX))
		row0 := int(math.Round((grid.OriginY - t.Grid.OriginY) / grid.DY))

		for row := 0; row < t.Grid.Height; row++ {
			for col := 0; col < t.Grid.Width; col++ {
				dc, dr := col0+col, row0+row
				if !grid.Contains(dc, dr) {
					continue
				}
				if !out.IsNoData(out.At(dc, dr)) {
					continue
				}
				v := t.At(col, row)
				if t.IsNoData(v) {
					continue
				}
				out.Set(dc, dr, v)
			}
		}
	}
	return out, nil
}

// Downsample shrinks a raster by an integer factor. Continuous data averages
// each block; categorical data keeps the block's top-left sample.
func Downsample(r *geotiff.Raster, factor int, average bool) (*geotiff.Raster, error) {
	if factor < 1 {
		return nil, fmt.Errorf("invalid downsample factor %d", factor)
	}
	if factor == 1 {
		return r, nil
	}

	grid := geotiff.Grid{
		OriginX: r.Grid.OriginX,
		OriginY: r.Grid.OriginY,
		DX:      r.Grid.DX * float64(factor),
		DY:      r.Grid.DY * float64(factor),
		Width:   (r.Grid.Width + factor - 1) / factor,
		Height:  (r.Grid.Height + factor - 1) / factor,
		EPSG:    r.Grid.EPSG,
	}

	nodata := DefaultNoData
	if r.NoData != nil {
		nodata = *r.NoData
	}
	out := geotiff.NewFilled(grid, r.Type, nodata)

	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			if !average {
				v := r.At(col*factor, row*factor)
				if !r.IsNoData(v) {
					out.Set(col, row, v)
				}
				continue
			}

			var sum float64
			var n int
			for dy := 0; dy < factor; dy++ {
				for dx := 0; dx < factor; dx++ {
					sc, sr := col*factor+dx, row*factor+dy
					if !r.Grid.Contains(sc, sr) {
						continue
					}
					v := r.At(sc, sr)
					if r.IsNoData(v) || math.IsNaN(v) {
						continue
					}
					sum += v
					n++
				}
			}
			if n > 0 {
				out.Set(col, row, sum/float64(n))
			}
		}
	}
	return out, nil
}
