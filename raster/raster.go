/*
Copyright © 2026 the Reach authors.
This file is part of Reach.

Reach is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Reach is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Reach.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package raster burns scored band polygons into tile-aligned grids and
// assembles the per-tile grids into one virtual mosaic.
package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Raster is a single-band grid over a tile's bounding box. Row 0 is the
// northernmost row, matching image and GeoTIFF conventions. Cell values
// are byte scores; cells outside every band hold the NoData sentinel.
type Raster struct {
	Data *sparse.DenseArray // shape {Ny, Nx}

	// Bounds is the georeferenced extent.
	Bounds *geom.Bounds

	// CellSize is the square cell edge length.
	CellSize float64

	// NoData marks cells not covered by any band.
	NoData byte

	Nx, Ny int
}

// New creates a raster covering b at cellSize, filled with nodata. The
// extent is b exactly in the southwest corner and grows northeast to a
// whole number of cells.
func New(b *geom.Bounds, cellSize float64, nodata byte) (*Raster, error) {
	if b == nil || b.Empty() {
		return nil, fmt.Errorf("raster: empty bounds")
	}
	if !(cellSize > 0) {
		return nil, fmt.Errorf("raster: cell size %g must be positive", cellSize)
	}
	nx := int(math.Ceil((b.Max.X - b.Min.X) / cellSize))
	ny := int(math.Ceil((b.Max.Y - b.Min.Y) / cellSize))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	r := &Raster{
		Data: sparse.ZerosDense(ny, nx),
		Bounds: &geom.Bounds{
			Min: b.Min,
			Max: geom.Point{
				X: b.Min.X + float64(nx)*cellSize,
				Y: b.Min.Y + float64(ny)*cellSize,
			},
		},
		CellSize: cellSize,
		NoData:   nodata,
		Nx:       nx,
		Ny:       ny,
	}
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			r.Data.Set(float64(nodata), row, col)
		}
	}
	return r, nil
}

// Value returns the cell value at row, col.
func (r *Raster) Value(row, col int) byte {
	return byte(r.Data.Get(row, col))
}

// ValueAt returns the cell value at a georeferenced location, and false
// when the location is outside the raster.
func (r *Raster) ValueAt(p geom.Point) (byte, bool) {
	col := int(math.Floor((p.X - r.Bounds.Min.X) / r.CellSize))
	row := int(math.Floor((r.Bounds.Max.Y - p.Y) / r.CellSize))
	if col < 0 || col >= r.Nx || row < 0 || row >= r.Ny {
		return 0, false
	}
	return r.Value(row, col), true
}

// CellPolygon returns the square covered by the cell at row, col.
func (r *Raster) CellPolygon(row, col int) geom.Polygon {
	x0 := r.Bounds.Min.X + float64(col)*r.CellSize
	y1 := r.Bounds.Max.Y - float64(row)*r.CellSize
	x1 := x0 + r.CellSize
	y0 := y1 - r.CellSize
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

// Burn sets every cell whose square intersects p to val. All touched
// cells are burned, not just those whose centers are covered, so thin
// polygons never vanish to under-sampling.
func (r *Raster) Burn(p geom.Polygonal, val byte) {
	if p == nil {
		return
	}
	b := p.Bounds()
	if b.Empty() {
		return
	}
	col0 := int(math.Floor((b.Min.X - r.Bounds.Min.X) / r.CellSize))
	col1 := int(math.Ceil((b.Max.X - r.Bounds.Min.X) / r.CellSize))
	row0 := int(math.Floor((r.Bounds.Max.Y - b.Max.Y) / r.CellSize))
	row1 := int(math.Ceil((r.Bounds.Max.Y - b.Min.Y) / r.CellSize))
	if col0 < 0 {
		col0 = 0
	}
	if row0 < 0 {
		row0 = 0
	}
	if col1 > r.Nx {
		col1 = r.Nx
	}
	if row1 > r.Ny {
		row1 = r.Ny
	}
	for row := row0; row < row1; row++ {
		for col := col0; col < col1; col++ {
			cell := r.CellPolygon(row, col)
			if isect := cell.Intersection(p); isect.Area() > 0 {
				r.Data.Set(float64(val), row, col)
			}
		}
	}
}

// Rasterize burns the scored bands into a new raster covering b. Bands
// are expected to be pairwise disjoint; along shared edges all-touched
// burning makes boundary cells contested, so bands are burned from the
// largest threshold down and the innermost band wins those cells. An
// empty band list yields an all-nodata raster, never an error.
func Rasterize(bands []Scored, b *geom.Bounds, cellSize float64, nodata byte) (*Raster, error) {
	r, err := New(b, cellSize, nodata)
	if err != nil {
		return nil, err
	}
	for i := len(bands) - 1; i >= 0; i-- {
		r.Burn(bands[i].Polygonal, bands[i].Score)
	}
	return r, nil
}

// Scored is a polygon carrying the value to burn.
type Scored struct {
	geom.Polygonal
	Score byte
}
