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

package raster

import (
	"testing"

	"github.com/ctessum/geom"
)

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

func TestNew(t *testing.T) {
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 95, Y: 100}}
	r, err := New(b, 10, 255)
	if err != nil {
		t.Fatal(err)
	}
	// 95 units at cell size 10 round up to 10 cells.
	if r.Nx != 10 || r.Ny != 10 {
		t.Errorf("grid is %d x %d; want 10 x 10", r.Nx, r.Ny)
	}
	if r.Bounds.Max.X != 100 || r.Bounds.Max.Y != 100 {
		t.Errorf("extent max = %v; want {100 100}", r.Bounds.Max)
	}
	for row := 0; row < r.Ny; row++ {
		for col := 0; col < r.Nx; col++ {
			if v := r.Value(row, col); v != 255 {
				t.Fatalf("cell (%d, %d) = %d; want the nodata sentinel 255", row, col, v)
			}
		}
	}
}

func TestNew_badInput(t *testing.T) {
	if _, err := New(nil, 10, 255); err == nil {
		t.Error("no error from nil bounds")
	}
	if _, err := New(geom.NewBounds(), 10, 255); err == nil {
		t.Error("no error from empty bounds")
	}
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 100, Y: 100}}
	if _, err := New(b, 0, 255); err == nil {
		t.Error("no error from zero cell size")
	}
}

func TestRasterize(t *testing.T) {
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 100, Y: 100}}
	bands := []Scored{
		{Polygonal: rect(0, 0, 40, 40), Score: 5},
		{Polygonal: rect(60, 60, 100, 100), Score: 4},
	}
	r, err := Rasterize(bands, b, 10, 255)
	if err != nil {
		t.Fatal(err)
	}

	samples := []struct {
		p    geom.Point
		want byte
	}{
		{geom.Point{X: 5, Y: 5}, 5},
		{geom.Point{X: 35, Y: 35}, 5},
		{geom.Point{X: 65, Y: 65}, 4},
		{geom.Point{X: 95, Y: 95}, 4},
		{geom.Point{X: 55, Y: 5}, 255},
		{geom.Point{X: 5, Y: 95}, 255},
	}
	for _, s := range samples {
		got, ok := r.ValueAt(s.p)
		if !ok {
			t.Errorf("point %v is outside the raster", s.p)
			continue
		}
		if got != s.want {
			t.Errorf("value at %v = %d; want %d", s.p, got, s.want)
		}
	}
	if _, ok := r.ValueAt(geom.Point{X: -5, Y: 50}); ok {
		t.Error("a point outside the extent reported a value")
	}
}

func TestRasterize_empty(t *testing.T) {
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 50, Y: 50}}
	r, err := Rasterize(nil, b, 10, 255)
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < r.Ny; row++ {
		for col := 0; col < r.Nx; col++ {
			if v := r.Value(row, col); v != 255 {
				t.Fatalf("cell (%d, %d) = %d; want 255", row, col, v)
			}
		}
	}
}

func TestBurn_allTouched(t *testing.T) {
	// A sliver much thinner than a cell must still mark every cell it
	// crosses.
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 100, Y: 100}}
	r, err := New(b, 10, 255)
	if err != nil {
		t.Fatal(err)
	}
	r.Burn(rect(0, 49.9, 100, 50.1), 3)
	for col := 0; col < r.Nx; col++ {
		burned := false
		for row := 0; row < r.Ny; row++ {
			if r.Value(row, col) == 3 {
				burned = true
			}
		}
		if !burned {
			t.Errorf("column %d has no burned cell", col)
		}
	}
}

func TestRasterize_innermostWins(t *testing.T) {
	// Two bands sharing an edge contest the boundary cells; the band
	// earlier in the list (the higher score) must win them.
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 100, Y: 100}}
	bands := []Scored{
		{Polygonal: rect(0, 0, 45, 100), Score: 5},
		{Polygonal: rect(45, 0, 100, 100), Score: 4},
	}
	r, err := Rasterize(bands, b, 10, 255)
	if err != nil {
		t.Fatal(err)
	}
	// Column 4 spans x in [40, 50) and intersects both bands.
	for row := 0; row < r.Ny; row++ {
		if v := r.Value(row, 4); v != 5 {
			t.Errorf("contested cell (%d, 4) = %d; want 5", row, v)
		}
	}
}
