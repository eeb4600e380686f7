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

package reach

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
)

// testSR is the spatial reference used by the shapefile fixtures.
const testSR = `PROJCS["Lambert_Conformal_Conic",GEOGCS["GCS_unnamed ellipse",DATUM["D_unknown",SPHEROID["Unknown",6370997,0]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]],PROJECTION["Lambert_Conformal_Conic"],PARAMETER["standard_parallel_1",33],PARAMETER["standard_parallel_2",45],PARAMETER["latitude_of_origin",40],PARAMETER["central_meridian",-97],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["Meter",1]]`

// writePolygonShapefile writes a polygon shapefile fixture with an id
// attribute column and a .prj sidecar.
func writePolygonShapefile(t *testing.T, filename, wkt string, ids []string, polys []geom.Polygon) {
	t.Helper()
	e, err := shp.NewEncoderFromFields(filename, goshp.POLYGON, goshp.StringField("id", 20))
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range polys {
		if err := e.EncodeFields(p, ids[i]); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()
	prj := strings.TrimSuffix(filename, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(wkt), 0644); err != nil {
		t.Fatal(err)
	}
}

// writePointShapefile writes a point shapefile fixture with a .prj
// sidecar.
func writePointShapefile(t *testing.T, filename, wkt string, points []geom.Point) {
	t.Helper()
	e, err := shp.NewEncoderFromFields(filename, goshp.POINT, goshp.StringField("id", 20))
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range points {
		if err := e.EncodeFields(p, fixtureID(i)); err != nil {
			t.Fatal(err)
		}
	}
	e.Close()
	prj := strings.TrimSuffix(filename, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(wkt), 0644); err != nil {
		t.Fatal(err)
	}
}

func fixtureID(i int) string { return string(rune('a' + i)) }

// sampleSR parses the fixture spatial reference.
func sampleSR() (*proj.SR, error) { return proj.Parse(testSR) }

// writeTileFixtures writes matching area, clip, and bbox shapefiles for
// the given tiles and returns the three file names.
func writeTileFixtures(t *testing.T, dir, wkt string, ids []string, polys []geom.Polygon) (area, clip, bbox string) {
	t.Helper()
	area = filepath.Join(dir, "area.shp")
	clip = filepath.Join(dir, "clip.shp")
	bbox = filepath.Join(dir, "bbox.shp")
	writePolygonShapefile(t, area, wkt, ids, polys)
	writePolygonShapefile(t, clip, wkt, ids, polys)
	bboxes := make([]geom.Polygon, len(polys))
	for i, p := range polys {
		b := p.Bounds()
		bboxes[i] = geom.Polygon{{
			{X: b.Min.X, Y: b.Min.Y},
			{X: b.Max.X, Y: b.Min.Y},
			{X: b.Max.X, Y: b.Max.Y},
			{X: b.Min.X, Y: b.Max.Y},
			{X: b.Min.X, Y: b.Min.Y},
		}}
	}
	writePolygonShapefile(t, bbox, wkt, ids, bboxes)
	return
}

func TestAreaIterator(t *testing.T) {
	dir := t.TempDir()
	// Written largest first to prove iteration re-orders by area.
	ids := []string{"big", "small", "medium"}
	polys := []geom.Polygon{
		square(geom.Point{X: 0, Y: 0}, 3000),
		square(geom.Point{X: 10000, Y: 0}, 1000),
		square(geom.Point{X: 20000, Y: 0}, 2000),
	}
	area, clip, bbox := writeTileFixtures(t, dir, testSR, ids, polys)

	it, err := NewAreaIterator(area, clip, bbox, "id")
	if err != nil {
		t.Fatal(err)
	}
	if it.Len() != 3 {
		t.Fatalf("got %d tiles; want 3", it.Len())
	}
	if it.SR() == nil {
		t.Fatal("iterator has no spatial reference")
	}

	wantIDs := []string{"small", "medium", "big"}
	wantProgress := []float64{100. / 3, 200. / 3, 100}
	var lastArea float64
	for i := 0; ; i++ {
		tile, ok := it.Next()
		if !ok {
			if i != 3 {
				t.Fatalf("iteration stopped after %d tiles; want 3", i)
			}
			break
		}
		if tile.ID != wantIDs[i] {
			t.Errorf("tile %d: id = %q; want %q", i, tile.ID, wantIDs[i])
		}
		if tile.Index != i {
			t.Errorf("tile %d: index = %d", i, tile.Index)
		}
		if math.Abs(tile.Progress-wantProgress[i]) > 1.e-12 {
			t.Errorf("tile %d: progress = %g; want %g", i, tile.Progress, wantProgress[i])
		}
		if a := tile.Area(); a < lastArea {
			t.Errorf("tile %d: area %g is smaller than the previous tile's %g", i, a, lastArea)
		} else {
			lastArea = a
		}
		if tile.Clip == nil || tile.BBox == nil {
			t.Errorf("tile %d: missing clip or bbox", i)
		}
	}
	// The sequence does not restart.
	if _, ok := it.Next(); ok {
		t.Error("exhausted iterator yielded another tile")
	}
}

func TestAreaIterator_skipUnmatched(t *testing.T) {
	dir := t.TempDir()
	ids := []string{"a", "b", "c"}
	polys := []geom.Polygon{
		square(geom.Point{X: 0, Y: 0}, 1000),
		square(geom.Point{X: 10000, Y: 0}, 2000),
		square(geom.Point{X: 20000, Y: 0}, 3000),
	}
	area := filepath.Join(dir, "area.shp")
	clip := filepath.Join(dir, "clip.shp")
	bbox := filepath.Join(dir, "bbox.shp")
	writePolygonShapefile(t, area, testSR, ids, polys)
	// Clip source is missing feature "b".
	writePolygonShapefile(t, clip, testSR, []string{"a", "c"}, []geom.Polygon{polys[0], polys[2]})
	writePolygonShapefile(t, bbox, testSR, ids, polys)

	it, err := NewAreaIterator(area, clip, bbox, "id")
	if err != nil {
		t.Fatal(err)
	}
	if it.Len() != 2 {
		t.Fatalf("got %d tiles; want 2", it.Len())
	}
	var last *Tile
	for {
		tile, ok := it.Next()
		if !ok {
			break
		}
		if tile.ID == "b" {
			t.Error("unmatched tile b was yielded")
		}
		last = tile
	}
	// Progress still reaches exactly 100 when features are skipped.
	if last == nil {
		t.Fatal("no tiles were yielded")
	}
	if last.Progress != 100 {
		t.Errorf("last tile progress = %v; want 100", last.Progress)
	}
}

func TestAreaIterator_srMismatch(t *testing.T) {
	dir := t.TempDir()
	ids := []string{"a"}
	polys := []geom.Polygon{square(geom.Point{X: 0, Y: 0}, 1000)}
	area := filepath.Join(dir, "area.shp")
	clip := filepath.Join(dir, "clip.shp")
	bbox := filepath.Join(dir, "bbox.shp")
	writePolygonShapefile(t, area, testSR, ids, polys)
	// Shift the clip source's central meridian.
	otherSR := strings.Replace(testSR, `"central_meridian",-97`, `"central_meridian",-90`, 1)
	writePolygonShapefile(t, clip, otherSR, ids, polys)
	writePolygonShapefile(t, bbox, testSR, ids, polys)

	_, err := NewAreaIterator(area, clip, bbox, "id")
	if err == nil {
		t.Fatal("no error from mismatched spatial references")
	}
	if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("error is a %T; want *ConfigurationError", err)
	}
}

func TestAreaIterator_missingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewAreaIterator(
		filepath.Join(dir, "nonexistent.shp"),
		filepath.Join(dir, "nonexistent.shp"),
		filepath.Join(dir, "nonexistent.shp"),
		"id")
	if err == nil {
		t.Fatal("no error from a missing area source")
	}
	if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("error is a %T; want *ConfigurationError", err)
	}
}

func TestLoadPoints(t *testing.T) {
	dir := t.TempDir()
	ids := []string{"a"}
	polys := []geom.Polygon{square(geom.Point{X: 0, Y: 0}, 1000)}
	area, clip, bbox := writeTileFixtures(t, dir, testSR, ids, polys)
	it, err := NewAreaIterator(area, clip, bbox, "id")
	if err != nil {
		t.Fatal(err)
	}

	pointFile := filepath.Join(dir, "points.shp")
	writePointShapefile(t, pointFile, testSR, []geom.Point{
		{X: 0, Y: 0},
		{X: 500, Y: 500},
		{X: 5000, Y: 5000}, // outside the tile
	})
	pi, err := LoadPoints(pointFile, it.SR())
	if err != nil {
		t.Fatal(err)
	}
	if pi.Len() != 3 {
		t.Fatalf("got %d points; want 3", pi.Len())
	}

	tile, _ := it.Next()
	within := pi.Within(tile.Polygonal)
	if len(within) != 2 {
		t.Errorf("got %d points within the tile; want 2", len(within))
	}
}

func TestLoadPoints_missingFile(t *testing.T) {
	sr, err := sampleSR()
	if err != nil {
		t.Fatal(err)
	}
	_, err = LoadPoints(filepath.Join(t.TempDir(), "nonexistent.shp"), sr)
	if err == nil {
		t.Fatal("no error from a missing point source")
	}
	if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("error is a %T; want *ConfigurationError", err)
	}
}
