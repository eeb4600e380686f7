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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

func TestCreateBuffers(t *testing.T) {
	cfg := pipelineFixture(t)
	gen := newFakeGenerator(t, 5)
	outFile := filepath.Join(cfg.OutputDir, "buffers.shp")

	if err := CreateBuffers(context.Background(), cfg, gen, outFile); err != nil {
		t.Fatal(err)
	}

	d, err := shp.NewDecoder(outFile)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	// The bands are co-registered with the study tiles.
	sr, err := d.SR()
	if err != nil {
		t.Fatalf("output has no readable spatial reference: %v", err)
	}
	fixtureSR, err := sampleSR()
	if err != nil {
		t.Fatal(err)
	}
	if !sr.Equal(fixtureSR, 10) {
		t.Error("output spatial reference differs from the area source")
	}

	type band struct {
		rank, score string
	}
	var bands []band
	for {
		g, fields, more := d.DecodeRowFields("rank", "score")
		if !more {
			break
		}
		if _, ok := g.(geom.Polygonal); !ok {
			t.Errorf("band feature is a %T; expected a polygon", g)
		}
		bands = append(bands, band{
			rank:  strings.TrimSpace(fields["rank"]),
			score: strings.TrimSpace(fields["score"]),
		})
	}
	if err := d.Error(); err != nil {
		t.Fatal(err)
	}
	// Two thresholds decompose into two bands.
	if len(bands) != 2 {
		t.Fatalf("got %d band features; want 2", len(bands))
	}
	want := []band{{rank: "0", score: "5"}, {rank: "1", score: "4"}}
	for i, b := range bands {
		if b != want[i] {
			t.Errorf("band %d = %+v; want %+v", i, b, want[i])
		}
	}
}

func TestCreateBuffers_generatorFailure(t *testing.T) {
	cfg := pipelineFixture(t)
	gen := newFakeGenerator(t, 5)
	gen.fail = true
	outFile := filepath.Join(cfg.OutputDir, "buffers.shp")

	err := CreateBuffers(context.Background(), cfg, gen, outFile)
	if err == nil {
		t.Fatal("no error when all buffer generation failed")
	}
	if _, statErr := os.Stat(outFile); !os.IsNotExist(statErr) {
		t.Error("a band shapefile was written despite the failure")
	}
}

func TestWriteBands_prj(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(dir, "bands.shp")
	bands := Decompose(nestedAreas(geom.Point{X: 0, Y: 0}, 500, 1000))
	if err := WriteBands(bands, outFile, testSR); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "bands.prj"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != testSR {
		t.Error("the .prj sidecar does not carry the source spatial reference")
	}
}
