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
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
)

// Tile is one disjoint study sub-area. Clip contains the tile outline;
// BBox is the rectangular raster extent shared with neighboring tiles'
// grid alignment.
type Tile struct {
	geom.Polygonal

	Clip geom.Polygonal
	BBox *geom.Bounds

	// ID is the joining attribute value from the area sources.
	ID string

	// Index is the tile's position in area-ascending iteration order.
	Index int

	// Progress is the percentage of tiles yielded so far, including
	// this one. It is 100 on the last tile.
	Progress float64
}

// AreaIterator yields study tiles in non-decreasing polygon-area order,
// cheapest first, so a misconfigured run fails early. The sequence is
// finite and cannot be restarted.
type AreaIterator struct {
	tiles []*Tile
	sr    *proj.SR
	i     int
}

// NewAreaIterator joins three co-registered polygon shapefiles (study
// outlines, clip outlines, and raster extents) on the idColumn attribute.
// An unreadable source or a spatial-reference mismatch among the three is
// a *ConfigurationError. An outline whose clip or extent match is missing
// is skipped with a warning; it never aborts the run.
func NewAreaIterator(areaFile, clipFile, bboxFile, idColumn string) (*AreaIterator, error) {
	outlines, sr, err := readPolygons(areaFile, idColumn)
	if err != nil {
		return nil, configErr("reach: reading area source: %v", err)
	}
	clips, clipSR, err := readPolygons(clipFile, idColumn)
	if err != nil {
		return nil, configErr("reach: reading clip source: %v", err)
	}
	bboxes, bboxSR, err := readPolygons(bboxFile, idColumn)
	if err != nil {
		return nil, configErr("reach: reading bbox source: %v", err)
	}
	const ulp = 10
	if !sr.Equal(clipSR, ulp) || !sr.Equal(bboxSR, ulp) {
		return nil, configErr("reach: the area, clip, and bbox sources must share one spatial reference")
	}

	clipByID := indexByID(clips)
	bboxByID := indexByID(bboxes)
	var tiles []*Tile
	for _, f := range outlines {
		clip, okClip := clipByID[f.id]
		bbox, okBBox := bboxByID[f.id]
		if !okClip || !okBBox {
			log.WithFields(logrus.Fields{
				"id":   f.id,
				"clip": okClip,
				"bbox": okBBox,
			}).Warn("reach: skipping area feature without a matching clip or bbox feature")
			continue
		}
		tiles = append(tiles, &Tile{
			Polygonal: f.Polygonal,
			Clip:      clip.Polygonal,
			BBox:      bbox.Bounds(),
			ID:        f.id,
		})
	}

	sort.SliceStable(tiles, func(i, j int) bool {
		return tiles[i].Area() < tiles[j].Area()
	})
	for i, t := range tiles {
		t.Index = i
		t.Progress = float64(i+1) / float64(len(tiles)) * 100
	}
	return &AreaIterator{tiles: tiles, sr: sr}, nil
}

// Next returns the next tile, or false when the sequence is exhausted.
func (it *AreaIterator) Next() (*Tile, bool) {
	if it.i >= len(it.tiles) {
		return nil, false
	}
	t := it.tiles[it.i]
	it.i++
	return t, true
}

// SR returns the shared spatial reference of the area sources.
func (it *AreaIterator) SR() *proj.SR { return it.sr }

// Len returns the number of tiles that will be yielded.
func (it *AreaIterator) Len() int { return len(it.tiles) }

type idFeature struct {
	geom.Polygonal
	id string
}

func indexByID(features []*idFeature) map[string]*idFeature {
	m := make(map[string]*idFeature, len(features))
	for _, f := range features {
		m[f.id] = f
	}
	return m
}

// readPolygons loads all polygon features and their idColumn attribute
// from a shapefile, in file order.
func readPolygons(filename, idColumn string) ([]*idFeature, *proj.SR, error) {
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, nil, err
	}
	defer d.Close()
	sr, err := d.SR()
	if err != nil {
		return nil, nil, fmt.Errorf("reading spatial reference of %s: %v", filename, err)
	}
	var features []*idFeature
	for {
		g, fields, more := d.DecodeRowFields(idColumn)
		if !more {
			break
		}
		id, ok := fields[idColumn]
		if !ok {
			return nil, nil, fmt.Errorf("%s is missing attribute column %s", filename, idColumn)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, nil, fmt.Errorf("%s feature %s is a %T; expected a polygon", filename, id, g)
		}
		features = append(features, &idFeature{Polygonal: p, id: id})
	}
	if err := d.Error(); err != nil {
		return nil, nil, err
	}
	return features, sr, nil
}
