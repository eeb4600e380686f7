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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
)

// PointIndex is a spatial index over the input point features,
// reprojected into the study-area spatial reference.
type PointIndex struct {
	tree *rtree.Rtree
	n    int
}

type indexedPoint struct {
	geom.Point
}

// LoadPoints reads a point shapefile, reprojecting into sr. Non-point
// features are skipped with a warning.
func LoadPoints(filename string, sr *proj.SR) (*PointIndex, error) {
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, configErr("reach: reading point source: %v", err)
	}
	defer d.Close()
	pointSR, err := d.SR()
	if err != nil {
		return nil, configErr("reach: reading point source spatial reference: %v", err)
	}
	trans, err := pointSR.NewTransform(sr)
	if err != nil {
		return nil, configErr("reach: reprojecting point source: %v", err)
	}
	pi := &PointIndex{tree: rtree.NewTree(25, 50)}
	row := 0
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("reach: reprojecting point %d: %v", row, err)
		}
		p, ok := gg.(geom.Point)
		if !ok {
			log.WithFields(logrus.Fields{
				"row":  row,
				"type": fmt.Sprintf("%T", gg),
			}).Warn("reach: skipping non-point feature in point source")
			row++
			continue
		}
		pi.tree.Insert(indexedPoint{Point: p})
		pi.n++
		row++
	}
	if err := d.Error(); err != nil {
		return nil, configErr("reach: reading point source: %v", err)
	}
	return pi, nil
}

// Len returns the number of indexed points.
func (pi *PointIndex) Len() int { return pi.n }

// Within returns the points inside p, in index order.
func (pi *PointIndex) Within(p geom.Polygonal) []geom.Point {
	var points []geom.Point
	for _, s := range pi.tree.SearchIntersect(p.Bounds()) {
		pt := s.(indexedPoint).Point
		if pt.Within(p) != geom.Outside {
			points = append(points, pt)
		}
	}
	return points
}
