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
	"sort"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/reach/isochrone"
)

// Band is one disjoint ring of a tile's decomposed coverage: the area
// reachable within its threshold but not within the next-smaller one.
type Band struct {
	geom.Polygonal

	// Rank is the 0-based position of the band's threshold in the
	// ascending list of distinct thresholds present.
	Rank int

	// Score is BandScore(Rank).
	Score int
}

// BandScore converts a band rank to its score. Ranks at or beyond
// MaxScore all collapse to zero; configuration validation keeps such
// ranks from occurring in practice.
func BandScore(rank int) int {
	if rank >= MaxScore {
		return 0
	}
	return MaxScore - rank
}

// Decompose converts the possibly-overlapping nested service areas of one
// tile into disjoint ranked bands. Areas are grouped by distinct
// threshold, each group is dissolved into one polygon, and walking the
// distinct thresholds from largest to second-smallest each dissolve has
// the next-smaller dissolve subtracted from it. The smallest threshold's
// dissolve is the innermost band, used unmodified.
//
// A dissolve or difference that comes out empty or invalid drops that one
// band; it never fails the tile. Zero input areas yield zero bands.
// Decompose has no state and the result is independent of input order.
func Decompose(areas []*isochrone.ServiceArea) []*Band {
	byThreshold := make(map[float64]geom.Polygonal)
	for _, a := range areas {
		if a.Polygonal == nil {
			continue
		}
		if cur, ok := byThreshold[a.Threshold]; ok {
			byThreshold[a.Threshold] = cur.Union(a.Polygonal)
		} else {
			byThreshold[a.Threshold] = a.Polygonal
		}
	}
	if len(byThreshold) == 0 {
		return nil
	}

	// Distinct thresholds, ascending; equal thresholds were merged above.
	thresholds := make([]float64, 0, len(byThreshold))
	for t := range byThreshold {
		thresholds = append(thresholds, t)
	}
	sort.Float64s(thresholds)

	bands := make([]*Band, 0, len(thresholds))
	for rank := len(thresholds) - 1; rank >= 0; rank-- {
		g := byThreshold[thresholds[rank]]
		if rank > 0 {
			g = g.Difference(byThreshold[thresholds[rank-1]])
		}
		if empty(g) {
			log.WithFields(logrus.Fields{
				"threshold": thresholds[rank],
				"rank":      rank,
			}).Warn("reach: dropping empty band")
			continue
		}
		bands = append(bands, &Band{Polygonal: g, Rank: rank, Score: BandScore(rank)})
	}

	// Largest threshold first above; report in rank order.
	sort.Slice(bands, func(i, j int) bool { return bands[i].Rank < bands[j].Rank })
	return bands
}

// empty reports whether a polygon has no interior.
func empty(g geom.Polygonal) bool {
	return g == nil || len(g.Polygons()) == 0 || g.Area() <= 0
}
