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

package isochrone

import (
	"context"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// webMapProj is the spherical-Mercator projection the local calculator
// works in, so that thresholds in meters map directly to coordinates.
const webMapProj = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

// Default travel speeds in m/s: 5 km/h walking, 50 km/h driving.
const (
	defaultWalkSpeed  = 5.0 * 1000 / 3600
	defaultDriveSpeed = 50.0 * 1000 / 3600
)

// CrowFlight computes service areas locally as circular buffers. Time
// thresholds are converted to radii using a fixed speed per mode. It is
// an approximation for use without a routing service; the polygons it
// returns are nested by construction.
type CrowFlight struct {
	// WalkSpeed and DriveSpeed convert time thresholds to radii, in m/s.
	WalkSpeed  float64
	DriveSpeed float64

	// Segments is the number of vertices in each circle.
	Segments int

	sr *proj.SR
}

// NewCrowFlight creates a local service-area calculator with default
// speeds.
func NewCrowFlight() (*CrowFlight, error) {
	sr, err := proj.Parse(webMapProj)
	if err != nil {
		return nil, fmt.Errorf("isochrone: parsing local projection: %v", err)
	}
	return &CrowFlight{
		WalkSpeed:  defaultWalkSpeed,
		DriveSpeed: defaultDriveSpeed,
		Segments:   48,
		sr:         sr,
	}, nil
}

// SR returns the Mercator reference the calculator works in.
func (c *CrowFlight) SR() (*proj.SR, error) { return c.sr, nil }

// BatchSize returns zero: there is no cap on locations per call.
func (c *CrowFlight) BatchSize() int { return 0 }

// ServiceAreas returns one circular buffer per (location, threshold) pair.
func (c *CrowFlight) ServiceAreas(ctx context.Context, req *Request) ([]*ServiceArea, error) {
	areas := make([]*ServiceArea, 0, len(req.Locations)*len(req.Thresholds))
	for _, l := range req.Locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, t := range req.Thresholds {
			r, err := c.radius(t, req.Mode, req.Measurement)
			if err != nil {
				return nil, err
			}
			areas = append(areas, &ServiceArea{
				Polygonal: circle(l, r, c.Segments),
				Location:  l,
				Threshold: t,
			})
		}
	}
	return areas, nil
}

func (c *CrowFlight) radius(threshold float64, mode Mode, m Measurement) (float64, error) {
	if m == Distance {
		return threshold, nil
	}
	switch mode {
	case Walking:
		return c.WalkSpeed * threshold, nil
	case Driving:
		return c.DriveSpeed * threshold, nil
	default:
		return 0, fmt.Errorf("isochrone: no speed for mode %q", mode)
	}
}

// circle builds a closed ring of n segments around center.
func circle(center geom.Point, radius float64, n int) geom.Polygon {
	ring := make([]geom.Point, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = geom.Point{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		}
	}
	ring[n] = ring[0]
	return geom.Polygon{ring}
}
