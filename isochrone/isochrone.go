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

// Package isochrone produces travel-distance and travel-time service-area
// polygons around point locations, either by calling a remote batch
// isochrone service or by computing crow-flight approximations locally.
package isochrone

import (
	"context"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// MaxBatch is the largest number of locations a remote generator accepts
// in one call.
const MaxBatch = 5

// Mode is a travel mode.
type Mode string

const (
	Walking Mode = "walking"
	Driving Mode = "driving"
)

// Measurement specifies whether thresholds are travel distances in meters
// or travel times in seconds.
type Measurement string

const (
	Distance Measurement = "distance"
	Time     Measurement = "time"
)

// Request asks a Generator for the areas reachable from each of a set of
// locations within each of a set of thresholds. Locations must be in the
// generator's native spatial reference.
type Request struct {
	Locations   []geom.Point
	Thresholds  []float64
	Mode        Mode
	Measurement Measurement
}

// ServiceArea is the area reachable from Location within Threshold.
// For one location, areas are nested: a smaller threshold's polygon lies
// within a larger threshold's polygon.
type ServiceArea struct {
	geom.Polygonal
	Location  geom.Point
	Threshold float64
}

// Generator computes service areas. Implementations are selected by
// configuration; callers must reproject inputs to the generator's
// spatial reference and outputs back.
type Generator interface {
	// SR returns the generator's native spatial reference.
	SR() (*proj.SR, error)

	// BatchSize returns the maximum number of locations per call.
	// Zero means unlimited.
	BatchSize() int

	// ServiceAreas returns one service area per (location, threshold)
	// pair. A returned error means the whole call failed and produced
	// no polygons; it is recoverable by the caller.
	ServiceAreas(ctx context.Context, req *Request) ([]*ServiceArea, error)
}
