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
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/reach/isochrone"
	"github.com/spatialmodel/reach/raster"
)

// TileState is a tile's position in its processing state machine.
type TileState int

const (
	Pending TileState = iota
	Generating
	Decomposing
	Rasterizing
	Done
	Failed
)

func (s TileState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Generating:
		return "generating"
	case Decomposing:
		return "decomposing"
	case Rasterizing:
		return "rasterizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("TileState(%d)", int(s))
}

// TileResult reports the outcome of one tile. Err and ArtifactPath are
// set when the tile's buffer generation failed completely; such a tile
// still contributes an all-nodata raster so the mosaic covers its extent.
type TileResult struct {
	Index        int
	ID           string
	State        TileState
	RasterPath   string
	Err          string
	ArtifactPath string
}

// Result reports a whole run. A run with failed tiles is still a
// completed run; only configuration problems abort before any tile.
type Result struct {
	Tiles []*TileResult

	// MosaicPath is empty when no tile raster was valid.
	MosaicPath string

	// Canceled reports that the run stopped early because its context
	// was canceled. No new generator batches are issued after that.
	Canceled bool
}

// Pipeline runs the band decomposition and rasterization over all study
// tiles, strictly sequentially: mosaic ordering and the per-tile indices
// depend on deterministic traversal, so there is no fan-out across tiles.
type Pipeline struct {
	cfg *Config
	gen isochrone.Generator
}

// NewPipeline validates cfg and prepares a run using gen to produce
// service areas.
func NewPipeline(cfg *Config, gen isochrone.Generator) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, configErr("reach: no buffer generator configured")
	}
	return &Pipeline{cfg: cfg, gen: gen}, nil
}

// Run processes every tile and rebuilds the mosaic. The returned error
// is always a *ConfigurationError raised before any tile was processed;
// all per-tile failures are reported in the Result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	it, err := NewAreaIterator(p.cfg.AreaFile, p.cfg.ClipFile, p.cfg.BBoxFile, p.cfg.IDColumn)
	if err != nil {
		return nil, err
	}
	points, err := LoadPoints(p.cfg.PointsFile, it.SR())
	if err != nil {
		return nil, err
	}
	genSR, err := p.gen.SR()
	if err != nil {
		return nil, configErr("reach: reading generator spatial reference: %v", err)
	}
	toGen, err := it.SR().NewTransform(genSR)
	if err != nil {
		return nil, configErr("reach: projecting into generator reference: %v", err)
	}
	fromGen, err := genSR.NewTransform(it.SR())
	if err != nil {
		return nil, configErr("reach: projecting out of generator reference: %v", err)
	}

	result := &Result{}
	for {
		// Cancellation is cooperative: checked here and around each
		// generator batch, never mid-geometry.
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
		tile, ok := it.Next()
		if !ok {
			break
		}
		tr := p.runTile(ctx, tile, points, toGen, fromGen)
		result.Tiles = append(result.Tiles, tr)
		if ctx.Err() != nil {
			result.Canceled = true
			break
		}
	}

	var paths []string
	for _, tr := range result.Tiles {
		if tr.RasterPath != "" {
			paths = append(paths, tr.RasterPath)
		}
	}
	n, err := raster.WriteVRT(paths, p.cfg.MosaicPath(), p.cfg.NoData)
	if err != nil {
		// Mosaic failure is never run-fatal.
		log.WithFields(logrus.Fields{"error": err}).Warn("reach: building mosaic")
	} else if n > 0 {
		result.MosaicPath = p.cfg.MosaicPath()
	}
	return result, nil
}

// runTile walks one tile through the state machine.
func (p *Pipeline) runTile(ctx context.Context, tile *Tile, points *PointIndex,
	toGen, fromGen proj.Transformer) *TileResult {

	tr := &TileResult{Index: tile.Index, ID: tile.ID, State: Pending}
	tlog := log.WithFields(logrus.Fields{
		"tile":     tile.Index,
		"id":       tile.ID,
		"progress": fmt.Sprintf("%.1f%%", tile.Progress),
	})

	rasterPath := p.cfg.RasterPath(tile.Index)
	if !p.cfg.ForceRefresh {
		if _, err := os.Stat(rasterPath); err == nil {
			tlog.Info("reach: reusing existing tile raster")
			tr.State = Done
			tr.RasterPath = rasterPath
			return tr
		}
	}

	tr.State = Generating
	tlog.WithFields(logrus.Fields{"state": tr.State}).Info("reach: processing tile")
	areas, genErrs, allFailed, canceled := p.generate(ctx, points.Within(tile.Polygonal), toGen, fromGen)
	if canceled {
		// A partially generated tile is never persisted: a raster on
		// disk is reused by later runs, so it must only ever hold the
		// complete buffer set. The tile stays pending and the next run
		// recomputes it.
		tlog.Info("reach: canceled; leaving tile pending")
		tr.State = Pending
		return tr
	}
	if allFailed {
		// The tile still proceeds with an empty buffer set; the failure
		// is recorded on the result with an artifact for inspection.
		msg := fmt.Sprintf("all buffer generation failed for tile %d:\n%s",
			tile.Index, strings.Join(genErrs, "\n"))
		tr.Err = msg
		artifact := p.cfg.ArtifactPath(tile.Index)
		if err := ioutil.WriteFile(artifact, []byte(msg), 0644); err != nil {
			tlog.WithFields(logrus.Fields{"error": err}).Warn("reach: writing error artifact")
		} else {
			tr.ArtifactPath = artifact
		}
	}

	tr.State = Decomposing
	bands := Decompose(areas)
	bands = clipBands(bands, tile.Clip)

	tr.State = Rasterizing
	scored := make([]raster.Scored, len(bands))
	for i, b := range bands {
		scored[i] = raster.Scored{Polygonal: b.Polygonal, Score: byte(b.Score)}
	}
	r, err := raster.Rasterize(scored, tile.BBox, p.cfg.CellSize, p.cfg.NoData)
	if err != nil {
		tr.State = Failed
		tr.Err = appendErr(tr.Err, fmt.Sprintf("rasterizing tile %d: %v", tile.Index, err))
		tlog.WithFields(logrus.Fields{"error": err}).Warn("reach: tile failed")
		return tr
	}
	if err := r.WriteTIFF(rasterPath); err != nil {
		tr.State = Failed
		tr.Err = appendErr(tr.Err, fmt.Sprintf("writing tile %d raster: %v", tile.Index, err))
		tlog.WithFields(logrus.Fields{"error": err}).Warn("reach: tile failed")
		return tr
	}
	tr.RasterPath = rasterPath
	if tr.Err != "" {
		tr.State = Failed
	} else {
		tr.State = Done
	}
	return tr
}

// generate requests service areas for the tile's points in generator
// batches, reprojecting inputs into the generator's reference and
// outputs back. A failed batch contributes zero polygons and a warning;
// allFailed reports that every batch of a non-empty point set failed.
// canceled reports that the context was canceled before every batch was
// issued, in which case areas is incomplete; cancellation is never
// counted as a generator failure.
func (p *Pipeline) generate(ctx context.Context, pts []geom.Point,
	toGen, fromGen proj.Transformer) (areas []*isochrone.ServiceArea, errs []string, allFailed, canceled bool) {

	var locations []geom.Point
	for _, pt := range pts {
		g, err := pt.Transform(toGen)
		if err != nil {
			errs = append(errs, fmt.Sprintf("reprojecting point: %v", err))
			continue
		}
		locations = append(locations, g.(geom.Point))
	}

	batchSize := p.gen.BatchSize()
	if batchSize <= 0 || batchSize > len(locations) {
		batchSize = len(locations)
	}
	if p.cfg.BatchSize > 0 && batchSize > p.cfg.BatchSize {
		batchSize = p.cfg.BatchSize
	}

	batches := 0
	failed := 0
	for start := 0; start < len(locations); start += batchSize {
		if ctx.Err() != nil {
			// Canceled: issue no further batches.
			return areas, errs, false, true
		}
		end := start + batchSize
		if end > len(locations) {
			end = len(locations)
		}
		batches++
		got, err := p.gen.ServiceAreas(ctx, &isochrone.Request{
			Locations:   locations[start:end],
			Thresholds:  p.cfg.Thresholds,
			Mode:        p.cfg.Mode,
			Measurement: p.cfg.Measurement,
		})
		if err != nil {
			if ctx.Err() != nil {
				// The call was interrupted by cancellation, not
				// refused by the generator.
				return areas, errs, false, true
			}
			failed++
			errs = append(errs, err.Error())
			log.WithFields(logrus.Fields{"error": err}).Warn("reach: buffer generation call failed")
			continue
		}
		for _, a := range got {
			g, err := a.Polygonal.Transform(fromGen)
			if err != nil {
				errs = append(errs, fmt.Sprintf("reprojecting service area: %v", err))
				log.WithFields(logrus.Fields{"error": err}).Warn("reach: dropping unprojectable service area")
				continue
			}
			areas = append(areas, &isochrone.ServiceArea{
				Polygonal: g.(geom.Polygonal),
				Location:  a.Location,
				Threshold: a.Threshold,
			})
		}
	}
	return areas, errs, batches > 0 && failed == batches, false
}

// clipBands intersects each band with the tile clip outline, dropping
// bands that end up empty.
func clipBands(bands []*Band, clip geom.Polygonal) []*Band {
	if clip == nil {
		return bands
	}
	var out []*Band
	for _, b := range bands {
		g := b.Polygonal.Intersection(clip)
		if empty(g) {
			log.WithFields(logrus.Fields{"rank": b.Rank}).Warn("reach: dropping band outside the clip outline")
			continue
		}
		out = append(out, &Band{Polygonal: g, Rank: b.Rank, Score: b.Score})
	}
	return out
}

func appendErr(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "\n" + add
}
