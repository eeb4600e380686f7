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
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"

	"github.com/spatialmodel/reach/isochrone"
)

// WriteBands writes ranked scored band polygons to a shapefile with
// `rank` and `score` attribute columns. prj, when non-empty, is written
// verbatim as the .prj sidecar.
func WriteBands(bands []*Band, filename, prj string) error {
	fileBase := strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = fileBase + ".shp"
	fields := []goshp.Field{
		goshp.NumberField("rank", 10),
		goshp.NumberField("score", 10),
	}
	shape, err := shp.NewEncoderFromFields(filename, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("reach: creating band shapefile: %v", err)
	}
	for _, b := range bands {
		if err := shape.EncodeFields(b.Polygonal, b.Rank, b.Score); err != nil {
			shape.Close()
			return fmt.Errorf("reach: writing band shapefile: %v", err)
		}
	}
	shape.Close()
	if prj != "" {
		if err := ioutil.WriteFile(fileBase+".prj", []byte(prj), 0644); err != nil {
			return fmt.Errorf("reach: writing band prj file: %v", err)
		}
	}
	return nil
}

// CreateBuffers is the standalone buffer utility: it generates service
// areas for every input point, decomposes them into ranked scored bands,
// and writes the bands to outFile as a shapefile, without rasterizing.
// The spatial-reference sidecar is copied from the area source so the
// output is co-registered with the study tiles.
func CreateBuffers(ctx context.Context, cfg *Config, gen isochrone.Generator, outFile string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	it, err := NewAreaIterator(cfg.AreaFile, cfg.ClipFile, cfg.BBoxFile, cfg.IDColumn)
	if err != nil {
		return err
	}
	points, err := LoadPoints(cfg.PointsFile, it.SR())
	if err != nil {
		return err
	}
	genSR, err := gen.SR()
	if err != nil {
		return configErr("reach: reading generator spatial reference: %v", err)
	}
	toGen, err := it.SR().NewTransform(genSR)
	if err != nil {
		return configErr("reach: projecting into generator reference: %v", err)
	}
	fromGen, err := genSR.NewTransform(it.SR())
	if err != nil {
		return configErr("reach: projecting out of generator reference: %v", err)
	}

	p := &Pipeline{cfg: cfg, gen: gen}
	var all []*isochrone.ServiceArea
	for {
		tile, ok := it.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		areas, errs, allFailed, canceled := p.generate(ctx, points.Within(tile.Polygonal), toGen, fromGen)
		if canceled {
			return ctx.Err()
		}
		if allFailed {
			return fmt.Errorf("reach: all buffer generation failed for tile %d: %s",
				tile.Index, strings.Join(errs, "; "))
		}
		all = append(all, areas...)
	}
	bands := Decompose(all)
	if len(bands) == 0 {
		return fmt.Errorf("reach: no bands to write")
	}
	prj, err := readPrj(cfg.AreaFile)
	if err != nil {
		return err
	}
	return WriteBands(bands, outFile, prj)
}

// readPrj returns the .prj sidecar contents of a shapefile.
func readPrj(shpFile string) (string, error) {
	prjFile := strings.TrimSuffix(shpFile, filepath.Ext(shpFile)) + ".prj"
	b, err := ioutil.ReadFile(prjFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reach: reading %s: %v", prjFile, err)
	}
	return string(b), nil
}
