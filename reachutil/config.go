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

package reachutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spf13/cast"

	"github.com/spatialmodel/reach"
	"github.com/spatialmodel/reach/isochrone"
)

// PipelineConfig unmarshals a viper configuration into a run
// configuration, expanding environment variables in paths.
func PipelineConfig(cfg *viper.Viper) (*reach.Config, error) {
	thresholds, err := toFloat64SliceE(cfg.Get("Thresholds"))
	if err != nil {
		return nil, fmt.Errorf("reach: Thresholds: %v", err)
	}
	nodata := cfg.GetInt("NoData")
	if nodata < 0 || nodata > 255 {
		return nil, fmt.Errorf("reach: NoData %d does not fit in a byte", nodata)
	}
	c := &reach.Config{
		AreaFile:     os.ExpandEnv(cfg.GetString("AreaFile")),
		ClipFile:     os.ExpandEnv(cfg.GetString("ClipFile")),
		BBoxFile:     os.ExpandEnv(cfg.GetString("BBoxFile")),
		PointsFile:   os.ExpandEnv(cfg.GetString("PointsFile")),
		IDColumn:     cfg.GetString("IDColumn"),
		Thresholds:   thresholds,
		Mode:         isochrone.Mode(cfg.GetString("Mode")),
		Measurement:  isochrone.Measurement(cfg.GetString("Measurement")),
		BatchSize:    cfg.GetInt("BatchSize"),
		CellSize:     cfg.GetFloat64("CellSize"),
		NoData:       byte(nodata),
		OutputDir:    os.ExpandEnv(cfg.GetString("OutputDir")),
		OutputPrefix: cfg.GetString("OutputPrefix"),
		ForceRefresh: cfg.GetBool("ForceRefresh"),
		StyleFile:    os.ExpandEnv(cfg.GetString("StyleFile")),
	}
	return c, nil
}

// Generator builds the configured buffer generator: a remote batch
// isochrone client or the local crow-flight calculator. The choice is a
// configuration value, not a type hierarchy.
func Generator(cfg *viper.Viper) (isochrone.Generator, error) {
	switch t := cfg.GetString("Generator.Type"); t {
	case "remote":
		url := os.ExpandEnv(cfg.GetString("Generator.URL"))
		if url == "" {
			return nil, fmt.Errorf("reach: Generator.URL must be set for the remote generator")
		}
		return isochrone.NewClient(
			url,
			os.ExpandEnv(cfg.GetString("Generator.Key")),
			os.ExpandEnv(cfg.GetString("Generator.CacheDir")),
			cfg.GetInt("BatchSize"),
		)
	case "local":
		return isochrone.NewCrowFlight()
	default:
		return nil, fmt.Errorf("reach: Generator.Type must be remote or local but is %q", t)
	}
}

// TileRasterPaths returns the tile rasters present in the output
// directory, in tile-index order.
func TileRasterPaths(cfg *reach.Config) ([]string, error) {
	pattern := filepath.Join(cfg.OutputDir, cfg.OutputPrefix+"*.tif")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("reach: globbing %s: %v", pattern, err)
	}
	type indexed struct {
		i    int
		path string
	}
	var tiles []indexed
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".tif")
		i, err := strconv.Atoi(strings.TrimPrefix(base, cfg.OutputPrefix))
		if err != nil {
			continue // Not a tile raster.
		}
		tiles = append(tiles, indexed{i: i, path: m})
	}
	sort.Slice(tiles, func(a, b int) bool { return tiles[a].i < tiles[b].i })
	paths := make([]string, len(tiles))
	for i, t := range tiles {
		paths[i] = t.path
	}
	return paths, nil
}

// toFloat64SliceE converts an interface to a []float64, handling both
// native slices and comma or space separated strings from flag values.
func toFloat64SliceE(i interface{}) ([]float64, error) {
	switch v := i.(type) {
	case []float64:
		return v, nil
	case string:
		var out []float64
		for _, s := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
			f, err := cast.ToFloat64E(s)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	default:
		vs, err := cast.ToSliceE(i)
		if err != nil {
			return nil, err
		}
		out := make([]float64, len(vs))
		for j, vv := range vs {
			f, err := cast.ToFloat64E(vv)
			if err != nil {
				return nil, err
			}
			out[j] = f
		}
		return out, nil
	}
}
