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
	"os"

	"github.com/spatialmodel/reach/isochrone"
)

const (
	// MaxThresholds is the maximum number of travel thresholds in one run.
	// Scores are defined on the range [0, MaxScore], so thresholds beyond
	// the fifth could only ever score zero; we reject them at
	// configuration time instead of silently truncating.
	MaxThresholds = 5

	// MaxScore is the score assigned to the innermost band.
	MaxScore = 5
)

// ConfigurationError reports an invalid run configuration. It is the only
// error that aborts a run before any tile is processed; everything else
// is reported per tile in the run Result.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return e.msg }

func configErr(format string, a ...interface{}) *ConfigurationError {
	return &ConfigurationError{msg: fmt.Sprintf(format, a...)}
}

// Config holds all settings for one pipeline run. There are no ambient
// globals; every component receives the values it needs from here.
type Config struct {
	// AreaFile, ClipFile, and BBoxFile are paths to three co-registered
	// polygon shapefiles sharing the IDColumn attribute: the study
	// sub-area outlines, the (larger) clipping outlines, and the
	// rectangular raster extents.
	AreaFile string
	ClipFile string
	BBoxFile string

	// PointsFile is a point shapefile holding the features to buffer.
	PointsFile string

	// IDColumn is the attribute joining the three area sources.
	IDColumn string

	// Thresholds is the ascending list of travel thresholds, in meters
	// for distance measurement or seconds for time measurement.
	// At most MaxThresholds values.
	Thresholds []float64

	Mode        isochrone.Mode
	Measurement isochrone.Measurement

	// BatchSize is the maximum number of points sent to a remote
	// generator in one call. Capped at isochrone.MaxBatch.
	BatchSize int

	// CellSize is the raster cell edge length shared by all tiles, in
	// the units of the area sources' projection.
	CellSize float64

	// NoData is the raster sentinel for cells outside every band. It
	// must be distinct from the valid scores 0 through MaxScore.
	NoData byte

	// OutputDir receives the tile rasters, error artifacts, and mosaic.
	// OutputPrefix prefixes every tile raster name, so a tile raster is
	// OutputDir/OutputPrefix<index>.tif.
	OutputDir    string
	OutputPrefix string

	// ForceRefresh recomputes tile rasters that already exist on disk.
	ForceRefresh bool

	// StyleFile optionally names a style sidecar (a path or URL) to be
	// placed next to the mosaic.
	StyleFile string
}

// Validate checks c, returning a *ConfigurationError describing the first
// problem found.
func (c *Config) Validate() error {
	for _, f := range []struct{ name, val string }{
		{"AreaFile", c.AreaFile},
		{"ClipFile", c.ClipFile},
		{"BBoxFile", c.BBoxFile},
		{"PointsFile", c.PointsFile},
		{"IDColumn", c.IDColumn},
		{"OutputDir", c.OutputDir},
	} {
		if f.val == "" {
			return configErr("reach: configuration variable %s is not specified", f.name)
		}
	}
	if len(c.Thresholds) == 0 {
		return configErr("reach: at least one threshold must be specified")
	}
	if len(c.Thresholds) > MaxThresholds {
		return configErr("reach: %d thresholds specified but the maximum is %d",
			len(c.Thresholds), MaxThresholds)
	}
	for i, t := range c.Thresholds {
		if !(t > 0) {
			return configErr("reach: threshold %d is %g but must be positive", i, t)
		}
		if i > 0 && t < c.Thresholds[i-1] {
			return configErr("reach: thresholds must be in ascending order but %g follows %g",
				t, c.Thresholds[i-1])
		}
	}
	switch c.Mode {
	case isochrone.Walking, isochrone.Driving:
	default:
		return configErr("reach: mode must be %q or %q but is %q",
			isochrone.Walking, isochrone.Driving, c.Mode)
	}
	switch c.Measurement {
	case isochrone.Distance, isochrone.Time:
	default:
		return configErr("reach: measurement must be %q or %q but is %q",
			isochrone.Distance, isochrone.Time, c.Measurement)
	}
	if c.BatchSize < 0 || c.BatchSize > isochrone.MaxBatch {
		return configErr("reach: batch size %d is outside [0, %d]",
			c.BatchSize, isochrone.MaxBatch)
	}
	if !(c.CellSize > 0) {
		return configErr("reach: cell size is %g but must be positive", c.CellSize)
	}
	if c.NoData <= MaxScore {
		return configErr("reach: the nodata sentinel %d collides with the valid scores 0 through %d",
			c.NoData, MaxScore)
	}
	if _, err := os.Stat(c.OutputDir); err != nil {
		return configErr("reach: the output directory doesn't exist: %v", err)
	}
	return nil
}

// RasterPath returns the deterministic raster file path for tile index i.
func (c *Config) RasterPath(i int) string {
	return fmt.Sprintf("%s/%s%d.tif", c.OutputDir, c.OutputPrefix, i)
}

// ArtifactPath returns the error-artifact path for tile index i.
func (c *Config) ArtifactPath(i int) string {
	return fmt.Sprintf("%s/%s%d.err.txt", c.OutputDir, c.OutputPrefix, i)
}

// MosaicPath returns the path of the virtual mosaic.
func (c *Config) MosaicPath() string {
	return fmt.Sprintf("%s/%smosaic.vrt", c.OutputDir, c.OutputPrefix)
}
