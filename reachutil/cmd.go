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

// Package reachutil holds the configuration and command-line interface
// for the reach tool.
package reachutil

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/spatialmodel/reach"
	"github.com/spatialmodel/reach/raster"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Reach.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "AreaFile",
			usage: `
              AreaFile is the path to the polygon shapefile of study
              sub-area outlines.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ClipFile",
			usage: `
              ClipFile is the path to the polygon shapefile of clipping
              outlines, co-registered with AreaFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BBoxFile",
			usage: `
              BBoxFile is the path to the polygon shapefile of rectangular
              raster extents, co-registered with AreaFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "IDColumn",
			usage: `
              IDColumn is the attribute column joining the area, clip, and
              bbox sources.`,
			defaultVal: "id",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "PointsFile",
			usage: `
              PointsFile is the path to the point shapefile of features to
              buffer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Thresholds",
			usage: `
              Thresholds is the ascending list of at most 5 travel
              thresholds, in meters for distance measurement or seconds
              for time measurement.`,
			defaultVal: []float64{500, 1000, 1500},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Mode",
			usage: `
              Mode is the travel mode: walking or driving.`,
			defaultVal: "walking",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Measurement",
			usage: `
              Measurement specifies whether thresholds are distances or
              times: distance or time.`,
			defaultVal: "distance",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BatchSize",
			usage: `
              BatchSize is the maximum number of points sent to the remote
              generator in one call, at most 5.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "CellSize",
			usage: `
              CellSize is the raster cell edge length shared by all tiles,
              in the units of the area sources' projection.`,
			defaultVal: 25.0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NoData",
			usage: `
              NoData is the raster sentinel for cells outside every band.
              It must be greater than the maximum score of 5.`,
			defaultVal: 255,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir receives the tile rasters, error artifacts, and
              mosaic.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputPrefix",
			usage: `
              OutputPrefix prefixes every tile raster name.`,
			defaultVal: "reach_",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name:      "ForceRefresh",
			shorthand: "f",
			usage: `
              ForceRefresh recomputes tile rasters that already exist on
              disk instead of reusing them.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StyleFile",
			usage: `
              StyleFile optionally names a style sidecar (a path or URL)
              to be placed next to the mosaic.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), mosaicCmd.Flags()},
		},
		{
			name: "Generator.Type",
			usage: `
              Generator.Type selects the buffer generator: remote calls a
              batch isochrone service; local computes crow-flight
              approximations without a network.`,
			defaultVal: "remote",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Generator.URL",
			usage: `
              Generator.URL is the remote isochrone service endpoint.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Generator.Key",
			usage: `
              Generator.Key is the remote service API key. It may contain
              environment variables.`,
			defaultVal: "${REACH_API_KEY}",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Generator.CacheDir",
			usage: `
              Generator.CacheDir, when set, caches remote responses on
              disk there so repeated runs do not repeat calls.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the shapefile the buffers command writes the
              ranked band polygons to.`,
			defaultVal: "buffers.shp",
			flagsets:   []*pflag.FlagSet{buffersCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("REACH")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case []float64:
				if option.shorthand == "" {
					set.Float64Slice(option.name, option.defaultVal.([]float64), option.usage)
				} else {
					set.Float64SliceP(option.name, option.shorthand, option.defaultVal.([]float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(buffersCmd)
	Root.AddCommand(mosaicCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("reach: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// runCtx returns a context canceled by an interrupt signal, so that a
// running pipeline finishes its current tile and reports what it has.
func runCtx() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		cancel()
	}()
	return ctx, cancel
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "reach",
	Short: "A travel-reach band decomposition and rasterization tool.",
	Long: `Reach turns travel-distance or travel-time buffers around point
features into a non-overlapping scored raster surface, computed
independently per study sub-area and mosaicked into one coverage.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'REACH_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Reach.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Reach v%s\n", reach.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline over all study tiles.",
	Long: `run processes every study tile: it requests buffers around the
tile's points, decomposes them into ranked scored bands, burns the bands
into a tile raster, and finally rebuilds the mosaic. Tiles whose buffer
generation fails completely still contribute an all-nodata raster and are
reported, so a batch run completes with partial failures visible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := PipelineConfig(Cfg)
		if err != nil {
			return err
		}
		gen, err := Generator(Cfg)
		if err != nil {
			return err
		}
		p, err := reach.NewPipeline(cfg, gen)
		if err != nil {
			return err
		}
		ctx, cancel := runCtx()
		defer cancel()
		result, err := p.Run(ctx)
		if err != nil {
			return err
		}
		reportResult(cmd, result)
		if result.MosaicPath != "" && cfg.StyleFile != "" {
			if err := PlaceStyleSidecar(cfg.StyleFile, result.MosaicPath); err != nil {
				logrus.WithFields(logrus.Fields{"error": err}).Warn("reach: placing style sidecar")
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var buffersCmd = &cobra.Command{
	Use:   "buffers",
	Short: "Write ranked band polygons without rasterizing.",
	Long: `buffers generates service areas for every input point, decomposes
them into ranked scored bands, and writes the bands to OutputFile as a
shapefile with rank and score attributes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := PipelineConfig(Cfg)
		if err != nil {
			return err
		}
		gen, err := Generator(Cfg)
		if err != nil {
			return err
		}
		ctx, cancel := runCtx()
		defer cancel()
		return reach.CreateBuffers(ctx, cfg, gen, os.ExpandEnv(Cfg.GetString("OutputFile")))
	},
	DisableAutoGenTag: true,
}

var mosaicCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Rebuild the mosaic from tile rasters already on disk.",
	Long: `mosaic rebuilds the virtual mosaic from whatever tile rasters
exist in OutputDir, without regenerating any of them. Unreadable tiles
are skipped with a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := PipelineConfig(Cfg)
		if err != nil {
			return err
		}
		paths, err := TileRasterPaths(cfg)
		if err != nil {
			return err
		}
		n, err := raster.WriteVRT(paths, cfg.MosaicPath(), cfg.NoData)
		if err != nil {
			return err
		}
		if n == 0 {
			cmd.Println("no valid tile rasters; no mosaic written")
			return nil
		}
		cmd.Printf("mosaic of %d tiles written to %s\n", n, cfg.MosaicPath())
		if cfg.StyleFile != "" {
			if err := PlaceStyleSidecar(cfg.StyleFile, cfg.MosaicPath()); err != nil {
				logrus.WithFields(logrus.Fields{"error": err}).Warn("reach: placing style sidecar")
			}
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// reportResult prints per-tile outcomes and totals.
func reportResult(cmd *cobra.Command, result *reach.Result) {
	var failed int
	for _, t := range result.Tiles {
		if t.State == reach.Failed {
			failed++
			cmd.Printf("tile %d (%s): %s: %s\n", t.Index, t.ID, t.State, t.Err)
			if t.ArtifactPath != "" {
				cmd.Printf("tile %d error artifact: %s\n", t.Index, t.ArtifactPath)
			}
		}
	}
	cmd.Printf("%d tiles processed, %d failed\n", len(result.Tiles), failed)
	if result.Canceled {
		cmd.Println("run canceled before completion")
	}
	if result.MosaicPath != "" {
		cmd.Printf("mosaic written to %s\n", result.MosaicPath)
	} else {
		cmd.Println("no valid tile rasters; no mosaic written")
	}
}
