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

package raster

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

var log = logrus.StandardLogger()

// SetLogger directs the package's log output to l.
func SetLogger(l *logrus.Logger) { log = l }

// The GDAL VRT XML dialect, enough of it to describe a byte mosaic of
// tile TIFFs with a transparent nodata value.
type vrtDataset struct {
	XMLName      xml.Name `xml:"VRTDataset"`
	RasterXSize  int      `xml:"rasterXSize,attr"`
	RasterYSize  int      `xml:"rasterYSize,attr"`
	GeoTransform string   `xml:"GeoTransform"`
	Band         vrtBand  `xml:"VRTRasterBand"`
}

type vrtBand struct {
	DataType    string      `xml:"dataType,attr"`
	Band        int         `xml:"band,attr"`
	NoDataValue float64     `xml:"NoDataValue"`
	ColorInterp string      `xml:"ColorInterp"`
	Sources     []vrtSource `xml:"ComplexSource"`
}

type vrtSource struct {
	Filename vrtFilename `xml:"SourceFilename"`
	Band     int         `xml:"SourceBand"`
	SrcRect  vrtRect     `xml:"SrcRect"`
	DstRect  vrtRect     `xml:"DstRect"`
	NoData   float64     `xml:"NODATA"`
}

type vrtFilename struct {
	Relative int    `xml:"relativeToVRT,attr"`
	Name     string `xml:",chardata"`
}

type vrtRect struct {
	XOff  float64 `xml:"xOff,attr"`
	YOff  float64 `xml:"yOff,attr"`
	XSize float64 `xml:"xSize,attr"`
	YSize float64 `xml:"ySize,attr"`
}

// mosaicTile is one readable input.
type mosaicTile struct {
	path     string
	bounds   *geom.Bounds
	cellSize float64
	nx, ny   int
}

// WriteVRT builds a virtual mosaic referencing the tile rasters in paths
// and writes it to vrtPath. The mosaic resolution is the finest cell
// size among readable tiles, and nodata cells are transparent so
// adjoining tile edges never double-count. Missing or unreadable tiles
// are skipped with a warning. The returned count is the number of tiles
// included; when it is zero no file is written.
func WriteVRT(paths []string, vrtPath string, nodata byte) (int, error) {
	var tiles []*mosaicTile
	for _, p := range paths {
		r, err := ReadTIFF(p, nodata)
		if err != nil {
			log.WithFields(logrus.Fields{
				"tile":  p,
				"error": err,
			}).Warn("raster: excluding unreadable tile from mosaic")
			continue
		}
		tiles = append(tiles, &mosaicTile{
			path:     p,
			bounds:   r.Bounds,
			cellSize: r.CellSize,
			nx:       r.Nx,
			ny:       r.Ny,
		})
	}
	if len(tiles) == 0 {
		return 0, nil
	}

	cellSizes := make([]float64, len(tiles))
	ext := tiles[0].bounds.Copy()
	for i, t := range tiles {
		cellSizes[i] = t.cellSize
		ext.Extend(t.bounds)
	}
	res := floats.Min(cellSizes)
	nx := int(math.Ceil((ext.Max.X - ext.Min.X) / res))
	ny := int(math.Ceil((ext.Max.Y - ext.Min.Y) / res))

	vrtDir := filepath.Dir(vrtPath)
	band := vrtBand{
		DataType:    "Byte",
		Band:        1,
		NoDataValue: float64(nodata),
		ColorInterp: "Gray",
	}
	for _, t := range tiles {
		name, relative := t.path, 0
		if rel, err := filepath.Rel(vrtDir, t.path); err == nil {
			name, relative = rel, 1
		}
		band.Sources = append(band.Sources, vrtSource{
			Filename: vrtFilename{Relative: relative, Name: name},
			Band:     1,
			SrcRect:  vrtRect{XOff: 0, YOff: 0, XSize: float64(t.nx), YSize: float64(t.ny)},
			DstRect: vrtRect{
				XOff:  (t.bounds.Min.X - ext.Min.X) / res,
				YOff:  (ext.Max.Y - t.bounds.Max.Y) / res,
				XSize: (t.bounds.Max.X - t.bounds.Min.X) / res,
				YSize: (t.bounds.Max.Y - t.bounds.Min.Y) / res,
			},
			NoData: float64(nodata),
		})
	}
	ds := vrtDataset{
		RasterXSize: nx,
		RasterYSize: ny,
		GeoTransform: fmt.Sprintf("%g, %g, 0, %g, 0, %g",
			ext.Min.X, res, ext.Max.Y, -res),
		Band: band,
	}
	f, err := os.Create(vrtPath)
	if err != nil {
		return 0, fmt.Errorf("raster: creating %s: %v", vrtPath, err)
	}
	defer f.Close()
	if _, err := f.WriteString(xml.Header); err != nil {
		return 0, fmt.Errorf("raster: writing %s: %v", vrtPath, err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return 0, fmt.Errorf("raster: writing %s: %v", vrtPath, err)
	}
	return len(tiles), nil
}
