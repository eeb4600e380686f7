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
	"bufio"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/ctessum/geom"
	"golang.org/x/image/tiff"
)

// worldFilePath returns the ESRI world file companion of a .tif path.
func worldFilePath(tiffPath string) string {
	return strings.TrimSuffix(tiffPath, ".tif") + ".tfw"
}

// WriteTIFF writes the raster as an 8-bit grayscale TIFF plus an ESRI
// world file carrying the georeferencing, so the tile is readable by
// standard GIS tools.
func (r *Raster) WriteTIFF(path string) error {
	img := image.NewGray(image.Rect(0, 0, r.Nx, r.Ny))
	for row := 0; row < r.Ny; row++ {
		for col := 0; col < r.Nx; col++ {
			img.Pix[row*img.Stride+col] = r.Value(row, col)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("raster: creating %s: %v", path, err)
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		f.Close()
		return fmt.Errorf("raster: encoding %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("raster: closing %s: %v", path, err)
	}

	// World file lines: x size, rotations (2), negative y size, then the
	// center coordinates of the upper-left cell.
	w, err := os.Create(worldFilePath(path))
	if err != nil {
		return fmt.Errorf("raster: creating world file: %v", err)
	}
	defer w.Close()
	_, err = fmt.Fprintf(w, "%g\n0\n0\n%g\n%g\n%g\n",
		r.CellSize, -r.CellSize,
		r.Bounds.Min.X+r.CellSize/2, r.Bounds.Max.Y-r.CellSize/2)
	if err != nil {
		return fmt.Errorf("raster: writing world file: %v", err)
	}
	return nil
}

// ReadTIFF loads a raster written by WriteTIFF. nodata restores the
// sentinel, which the TIFF itself does not carry.
func ReadTIFF(path string, nodata byte) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: opening %s: %v", path, err)
	}
	defer f.Close()
	img, err := tiff.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("raster: decoding %s: %v", path, err)
	}
	cellSize, originX, originY, err := readWorldFile(worldFilePath(path))
	if err != nil {
		return nil, err
	}
	rect := img.Bounds()
	nx, ny := rect.Dx(), rect.Dy()
	b := &geom.Bounds{
		Min: geom.Point{X: originX, Y: originY - float64(ny)*cellSize},
		Max: geom.Point{X: originX + float64(nx)*cellSize, Y: originY},
	}
	r, err := New(b, cellSize, nodata)
	if err != nil {
		return nil, err
	}
	for row := 0; row < ny; row++ {
		for col := 0; col < nx; col++ {
			g, _, _, _ := img.At(rect.Min.X+col, rect.Min.Y+row).RGBA()
			r.Data.Set(float64(g>>8), row, col)
		}
	}
	return r, nil
}

// readWorldFile returns the cell size and the upper-left corner of the
// upper-left cell.
func readWorldFile(path string) (cellSize, originX, originY float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("raster: opening world file: %v", err)
	}
	defer f.Close()
	var vals [6]float64
	for i := range vals {
		if _, err := fmt.Fscan(f, &vals[i]); err != nil {
			return 0, 0, 0, fmt.Errorf("raster: reading world file %s: %v", path, err)
		}
	}
	cellSize = vals[0]
	if cellSize <= 0 || vals[1] != 0 || vals[2] != 0 || vals[3] >= 0 || -vals[3] != cellSize {
		return 0, 0, 0, fmt.Errorf("raster: world file %s does not describe square north-up cells", path)
	}
	// Convert cell-center to cell-corner coordinates.
	originX = vals[4] - cellSize/2
	originY = vals[5] + cellSize/2
	return cellSize, originX, originY, nil
}
