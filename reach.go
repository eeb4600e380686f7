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

// Package reach decomposes travel-reach buffers around point features
// into concentric scored distance bands and rasterizes them, one raster
// per study tile, mosaicked into a single coverage.
package reach

import "github.com/sirupsen/logrus"

// Version is the version of this software.
const Version = "0.1.0"

// log is the package logger. SetLogger replaces it, for callers that
// configure their own output.
var log = logrus.StandardLogger()

// SetLogger directs the package's log output to l.
func SetLogger(l *logrus.Logger) { log = l }
