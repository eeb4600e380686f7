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
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// PlaceStyleSidecar puts the style file next to the mosaic, named after
// it, so GIS tools pick the style up automatically. style may be a local
// path or an http(s) URL; downloads are retried with exponential backoff
// because the sidecar source is a fixed resource location that should
// eventually respond.
func PlaceStyleSidecar(style, mosaicPath string) error {
	ext := filepath.Ext(style)
	if ext == "" {
		ext = ".qml"
	}
	dest := strings.TrimSuffix(mosaicPath, filepath.Ext(mosaicPath)) + ext
	if strings.HasPrefix(style, "http://") || strings.HasPrefix(style, "https://") {
		return downloadStyle(style, dest)
	}
	src, err := os.Open(style)
	if err != nil {
		return fmt.Errorf("reach: opening style file: %v", err)
	}
	defer src.Close()
	w, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("reach: creating style sidecar: %v", err)
	}
	defer w.Close()
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("reach: copying style sidecar: %v", err)
	}
	return nil
}

func downloadStyle(url, dest string) error {
	return backoff.RetryNotify(
		func() error {
			resp, err := http.Get(url)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			w, err := os.Create(dest)
			if err != nil {
				return err
			}
			defer w.Close()
			_, err = io.Copy(w, resp.Body)
			return err
		},
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3),
		func(err error, d time.Duration) {
			logrus.WithFields(logrus.Fields{
				"url":   url,
				"error": err,
				"retry": d,
			}).Warn("reach: retrying style download")
		},
	)
}
