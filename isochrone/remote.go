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

package isochrone

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/requestcache"
)

func init() {
	gob.Register(geom.Polygon{})
	gob.Register(geom.MultiPolygon{})
}

// Client requests isochrones from a remote batch service. The service
// accepts up to BatchSize locations per call in WGS84 longitude/latitude
// and returns a GeoJSON FeatureCollection with one polygon per
// (location, threshold) pair, tagged with the threshold in the `value`
// property.
type Client struct {
	// URL is the service endpoint.
	URL string

	// Key is sent in the Authorization header when non-empty.
	Key string

	// HTTPClient performs the requests. Calls are never retried here;
	// a failed call is the caller's to record and move past.
	HTTPClient *http.Client

	batchSize int
	cache     *requestcache.Cache
	sr        *proj.SR
}

// NewClient creates a remote isochrone client. batchSize values outside
// [1, MaxBatch] are replaced with MaxBatch. If cacheDir is non-empty,
// responses are additionally cached on disk there and reused across runs.
func NewClient(url, key, cacheDir string, batchSize int) (*Client, error) {
	sr, err := proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
	if err != nil {
		return nil, fmt.Errorf("isochrone: parsing client projection: %v", err)
	}
	if batchSize < 1 || batchSize > MaxBatch {
		batchSize = MaxBatch
	}
	c := &Client{
		URL:        url,
		Key:        key,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
		batchSize:  batchSize,
		sr:         sr,
	}
	cacheFuncs := []requestcache.CacheFunc{
		requestcache.Deduplicate(),
		requestcache.Memory(100),
	}
	if cacheDir != "" {
		cacheFuncs = append(cacheFuncs,
			requestcache.Disk(cacheDir, marshalServiceAreas, unmarshalServiceAreas))
	}
	// One processor: the pipeline is sequential and the batch-size cap
	// is the only rate limit toward the service.
	c.cache = requestcache.NewCache(c.process, 1, cacheFuncs...)
	return c, nil
}

// SR returns the WGS84 longitude/latitude reference the service works in.
func (c *Client) SR() (*proj.SR, error) { return c.sr, nil }

// BatchSize returns the per-call location cap.
func (c *Client) BatchSize() int { return c.batchSize }

// ServiceAreas requests isochrones for up to BatchSize locations.
func (c *Client) ServiceAreas(ctx context.Context, req *Request) ([]*ServiceArea, error) {
	if len(req.Locations) == 0 {
		return nil, nil
	}
	if len(req.Locations) > c.batchSize {
		return nil, fmt.Errorf("isochrone: %d locations in one call but the batch size is %d",
			len(req.Locations), c.batchSize)
	}
	r := c.cache.NewRequest(ctx, req, requestKey(req))
	result, err := r.Result()
	if err != nil {
		return nil, err
	}
	return result.([]*ServiceArea), nil
}

// apiRequest is the wire format of one batch call.
type apiRequest struct {
	Locations [][]float64 `json:"locations"`
	Range     []float64   `json:"range"`
	RangeType string      `json:"range_type"`
}

type apiResponse struct {
	Features []struct {
		Properties struct {
			Value      float64 `json:"value"`
			GroupIndex int     `json:"group_index"`
		} `json:"properties"`
		Geometry json.RawMessage `json:"geometry"`
	} `json:"features"`
}

func (c *Client) process(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(*Request)
	wire := apiRequest{
		Locations: make([][]float64, len(req.Locations)),
		Range:     req.Thresholds,
		RangeType: string(req.Measurement),
	}
	for i, l := range req.Locations {
		wire.Locations[i] = []float64{l.X, l.Y}
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("isochrone: encoding request: %v", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("isochrone: creating request: %v", err)
	}
	httpReq = httpReq.WithContext(ctx)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.Key != "" {
		httpReq.Header.Set("Authorization", c.Key)
	}
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("isochrone: requesting isochrones: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := ioutil.ReadAll(resp.Body)
		return nil, fmt.Errorf("isochrone: isochrone service returned status %d: %s",
			resp.StatusCode, bytes.TrimSpace(b))
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("isochrone: reading response: %v", err)
	}
	areas, err := decodeFeatureCollection(b, req)
	if err != nil {
		return nil, err
	}
	return areas, nil
}

// decodeFeatureCollection converts a GeoJSON response into service areas,
// joining each feature back to its source location by group index.
func decodeFeatureCollection(b []byte, req *Request) ([]*ServiceArea, error) {
	var resp apiResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("isochrone: decoding response: %v", err)
	}
	var areas []*ServiceArea
	for i, f := range resp.Features {
		var jg geojson.Geometry
		if err := json.Unmarshal(f.Geometry, &jg); err != nil {
			return nil, fmt.Errorf("isochrone: decoding feature %d geometry: %v", i, err)
		}
		g, err := geojson.FromGeoJSON(&jg)
		if err != nil {
			return nil, fmt.Errorf("isochrone: feature %d: %v", i, err)
		}
		p, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("isochrone: feature %d is a %T; expected Polygon or MultiPolygon", i, g)
		}
		if !thresholdRequested(f.Properties.Value, req.Thresholds) {
			return nil, fmt.Errorf("isochrone: feature %d has value %g which was not requested",
				i, f.Properties.Value)
		}
		gi := f.Properties.GroupIndex
		if gi < 0 || gi >= len(req.Locations) {
			return nil, fmt.Errorf("isochrone: feature %d group index %d is outside the request", i, gi)
		}
		areas = append(areas, &ServiceArea{
			Polygonal: p,
			Location:  req.Locations[gi],
			Threshold: f.Properties.Value,
		})
	}
	return areas, nil
}

func thresholdRequested(v float64, thresholds []float64) bool {
	for _, t := range thresholds {
		if t == v {
			return true
		}
	}
	return false
}

// requestKey builds a deterministic cache key for a request.
func requestKey(req *Request) string {
	b, err := json.Marshal(req)
	if err != nil {
		panic(err) // Request contains nothing unmarshalable.
	}
	return fmt.Sprintf("isochrone_%x", sha256.Sum256(b))
}

func marshalServiceAreas(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data.([]*ServiceArea)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalServiceAreas(b []byte) (interface{}, error) {
	var areas []*ServiceArea
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&areas); err != nil {
		return nil, err
	}
	return areas, nil
}
