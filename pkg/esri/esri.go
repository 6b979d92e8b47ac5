// Package esri queries ArcGIS REST feature layers. Ontario GeoHub publishes
// its open data through MapServer layer endpoints that cap each response at a
// few thousand records, so queries page with resultOffset until a short page
// comes back.
package esri

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
	"github.com/williamstreaties/atlas/pkg/fetch"
)

// DefaultPageSize matches the record cap of the GeoHub MapServer layers.
const DefaultPageSize = 2000

// Client pulls features from ArcGIS REST layer endpoints.
type Client struct {
	fetcher  *fetch.Client
	PageSize int
}

// NewClient wraps a fetcher. The page size can be lowered for servers with a
// smaller maxRecordCount.
func NewClient(f *fetch.Client) *Client {
	return &Client{fetcher: f, PageSize: DefaultPageSize}
}

// Query narrows a layer query. The zero value selects every row with all
// fields in WGS84.
type Query struct {
	Where     string
	Envelope  *orb.Bound
	OutFields string
	OutSR     int
}

func (q Query) values() url.Values {
	v := url.Values{}

	where := q.Where
	if where == "" {
		where = "1=1"
	}
	v.Set("where", where)

	fields := q.OutFields
	if fields == "" {
		fields = "*"
	}
	v.Set("outFields", fields)

	sr := q.OutSR
	if sr == 0 {
		sr = 4326
	}
	v.Set("outSR", strconv.Itoa(sr))
	v.Set("returnGeometry", "true")

	if q.Envelope != nil {
		b := *q.Envelope
		v.Set("geometry", fmt.Sprintf("%g,%g,%g,%g", b.Min[0], b.Min[1], b.Max[0], b.Max[1]))
		v.Set("geometryType", "esriGeometryEnvelope")
		v.Set("spatialRel", "esriSpatialRelIntersects")
		v.Set("inSR", "4326")
	}

	return v
}

// LayerInfo is the slice of layer metadata the catalogue commands care about.
type LayerInfo struct {
	Name           string
	GeometryType   string
	MaxRecordCount int
	Fields         []string
}

// Info probes a layer endpoint.
func (c *Client) Info(ctx context.Context, layerURL string) (*LayerInfo, error) {
	body, err := c.fetcher.Get(ctx, layerURL+"?f=json")
	if err != nil {
		return nil, err
	}
	if err := apiError(body); err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", layerURL, err)
	}

	info := &LayerInfo{
		Name:           gjson.GetBytes(body, "name").String(),
		GeometryType:   gjson.GetBytes(body, "geometryType").String(),
		MaxRecordCount: int(gjson.GetBytes(body, "maxRecordCount").Int()),
	}
	for _, f := range gjson.GetBytes(body, "fields.#.name").Array() {
		info.Fields = append(info.Fields, f.String())
	}
	return info, nil
}

// Count returns the number of features the query matches, without geometry.
func (c *Client) Count(ctx context.Context, layerURL string, q Query) (int, error) {
	params := q.values()
	params.Set("f", "json")
	params.Set("returnCountOnly", "true")

	body, err := c.fetcher.Get(ctx, layerURL+"/query?"+params.Encode())
	if err != nil {
		return 0, err
	}
	if err := apiError(body); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", layerURL, err)
	}
	return int(gjson.GetBytes(body, "count").Int()), nil
}

// Features fetches every feature the query matches, paging until the server
// returns fewer records than the page size.
func (c *Client) Features(ctx context.Context, layerURL string, q Query) (*geojson.FeatureCollection, error) {
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	out := geojson.NewFeatureCollection()
	offset := 0

	for {
		params := q.values()
		params.Set("f", "geojson")
		params.Set("resultOffset", strconv.Itoa(offset))
		params.Set("resultRecordCount", strconv.Itoa(pageSize))

		body, err := c.fetcher.Get(ctx, layerURL+"/query?"+params.Encode())
		if err != nil {
			return nil, err
		}
		if err := apiError(body); err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", layerURL, err)
		}

		page, err := geojson.UnmarshalFeatureCollection(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page at offset %d from %s: %w", offset, layerURL, err)
		}

		out.Features = append(out.Features, page.Features...)
		if len(page.Features) < pageSize {
			return out, nil
		}
		offset += pageSize
	}
}

// apiError surfaces the in-band errors ArcGIS returns with HTTP 200.
func apiError(body []byte) error {
	e := gjson.GetBytes(body, "error")
	if !e.Exists() {
		return nil
	}
	msg := e.Get("message").String()
	if msg == "" {
		msg = e.Raw
	}
	return fmt.Errorf("server error %d: %s", e.Get("code").Int(), msg)
}
