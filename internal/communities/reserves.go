package communities

import (
	"context"
	"math"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/config"
	"github.com/williamstreaties/atlas/internal/geohub"
	"github.com/williamstreaties/atlas/pkg/fetch"
	"github.com/williamstreaties/atlas/pkg/geo"
)

// wfsBase is the Statistics Canada WFS carrying the census reserve-lands
// layer.
const wfsBase = "https://geo.statcan.gc.ca/geoserver/census-recensement/wfs"

// reserveNames are the exact names in the census layer.
var reserveNames = []string{
	"Alderville 35",
	"Curve Lake 35",
	"Hiawatha 36",
	"Scugog Island 34",
	"Chimnissing 1",
	"Georgina Island 33",
	"Rama 32",
}

// namePatterns catch spelling variants when exact matching misses.
var namePatterns = []string{
	"alderville",
	"curve lake",
	"hiawatha",
	"scugog",
	"chimnissing",
	"beausoleil",
	"georgina island",
	"rama",
}

// nameFields are the reserve-name property candidates across the published
// datasets, checked in order.
var nameFields = []string{"IRNAME", "RESERVE_NAME", "ENGLISH_NAME", "NAME", "RESNAME", "name"}

// ReserveDownloader fetches reserve boundaries from the census WFS.
type ReserveDownloader struct {
	cfg    *config.Config
	client *fetch.Client

	// BaseURL is the WFS endpoint.
	BaseURL string
}

func NewReserveDownloader(cfg *config.Config, client *fetch.Client) *ReserveDownloader {
	return &ReserveDownloader{cfg: cfg, client: client, BaseURL: wfsBase}
}

// fetchWFS pulls the reserve-lands layer over the treaty envelope.
func (d *ReserveDownloader) fetchWFS(ctx context.Context) (*geojson.FeatureCollection, error) {
	q := url.Values{}
	q.Set("service", "WFS")
	q.Set("version", "2.0.0")
	q.Set("request", "GetFeature")
	q.Set("typeName", "census-recensement:lir_000a21a_e")
	q.Set("outputFormat", "application/json")
	q.Set("srsName", "EPSG:4326")
	q.Set("bbox", geo.BBoxString(geohub.QueryBound())+",EPSG:4326")

	body, err := d.client.Get(ctx, d.BaseURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(body)
}

// Build assembles the reserve boundary layer the AOI prefers: a boundary
// file already on disk when given, otherwise the census WFS, otherwise
// approximate buffers around the community points. The result always has the
// seven reserves or the approximate stand-ins.
func (d *ReserveDownloader) Build(ctx context.Context, input string) (string, error) {
	var fc *geojson.FeatureCollection

	if input != "" {
		read, err := geo.ReadCollection(input)
		if err != nil {
			return "", err
		}
		fc = read
	} else {
		read, err := d.fetchWFS(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("reserve boundary download failed")
		} else {
			fc = read
		}
	}

	if fc != nil {
		filtered := FilterReserves(fc)
		if len(filtered.Features) == 0 {
			log.Warn().Msg("no Williams Treaty reserves in the source dataset")
			fc = nil
		} else {
			fc = filtered
		}
	}

	approximate := fc == nil
	if approximate {
		log.Warn().Msg("using approximate reserve boundaries; download the official dataset from open.canada.ca to replace them")
		fc = ApproximateReserves()
	}

	path := aoi.ReservesPath(d.cfg)
	if err := geo.WriteCollection(path, fc); err != nil {
		return "", err
	}

	log.Info().
		Int("reserves", len(fc.Features)).
		Bool("approximate", approximate).
		Str("path", path).
		Msg("wrote reserve boundaries")
	return path, nil
}

// FilterReserves selects the Williams Treaty reserves from a national
// dataset: exact names first, then pattern matches for spelling variants.
func FilterReserves(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	field := nameField(fc)
	out := geojson.NewFeatureCollection()
	if field == "" {
		return out
	}

	taken := make(map[int]bool)
	for i, f := range fc.Features {
		name := geo.StringProp(f.Properties, field)
		for _, want := range reserveNames {
			if name == want {
				out.Append(f)
				taken[i] = true
				break
			}
		}
	}

	if len(out.Features) >= len(reserveNames) {
		return out
	}

	for _, pattern := range namePatterns {
		for i, f := range fc.Features {
			if taken[i] {
				continue
			}
			name := strings.ToLower(geo.StringProp(f.Properties, field))
			if strings.Contains(name, pattern) {
				out.Append(f)
				taken[i] = true
			}
		}
	}
	return out
}

// nameField returns the first candidate property any feature carries.
func nameField(fc *geojson.FeatureCollection) string {
	for _, field := range nameFields {
		for _, f := range fc.Features {
			if _, ok := f.Properties[field]; ok {
				return field
			}
		}
	}
	return ""
}

// ApproximateReserves builds placeholder boundaries around the community
// points until the official dataset is available.
func ApproximateReserves() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, n := range Nations {
		f := geojson.NewFeature(circle(orb.Point{n.Lon, n.Lat}, 0.01))
		f.Properties["ENGLISH_NAME"] = n.Name
		f.Properties["RESERVE_NAME"] = n.Reserve
		f.Properties["BAND_NAME"] = n.Name
		f.Properties["AREA_SQKM"] = n.AreaSqKm
		f.Properties["data_source"] = "approximate"
		fc.Append(f)
	}
	return fc
}

// circle approximates a degree-radius buffer around a point.
func circle(center orb.Point, radius float64) orb.Polygon {
	const segments = 32
	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i <= segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		ring = append(ring, orb.Point{
			center[0] + radius*math.Cos(theta),
			center[1] + radius*math.Sin(theta),
		})
	}
	return orb.Polygon{ring}
}
