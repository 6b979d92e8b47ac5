package geohub

// RestBase is the Ontario GeoHub (Land Information Ontario) ArcGIS REST root.
const RestBase = "https://ws.lioservices.lrc.gov.on.ca/arcgis2/rest/services"

// Layer is one catalogue entry. OutputPath is relative to the datasets
// directory. Bulk layers are too large for a routine run and only download
// when named explicitly.
type Layer struct {
	ID          string
	Name        string
	Description string
	Category    string
	RestURL     string
	OutputPath  string
	Source      string
	License     string
	Notes       string
	Bulk        bool
}

const olLicense = "Open Government Licence - Ontario"

// Catalogue lists the climate adaptation layers pulled from GeoHub. Order is
// the listing order.
var Catalogue = []Layer{
	{
		ID:          "wetlands",
		Name:        "Wetlands with Significance",
		Description: "Provincial wetlands with ecological significance ratings",
		Category:    "water",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open01/MapServer/15",
		OutputPath:  "environmental/wetlands.geojson",
		Source:      "Ontario GeoHub - Land Information Ontario",
		License:     olLicense,
	},
	{
		ID:          "watercourse",
		Name:        "Watercourses (Rivers/Streams)",
		Description: "Ontario Hydro Network - linear water features (1:10M scale)",
		Category:    "water",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open02/MapServer/15",
		OutputPath:  "environmental/watercourses.geojson",
		Source:      "Ontario GeoHub - Ontario Hydro Network",
		License:     olLicense,
	},
	{
		ID:          "waterbody",
		Name:        "Waterbodies (Lakes/Ponds)",
		Description: "Ontario Hydro Network - polygon water features (1:10M scale)",
		Category:    "water",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open02/MapServer/8",
		OutputPath:  "environmental/waterbodies.geojson",
		Source:      "Ontario GeoHub - Ontario Hydro Network",
		License:     olLicense,
	},
	{
		ID:          "watershed_tertiary",
		Name:        "Tertiary Watersheds",
		Description: "Ontario Watershed Boundaries - Tertiary level drainage areas",
		Category:    "water",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open04/MapServer/2",
		OutputPath:  "environmental/watersheds_tertiary.geojson",
		Source:      "Ontario GeoHub - Ontario Watershed Boundaries",
		License:     olLicense,
	},
	{
		ID:          "watershed_quaternary",
		Name:        "Quaternary Watersheds",
		Description: "Ontario Watershed Boundaries - Quaternary (smallest) drainage areas",
		Category:    "water",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open04/MapServer/1",
		OutputPath:  "environmental/watersheds_quaternary.geojson",
		Source:      "Ontario GeoHub - Ontario Watershed Boundaries",
		License:     olLicense,
	},
	{
		ID:          "dams",
		Name:        "Dam Inventory",
		Description: "Ontario Dam Inventory - location and details of dams",
		Category:    "water",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open04/MapServer/0",
		OutputPath:  "environmental/dams.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
	},
	{
		ID:          "conservation_reserves",
		Name:        "Conservation Reserves",
		Description: "Ontario Conservation Reserves - regulated protected areas",
		Category:    "ecology",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open03/MapServer/2",
		OutputPath:  "protected_areas/conservation_reserves.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
	},
	{
		ID:          "federal_protected",
		Name:        "Federal Protected Areas",
		Description: "Federal protected areas (National Parks, Wildlife Areas)",
		Category:    "ecology",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open03/MapServer/10",
		OutputPath:  "protected_areas/federal_protected.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
	},
	{
		ID:          "national_wildlife_area",
		Name:        "National Wildlife Areas",
		Description: "National Wildlife Areas in Ontario",
		Category:    "ecology",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open03/MapServer/9",
		OutputPath:  "protected_areas/national_wildlife_areas.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
	},
	{
		ID:          "ecodistrict",
		Name:        "Ecodistricts",
		Description: "Ontario Ecodistricts - ecological classification units",
		Category:    "ecology",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open03/MapServer/15",
		OutputPath:  "environmental/ecodistricts.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
	},
	{
		ID:          "ecoregion",
		Name:        "Ecoregions",
		Description: "Ontario Ecoregions - broad ecological classification",
		Category:    "ecology",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open03/MapServer/16",
		OutputPath:  "environmental/ecoregions.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
	},
	{
		ID:          "trails",
		Name:        "Recreational Trails",
		Description: "Ontario Recreational Trail Network - trail segments",
		Category:    "recreation",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open04/MapServer/19",
		OutputPath:  "infrastructure/trails.geojson",
		Source:      "Ontario GeoHub - Ontario Trail Network",
		License:     olLicense,
	},
	{
		ID:          "trail_access",
		Name:        "Trail Access Points",
		Description: "Ontario Trail Network - access points and trailheads",
		Category:    "recreation",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open04/MapServer/20",
		OutputPath:  "infrastructure/trail_access_points.geojson",
		Source:      "Ontario GeoHub - Ontario Trail Network",
		License:     olLicense,
	},
	{
		ID:          "contours",
		Name:        "Contour Lines",
		Description: "Topographic contour lines",
		Category:    "terrain",
		RestURL:     RestBase + "/LIO_OPEN_DATA/LIO_Open01/MapServer/29",
		OutputPath:  "environmental/contours.geojson",
		Source:      "Ontario GeoHub",
		License:     olLicense,
		Notes:       "Large dataset - may take time to download",
		Bulk:        true,
	},
}

// Find looks a layer up by ID.
func Find(id string) (Layer, bool) {
	for _, l := range Catalogue {
		if l.ID == id {
			return l, true
		}
	}
	return Layer{}, false
}
