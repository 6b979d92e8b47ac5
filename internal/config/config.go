// Package config loads the project configuration. Everything has a working
// default so the commands run without a config file; config.yaml overrides
// whatever it sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Directories Directories `yaml:"directories"`
	CRS         CRS         `yaml:"crs"`
	AOI         AOI         `yaml:"aoi"`
	Datasets    Datasets    `yaml:"datasets"`
	Server      Server      `yaml:"server"`
}

// Directories are relative to the working directory unless absolute.
type Directories struct {
	Data       string `yaml:"data"`
	Raw        string `yaml:"raw"`
	Processed  string `yaml:"processed"`
	Boundaries string `yaml:"boundaries"`
	Datasets   string `yaml:"datasets"`
	Metadata   string `yaml:"metadata"`
	Web        string `yaml:"web"`
}

// CRS names are "EPSG:<code>" strings, matching what the map client reads
// from layer metadata.
type CRS struct {
	Geographic string `yaml:"geographic"`
	UTM        string `yaml:"utm"`
}

type AOI struct {
	BBox         [4]float64 `yaml:"bbox"` // west, south, east, north
	BufferMeters float64    `yaml:"buffer_meters"`
	FirstNations []string   `yaml:"first_nations"`
}

type Datasets struct {
	Landcover Landcover `yaml:"landcover"`
	NDVI      NDVI      `yaml:"ndvi"`
	Fire      Fire      `yaml:"fire"`
}

type Landcover struct {
	Years []int `yaml:"years"`
}

type NDVI struct {
	DateRange     DateRange `yaml:"date_range"`
	MaxCloudCover float64   `yaml:"max_cloud_cover"`
}

type DateRange struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type Fire struct {
	StartYear int `yaml:"start_year"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns the configuration the project ships with. The bbox covers
// the Lake Simcoe to Kawartha Lakes region.
func Default() *Config {
	return &Config{
		Directories: Directories{
			Data:       "data",
			Raw:        "data/raw",
			Processed:  "data/processed",
			Boundaries: "data/boundaries",
			Datasets:   "data/datasets",
			Metadata:   "data/metadata",
			Web:        "web",
		},
		CRS: CRS{
			Geographic: "EPSG:4326",
			UTM:        "EPSG:26917",
		},
		AOI: AOI{
			BBox:         [4]float64{-79.8, 43.8, -78.3, 44.8},
			BufferMeters: 10000,
			FirstNations: []string{
				"Alderville First Nation",
				"Curve Lake First Nation",
				"Hiawatha First Nation",
				"Mississaugas of Scugog Island First Nation",
				"Beausoleil First Nation",
				"Chippewas of Georgina Island First Nation",
				"Chippewas of Rama First Nation",
			},
		},
		Datasets: Datasets{
			Landcover: Landcover{Years: []int{2010, 2015, 2020}},
			NDVI: NDVI{
				DateRange:     DateRange{Start: "2023-06-01", End: "2023-09-30"},
				MaxCloudCover: 20,
			},
			Fire: Fire{StartYear: 2010},
		},
		Server: Server{
			Host: "127.0.0.1",
			Port: 8000,
		},
	}
}

// Load reads a config file over the defaults. A missing file is not an
// error; the defaults already describe a working project.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// EPSG parses an "EPSG:<code>" string.
func EPSG(name string) (int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(name), "EPSG:")
	code, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse CRS %q: %w", name, err)
	}
	return code, nil
}

// UTMCode returns the configured projected CRS code.
func (c *Config) UTMCode() int {
	code, err := EPSG(c.CRS.UTM)
	if err != nil {
		return 26917
	}
	return code
}

// AOIPath is where the boundary layer lives once the aoi command has run.
func (c *Config) AOIPath() string {
	return filepath.Join(c.Directories.Boundaries, "williams_treaty_aoi.geojson")
}

// AOIUTMPath is the projected copy written alongside the boundary layer.
func (c *Config) AOIUTMPath() string {
	return filepath.Join(c.Directories.Boundaries, "williams_treaty_aoi_utm.geojson")
}

// LayerConfigPath is the map client's layer styling file.
func (c *Config) LayerConfigPath() string {
	return filepath.Join(c.Directories.Web, "config", "layers.yaml")
}
