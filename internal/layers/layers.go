// Package layers inventories the generated dataset files. The API server
// publishes the inventory and the bucket sync reuses its content types.
package layers

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind is the broad family a dataset file belongs to.
type Kind string

const (
	Vector   Kind = "vector"
	Raster   Kind = "raster"
	Metadata Kind = "metadata"
	Other    Kind = "other"
)

// Layer describes one generated file.
type Layer struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Type     Kind      `json:"type"`
}

// ContentType maps a dataset file to the MIME type it serves with.
func ContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson":
		return "application/geo+json"
	case ".json":
		return "application/json"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".csv":
		return "text/csv"
	case ".yaml", ".yml":
		return "text/yaml"
	case ".html":
		return "text/html; charset=utf-8"
	case ".js":
		return "text/javascript"
	case ".css":
		return "text/css"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// KindOf classifies a dataset file by extension.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson":
		return Vector
	case ".tif", ".tiff":
		return Raster
	case ".json", ".csv", ".yaml", ".yml":
		return Metadata
	default:
		return Other
	}
}

// List walks a directory tree and returns an entry per regular file,
// sorted by relative path. Dotfiles and dot-directories are skipped.
func List(root string) ([]Layer, error) {
	var out []Layer
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		out = append(out, Layer{
			Name:     strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Path:     filepath.ToSlash(rel),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
			Type:     KindOf(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
