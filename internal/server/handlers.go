package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/williamstreaties/atlas/internal/aoi"
	"github.com/williamstreaties/atlas/internal/layers"
	"github.com/williamstreaties/atlas/pkg/geo"
	"github.com/williamstreaties/atlas/pkg/proj"
)

const (
	serviceName        = "Williams Treaty Territories Environmental Data Browser"
	serviceVersion     = "1.0.0"
	serviceDescription = "Interactive map for environmental planning and climate change adaptation"
)

var dataSources = []string{
	"Natural Resources Canada",
	"Ontario Ministry of Natural Resources",
	"Conservation Authorities",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

// handleData serves files from the data tree, or redirects to the bucket
// when one is configured. Rasters are marked uncacheable because they get
// rewritten in place by the pipeline.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.metrics.DataRequests.Inc()

	rel := cleanRequestPath(strings.TrimPrefix(r.URL.Path, "/data/"))
	if rel == "" {
		writeJSONError(w, http.StatusNotFound, "File not found")
		return
	}
	local := filepath.Join(s.cfg.Directories.Data, filepath.FromSlash(rel))

	if s.redirecting() {
		serveLocal := false
		if s.opts.PreferLocal {
			if info, err := os.Stat(local); err == nil && !info.IsDir() {
				serveLocal = true
			}
		}
		if !serveLocal {
			s.metrics.Redirects.Inc()
			target := strings.TrimSuffix(s.opts.BucketURL, "/") + "/" + rel
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
	}

	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		writeJSONError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Type", layers.ContentType(local))
	if layers.KindOf(local) == layers.Raster {
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	http.ServeFile(w, r, local)
}

// handleWeb serves the map client. With no client installed the index
// becomes a plain text banner so a bare deployment still answers.
func (s *Server) handleWeb(w http.ResponseWriter, r *http.Request) {
	static := filepath.Join(s.cfg.Directories.Web, "static")

	if r.URL.Path == "/" {
		index := filepath.Join(static, "index.html")
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			w.Header().Set("Content-Type", layers.ContentType(index))
			http.ServeFile(w, r, index)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, serviceName)
		fmt.Fprintln(w, "Datasets are under /data/, the inventory at /api/layers.")
		return
	}

	rel := cleanRequestPath(r.URL.Path)
	local := filepath.Join(static, filepath.FromSlash(rel))
	info, err := os.Stat(local)
	if err != nil || info.IsDir() {
		writeJSONError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", layers.ContentType(local))
	http.ServeFile(w, r, local)
}

// handleLayers inventories everything the pipeline has published. Raw
// downloads and metadata stay out of the listing, the map has no use for
// them.
func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	all, err := layers.List(s.cfg.Directories.Data)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		writeJSONError(w, http.StatusInternalServerError, "Failed to list layers")
		return
	}

	hidden := s.hiddenPrefixes()
	kept := make([]layers.Layer, 0, len(all))
	for _, layer := range all {
		if hasAnyPrefix(layer.Path, hidden) {
			continue
		}
		kept = append(kept, layer)
	}

	writeJSON(w, map[string]any{
		"count":  len(kept),
		"layers": kept,
	})
}

// hiddenPrefixes resolves the raw and metadata directories relative to the
// data root. Either may live elsewhere entirely, in which case the walk
// never sees it.
func (s *Server) hiddenPrefixes() []string {
	var prefixes []string
	for _, dir := range []string{s.cfg.Directories.Raw, s.cfg.Directories.Metadata} {
		rel, err := filepath.Rel(s.cfg.Directories.Data, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		prefixes = append(prefixes, filepath.ToSlash(rel)+"/")
	}
	return prefixes
}

func hasAnyPrefix(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"name":         serviceName,
		"version":      serviceVersion,
		"description":  serviceDescription,
		"data_sources": dataSources,
	}

	if fc, err := geo.ReadCollection(s.cfg.AOIPath()); err == nil && len(fc.Features) > 0 {
		b := geo.CollectionBound(fc)
		summary := map[string]any{
			"bbox": []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		}
		if g, err := aoi.Geometry(s.cfg); err == nil {
			if utm, err := proj.ByCode(s.cfg.UTMCode()); err == nil {
				summary["area_km2"] = geo.AreaSqKm(g, utm)
			}
		}
		info["aoi"] = summary
	}

	if all, err := layers.List(s.cfg.Directories.Datasets); err == nil {
		info["dataset_count"] = len(all)
	}

	writeJSON(w, info)
}

// handleLayerConfig re-encodes the map client's layer styling file as JSON.
func (s *Server) handleLayerConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := os.ReadFile(s.cfg.LayerConfigPath())
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Layer config not found")
		return
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Invalid layer config")
		return
	}
	writeJSON(w, doc)
}

// cleanRequestPath collapses any traversal out of a request path and
// returns it relative, so it can only join below the served root.
func cleanRequestPath(p string) string {
	cleaned := path.Clean("/" + strings.TrimPrefix(p, "/"))
	return strings.TrimPrefix(cleaned, "/")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
