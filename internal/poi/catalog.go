// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package poi holds the static points of interest drawn over the map.
package poi

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/geotrack/internal/geo"
)

// POI is one point of interest.
type POI struct {
	ID       string  `yaml:"id" json:"id" validate:"required"`
	Name     string  `yaml:"name" json:"name" validate:"required"`
	Category string  `yaml:"category" json:"category,omitempty"`
	Lat      float64 `yaml:"lat" json:"lat" validate:"gte=-90,lte=90"`
	Lon      float64 `yaml:"lon" json:"lon" validate:"gte=-180,lte=180"`
}

// Point returns the POI location as an orb point (lon, lat).
func (p POI) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

type file struct {
	POIs []POI `yaml:"pois" validate:"dive"`
}

// Catalog is an immutable set of POIs.
type Catalog struct {
	pois []POI
}

// Match is a POI with its distance from a query point.
type Match struct {
	POI
	DistanceM float64 `json:"distance_m"`
}

// Load reads a YAML catalog from path. An empty path yields an empty
// catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open POI file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML catalog of the form
//
//	pois:
//	  - id: central
//	    name: Central Station
//	    lat: 39.9042
//	    lon: 116.4074
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode POI file: %w", err)
	}
	if err := validator.New().Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid POI file: %w", err)
	}

	seen := make(map[string]bool, len(doc.POIs))
	for _, p := range doc.POIs {
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate POI id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return &Catalog{pois: doc.POIs}, nil
}

// New builds a catalog from pois without validation.
func New(pois ...POI) *Catalog {
	return &Catalog{pois: append([]POI(nil), pois...)}
}

// Len returns the number of POIs.
func (c *Catalog) Len() int { return len(c.pois) }

// All returns a copy of the POIs in file order.
func (c *Catalog) All() []POI {
	return append([]POI(nil), c.pois...)
}

// Nearest returns the POI closest to (lat, lon).
func (c *Catalog) Nearest(lat, lon float64) (Match, bool) {
	var best Match
	found := false
	for _, p := range c.pois {
		d := geo.Distance(lat, lon, p.Lat, p.Lon)
		if !found || d < best.DistanceM {
			best = Match{POI: p, DistanceM: d}
			found = true
		}
	}
	return best, found
}

// Within returns the POIs within radiusM of (lat, lon), closest first.
func (c *Catalog) Within(lat, lon, radiusM float64) []Match {
	var out []Match
	for _, p := range c.pois {
		if d := geo.Distance(lat, lon, p.Lat, p.Lon); d <= radiusM {
			out = append(out, Match{POI: p, DistanceM: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceM < out[j].DistanceM })
	return out
}

// FeatureCollection renders the catalog as GeoJSON point features.
func (c *Catalog) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range c.pois {
		fc.Append(p.Feature())
	}
	return fc
}

// Feature renders p as a GeoJSON point feature.
func (p POI) Feature() *geojson.Feature {
	f := geojson.NewFeature(p.Point())
	f.ID = p.ID
	f.Properties["name"] = p.Name
	if p.Category != "" {
		f.Properties["category"] = p.Category
	}
	return f
}
