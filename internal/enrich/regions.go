package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RegionMap maps ISO country codes onto reporting regions. The mapping is
// loaded from an external JSON file so new markets can be added without a
// code change; unmapped codes fall into the default bucket.
type RegionMap struct {
	byCountry map[string]string
	fallback  string
}

// regionFile is the on-disk shape of the mapping:
//
//	{
//	  "default": "Other",
//	  "countries": { "DE": "Europe", "US": "North America" }
//	}
type regionFile struct {
	Default   string            `json:"default"`
	Countries map[string]string `json:"countries"`
}

// DefaultRegionBucket is used when the file does not name one.
const DefaultRegionBucket = "Other"

// NewRegionMap builds a map from an in-memory table. Country codes are
// matched case-insensitively.
func NewRegionMap(countries map[string]string, fallback string) *RegionMap {
	if fallback == "" {
		fallback = DefaultRegionBucket
	}
	m := make(map[string]string, len(countries))
	for code, region := range countries {
		m[strings.ToUpper(strings.TrimSpace(code))] = region
	}
	return &RegionMap{byCountry: m, fallback: fallback}
}

// LoadRegionMap reads the mapping file at path.
func LoadRegionMap(path string) (*RegionMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("region map: %w", err)
	}
	var f regionFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("region map %s: %w", path, err)
	}
	if len(f.Countries) == 0 {
		return nil, fmt.Errorf("region map %s: no countries defined", path)
	}
	return NewRegionMap(f.Countries, f.Default), nil
}

// Region returns the region for code, or the default bucket when unmapped.
func (m *RegionMap) Region(code string) string {
	if r, ok := m.byCountry[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return r
	}
	return m.fallback
}
