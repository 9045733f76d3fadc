package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
)

// fixture is a store list with the price and carry data for one product, as
// read from a YAML or JSON file.
type fixture struct {
	ProductID    string           `json:"productId,omitempty"`
	UserLocation *stores.Location `json:"userLocation,omitempty"`
	Stores       []stores.Store   `json:"stores"`
	Prices       map[string]int64 `json:"prices,omitempty"`
	Carried      []string         `json:"carried,omitempty"`
}

// loadFixture reads path. Files ending in .json are decoded directly; any
// other file is decoded as YAML and then through the JSON field names.
func loadFixture(path string) (*fixture, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return parseFixture(content, strings.EqualFold(filepath.Ext(path), ".json"))
}

func parseFixture(content []byte, isJSON bool) (*fixture, error) {
	if !isJSON {
		var doc any
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse fixture yaml: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to convert fixture yaml: %w", err)
		}
		content = converted
	}

	var f fixture
	if err := json.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if f.UserLocation != nil {
		if err := f.UserLocation.Validate(); err != nil {
			return nil, err
		}
	}
	for i, s := range f.Stores {
		if s.ID == "" {
			return nil, fmt.Errorf("stores[%d]: id is required", i)
		}
		if s.Location != nil {
			if err := s.Location.Validate(); err != nil {
				return nil, fmt.Errorf("stores[%d]: %w", i, err)
			}
		}
	}
	return &f, nil
}

// query builds the ranking input for the fixture.
func (f *fixture) query() ranking.Query {
	return ranking.Query{
		Stores:       f.Stores,
		UserLocation: f.UserLocation,
		Prices:       ranking.PriceIndex(f.Prices),
		Carried:      ranking.NewStoreSet(f.Carried...),
	}
}
