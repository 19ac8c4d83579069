package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/accioai/accio/internal/models"
)

const defaultFetchFrequencyHours = 24

// CatalogEntry is one source in a YAML source catalog.
type CatalogEntry struct {
	Name                string `yaml:"name"`
	URL                 string `yaml:"url"`
	Category            string `yaml:"category"`
	Type                string `yaml:"type"`
	FetchFrequencyHours int    `yaml:"fetch_frequency_hours"`
	Active              *bool  `yaml:"active"`
}

// Catalog is the top-level document of a source catalog file.
type Catalog struct {
	Sources []CatalogEntry `yaml:"sources"`
}

// LoadCatalogFile reads and validates a catalog from disk.
func LoadCatalogFile(path string) ([]models.ContentSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return LoadCatalog(bytes.NewReader(data))
}

// LoadCatalog decodes a catalog and converts it to content sources. Entries
// default to type rss, active, and a daily fetch frequency. Every invalid entry
// is reported in the returned error.
func LoadCatalog(r io.Reader) ([]models.ContentSource, error) {
	var catalog Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	sources := make([]models.ContentSource, 0, len(catalog.Sources))
	seen := make(map[string]int, len(catalog.Sources))
	var problems []error

	for i, entry := range catalog.Sources {
		src, err := entry.toSource()
		if err != nil {
			problems = append(problems, fmt.Errorf("source %d (%s): %w", i+1, entry.Name, err))
			continue
		}
		if prev, ok := seen[src.SourceURL]; ok {
			problems = append(problems, fmt.Errorf("source %d (%s): duplicate url, first listed as source %d", i+1, entry.Name, prev))
			continue
		}
		seen[src.SourceURL] = i + 1
		sources = append(sources, src)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return sources, nil
}

func (e CatalogEntry) toSource() (models.ContentSource, error) {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return models.ContentSource{}, errors.New("name is required")
	}

	rawURL := strings.TrimSpace(e.URL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.ContentSource{}, fmt.Errorf("invalid url %q", e.URL)
	}

	category := strings.ToLower(strings.TrimSpace(e.Category))
	if category == "" {
		return models.ContentSource{}, errors.New("category is required")
	}

	sourceType := models.SourceTypeRSS
	if e.Type != "" {
		sourceType = models.SourceType(strings.ToLower(e.Type))
		if !sourceType.Valid() {
			return models.ContentSource{}, fmt.Errorf("unknown type %q", e.Type)
		}
	}

	freq := e.FetchFrequencyHours
	if freq == 0 {
		freq = defaultFetchFrequencyHours
	}
	if freq < 0 {
		return models.ContentSource{}, errors.New("fetch_frequency_hours must be positive")
	}

	active := true
	if e.Active != nil {
		active = *e.Active
	}

	return models.ContentSource{
		Name:                name,
		SourceType:          sourceType,
		SourceURL:           rawURL,
		Category:            category,
		IsActive:            active,
		FetchFrequencyHours: freq,
	}, nil
}
