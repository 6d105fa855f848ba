// Package catalog holds the immutable reference data used to validate and
// render certification requests: cities, provinces, validity periods and labels.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/firmasegura/certifications-backend/pkg/enums"
)

//go:embed catalog.yaml
var embedded []byte

// Period is a purchasable validity period.
type Period struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

type document struct {
	Country          string            `yaml:"country"`
	DocumentType     string            `yaml:"document_type"`
	Cities           []string          `yaml:"cities"`
	Provinces        []string          `yaml:"provinces"`
	Periods          []Period          `yaml:"periods"`
	ApplicationTypes map[string]string `yaml:"application_types"`
	Statuses         map[string]string `yaml:"statuses"`
}

// Catalog is safe for concurrent reads; it is never mutated after Load.
type Catalog struct {
	doc       document
	cities    map[string]struct{}
	provinces map[string]struct{}
	periods   map[string]Period
}

// Snapshot is the JSON view served to form clients.
type Snapshot struct {
	Country          string            `json:"country"`
	DocumentType     string            `json:"document_type"`
	Cities           []string          `json:"cities"`
	Provinces        []string          `json:"provinces"`
	Periods          []Period          `json:"periods"`
	ApplicationTypes map[string]string `json:"application_types"`
	Statuses         map[string]string `json:"statuses"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads the catalog from path, falling back to the embedded copy when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse builds a catalog from YAML bytes.
func Parse(raw []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Cities) == 0 {
		return nil, fmt.Errorf("catalog has no cities")
	}
	if len(doc.Provinces) == 0 {
		return nil, fmt.Errorf("catalog has no provinces")
	}
	if len(doc.Periods) == 0 {
		return nil, fmt.Errorf("catalog has no periods")
	}
	for _, status := range enums.CertificationStatuses() {
		if doc.Statuses[status.String()] == "" {
			return nil, fmt.Errorf("catalog missing label for status %s", status)
		}
	}

	c := &Catalog{
		doc:       doc,
		cities:    make(map[string]struct{}, len(doc.Cities)),
		provinces: make(map[string]struct{}, len(doc.Provinces)),
		periods:   make(map[string]Period, len(doc.Periods)),
	}
	for _, city := range doc.Cities {
		c.cities[city] = struct{}{}
	}
	for _, province := range doc.Provinces {
		c.provinces[province] = struct{}{}
	}
	for _, period := range doc.Periods {
		if period.Code == "" {
			return nil, fmt.Errorf("catalog period without code")
		}
		c.periods[period.Code] = period
	}
	return c, nil
}

func (c *Catalog) HasCity(city string) bool {
	_, ok := c.cities[city]
	return ok
}

func (c *Catalog) HasProvince(province string) bool {
	_, ok := c.provinces[province]
	return ok
}

func (c *Catalog) HasPeriod(code string) bool {
	_, ok := c.periods[code]
	return ok
}

// PeriodLabel returns the display label for a period code, or the code itself when unknown.
func (c *Catalog) PeriodLabel(code string) string {
	if p, ok := c.periods[code]; ok {
		return p.Label
	}
	return code
}

func (c *Catalog) StatusLabel(status enums.CertificationStatus) string {
	if label, ok := c.doc.Statuses[status.String()]; ok {
		return label
	}
	return status.String()
}

func (c *Catalog) ApplicationTypeLabel(t enums.ApplicationType) string {
	if label, ok := c.doc.ApplicationTypes[t.String()]; ok {
		return label
	}
	return t.String()
}

// Snapshot returns a copy of the reference data.
func (c *Catalog) Snapshot() Snapshot {
	return Snapshot{
		Country:          c.doc.Country,
		DocumentType:     c.doc.DocumentType,
		Cities:           append([]string(nil), c.doc.Cities...),
		Provinces:        append([]string(nil), c.doc.Provinces...),
		Periods:          append([]Period(nil), c.doc.Periods...),
		ApplicationTypes: copyMap(c.doc.ApplicationTypes),
		Statuses:         copyMap(c.doc.Statuses),
	}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
