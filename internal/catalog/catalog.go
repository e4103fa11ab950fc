// Package catalog loads the list of datasets the map can display. Each
// entry declares the document shape of its resource so the transformer
// never has to guess.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/couchcryptid/submission-map/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrUnknownDataset is returned by Resolve for names not in a strict catalog.
var ErrUnknownDataset = errors.New("unknown dataset")

// Entry describes one selectable dataset.
type Entry struct {
	Name     string        `yaml:"name" json:"name"`
	Title    string        `yaml:"title,omitempty" json:"title,omitempty"`
	Resource string        `yaml:"resource" json:"resource"`
	Schema   domain.Schema `yaml:"schema" json:"schema"`
}

// Catalog maps dataset names to their resources.
type Catalog struct {
	// Default is selected on start-up.
	Default string `yaml:"default"`
	// Strict rejects names that are not listed. When false, an unlisted name
	// is treated as a resource path using FallbackSchema.
	Strict         bool          `yaml:"strict"`
	FallbackSchema domain.Schema `yaml:"fallback_schema"`
	Datasets       []Entry       `yaml:"datasets"`

	byName map[string]Entry
}

// Builtin is used when no catalog file exists: the sample flat list the map
// page has always shipped with.
func Builtin() *Catalog {
	c := &Catalog{
		Default:        "sample",
		FallbackSchema: domain.SchemaHappenings,
		Datasets: []Entry{
			{Name: "sample", Title: "Sample", Resource: "sample.JSON", Schema: domain.SchemaFlatList},
		},
	}
	c.index()
	return c
}

// Load reads a YAML catalog. A missing file yields Builtin().
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Builtin(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.index()
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Datasets) == 0 {
		return errors.New("catalog: datasets is empty")
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i, e := range c.Datasets {
		if e.Name == "" {
			return fmt.Errorf("catalog: datasets[%d]: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("catalog: duplicate dataset %q", e.Name)
		}
		seen[e.Name] = true
		if e.Resource == "" {
			return fmt.Errorf("catalog: dataset %q: resource is required", e.Name)
		}
		if e.Schema == 0 {
			return fmt.Errorf("catalog: dataset %q: schema is required", e.Name)
		}
	}
	if c.Default == "" {
		c.Default = c.Datasets[0].Name
	}
	if !seen[c.Default] {
		return fmt.Errorf("catalog: default dataset %q is not listed", c.Default)
	}
	if c.FallbackSchema == 0 {
		c.FallbackSchema = domain.SchemaHappenings
	}
	return nil
}

func (c *Catalog) index() {
	c.byName = make(map[string]Entry, len(c.Datasets))
	for _, e := range c.Datasets {
		c.byName[e.Name] = e
	}
}

// Resolve returns the entry for name. Unlisted names resolve to a synthetic
// entry unless the catalog is strict.
func (c *Catalog) Resolve(name string) (Entry, error) {
	if e, ok := c.byName[name]; ok {
		return e, nil
	}
	if c.Strict {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return Entry{Name: name, Resource: name, Schema: c.FallbackSchema}, nil
}

// Entries returns the listed datasets sorted by name.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.Datasets))
	copy(out, c.Datasets)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
