package model

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// MetricGroup describes a display grouping of related fields.
type MetricGroup struct {
	Label  string   `yaml:"label" json:"label"`
	Fields []string `yaml:"fields" json:"fields"`
	Icon   string   `yaml:"icon" json:"icon"`
}

// FieldMeta describes how a single field is labeled and formatted.
type FieldMeta struct {
	Label  string `yaml:"label" json:"label"`
	Format string `yaml:"format" json:"format"` // text, number, currency, boolean, list, tags
}

// Catalog holds the metric-group and field display metadata used by listing
// surfaces. It is data, not behavior, so it lives in a yaml document rather
// than in code.
type Catalog struct {
	Groups map[string]MetricGroup `yaml:"groups"`
	Fields map[string]FieldMeta   `yaml:"fields"`
}

//go:embed groups.yaml
var catalogYAML []byte

// LoadCatalog parses the embedded metric catalog.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, eris.Wrap(err, "model: parse metric catalog")
	}
	return &c, nil
}

// GroupFor returns the group key owning the given field, or "".
func (c *Catalog) GroupFor(field string) string {
	for key, g := range c.Groups {
		for _, f := range g.Fields {
			if f == field {
				return key
			}
		}
	}
	return ""
}
