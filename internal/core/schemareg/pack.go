// Package schemareg loads per-dataset schema maps and resolves raw headers to
// canonical field keys. Maps are seeded from the embedded packs.yaml (plus any
// operator-provided packs) and are immutable once loaded
package schemareg

import (
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed packs.yaml
var embedded []byte

// rawField is one canonical key with its accepted raw header aliases
// header order is the resolution order: first present non-empty alias wins
type rawField struct {
	Key     string   `yaml:"key" validate:"required"`
	Headers []string `yaml:"headers" validate:"min=1,dive,required"`
}

// rawDataset describes one (source, variant) schema map
type rawDataset struct {
	Key        string     `yaml:"key" validate:"required"`
	Source     string     `yaml:"source" validate:"required"`
	Variant    string     `yaml:"variant" validate:"required"`
	NaturalKey string     `yaml:"natural_key"`
	Fields     []rawField `yaml:"fields" validate:"min=1,dive"`
}

type rawPack struct {
	Version  int          `yaml:"version" validate:"required,min=1"`
	Datasets []rawDataset `yaml:"datasets" validate:"min=1,dive"`
}

// DatasetMap is a compiled schema map for a single dataset key
type DatasetMap struct {
	Key        string
	Source     string
	Variant    string
	NaturalKey string // canonical key holding the dataset's own natural key, "" when none

	// canonical key -> folded headers in declaration order
	fields map[string][]string
	// declaration order of canonical keys, for deterministic iteration
	keys []string
}

// Keys returns the canonical keys this map knows, in declaration order
func (dm *DatasetMap) Keys() []string { return dm.keys }

// Load compiles the embedded default pack
func Load() (*Registry, error) { return LoadBytes(embedded) }

// LoadBytes compiles a YAML pack into a Registry
func LoadBytes(b []byte) (*Registry, error) {
	var p rawPack
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("schemareg: parse pack: %w", err)
	}
	if err := validator.New().Struct(p); err != nil {
		return nil, fmt.Errorf("schemareg: invalid pack: %w", err)
	}

	r := &Registry{datasets: make(map[string]*DatasetMap, len(p.Datasets))}
	for _, d := range p.Datasets {
		dm := &DatasetMap{
			Key:        d.Key,
			Source:     d.Source,
			Variant:    d.Variant,
			NaturalKey: d.NaturalKey,
			fields:     make(map[string][]string, len(d.Fields)),
		}
		for _, f := range d.Fields {
			if _, dup := dm.fields[f.Key]; dup {
				return nil, fmt.Errorf("schemareg: dataset %s: duplicate canonical key %s", d.Key, f.Key)
			}
			hs := make([]string, 0, len(f.Headers))
			for _, h := range f.Headers {
				hs = append(hs, FoldHeader(h))
			}
			dm.fields[f.Key] = hs
			dm.keys = append(dm.keys, f.Key)
		}
		if _, dup := r.datasets[d.Key]; dup {
			return nil, fmt.Errorf("schemareg: duplicate dataset key %s", d.Key)
		}
		r.datasets[d.Key] = dm
	}
	return r, nil
}
