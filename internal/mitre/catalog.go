// Package mitre holds the ATT&CK techniques referenced by correlation rules.
package mitre

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed techniques.yaml
var techniquesYAML []byte

// Technique is one ATT&CK technique.
type Technique struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Tactic string `yaml:"tactic" json:"tactic"`
	URL    string `yaml:"url" json:"url"`
}

type catalogFile struct {
	Techniques []Technique `yaml:"techniques"`
}

var (
	loadOnce sync.Once
	byID     map[string]Technique
	loadErr  error
)

// Parse decodes a technique catalog and indexes it by ID. Duplicate IDs are
// an error.
func Parse(data []byte) (map[string]Technique, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing technique catalog: %w", err)
	}
	out := make(map[string]Technique, len(f.Techniques))
	for _, t := range f.Techniques {
		if t.ID == "" {
			return nil, fmt.Errorf("technique %q has no id", t.Name)
		}
		if _, dup := out[t.ID]; dup {
			return nil, fmt.Errorf("duplicate technique %s", t.ID)
		}
		out[t.ID] = t
	}
	return out, nil
}

func catalog() map[string]Technique {
	loadOnce.Do(func() {
		byID, loadErr = Parse(techniquesYAML)
	})
	if loadErr != nil {
		// The catalog is embedded at build time; a parse failure is a build defect.
		panic(loadErr)
	}
	return byID
}

// Lookup returns the technique for id.
func Lookup(id string) (Technique, bool) {
	t, ok := catalog()[id]
	return t, ok
}

// Name returns the technique name for id, or id itself when unknown.
func Name(id string) string {
	if t, ok := Lookup(id); ok {
		return t.Name
	}
	return id
}

// All returns every technique sorted by ID.
func All() []Technique {
	c := catalog()
	out := make([]Technique, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
