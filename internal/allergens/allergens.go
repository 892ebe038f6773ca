// Package allergens detects EU allergen groups in free-form ingredient text.
package allergens

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bakehouse/ordering/internal/textnorm"
)

//go:embed allergens.yaml
var defaultTable []byte

type Allergen struct {
	Number int    `json:"number" yaml:"number"`
	Name   string `json:"name" yaml:"name"`
}

type group struct {
	Allergen `yaml:",inline"`
	Keywords []string `yaml:"keywords"`
}

type Detector struct {
	groups []group
}

// Parse builds a detector from a YAML list of {number, name, keywords} groups.
func Parse(data []byte) (*Detector, error) {
	var groups []group
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse allergen table: %w", err)
	}
	for i := range groups {
		if groups[i].Name == "" {
			return nil, fmt.Errorf("allergen group %d has no name", i)
		}
		for j, kw := range groups[i].Keywords {
			groups[i].Keywords[j] = textnorm.Fold(kw)
		}
	}
	return &Detector{groups: groups}, nil
}

// Default returns the detector for the built-in table.
func Default() *Detector {
	d, err := Parse(defaultTable)
	if err != nil {
		panic(err)
	}
	return d
}

// Detect returns every group with a keyword found in text, in table order, each at most once.
func (d *Detector) Detect(text string) []Allergen {
	found := []Allergen{}
	folded := textnorm.Fold(text)
	if folded == "" {
		return found
	}
	for _, g := range d.groups {
		for _, kw := range g.Keywords {
			if kw != "" && strings.Contains(folded, kw) {
				found = append(found, g.Allergen)
				break
			}
		}
	}
	return found
}
