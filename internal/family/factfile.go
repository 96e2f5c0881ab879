package family

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"famtree/internal/types"
)

// FactFile is the YAML form of a replacement family tree:
//
//	parents:
//	  - parent: john
//	    child: mary
type FactFile struct {
	Parents []ParentEntry `yaml:"parents"`
}

// ParentEntry is one parent(Parent, Child) fact.
type ParentEntry struct {
	Parent string `yaml:"parent"`
	Child  string `yaml:"child"`
}

// LoadFactFile reads parent facts from a YAML file. Names are case-normalized.
func LoadFactFile(path string) ([]types.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fact file: %w", err)
	}
	return ParseFactFile(data)
}

// ParseFactFile decodes and validates YAML fact data.
func ParseFactFile(data []byte) ([]types.Fact, error) {
	var ff FactFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse fact file: %w", err)
	}
	if len(ff.Parents) == 0 {
		return nil, fmt.Errorf("fact file has no parents entries")
	}

	facts := make([]types.Fact, 0, len(ff.Parents))
	for i, entry := range ff.Parents {
		parent, err := types.NewAtom(entry.Parent)
		if err != nil {
			return nil, fmt.Errorf("parents[%d].parent: %w", i, err)
		}
		child, err := types.NewAtom(entry.Child)
		if err != nil {
			return nil, fmt.Errorf("parents[%d].child: %w", i, err)
		}
		facts = append(facts, types.Fact{Relation: Parent, Args: []types.Atom{parent, child}})
	}
	return facts, nil
}
