package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPartition receives products whose id matches no prefix rule.
const DefaultPartition = "general"

// PartitionRule maps a product id prefix to its catalog partition.
type PartitionRule struct {
	Prefix   string `yaml:"prefix"`
	Category string `yaml:"category"`
}

// PartitionMap resolves product ids to catalog partitions. Rules are
// checked in file order; the first matching prefix wins.
type PartitionMap struct {
	Default string          `yaml:"default"`
	Rules   []PartitionRule `yaml:"partitions"`
}

// LoadPartitions reads a partition map from a YAML file.
func LoadPartitions(path string) (*PartitionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load partitions %q: %w", path, err)
	}
	var pm PartitionMap
	if err := yaml.Unmarshal(data, &pm); err != nil {
		return nil, fmt.Errorf("parse partitions %q: %w", path, err)
	}
	if pm.Default == "" {
		pm.Default = DefaultPartition
	}
	return &pm, nil
}

// Builtin returns the stock mapping used when no partitions file is supplied.
func Builtin() *PartitionMap {
	return &PartitionMap{
		Default: DefaultPartition,
		Rules: []PartitionRule{
			{Prefix: "ring-", Category: "rings"},
			{Prefix: "neck-", Category: "necklaces"},
			{Prefix: "earr-", Category: "earrings"},
			{Prefix: "brac-", Category: "bracelets"},
		},
	}
}

// Resolve returns the partition for a product id. The second return is false
// when no rule matched and the default partition was used.
func (pm *PartitionMap) Resolve(id string) (string, bool) {
	for _, r := range pm.Rules {
		if strings.HasPrefix(id, r.Prefix) {
			return r.Category, true
		}
	}
	return pm.Default, false
}

// Categories lists every distinct partition the map can produce, default last.
func (pm *PartitionMap) Categories() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(pm.Rules)+1)
	for _, r := range pm.Rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	if !seen[pm.Default] {
		out = append(out, pm.Default)
	}
	return out
}
