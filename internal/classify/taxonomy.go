package classify

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// FallbackCategory is where unclassifiable projects land.
const FallbackCategory = "Misc"

// Taxonomy is the closed, versioned set of category path strings. Category
// strings are part of the external contract and must remain stable.
type Taxonomy struct {
	Version    string
	categories []string
	members    map[string]struct{}
}

// defaultCategories is taxonomy version 1.
var defaultCategories = []string{
	"Web/Frontend",
	"Web/Backend",
	"Web/FullStack",
	"Mobile/CrossPlatform",
	"Mobile/iOS",
	"Mobile/Android",
	"SystemUtilities/Python",
	"SystemUtilities/Rust",
	"SystemUtilities/Go",
	"SystemUtilities/Java",
	"Games/Unity",
	"Games/Godot",
	"Libraries/Python",
	"Libraries/JavaScript",
	"Libraries/Rust",
	"DataScience",
	FallbackCategory,
}

// DefaultTaxonomy returns the built-in taxonomy.
func DefaultTaxonomy() *Taxonomy {
	return newTaxonomy("1", defaultCategories)
}

func newTaxonomy(version string, categories []string) *Taxonomy {
	t := &Taxonomy{
		Version:    version,
		categories: append([]string(nil), categories...),
		members:    make(map[string]struct{}, len(categories)),
	}
	for _, c := range categories {
		t.members[c] = struct{}{}
	}
	if _, ok := t.members[FallbackCategory]; !ok {
		t.categories = append(t.categories, FallbackCategory)
		t.members[FallbackCategory] = struct{}{}
	}
	return t
}

// Contains reports whether category is a valid taxonomy member.
func (t *Taxonomy) Contains(category string) bool {
	_, ok := t.members[category]
	return ok
}

// Categories returns the members in declaration order.
func (t *Taxonomy) Categories() []string {
	return append([]string(nil), t.categories...)
}

// taxonomyFile is the YAML shape for a taxonomy override.
type taxonomyFile struct {
	Version    string   `yaml:"version"`
	Categories []string `yaml:"categories"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadTaxonomy reads a taxonomy override from a YAML file. ${VAR} references in
// the file are expanded from the environment before parsing.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	expanded := envVarPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})

	var f taxonomyFile
	if err := yaml.Unmarshal(expanded, &f); err != nil {
		return nil, fmt.Errorf("parse taxonomy file: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("taxonomy file %s defines no categories", path)
	}
	if f.Version == "" {
		f.Version = "custom"
	}
	seen := make(map[string]struct{}, len(f.Categories))
	for _, c := range f.Categories {
		if c == "" {
			return nil, fmt.Errorf("taxonomy file %s contains an empty category", path)
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("taxonomy file %s repeats category %q", path, c)
		}
		seen[c] = struct{}{}
	}
	return newTaxonomy(f.Version, f.Categories), nil
}

// PromptList renders the taxonomy for inclusion in a model prompt, one category
// per line, sorted for stable prompts.
func (t *Taxonomy) PromptList() []string {
	out := t.Categories()
	sort.Strings(out)
	return out
}
