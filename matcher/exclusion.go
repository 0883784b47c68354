package matcher

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed exclusion_categories.yaml
var defaultCategoriesYAML []byte

// Category is a named group of keyword fragments.
type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

type categoriesFile struct {
	Categories []Category `yaml:"categories"`
}

// ExclusionCategories is an immutable, ordered set of categories.
type ExclusionCategories struct {
	categories []Category
	lowered    map[string][]string
}

// ParseExclusionCategories reads categories from YAML.
func ParseExclusionCategories(data []byte) (*ExclusionCategories, error) {
	var file categoriesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse exclusion categories: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("exclusion categories: no categories defined")
	}

	c := &ExclusionCategories{
		categories: make([]Category, 0, len(file.Categories)),
		lowered:    make(map[string][]string, len(file.Categories)),
	}
	for i, cat := range file.Categories {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return nil, fmt.Errorf("exclusion categories: category %d has no name", i+1)
		}
		if _, dup := c.lowered[name]; dup {
			return nil, fmt.Errorf("exclusion categories: duplicate category %q", name)
		}

		keywords := make([]string, 0, len(cat.Keywords))
		lowered := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
				lowered = append(lowered, strings.ToLower(kw))
			}
		}
		if len(keywords) == 0 {
			return nil, fmt.Errorf("exclusion categories: category %q has no keywords", name)
		}

		c.categories = append(c.categories, Category{Name: name, Keywords: keywords})
		c.lowered[name] = lowered
	}
	return c, nil
}

// DefaultExclusionCategories returns the built-in categories.
func DefaultExclusionCategories() (*ExclusionCategories, error) {
	return ParseExclusionCategories(defaultCategoriesYAML)
}

// LoadExclusionCategories reads categories from path, or returns the
// built-in ones when path is empty.
func LoadExclusionCategories(path string) (*ExclusionCategories, error) {
	if path == "" {
		return DefaultExclusionCategories()
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read exclusion categories %s: %w", path, err)
	}
	return ParseExclusionCategories(data)
}

// Names returns the category names in definition order.
func (c *ExclusionCategories) Names() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Categories returns a copy of the categories.
func (c *ExclusionCategories) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Keywords: append([]string(nil), cat.Keywords...)}
	}
	return out
}

// ResolveCategories splits a selection into known category names (deduplicated,
// selection order) and the names that do not exist.
func (c *ExclusionCategories) ResolveCategories(selected []string) (known, ignored []string) {
	seen := make(map[string]bool, len(selected))
	for _, name := range selected {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := c.lowered[name]; ok {
			known = append(known, name)
		} else {
			ignored = append(ignored, name)
		}
	}
	return known, ignored
}

// keywords returns the lowercased fragments of every known selected category.
func (c *ExclusionCategories) keywords(selected []string) []string {
	known, _ := c.ResolveCategories(selected)
	var all []string
	for _, name := range known {
		all = append(all, c.lowered[name]...)
	}
	return all
}

// Excluded reports whether condition contains any fragment of the selected categories.
func (c *ExclusionCategories) Excluded(condition string, selected []string) bool {
	return containsAny(condition, c.keywords(selected))
}

func containsAny(condition string, lowered []string) bool {
	if condition == "" || len(lowered) == 0 {
		return false
	}
	text := strings.ToLower(condition)
	for _, kw := range lowered {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// BuildMask returns one eligibility flag per condition: true unless the
// condition contains a fragment of a selected category. An empty selection,
// or one made only of unknown names, keeps every row.
func (c *ExclusionCategories) BuildMask(conditions []string, selected []string) []bool {
	mask := make([]bool, len(conditions))
	lowered := c.keywords(selected)
	for i, condition := range conditions {
		mask[i] = !containsAny(condition, lowered)
	}
	return mask
}
