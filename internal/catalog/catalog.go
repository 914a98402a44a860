// Package catalog loads the quiz categories and their species.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed species.toml
var builtin string

// ItemSeparator joins a category key and a species name into an item key.
const ItemSeparator = "::"

// Species is one quiz answer.
type Species struct {
	Name      string   `toml:"name"`
	WikiTitle string   `toml:"wiki-title"`
	Hints     []string `toml:"hints"`
	FunFact   string   `toml:"fun-fact"`
}

// Category groups species under a stable key.
type Category struct {
	Key     string    `toml:"key"`
	Name    string    `toml:"name"`
	Emoji   string    `toml:"emoji"`
	Species []Species `toml:"species"`
}

// Title is the display label for the category.
func (c Category) Title() string {
	if c.Emoji == "" {
		return c.Name
	}
	return c.Emoji + " " + c.Name
}

// Catalog is an ordered set of categories.
type Catalog struct {
	categories []Category
	byKey      map[string]int
}

type document struct {
	Category []Category `toml:"category"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(builtin)
}

// Parse decodes a TOML catalog document.
func Parse(data string) (*Catalog, error) {
	var doc document
	if _, err := toml.Decode(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if len(doc.Category) == 0 {
		return nil, fmt.Errorf("catalog has no categories")
	}
	c := &Catalog{byKey: make(map[string]int, len(doc.Category))}
	for _, cat := range doc.Category {
		if err := validCategory(cat); err != nil {
			return nil, err
		}
		if _, dup := c.byKey[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Key)
		}
		c.byKey[cat.Key] = len(c.categories)
		c.categories = append(c.categories, cat)
	}
	return c, nil
}

func validCategory(cat Category) error {
	if cat.Key == "" || strings.Contains(cat.Key, ItemSeparator) {
		return fmt.Errorf("invalid category key %q", cat.Key)
	}
	if len(cat.Species) == 0 {
		return fmt.Errorf("category %q has no species", cat.Key)
	}
	seen := make(map[string]struct{}, len(cat.Species))
	for _, s := range cat.Species {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("category %q has a species without a name", cat.Key)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("category %q lists %q twice", cat.Key, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Category looks up a category by key.
func (c *Catalog) Category(key string) (Category, bool) {
	idx, ok := c.byKey[key]
	if !ok {
		return Category{}, false
	}
	return c.categories[idx], true
}

// Keys returns the category keys in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.categories))
	for i, cat := range c.categories {
		keys[i] = cat.Key
	}
	return keys
}

// ItemKey builds the per-species stats key.
func ItemKey(category, name string) string {
	return category + ItemSeparator + name
}

// SplitItemKey is the inverse of ItemKey.
func SplitItemKey(key string) (category, name string, ok bool) {
	return strings.Cut(key, ItemSeparator)
}
