// Package checklist holds the static inspection reference data: categories,
// their items, the groups items belong to, and the fixed rule designations.
// A Catalog is immutable once built.
package checklist

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type document struct {
	Groups     []Group    `yaml:"groups"`
	Categories []Category `yaml:"categories"`
}

type Catalog struct {
	categories []Category
	groups     []Group
	rules      Rules

	itemByID     map[string]Item
	categoryByID map[string]int
	categoryOf   map[string]string
	groupByID    map[string]Group
	itemsByGroup map[string][]string
}

// New indexes and validates the given reference data.
func New(categories []Category, groups []Group, rules Rules) (*Catalog, error) {
	c := &Catalog{
		categories:   slices.Clone(categories),
		groups:       slices.Clone(groups),
		rules:        rules,
		itemByID:     make(map[string]Item),
		categoryByID: make(map[string]int),
		categoryOf:   make(map[string]string),
		groupByID:    make(map[string]Group),
		itemsByGroup: make(map[string][]string),
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses a YAML catalog document and builds a Catalog with rules.
func Load(r io.Reader, rules Rules) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse checklist: %w", err)
	}
	return New(doc.Categories, doc.Groups, rules)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalogYAML), DefaultRules())
})

// Default returns the embedded catalog with DefaultRules. It panics if the
// embedded data is invalid, which is a build defect.
func Default() *Catalog {
	c, err := defaultCatalog()
	if err != nil {
		panic(fmt.Sprintf("embedded checklist is invalid: %v", err))
	}
	return c
}

func (c *Catalog) index() error {
	for _, g := range c.groups {
		if g.ID == "" {
			return errors.New("group with empty id")
		}
		if _, dup := c.groupByID[g.ID]; dup {
			return fmt.Errorf("duplicate group id %q", g.ID)
		}
		c.groupByID[g.ID] = g
	}
	for i, cat := range c.categories {
		if cat.ID == "" {
			return fmt.Errorf("category %d has empty id", i)
		}
		if _, dup := c.categoryByID[cat.ID]; dup {
			return fmt.Errorf("duplicate category id %q", cat.ID)
		}
		c.categoryByID[cat.ID] = i
		for _, it := range cat.Items {
			if it.ID == "" {
				return fmt.Errorf("category %q has an item with empty id", cat.ID)
			}
			if _, dup := c.itemByID[it.ID]; dup {
				return fmt.Errorf("duplicate item id %q", it.ID)
			}
			c.itemByID[it.ID] = it
			c.categoryOf[it.ID] = cat.ID
			if it.GroupID != "" {
				c.itemsByGroup[it.GroupID] = append(c.itemsByGroup[it.GroupID], it.ID)
			}
		}
	}
	return nil
}

// Validate checks numbering, kinds, finish-material keys and that every rule
// designation refers to something in the catalog.
func (c *Catalog) Validate() error {
	var errs []error
	expected := 1
	for _, cat := range c.categories {
		for _, it := range cat.Items {
			if it.No != expected {
				errs = append(errs, fmt.Errorf("item %q: number %d, want %d", it.ID, it.No, expected))
			}
			expected++
			if !it.Kind.Valid() {
				errs = append(errs, fmt.Errorf("item %q: unknown kind %q", it.ID, it.Kind))
			}
			if it.FinishMaterial != "" {
				if it.GroupID == "" {
					errs = append(errs, fmt.Errorf("item %q: finish material without group", it.ID))
				} else if g, ok := c.groupByID[it.GroupID]; ok && len(g.FinishMaterials) > 0 &&
					!slices.Contains(g.FinishMaterials, it.FinishMaterial) {
					errs = append(errs, fmt.Errorf("item %q: finish material %q not declared by group %q", it.ID, it.FinishMaterial, it.GroupID))
				}
			}
		}
	}

	for _, id := range c.rules.ToggleExemptCategories {
		if _, ok := c.categoryByID[id]; !ok {
			errs = append(errs, fmt.Errorf("rules: unknown exempt category %q", id))
		}
	}
	for _, id := range c.rules.ItemSurveyItems {
		if _, ok := c.itemByID[id]; !ok {
			errs = append(errs, fmt.Errorf("rules: unknown item-survey item %q", id))
		}
	}
	for _, id := range c.rules.LegacyGroups {
		if len(c.itemsByGroup[id]) == 0 {
			errs = append(errs, fmt.Errorf("rules: legacy group %q has no items", id))
		}
	}
	if g := c.rules.OptionGate; g != nil {
		for _, id := range []string{g.SourceItemID, g.TargetItemID} {
			it, ok := c.itemByID[id]
			if !ok {
				errs = append(errs, fmt.Errorf("rules: option gate item %q unknown", id))
				continue
			}
			if it.GroupID != g.GroupID {
				errs = append(errs, fmt.Errorf("rules: option gate item %q is not in group %q", id, g.GroupID))
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Catalog) Rules() Rules { return c.rules }

// Categories returns the categories in checklist order. Callers must not
// modify the returned slice.
func (c *Catalog) Categories() []Category { return c.categories }

func (c *Catalog) Groups() []Group { return c.groups }

func (c *Catalog) Category(id string) (Category, bool) {
	i, ok := c.categoryByID[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.itemByID[id]
	return it, ok
}

// CategoryOf returns the id of the category owning itemID.
func (c *Catalog) CategoryOf(itemID string) (string, bool) {
	id, ok := c.categoryOf[itemID]
	return id, ok
}

// Group returns the declared group, or a bare Group for ids that are only
// referenced by items.
func (c *Catalog) Group(id string) (Group, bool) {
	if g, ok := c.groupByID[id]; ok {
		return g, true
	}
	if len(c.itemsByGroup[id]) > 0 {
		return Group{ID: id}, true
	}
	return Group{}, false
}

func (c *Catalog) GroupItems(groupID string) []string {
	return c.itemsByGroup[groupID]
}

func (c *Catalog) ItemCount() int { return len(c.itemByID) }
