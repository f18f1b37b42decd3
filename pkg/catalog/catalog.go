// Package catalog holds the static table of install targets ultrabunt knows about.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arc-language/ultrabunt/pkg/core"
)

//go:embed data/*.toml
var builtin embed.FS

// Catalog is an immutable table of package records grouped by category.
// Enumeration follows declaration order. Get resolves every record, even
// those hidden by Without, so dependency checks keep working.
type Catalog struct {
	records    map[string]core.PackageRecord
	order      []string
	categories []core.Category
	catIndex   map[string]int
	hidden     map[string]bool
}

// New builds and validates a catalog from records
func New(categories []core.Category, records []core.PackageRecord) (*Catalog, error) {
	c := &Catalog{
		records:  make(map[string]core.PackageRecord, len(records)),
		catIndex: make(map[string]int, len(categories)),
	}

	for _, cat := range categories {
		if _, dup := c.catIndex[cat.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate category %q", cat.ID)
		}
		c.catIndex[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}

	for _, rec := range records {
		if _, dup := c.records[rec.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate package %q", rec.Name)
		}
		c.records[rec.Name] = rec
		c.order = append(c.order, rec.Name)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads the embedded catalog and then every *.toml file in overlayDir.
// A missing overlay directory is not an error.
func Load(overlayDir string) (*Catalog, error) {
	var cats []core.Category
	var recs []core.PackageRecord

	names, err := fs.Glob(builtin, "data/*.toml")
	if err != nil {
		return nil, fmt.Errorf("catalog: listing embedded files: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := builtin.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("catalog: reading %s: %w", name, err)
		}
		fc, fr, err := Parse(data, name)
		if err != nil {
			return nil, err
		}
		cats = append(cats, fc...)
		recs = append(recs, fr...)
	}

	if overlayDir != "" {
		paths, err := filepath.Glob(filepath.Join(overlayDir, "*.toml"))
		if err != nil {
			return nil, fmt.Errorf("catalog: listing overlay: %w", err)
		}
		sort.Strings(paths)
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
			}
			fc, fr, err := Parse(data, path)
			if err != nil {
				return nil, err
			}
			cats = append(cats, fc...)
			recs = append(recs, fr...)
		}
	}

	return New(cats, recs)
}

// Get returns the record named name
func (c *Catalog) Get(name string) (core.PackageRecord, error) {
	rec, ok := c.records[name]
	if !ok {
		return core.PackageRecord{}, fmt.Errorf("catalog: package %q: %w", name, core.ErrNotFound)
	}
	return rec, nil
}

// ListByCategory returns the visible records of a category in declaration order
func (c *Catalog) ListByCategory(category string) []core.PackageRecord {
	if c.hidden[category] {
		return nil
	}
	var out []core.PackageRecord
	for _, name := range c.order {
		if rec := c.records[name]; rec.Category == category {
			out = append(out, rec)
		}
	}
	return out
}

// Categories returns the visible categories in declaration order
func (c *Catalog) Categories() []core.Category {
	out := make([]core.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		if !c.hidden[cat.ID] {
			out = append(out, cat)
		}
	}
	return out
}

// Category returns one category by id
func (c *Catalog) Category(id string) (core.Category, bool) {
	i, ok := c.catIndex[id]
	if !ok {
		return core.Category{}, false
	}
	return c.categories[i], true
}

// All returns every visible record in declaration order
func (c *Catalog) All() []core.PackageRecord {
	out := make([]core.PackageRecord, 0, len(c.order))
	for _, name := range c.order {
		rec := c.records[name]
		if !c.hidden[rec.Category] {
			out = append(out, rec)
		}
	}
	return out
}

// Names returns every record name, visible or not, in declaration order
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of visible records
func (c *Catalog) Len() int {
	return len(c.All())
}

// Dependents returns the records that declare name as their dependency
func (c *Catalog) Dependents(name string) []core.PackageRecord {
	var out []core.PackageRecord
	for _, n := range c.order {
		if rec := c.records[n]; rec.Dependency == name {
			out = append(out, rec)
		}
	}
	return out
}

// Without returns a view hiding the excluded categories from enumeration
func (c *Catalog) Without(excluded map[string]bool) *Catalog {
	hidden := make(map[string]bool, len(c.hidden)+len(excluded))
	for id := range c.hidden {
		hidden[id] = true
	}
	for id, skip := range excluded {
		if skip {
			hidden[id] = true
		}
	}
	view := *c
	view.hidden = hidden
	return &view
}

// Excluded reports whether a category is hidden in this view
func (c *Catalog) Excluded(category string) bool {
	return c.hidden[category]
}

// Validate checks the integrity rules every catalog must satisfy
func (c *Catalog) Validate() error {
	var problems []string

	for _, name := range c.order {
		rec := c.records[name]
		switch {
		case rec.Name == "":
			problems = append(problems, "record with empty name")
			continue
		case !rec.Method.IsValid():
			problems = append(problems, fmt.Sprintf("%s: unknown method %q", name, rec.Method))
		case rec.Method != core.MethodCustom && rec.BackendID == "":
			problems = append(problems, fmt.Sprintf("%s: missing backend id", name))
		}

		if _, ok := c.catIndex[rec.Category]; !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown category %q", name, rec.Category))
		}

		if rec.Dependency != "" {
			if rec.Dependency == name {
				problems = append(problems, fmt.Sprintf("%s: depends on itself", name))
			} else if _, ok := c.records[rec.Dependency]; !ok {
				problems = append(problems, fmt.Sprintf("%s: dependency %q not in catalog", name, rec.Dependency))
			}
		}

		if rec.Custom != nil {
			if rec.Method != core.MethodCustom {
				problems = append(problems, fmt.Sprintf("%s: installer declared for %s package", name, rec.Method))
			}
			if rec.Detect.IsZero() {
				problems = append(problems, fmt.Sprintf("%s: custom package without detect rule", name))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("catalog: invalid:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
