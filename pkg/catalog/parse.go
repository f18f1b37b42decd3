package catalog

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/arc-language/ultrabunt/pkg/core"
)

// file is the on-disk layout of one catalog/*.toml file
type file struct {
	Categories []categoryEntry `toml:"category"`
	Packages   []packageEntry  `toml:"package"`
}

type categoryEntry struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	Core bool   `toml:"core"`
}

type packageEntry struct {
	Name        string       `toml:"name"`
	Method      string       `toml:"method"`
	ID          string       `toml:"id"`
	Description string       `toml:"description"`
	Category    string       `toml:"category"`
	Dependency  string       `toml:"dependency"`
	Detect      *detectEntry `toml:"detect"`
	Custom      *customEntry `toml:"custom"`
}

type detectEntry struct {
	Kind   string `toml:"kind"`
	Target string `toml:"target"`
}

type customEntry struct {
	Kind    string `toml:"kind"`
	Install string `toml:"install"`
	Remove  string `toml:"remove"`
	URL     string `toml:"url"`
	SHA256  string `toml:"sha256"`
	Root    bool   `toml:"root"`
}

// Parse decodes one catalog file. source names the file in error messages.
func Parse(data []byte, source string) ([]core.Category, []core.PackageRecord, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, nil, fmt.Errorf("catalog: failed to parse %s: %w", source, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, nil, fmt.Errorf("catalog: %s: unknown key %q", source, undecoded[0].String())
	}

	cats := make([]core.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		if c.ID == "" {
			return nil, nil, fmt.Errorf("catalog: %s: category without id", source)
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		cats = append(cats, core.Category{ID: c.ID, DisplayName: name, Core: c.Core})
	}

	recs := make([]core.PackageRecord, 0, len(f.Packages))
	for _, p := range f.Packages {
		rec, err := p.record()
		if err != nil {
			return nil, nil, fmt.Errorf("catalog: %s: %w", source, err)
		}
		recs = append(recs, rec)
	}

	return cats, recs, nil
}

func (p packageEntry) record() (core.PackageRecord, error) {
	method, err := core.ParseMethod(p.Method)
	if err != nil {
		return core.PackageRecord{}, fmt.Errorf("package %q: %w", p.Name, err)
	}

	rec := core.PackageRecord{
		Name:        p.Name,
		BackendID:   p.ID,
		Method:      method,
		Description: p.Description,
		Category:    p.Category,
		Dependency:  p.Dependency,
	}
	if rec.BackendID == "" {
		rec.BackendID = p.Name
	}

	if p.Detect != nil {
		kind := core.DetectKind(p.Detect.Kind)
		switch kind {
		case core.DetectBinary, core.DetectApt, core.DetectPath:
			if p.Detect.Target == "" {
				return rec, fmt.Errorf("package %q: detect %s needs a target", p.Name, kind)
			}
		case core.DetectNone:
		default:
			return rec, fmt.Errorf("package %q: unknown detect kind %q", p.Name, p.Detect.Kind)
		}
		rec.Detect = core.DetectRule{Kind: kind, Target: p.Detect.Target}
	}

	if p.Custom != nil {
		switch p.Custom.Kind {
		case "script":
			if p.Custom.Install == "" {
				return rec, fmt.Errorf("package %q: script installer without install body", p.Name)
			}
		case "deb":
			if p.Custom.URL == "" {
				return rec, fmt.Errorf("package %q: deb installer without url", p.Name)
			}
		default:
			return rec, fmt.Errorf("package %q: unknown installer kind %q", p.Name, p.Custom.Kind)
		}
		rec.Custom = &core.CustomSpec{
			Kind:          p.Custom.Kind,
			InstallScript: p.Custom.Install,
			RemoveScript:  p.Custom.Remove,
			URL:           p.Custom.URL,
			SHA256:        p.Custom.SHA256,
			Root:          p.Custom.Root,
		}
	}

	return rec, nil
}
