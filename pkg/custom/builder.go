package custom

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// Records lists catalog records
type Records interface {
	Names() []string
	Get(name string) (core.PackageRecord, error)
}

// Options wires the installers FromCatalog builds
type Options struct {
	Runner   runner.Runner
	Apt      DebTool
	Client   *Client
	CacheDir string
	Home     string
	Live     io.Writer
	Progress ProgressFunc
	Logger   *zerolog.Logger
}

// FromCatalog registers an installer for every custom record that declares one
func FromCatalog(cat Records, opts Options) (*Registry, error) {
	reg := NewRegistry()
	det := &Detector{Runner: opts.Runner, Apt: opts.Apt, Home: opts.Home}

	for _, name := range cat.Names() {
		rec, err := cat.Get(name)
		if err != nil {
			return nil, err
		}
		if rec.Method != core.MethodCustom || rec.Custom == nil {
			continue
		}

		rule := rec.Detect
		detect := func(ctx context.Context) (bool, error) {
			return det.Detect(ctx, rule)
		}

		var inst core.CustomInstaller
		switch rec.Custom.Kind {
		case "script":
			s, err := NewScript(rec.Name, rec.Custom, opts.Runner, detect)
			if err != nil {
				return nil, err
			}
			if opts.Live != nil {
				s.SetLive(opts.Live)
			}
			inst = s
		case "deb":
			pkg := rec.BackendID
			if rule.Kind == core.DetectApt {
				pkg = rule.Target
			}
			d, err := NewDeb(DebConfig{
				Name:     rec.Name,
				Package:  pkg,
				Spec:     rec.Custom,
				Apt:      opts.Apt,
				Client:   opts.Client,
				CacheDir: opts.CacheDir,
				Progress: opts.Progress,
				Detect:   detect,
				Logger:   opts.Logger,
			})
			if err != nil {
				return nil, err
			}
			inst = d
		default:
			return nil, fmt.Errorf("custom: %s: unknown installer kind %q", rec.Name, rec.Custom.Kind)
		}

		if err := reg.Register(rec.Name, inst); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
