package custom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// PackageProber answers whether a dpkg package is installed
type PackageProber interface {
	IsInstalled(ctx context.Context, pkg string) (bool, error)
}

// Detector evaluates the detection rule of a custom record
type Detector struct {
	Runner runner.Runner
	Apt    PackageProber
	Home   string
}

// Detect reports whether the rule finds the tool installed
func (d *Detector) Detect(ctx context.Context, rule core.DetectRule) (bool, error) {
	switch rule.Kind {
	case core.DetectBinary:
		target := d.expand(rule.Target)
		if filepath.IsAbs(target) {
			info, err := os.Stat(target)
			return err == nil && !info.IsDir() && info.Mode()&0111 != 0, nil
		}
		return runner.Exists(d.Runner, target), nil

	case core.DetectApt:
		if d.Apt == nil {
			return false, nil
		}
		return d.Apt.IsInstalled(ctx, rule.Target)

	case core.DetectPath:
		_, err := os.Stat(d.expand(rule.Target))
		return err == nil, nil

	case core.DetectNone, "":
		return false, nil

	default:
		return false, fmt.Errorf("unknown detect kind %q", rule.Kind)
	}
}

// expand resolves a leading ~ against the configured home
func (d *Detector) expand(p string) string {
	if d.Home == "" {
		return p
	}
	if p == "~" {
		return d.Home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(d.Home, p[2:])
	}
	return p
}
