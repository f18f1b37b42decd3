// pkg/apt/types.go
package apt

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arc-language/ultrabunt/pkg/runner"
)

// Config configures the apt backend
type Config struct {
	Runner      runner.Runner
	IndexMaxAge time.Duration // Zero means DefaultIndexMaxAge
	Logger      *zerolog.Logger
}

// Backend drives apt-get and dpkg
type Backend struct {
	run    runner.Runner
	config *Config
	logger zerolog.Logger

	// dpkg holds a global lock, so mutating calls are serialised
	mu          sync.Mutex
	lastUpdate  time.Time
	indexMaxAge time.Duration
	now         func() time.Time
}

// PackageInfo contains metadata about a package from apt-cache show or a .deb control file
type PackageInfo struct {
	Package       string
	Version       string
	Architecture  string
	Maintainer    string
	InstalledSize int64
	Depends       []string
	Recommends    []string
	Conflicts     []string
	Provides      []string
	Description   string
	Homepage      string
	Section       string
	Priority      string
	Source        string
	Size          int64
	SHA256        string
}

// Summary returns the first line of the description
func (p *PackageInfo) Summary() string {
	for i := 0; i < len(p.Description); i++ {
		if p.Description[i] == '\n' {
			return p.Description[:i]
		}
	}
	return p.Description
}
