// pkg/platform/detect.go
package platform

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/arc-language/ultrabunt/pkg/core"
	"github.com/arc-language/ultrabunt/pkg/runner"
)

// OSReleasePath is where the distribution identifies itself
const OSReleasePath = "/etc/os-release"

// Distribution families ultrabunt knows about
const (
	DistroUbuntu    = "ubuntu"
	DistroLinuxMint = "linuxmint"
	DistroDebian    = "debian"
	DistroOther     = "other"
)

// methodBinaries maps each method to the CLI that must be on PATH for it to work
// without bootstrapping
var methodBinaries = map[core.Method]string{
	core.MethodApt:     "apt-get",
	core.MethodSnap:    "snap",
	core.MethodFlatpak: "flatpak",
	core.MethodNpm:     "npm",
	core.MethodCargo:   "cargo",
}

// Platform represents the detected system platform
type Platform struct {
	OS         string        // linux
	Arch       string        // amd64, arm64
	Distro     string        // ubuntu, linuxmint, debian, other
	ID         string        // raw ID from os-release
	Version    string        // VERSION_ID
	Codename   string        // UBUNTU_CODENAME or VERSION_CODENAME
	PrettyName string        // PRETTY_NAME
	Available  []core.Method // methods whose CLI is on PATH
}

// Detect detects the current platform and which install methods are usable
func Detect(r runner.Runner) (*Platform, error) {
	return DetectFrom(r, OSReleasePath)
}

// DetectFrom detects the platform reading os-release from path
func DetectFrom(r runner.Runner, path string) (*Platform, error) {
	p := &Platform{
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
		Distro: DistroOther,
	}
	if p.OS != "linux" {
		return nil, fmt.Errorf("unsupported operating system: %s", p.OS)
	}

	if f, err := os.Open(path); err == nil {
		fields := ParseOSRelease(f)
		f.Close()
		p.apply(fields)
	}

	for _, m := range core.AllMethods {
		bin, ok := methodBinaries[m]
		if !ok || runner.Exists(r, bin) {
			p.Available = append(p.Available, m)
		}
	}

	return p, nil
}

// ParseOSRelease reads the KEY=value pairs of an os-release file
func ParseOSRelease(rd io.Reader) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[key] = strings.Trim(value, `"'`)
	}
	return fields
}

func (p *Platform) apply(fields map[string]string) {
	p.ID = fields["ID"]
	p.Version = fields["VERSION_ID"]
	p.PrettyName = fields["PRETTY_NAME"]
	p.Codename = fields["UBUNTU_CODENAME"]
	if p.Codename == "" {
		p.Codename = fields["VERSION_CODENAME"]
	}

	like := strings.Fields(fields["ID_LIKE"])
	switch {
	case p.ID == DistroUbuntu:
		p.Distro = DistroUbuntu
	case p.ID == DistroLinuxMint:
		p.Distro = DistroLinuxMint
	case slices.Contains(like, DistroUbuntu):
		p.Distro = DistroUbuntu
	case p.ID == DistroDebian || slices.Contains(like, DistroDebian):
		p.Distro = DistroDebian
	}
}

// Supported reports whether the catalog targets this distribution
func (p *Platform) Supported() bool {
	return p.Distro == DistroUbuntu || p.Distro == DistroLinuxMint
}

// Has reports whether method m is usable without bootstrapping
func (p *Platform) Has(m core.Method) bool {
	return slices.Contains(p.Available, m)
}

// String returns a string representation of the platform
func (p *Platform) String() string {
	name := p.PrettyName
	if name == "" {
		name = p.Distro
	}
	return fmt.Sprintf("%s %s/%s (available: %v)", name, p.OS, p.Arch, p.Available)
}
