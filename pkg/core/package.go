// pkg/core/package.go
package core

import (
	"fmt"
	"strings"
)

// Method identifies which installation backend handles a package
type Method string

const (
	// MethodApt installs through apt-get and probes through dpkg
	MethodApt Method = "apt"
	// MethodSnap installs through snapd
	MethodSnap Method = "snap"
	// MethodFlatpak installs apps from Flathub
	MethodFlatpak Method = "flatpak"
	// MethodNpm installs global npm packages
	MethodNpm Method = "npm"
	// MethodCargo installs crates with cargo install
	MethodCargo Method = "cargo"
	// MethodCustom runs a bespoke installer registered for the package name
	MethodCustom Method = "custom"
)

// AllMethods lists every known method in dispatch order
var AllMethods = []Method{
	MethodApt,
	MethodSnap,
	MethodFlatpak,
	MethodNpm,
	MethodCargo,
	MethodCustom,
}

// ParseMethod converts a catalog string into a Method
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown install method %q", s)
	}
	return m, nil
}

// IsValid reports whether m is one of the known methods
func (m Method) IsValid() bool {
	for _, valid := range AllMethods {
		if m == valid {
			return true
		}
	}
	return false
}

// BulkListed reports whether the backend's installed state is held in the
// installed-set cache. Only apt, snap and flatpak are bulk-listed; npm, cargo
// and custom entries are always probed live.
func (m Method) BulkListed() bool {
	return m == MethodApt || m == MethodSnap || m == MethodFlatpak
}

func (m Method) String() string {
	return string(m)
}

// DetectKind selects how a custom-installed tool is recognised
type DetectKind string

const (
	// DetectBinary checks for an executable on PATH or at an absolute path
	DetectBinary DetectKind = "binary"
	// DetectApt checks dpkg for a package the installer registers
	DetectApt DetectKind = "apt"
	// DetectPath checks that a file or directory exists
	DetectPath DetectKind = "path"
	// DetectNone always reports not installed
	DetectNone DetectKind = "none"
)

// DetectRule is the explicit detection rule of a custom package
type DetectRule struct {
	Kind   DetectKind
	Target string
}

// IsZero reports whether no rule was declared
func (r DetectRule) IsZero() bool {
	return r.Kind == ""
}

// PackageRecord is one named install target in the catalog
type PackageRecord struct {
	Name        string     // Unique catalog key (e.g. "docker", "vscode-snap")
	BackendID   string     // Identifier passed to the backend (apt package, snap name, flatpak app-id)
	Method      Method     // Backend that installs and probes this record
	Description string     // Display text
	Category    string     // Flat grouping key
	Dependency  string     // Optional name of another record that must be installed first
	Detect      DetectRule // Detection rule, only meaningful for custom records
	Custom      *CustomSpec
}

// Key returns the installed-set key of the record
func (r PackageRecord) Key() Key {
	return Key{Method: r.Method, BackendID: r.BackendID}
}

// HasDependency reports whether the record declares a dependency
func (r PackageRecord) HasDependency() bool {
	return r.Dependency != ""
}

// CustomSpec describes how a custom record is installed and removed
type CustomSpec struct {
	Kind          string // "script" or "deb"
	InstallScript string
	RemoveScript  string
	URL           string // .deb download location for kind "deb"
	SHA256        string // optional checksum of the .deb
	Root          bool   // scripts need root
}

// Category is a display grouping of records
type Category struct {
	ID          string
	DisplayName string
	Core        bool // kept by --minimal
}

// Key identifies an installed item within one backend
type Key struct {
	Method    Method
	BackendID string
}

func (k Key) String() string {
	return string(k.Method) + ":" + k.BackendID
}

// PackageStatus pairs a record with its installed state
type PackageStatus struct {
	Record    PackageRecord
	Installed bool
}
