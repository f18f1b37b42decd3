// pkg/apt/parser.go
package apt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsePackages parses Debian control stanzas (apt-cache show output,
// Packages files, DEBIAN/control)
func ParsePackages(r io.Reader) ([]*PackageInfo, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // Handle large descriptions

	var packages []*PackageInfo
	var current *PackageInfo

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of package stanza
		if strings.TrimSpace(line) == "" {
			if current != nil {
				packages = append(packages, current)
				current = nil
			}
			continue
		}

		// Continuation line (starts with space or tab)
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if current != nil && current.Description != "" {
				text := strings.TrimSpace(line)
				if text == "." {
					text = ""
				}
				current.Description += "\n" + text
			}
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		value = strings.TrimSpace(value)

		if field == "Package" {
			if current != nil {
				packages = append(packages, current)
			}
			current = &PackageInfo{Package: value}
			continue
		}

		if current == nil {
			continue
		}

		switch field {
		case "Version":
			current.Version = value
		case "Architecture":
			current.Architecture = value
		case "Maintainer":
			current.Maintainer = value
		case "Installed-Size":
			if size, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.InstalledSize = size * 1024 // KiB to bytes
			}
		case "Depends", "Pre-Depends":
			current.Depends = append(current.Depends, parsePackageList(value)...)
		case "Recommends":
			current.Recommends = parsePackageList(value)
		case "Conflicts":
			current.Conflicts = parsePackageList(value)
		case "Provides":
			current.Provides = parsePackageList(value)
		case "Description", "Description-en":
			if current.Description == "" {
				current.Description = value
			}
		case "Homepage":
			current.Homepage = value
		case "Section":
			current.Section = value
		case "Priority":
			current.Priority = value
		case "Source":
			current.Source = value
		case "Size":
			if size, err := strconv.ParseInt(value, 10, 64); err == nil {
				current.Size = size
			}
		case "SHA256":
			current.SHA256 = value
		}
	}

	if current != nil {
		packages = append(packages, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning control data: %w", err)
	}

	return packages, nil
}

// parsePackageList parses a comma-separated package relationship field
func parsePackageList(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		// Drop alternatives and version constraints like (>= 1.0)
		if idx := strings.Index(part, "|"); idx != -1 {
			part = strings.TrimSpace(part[:idx])
		}
		if idx := strings.Index(part, "("); idx != -1 {
			part = strings.TrimSpace(part[:idx])
		}
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parseStatusList reads dpkg-query StatusFormat output, keeping fully
// installed packages only
func parseStatusList(out string) map[string]struct{} {
	installed := make(map[string]struct{})
	for _, line := range strings.Split(out, "\n") {
		name, status, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" || !strings.HasPrefix(strings.TrimSpace(status), StatusInstalled) {
			continue
		}
		installed[stripArch(name)] = struct{}{}
	}
	return installed
}

// dpkgListHasInstalled scans `dpkg -l` output for an "ii" row naming pkg
func dpkgListHasInstalled(out, pkg string) bool {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != StatusInstalled {
			continue
		}
		if stripArch(fields[1]) == pkg {
			return true
		}
	}
	return false
}

func stripArch(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}
