package custom

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/arc-language/ultrabunt/pkg/apt"
)

// ReadControl returns the DEBIAN/control metadata of a .deb file
func ReadControl(debPath string) (*apt.PackageInfo, error) {
	f, err := os.Open(debPath)
	if err != nil {
		return nil, fmt.Errorf("opening .deb file: %w", err)
	}
	defer f.Close()

	// A .deb is an ar archive holding debian-binary, control.tar.* and data.tar.*
	arReader := ar.NewReader(f)
	for {
		header, err := arReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar entry: %w", err)
		}

		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		if strings.HasPrefix(name, "control.tar") {
			return readControlTar(arReader, name)
		}
	}

	return nil, fmt.Errorf("no control.tar.* found in %s", debPath)
}

func readControlTar(r io.Reader, name string) (*apt.PackageInfo, error) {
	var src io.Reader
	switch {
	case strings.HasSuffix(name, ".gz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		defer gz.Close()
		src = gz
	case strings.HasSuffix(name, ".xz"):
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		src = xzr
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		src = zr
	default:
		src = r
	}

	tr := tar.NewReader(src)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar entry: %w", err)
		}
		if path.Clean(strings.TrimPrefix(header.Name, "./")) != "control" {
			continue
		}

		pkgs, err := apt.ParsePackages(tr)
		if err != nil {
			return nil, err
		}
		if len(pkgs) == 0 {
			return nil, fmt.Errorf("empty control file")
		}
		return pkgs[0], nil
	}

	return nil, fmt.Errorf("no control file in %s", name)
}
