// pkg/apt/platform.go
package apt

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/arc-language/ultrabunt/pkg/runner"
)

// Architecture is a Debian architecture name
type Architecture string

const (
	ArchAmd64   Architecture = "amd64"   // x86_64
	ArchI386    Architecture = "i386"    // x86 32-bit
	ArchArm64   Architecture = "arm64"   // ARM 64-bit
	ArchArmhf   Architecture = "armhf"   // ARM hard float
	ArchPpc64el Architecture = "ppc64el" // PowerPC 64-bit little endian
	ArchS390x   Architecture = "s390x"   // IBM S/390
	ArchRiscv64 Architecture = "riscv64" // RISC-V 64-bit
	ArchAll     Architecture = "all"     // Architecture-independent
)

// Architecture asks dpkg for the native architecture, falling back to the
// one this binary was built for
func (b *Backend) Architecture(ctx context.Context) (Architecture, error) {
	res, err := b.run.Run(ctx, runner.Command{Name: "dpkg", Args: []string{"--print-architecture"}})
	if err == nil {
		if arch := strings.TrimSpace(res.Stdout); arch != "" {
			return Architecture(arch), nil
		}
	}
	return DetectArchitecture()
}

// DetectArchitecture maps GOARCH to the Debian architecture name
func DetectArchitecture() (Architecture, error) {
	if runtime.GOOS != "linux" {
		return "", fmt.Errorf("apt backend only supports Linux, got: %s", runtime.GOOS)
	}

	switch runtime.GOARCH {
	case "amd64":
		return ArchAmd64, nil
	case "386":
		return ArchI386, nil
	case "arm64":
		return ArchArm64, nil
	case "arm":
		return ArchArmhf, nil
	case "ppc64le":
		return ArchPpc64el, nil
	case "s390x":
		return ArchS390x, nil
	case "riscv64":
		return ArchRiscv64, nil
	default:
		return "", fmt.Errorf("unsupported architecture: %s", runtime.GOARCH)
	}
}

// String returns the string representation of the architecture
func (a Architecture) String() string {
	return string(a)
}
