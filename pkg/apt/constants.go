// pkg/apt/constants.go
package apt

import "time"

const (
	// StatusFormat is the dpkg-query format used for bulk listing
	StatusFormat = "${Package}\\t${db:Status-Abbrev}\\n"

	// StatusInstalled is the db:Status-Abbrev prefix of a fully installed package
	StatusInstalled = "ii"

	// DefaultIndexMaxAge is how long an apt-get update stays fresh within one session
	DefaultIndexMaxAge = 10 * time.Minute
)

// Environment passed to every mutating apt-get call
var noninteractiveEnv = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"NEEDRESTART_MODE=a",
}

// dpkg options that keep existing conffiles without prompting
var conffileOpts = []string{
	"-o", "Dpkg::Options::=--force-confdef",
	"-o", "Dpkg::Options::=--force-confold",
}
