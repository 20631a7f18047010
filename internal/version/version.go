package version

// Version is the current version of argo-dca.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-dca/internal/version.Version=1.2.3"
// The value "main" indicates a development build.
var Version = "v0.3.0"

// StateVersion is written into every persisted strategy state. Loading a
// state whose major or minor version differs is refused.
const StateVersion = "1.0.0"

// GetVersion returns the current version of the binary.
func GetVersion() string {
	return Version
}
