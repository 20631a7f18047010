package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rxtech-lab/argo-dca/pkg/errors"
)

// CheckVersionCompatibility checks if the running version can read data
// written by the stored version. Returns nil if compatible.
//
// Compatibility Rules:
//   - If either version is "main" (development build), compatibility check is skipped
//   - Major versions must match exactly
//   - Minor versions must match exactly
//   - Patch versions can differ (e.g., 1.2.0 reads 1.2.5)
//
// Examples:
//   - Current 1.2.0, Stored 1.2.0 -> OK (exact match)
//   - Current 1.2.1, Stored 1.2.0 -> OK (patch differs)
//   - Current 1.3.0, Stored 1.2.0 -> ERROR (minor differs)
//   - Current 2.0.0, Stored 1.2.0 -> ERROR (major differs)
//   - Current main, Stored 1.2.0 -> OK (dev build, skip check)
func CheckVersionCompatibility(currentVersion, storedVersion string) error {
	currentVersion = strings.TrimPrefix(currentVersion, "v")
	storedVersion = strings.TrimPrefix(storedVersion, "v")

	if currentVersion == "main" || storedVersion == "main" {
		return nil
	}

	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid current version '%s'", currentVersion)
	}

	stored, err := semver.NewVersion(storedVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidVersion, err, "invalid stored version '%s'", storedVersion)
	}

	if current.Major() != stored.Major() {
		return errors.Newf(errors.ErrCodeStateVersionMismatch, "major version mismatch: running %d.x.x but data was written by %d.x.x",
			current.Major(), stored.Major())
	}

	if current.Minor() != stored.Minor() {
		return errors.Newf(errors.ErrCodeStateVersionMismatch, "minor version mismatch: running %d.%d.x but data was written by %d.%d.x",
			current.Major(), current.Minor(),
			stored.Major(), stored.Minor())
	}

	return nil
}
