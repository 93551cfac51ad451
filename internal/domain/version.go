package domain

import (
	"strings"

	"golang.org/x/mod/semver"
)

// RegistryVersion is the backend's protocol version, modeled as an
// explicit Unknown/Known state. A known version never changes for the
// process lifetime.
type RegistryVersion struct {
	value string
	known bool
}

// UnknownVersion is the zero state before a successful probe.
func UnknownVersion() RegistryVersion {
	return RegistryVersion{}
}

// KnownVersion wraps a fetched version string. The value must be a
// valid major.minor.patch version.
func KnownVersion(value string) (RegistryVersion, error) {
	canonical := normalizeSemver(value)
	if !semver.IsValid(canonical) {
		return RegistryVersion{}, E(CodeInvalidArgument, "domain.KnownVersion", "invalid version "+value, nil)
	}
	return RegistryVersion{value: strings.TrimPrefix(semver.Canonical(canonical), "v"), known: true}, nil
}

// Known reports whether the version has been fetched.
func (v RegistryVersion) Known() bool {
	return v.known
}

// String returns the canonical major.minor.patch value, or "unknown".
func (v RegistryVersion) String() string {
	if !v.known {
		return "unknown"
	}
	return v.value
}

// AtLeast reports whether the version is known and compares >= the
// given threshold, numerically per component.
func (v RegistryVersion) AtLeast(threshold string) bool {
	if !v.known {
		return false
	}
	return semver.Compare(normalizeSemver(v.value), normalizeSemver(threshold)) >= 0
}

func normalizeSemver(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if !strings.HasPrefix(value, "v") {
		value = "v" + value
	}
	return value
}
