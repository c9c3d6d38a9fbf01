package runtime

import (
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/protocol"
)

// Supported API version range, inclusive.
const (
	MinAPIVersion = "2.0"
	MaxAPIVersion = "2.13"
)

var (
	minVersion = protocol.MustParseVersion(MinAPIVersion)
	maxVersion = protocol.MustParseVersion(MaxAPIVersion)
)

// CheckVersion gates a declared API version. The returned *domain.APIVersionError
// echoes the declared version and wraps domain.ErrAPIDeprecation (below the floor)
// or domain.ErrAPIVersionUnsupported (above the ceiling or unparsable).
func CheckVersion(declared string) error {
	v, err := protocol.ParseVersion(declared)
	if err != nil {
		return versionError(declared, domain.ErrAPIVersionUnsupported)
	}
	switch {
	case v.Less(minVersion):
		return versionError(declared, domain.ErrAPIDeprecation)
	case maxVersion.Less(v):
		return versionError(declared, domain.ErrAPIVersionUnsupported)
	}
	return nil
}

func versionError(declared string, cause error) error {
	return &domain.APIVersionError{
		Version: declared,
		Floor:   MinAPIVersion,
		Ceiling: MaxAPIVersion,
		Err:     cause,
	}
}
