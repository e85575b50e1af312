package nix

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrBadVersion is returned when `nix --version` output cannot be parsed.
var ErrBadVersion = errors.New("nix: `nix --version` cannot be parsed")

var versionRe = regexp.MustCompile(`nix \(Nix\) (\d+)\.(\d+)\.(\d+)`)

// Version is the Nix version as reported by `nix --version`.
type Version struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
	Patch uint32 `json:"patch"`
}

// ParseVersion extracts the version triple from `nix --version` output,
// e.g. "nix (Nix) 2.18.1". Pre-release suffixes after the patch number are
// ignored.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrBadVersion, s)
	}

	var parts [3]uint32
	for i := range parts {
		n, err := strconv.ParseUint(m[i+1], 10, 32)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %v", ErrBadVersion, err)
		}
		parts[i] = uint32(n)
	}

	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to
// or after o.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpUint(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint(v.Minor, o.Minor)
	default:
		return cmpUint(v.Patch, o.Patch)
	}
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

func cmpUint(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FetchVersion runs `nix --version` and parses its output.
func FetchVersion(ctx context.Context, r Runner) (Version, error) {
	out, err := r.Run(ctx, "--version")
	if err != nil {
		return Version{}, err
	}
	// Only the digits matter, invalid UTF-8 elsewhere is harmless.
	return ParseVersion(string(out))
}
