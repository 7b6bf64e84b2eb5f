// Package semver classifies release tags as semantic versions.
package semver

import (
	"regexp"

	sv "github.com/woozymasta/semver"
)

// strictRe is the semver.org grammar with an optional leading "v".
// The parser below also accepts shorthand (X, X.Y) and leading zeros,
// so this gate decides validity and the parser only extracts components.
var strictRe = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)` +
	`(?:-((?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*)(?:\.(?:0|[1-9]\d*|\d*[a-zA-Z-][0-9a-zA-Z-]*))*))?` +
	`(?:\+([0-9a-zA-Z-]+(?:\.[0-9a-zA-Z-]+)*))?$`)

const fullTriple = sv.FlagHasMajor | sv.FlagHasMinor | sv.FlagHasPatch

// Version is a parsed semantic version.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Build      string
	Original   string
}

// IsValid reports whether tag is a MAJOR.MINOR.PATCH[-pre][+build] version.
func IsValid(tag string) bool {
	_, ok := Parse(tag)
	return ok
}

// Parse parses tag. The second result is false when tag is not a valid
// semantic version; that is never an error.
func Parse(tag string) (Version, bool) {
	m := strictRe.FindStringSubmatch(tag)
	if m == nil {
		return Version{}, false
	}

	v, ok := sv.Parse(tag)
	if !ok || !v.Valid || v.Flags&fullTriple != fullTriple {
		return Version{}, false
	}

	return Version{
		Major:      v.Major,
		Minor:      v.Minor,
		Patch:      v.Patch,
		Prerelease: m[4],
		Build:      m[5],
		Original:   tag,
	}, true
}

// IsPrerelease reports whether v carries a prerelease suffix.
func (v Version) IsPrerelease() bool {
	return v.Prerelease != ""
}

// Compare orders versions by (major, minor, patch). Prerelease and build
// metadata are ignored, so "1.0.0-rc.1" and "1.0.0+b7" compare equal to "1.0.0".
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
