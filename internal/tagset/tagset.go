// Package tagset reduces a repository's tag list to the sets the reconciler
// works on: the latest release per major line and the floating v<major> tags.
package tagset

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/schaermu/vtagsync/internal/semver"
)

var floatingRe = regexp.MustCompile(`^v[0-9]+$`)

// Selection maps each major line to its latest release tag.
type Selection struct {
	byMajor map[int]semver.Version
}

// LatestPerMajor selects one release tag per major line.
//
// Tags are visited in input order. Invalid and prerelease tags are skipped.
// A later tag replaces the current best only when it is strictly greater on
// (major, minor, patch); on a tie the earlier tag stays. The comparison is
// always performed, so unsorted input gives the same answer as sorted input
// except for which of several equal versions is kept.
func LatestPerMajor(tags []string) Selection {
	sel := Selection{byMajor: make(map[int]semver.Version)}

	for _, tag := range tags {
		v, ok := semver.Parse(tag)
		if !ok || v.IsPrerelease() {
			continue
		}

		if cur, seen := sel.byMajor[v.Major]; !seen || v.Compare(cur) > 0 {
			sel.byMajor[v.Major] = v
		}
	}

	return sel
}

// Len returns the number of major lines with a release.
func (s Selection) Len() int {
	return len(s.byMajor)
}

// Majors returns the selected major lines in ascending order.
func (s Selection) Majors() []int {
	majors := make([]int, 0, len(s.byMajor))
	for m := range s.byMajor {
		majors = append(majors, m)
	}
	sort.Ints(majors)
	return majors
}

// Tag returns the latest release tag of major.
func (s Selection) Tag(major int) (string, bool) {
	v, ok := s.byMajor[major]
	if !ok {
		return "", false
	}
	return v.Original, true
}

// Tags returns the selected release tags ordered by ascending major.
func (s Selection) Tags() []string {
	majors := s.Majors()
	out := make([]string, 0, len(majors))
	for _, m := range majors {
		out = append(out, s.byMajor[m].Original)
	}
	return out
}

// FloatingTags returns every tag of the exact form v<digits>.
func FloatingTags(tags []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tag := range tags {
		if floatingRe.MatchString(tag) {
			out[tag] = struct{}{}
		}
	}
	return out
}

// FloatingName returns the floating tag name of a major line.
func FloatingName(major int) string {
	return "v" + strconv.Itoa(major)
}

// ParseFloating returns the major line a floating tag stands for.
func ParseFloating(tag string) (int, bool) {
	if !floatingRe.MatchString(tag) {
		return 0, false
	}
	n, err := strconv.Atoi(tag[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortedNames returns the keys of a tag set in lexical order.
func SortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
