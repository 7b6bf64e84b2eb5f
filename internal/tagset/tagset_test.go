package tagset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestPerMajor(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want map[int]string
	}{
		{
			name: "empty input",
			tags: nil,
			want: map[int]string{},
		},
		{
			name: "no semver tags",
			tags: []string{"latest", "minor_fix", "v1", "v2"},
			want: map[int]string{},
		},
		{
			name: "minor dominates patch",
			tags: []string{"1.0.0", "1.1.0", "1.0.9"},
			want: map[int]string{1: "1.1.0"},
		},
		{
			name: "descending input",
			tags: []string{"2.1.0", "2.0.0", "1.2.1", "1.1.0", "1.0.0"},
			want: map[int]string{1: "1.2.1", 2: "2.1.0"},
		},
		{
			name: "ascending input",
			tags: []string{"1.0.0", "1.1.0", "1.2.1", "2.0.0", "2.1.0"},
			want: map[int]string{1: "1.2.1", 2: "2.1.0"},
		},
		{
			name: "tie keeps first seen",
			tags: []string{"v1.2.0", "1.2.0", "1.2.0+build.5"},
			want: map[int]string{1: "v1.2.0"},
		},
		{
			name: "prerelease is never selected",
			tags: []string{"1.0.0", "1.1.0-rc.1", "2.0.0-beta"},
			want: map[int]string{1: "1.0.0"},
		},
		{
			name: "major zero",
			tags: []string{"0.1.0", "0.0.9"},
			want: map[int]string{0: "0.1.0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := LatestPerMajor(tt.tags)
			require.Equal(t, len(tt.want), sel.Len())

			for major, tag := range tt.want {
				got, ok := sel.Tag(major)
				require.True(t, ok, "major %d", major)
				assert.Equal(t, tag, got, "major %d", major)
			}
		})
	}
}

func TestSelectionOrdering(t *testing.T) {
	sel := LatestPerMajor([]string{"10.0.0", "3.0.0", "1.0.0", "2.0.0"})

	assert.Equal(t, []int{1, 2, 3, 10}, sel.Majors())
	assert.Equal(t, []string{"1.0.0", "2.0.0", "3.0.0", "10.0.0"}, sel.Tags())

	_, ok := sel.Tag(4)
	assert.False(t, ok)
}

func TestFloatingTags(t *testing.T) {
	got := FloatingTags([]string{"v1", "v2", "v10", "v1.0", "v1.0.0", "vv1", "v", "1", "V3", "v01", "release-v4"})

	assert.Equal(t, []string{"v01", "v1", "v10", "v2"}, SortedNames(got))
}

func TestFloatingName(t *testing.T) {
	assert.Equal(t, "v0", FloatingName(0))
	assert.Equal(t, "v12", FloatingName(12))
}

func TestParseFloating(t *testing.T) {
	n, ok := ParseFloating("v7")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = ParseFloating("v7.1.0")
	assert.False(t, ok)

	_, ok = ParseFloating("7")
	assert.False(t, ok)
}
