package requirements

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionOrdering(t *testing.T) {
	ascending := []string{
		"0.9",
		"1.0.dev1",
		"1.0a1",
		"1.0a2",
		"1.0b1",
		"1.0rc1",
		"1.0",
		"1.0+cpu",
		"1.0.post1",
		"1.1.dev1",
		"1.1",
		"1.2.0",
		"2!0.1",
	}

	for i := 0; i < len(ascending); i++ {
		for j := 0; j < len(ascending); j++ {
			a := MustParseVersion(ascending[i])
			b := MustParseVersion(ascending[j])

			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			require.Equal(
				t, want, a.Compare(b),
				"%s <=> %s", ascending[i], ascending[j],
			)
		}
	}
}

func TestVersionEquality(t *testing.T) {
	equalPairs := [][2]string{
		{"1.0", "1.0.0"},
		{"1.0", "1.0.0.0"},
		{"1.0.post1", "1.0-1"},
		{"1.0rc1", "1.0.c1"},
		{"1.0alpha1", "1.0a1"},
		{"1.0beta2", "1.0b2"},
		{"1.0RC1", "1.0rc1"},
		{"1.0.dev0", "1.0dev"},
		{"v2.1.4", "2.1.4"},
	}
	for _, pair := range equalPairs {
		a := MustParseVersion(pair[0])
		b := MustParseVersion(pair[1])
		require.Zero(t, a.Compare(b), "%s should equal %s", pair[0], pair[1])
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	invalid := []string{
		"",
		"abc",
		"1.0.x",
		"1..0",
		"1.0-",
		"==1.0",
		"1.0+",
		"1.0 2.0",
	}
	for _, text := range invalid {
		_, err := ParseVersion(text)
		require.Error(t, err, "expected %q to be rejected", text)
	}
}

func TestIsPrerelease(t *testing.T) {
	require.True(t, MustParseVersion("1.0a1").IsPrerelease())
	require.True(t, MustParseVersion("1.0.dev3").IsPrerelease())
	require.False(t, MustParseVersion("1.0").IsPrerelease())
	require.False(t, MustParseVersion("1.0.post1").IsPrerelease())
}
