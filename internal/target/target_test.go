package target

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAbsolute(t *testing.T) {
	root := filepath.FromSlash("/proj")
	got, err := Parse("//dir/sub:name", root, root)
	require.NoError(t, err)
	assert.Equal(t, Target{Dir: filepath.Join(root, "dir", "sub"), Name: "name"}, got)
}

func TestParseAbsoluteAtRoot(t *testing.T) {
	root := filepath.FromSlash("/proj")
	got, err := Parse("//:name", root, root)
	require.NoError(t, err)
	assert.Equal(t, Target{Dir: root, Name: "name"}, got)
}

func TestParseRelative(t *testing.T) {
	root := filepath.FromSlash("/proj")
	cur := filepath.Join(root, "dir", "sub")
	got, err := Parse(":name", root, cur)
	require.NoError(t, err)
	assert.Equal(t, Target{Dir: cur, Name: "name"}, got)
}

func TestParseRejectsMissingPrefix(t *testing.T) {
	_, err := Parse("dir:name", "/proj", "/proj")
	assert.Error(t, err)
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse("//dir", "/proj", "/proj")
	assert.Error(t, err)
}

func TestParseRejectsEmptyName(t *testing.T) {
	_, err := Parse("//dir:", "/proj", "/proj")
	assert.Error(t, err)

	_, err = Parse(":", "/proj", "/proj")
	assert.Error(t, err)
}

func TestParseRejectsInvalidName(t *testing.T) {
	_, err := Parse("//dir:1name", "/proj", "/proj")
	assert.Error(t, err)

	_, err = Parse("//dir:na-me", "/proj", "/proj")
	assert.Error(t, err)
}

func TestParseRejectsEscapingProjectRoot(t *testing.T) {
	_, err := Parse("//../outside:name", "/proj", "/proj")
	assert.Error(t, err)
}

// TestNormalizationEquality verifies spec.md §3's "two targets are equal
// iff normalized (absolute directory + name) agree": an absolute spelling
// and a relative spelling of the same object must produce equal Targets
// so they collapse to one cache entry.
func TestNormalizationEquality(t *testing.T) {
	root := filepath.FromSlash("/proj")
	cur := filepath.Join(root, "dir", "sub")

	abs, err := Parse("//dir/sub:name", root, cur)
	require.NoError(t, err)

	rel, err := Parse(":name", root, cur)
	require.NoError(t, err)

	assert.Equal(t, abs, rel)

	// A dot-segment spelling of the same directory also
	// normalizes to the same Target.
	messy, err := Parse("//dir/./sub:name", root, cur)
	require.NoError(t, err)
	assert.Equal(t, abs, messy)
}

func TestRelRendersCanonicalForm(t *testing.T) {
	root := filepath.FromSlash("/proj")
	tgt := Target{Dir: filepath.Join(root, "dir", "sub"), Name: "name"}
	assert.Equal(t, "//dir/sub:name", tgt.Rel(root))

	atRoot := Target{Dir: root, Name: "name"}
	assert.Equal(t, "//:name", atRoot.Rel(root))
}

func TestStringIsAbsoluteFallback(t *testing.T) {
	tgt := Target{Dir: filepath.FromSlash("/proj/dir"), Name: "name"}
	assert.Equal(t, "/proj/dir:name", tgt.String())
}
