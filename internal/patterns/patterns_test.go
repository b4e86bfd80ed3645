package patterns

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_SkipsCommentsAndBlankLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "blacklist.txt", `
# This is a comment
.*porn.*

   # indented comment
.*adult.*

  .*xxx.*
`)

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []string{".*porn.*", ".*adult.*", ".*xxx.*"}, set.Sources())
}

func TestLoad_OnlyComments(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.txt", "# nothing\n\n   \n")

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.MatchString("anything"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_InvalidRegexReportsLine(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.txt", ".*porn.*\n[invalid regex\n.*adult.*\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Contains(t, err.Error(), "bad.txt:2")
}

func TestSet_MatchIsSearchNotFullMatch(t *testing.T) {
	set := MustCompile("porn")
	assert.True(t, set.MatchString("free porn videos"))
	assert.False(t, set.MatchString("free PORN videos"))

	ci := MustCompile("(?i)porn")
	assert.True(t, ci.MatchString("free PORN videos"))
}

func TestSet_ZeroValueMatchesNothing(t *testing.T) {
	var set Set
	assert.Equal(t, 0, set.Len())
	assert.False(t, set.MatchString(""))
	assert.False(t, set.MatchString("porn"))
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("ok", "(unclosed")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestLoadPair(t *testing.T) {
	dir := t.TempDir()
	black := writeFile(t, dir, "blacklist.txt", ".*porn.*\n")
	white := writeFile(t, dir, "whitelist.txt", ".*research.*\n")

	b, w, err := LoadPair(black, white)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 1, w.Len())

	_, _, err = LoadPair(black, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whitelist")
}

func TestWatcher_SignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	black := writeFile(t, dir, "blacklist.txt", ".*porn.*\n")
	white := writeFile(t, dir, "whitelist.txt", "")

	w, err := NewWatcher(black, white)
	require.NoError(t, err)
	defer w.Close()

	// Unrelated files in the same directory are ignored
	writeFile(t, dir, "other.txt", "x")
	require.NoError(t, os.WriteFile(black, []byte(".*porn.*\n.*adult.*\n"), 0o644))

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}
}
