package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/transcode"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestDiscoverWalksDirectories(t *testing.T) {
	root := t.TempDir()
	a := touch(t, filepath.Join(root, "a.wav"))
	b := touch(t, filepath.Join(root, "nested", "deeper", "B.FLAC"))
	c := touch(t, filepath.Join(root, "nested", "c.mp3"))
	touch(t, filepath.Join(root, "nested", "cover.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))

	files, err := New(transcode.NewFormats(false)).Discover([]string{root})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b, c}, files)
}

func TestDiscoverDeduplicates(t *testing.T) {
	root := t.TempDir()
	a := touch(t, filepath.Join(root, "song.ogg"))

	files, err := New(transcode.NewFormats(false)).Discover([]string{
		root,
		a,
		filepath.Join(root, ".", "song.ogg"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)
}

func TestDiscoverErrors(t *testing.T) {
	root := t.TempDir()
	d := New(transcode.NewFormats(false))

	_, err := d.Discover([]string{filepath.Join(root, "missing.wav")})
	assert.ErrorIs(t, err, ErrPathNotFound)

	txt := touch(t, filepath.Join(root, "readme.txt"))
	_, err = d.Discover([]string{txt})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	touch(t, filepath.Join(empty, "image.png"))
	_, err = d.Discover([]string{empty})
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = d.Discover(nil)
	assert.ErrorIs(t, err, ErrEmptyResult)
}

type extSet map[string]bool

func (s extSet) Supports(path string) bool { return s[filepath.Ext(path)] }

func TestDiscoverUsesInjectedFormats(t *testing.T) {
	root := t.TempDir()
	x := touch(t, filepath.Join(root, "a.xyz"))
	touch(t, filepath.Join(root, "b.wav"))

	files, err := New(extSet{".xyz": true}).Discover([]string{root})
	require.NoError(t, err)
	assert.Equal(t, []string{x}, files)
}
