package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/features"
)

func ramp() *features.Tensor {
	// 3 bins x 4 frames, increasing along bins
	return features.FromFrames([][]float64{
		{0, 1, 2},
		{0, 1, 2},
		{0, 1, 2},
		{0, 1, 2},
	})
}

func TestColormap(t *testing.T) {
	cm, err := LookupColormap("Magma")
	require.NoError(t, err)
	assert.Equal(t, "magma", cm.Name())
	assert.Equal(t, cm.stops[0], cm.At(-1))
	assert.Equal(t, cm.stops[0], cm.At(math.NaN()))
	assert.Equal(t, cm.stops[len(cm.stops)-1], cm.At(2))

	gray, err := LookupColormap("gray")
	require.NoError(t, err)
	mid := gray.At(0.5)
	assert.InDelta(t, 128, int(mid.R), 1)

	_, err = LookupColormap("rainbow")
	assert.Error(t, err)
	assert.Contains(t, Colormaps(), "viridis")
}

func TestHeatmapRender(t *testing.T) {
	r, err := NewHeatmapRenderer("gray", 0)
	require.NoError(t, err)

	img, err := r.Render(ramp(), Axes{LowOriginY: true})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	// row 0 (lowest value) sits at the bottom
	br, _, _, _ := img.At(0, 2).RGBA()
	tr, _, _, _ := img.At(0, 0).RGBA()
	assert.Less(t, br, tr)

	flipped, err := r.Render(ramp(), Axes{})
	require.NoError(t, err)
	fr, _, _, _ := flipped.At(0, 0).RGBA()
	assert.Equal(t, br, fr)
}

func TestHeatmapMinHeight(t *testing.T) {
	r, err := NewHeatmapRenderer("magma", 10)
	require.NoError(t, err)

	img, err := r.Render(ramp(), Axes{})
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dy())

	vec, err := r.Render(features.Vector([]float64{1, 2, 3}), Axes{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 10), vec.Bounds())
}

func TestHeatmapRenderErrors(t *testing.T) {
	r, err := NewHeatmapRenderer("magma", 0)
	require.NoError(t, err)

	_, err = r.Render(features.Vector(nil), Axes{Title: "empty"})
	assert.ErrorIs(t, err, ErrRender)

	_, err = r.Render(features.Vector([]float64{math.NaN(), math.Inf(1)}), Axes{})
	assert.ErrorIs(t, err, ErrRender)

	img, err := r.Render(features.Vector([]float64{5, 5}), Axes{})
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestLayout(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutPerSource, l)

	assert.Equal(t, filepath.Join("out", "a.wav", "mfcc.png"), l.Path("out", "a.wav", "mfcc", ".png"))
	assert.Equal(t, filepath.Join("out", "a.wav_mfcc.png"), LayoutFlat.Path("out", "a.wav", "mfcc", ".png"))
	assert.Equal(t, filepath.Join("out", "x_y.wav", "mfcc.png"), l.Path("out", "x/y.wav", "mfcc", ".png"))
	assert.Equal(t, filepath.Join("out", "_", "mfcc.png"), l.Path("out", "..", "mfcc", ".png"))

	_, err = ParseLayout("nested")
	assert.Error(t, err)
}

func TestRawRoundTrip(t *testing.T) {
	in := features.FromFrames([][]float64{{0.5, -2}, {1024, 0.25}, {0, -0.125}})

	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, in))
	assert.Equal(t, len(RawMagic)+8+2*6, buf.Len())
	assert.Equal(t, RawMagic, buf.String()[:len(RawMagic)])

	out, err := ReadRaw(&buf)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	_, err = ReadRaw(bytes.NewReader([]byte("PNG....")))
	assert.Error(t, err)
}

type failingRenderer struct{}

func (failingRenderer) Render(*features.Tensor, Axes) (image.Image, error) {
	return nil, errors.New("boom")
}

func TestWriter(t *testing.T) {
	root := t.TempDir()
	w, err := NewWriter(root, WriterOptions{Raw: true})
	require.NoError(t, err)

	art, err := w.Write(context.Background(), "song.wav", "mfcc", ramp())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "song.wav", "mfcc.png"), art.Path)
	assert.Equal(t, filepath.Join(root, "song.wav", "mfcc.f16"), art.RawPath)

	f, err := os.Open(art.Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())

	entries, err := os.ReadDir(filepath.Join(root, "song.wav"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	bad, err := NewWriter(root, WriterOptions{Renderer: failingRenderer{}})
	require.NoError(t, err)
	_, err = bad.Write(context.Background(), "song.wav", "mfcc", ramp())
	assert.ErrorIs(t, err, ErrRender)
}

func TestWriterPersistFailure(t *testing.T) {
	root := t.TempDir()
	// a file where the source directory should be
	require.NoError(t, os.WriteFile(filepath.Join(root, "song.wav"), []byte("x"), 0o644))

	w, err := NewWriter(root, WriterOptions{})
	require.NoError(t, err)
	_, err = w.Write(context.Background(), "song.wav", "mfcc", ramp())
	assert.ErrorIs(t, err, ErrPersist)
}

func TestLockOutput(t *testing.T) {
	root := t.TempDir()
	lock, err := LockOutput(root)
	require.NoError(t, err)
	defer lock.Unlock()

	_, err = LockOutput(root)
	assert.ErrorIs(t, err, ErrOutputLocked)
}
