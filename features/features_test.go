package features

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/algorithms/common"
	"github.com/proxemy/muse/transcode"
)

// fakeLoader serves a fixed waveform and counts loads.
type fakeLoader struct {
	pcm   []float64
	rate  int
	err   error
	calls int
}

func (l *fakeLoader) Load(_ context.Context, _ transcode.Source, sampleRate int) (*transcode.AudioData, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	rate := l.rate
	if sampleRate > 0 {
		rate = sampleRate
	}
	pcm := make([]float64, len(l.pcm))
	copy(pcm, l.pcm)
	return &transcode.AudioData{PCM: pcm, SampleRate: rate, Channels: 1}, nil
}

func metronome(t *testing.T) *fakeLoader {
	t.Helper()
	pcm, ok := transcode.DefaultExamples().Render("metronome")
	require.True(t, ok)
	return &fakeLoader{pcm: pcm, rate: transcode.ExampleSampleRate}
}

// exampleSource names a registered example. The fake loaders below ignore
// which source they are asked for.
func exampleSource(t *testing.T) transcode.Source {
	t.Helper()
	src, err := transcode.NewNamedExample("metronome", transcode.DefaultExamples())
	require.NoError(t, err)
	return src
}

func newExtractor(t *testing.T, loader SignalLoader, opts ...Option) *Extractor {
	t.Helper()
	e, err := New(exampleSource(t), loader, DefaultConfig(), opts...)
	require.NoError(t, err)
	return e
}

func TestEmittedFeatures(t *testing.T) {
	names := EmittedFeatures()
	assert.Equal(t, []string{
		"mfcc", "mfcc_delta", "mfcc_beat_delta",
		"chromagram_stft", "chromagram_cqt", "chromagram_cens",
		"spectrogram_mel", "spectrogram_pcen", "spectrogram_magphase",
		"spectrogram_harmonic", "spectrogram_percussive",
		"tempogram_autocorrelated", "tempogram_fourier",
	}, names)

	names[0] = "mutated"
	assert.Equal(t, MFCC, EmittedFeatures()[0])

	for _, name := range EmittedFeatures() {
		assert.Contains(t, Names(), name)
	}
}

func TestDependencies(t *testing.T) {
	deps, err := Dependencies(MFCCBeatDelta)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{MFCC, MFCCDelta, BeatFrames}, deps)

	deps, err = Dependencies(Signal)
	require.NoError(t, err)
	assert.Empty(t, deps)

	assert.True(t, dependsOn(MFCCBeatDelta, Signal))
	assert.True(t, dependsOn(SpectrogramHarmonic, ShortTimeFourierTransform))
	assert.False(t, dependsOn(MFCC, ShortTimeFourierTransform))

	for _, name := range Names() {
		assert.False(t, dependsOn(name, name), name)
	}
}

func TestUnknownFeature(t *testing.T) {
	e := newExtractor(t, metronome(t))

	_, err := e.Get(context.Background(), "zero_crossings")
	assert.ErrorIs(t, err, ErrUnknownFeature)
	assert.ErrorIs(t, e.Evict("zero_crossings"), ErrUnknownFeature)
	_, err = e.Dependencies("zero_crossings")
	assert.ErrorIs(t, err, ErrUnknownFeature)

	assert.NoError(t, e.Evict(MFCC))
}

func TestInvalidConfig(t *testing.T) {
	src := exampleSource(t)
	for name, mutate := range map[string]func(*Config){
		"negative rate":  func(c *Config) { c.SampleRate = -1 },
		"negative hop":   func(c *Config) { c.HopLength = -5 },
		"no frame rate":  func(c *Config) { c.HopLength, c.FrameRate = 0, 0 },
		"tiny fft":       func(c *Config) { c.NFFT = 4 },
		"no mels":        func(c *Config) { c.NMels = 0 },
		"too many mfccs": func(c *Config) { c.NMFCC = c.NMels + 1 },
		"negative fmax":  func(c *Config) { c.FMax = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			_, err := New(src, &fakeLoader{}, cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := New(src, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestMemoization(t *testing.T) {
	loader := metronome(t)
	evaluated := map[string]int{}
	e := newExtractor(t, loader, WithEvaluationHook(func(name string) { evaluated[name]++ }))
	ctx := context.Background()

	first, err := e.Get(ctx, MFCC)
	require.NoError(t, err)
	again, err := e.Get(ctx, MFCC)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, e.EvaluationCount(MFCC))
	assert.Equal(t, 1, evaluated[MFCC])
	assert.Equal(t, 1, loader.calls)

	rows, cols := first.Dims()
	assert.Equal(t, DefaultNMFCC, rows)
	assert.Equal(t, len(loader.pcm)/DefaultHopLength+1, cols)

	require.NoError(t, e.Evict(MFCC))
	assert.False(t, e.Cached(MFCC))
	assert.True(t, e.Cached(Signal))

	recomputed, err := e.Get(ctx, MFCC)
	require.NoError(t, err)
	assert.Equal(t, 2, e.EvaluationCount(MFCC))
	assert.Equal(t, 1, loader.calls)
	assert.True(t, first.Equal(recomputed))
}

func TestPairsShareEvaluation(t *testing.T) {
	e := newExtractor(t, metronome(t))
	ctx := context.Background()

	_, err := e.Get(ctx, DecomposeHarmonic)
	require.NoError(t, err)
	assert.True(t, e.Cached(DecomposePercussive))
	assert.Equal(t, 1, e.EvaluationCount(DecomposePercussive))

	h, err := e.Get(ctx, DecomposeHarmonic)
	require.NoError(t, err)
	p, err := e.Get(ctx, DecomposePercussive)
	require.NoError(t, err)
	assert.True(t, h.IsComplex())
	assert.Equal(t, 1, e.EvaluationCount(DecomposeHarmonic))

	stft, err := e.Get(ctx, ShortTimeFourierTransform)
	require.NoError(t, err)
	rows, cols := stft.Dims()
	assert.Equal(t, DefaultNFFT/2+1, rows)
	hr, hc := h.Dims()
	assert.Equal(t, rows, hr)
	assert.Equal(t, cols, hc)
	pr, pc := p.Dims()
	assert.Equal(t, rows, pr)
	assert.Equal(t, cols, pc)
}

func TestDeterminism(t *testing.T) {
	ctx := context.Background()
	a := newExtractor(t, metronome(t))
	b := newExtractor(t, metronome(t))

	for _, name := range []string{MFCC, SpectrogramMel, ChromagramCQT, TempogramFourier} {
		ta, err := a.Get(ctx, name)
		require.NoError(t, err, name)
		tb, err := b.Get(ctx, name)
		require.NoError(t, err, name)
		assert.True(t, ta.Equal(tb), name)
	}
}

func TestResolvedRates(t *testing.T) {
	ctx := context.Background()
	loader := &fakeLoader{pcm: make([]float64, 44100), rate: 44100}
	cfg := DefaultConfig()
	cfg.SampleRate = 0
	cfg.HopLength = 0

	e, err := New(exampleSource(t), loader, cfg)
	require.NoError(t, err)

	sr, err := e.SampleRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44100, sr)

	hop, err := e.HopLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 221, hop)
	assert.Equal(t, 1, loader.calls)
}

func TestLoadFailureIsolated(t *testing.T) {
	loader := &fakeLoader{err: transcode.ErrDecode}
	e, err := New(exampleSource(t), loader, DefaultConfig())
	require.NoError(t, err)

	_, err = e.Get(context.Background(), SpectrogramMel)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeatureComputation)
	assert.ErrorIs(t, err, transcode.ErrDecode)

	var fce *FeatureComputationError
	require.True(t, errors.As(err, &fce))
	assert.Equal(t, SpectrogramMel, fce.Feature)
	assert.False(t, e.Cached(SpectrogramMel))
	assert.False(t, e.Cached(Signal))

	// failures are not cached
	_, err = e.Get(context.Background(), SpectrogramMel)
	assert.Error(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestSilentInputHasNoBeats(t *testing.T) {
	loader := &fakeLoader{pcm: make([]float64, 3*22050), rate: 22050}
	e, err := New(exampleSource(t), loader, DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	mfcc, err := e.Get(ctx, MFCC)
	require.NoError(t, err)

	_, err = e.Get(ctx, MFCCBeatDelta)
	assert.ErrorIs(t, err, ErrNoBeats)
	assert.ErrorIs(t, err, ErrFeatureComputation)
	assert.False(t, e.Cached(MFCCBeatDelta))

	cached, err := e.Get(ctx, MFCC)
	require.NoError(t, err)
	assert.Same(t, mfcc, cached)
	assert.Equal(t, 1, e.EvaluationCount(MFCC))
}

func TestDeltaNeedsEnoughFrames(t *testing.T) {
	loader := &fakeLoader{pcm: make([]float64, 1024), rate: 22050}
	e, err := New(exampleSource(t), loader, DefaultConfig())
	require.NoError(t, err)

	_, err = e.Get(context.Background(), MFCCDelta)
	assert.ErrorIs(t, err, ErrFeatureComputation)
	assert.True(t, e.Cached(MFCC))
}

func TestBeatSynchronousMedian(t *testing.T) {
	e := newExtractor(t, metronome(t))
	ctx := context.Background()

	synced, err := e.Get(ctx, MFCCBeatDelta)
	require.NoError(t, err)
	mfcc, _ := e.Get(ctx, MFCC)
	delta, _ := e.Get(ctx, MFCCDelta)
	beats, _ := e.Get(ctx, BeatFrames)

	_, frames := mfcc.Dims()
	boundaries := make([]int, 0)
	for _, b := range beats.Values() {
		boundaries = append(boundaries, int(b))
	}
	require.NotEmpty(t, boundaries)
	fixed := common.FixFrames(boundaries, frames)

	rows, cols := synced.Dims()
	assert.Equal(t, 2*DefaultNMFCC, rows)
	assert.Equal(t, len(fixed)-1, cols)

	// first segment, first coefficient is the median of the raw frames
	seg := mfcc.Row(0)[fixed[0]:fixed[1]]
	assert.Equal(t, common.Median(seg), synced.At(0, 0))
	segDelta := delta.Row(0)[fixed[0]:fixed[1]]
	assert.Equal(t, common.Median(segDelta), synced.At(DefaultNMFCC, 0))

	tempo, err := e.Get(ctx, BeatTempo)
	require.NoError(t, err)
	assert.InDelta(t, 120, tempo.At(0, 0), 12)
}

func TestEnumerateComputesEachFeatureOnce(t *testing.T) {
	loader := metronome(t)
	evaluated := map[string]int{}
	e := newExtractor(t, loader, WithEvaluationHook(func(name string) { evaluated[name]++ }))

	var got []string
	for f, err := range Enumerate(context.Background(), e) {
		require.NoError(t, err, f.Name)
		require.NotNil(t, f.Tensor, f.Name)
		assert.False(t, f.Tensor.Empty(), f.Name)
		got = append(got, f.Name)
	}
	assert.Equal(t, EmittedFeatures(), got)

	for _, name := range EmittedFeatures() {
		assert.Equal(t, 1, e.EvaluationCount(name), name)
		assert.False(t, e.Cached(name), name)
	}
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, 1, e.EvaluationCount(ShortTimeFourierTransform))
	assert.Equal(t, 1, e.EvaluationCount(SignalPercussive))
	assert.Empty(t, e.cache)
}

func TestEnumerateIsRepeatable(t *testing.T) {
	loader := metronome(t)
	e := newExtractor(t, loader)

	collect := func() map[string]*Tensor {
		out := map[string]*Tensor{}
		for f, err := range Enumerate(context.Background(), e) {
			require.NoError(t, err)
			out[f.Name] = f.Tensor
		}
		return out
	}
	first, second := collect(), collect()
	for name, t1 := range first {
		assert.True(t, t1.Equal(second[name]), name)
	}
	assert.Equal(t, 2, loader.calls)
}

func TestEnumerateContinuesAfterFailure(t *testing.T) {
	loader := &fakeLoader{pcm: make([]float64, 3*22050), rate: 22050}
	attempts := make(map[string]int)
	e, err := New(exampleSource(t), loader, DefaultConfig(),
		WithEvaluationHook(func(name string) { attempts[name]++ }))
	require.NoError(t, err)

	var failed, ok []string
	for f, err := range Enumerate(context.Background(), e) {
		if err != nil {
			assert.ErrorIs(t, err, ErrNoBeats)
			failed = append(failed, f.Name)
			continue
		}
		ok = append(ok, f.Name)
	}
	assert.Equal(t, []string{MFCCBeatDelta}, failed)
	assert.Len(t, ok, len(EmittedFeatures())-1)

	// a failed dependent does not cause its inputs to be recomputed
	assert.Equal(t, 1, loader.calls)
	for _, name := range []string{MFCC, MFCCDelta, BeatFrames, MFCCBeatDelta} {
		assert.Equal(t, 1, attempts[name], name)
	}
}

func TestEnumerateCancellation(t *testing.T) {
	e := newExtractor(t, metronome(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var items int
	for f, err := range Enumerate(ctx, e) {
		items++
		assert.Equal(t, MFCC, f.Name)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 1, items)
}

func TestEnumerateEarlyBreak(t *testing.T) {
	e := newExtractor(t, metronome(t))
	var seen []string
	for f, err := range Enumerate(context.Background(), e) {
		require.NoError(t, err)
		seen = append(seen, f.Name)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{MFCC, MFCCDelta}, seen)
	assert.Empty(t, e.cache)
}

func TestTensor(t *testing.T) {
	tt := FromFrames([][]float64{{1, 2, 3}, {4, 5, 6}})
	rows, cols := tt.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 4.0, tt.At(0, 1))
	assert.Equal(t, []float64{3, 6}, tt.Row(2))
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, tt.Frames())

	lo, hi, ok := tt.Bounds()
	require.True(t, ok)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 6.0, hi)

	nan := Vector([]float64{math.NaN(), 1})
	assert.True(t, nan.Equal(Vector([]float64{math.NaN(), 1})))
	assert.False(t, nan.Equal(Vector([]float64{math.NaN(), 2})))
	assert.True(t, Vector([]float64{1}).Equal(Scalar(1)))

	empty := Vector(nil)
	assert.True(t, empty.Empty())
	assert.Nil(t, empty.Values())
	_, _, ok = empty.Bounds()
	assert.False(t, ok)

	c := FromComplexFrames([][]complex128{{3 + 4i}})
	assert.True(t, c.IsComplex())
	assert.Equal(t, 5.0, c.At(0, 0))
	assert.Equal(t, 5.0, c.Abs().At(0, 0))
	assert.False(t, c.Abs().IsComplex())
	assert.False(t, c.Equal(Scalar(5)))
}
