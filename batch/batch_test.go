package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxemy/muse/features"
	"github.com/proxemy/muse/manifest"
	"github.com/proxemy/muse/render"
	"github.com/proxemy/muse/transcode"
)

// testLoader serves built-in examples, shortened to keep tests quick. It
// fails for the keys in fail and serves silence for the keys in silent.
type testLoader struct {
	inner  *transcode.Loader
	fail   map[string]bool
	silent map[string]bool
}

func newTestLoader(failing ...string) *testLoader {
	l := &testLoader{
		inner:  transcode.NewLoader(transcode.LoaderConfig{ResampleQuality: 4}),
		fail:   map[string]bool{},
		silent: map[string]bool{},
	}
	for _, key := range failing {
		l.fail[key] = true
	}
	return l
}

func (l *testLoader) Load(ctx context.Context, src transcode.Source, sampleRate int) (*transcode.AudioData, error) {
	if l.fail[src.Key()] {
		return nil, fmt.Errorf("%w: corrupt", transcode.ErrDecode)
	}
	audio, err := l.inner.Load(ctx, src, sampleRate)
	if err != nil {
		return nil, err
	}
	if limit := 4 * audio.SampleRate; len(audio.PCM) > limit {
		audio.PCM = audio.PCM[:limit]
	}
	if l.silent[src.Key()] {
		clear(audio.PCM)
	}
	return audio, nil
}

// memorySink keeps written tensors and fails on request.
type memorySink struct {
	mu      sync.Mutex
	written map[string]*features.Tensor
	fail    map[string]error
}

func newMemorySink() *memorySink {
	return &memorySink{written: map[string]*features.Tensor{}, fail: map[string]error{}}
}

func (s *memorySink) Write(_ context.Context, source, feature string, t *features.Tensor) (*render.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := source + "/" + feature
	if err := s.fail[key]; err != nil {
		return nil, err
	}
	s.written[key] = t
	return &render.Artifact{Path: "/mem/" + key + ".png"}, nil
}

func example(t *testing.T, name string) transcode.Source {
	t.Helper()
	src, err := transcode.NewNamedExample(name, transcode.DefaultExamples())
	require.NoError(t, err)
	return src
}

func openManifest(t *testing.T) *manifest.Store {
	t.Helper()
	store, err := manifest.Open(filepath.Join(t.TempDir(), manifest.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunRendersEveryFeature(t *testing.T) {
	sink := newMemorySink()
	store := openManifest(t)
	orch := New(newTestLoader(), sink, Options{
		Jobs:      1,
		Extractor: features.DefaultConfig(),
		Recorder:  store,
	})

	report, err := orch.Run(context.Background(), []transcode.Source{example(t, "metronome")})
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, len(features.EmittedFeatures()), report.Rendered)
	assert.Empty(t, report.Failures)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "metronome", report.Sources[0].Name)

	for _, name := range features.EmittedFeatures() {
		assert.Contains(t, sink.written, "metronome/"+name)
	}

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, manifest.RunCompleted, run.Status)
	assert.Equal(t, report.Rendered, run.Rendered)
}

func TestRunIsolatesFailures(t *testing.T) {
	broken := example(t, "triad")
	sink := newMemorySink()
	sink.fail["metronome/chromagram_cqt"] = fmt.Errorf("%w: palette", render.ErrRender)
	sink.fail["metronome/tempogram_fourier"] = fmt.Errorf("%w: disk full", render.ErrPersist)
	store := openManifest(t)

	orch := New(newTestLoader(broken.Key()), sink, Options{
		Extractor: features.DefaultConfig(),
		Recorder:  store,
	})
	report, err := orch.Run(context.Background(), []transcode.Source{broken, example(t, "metronome")})
	require.NoError(t, err)

	emitted := len(features.EmittedFeatures())
	assert.Equal(t, emitted-2, report.Rendered)
	assert.Len(t, report.Failures, emitted+2)

	// failures are ordered by source, then feature
	assert.Equal(t, "triad", report.Failures[0].Source)
	assert.Equal(t, StageCompute, report.Failures[0].Stage)
	assert.ErrorIs(t, report.Failures[0].Err, transcode.ErrDecode)
	assert.ErrorIs(t, report.Failures[0].Err, features.ErrFeatureComputation)

	tail := report.Failures[emitted:]
	assert.Equal(t, Failure{Source: "metronome", Feature: "chromagram_cqt", Stage: StageRender, Err: tail[0].Err}, tail[0])
	assert.Equal(t, StagePersist, tail[1].Stage)
	assert.Equal(t, "tempogram_fourier", tail[1].Feature)

	assert.Equal(t, 0, report.Sources[0].Rendered)
	assert.Equal(t, emitted, report.Sources[0].Failed)
	assert.Equal(t, emitted-2, report.Sources[1].Rendered)

	failed, err := store.Outcomes(context.Background(), report.RunID, manifest.StatusFailed)
	require.NoError(t, err)
	assert.Len(t, failed, emitted+2)

	run, err := store.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunPartial, run.Status)
}

func TestRunIsolatesSingleFeatureFailure(t *testing.T) {
	quiet := example(t, "triad")
	loader := newTestLoader()
	loader.silent[quiet.Key()] = true
	sink := newMemorySink()

	report, err := New(loader, sink, Options{Extractor: features.DefaultConfig()}).
		Run(context.Background(), []transcode.Source{quiet, example(t, "metronome")})
	require.NoError(t, err)

	emitted := len(features.EmittedFeatures())
	assert.Equal(t, 2*emitted-1, report.Rendered)
	require.Len(t, report.Failures, 1)

	f := report.Failures[0]
	assert.Equal(t, "triad", f.Source)
	assert.Equal(t, features.MFCCBeatDelta, f.Feature)
	assert.Equal(t, StageCompute, f.Stage)
	assert.ErrorIs(t, f.Err, features.ErrNoBeats)

	var fce *features.FeatureComputationError
	require.ErrorAs(t, f.Err, &fce)
	assert.Equal(t, features.MFCCBeatDelta, fce.Feature)

	assert.Len(t, sink.written, 2*emitted-1)
	assert.NotContains(t, sink.written, "triad/"+features.MFCCBeatDelta)
	assert.Contains(t, sink.written, "triad/"+features.MFCCDelta)
	assert.Equal(t, emitted-1, report.Sources[0].Rendered)
	assert.Equal(t, emitted, report.Sources[1].Rendered)
}

func TestRunNothingRendered(t *testing.T) {
	src := example(t, "noise")
	orch := New(newTestLoader(src.Key()), newMemorySink(), Options{Extractor: features.DefaultConfig()})

	report, err := orch.Run(context.Background(), []transcode.Source{src})
	assert.ErrorIs(t, err, ErrNothingRendered)
	require.NotNil(t, report)
	assert.Equal(t, len(features.EmittedFeatures()), report.Failed())
}

func TestRunParallelMatchesSerial(t *testing.T) {
	sources := []transcode.Source{example(t, "metronome"), example(t, "triad"), example(t, "pulse")}

	serialSink, parallelSink := newMemorySink(), newMemorySink()
	serial, err := New(newTestLoader(), serialSink, Options{Jobs: 1, Extractor: features.DefaultConfig()}).
		Run(context.Background(), sources)
	require.NoError(t, err)
	parallel, err := New(newTestLoader(), parallelSink, Options{Jobs: 3, Extractor: features.DefaultConfig()}).
		Run(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, serial.Rendered, parallel.Rendered)
	require.Len(t, parallelSink.written, len(serialSink.written))
	for key, tensor := range serialSink.written {
		assert.True(t, tensor.Equal(parallelSink.written[key]), key)
	}
	for i := range sources {
		assert.Equal(t, serial.Sources[i].Name, parallel.Sources[i].Name)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(newTestLoader(), newMemorySink(), Options{Extractor: features.DefaultConfig()}).
		Run(ctx, []transcode.Source{example(t, "metronome")})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Rendered)
}

// cancellingSink cancels the run during its first write and reports the
// cancellation as the write error.
type cancellingSink struct {
	cancel context.CancelFunc
}

func (s *cancellingSink) Write(ctx context.Context, source, feature string, t *features.Tensor) (*render.Artifact, error) {
	s.cancel()
	return nil, fmt.Errorf("persist %s/%s: %w", source, feature, ctx.Err())
}

func TestRunCancelledDuringWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancellingSink{cancel: cancel}
	store := openManifest(t)

	report, err := New(newTestLoader(), sink, Options{Extractor: features.DefaultConfig(), Recorder: store}).
		Run(ctx, []transcode.Source{example(t, "metronome")})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.Rendered)
	assert.Empty(t, report.Failures)

	outcomes, err := store.Outcomes(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRunInvalidConfig(t *testing.T) {
	cfg := features.DefaultConfig()
	cfg.NMels = 0
	_, err := New(newTestLoader(), newMemorySink(), Options{Extractor: cfg}).
		Run(context.Background(), []transcode.Source{example(t, "metronome")})
	assert.ErrorIs(t, err, features.ErrInvalidConfig)
}

func TestDisplayNames(t *testing.T) {
	root := t.TempDir()
	formats := transcode.NewFormats(false)
	var sources []transcode.Source
	for _, dir := range []string{"a", "b", "c"} {
		name := "take.wav"
		if dir == "c" {
			name = "other.wav"
		}
		path := filepath.Join(root, dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		src, err := transcode.NewFilePath(path, formats)
		require.NoError(t, err)
		sources = append(sources, src)
	}

	names := DisplayNames(sources)
	assert.NotEqual(t, names[0], names[1])
	assert.Regexp(t, `^take\.wav-[0-9a-f]{8}$`, names[0])
	assert.Regexp(t, `^take\.wav-[0-9a-f]{8}$`, names[1])
	assert.Equal(t, "other.wav", names[2])
	assert.Equal(t, names, DisplayNames(sources))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Persist", StagePersist.Label())
	assert.Equal(t, "Spectrogram Mel", FeatureTitle("spectrogram_mel"))
}
