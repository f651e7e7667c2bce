package features

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/proxemy/muse/algorithms/chroma"
	"github.com/proxemy/muse/algorithms/common"
	"github.com/proxemy/muse/algorithms/decompose"
	"github.com/proxemy/muse/algorithms/spectral"
	"github.com/proxemy/muse/algorithms/temporal"
	"github.com/proxemy/muse/algorithms/windowing"
)

// Feature names.
const (
	Signal                    = "signal"
	SignalHarmonic            = "signal_harmonic"
	SignalPercussive          = "signal_percussive"
	BeatFrames                = "beat_frames"
	BeatTempo                 = "beat_tempo"
	ShortTimeFourierTransform = "short_time_fourier_transform"
	DecomposeHarmonic         = "decompose_harmonic"
	DecomposePercussive       = "decompose_percussive"
	OnsetStrength             = "onset_strength"

	MFCC                    = "mfcc"
	MFCCDelta               = "mfcc_delta"
	MFCCBeatDelta           = "mfcc_beat_delta"
	ChromagramSTFT          = "chromagram_stft"
	ChromagramCQT           = "chromagram_cqt"
	ChromagramCENS          = "chromagram_cens"
	SpectrogramMel          = "spectrogram_mel"
	SpectrogramPCEN         = "spectrogram_pcen"
	SpectrogramMagphase     = "spectrogram_magphase"
	SpectrogramHarmonic     = "spectrogram_harmonic"
	SpectrogramPercussive   = "spectrogram_percussive"
	TempogramAutocorrelated = "tempogram_autocorrelated"
	TempogramFourier        = "tempogram_fourier"
)

const (
	deltaWidth    = 9
	chromaHop     = 512
	chromaSTFTWin = 2048
)

var emitted = []string{
	MFCC,
	MFCCDelta,
	MFCCBeatDelta,
	ChromagramSTFT,
	ChromagramCQT,
	ChromagramCENS,
	SpectrogramMel,
	SpectrogramPCEN,
	SpectrogramMagphase,
	SpectrogramHarmonic,
	SpectrogramPercussive,
	TempogramAutocorrelated,
	TempogramFourier,
}

// EmittedFeatures returns the ordered list of features a full pass yields.
func EmittedFeatures() []string {
	return slices.Clone(emitted)
}

// Names returns every node in the graph, sorted.
func Names() []string {
	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// evaluation computes one or more nodes that share work. outputs and the
// returned tensors are index aligned.
type evaluation struct {
	outputs []string
	deps    []string
	eval    func(ctx context.Context, e *Extractor) ([]*Tensor, error)
}

// graph is filled in init: the eval functions reach Get, which reads graph,
// so a package-level initializer would form a cycle.
var graph map[string]*evaluation

func init() {
	graph = buildGraph()
}

func buildGraph() map[string]*evaluation {
	evals := []*evaluation{
		{outputs: []string{Signal}, eval: evalSignal},
		{outputs: []string{SignalHarmonic, SignalPercussive}, deps: []string{Signal}, eval: evalSignalHPSS},
		{outputs: []string{BeatTempo, BeatFrames}, deps: []string{SignalPercussive}, eval: evalBeats},
		{outputs: []string{ShortTimeFourierTransform}, deps: []string{Signal}, eval: evalSTFT},
		{outputs: []string{DecomposeHarmonic, DecomposePercussive}, deps: []string{ShortTimeFourierTransform}, eval: evalDecompose},
		{outputs: []string{MFCC}, deps: []string{Signal}, eval: evalMFCC},
		{outputs: []string{MFCCDelta}, deps: []string{MFCC}, eval: evalMFCCDelta},
		{outputs: []string{MFCCBeatDelta}, deps: []string{MFCC, MFCCDelta, BeatFrames}, eval: evalMFCCBeatDelta},
		{outputs: []string{ChromagramSTFT}, deps: []string{Signal}, eval: evalChromaSTFT},
		{outputs: []string{ChromagramCQT}, deps: []string{Signal}, eval: evalChromaCQT},
		{outputs: []string{ChromagramCENS}, deps: []string{Signal}, eval: evalChromaCENS},
		{outputs: []string{SpectrogramMel}, deps: []string{Signal}, eval: evalSpectrogramMel},
		{outputs: []string{SpectrogramPCEN}, deps: []string{ShortTimeFourierTransform}, eval: evalPCEN},
		{outputs: []string{SpectrogramMagphase}, deps: []string{ShortTimeFourierTransform}, eval: evalMagphase},
		{outputs: []string{SpectrogramHarmonic}, deps: []string{DecomposeHarmonic, ShortTimeFourierTransform}, eval: referencedDB(DecomposeHarmonic)},
		{outputs: []string{SpectrogramPercussive}, deps: []string{DecomposePercussive, ShortTimeFourierTransform}, eval: referencedDB(DecomposePercussive)},
		{outputs: []string{OnsetStrength}, deps: []string{Signal}, eval: evalOnsetStrength},
		{outputs: []string{TempogramAutocorrelated}, deps: []string{OnsetStrength}, eval: evalTempogramAutocorrelated},
		{outputs: []string{TempogramFourier}, deps: []string{OnsetStrength}, eval: evalTempogramFourier},
	}

	g := make(map[string]*evaluation)
	for _, ev := range evals {
		for _, name := range ev.outputs {
			g[name] = ev
		}
	}
	return g
}

func evalSignal(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	audio, err := e.loader.Load(ctx, e.source, e.config.SampleRate)
	if err != nil {
		return nil, err
	}
	if audio.SampleRate <= 0 {
		return nil, fmt.Errorf("loader reported sample rate %d", audio.SampleRate)
	}
	e.resolve(audio.SampleRate)
	return []*Tensor{Vector(audio.PCM)}, nil
}

func evalSignalHPSS(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	harmonic, percussive, err := decompose.NewSignalSeparator().Separate(signal)
	if err != nil {
		return nil, err
	}
	return []*Tensor{Vector(harmonic), Vector(percussive)}, nil
}

func evalBeats(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	percussive, err := e.vector(ctx, SignalPercussive)
	if err != nil {
		return nil, err
	}
	tracker := temporal.NewBeatTracker()
	tracker.HopSize = e.hopLength
	result, err := tracker.Track(percussive, e.sampleRate)
	if err != nil {
		return nil, err
	}
	frames := make([]float64, len(result.Frames))
	for i, f := range result.Frames {
		frames[i] = float64(f)
	}
	return []*Tensor{Scalar(result.Tempo), Vector(frames)}, nil
}

func evalSTFT(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	res, err := e.stft(signal)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromComplexFrames(res.Complex)}, nil
}

func evalDecompose(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	stft, err := e.Get(ctx, ShortTimeFourierTransform)
	if err != nil {
		return nil, err
	}
	harmonic, percussive, err := decompose.HPSS(stft.ComplexFrames(), decompose.DefaultHPSSParams())
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromComplexFrames(harmonic), FromComplexFrames(percussive)}, nil
}

func evalMFCC(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	// mel bands for the cepstrum span the full band
	mel, err := e.melPower(signal, 0)
	if err != nil {
		return nil, err
	}
	coeffs, err := spectral.NewMFCC(e.config.NMFCC).ComputeFrames(mel)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(coeffs)}, nil
}

func evalMFCCDelta(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	mfcc, err := e.Get(ctx, MFCC)
	if err != nil {
		return nil, err
	}
	delta, err := common.Delta(mfcc.Frames(), deltaWidth)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(delta)}, nil
}

func evalMFCCBeatDelta(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	mfcc, err := e.Get(ctx, MFCC)
	if err != nil {
		return nil, err
	}
	delta, err := e.Get(ctx, MFCCDelta)
	if err != nil {
		return nil, err
	}
	beats, err := e.vector(ctx, BeatFrames)
	if err != nil {
		return nil, err
	}
	if len(beats) == 0 {
		return nil, ErrNoBeats
	}

	mf, df := mfcc.Frames(), delta.Frames()
	stacked := make([][]float64, len(mf))
	for t := range mf {
		stacked[t] = append(slices.Clone(mf[t]), df[t]...)
	}
	boundaries := make([]int, len(beats))
	for i, b := range beats {
		boundaries[i] = int(b)
	}
	synced, err := common.Sync(stacked, boundaries, common.Median)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(synced)}, nil
}

func evalChromaSTFT(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	frames, err := chroma.NewChromaSTFTDefault(e.sampleRate).ComputeChroma(signal, chromaSTFTWin, chromaHop)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(frames)}, nil
}

func evalChromaCQT(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	cqt, err := chroma.NewChromaCQTDefault(e.sampleRate)
	if err != nil {
		return nil, err
	}
	frames, err := cqt.ComputeChroma(signal, chromaHop)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(frames)}, nil
}

func evalChromaCENS(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	cqt, err := chroma.NewChromaCQTDefault(e.sampleRate)
	if err != nil {
		return nil, err
	}
	raw, err := cqt.ComputeChromaUnnormalized(signal, chromaHop)
	if err != nil {
		return nil, err
	}
	frames, err := chroma.CENS(raw, chroma.DefaultCENSParams())
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(frames)}, nil
}

func evalSpectrogramMel(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	mel, err := e.melPower(signal, e.config.FMax)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(spectral.PowerToDB(mel, spectral.RefMax))}, nil
}

func evalPCEN(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	stft, err := e.Get(ctx, ShortTimeFourierTransform)
	if err != nil {
		return nil, err
	}
	frames, err := spectral.PCEN(stft.Abs().Frames(), e.sampleRate, e.hopLength, spectral.DefaultPCENParams())
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(frames)}, nil
}

func evalMagphase(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	stft, err := e.Get(ctx, ShortTimeFourierTransform)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(spectral.AmplitudeToDB(stft.Abs().Frames(), spectral.RefMax))}, nil
}

// referencedDB converts a separated component to decibels relative to the
// peak magnitude of the unseparated transform.
func referencedDB(component string) func(context.Context, *Extractor) ([]*Tensor, error) {
	return func(ctx context.Context, e *Extractor) ([]*Tensor, error) {
		part, err := e.Get(ctx, component)
		if err != nil {
			return nil, err
		}
		stft, err := e.Get(ctx, ShortTimeFourierTransform)
		if err != nil {
			return nil, err
		}
		ref := spectral.MaxValue(stft.Abs().Frames())
		if ref <= 0 {
			ref = 1
		}
		return []*Tensor{FromFrames(spectral.AmplitudeToDB(part.Abs().Frames(), ref))}, nil
	}
}

func evalOnsetStrength(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	signal, err := e.vector(ctx, Signal)
	if err != nil {
		return nil, err
	}
	onset := temporal.NewOnsetStrength()
	onset.NFFT = e.config.NFFT
	onset.NMels = e.config.NMels
	env, err := onset.Compute(signal, e.sampleRate, e.hopLength)
	if err != nil {
		return nil, err
	}
	return []*Tensor{Vector(env)}, nil
}

func evalTempogramAutocorrelated(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	env, err := e.vector(ctx, OnsetStrength)
	if err != nil {
		return nil, err
	}
	frames, err := temporal.NewTempogram(temporal.DefaultTempogramWindow).Autocorrelation(env)
	if err != nil {
		return nil, err
	}
	for _, frame := range frames {
		for i, v := range frame {
			frame[i] = math.Abs(v)
		}
	}
	return []*Tensor{FromFrames(frames)}, nil
}

func evalTempogramFourier(ctx context.Context, e *Extractor) ([]*Tensor, error) {
	env, err := e.vector(ctx, OnsetStrength)
	if err != nil {
		return nil, err
	}
	frameRate := max(1, int(math.Round(float64(e.sampleRate)/float64(e.hopLength))))
	frames, err := temporal.NewTempogram(temporal.DefaultTempogramWindow).Fourier(env, frameRate)
	if err != nil {
		return nil, err
	}
	return []*Tensor{FromFrames(frames)}, nil
}

// stft runs the centred periodic-Hann transform with the configured size
// and the resolved hop.
func (e *Extractor) stft(signal []float64) (*spectral.STFTResult, error) {
	return spectral.NewSTFT().ComputeCentered(signal, e.config.NFFT, e.hopLength, e.sampleRate,
		windowing.NewHann(e.config.NFFT, false))
}

// melPower returns the time-major mel power spectrogram. fmax <= 0 means
// Nyquist.
func (e *Extractor) melPower(signal []float64, fmax float64) ([][]float64, error) {
	res, err := e.stft(signal)
	if err != nil {
		return nil, fmt.Errorf("stft: %w", err)
	}
	power := spectral.NewPowerSpectrum().FromMagnitude(res.Magnitude)
	return spectral.NewMelScale().MelSpectrogram(power, e.config.NMels, e.sampleRate, 0, fmax)
}
