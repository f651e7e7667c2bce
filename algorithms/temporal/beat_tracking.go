package temporal

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/proxemy/muse/algorithms/common"
	"github.com/proxemy/muse/algorithms/windowing"
	"github.com/proxemy/muse/logging"
)

// BeatResult holds the estimated tempo and beat positions in frames.
type BeatResult struct {
	Tempo  float64 `json:"tempo"`
	Frames []int   `json:"frames"`
}

// BeatTracker finds beats by dynamic programming over an onset envelope:
// every frame scores its onset strength plus the best predecessor roughly
// one beat period earlier, penalised by squared log deviation from the
// period.
type BeatTracker struct {
	Tightness float64
	Trim      bool
	HopSize   int

	onset  *OnsetStrength
	tempo  *TempoEstimation
	logger logging.Logger
}

// NewBeatTracker uses hop 512, tightness 100, median onset aggregation and
// trims weak leading and trailing beats.
func NewBeatTracker() *BeatTracker {
	onset := NewOnsetStrength()
	onset.Aggregate = common.Median
	return &BeatTracker{
		Tightness: 100,
		Trim:      true,
		HopSize:   512,
		onset:     onset,
		tempo:     NewTempoEstimation(),
		logger: logging.WithFields(logging.Fields{
			"component": "beat_tracker",
		}),
	}
}

// Track estimates tempo and beats of a signal. A signal without onsets
// yields zero tempo and no beats.
func (bt *BeatTracker) Track(signal []float64, sampleRate int) (*BeatResult, error) {
	envelope, err := bt.onset.Compute(signal, sampleRate, bt.HopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to compute onset envelope: %w", err)
	}
	return bt.TrackEnvelope(envelope, sampleRate)
}

// TrackEnvelope runs tempo estimation and beat tracking on an onset
// envelope computed at bt.HopSize.
func (bt *BeatTracker) TrackEnvelope(envelope []float64, sampleRate int) (*BeatResult, error) {
	if !slices.ContainsFunc(envelope, func(v float64) bool { return v != 0 }) {
		bt.logger.Warn("no onsets found, returning empty beat sequence", logging.Fields{
			"frames": len(envelope),
		})
		return &BeatResult{Tempo: 0, Frames: []int{}}, nil
	}

	bpm, err := bt.tempo.Estimate(envelope, sampleRate, bt.HopSize)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate tempo: %w", err)
	}

	frameRate := float64(sampleRate) / float64(bt.HopSize)
	period := int(math.Round(60.0 * frameRate / bpm))
	if period < 1 {
		return nil, fmt.Errorf("beat period below one frame at %.1f BPM", bpm)
	}

	localScore := bt.localScore(envelope, period)
	backlink, cumScore := bt.dynamicProgram(localScore, period)

	beats := []int{lastBeat(cumScore)}
	for backlink[beats[len(beats)-1]] >= 0 {
		beats = append(beats, backlink[beats[len(beats)-1]])
	}
	slices.Reverse(beats)

	beats = bt.trimBeats(localScore, beats)

	bt.logger.Debug("beats tracked", logging.Fields{
		"tempo":  bpm,
		"period": period,
		"beats":  len(beats),
	})

	return &BeatResult{Tempo: bpm, Frames: beats}, nil
}

// localScore smooths the std-normalised envelope with a Gaussian a little
// narrower than one period.
func (bt *BeatTracker) localScore(envelope []float64, period int) []float64 {
	normalized := slices.Clone(envelope)
	if std := common.StandardDeviation(normalized); std > 0 {
		floats.Scale(1/std, normalized)
	}

	kernel := make([]float64, 2*period+1)
	for i := range kernel {
		x := float64(i-period) * 32.0 / float64(period)
		kernel[i] = math.Exp(-0.5 * x * x)
	}
	return common.ConvolveSame(normalized, kernel)
}

func (bt *BeatTracker) dynamicProgram(localScore []float64, period int) ([]int, []float64) {
	n := len(localScore)
	backlink := make([]int, n)
	cumScore := make([]float64, n)

	// predecessor offsets from -2*period to -period/2
	lo := -2 * period
	hi := -int(math.Round(float64(period) / 2))
	offsets := make([]int, 0, hi-lo+1)
	txwt := make([]float64, 0, hi-lo+1)
	for off := lo; off <= hi; off++ {
		offsets = append(offsets, off)
		l := math.Log(-float64(off) / float64(period))
		txwt = append(txwt, -bt.Tightness*l*l)
	}

	scoreThresh := 0.01 * floats.Max(localScore)
	firstBeat := true
	for i, score := range localScore {
		bestIdx, best := 0, math.Inf(-1)
		for k, off := range offsets {
			candidate := txwt[k]
			if j := i + off; j >= 0 {
				candidate += cumScore[j]
			}
			if candidate > best {
				bestIdx, best = k, candidate
			}
		}
		cumScore[i] = score + best

		if firstBeat && score < scoreThresh {
			backlink[i] = -1
		} else {
			backlink[i] = i + offsets[bestIdx]
			firstBeat = false
		}
	}
	return backlink, cumScore
}

// lastBeat is the last local maximum of the cumulative score that reaches
// half the median local-maximum score.
func lastBeat(cumScore []float64) int {
	maxes := common.LocalMax(cumScore)
	var peaks []float64
	for i, isMax := range maxes {
		if isMax {
			peaks = append(peaks, cumScore[i])
		}
	}
	if len(peaks) == 0 {
		return len(cumScore) - 1
	}
	median := common.Median(peaks)

	last := len(cumScore) - 1
	for i := len(cumScore) - 1; i >= 0; i-- {
		if maxes[i] && 2*cumScore[i] > median {
			return i
		}
	}
	return last
}

// trimBeats drops leading and trailing beats whose smoothed onset score is
// below half the RMS of the smoothed beat scores.
func (bt *BeatTracker) trimBeats(localScore []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	scores := make([]float64, len(beats))
	for i, b := range beats {
		scores[i] = localScore[b]
	}
	smooth := common.ConvolveSame(scores, windowing.NewHann(5, true).Coefficients())

	threshold := 0.0
	if bt.Trim {
		threshold = 0.5 * common.RMS(smooth)
	}

	first, last := -1, -1
	for i, v := range smooth {
		if v > threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return []int{}
	}
	return slices.Clone(beats[first:last])
}
