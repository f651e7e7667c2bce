package spectral

import (
	"fmt"
	"math/cmplx"
	"runtime"
	"sync"

	"github.com/proxemy/muse/logging"
)

// STFT provides Short-Time Fourier Transform functionality
type STFT struct {
	fft    *FFT
	logger logging.Logger
}

// STFTResult holds the result of STFT analysis. Matrices are time x frequency.
type STFTResult struct {
	Magnitude      [][]float64    `json:"magnitude"`
	Complex        [][]complex128 `json:"-"`
	TimeFrames     int            `json:"time_frames"`
	FreqBins       int            `json:"freq_bins"`
	SampleRate     int            `json:"sample_rate"`
	WindowSize     int            `json:"window_size"`
	HopSize        int            `json:"hop_size"`
	Centered       bool           `json:"centered"`
	FreqResolution float64        `json:"freq_resolution"` // Hz/bin
	TimeResolution float64        `json:"time_resolution"` // seconds/frame
}

// Window interface for windowing functions
type Window interface {
	ApplyInPlace(signal []float64) error
}

// NewSTFT creates a new STFT calculator
func NewSTFT() *STFT {
	return &STFT{
		fft: NewFFT(),
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// ComputeCentered pads the signal with windowSize/2 zeros on both sides so
// that frame t is centred on sample t*hopSize, then computes the STFT.
func (s *STFT) ComputeCentered(signal []float64, windowSize, hopSize, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}

	pad := windowSize / 2
	padded := make([]float64, len(signal)+2*pad)
	copy(padded[pad:], signal)

	result, err := s.ComputeWithWindow(padded, windowSize, hopSize, sampleRate, window)
	if err != nil {
		return nil, err
	}
	result.Centered = true
	return result, nil
}

// ComputeWithWindow computes STFT with parallel processing and custom window type
func (s *STFT) ComputeWithWindow(signal []float64, windowSize int, hopSize int, sampleRate int, window Window) (*STFTResult, error) {
	if len(signal) == 0 {
		return nil, fmt.Errorf("empty signal")
	}
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	numFrames := (len(signal)-windowSize)/hopSize + 1
	if len(signal) < windowSize || numFrames <= 0 {
		return nil, fmt.Errorf("signal too short for given window size and hop size")
	}

	freqBins := windowSize/2 + 1

	magnitude := make([][]float64, numFrames)
	complexSpectrum := make([][]complex128, numFrames)
	for i := range numFrames {
		magnitude[i] = make([]float64, freqBins)
		complexSpectrum[i] = make([]complex128, freqBins)
	}

	numWorkers := s.getOptimalWorkerCount(numFrames)

	type frameJob struct {
		frameIdx int
		startIdx int
	}

	jobs := make(chan frameJob, numFrames)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		frameErr error
	)

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// each worker owns its frame buffer; frames are written to disjoint rows
			frameBuffer := make([]float64, windowSize)

			for job := range jobs {
				copy(frameBuffer, signal[job.startIdx:job.startIdx+windowSize])

				if window != nil {
					if err := window.ApplyInPlace(frameBuffer); err != nil {
						errOnce.Do(func() { frameErr = fmt.Errorf("frame %d: %w", job.frameIdx, err) })
						continue
					}
				}

				fftResult := s.fft.Compute(frameBuffer)
				for i := range freqBins {
					complexSpectrum[job.frameIdx][i] = fftResult[i]
					magnitude[job.frameIdx][i] = cmplx.Abs(fftResult[i])
				}
			}
		}()
	}

	for frameIdx := range numFrames {
		jobs <- frameJob{frameIdx: frameIdx, startIdx: frameIdx * hopSize}
	}
	close(jobs)

	wg.Wait()

	if frameErr != nil {
		return nil, fmt.Errorf("failed to window frames: %w", frameErr)
	}

	s.logger.Debug("STFT computed", logging.Fields{
		"frames":      numFrames,
		"window_size": windowSize,
		"hop_size":    hopSize,
		"workers":     numWorkers,
	})

	return &STFTResult{
		Magnitude:      magnitude,
		Complex:        complexSpectrum,
		TimeFrames:     numFrames,
		FreqBins:       freqBins,
		SampleRate:     sampleRate,
		WindowSize:     windowSize,
		HopSize:        hopSize,
		FreqResolution: float64(sampleRate) / float64(windowSize),
		TimeResolution: float64(hopSize) / float64(sampleRate),
	}, nil
}

// Inverse reconstructs a signal from half-spectrum frames by weighted
// overlap-add. window must hold the analysis window coefficients. When
// center is true the windowSize/2 padding added by ComputeCentered is
// trimmed. length > 0 truncates or zero-pads the output to that many samples.
func (s *STFT) Inverse(frames [][]complex128, windowSize, hopSize int, window []float64, center bool, length int) ([]float64, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to invert")
	}
	if len(window) != windowSize {
		return nil, fmt.Errorf("window length (%d) doesn't match window size (%d)", len(window), windowSize)
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive")
	}

	total := windowSize + (len(frames)-1)*hopSize
	out := make([]float64, total)
	norm := make([]float64, total)

	for i, frame := range frames {
		buf := s.fft.InverseHalfSpectrum(frame, windowSize)
		offset := i * hopSize
		for j := range windowSize {
			out[offset+j] += buf[j] * window[j]
			norm[offset+j] += window[j] * window[j]
		}
	}

	const tiny = 1e-10
	for i := range out {
		if norm[i] > tiny {
			out[i] /= norm[i]
		}
	}

	start := 0
	if center {
		start = windowSize / 2
	}
	if start > len(out) {
		start = len(out)
	}
	out = out[start:]

	if length > 0 {
		if len(out) >= length {
			out = out[:length]
		} else {
			out = append(out, make([]float64, length-len(out))...)
		}
	}

	return out, nil
}

// getOptimalWorkerCount determines the number of workers for a workload.
// Always at least one.
func (s *STFT) getOptimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	var workers int
	switch {
	case numFrames < 100:
		workers = min(numCPU/2, numFrames)
	case numFrames < 1000:
		workers = min(numCPU, 8)
	default:
		workers = numCPU
	}

	return max(workers, 1)
}
