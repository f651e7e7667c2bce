package transcode

import (
	"time"
)

// AudioData is a decoded mono signal.
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channel count before downmix
	Duration   time.Duration `json:"duration"`
	Codec      string        `json:"codec,omitempty"`
	Backend    string        `json:"backend"`
}

// Samples returns the number of mono samples.
func (a *AudioData) Samples() int {
	return len(a.PCM)
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}
