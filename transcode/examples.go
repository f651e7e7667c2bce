package transcode

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

// ExampleSampleRate is the native rate of every built-in example.
const ExampleSampleRate = 22050

// Example is a deterministic synthesized signal.
type Example struct {
	Name        string
	Description string
	Duration    time.Duration
	generate    func(n int) []float64
}

// Examples is the fixed registry of named example signals.
type Examples struct {
	byName map[string]Example
}

// DefaultExamples returns the built-in registry.
func DefaultExamples() *Examples {
	e := &Examples{byName: make(map[string]Example)}
	for _, ex := range []Example{
		{
			Name:        "metronome",
			Description: "1 kHz clicks at 120 BPM",
			Duration:    8 * time.Second,
			generate:    func(n int) []float64 { return clicks(n, 120, 1000) },
		},
		{
			Name:        "pulse",
			Description: "kick drum at 100 BPM over a sustained A3",
			Duration:    10 * time.Second,
			generate:    pulse,
		},
		{
			Name:        "triad",
			Description: "C major triad with harmonics and tremolo",
			Duration:    6 * time.Second,
			generate:    triad,
		},
		{
			Name:        "sweep",
			Description: "logarithmic sine sweep from 55 Hz to 7040 Hz",
			Duration:    6 * time.Second,
			generate:    sweep,
		},
		{
			Name:        "noise",
			Description: "seeded white noise",
			Duration:    4 * time.Second,
			generate:    noise,
		},
	} {
		e.byName[ex.Name] = ex
	}
	return e
}

// Has reports whether name is registered.
func (e *Examples) Has(name string) bool {
	_, ok := e.byName[name]
	return ok
}

// Names returns the registered names, sorted.
func (e *Examples) Names() []string {
	names := make([]string, 0, len(e.byName))
	for name := range e.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Get returns the example description.
func (e *Examples) Get(name string) (Example, bool) {
	ex, ok := e.byName[name]
	return ex, ok
}

// Render synthesizes the named example at ExampleSampleRate.
func (e *Examples) Render(name string) ([]float64, bool) {
	ex, ok := e.byName[name]
	if !ok {
		return nil, false
	}
	n := int(ex.Duration.Seconds() * ExampleSampleRate)
	return ex.generate(n), true
}

func clicks(n int, bpm, freq float64) []float64 {
	out := make([]float64, n)
	step := int(60.0 / bpm * ExampleSampleRate)
	burst := ExampleSampleRate / 50
	for start := step / 4; start < n; start += step {
		for i := 0; i < burst && start+i < n; i++ {
			env := math.Exp(-5 * float64(i) / float64(burst))
			out[start+i] += 0.8 * env * math.Sin(2*math.Pi*freq*float64(i)/ExampleSampleRate)
		}
	}
	return out
}

func pulse(n int) []float64 {
	out := make([]float64, n)
	step := int(60.0 / 100 * ExampleSampleRate)
	kick := ExampleSampleRate / 8
	for start := 0; start < n; start += step {
		phase := 0.0
		for i := 0; i < kick && start+i < n; i++ {
			t := float64(i) / ExampleSampleRate
			freq := 50 + 100*math.Exp(-30*t)
			phase += 2 * math.Pi * freq / ExampleSampleRate
			out[start+i] += 0.7 * math.Exp(-18*t) * math.Sin(phase)
		}
	}
	for i := range out {
		t := float64(i) / ExampleSampleRate
		out[i] += 0.2 * math.Sin(2*math.Pi*220*t)
	}
	return out
}

func triad(n int) []float64 {
	out := make([]float64, n)
	notes := []float64{261.63, 329.63, 392.00}
	for i := range out {
		t := float64(i) / ExampleSampleRate
		tremolo := 0.8 + 0.2*math.Sin(2*math.Pi*4*t)
		v := 0.0
		for _, f := range notes {
			for h := 1; h <= 3; h++ {
				v += math.Sin(2*math.Pi*f*float64(h)*t) / float64(h*h)
			}
		}
		out[i] = 0.2 * tremolo * v
	}
	return out
}

func sweep(n int) []float64 {
	out := make([]float64, n)
	f0, f1 := 55.0, 7040.0
	duration := float64(n) / ExampleSampleRate
	k := math.Log(f1 / f0)
	for i := range out {
		t := float64(i) / ExampleSampleRate
		phase := 2 * math.Pi * f0 * duration / k * (math.Exp(t/duration*k) - 1)
		out[i] = 0.5 * math.Sin(phase)
	}
	return out
}

func noise(n int) []float64 {
	rng := rand.New(rand.NewPCG(0x6d757365, 0x6e6f697365))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.3 * rng.NormFloat64()
	}
	return out
}
