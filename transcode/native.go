package transcode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/mewkiz/flac"
)

const streamChunk = 4096

// decodeBeep decodes wav, mp3 and ogg through beep and averages the two
// streamed channels. Mono files are streamed by beep as identical channels.
func decodeBeep(path string) (*AudioData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		stream, format, err = wav.Decode(file)
	case ".mp3":
		stream, format, err = mp3.Decode(file)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(file)
	default:
		err = fmt.Errorf("no native decoder for %s", filepath.Ext(path))
	}
	if err != nil {
		file.Close()
		return nil, err
	}
	defer stream.Close()

	pcm, err := drainStereo(stream)
	if err != nil {
		return nil, err
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Duration:   samplesDuration(len(pcm), int(format.SampleRate)),
		Codec:      strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Backend:    BackendBeep,
	}, nil
}

func drainStereo(s beep.Streamer) ([]float64, error) {
	buf := make([][2]float64, streamChunk)
	var out []float64
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeFLAC walks every frame and averages the subframes, scaling integer
// samples to [-1, 1).
func decodeFLAC(path string) (*AudioData, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	if channels == 0 {
		return nil, errors.New("flac stream has no channels")
	}
	scale := 1.0 / float64(int64(1)<<(stream.Info.BitsPerSample-1))

	pcm := make([]float64, 0, stream.Info.NSamples)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			sum := 0.0
			for _, sub := range frame.Subframes {
				sum += float64(sub.Samples[i])
			}
			pcm = append(pcm, sum*scale/float64(len(frame.Subframes)))
		}
	}

	rate := int(stream.Info.SampleRate)
	return &AudioData{
		PCM:        pcm,
		SampleRate: rate,
		Channels:   channels,
		Duration:   samplesDuration(len(pcm), rate),
		Codec:      "flac",
		Backend:    BackendFLAC,
	}, nil
}

// monoStreamer replays a mono slice on both channels.
type monoStreamer struct {
	pcm []float64
	pos int
}

func (m *monoStreamer) Stream(samples [][2]float64) (int, bool) {
	if m.pos >= len(m.pcm) {
		return 0, false
	}
	n := copy2(samples, m.pcm[m.pos:])
	m.pos += n
	return n, true
}

func (m *monoStreamer) Err() error { return nil }

func copy2(dst [][2]float64, src []float64) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i][0] = src[i]
		dst[i][1] = src[i]
	}
	return n
}

// Resample converts mono PCM between rates with beep's resampler. quality
// is clamped to [1, 64].
func Resample(pcm []float64, from, to, quality int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}
	if from == to || len(pcm) == 0 {
		return pcm, nil
	}
	quality = max(1, min(quality, 64))

	resampler := beep.Resample(quality, beep.SampleRate(from), beep.SampleRate(to), &monoStreamer{pcm: pcm})
	out, err := drainStereo(resampler)
	if err != nil {
		return nil, err
	}

	// the resampler may overshoot by a few samples at the tail
	want := int(int64(len(pcm)) * int64(to) / int64(from))
	if len(out) > want {
		out = out[:want]
	}
	return out, nil
}
