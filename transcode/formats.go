package transcode

import (
	"path/filepath"
	"slices"
	"strings"
)

// Decoding backends.
const (
	BackendBeep   = "beep"
	BackendFLAC   = "flac"
	BackendFFmpeg = "ffmpeg"
)

// Format is an audio container the loader can read.
type Format struct {
	Name             string
	Backend          string
	Legacy           bool // supported by convention rather than an installed codec
	defaultExtension string
	extensions       map[string]struct{}
}

var (
	// WAV represents Waveform Audio file format.
	WAV = Format{
		Name:             "wav",
		Backend:          BackendBeep,
		defaultExtension: ".wav",
		extensions:       map[string]struct{}{".wav": {}, ".wave": {}},
	}

	// FLAC represents Free Lossless Audio Codec file format.
	FLAC = Format{
		Name:             "flac",
		Backend:          BackendFLAC,
		defaultExtension: ".flac",
		extensions:       map[string]struct{}{".flac": {}},
	}

	// OGG represents Ogg Vorbis.
	OGG = Format{
		Name:             "ogg",
		Backend:          BackendBeep,
		defaultExtension: ".ogg",
		extensions:       map[string]struct{}{".ogg": {}, ".oga": {}},
	}

	// MP3 represents MPEG-1 or MPEG-2 Audio Layer III file format. It is not
	// one of the installed codecs and is joined to the set by convention.
	MP3 = Format{
		Name:             "mp3",
		Backend:          BackendBeep,
		Legacy:           true,
		defaultExtension: ".mp3",
		extensions:       map[string]struct{}{".mp3": {}},
	}
)

// FFmpegExtensions are handed to ffmpeg when it is enabled.
var FFmpegExtensions = []string{".aac", ".aif", ".aiff", ".m4a", ".opus", ".wma", ".webm"}

// MatchExtension checks if ext matches one of the format's extensions.
// Case is ignored.
func (f Format) MatchExtension(ext string) bool {
	_, ok := f.extensions[strings.ToLower(ext)]
	return ok
}

// DefaultExtension of the format.
func (f Format) DefaultExtension() string {
	return f.defaultExtension
}

// Extensions returns the format's extensions, sorted.
func (f Format) Extensions() []string {
	exts := make([]string, 0, len(f.extensions))
	for k := range f.extensions {
		exts = append(exts, k)
	}
	slices.Sort(exts)
	return exts
}

// Formats is the queryable set of formats a Loader accepts.
type Formats struct {
	formats []Format
}

// NewFormats returns the installed codecs plus the legacy format. When
// withFFmpeg is set, ffmpeg-only extensions are added.
func NewFormats(withFFmpeg bool) *Formats {
	f := &Formats{formats: []Format{WAV, FLAC, OGG, MP3}}
	if withFFmpeg {
		exts := make(map[string]struct{}, len(FFmpegExtensions))
		for _, ext := range FFmpegExtensions {
			exts[ext] = struct{}{}
		}
		f.formats = append(f.formats, Format{
			Name:             "ffmpeg",
			Backend:          BackendFFmpeg,
			defaultExtension: FFmpegExtensions[0],
			extensions:       exts,
		})
	}
	return f
}

// ByPath determines the format from the path's extension. The second
// return value is false for unsupported extensions.
func (f *Formats) ByPath(path string) (Format, bool) {
	ext := filepath.Ext(path)
	for _, format := range f.formats {
		if format.MatchExtension(ext) {
			return format, true
		}
	}
	return Format{}, false
}

// Supports reports whether the path's extension is readable.
func (f *Formats) Supports(path string) bool {
	_, ok := f.ByPath(path)
	return ok
}

// All returns the registered formats.
func (f *Formats) All() []Format {
	return slices.Clone(f.formats)
}

// Extensions returns every supported extension, sorted.
func (f *Formats) Extensions() []string {
	var exts []string
	for _, format := range f.formats {
		exts = append(exts, format.Extensions()...)
	}
	slices.Sort(exts)
	return slices.Compact(exts)
}
