// Command muse extracts audio-analysis features from music files and
// renders each one as a heatmap image.
//
// Usage:
//
//	muse -i <file-or-dir> [-i ...] [-o dir] [-j jobs] [--debug]
//	muse -e metronome [-e ...]
//	muse formats
//	muse examples
//	muse config sample <path>
package main
