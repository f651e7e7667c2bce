package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"

	"github.com/proxemy/muse/features"
)

// RawMagic starts every raw sidecar.
const RawMagic = "MUSEF16"

// RawExtension is the sidecar file extension.
const RawExtension = ".f16"

var errBadRaw = errors.New("not a raw feature file")

// WriteRaw encodes t as the magic, uint32 rows and cols, then row-major
// little-endian IEEE half floats.
func WriteRaw(w io.Writer, t *features.Tensor) error {
	rows, cols := t.Dims()
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(RawMagic); err != nil {
		return err
	}
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(header[4:8], uint32(cols))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}

	var cell [2]byte
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			h := float16.Fromfloat32(float32(t.At(i, j)))
			binary.LittleEndian.PutUint16(cell[:], h.Bits())
			if _, err := bw.Write(cell[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadRaw decodes a sidecar written by WriteRaw.
func ReadRaw(r io.Reader) (*features.Tensor, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(RawMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != RawMagic {
		return nil, errBadRaw
	}
	var header [8]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rows := int(binary.LittleEndian.Uint32(header[0:4]))
	cols := int(binary.LittleEndian.Uint32(header[4:8]))
	if rows == 0 || cols == 0 {
		return features.FromFrames(nil), nil
	}

	data := make([]float64, rows*cols)
	var cell [2]byte
	for i := range data {
		if _, err := io.ReadFull(br, cell[:]); err != nil {
			return nil, fmt.Errorf("read cell %d: %w", i, err)
		}
		data[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(cell[:])).Float32())
	}
	return features.NewDense(mat.NewDense(rows, cols, data)), nil
}

// PersistRaw writes the sidecar atomically.
func PersistRaw(t *features.Tensor, path string) error {
	return writeAtomic(path, func(f *os.File) error {
		return WriteRaw(f, t)
	})
}
