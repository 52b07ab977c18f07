package pixel

import (
	"errors"
	"fmt"
)

// ErrShape is returned when buffer dimensions do not match its data.
var ErrShape = errors.New("pixel buffer shape mismatch")

// Buffer is a decoded (native) pixel array.
//
// Samples are stored interleaved, frame by frame and row by row:
// index = ((frame*Rows+y)*Cols+x)*Samples + sample. Frames and Samples are
// explicit so a three-axis buffer is never ambiguous between
// frames x rows x cols and rows x cols x samples.
type Buffer struct {
	Frames        int
	Rows          int
	Cols          int
	Samples       int
	BitsAllocated int
	Data          []int
}

// NewBuffer allocates a zero-filled buffer.
func NewBuffer(frames, rows, cols, samples int) *Buffer {
	if frames < 1 {
		frames = 1
	}
	if samples < 1 {
		samples = 1
	}
	return &Buffer{
		Frames:        frames,
		Rows:          rows,
		Cols:          cols,
		Samples:       samples,
		BitsAllocated: 8,
		Data:          make([]int, frames*rows*cols*samples),
	}
}

// Validate checks that Data has exactly Frames*Rows*Cols*Samples entries.
func (b *Buffer) Validate() error {
	want := b.Frames * b.Rows * b.Cols * b.Samples
	if b.Frames < 1 || b.Samples < 1 || b.Rows < 0 || b.Cols < 0 || len(b.Data) != want {
		return fmt.Errorf("%w: %dx%dx%dx%d with %d samples", ErrShape, b.Frames, b.Rows, b.Cols, b.Samples, len(b.Data))
	}
	return nil
}

// Dims returns the rank of the array as a numpy-style consumer would see it:
// 2 for a single grey frame, 3 for multiple grey frames or a single colour
// frame, and 4 for multiple colour frames.
func (b *Buffer) Dims() int {
	dims := 2
	if b.Frames > 1 {
		dims++
	}
	if b.Samples > 1 {
		dims++
	}
	return dims
}

// FrameLen returns the number of values in one frame.
func (b *Buffer) FrameLen() int {
	return b.Rows * b.Cols * b.Samples
}

// Frame returns the slice of Data holding frame f.
func (b *Buffer) Frame(f int) []int {
	n := b.FrameLen()
	return b.Data[f*n : (f+1)*n]
}

func (b *Buffer) index(f, y, x, s int) int {
	return ((f*b.Rows+y)*b.Cols+x)*b.Samples + s
}

// At returns the sample value at the given position.
func (b *Buffer) At(f, y, x, s int) int {
	return b.Data[b.index(f, y, x, s)]
}

// Set stores a sample value at the given position.
func (b *Buffer) Set(f, y, x, s, v int) {
	b.Data[b.index(f, y, x, s)] = v
}

// Clone returns a deep copy of b.
func (b *Buffer) Clone() *Buffer {
	c := *b
	c.Data = append([]int(nil), b.Data...)
	return &c
}
