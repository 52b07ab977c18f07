package pixel

import (
	"errors"
	"fmt"
)

// ErrInvalidRegion is returned for regions with negative or inverted bounds.
var ErrInvalidRegion = errors.New("invalid region")

// Region is a half-open rectangle [Y0,Y1) x [X0,X1) in pixel coordinates.
// It applies to every frame of a buffer.
type Region struct {
	Y0 int `yaml:"y0"`
	Y1 int `yaml:"y1"`
	X0 int `yaml:"x0"`
	X1 int `yaml:"x1"`
}

// Validate rejects negative coordinates and inverted ranges.
func (r Region) Validate() error {
	if r.Y0 < 0 || r.Y1 < 0 || r.X0 < 0 || r.X1 < 0 {
		return fmt.Errorf("%w: negative coordinate in %s", ErrInvalidRegion, r)
	}
	if r.Y0 > r.Y1 || r.X0 > r.X1 {
		return fmt.Errorf("%w: inverted range in %s", ErrInvalidRegion, r)
	}
	return nil
}

// String formats the region as "y0:y1,x0:x1".
func (r Region) String() string {
	return fmt.Sprintf("%d:%d,%d:%d", r.Y0, r.Y1, r.X0, r.X1)
}

// clamp limits the region to a rows x cols image. Bounds past the edge are
// cut, matching slice semantics.
func (r Region) clamp(rows, cols int) Region {
	c := r
	c.Y0 = min(max(c.Y0, 0), rows)
	c.Y1 = min(max(c.Y1, 0), rows)
	c.X0 = min(max(c.X0, 0), cols)
	c.X1 = min(max(c.X1, 0), cols)
	return c
}

// Zero sets every sample inside r to zero in every frame. Pixels outside r
// are not touched. Applying the same region twice leaves the buffer as
// after the first application.
func (b *Buffer) Zero(r Region) {
	c := r.clamp(b.Rows, b.Cols)
	if c.Y0 >= c.Y1 || c.X0 >= c.X1 {
		return
	}
	for f := 0; f < b.Frames; f++ {
		for y := c.Y0; y < c.Y1; y++ {
			start := b.index(f, y, c.X0, 0)
			end := b.index(f, y, c.X1-1, b.Samples-1) + 1
			clear(b.Data[start:end])
		}
	}
}

// ZeroAll applies Zero for each region in order.
func (b *Buffer) ZeroAll(regions []Region) {
	for _, r := range regions {
		b.Zero(r)
	}
}
