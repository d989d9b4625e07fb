package surfcloud

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// PositionBuffer is a dense Width×Height grid of 3-component float samples
// holding surface positions instead of color. Data is row-major with the
// top row first and three float32 per pixel.
//
// Empty pixels hold exactly (0,0,0). When Valid is non-nil it is the
// authoritative per-pixel validity mask, so a true surface sample at the
// origin is preserved. When Valid is nil the (0,0,0) value alone marks a
// pixel as empty and origin samples are indistinguishable from empty ones.
type PositionBuffer struct {
	Width, Height int
	Data          []float32
	Valid         []bool
}

// NewPositionBuffer allocates an all-empty buffer with a validity mask.
func NewPositionBuffer(width, height int) *PositionBuffer {
	if width < 0 || height < 0 {
		panic("negative buffer dimension")
	}
	return &PositionBuffer{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height*3),
		Valid:  make([]bool, width*height),
	}
}

// Validate checks that the slice lengths match the buffer dimensions.
func (b *PositionBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil position buffer", ErrValidation)
	}
	n := b.Width * b.Height
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative buffer size %dx%d", ErrValidation, b.Width, b.Height)
	}
	if len(b.Data) != 3*n {
		return fmt.Errorf("%w: buffer %dx%d needs %d floats, got %d", ErrValidation, b.Width, b.Height, 3*n, len(b.Data))
	}
	if b.Valid != nil && len(b.Valid) != n {
		return fmt.Errorf("%w: validity mask length %d, want %d", ErrValidation, len(b.Valid), n)
	}
	return nil
}

// At returns the sample stored at column x and row y.
func (b *PositionBuffer) At(x, y int) [3]float32 {
	i := 3 * (y*b.Width + x)
	return [3]float32{b.Data[i], b.Data[i+1], b.Data[i+2]}
}

// Set stores a surface sample at column x and row y and marks it valid.
func (b *PositionBuffer) Set(x, y int, v r3.Vec) {
	i := y*b.Width + x
	b.Data[3*i] = float32(v.X)
	b.Data[3*i+1] = float32(v.Y)
	b.Data[3*i+2] = float32(v.Z)
	if b.Valid != nil {
		b.Valid[i] = true
	}
}

// IsValid reports whether the pixel at column x and row y holds a sample.
func (b *PositionBuffer) IsValid(x, y int) bool {
	return b.valid(y*b.Width + x)
}

func (b *PositionBuffer) valid(i int) bool {
	if b.Valid != nil {
		return b.Valid[i]
	}
	return b.Data[3*i] != 0 || b.Data[3*i+1] != 0 || b.Data[3*i+2] != 0
}

// Clear resets every pixel to the empty value.
func (b *PositionBuffer) Clear() {
	for i := range b.Data {
		b.Data[i] = 0
	}
	for i := range b.Valid {
		b.Valid[i] = false
	}
}

// Clone returns a deep copy of the buffer. The caller owns the copy.
func (b *PositionBuffer) Clone() *PositionBuffer {
	c := &PositionBuffer{
		Width:  b.Width,
		Height: b.Height,
		Data:   append([]float32(nil), b.Data...),
	}
	if b.Valid != nil {
		c.Valid = append([]bool(nil), b.Valid...)
	}
	return c
}

// NumValid counts the valid pixels in the buffer.
func (b *PositionBuffer) NumValid() (n int) {
	for i := 0; i < b.Width*b.Height; i++ {
		if b.valid(i) {
			n++
		}
	}
	return n
}
