// Package debugimg saves position frames as color coded PNG images for
// visual inspection.
package debugimg

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Writer saves frames to sequentially numbered files
// <Dir>/<Name>_<NNNNN>.png.
type Writer struct {
	Dir  string
	Name string
	// MaxWidth downscales wider frames preserving aspect ratio. Zero keeps
	// the full resolution.
	MaxWidth int

	index int
}

// Index returns the number the next written file will carry.
func (w *Writer) Index() int { return w.index }

// Path returns the path of the file with number index.
func (w *Writer) Path(index int) string {
	name := w.Name
	if name == "" {
		name = "frame"
	}
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%05d.png", name, index))
}

// Write saves buf and returns the path written. The file number advances
// only on success.
func (w *Writer) Write(buf *surfcloud.PositionBuffer) (string, error) {
	if err := buf.Validate(); err != nil {
		return "", err
	}
	if buf.Width == 0 || buf.Height == 0 {
		return "", errors.New("empty frame")
	}
	var img image.Image = Image(buf)
	if w.MaxWidth > 0 && buf.Width > w.MaxWidth {
		img = resize.Resize(uint(w.MaxWidth), 0, img, resize.NearestNeighbor)
	}
	path := w.Path(w.index)
	if err := fauxgl.SavePNG(path, img); err != nil {
		return "", err
	}
	w.index++
	return path, nil
}

// Image maps each valid position of buf to a color whose red, green and
// blue channels are the X, Y and Z coordinates normalized over the bounds
// of all valid positions. Empty pixels are transparent.
func Image(buf *surfcloud.PositionBuffer) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	bb := d3.EmptyBox()
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			if p := position(buf, x, y); buf.IsValid(x, y) && d3.Finite(p) {
				bb = bb.Include(p)
			}
		}
	}
	if bb.Empty() {
		return img
	}
	size := bb.Size()
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			p := position(buf, x, y)
			if !buf.IsValid(x, y) || !d3.Finite(p) {
				continue
			}
			rel := r3.Sub(p, bb.Min)
			img.SetNRGBA(x, y, color.NRGBA{
				R: channel(rel.X, size.X),
				G: channel(rel.Y, size.Y),
				B: channel(rel.Z, size.Z),
				A: 255,
			})
		}
	}
	return img
}

func channel(v, size float64) uint8 {
	if size == 0 {
		return 128
	}
	c := v / size * 255
	if c < 0 {
		c = 0
	} else if c > 255 {
		c = 255
	}
	return uint8(math.Round(c))
}

func position(buf *surfcloud.PositionBuffer, x, y int) r3.Vec {
	p := buf.At(x, y)
	return r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}
