package surfcloud

import (
	"github.com/chewxy/math32"
	"github.com/soypat/surfcloud/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// FramePoints extracts the valid samples of a position buffer in row-major
// scan order. Pixels that are empty or hold NaN/Inf components are skipped.
// If withNormals is set the returned cloud carries one normal per point,
// estimated from neighbouring samples. A sample without a valid neighbour
// along a row or along a column gets a zero normal.
//
// The buffer is assumed valid, see [PositionBuffer.Validate].
func FramePoints(buf *PositionBuffer, withNormals bool) PointCloud {
	pc := NewPointCloud(0, withNormals)
	if buf == nil {
		return pc
	}
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			p, ok := buf.sample(x, y)
			if !ok {
				continue
			}
			pc.Points = append(pc.Points, p)
			if withNormals {
				pc.Normals = append(pc.Normals, buf.normal(x, y, p))
			}
		}
	}
	return pc
}

// sample returns the sample at x,y as an r3.Vec and whether it is usable.
func (b *PositionBuffer) sample(x, y int) (r3.Vec, bool) {
	i := y*b.Width + x
	if !b.valid(i) {
		return r3.Vec{}, false
	}
	f := b.Data[3*i : 3*i+3]
	if bad3F32(f) {
		return r3.Vec{}, false
	}
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}, true
}

// normal estimates the surface normal at x,y from the difference to the
// next sample along the row and the column, falling back to the previous
// sample when the next one is missing. Differences always point towards
// increasing x and y so the winding is consistent across the image.
func (b *PositionBuffer) normal(x, y int, p r3.Vec) r3.Vec {
	dCol, okCol := b.diff(p, x, y, 1, 0)
	dRow, okRow := b.diff(p, x, y, 0, 1)
	if !okCol || !okRow {
		return r3.Vec{}
	}
	return d3.UnitOrZero(r3.Cross(dRow, dCol))
}

func (b *PositionBuffer) diff(p r3.Vec, x, y, dx, dy int) (r3.Vec, bool) {
	nx, ny := x+dx, y+dy
	if nx < b.Width && ny < b.Height {
		if q, ok := b.sample(nx, ny); ok {
			return r3.Sub(q, p), true
		}
	}
	px, py := x-dx, y-dy
	if px >= 0 && py >= 0 {
		if q, ok := b.sample(px, py); ok {
			return r3.Sub(p, q), true
		}
	}
	return r3.Vec{}, false
}

func bad3F32(f []float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}
