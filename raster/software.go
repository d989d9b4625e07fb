package raster

import (
	"errors"
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/surfcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// Software is a single threaded CPU Device. Triangles are clipped against
// the near plane, rasterized with edge functions sampled at pixel centers
// and depth tested. Both faces of every triangle are drawn.
type Software struct {
	width, height int
	pos           []float32
	valid         []bool
	depth         []float64
	bound         bool
	poly          [2][]clipVertex
}

// NewSoftware returns an unallocated software device.
func NewSoftware() *Software { return &Software{} }

var _ Device = (*Software)(nil)

func (s *Software) Allocate(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("render target dimensions must be positive")
	}
	n := width * height
	if n/width != height || n > math.MaxInt32 {
		return errors.New("render target too large")
	}
	s.width, s.height = width, height
	s.pos = make([]float32, 3*n)
	s.valid = make([]bool, n)
	s.depth = make([]float64, n)
	s.Clear()
	return nil
}

func (s *Software) allocated() bool { return s.valid != nil }

func (s *Software) Bind() error {
	if !s.allocated() {
		return errors.New("render target not allocated")
	}
	s.bound = true
	return nil
}

func (s *Software) Unbind() { s.bound = false }

func (s *Software) Clear() {
	for i := range s.pos {
		s.pos[i] = 0
	}
	for i := range s.valid {
		s.valid[i] = false
		s.depth[i] = math.Inf(1)
	}
}

func (s *Software) Release() {
	*s = Software{}
}

func (s *Software) ReadPositions(dst *surfcloud.PositionBuffer) error {
	if !s.allocated() {
		return errors.New("render target not allocated")
	}
	if dst.Width != s.width || dst.Height != s.height {
		return errors.New("destination dimensions do not match render target")
	}
	if len(dst.Data) != len(s.pos) {
		dst.Data = make([]float32, len(s.pos))
	}
	if len(dst.Valid) != len(s.valid) {
		dst.Valid = make([]bool, len(s.valid))
	}
	copy(dst.Data, s.pos)
	copy(dst.Valid, s.valid)
	return nil
}

// clipVertex is a vertex in homogeneous clip space carrying the model
// space position it was projected from.
type clipVertex struct {
	clip  fauxgl.VectorW
	model r3.Vec
}

// screenVertex is a vertex after perspective division and viewport
// mapping.
type screenVertex struct {
	x, y, z float64 // Pixel coordinates and NDC depth.
	invW    float64
	model   r3.Vec
}

func (s *Software) DrawTriangles(tris []r3.Triangle, viewProj fauxgl.Matrix) error {
	if !s.bound {
		return errors.New("draw on unbound render target")
	}
	for _, t := range tris {
		in := s.poly[0][:0]
		for _, v := range t {
			in = append(in, clipVertex{
				clip:  viewProj.MulPositionW(fauxgl.V(v.X, v.Y, v.Z)),
				model: v,
			})
		}
		out := clipNear(s.poly[1][:0], in)
		s.poly[0], s.poly[1] = in, out
		if len(out) < 3 {
			continue
		}
		v0 := s.toScreen(out[0])
		for i := 1; i+1 < len(out); i++ {
			s.rasterize(v0, s.toScreen(out[i]), s.toScreen(out[i+1]))
		}
	}
	return nil
}

// clipNear appends to dst the polygon resulting from clipping src against
// the near plane z >= -w.
func clipNear(dst, src []clipVertex) []clipVertex {
	dist := func(v clipVertex) float64 { return v.clip.Z + v.clip.W }
	for i := range src {
		a := src[i]
		b := src[(i+1)%len(src)]
		da, db := dist(a), dist(b)
		if da >= 0 {
			dst = append(dst, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			dst = append(dst, clipVertex{
				clip: fauxgl.VectorW{
					X: a.clip.X + t*(b.clip.X-a.clip.X),
					Y: a.clip.Y + t*(b.clip.Y-a.clip.Y),
					Z: a.clip.Z + t*(b.clip.Z-a.clip.Z),
					W: a.clip.W + t*(b.clip.W-a.clip.W),
				},
				model: r3.Add(a.model, r3.Scale(t, r3.Sub(b.model, a.model))),
			})
		}
	}
	return dst
}

func (s *Software) toScreen(v clipVertex) screenVertex {
	invW := 1 / v.clip.W
	return screenVertex{
		x:     (v.clip.X*invW + 1) / 2 * float64(s.width),
		y:     (1 - v.clip.Y*invW) / 2 * float64(s.height),
		z:     v.clip.Z * invW,
		invW:  invW,
		model: v.model,
	}
}

// edgeEpsilon admits pixel centers lying on a shared edge that rounding
// would otherwise push out of both triangles.
const edgeEpsilon = 1e-9

func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

func (s *Software) rasterize(v0, v1, v2 screenVertex) {
	area := edge(v0, v1, v2.x, v2.y)
	if area == 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return
	}
	// Pixel x covers [x, x+1) and is sampled at x+0.5.
	x0 := clampInt(int(math.Ceil(math.Min(v0.x, math.Min(v1.x, v2.x))-0.5)), 0, s.width-1)
	x1 := clampInt(int(math.Floor(math.Max(v0.x, math.Max(v1.x, v2.x))-0.5)), 0, s.width-1)
	y0 := clampInt(int(math.Ceil(math.Min(v0.y, math.Min(v1.y, v2.y))-0.5)), 0, s.height-1)
	y1 := clampInt(int(math.Floor(math.Max(v0.y, math.Max(v1.y, v2.y))-0.5)), 0, s.height-1)
	inv := 1 / area
	for y := y0; y <= y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float64(x) + 0.5
			b0 := edge(v1, v2, px, py) * inv
			b1 := edge(v2, v0, px, py) * inv
			b2 := edge(v0, v1, px, py) * inv
			if b0 < -edgeEpsilon || b1 < -edgeEpsilon || b2 < -edgeEpsilon {
				continue
			}
			z := b0*v0.z + b1*v1.z + b2*v2.z
			if z < -1 || z > 1 {
				continue
			}
			i := y*s.width + x
			if z >= s.depth[i] {
				continue
			}
			// Perspective correct interpolation of model position.
			w0, w1, w2 := b0*v0.invW, b1*v1.invW, b2*v2.invW
			norm := 1 / (w0 + w1 + w2)
			p := r3.Scale(norm, r3.Add(r3.Add(r3.Scale(w0, v0.model), r3.Scale(w1, v1.model)), r3.Scale(w2, v2.model)))
			s.depth[i] = z
			s.valid[i] = true
			s.pos[3*i] = float32(p.X)
			s.pos[3*i+1] = float32(p.Y)
			s.pos[3*i+2] = float32(p.Z)
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
