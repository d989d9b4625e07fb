// Package mesh loads triangle models for rasterization.
package mesh

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Extensions lists the model file extensions accepted by Load.
var Extensions = []string{".stl", ".obj", ".ply", ".3ds"}

// Load reads the triangles of the model file at path. The format is chosen
// by file extension. Binary STL files are decoded natively while ASCII STL
// and the remaining formats are decoded by fauxgl.
func Load(path string) ([]r3.Triangle, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		m   *fauxgl.Mesh
		err error
	)
	switch ext {
	case ".stl":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
		}
		if isBinarySTL(b) {
			tris, err := ReadSTL(bytes.NewReader(b))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", surfcloud.ErrFormat, path, err)
			}
			return nonEmpty(path, tris)
		}
		m, err = fauxgl.LoadSTL(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", surfcloud.ErrFormat, path, err)
		}
		return nonEmpty(path, fromFauxgl(m))
	case ".obj":
		m, err = fauxgl.LoadOBJ(path)
	case ".ply":
		m, err = fauxgl.LoadPLY(path)
	case ".3ds":
		m, err = fauxgl.Load3DS(path)
	default:
		return nil, fmt.Errorf("%w: unsupported model extension %q", surfcloud.ErrFormat, ext)
	}
	if err != nil {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", surfcloud.ErrResource, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", surfcloud.ErrFormat, path, err)
	}
	return nonEmpty(path, fromFauxgl(m))
}

func nonEmpty(path string, tris []r3.Triangle) ([]r3.Triangle, error) {
	if len(tris) == 0 {
		return nil, fmt.Errorf("%w: %s contains no triangles", surfcloud.ErrFormat, path)
	}
	return tris, nil
}

func fromFauxgl(m *fauxgl.Mesh) []r3.Triangle {
	tris := make([]r3.Triangle, 0, len(m.Triangles))
	for _, t := range m.Triangles {
		tri := r3.Triangle{vec(t.V1.Position), vec(t.V2.Position), vec(t.V3.Position)}
		if Degenerate(tri, 0) {
			continue
		}
		tris = append(tris, tri)
	}
	return tris
}

func vec(v fauxgl.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// Normal returns the unit normal of t following the right hand rule, or
// the zero vector for a degenerate triangle.
func Normal(t r3.Triangle) r3.Vec {
	return d3.UnitOrZero(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
}

// Degenerate reports whether twice the area of t is not above tol.
func Degenerate(t r3.Triangle, tol float64) bool {
	return r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0]))) <= tol
}

// Bounds returns the axis aligned box enclosing all vertices of model.
// The box is empty when model is.
func Bounds(model []r3.Triangle) r3.Box {
	bb := d3.EmptyBox()
	for _, t := range model {
		bb = bb.Include(t[0]).Include(t[1]).Include(t[2])
	}
	return r3.Box(bb)
}

// Plane returns a square of side size centered at center, lying in the
// plane orthogonal to normal. Its two triangles wind counter-clockwise
// when seen from the side normal points to.
func Plane(center, normal r3.Vec, size float64) []r3.Triangle {
	n := d3.UnitOrZero(normal)
	if n == (r3.Vec{}) {
		n = r3.Vec{Z: 1}
	}
	// Any vector not parallel to n spans the plane together with n.
	ref := r3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	ux := r3.Unit(r3.Cross(ref, n))
	u := r3.Scale(size/2, ux)
	v := r3.Scale(size/2, r3.Cross(n, ux))
	p00 := r3.Sub(r3.Sub(center, u), v)
	p10 := r3.Sub(r3.Add(center, u), v)
	p11 := r3.Add(r3.Add(center, u), v)
	p01 := r3.Add(r3.Sub(center, u), v)
	return []r3.Triangle{
		{p00, p10, p11},
		{p00, p11, p01},
	}
}
