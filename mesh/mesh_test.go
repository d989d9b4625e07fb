package mesh

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func tetrahedron() []r3.Triangle {
	o := r3.Vec{}
	x := r3.Vec{X: 1}
	y := r3.Vec{Y: 1}
	z := r3.Vec{Z: 1}
	return []r3.Triangle{
		{o, y, x},
		{o, x, z},
		{o, z, y},
		{x, y, z},
	}
}

func TestSTLWriteRead(t *testing.T) {
	model := append(tetrahedron(), Plane(r3.Vec{Z: -1}, r3.Vec{Z: 1}, 4)...)
	var b bytes.Buffer
	n, err := WriteSTL(&b, model)
	if err != nil {
		t.Fatal(err)
	}
	if n != b.Len() || n != stlHeaderSize+stlTriangleSize*len(model) {
		t.Fatalf("wrote %d bytes, buffer holds %d", n, b.Len())
	}
	if !isBinarySTL(b.Bytes()) {
		t.Fatal("written STL not detected as binary")
	}
	got, err := ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(model) {
		t.Fatalf("read %d triangles, want %d", len(got), len(model))
	}
	for i := range got {
		for j := range got[i] {
			if !d3.EqualWithin(got[i][j], model[i][j], 1e-6) {
				t.Errorf("triangle %d vertex %d: got %v, want %v", i, j, got[i][j], model[i][j])
			}
		}
	}
}

func TestSTLEmpty(t *testing.T) {
	var b bytes.Buffer
	if _, err := WriteSTL(&b, nil); err == nil {
		t.Error("expected error writing empty model")
	}
	if _, err := ReadSTL(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Error("expected error reading short header")
	}
	if _, err := ReadSTL(bytes.NewReader(make([]byte, stlHeaderSize))); err == nil {
		t.Error("expected error reading zero triangle count")
	}
}

func TestSTLTruncated(t *testing.T) {
	var b bytes.Buffer
	if _, err := WriteSTL(&b, tetrahedron()); err != nil {
		t.Fatal(err)
	}
	_, err := ReadSTL(bytes.NewReader(b.Bytes()[:b.Len()-10]))
	if err == nil {
		t.Fatal("expected error on truncated STL")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	stlPath := filepath.Join(dir, "tetra.stl")
	fp, err := os.Create(stlPath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = WriteSTL(fp, tetrahedron())
	fp.Close()
	if err != nil {
		t.Fatal(err)
	}
	tris, err := Load(stlPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 4 {
		t.Errorf("got %d triangles from STL, want 4", len(tris))
	}

	objPath := filepath.Join(dir, "quad.obj")
	const obj = "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nf 1 2 3\nf 1 3 4\n"
	if err := os.WriteFile(objPath, []byte(obj), 0o644); err != nil {
		t.Fatal(err)
	}
	tris, err = Load(objPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 2 {
		t.Fatalf("got %d triangles from OBJ, want 2", len(tris))
	}
	bb := Bounds(tris)
	if bb.Min != (r3.Vec{}) || bb.Max != (r3.Vec{X: 1, Y: 1}) {
		t.Errorf("unexpected OBJ bounds %+v", bb)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "model.step"))
	if !errors.Is(err, surfcloud.ErrFormat) {
		t.Errorf("unknown extension: got %v, want format error", err)
	}
	_, err = Load(filepath.Join(dir, "missing.stl"))
	if !errors.Is(err, surfcloud.ErrResource) {
		t.Errorf("missing file: got %v, want resource error", err)
	}
}

func TestPlane(t *testing.T) {
	for _, n := range []r3.Vec{{Z: 1}, {X: -1}, {X: 1, Y: 1, Z: 1}, {}} {
		center := r3.Vec{X: 1, Y: 2, Z: 3}
		p := Plane(center, n, 2)
		want := d3.UnitOrZero(n)
		if want == (r3.Vec{}) {
			want = r3.Vec{Z: 1}
		}
		for i, tri := range p {
			if got := Normal(tri); !d3.EqualWithin(got, want, 1e-12) {
				t.Errorf("normal %v triangle %d: got normal %v", n, i, got)
			}
		}
		area := 0.0
		for _, tri := range p {
			area += r3.Norm(r3.Cross(r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0]))) / 2
		}
		if math.Abs(area-4) > 1e-12 {
			t.Errorf("normal %v: got area %g, want 4", n, area)
		}
		c := r3.Scale(0.5, r3.Add(p[0][0], p[0][2]))
		if !d3.EqualWithin(c, center, 1e-12) {
			t.Errorf("normal %v: got center %v", n, c)
		}
	}
}

func TestBoundsEmpty(t *testing.T) {
	bb := d3.Box(Bounds(nil))
	if !bb.Empty() {
		t.Errorf("bounds of empty model should be empty, got %+v", bb)
	}
}
