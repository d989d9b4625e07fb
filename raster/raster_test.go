package raster_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/mesh"
	"github.com/soypat/surfcloud/raster"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	size    = 64
	eyeDist = 5.0
)

// newTopView returns a rasterizer looking down -Z from (0,0,eyeDist).
func newTopView(t *testing.T) *raster.Rasterizer {
	t.Helper()
	cfg := raster.DefaultConfig()
	cfg.Width, cfg.Height = size, size
	cfg.Near = 0.1
	r, err := raster.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	err = r.LookAt(r3.Vec{Z: eyeDist}, r3.Vec{}, r3.Vec{Y: 1})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func mustData(t *testing.T, r *raster.Rasterizer) *surfcloud.PositionBuffer {
	t.Helper()
	buf, err := r.CurrentData()
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Validate(); err != nil {
		t.Fatal(err)
	}
	return buf
}

func at(buf *surfcloud.PositionBuffer, x, y int) r3.Vec {
	p := buf.At(x, y)
	return r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}

func TestBeforeDraw(t *testing.T) {
	r := newTopView(t)
	defer r.Close()
	if r.State() != raster.Ready {
		t.Fatalf("got state %v, want ready", r.State())
	}
	buf := mustData(t, r)
	if buf.Width != size || buf.Height != size {
		t.Fatalf("got %dx%d buffer", buf.Width, buf.Height)
	}
	if n := buf.NumValid(); n != 0 {
		t.Errorf("cleared target has %d valid pixels", n)
	}
}

func TestDrawPlane(t *testing.T) {
	r := newTopView(t)
	defer r.Close()
	r.SetModel(mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 4))
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if r.State() != raster.Rendered {
		t.Fatalf("got state %v, want rendered", r.State())
	}
	buf := mustData(t, r)
	n := buf.NumValid()
	if n == 0 || n == size*size {
		t.Fatalf("plane covers %d of %d pixels, expected partial coverage", n, size*size)
	}
	halfView := eyeDist * math.Tan(22.5*math.Pi/180)
	pixel := 2 * halfView / size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			// Expected world position under the pixel center.
			want := r3.Vec{
				X: (float64(x) + 0.5 - size/2) * pixel,
				Y: (size/2 - float64(y) - 0.5) * pixel,
			}
			inside := math.Abs(want.X) < 2-pixel && math.Abs(want.Y) < 2-pixel
			outside := math.Abs(want.X) > 2+pixel || math.Abs(want.Y) > 2+pixel
			valid := buf.IsValid(x, y)
			switch {
			case inside && !valid:
				t.Fatalf("pixel %d,%d over plane is empty", x, y)
			case outside && valid:
				t.Fatalf("pixel %d,%d off plane is valid", x, y)
			case !valid:
				if at(buf, x, y) != (r3.Vec{}) {
					t.Fatalf("empty pixel %d,%d not zeroed", x, y)
				}
				continue
			}
			got := at(buf, x, y)
			if math.Abs(got.X-want.X) > 1e-4 || math.Abs(got.Y-want.Y) > 1e-4 || math.Abs(got.Z) > 1e-5 {
				t.Fatalf("pixel %d,%d: got position %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestDrawIdempotent(t *testing.T) {
	r := newTopView(t)
	defer r.Close()
	r.SetModel(mesh.Plane(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 3}, 3))
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	first := mustData(t, r)
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	second := mustData(t, r)
	for i := range first.Data {
		if first.Data[i] != second.Data[i] {
			t.Fatalf("frames differ at data index %d", i)
		}
	}
	for i := range first.Valid {
		if first.Valid[i] != second.Valid[i] {
			t.Fatalf("frames differ at pixel %d", i)
		}
	}
}

func TestDepthTest(t *testing.T) {
	near := mesh.Plane(r3.Vec{Z: 1}, r3.Vec{Z: 1}, 1)
	far := mesh.Plane(r3.Vec{}, r3.Vec{Z: -1}, 4)
	for _, nearFirst := range []bool{true, false} {
		r := newTopView(t)
		if nearFirst {
			r.SetModel(near)
			r.AddHelper(far)
		} else {
			r.SetModel(far)
			r.AddHelper(near)
		}
		if err := r.Draw(); err != nil {
			t.Fatal(err)
		}
		buf := mustData(t, r)
		if got := at(buf, size/2, size/2); math.Abs(got.Z-1) > 1e-5 {
			t.Errorf("near first %v: center pixel at z=%g, want 1", nearFirst, got.Z)
		}
		if got := at(buf, 4, size/2); !buf.IsValid(4, size/2) || math.Abs(got.Z) > 1e-5 {
			t.Errorf("near first %v: border pixel at %v, want far plane", nearFirst, got)
		}
		r.ClearHelpers()
		if err := r.Draw(); err != nil {
			t.Fatal(err)
		}
		buf = mustData(t, r)
		if nearFirst == buf.IsValid(4, size/2) {
			t.Errorf("near first %v: helper still drawn after ClearHelpers", nearFirst)
		}
		r.Close()
	}
}

func TestNearPlaneClipping(t *testing.T) {
	r := newTopView(t)
	defer r.Close()
	// A wall below the camera extending far behind it.
	r.SetModel(mesh.Plane(r3.Vec{Y: -1}, r3.Vec{Y: 1}, 100))
	r.AddHelper(mesh.Plane(r3.Vec{Z: eyeDist + 1}, r3.Vec{Z: 1}, 10))
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	buf := mustData(t, r)
	if buf.NumValid() == 0 {
		t.Fatal("wall not drawn")
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !buf.IsValid(x, y) {
				continue
			}
			p := at(buf, x, y)
			if p.Z > eyeDist-0.1+1e-4 {
				t.Fatalf("pixel %d,%d shows geometry at z=%g, behind near plane", x, y, p.Z)
			}
			if y < size/2 {
				t.Fatalf("wall below camera visible in upper half at row %d", y)
			}
		}
	}
}

func TestFrameNormalsFaceCamera(t *testing.T) {
	r := newTopView(t)
	defer r.Close()
	r.SetModel(mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 4))
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	pc := surfcloud.FramePoints(mustData(t, r), true)
	if !pc.HasNormals() || pc.Len() == 0 {
		t.Fatal("expected points with normals")
	}
	for i, n := range pc.Normals {
		if n == (r3.Vec{}) {
			continue
		}
		if n.Z < 0.999 {
			t.Fatalf("point %d normal %v does not face the camera", i, n)
		}
	}
}

func TestClose(t *testing.T) {
	r := newTopView(t)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); !errors.Is(err, raster.ErrNotReady) {
		t.Errorf("draw after close: got %v, want ErrNotReady", err)
	}
	if _, err := r.CurrentData(); !errors.Is(err, raster.ErrNotReady) {
		t.Errorf("data after close: got %v, want ErrNotReady", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestLoadModelFailureKeepsModel(t *testing.T) {
	r := newTopView(t)
	defer r.Close()
	r.SetModel(mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 4))
	err := r.LoadModel(filepath.Join(t.TempDir(), "missing.stl"))
	if !errors.Is(err, surfcloud.ErrResource) {
		t.Errorf("got %v, want resource error", err)
	}
	if len(r.Model()) != 2 {
		t.Fatalf("model replaced after failed load: %d triangles", len(r.Model()))
	}
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plane.stl")
	fp, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = mesh.WriteSTL(fp, mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 4))
	fp.Close()
	if err != nil {
		t.Fatal(err)
	}
	r := newTopView(t)
	defer r.Close()
	if err := r.LoadModel(path); err != nil {
		t.Fatal(err)
	}
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	if !mustData(t, r).IsValid(size/2, size/2) {
		t.Error("loaded model not drawn")
	}
}

func TestDebugWriter(t *testing.T) {
	dir := t.TempDir()
	r := newTopView(t)
	defer r.Close()
	r.SetModel(mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 4))
	if err := r.Draw(); err != nil {
		t.Fatal(err)
	}
	mustData(t, r) // writer disabled by default
	r.EnableWriter(true)
	r.SetOutputPath(dir, "cap")
	mustData(t, r)
	mustData(t, r)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name() != "cap_00000.png" || entries[1].Name() != "cap_00001.png" {
		t.Fatalf("unexpected debug files %v", entries)
	}

	r.SetOutputPath(filepath.Join(dir, "missing"), "cap")
	if _, err := r.CurrentData(); err != nil {
		t.Errorf("failed debug write must not fail CurrentData: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	base := raster.DefaultConfig()
	for _, mod := range []func(*raster.Config){
		func(c *raster.Config) { c.Width = 0 },
		func(c *raster.Config) { c.Height = -1 },
		func(c *raster.Config) { c.FovY = 0 },
		func(c *raster.Config) { c.FovY = 180 },
		func(c *raster.Config) { c.Near = 0 },
		func(c *raster.Config) { c.Far = c.Near },
		func(c *raster.Config) { c.Far = math.Inf(1) },
	} {
		cfg := base
		mod(&cfg)
		if _, err := raster.New(cfg); !errors.Is(err, surfcloud.ErrValidation) {
			t.Errorf("config %+v: got %v, want validation error", cfg, err)
		}
	}
	r := newTopView(t)
	defer r.Close()
	if err := r.SetProjection(60, 1, 0.5); !errors.Is(err, surfcloud.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
	if err := r.LookAt(r3.Vec{Z: 1}, r3.Vec{Z: 1}, r3.Vec{Y: 1}); !errors.Is(err, surfcloud.ErrValidation) {
		t.Errorf("got %v, want validation error for eye at center", err)
	}
}
