//go:build gl

package raster

import (
	"log"
	"math"
	"os"
	"runtime"
	"testing"

	"github.com/fogleman/fauxgl"
	"github.com/go-gl/gl/all-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

func init() {
	runtime.LockOSThread() // For GL.
}

func TestMain(m *testing.M) {
	_, terminate, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	if err != nil {
		log.Fatal(err)
	}
	code := m.Run()
	terminate()
	os.Exit(code)
}

func TestGLvsSoftware(t *testing.T) {
	const w, h = 48, 32
	model := append(mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 3), mesh.Plane(r3.Vec{Z: 0.5}, r3.Vec{X: 1, Z: 2}, 1)...)
	gldev, err := NewGLDevice()
	if err != nil {
		t.Fatal(err)
	}
	var frames [2]*surfcloud.PositionBuffer
	for i, dev := range []Device{NewSoftware(), gldev} {
		cfg := DefaultConfig()
		cfg.Width, cfg.Height, cfg.Device = w, h, dev
		r, err := New(cfg)
		if err != nil {
			t.Fatal(err)
		}
		if err := r.LookAt(r3.Vec{X: 1, Y: 1, Z: 4}, r3.Vec{}, r3.Vec{Y: 1}); err != nil {
			t.Fatal(err)
		}
		r.SetModel(model)
		if err := r.Draw(); err != nil {
			t.Fatal(err)
		}
		frames[i], err = r.CurrentData()
		if err != nil {
			t.Fatal(err)
		}
		r.Close()
	}
	mismatch := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cpu, gpu := frames[0], frames[1]
			if cpu.IsValid(x, y) != gpu.IsValid(x, y) {
				mismatch++ // Silhouette pixels may disagree.
				continue
			}
			a, b := cpu.At(x, y), gpu.At(x, y)
			for k := range a {
				if math.Abs(float64(a[k]-b[k])) > 1e-3 {
					t.Fatalf("pixel %d,%d: cpu %v gpu %v", x, y, a, b)
				}
			}
		}
	}
	if mismatch > w {
		t.Errorf("%d pixels differ in coverage", mismatch)
	}
}

func TestGLDeviceTextureLifecycle(t *testing.T) {
	dev, err := NewGLDevice()
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Allocate(8, 8); err != nil {
		t.Fatal(err)
	}
	outID, camID := dev.outImg.id, dev.camImg.id
	if outID == 0 || camID == 0 {
		t.Fatal("render target images not created by Allocate")
	}
	plane := mesh.Plane(r3.Vec{}, r3.Vec{Z: 1}, 1)
	view := fauxgl.LookAt(fauxgl.V(0, 0, 3), fauxgl.V(0, 0, 0), fauxgl.V(0, 1, 0))
	viewProj := fauxgl.Perspective(45, 1, 0.1, 10).Mul(view)
	buf := surfcloud.NewPositionBuffer(8, 8)
	frame := func(tris []r3.Triangle) {
		t.Helper()
		if err := dev.Bind(); err != nil {
			t.Fatal(err)
		}
		dev.Clear()
		if err := dev.DrawTriangles(tris, viewProj); err != nil {
			t.Fatal(err)
		}
		if err := dev.ReadPositions(buf); err != nil {
			t.Fatal(err)
		}
		dev.Unbind()
	}
	frame(plane)
	triID := dev.triImg.id
	for i := 0; i < 3; i++ {
		frame(plane)
		if dev.outImg.id != outID || dev.camImg.id != camID || dev.triImg.id != triID {
			t.Fatalf("frame %d recreated images", i)
		}
	}
	frame(append(plane, mesh.Plane(r3.Vec{Z: 0.5}, r3.Vec{Z: 1}, 0.5)...))
	if dev.triImg.id != triID && gl.IsTexture(triID) {
		t.Error("resized triangle image leaked previous texture")
	}
	ids := []uint32{outID, camID, dev.triImg.id}
	dev.Release()
	for _, id := range ids {
		if gl.IsTexture(id) {
			t.Errorf("texture %d not deleted on release", id)
		}
	}
}
