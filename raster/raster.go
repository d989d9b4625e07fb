// Package raster renders model space surface positions of triangle models
// into an off-screen target from a virtual camera.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/golang/glog"
	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/internal/d3"
	"github.com/soypat/surfcloud/mesh"
	"github.com/soypat/surfcloud/raster/debugimg"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNotReady is returned when rendering is attempted without an
// allocated render target.
var ErrNotReady = errors.New("raster: render target not allocated")

// State is the lifecycle stage of a Rasterizer.
type State int

const (
	Uninitialized State = iota
	Ready
	Rendered
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Rendered:
		return "rendered"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the render target and projection parameters.
type Config struct {
	// Render target resolution in pixels.
	Width, Height int
	// Vertical field of view in degrees.
	FovY float64
	// Near and far clipping plane distances.
	Near, Far float64
	// Device draws the frames. If nil a software device is used.
	Device Device
}

// DefaultConfig returns a 640x480 configuration with a 45 degree field of
// view rendered in software.
func DefaultConfig() Config {
	return Config{
		Width:  640,
		Height: 480,
		FovY:   45,
		Near:   0.01,
		Far:    100,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: render target %dx%d must have positive dimensions", surfcloud.ErrValidation, c.Width, c.Height)
	}
	return validateProjection(c.FovY, c.Near, c.Far)
}

func validateProjection(fovy, near, far float64) error {
	switch {
	case math.IsNaN(fovy) || fovy <= 0 || fovy >= 180:
		return fmt.Errorf("%w: field of view %g must be in (0, 180) degrees", surfcloud.ErrValidation, fovy)
	case math.IsNaN(near) || near <= 0:
		return fmt.Errorf("%w: near plane %g must be positive", surfcloud.ErrValidation, near)
	case math.IsNaN(far) || math.IsInf(far, 0) || far <= near:
		return fmt.Errorf("%w: far plane %g must be finite and beyond near plane %g", surfcloud.ErrValidation, far, near)
	}
	return nil
}

// Rasterizer renders a model and optional helper geometry into position
// frames. It is not safe for concurrent use.
type Rasterizer struct {
	cfg     Config
	dev     Device
	state   State
	model   []r3.Triangle
	helpers []r3.Triangle
	view    fauxgl.Matrix
	proj    fauxgl.Matrix
	verbose bool

	writeDebug bool
	debug      debugimg.Writer
}

// New allocates the render target described by cfg. The camera starts at
// the identity view, looking down -Z from the origin.
func New(cfg Config) (*Rasterizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev := cfg.Device
	if dev == nil {
		dev = NewSoftware()
		cfg.Device = dev
	}
	if err := dev.Allocate(cfg.Width, cfg.Height); err != nil {
		glog.Errorf("raster: allocating %dx%d render target: %v", cfg.Width, cfg.Height, err)
		return nil, fmt.Errorf("%w: allocating render target: %v", surfcloud.ErrResource, err)
	}
	r := &Rasterizer{
		cfg:   cfg,
		dev:   dev,
		state: Ready,
		view:  fauxgl.Identity(),
		debug: debugimg.Writer{Dir: ".", Name: "frame"},
	}
	r.proj = r.projection(cfg.FovY, cfg.Near, cfg.Far)
	return r, nil
}

func (r *Rasterizer) projection(fovy, near, far float64) fauxgl.Matrix {
	aspect := float64(r.cfg.Width) / float64(r.cfg.Height)
	return fauxgl.Perspective(fovy, aspect, near, far)
}

// State returns the lifecycle stage of r.
func (r *Rasterizer) State() State { return r.state }

// Size returns the render target dimensions.
func (r *Rasterizer) Size() (width, height int) { return r.cfg.Width, r.cfg.Height }

// SetVerbose enables diagnostic logging.
func (r *Rasterizer) SetVerbose(verbose bool) { r.verbose = verbose }

// LoadModel replaces the model with the one stored at path. On failure the
// previous model is kept.
func (r *Rasterizer) LoadModel(path string) error {
	tris, err := mesh.Load(path)
	if err != nil {
		glog.Errorf("raster: loading model %q: %v", path, err)
		return err
	}
	r.model = tris
	r.logf("loaded %d triangles from %s, bounds %+v", len(tris), path, mesh.Bounds(tris))
	return nil
}

// SetModel replaces the model geometry with a copy of tris.
func (r *Rasterizer) SetModel(tris []r3.Triangle) {
	r.model = append(r.model[:0:0], tris...)
}

// Model returns the current model geometry. It must not be modified.
func (r *Rasterizer) Model() []r3.Triangle { return r.model }

// AddHelper adds geometry drawn along with the model, such as a ground
// plane.
func (r *Rasterizer) AddHelper(tris []r3.Triangle) {
	r.helpers = append(r.helpers, tris...)
}

// ClearHelpers removes all helper geometry.
func (r *Rasterizer) ClearHelpers() { r.helpers = r.helpers[:0] }

// SetViewMatrix sets the world to camera transform.
func (r *Rasterizer) SetViewMatrix(m fauxgl.Matrix) { r.view = m }

// ViewMatrix returns the world to camera transform.
func (r *Rasterizer) ViewMatrix() fauxgl.Matrix { return r.view }

// ProjectionMatrix returns the camera to clip space transform.
func (r *Rasterizer) ProjectionMatrix() fauxgl.Matrix { return r.proj }

// LookAt places the camera at eye looking towards center.
func (r *Rasterizer) LookAt(eye, center, up r3.Vec) error {
	if !d3.Finite(eye) || !d3.Finite(center) || !d3.Finite(up) {
		return fmt.Errorf("%w: non-finite camera vectors", surfcloud.ErrValidation)
	}
	dir := r3.Sub(center, eye)
	if r3.Norm(dir) == 0 || r3.Norm(r3.Cross(dir, up)) == 0 {
		return fmt.Errorf("%w: degenerate camera: eye %v center %v up %v", surfcloud.ErrValidation, eye, center, up)
	}
	r.view = fauxgl.LookAt(fv(eye), fv(center), fv(up))
	return nil
}

// SetProjection sets a perspective projection with vertical field of view
// fovy in degrees and the aspect ratio of the render target.
func (r *Rasterizer) SetProjection(fovy, near, far float64) error {
	if err := validateProjection(fovy, near, far); err != nil {
		return err
	}
	r.cfg.FovY, r.cfg.Near, r.cfg.Far = fovy, near, far
	r.proj = r.projection(fovy, near, far)
	return nil
}

// Draw clears the render target and renders the model and helpers with the
// current camera. Drawing twice without changes yields the same frame.
func (r *Rasterizer) Draw() error {
	if r.state == Uninitialized {
		return ErrNotReady
	}
	if err := r.dev.Bind(); err != nil {
		return fmt.Errorf("%w: binding render target: %v", surfcloud.ErrResource, err)
	}
	defer r.dev.Unbind()
	r.dev.Clear()
	viewProj := r.proj.Mul(r.view)
	if err := r.dev.DrawTriangles(r.model, viewProj); err != nil {
		return fmt.Errorf("%w: drawing model: %v", surfcloud.ErrResource, err)
	}
	if err := r.dev.DrawTriangles(r.helpers, viewProj); err != nil {
		return fmt.Errorf("%w: drawing helpers: %v", surfcloud.ErrResource, err)
	}
	r.state = Rendered
	r.logf("drew %d model and %d helper triangles", len(r.model), len(r.helpers))
	return nil
}

// CurrentData returns a copy of the render target. Before the first Draw
// the copy holds the cleared target with every pixel empty. When the debug
// writer is enabled the frame is also saved as a PNG; write failures are
// logged and otherwise ignored.
func (r *Rasterizer) CurrentData() (*surfcloud.PositionBuffer, error) {
	if r.state == Uninitialized {
		return nil, ErrNotReady
	}
	buf := surfcloud.NewPositionBuffer(r.cfg.Width, r.cfg.Height)
	if err := r.dev.ReadPositions(buf); err != nil {
		return nil, fmt.Errorf("%w: reading render target: %v", surfcloud.ErrResource, err)
	}
	if r.writeDebug {
		path, err := r.debug.Write(buf)
		if err != nil {
			glog.Warningf("raster: debug frame not written: %v", err)
		} else {
			r.logf("wrote debug frame %s", path)
		}
	}
	return buf, nil
}

// EnableWriter toggles saving of every frame returned by CurrentData.
func (r *Rasterizer) EnableWriter(enable bool) { r.writeDebug = enable }

// SetOutputPath sets the directory and file name prefix of debug frames.
// Numbering restarts at zero.
func (r *Rasterizer) SetOutputPath(dir, name string) {
	r.debug = debugimg.Writer{Dir: dir, Name: name, MaxWidth: r.debug.MaxWidth}
}

// SetDebugMaxWidth downscales debug frames wider than width pixels. Zero
// disables downscaling.
func (r *Rasterizer) SetDebugMaxWidth(width int) { r.debug.MaxWidth = width }

// Close releases the render target. Subsequent draws return ErrNotReady.
func (r *Rasterizer) Close() error {
	if r.state == Uninitialized {
		return nil
	}
	r.dev.Release()
	r.state = Uninitialized
	return nil
}

func (r *Rasterizer) logf(format string, args ...interface{}) {
	if r.verbose {
		glog.InfoDepth(1, fmt.Sprintf("raster: "+format, args...))
	}
}

func fv(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }
