package raster

import (
	"github.com/fogleman/fauxgl"
	"github.com/soypat/surfcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// Device owns a render target and draws triangles into it. Each pixel of
// the target stores the model space position of the nearest surface seen
// through it along with a validity flag.
//
// A Device is used from a single goroutine. For GPU backed devices that
// goroutine must hold the current context.
type Device interface {
	// Allocate creates the render target. Pixels start out empty.
	Allocate(width, height int) error
	// Bind makes the render target the destination of draw calls.
	Bind() error
	// Unbind restores the previous destination.
	Unbind()
	// Clear marks every pixel as empty and resets depth to the far plane.
	Clear()
	// DrawTriangles renders tris into the bound target using viewProj to
	// map model space to clip space.
	DrawTriangles(tris []r3.Triangle, viewProj fauxgl.Matrix) error
	// ReadPositions copies the render target into dst, which has the
	// target's dimensions.
	ReadPositions(dst *surfcloud.PositionBuffer) error
	// Release frees the render target. The device may be allocated again.
	Release()
}
