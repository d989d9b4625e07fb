//go:build gl

package raster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/go-gl/gl/all-core/gl"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/surfcloud"
	"gonum.org/v1/gonum/spatial/r3"
)

// Maximum triangles stored per row of the triangle texture.
const glTrianglesPerRow = 1024

// castSource ray casts every pixel of the target against all triangles.
// Image unit 0 holds triangle vertices, three RGBA texels per triangle. Unit 2
// holds the inverse view projection matrix columns followed by the texel
// (width, height, triangles, triangles per row). Unit 1 receives the
// position with validity in the w component.
const castSource = `#shader compute
#version 430
layout(local_size_x = 1, local_size_y = 1, local_size_z = 1) in;
layout(rgba32f, binding = 0) uniform image2D tris;
layout(rgba32f, binding = 1) uniform image2D outpos;
layout(rgba32f, binding = 2) uniform image2D camera;

vec3 vertex(int tri, int k, int perRow) {
	return imageLoad(tris, ivec2(3*(tri%perRow)+k, tri/perRow)).xyz;
}

void main() {
	ivec2 px = ivec2(gl_GlobalInvocationID.xy);
	mat4 inv = mat4(
		imageLoad(camera, ivec2(0, 0)),
		imageLoad(camera, ivec2(1, 0)),
		imageLoad(camera, ivec2(2, 0)),
		imageLoad(camera, ivec2(3, 0)));
	vec4 dims = imageLoad(camera, ivec2(4, 0));
	int ntri = int(dims.z);
	int perRow = int(dims.w);
	vec2 ndc = vec2(
		(float(px.x)+0.5)/dims.x*2.0-1.0,
		1.0-(float(px.y)+0.5)/dims.y*2.0);
	vec4 n4 = inv * vec4(ndc, -1.0, 1.0);
	vec4 f4 = inv * vec4(ndc, 1.0, 1.0);
	vec3 orig = n4.xyz / n4.w;
	vec3 dir = f4.xyz/f4.w - orig;
	float best = 2.0;
	for (int i = 0; i < ntri; i++) {
		vec3 a = vertex(i, 0, perRow);
		vec3 e1 = vertex(i, 1, perRow) - a;
		vec3 e2 = vertex(i, 2, perRow) - a;
		vec3 p = cross(dir, e2);
		float det = dot(e1, p);
		if (abs(det) < 1e-12) {
			continue;
		}
		float invDet = 1.0 / det;
		vec3 s = orig - a;
		float u = dot(s, p) * invDet;
		if (u < 0.0 || u > 1.0) {
			continue;
		}
		vec3 q = cross(s, e1);
		float v = dot(dir, q) * invDet;
		if (v < 0.0 || u+v > 1.0) {
			continue;
		}
		float t = dot(e2, q) * invDet;
		if (t >= 0.0 && t <= 1.0 && t < best) {
			best = t;
		}
	}
	vec4 result = vec4(0.0);
	if (best <= 1.0) {
		result = vec4(orig + best*dir, 1.0);
	}
	imageStore(outpos, px, result);
}
`

// GLDevice renders on the GPU with an OpenGL 4.3+ compute program. The
// caller creates the GL context and keeps it current on the calling
// goroutine for the lifetime of the device.
//
// The output and camera images are created by Allocate and deleted by
// Release. The triangle image is kept between frames and only recreated
// when its dimensions change.
//
// Draw calls between Clear and ReadPositions are accumulated and cast in a
// single dispatch when the target is read, so depth ordering holds across
// calls. All draws of a frame must share the same view projection.
type GLDevice struct {
	prog          glgl.Program
	width, height int
	out           []float32
	verts         []float32 // xyz1 per vertex.
	texels        []float32
	invViewProj   fauxgl.Matrix
	bound, dirty  bool

	outImg, camImg, triImg glImage
}

var _ Device = (*GLDevice)(nil)

// NewGLDevice compiles the ray casting program in the current context.
func NewGLDevice() (*GLDevice, error) {
	combined, err := glgl.ParseCombined(strings.NewReader(castSource))
	if err != nil {
		return nil, err
	}
	prog, err := glgl.CompileProgram(combined)
	if err != nil {
		return nil, errors.New(string(combined.Compute) + "\n" + err.Error())
	}
	return &GLDevice{prog: prog, invViewProj: fauxgl.Identity()}, nil
}

func (d *GLDevice) Allocate(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("render target dimensions must be positive")
	}
	d.Release()
	var err error
	d.outImg, err = newGLImage(1, gl.WRITE_ONLY, width, height)
	if err != nil {
		return err
	}
	d.camImg, err = newGLImage(2, gl.READ_ONLY, 5, 1)
	if err != nil {
		d.outImg.delete()
		return err
	}
	d.width, d.height = width, height
	d.out = make([]float32, 4*width*height)
	d.Clear()
	return nil
}

func (d *GLDevice) Bind() error {
	if d.out == nil {
		return errors.New("render target not allocated")
	}
	d.prog.Bind()
	d.bound = true
	return nil
}

func (d *GLDevice) Unbind() { d.bound = false }

func (d *GLDevice) Clear() {
	for i := range d.out {
		d.out[i] = 0
	}
	d.verts = d.verts[:0]
	d.dirty = false
}

func (d *GLDevice) DrawTriangles(tris []r3.Triangle, viewProj fauxgl.Matrix) error {
	if !d.bound {
		return errors.New("draw on unbound render target")
	}
	d.invViewProj = viewProj.Inverse()
	for _, t := range tris {
		for _, v := range t {
			d.verts = append(d.verts, float32(v.X), float32(v.Y), float32(v.Z), 1)
		}
	}
	d.dirty = true
	return nil
}

func (d *GLDevice) ReadPositions(dst *surfcloud.PositionBuffer) error {
	if d.out == nil {
		return errors.New("render target not allocated")
	}
	if dst.Width != d.width || dst.Height != d.height {
		return errors.New("destination dimensions do not match render target")
	}
	if d.dirty && len(d.verts) > 0 {
		if err := d.cast(); err != nil {
			return err
		}
	}
	d.dirty = false
	n := d.width * d.height
	if len(dst.Data) != 3*n {
		dst.Data = make([]float32, 3*n)
	}
	if len(dst.Valid) != n {
		dst.Valid = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		texel := d.out[4*i : 4*i+4]
		dst.Valid[i] = texel[3] > 0.5
		if dst.Valid[i] {
			copy(dst.Data[3*i:3*i+3], texel[:3])
		} else {
			dst.Data[3*i], dst.Data[3*i+1], dst.Data[3*i+2] = 0, 0, 0
		}
	}
	return nil
}

func (d *GLDevice) cast() error {
	d.prog.Bind()
	ntri := len(d.verts) / 12
	perRow := ntri
	if perRow > glTrianglesPerRow {
		perRow = glTrianglesPerRow
	}
	rows := (ntri + perRow - 1) / perRow
	if d.triImg.id == 0 || int(d.triImg.w) != 3*perRow || int(d.triImg.h) != rows {
		d.triImg.delete()
		var err error
		d.triImg, err = newGLImage(0, gl.READ_ONLY, 3*perRow, rows)
		if err != nil {
			return err
		}
	}
	size := 4 * 3 * perRow * rows
	if cap(d.texels) < size {
		d.texels = make([]float32, size)
	}
	d.texels = d.texels[:size]
	n := copy(d.texels, d.verts)
	for i := n; i < size; i++ {
		d.texels[i] = 0
	}
	d.triImg.upload(d.texels)

	m := d.invViewProj
	camera := []float32{
		float32(m.X00), float32(m.X10), float32(m.X20), float32(m.X30),
		float32(m.X01), float32(m.X11), float32(m.X21), float32(m.X31),
		float32(m.X02), float32(m.X12), float32(m.X22), float32(m.X32),
		float32(m.X03), float32(m.X13), float32(m.X23), float32(m.X33),
		float32(d.width), float32(d.height), float32(ntri), float32(perRow),
	}
	d.camImg.upload(camera)
	d.outImg.bindImage()
	if err := glError("uploading cast inputs"); err != nil {
		return err
	}
	if err := d.prog.RunCompute(d.width, d.height, 1); err != nil {
		return err
	}
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.TEXTURE_UPDATE_BARRIER_BIT)
	d.outImg.download(d.out)
	return glError("reading render target")
}

// Release deletes the GL images and drops the CPU side buffers. The
// compiled program is kept so the device can be allocated again.
func (d *GLDevice) Release() {
	d.outImg.delete()
	d.camImg.delete()
	d.triImg.delete()
	d.out = nil
	d.verts = nil
	d.texels = nil
	d.bound = false
	d.dirty = false
}

// glImage is an RGBA32F 2D texture bound to a compute image unit.
type glImage struct {
	id     uint32
	unit   uint32
	access uint32
	w, h   int32
}

func newGLImage(unit, access uint32, width, height int) (glImage, error) {
	img := glImage{unit: unit, access: access, w: int32(width), h: int32(height)}
	gl.GenTextures(1, &img.id)
	gl.BindTexture(gl.TEXTURE_2D, img.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA32F, img.w, img.h, 0, gl.RGBA, gl.FLOAT, nil)
	if err := glError("allocating image"); err != nil {
		img.delete()
		return glImage{}, err
	}
	img.bindImage()
	return img, nil
}

func (img glImage) bindImage() {
	gl.BindImageTexture(img.unit, img.id, 0, false, 0, img.access, gl.RGBA32F)
}

func (img glImage) upload(data []float32) {
	gl.BindTexture(gl.TEXTURE_2D, img.id)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, img.w, img.h, gl.RGBA, gl.FLOAT, gl.Ptr(data))
	img.bindImage()
}

func (img glImage) download(dst []float32) {
	gl.BindTexture(gl.TEXTURE_2D, img.id)
	gl.GetTexImage(gl.TEXTURE_2D, 0, gl.RGBA, gl.FLOAT, gl.Ptr(dst))
}

func (img *glImage) delete() {
	if img.id != 0 {
		gl.DeleteTextures(1, &img.id)
	}
	*img = glImage{}
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: GL error 0x%x", op, code)
	}
	return nil
}
