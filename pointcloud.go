package surfcloud

import (
	"github.com/soypat/surfcloud/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a single surface sample in scene units.
type Point struct {
	Pos r3.Vec
	// Normal is the unit surface normal. Only meaningful when HasNormal is set.
	Normal    r3.Vec
	HasNormal bool
}

// PointCloud is an insertion-ordered collection of points. Normals is
// either empty or has the same length as Points.
type PointCloud struct {
	Points  []r3.Vec
	Normals []r3.Vec
}

// NewPointCloud returns an empty PointCloud with room for size points.
func NewPointCloud(size int, withNormals bool) PointCloud {
	pc := PointCloud{Points: make([]r3.Vec, 0, size)}
	if withNormals {
		pc.Normals = make([]r3.Vec, 0, size)
	}
	return pc
}

// Len returns the number of points in the cloud.
func (pc PointCloud) Len() int { return len(pc.Points) }

// HasNormals reports whether every point carries a normal.
func (pc PointCloud) HasNormals() bool {
	return len(pc.Points) > 0 && len(pc.Normals) == len(pc.Points)
}

// At returns the ith point.
func (pc PointCloud) At(i int) Point {
	p := Point{Pos: pc.Points[i]}
	if pc.HasNormals() {
		p.Normal = pc.Normals[i]
		p.HasNormal = true
	}
	return p
}

// Append adds a point to the end of the cloud. Normals are kept only while
// every appended point has one.
func (pc *PointCloud) Append(p Point) {
	if p.HasNormal && len(pc.Normals) == len(pc.Points) {
		pc.Normals = append(pc.Normals, p.Normal)
	} else {
		pc.Normals = pc.Normals[:0]
	}
	pc.Points = append(pc.Points, p.Pos)
}

// AppendCloud appends all points of other to pc.
func (pc *PointCloud) AppendCloud(other PointCloud) {
	if other.Len() == 0 {
		return
	}
	keepNormals := other.HasNormals() && (len(pc.Points) == 0 || pc.HasNormals())
	pc.Points = append(pc.Points, other.Points...)
	if keepNormals {
		pc.Normals = append(pc.Normals, other.Normals...)
	} else {
		pc.Normals = pc.Normals[:0]
	}
}

// Clone returns a deep copy of pc.
func (pc PointCloud) Clone() PointCloud {
	c := PointCloud{Points: append([]r3.Vec(nil), pc.Points...)}
	if pc.HasNormals() {
		c.Normals = append([]r3.Vec(nil), pc.Normals...)
	}
	return c
}

// Scaled returns a copy of pc with every position multiplied by s.
// Normals are renormalized so they remain unit direction vectors.
func (pc PointCloud) Scaled(s float64) PointCloud {
	c := NewPointCloud(pc.Len(), pc.HasNormals())
	for i, p := range pc.Points {
		c.Points = append(c.Points, r3.Scale(s, p))
		if pc.HasNormals() {
			c.Normals = append(c.Normals, d3.UnitOrZero(r3.Scale(s, pc.Normals[i])))
		}
	}
	return c
}

// Bounds returns the axis aligned bounding box of all points.
// The box is empty for an empty cloud.
func (pc PointCloud) Bounds() r3.Box {
	bb := d3.EmptyBox()
	for _, p := range pc.Points {
		bb = bb.Include(p)
	}
	return r3.Box(bb)
}
