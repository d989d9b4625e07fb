// Package voxel implements uniform voxel-grid downsampling of point clouds.
//
// Space is partitioned into cubic cells of edge size. Each point maps to
// the cell with per-axis index floor(coordinate/size). Exactly one point is
// retained per occupied cell: the first one seen in insertion order. The
// policy is fixed so resampling a given cloud always yields the same result.
package voxel

import (
	"math"

	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Cell is the index of a voxel grid cell. Components are integral values
// kept as float64 so coordinates far beyond the int64 range still map to
// distinct cells.
type Cell [3]float64

// Index returns the cell containing p for a grid with the given cell edge.
func Index(p r3.Vec, size float64) Cell {
	f := d3.FloorDiv(p, size)
	return Cell{f.X, f.Y, f.Z}
}

// Downsample returns a new cloud holding the first point of pc that falls
// in each occupied cell, in first-seen order. Normals are carried over
// with their points. The output size is the number of occupied cells.
// size must be positive.
func Downsample(pc surfcloud.PointCloud, size float64) surfcloud.PointCloud {
	if !(size > 0) {
		panic("voxel: non-positive cell size")
	}
	withNormals := pc.HasNormals()
	seen := make(map[Cell]struct{}, pc.Len()/4+1)
	out := surfcloud.NewPointCloud(0, withNormals)
	for i, p := range pc.Points {
		c := Index(p, size)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out.Points = append(out.Points, p)
		if withNormals {
			out.Normals = append(out.Normals, pc.Normals[i])
		}
	}
	return out
}

// Occupied returns the number of distinct cells occupied by the points of pc.
func Occupied(pc surfcloud.PointCloud, size float64) int {
	seen := make(map[Cell]struct{}, pc.Len()/4+1)
	for _, p := range pc.Points {
		seen[Index(p, size)] = struct{}{}
	}
	return len(seen)
}

// EstimateCells returns an upper bound on the number of cells a grid of
// the given cell edge needs to cover bb. It grows as volume/size³ which is
// the worst case cost of a resample.
func EstimateCells(bb r3.Box, size float64) float64 {
	b := d3.Box(bb)
	if b.Empty() {
		return 0
	}
	s := b.Size()
	nx := math.Floor(s.X/size) + 1
	ny := math.Floor(s.Y/size) + 1
	nz := math.Floor(s.Z/size) + 1
	return nx * ny * nz
}

// MinimumDensity returns the smallest cell edge for which covering bb
// takes no more than maxCells cells. It can be used to configure a density
// floor in advance when the model extent is known.
func MinimumDensity(bb r3.Box, maxCells int) float64 {
	b := d3.Box(bb)
	if maxCells <= 0 || b.Empty() {
		return math.Inf(1)
	}
	s := b.Size()
	vol := math.Max(s.X, 1e-12) * math.Max(s.Y, 1e-12) * math.Max(s.Z, 1e-12)
	// The continuous estimate ignores partial cells.
	d := math.Cbrt(vol / float64(maxCells))
	if d <= 0 {
		d = 1e-9
	}
	for EstimateCells(bb, d) > float64(maxCells) {
		d *= 1.01
	}
	return d
}
