// Package assembly accumulates points converted from position buffers into
// a density controlled point cloud ready for export.
//
// An Assembly keeps three sets:
//   - original: every point ever ingested, never resampled.
//   - ready: the accumulated working set, resampled after each AddData so
//     it stays bounded by the number of occupied voxels.
//   - final: the most recent resample result, read by the accessors and
//     written by WriteFile.
//
// Resample always derives final from original, so resampling repeatedly at
// different densities does not compound information loss.
//
// An Assembly is not safe for concurrent use. Mutating calls must not
// overlap with each other or with the read accessors.
package assembly

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"
	"github.com/soypat/surfcloud"
	"github.com/soypat/surfcloud/export"
	"github.com/soypat/surfcloud/voxel"
)

const (
	// MinDensity is the absolute lower bound for the voxel cell edge.
	MinDensity = 0.005
	// MinOutputScale is the exclusive lower bound for the output scale.
	MinOutputScale = 0.0001

	defaultDensity = 0.01
)

// ErrEmpty is returned by Resample when no points were accumulated yet.
var ErrEmpty = errors.New("assembly: no accumulated points")

// Assembly accumulates and resamples point clouds. The zero value is not
// usable, create one with New.
type Assembly struct {
	original surfcloud.PointCloud
	ready    surfcloud.PointCloud
	final    surfcloud.PointCloud

	density    float64
	minDensity float64
	scale      float64
	normals    bool
	verbose    bool
}

// New returns an empty Assembly with a density of 0.01, a density floor of
// 0.005 and an output scale of 1.
func New() *Assembly {
	return &Assembly{
		density:    defaultDensity,
		minDensity: MinDensity,
		scale:      1,
	}
}

// SetVerbose enables diagnostic logging.
func (a *Assembly) SetVerbose(v bool) { a.verbose = v }

// SetNormals selects whether normals are estimated for points ingested
// after the call.
func (a *Assembly) SetNormals(b bool) { a.normals = b }

// SetDensity sets the voxel cell edge used by subsequent AddData calls.
// d must be at least MinDensity and the configured minimum density.
func (a *Assembly) SetDensity(d float64) error {
	if err := a.checkDensity(d); err != nil {
		return err
	}
	a.density = d
	a.logf("density set to %g", d)
	return nil
}

// Density returns the current voxel cell edge.
func (a *Assembly) Density() float64 { return a.density }

// SetMinimumDensity sets a floor below which density requests are rejected.
// Voxel grid cost grows as volume/density³ so the floor bounds the memory
// and time a resample may take. If the current density is below the new
// floor it is raised to the floor.
func (a *Assembly) SetMinimumDensity(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < MinDensity {
		return fmt.Errorf("%w: minimum density %g, must be finite and >= %g", surfcloud.ErrValidation, d, MinDensity)
	}
	a.minDensity = d
	if a.density < d {
		glog.Infof("assembly: density %g raised to new minimum %g", a.density, d)
		a.density = d
	}
	return nil
}

// MinimumDensity returns the configured density floor.
func (a *Assembly) MinimumDensity() float64 { return a.minDensity }

// SetOutputScale sets the factor applied to final point coordinates when
// writing files. s must be greater than MinOutputScale.
func (a *Assembly) SetOutputScale(s float64) error {
	if !(s > MinOutputScale) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: output scale %g, must be > %g", surfcloud.ErrValidation, s, MinOutputScale)
	}
	a.scale = s
	return nil
}

// OutputScale returns the factor applied at export time.
func (a *Assembly) OutputScale() float64 { return a.scale }

// AddData converts buf into points, appends them to the accumulated set and
// resamples it at the current density. It returns the number of points
// extracted from buf.
//
// The accumulated set is resampled in place, so points added while the
// density was coarse keep that coarse spacing after the density is made
// finer. Call Resample to rebuild the final set from every point ingested.
func (a *Assembly) AddData(buf *surfcloud.PositionBuffer) (int, error) {
	n, err := a.Ingest(buf)
	if err != nil {
		return 0, err
	}
	a.Compact()
	return n, nil
}

// Ingest converts buf and appends its points to the original and ready
// sets without resampling. Most callers want AddData.
func (a *Assembly) Ingest(buf *surfcloud.PositionBuffer) (int, error) {
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	pc := surfcloud.FramePoints(buf, a.normals)
	a.original.AppendCloud(pc)
	a.ready.AppendCloud(pc)
	a.logf("ingested %d points from %dx%d buffer, %d accumulated", pc.Len(), buf.Width, buf.Height, a.original.Len())
	return pc.Len(), nil
}

// Compact resamples the ready set at the current density and publishes it
// as the final set.
func (a *Assembly) Compact() {
	before := a.ready.Len()
	a.ready = voxel.Downsample(a.ready, a.density)
	a.final = a.ready.Clone()
	a.logf("compacted %d points to %d at density %g", before, a.ready.Len(), a.density)
}

// Resample recomputes the final set from the original accumulated points at
// density d. The original set is left untouched. On success d becomes the
// current density and the working set restarts from the resampled points.
func (a *Assembly) Resample(d float64) error {
	if a.original.Len() == 0 {
		return ErrEmpty
	}
	if err := a.checkDensity(d); err != nil {
		return err
	}
	a.density = d
	a.final = voxel.Downsample(a.original, d)
	a.ready = a.final.Clone()
	a.logf("resampled %d original points to %d at density %g", a.original.Len(), a.final.Len(), d)
	return nil
}

// PointCloud returns the final point cloud. The returned value shares
// memory with the Assembly and must not be modified.
func (a *Assembly) PointCloud() surfcloud.PointCloud { return a.final }

// NumPoints returns the number of points in the final set.
func (a *Assembly) NumPoints() int { return a.final.Len() }

// NumOriginalPoints returns the number of points accumulated before any
// resampling.
func (a *Assembly) NumOriginalPoints() int { return a.original.Len() }

// Reset discards all accumulated points. Settings are kept.
func (a *Assembly) Reset() {
	a.original = surfcloud.PointCloud{}
	a.ready = surfcloud.PointCloud{}
	a.final = surfcloud.PointCloud{}
}

// WriteFile scales the final set by the output scale and writes it to path
// in the given format ("obj", "ply" or "pcd"). An unknown format or a write
// failure leaves no file at path.
func (a *Assembly) WriteFile(path, format string) error {
	err := export.WriteFile(path, format, a.final.Scaled(a.scale))
	if err != nil {
		glog.Errorf("writing point cloud to %s: %v", path, err)
		return err
	}
	a.logf("wrote %d points to %s", a.final.Len(), path)
	return nil
}

func (a *Assembly) checkDensity(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: density %g", surfcloud.ErrValidation, d)
	}
	if d < MinDensity {
		return fmt.Errorf("%w: density %g below %g", surfcloud.ErrValidation, d, MinDensity)
	}
	if d < a.minDensity {
		return fmt.Errorf("%w: density %g below configured minimum %g", surfcloud.ErrValidation, d, a.minDensity)
	}
	return nil
}

func (a *Assembly) logf(format string, args ...interface{}) {
	if a.verbose {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}
