package eraser

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"voxeleraser/pkg/tiling"
)

// coordShift moves ray-space coordinates from [-0.5,0.5] into texture space
const coordShift = 0.5

// Pick is a ray hit produced by the front/back face passes of the renderer
type Pick struct {
	// Target is the hit in normalized [0,1]^3 texture coordinates
	Target r3.Vec

	// ViewDir is the unnormalized ray direction
	ViewDir r3.Vec

	// Distance is the hit distance along the ray
	Distance float64
}

// TargetFromRay converts the front and back face samples of a pixel plus the
// ray-marched hit distance into a pick. Front and back are in ray space,
// centered on the volume.
func TargetFromRay(front, back r3.Vec, distance float64) Pick {
	dir := r3.Sub(back, front)
	shift := r3.Vec{X: coordShift, Y: coordShift, Z: coordShift}

	target := r3.Add(front, shift)
	if n := r3.Norm(dir); n > 0 {
		target = r3.Add(target, r3.Scale(distance/n, dir))
	}

	return Pick{
		Target:   target,
		ViewDir:  dir,
		Distance: distance,
	}
}

// VoxelFromTexCoord maps normalized texture coordinates to the voxel they fall in
func VoxelFromTexCoord(layout tiling.Layout, c r3.Vec) Point {
	return Point{
		X: int(math.Floor(c.X * float64(layout.XDim))),
		Y: int(math.Floor(c.Y * float64(layout.YDim))),
		Z: int(math.Floor(c.Z * float64(layout.ZDim))),
	}
}

// Gesture builds an erase sample from a pick
func (p Pick) Gesture(layout tiling.Layout, radius, depth, iso float64, start, normalMode bool) Gesture {
	return Gesture{
		Voxel:        VoxelFromTexCoord(layout, p.Target),
		Radius:       radius,
		Depth:        depth,
		ViewDir:      p.ViewDir,
		IsoThreshold: iso,
		Start:        start,
		NormalMode:   normalMode,
		Distance:     p.Distance,
	}
}
