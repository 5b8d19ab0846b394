// Package eraser carves voxels out of a volume's visibility mask.
//
// An erase gesture removes a cylinder-shaped blob of surface voxels around a
// picked target. The cylinder is aligned with the estimated surface normal
// (or the view direction in tangential mode) and grown by a flood fill that
// only visits voxels at or above the iso-surface threshold. Every completed
// erase is recorded so it can be undone.
//
// The Eraser is not safe for concurrent use. It is driven by serialized
// pointer events and mutates the mask in place; after a call that reports
// changes (see Dirty) the caller re-uploads the mask texture.
package eraser

import (
	"fmt"
	"io"
	"log"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"voxeleraser/pkg/tiling"
)

const (
	// GaussRadius is the half-width of the neighbourhood used for normal estimation
	GaussRadius = 2

	// Sigma is the Gaussian parameter used for normal estimation
	Sigma = 1.4

	// ContinuityThreshold is the largest jump in ray distance between two drag
	// samples that still counts as the same stroke
	ContinuityThreshold = 0.05

	// NormalBack is the lower axial bound of the cylinder in normal mode
	NormalBack = -5.0

	// UndoIterations is the number of records popped by a single undo
	UndoIterations = 10

	// borderInclude lowers the iso threshold so voxels right on the surface are erased
	borderInclude = 0.01
	byteScale     = 255.0
)

// Point is an integer voxel coordinate
type Point struct {
	X, Y, Z int
}

// Options controls the tunable parts of the eraser
type Options struct {
	// GaussRadius and Sigma parameterise surface normal estimation
	GaussRadius int
	Sigma       float64

	// ContinuityThreshold bounds the ray-distance jump between drag samples
	ContinuityThreshold float64

	// NormalBack is the lower axial bound of the cylinder in normal mode
	NormalBack float64

	// UndoIterations is how many records one undo pops
	UndoIterations int

	// Logger receives debug output. Nil disables logging.
	Logger *log.Logger
}

// DefaultOptions returns the options used by the viewer
func DefaultOptions() Options {
	return Options{
		GaussRadius:         GaussRadius,
		Sigma:               Sigma,
		ContinuityThreshold: ContinuityThreshold,
		NormalBack:          NormalBack,
		UndoIterations:      UndoIterations,
	}
}

// Gesture is a single pointer sample of an erase stroke
type Gesture struct {
	// Voxel is the picked target voxel
	Voxel Point

	// Radius and Depth size the erase cylinder in voxels
	Radius float64
	Depth  float64

	// ViewDir is the direction of the picking ray
	ViewDir r3.Vec

	// IsoThreshold is the normalized surface threshold in [0,1]
	IsoThreshold float64

	// Start marks the first sample of a drag, MouseUp its end
	Start   bool
	MouseUp bool

	// NormalMode aligns the cylinder with the surface normal. When false the
	// view direction is used instead (tangential mode).
	NormalMode bool

	// Distance is the hit distance along the picking ray
	Distance float64
}

// Record is an undo entry for one erase
type Record struct {
	Target Point
	Radius float64
	Depth  float64

	// Frame rotates world offsets into the cylinder's local frame
	Frame r3.Rotation

	// Back is the lower axial bound that was used when carving
	Back float64
}

// Eraser owns the mask of a loaded volume and the undo history of erases on it
type Eraser struct {
	layout    tiling.Layout
	intensity []byte
	mask      []byte
	opts      Options
	logger    *log.Logger

	records []Record

	// drag state
	prevDistance float64
	hasPrev      bool
	stalled      bool

	dirty bool
}

// New creates an eraser over a tiled intensity buffer. The mask starts fully visible.
func New(layout tiling.Layout, intensity []byte, opts Options) (*Eraser, error) {
	if len(intensity) != layout.Len() {
		return nil, fmt.Errorf("intensity buffer has %d bytes, layout needs %d", len(intensity), layout.Len())
	}

	defaults := DefaultOptions()
	if opts.GaussRadius <= 0 {
		opts.GaussRadius = defaults.GaussRadius
	}
	if opts.Sigma <= 0 {
		opts.Sigma = defaults.Sigma
	}
	if opts.ContinuityThreshold <= 0 {
		opts.ContinuityThreshold = defaults.ContinuityThreshold
	}
	if opts.NormalBack == 0 {
		opts.NormalBack = defaults.NormalBack
	}
	if opts.UndoIterations <= 0 {
		opts.UndoIterations = defaults.UndoIterations
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Eraser{
		layout:    layout,
		intensity: intensity,
		mask:      layout.NewMask(),
		opts:      opts,
		logger:    logger,
	}, nil
}

// Layout returns the tiled layout of the mask
func (e *Eraser) Layout() tiling.Layout {
	return e.layout
}

// Mask returns the live mask buffer in tiled layout
func (e *Eraser) Mask() []byte {
	return e.mask
}

// Records returns the number of erases that can be undone
func (e *Eraser) Records() int {
	return len(e.records)
}

// LastRecord returns the most recent undo entry
func (e *Eraser) LastRecord() (Record, bool) {
	if len(e.records) == 0 {
		return Record{}, false
	}
	return e.records[len(e.records)-1], true
}

// Dirty reports whether the mask changed since the last ClearDirty
func (e *Eraser) Dirty() bool {
	return e.dirty
}

// ClearDirty acknowledges a mask upload
func (e *Eraser) ClearDirty() {
	e.dirty = false
}

// ErasePixels handles one sample of an erase stroke and returns the number of
// voxels it erased.
func (e *Eraser) ErasePixels(g Gesture) int {
	if g.MouseUp {
		e.stalled = false
		e.hasPrev = false
		return 0
	}

	if g.Start {
		e.prevDistance = g.Distance
		e.hasPrev = true
		e.stalled = false
	}
	if e.stalled {
		return 0
	}
	if !e.hasPrev || math.Abs(e.prevDistance-g.Distance) >= e.opts.ContinuityThreshold {
		// the cursor jumped; wait for the next stroke
		e.stalled = true
		return 0
	}
	e.prevDistance = g.Distance

	t := g.Voxel
	if !e.layout.Contains(t.X, t.Y, t.Z) {
		return 0
	}
	e.logger.Printf("Target: %d, %d, %d", t.X, t.Y, t.Z)

	gauss := e.estimateNormal(t)
	normal := gauss
	if !g.NormalMode || r3.Norm(normal) == 0 {
		normal = r3.Scale(-1, g.ViewDir)
	}
	normal = unit(normal)
	e.logger.Printf("Normal: X: %f Y: %f Z: %f", normal.X, normal.Y, normal.Z)

	frame := cylinderFrame(normal)

	back := e.opts.NormalBack
	if !g.NormalMode {
		back = tangentialBack(g.ViewDir, gauss, g.Radius)
	}

	border := g.IsoThreshold*byteScale - borderInclude*byteScale
	erased := e.carve(t, frame, g.Radius, g.Depth, back, border)
	if erased > 0 {
		e.records = append(e.records, Record{
			Target: t,
			Radius: g.Radius,
			Depth:  g.Depth,
			Frame:  frame,
			Back:   back,
		})
		e.dirty = true
	}
	return erased
}

// UndoLastErasing restores the most recent erases, up to UndoIterations of
// them. When the history runs out the whole mask is reset.
func (e *Eraser) UndoLastErasing() int {
	restored := 0
	for a := 0; a < e.opts.UndoIterations; a++ {
		if len(e.records) == 0 {
			e.ResetBufferTextureCPU()
			break
		}

		rec := e.records[len(e.records)-1]
		e.records = e.records[:len(e.records)-1]

		radius := math.Round(rec.Radius)
		if len(e.records) == 0 {
			// the last record is restored with twice its radius
			radius *= 2
		}
		restored += e.restore(rec, radius)
	}
	if restored > 0 {
		e.dirty = true
	}
	return restored
}

// ResetBufferTextureCPU makes every voxel visible again. The undo history is kept.
func (e *Eraser) ResetBufferTextureCPU() {
	for i := range e.mask {
		e.mask[i] = tiling.Visible
	}
	e.dirty = true
}

// carve flood-fills the cylinder around target, erasing visible voxels whose
// intensity is at least border.
func (e *Eraser) carve(target Point, frame r3.Rotation, radius, depth, back, border float64) int {
	erased := 0
	e.fill(target, func(p r3.Vec) bool {
		local := frame.Rotate(p)
		return math.Hypot(local.X, local.Y) <= radius &&
			math.Abs(local.Z) <= depth &&
			local.Z >= back
	}, func(off int) bool {
		if e.mask[off] == tiling.Erased || float64(e.intensity[off]) < border {
			return false
		}
		e.mask[off] = tiling.Erased
		erased++
		return true
	})
	return erased
}

// restore flood-fills the recorded cylinder, making erased voxels visible again.
func (e *Eraser) restore(rec Record, radius float64) int {
	restored := 0
	e.fill(rec.Target, func(p r3.Vec) bool {
		local := rec.Frame.Rotate(p)
		return math.Hypot(local.X, local.Y) <= radius &&
			local.Z <= rec.Depth &&
			local.Z >= rec.Back
	}, func(off int) bool {
		if e.mask[off] != tiling.Erased {
			return false
		}
		e.mask[off] = tiling.Visible
		restored++
		return true
	})
	return restored
}

// fill walks local offsets from target with an explicit LIFO work list. A
// popped offset is expanded only if inside accepts it; each of its 27
// neighbours is pushed when visit claims the voxel it maps to. Visit must
// change the voxel so it is never claimed twice.
func (e *Eraser) fill(target Point, inside func(r3.Vec) bool, visit func(off int) bool) {
	ratio := float64(e.layout.XDim) / float64(e.layout.ZDim)

	stack := []r3.Vec{{}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !inside(p) {
			continue
		}

		for dz := -1.0; dz <= 1; dz++ {
			for dy := -1.0; dy <= 1; dy++ {
				for dx := -1.0; dx <= 1; dx++ {
					q := r3.Vec{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
					x := target.X + roundHalfUp(q.X)
					y := target.Y + roundHalfUp(q.Y)
					z := target.Z + roundHalfUp(q.Z/ratio)
					if !e.layout.Contains(x, y, z) {
						continue
					}
					if visit(e.layout.Offset(x, y, z)) {
						stack = append(stack, q)
					}
				}
			}
		}
	}
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
