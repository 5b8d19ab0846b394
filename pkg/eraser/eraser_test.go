package eraser

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"voxeleraser/pkg/tiling"
)

// newTestEraser builds an eraser over a volume filled by value(x, y, z)
func newTestEraser(t *testing.T, xDim, yDim, zDim int, opts Options, value func(x, y, z int) byte) *Eraser {
	t.Helper()

	layout, err := tiling.NewLayout(xDim, yDim, zDim)
	if err != nil {
		t.Fatalf("Failed to create layout: %v", err)
	}

	flat := make([]byte, layout.Voxels())
	for z := 0; z < zDim; z++ {
		for y := 0; y < yDim; y++ {
			for x := 0; x < xDim; x++ {
				flat[layout.FlatOffset(x, y, z)] = value(x, y, z)
			}
		}
	}

	tiled, err := layout.Pack(flat)
	if err != nil {
		t.Fatalf("Failed to pack volume: %v", err)
	}

	e, err := New(layout, tiled, opts)
	if err != nil {
		t.Fatalf("Failed to create eraser: %v", err)
	}
	return e
}

func uniform(v byte) func(x, y, z int) byte {
	return func(x, y, z int) byte { return v }
}

func (e *Eraser) maskAt(x, y, z int) byte {
	return e.mask[e.layout.Offset(x, y, z)]
}

// erasedVoxels lists every erased voxel of the volume
func erasedVoxels(e *Eraser) map[Point]bool {
	out := make(map[Point]bool)
	l := e.layout
	for z := 0; z < l.ZDim; z++ {
		for y := 0; y < l.YDim; y++ {
			for x := 0; x < l.XDim; x++ {
				if e.maskAt(x, y, z) == tiling.Erased {
					out[Point{x, y, z}] = true
				}
			}
		}
	}
	return out
}

func assertAllVisible(t *testing.T, e *Eraser) {
	t.Helper()
	for i, v := range e.mask {
		if v != tiling.Visible {
			t.Fatalf("Expected all texels visible, texel %d is %d", i, v)
		}
	}
}

func startGesture(p Point) Gesture {
	return Gesture{
		Voxel:        p,
		Radius:       1,
		Depth:        1,
		ViewDir:      r3.Vec{Z: 1},
		IsoThreshold: 0.5,
		Start:        true,
		NormalMode:   true,
		Distance:     0.5,
	}
}

// TestNewRejectsWrongBufferSize verifies construction validation
func TestNewRejectsWrongBufferSize(t *testing.T) {
	layout, _ := tiling.NewLayout(4, 4, 4)
	if _, err := New(layout, make([]byte, 10), DefaultOptions()); err == nil {
		t.Error("Expected error for mismatched intensity buffer")
	}
}

// TestNewAppliesDefaults verifies zero options fall back to the viewer defaults
func TestNewAppliesDefaults(t *testing.T) {
	e := newTestEraser(t, 2, 2, 2, Options{}, uniform(0))
	if e.opts != DefaultOptions() {
		t.Errorf("Expected default options, got %+v", e.opts)
	}
	assertAllVisible(t, e)
}

// TestEraseSingleVoxelNeighbourhood covers the 4x4x4 erase scenario
func TestEraseSingleVoxelNeighbourhood(t *testing.T) {
	e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(200))
	target := Point{2, 2, 2}

	erased := e.ErasePixels(startGesture(target))
	if erased == 0 {
		t.Fatal("Expected voxels to be erased")
	}

	if e.maskAt(2, 2, 2) != tiling.Erased {
		t.Error("Expected target voxel to be erased")
	}

	// the origin is always inside the cylinder, so all 26 neighbours are claimed
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if e.maskAt(2+dx, 2+dy, 2+dz) != tiling.Erased {
					t.Errorf("Expected neighbour (%d,%d,%d) to be erased", 2+dx, 2+dy, 2+dz)
				}
			}
		}
	}

	// accepted offsets lie within sqrt(r^2+d^2) of the target and claim at most
	// one voxel further in each axis
	reach := math.Sqrt2 + math.Sqrt(3)
	got := erasedVoxels(e)
	for p := range got {
		dx, dy, dz := float64(p.X-2), float64(p.Y-2), float64(p.Z-2)
		if math.Sqrt(dx*dx+dy*dy+dz*dz) > reach+1e-9 {
			t.Errorf("Voxel %v erased outside the cylinder reach", p)
		}
	}
	if e.maskAt(0, 0, 0) != tiling.Visible {
		t.Error("Expected far corner to remain visible")
	}
	if len(got) != erased {
		t.Errorf("Expected %d erased voxels, mask holds %d", erased, len(got))
	}

	if e.Records() != 1 {
		t.Errorf("Expected 1 undo record, got %d", e.Records())
	}
	if !e.Dirty() {
		t.Error("Expected mask to be marked dirty")
	}
}

// TestEraseSkipsVoxelsBelowIsoThreshold verifies only surface material is erased
func TestEraseSkipsVoxelsBelowIsoThreshold(t *testing.T) {
	e := newTestEraser(t, 8, 8, 8, DefaultOptions(), func(x, y, z int) byte {
		if x < 4 {
			return 50
		}
		return 200
	})

	g := startGesture(Point{4, 4, 4})
	g.Radius = 3
	g.Depth = 3
	if e.ErasePixels(g) == 0 {
		t.Fatal("Expected voxels to be erased")
	}

	for p := range erasedVoxels(e) {
		if p.X < 4 {
			t.Errorf("Voxel %v below the iso threshold was erased", p)
		}
	}
}

// TestEraseBorderIncludesThreshold verifies the 1% border below the threshold
func TestEraseBorderIncludesThreshold(t *testing.T) {
	// 0.5*255 - 0.01*255 = 124.95
	e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(125))
	if e.ErasePixels(startGesture(Point{2, 2, 2})) == 0 {
		t.Error("Expected voxels just above the border to be erased")
	}

	e = newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(124))
	if n := e.ErasePixels(startGesture(Point{2, 2, 2})); n != 0 {
		t.Errorf("Expected no voxels below the border to be erased, got %d", n)
	}
	if e.Records() != 0 {
		t.Errorf("Expected no record for an empty erase, got %d", e.Records())
	}
}

// TestMouseUpDoesNotMutate verifies mouse-up is side-effect free on mask and history
func TestMouseUpDoesNotMutate(t *testing.T) {
	e := newTestEraser(t, 6, 6, 6, DefaultOptions(), uniform(200))
	e.ErasePixels(startGesture(Point{3, 3, 3}))

	before := append([]byte(nil), e.Mask()...)
	records := e.Records()

	g := startGesture(Point{1, 1, 1})
	g.MouseUp = true
	if n := e.ErasePixels(g); n != 0 {
		t.Errorf("Expected mouse-up to erase nothing, got %d", n)
	}

	if !bytes.Equal(before, e.Mask()) {
		t.Error("Mouse-up changed the mask")
	}
	if e.Records() != records {
		t.Errorf("Mouse-up changed the undo history: %d -> %d", records, e.Records())
	}
}

// TestDragContinuityGuard verifies that a jump in ray distance suspends the
// stroke until the next start sample
func TestDragContinuityGuard(t *testing.T) {
	e := newTestEraser(t, 10, 10, 10, DefaultOptions(), uniform(200))

	first := startGesture(Point{2, 2, 2})
	first.Distance = 0.5
	if e.ErasePixels(first) == 0 {
		t.Fatal("Expected the first sample to erase")
	}

	jump := startGesture(Point{7, 7, 7})
	jump.Start = false
	jump.Distance = 0.9
	if n := e.ErasePixels(jump); n != 0 {
		t.Errorf("Expected a jump to erase nothing, got %d", n)
	}

	// back within range, but the stroke stays suspended
	jump.Distance = 0.5
	if n := e.ErasePixels(jump); n != 0 {
		t.Errorf("Expected a suspended stroke to erase nothing, got %d", n)
	}
	if e.maskAt(7, 7, 7) != tiling.Visible {
		t.Error("Expected voxel to stay visible while the stroke is suspended")
	}

	jump.Start = true
	if e.ErasePixels(jump) == 0 {
		t.Error("Expected a new stroke to erase")
	}
}

// TestDragWithoutStartIsIgnored verifies a sample with no prior start sample
func TestDragWithoutStartIsIgnored(t *testing.T) {
	e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(200))

	g := startGesture(Point{2, 2, 2})
	g.Start = false
	if n := e.ErasePixels(g); n != 0 {
		t.Errorf("Expected no erase without a start sample, got %d", n)
	}
	assertAllVisible(t, e)
}

// TestDragIsMonotonic verifies erased voxels stay erased during a stroke and
// each sample only counts newly erased voxels
func TestDragIsMonotonic(t *testing.T) {
	e := newTestEraser(t, 12, 12, 12, DefaultOptions(), uniform(200))

	prev := erasedVoxels(e)
	for i := 0; i < 6; i++ {
		g := startGesture(Point{3 + i, 6, 6})
		g.Start = i == 0
		g.Distance = 0.5 + float64(i)*0.01
		g.Radius = 2

		n := e.ErasePixels(g)
		cur := erasedVoxels(e)
		for p := range prev {
			if !cur[p] {
				t.Fatalf("Sample %d made voxel %v visible again", i, p)
			}
		}
		if len(cur)-len(prev) != n {
			t.Errorf("Sample %d reported %d erased voxels, mask gained %d", i, n, len(cur)-len(prev))
		}
		prev = cur
	}
}

// TestEraseAtCornersStaysInBounds verifies targets on volume faces and corners
func TestEraseAtCornersStaysInBounds(t *testing.T) {
	corners := []Point{
		{0, 0, 0}, {3, 0, 0}, {0, 3, 0}, {0, 0, 3},
		{3, 3, 0}, {3, 0, 3}, {0, 3, 3}, {3, 3, 3},
	}

	for _, normalMode := range []bool{true, false} {
		for _, c := range corners {
			e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(200))
			g := startGesture(c)
			g.Radius = 3
			g.Depth = 3
			g.NormalMode = normalMode
			g.ViewDir = r3.Vec{X: 1, Y: -1, Z: 0.5}

			if e.ErasePixels(g) == 0 {
				t.Errorf("normalMode=%v corner %v: expected voxels to be erased", normalMode, c)
			}
			if e.maskAt(c.X, c.Y, c.Z) != tiling.Erased {
				t.Errorf("normalMode=%v corner %v: expected target erased", normalMode, c)
			}
		}
	}
}

// TestEraseOutsideVolumeIsIgnored verifies targets outside the volume are absorbed
func TestEraseOutsideVolumeIsIgnored(t *testing.T) {
	e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(200))

	for _, p := range []Point{{-1, 0, 0}, {4, 1, 1}, {1, 9, 1}, {1, 1, -3}} {
		if n := e.ErasePixels(startGesture(p)); n != 0 {
			t.Errorf("Expected target %v to erase nothing, got %d", p, n)
		}
	}
	assertAllVisible(t, e)
	if e.Records() != 0 {
		t.Errorf("Expected no records, got %d", e.Records())
	}
}

// TestEraseAnisotropicVolume exercises the z scaling of thin volumes
func TestEraseAnisotropicVolume(t *testing.T) {
	e := newTestEraser(t, 8, 8, 4, DefaultOptions(), uniform(200))

	g := startGesture(Point{4, 4, 2})
	g.Radius = 2
	g.Depth = 2
	if e.ErasePixels(g) == 0 {
		t.Fatal("Expected voxels to be erased")
	}
	if e.maskAt(4, 4, 2) != tiling.Erased {
		t.Error("Expected target erased")
	}
}

// TestTangentialModeUsesViewDirection verifies the cylinder axis follows the view ray
func TestTangentialModeUsesViewDirection(t *testing.T) {
	e := newTestEraser(t, 8, 8, 8, DefaultOptions(), func(x, y, z int) byte {
		if x < 4 {
			return 200
		}
		return 0
	})

	g := startGesture(Point{3, 4, 4})
	g.NormalMode = false
	g.ViewDir = r3.Vec{X: 1, Y: 1}
	if e.ErasePixels(g) == 0 {
		t.Fatal("Expected voxels to be erased")
	}

	rec, ok := e.LastRecord()
	if !ok {
		t.Fatal("Expected an undo record")
	}

	axis := rec.Frame.Rotate(r3.Unit(g.ViewDir))
	if math.Abs(axis.X) > 1e-9 || math.Abs(axis.Y) > 1e-9 || math.Abs(axis.Z-1) > 1e-9 {
		t.Errorf("Expected view direction to map to +Z, got %v", axis)
	}

	// the surface normal is +X, 45 degrees from the view, so tan = 1
	if rec.Back != -1 {
		t.Errorf("Expected back distance -1, got %f", rec.Back)
	}
}

// TestUndoRestoresSingleErase covers erase followed by undo on a clean mask
func TestUndoRestoresSingleErase(t *testing.T) {
	e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(200))
	e.ErasePixels(startGesture(Point{2, 2, 2}))
	e.ClearDirty()

	e.UndoLastErasing()

	assertAllVisible(t, e)
	if e.Records() != 0 {
		t.Errorf("Expected empty history, got %d records", e.Records())
	}
	if !e.Dirty() {
		t.Error("Expected mask to be marked dirty after undo")
	}
}

// TestRestoreIsInverseOfCarve checks the restore fill alone, without the
// reset that follows when the history runs out
func TestRestoreIsInverseOfCarve(t *testing.T) {
	for _, normalMode := range []bool{true, false} {
		e := newTestEraser(t, 10, 10, 10, DefaultOptions(), func(x, y, z int) byte {
			if z < 6 {
				return 200
			}
			return 0
		})

		g := startGesture(Point{5, 5, 5})
		g.Radius = 3
		g.Depth = 2
		g.NormalMode = normalMode
		g.ViewDir = r3.Vec{Y: 0.3, Z: 1}
		erased := e.ErasePixels(g)
		if erased == 0 {
			t.Fatalf("normalMode=%v: expected voxels to be erased", normalMode)
		}

		rec, _ := e.LastRecord()
		if restored := e.restore(rec, rec.Radius); restored != erased {
			t.Errorf("normalMode=%v: erased %d voxels, restored %d", normalMode, erased, restored)
		}
		assertAllVisible(t, e)
	}
}

// TestUndoPopsOnlyIterationLimit verifies a limited undo leaves older erases in place
func TestUndoPopsOnlyIterationLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.UndoIterations = 1
	e := newTestEraser(t, 12, 12, 12, opts, uniform(200))

	e.ErasePixels(startGesture(Point{3, 3, 3}))
	e.ErasePixels(startGesture(Point{8, 8, 8}))
	if e.Records() != 2 {
		t.Fatalf("Expected 2 records, got %d", e.Records())
	}

	if e.UndoLastErasing() == 0 {
		t.Error("Expected voxels to be restored")
	}
	if e.Records() != 1 {
		t.Errorf("Expected 1 record left, got %d", e.Records())
	}
	if e.maskAt(8, 8, 8) != tiling.Visible {
		t.Error("Expected the latest erase to be undone")
	}
	if e.maskAt(3, 3, 3) != tiling.Erased {
		t.Error("Expected the older erase to remain")
	}

	// the last record is undone too, then the next undo resets
	e.UndoLastErasing()
	if e.Records() != 0 {
		t.Errorf("Expected empty history, got %d", e.Records())
	}
	e.UndoLastErasing()
	assertAllVisible(t, e)
}

// TestUndoEmptyHistoryResets verifies the reset fallback
func TestUndoEmptyHistoryResets(t *testing.T) {
	e := newTestEraser(t, 4, 4, 4, DefaultOptions(), uniform(200))
	for i := range e.mask {
		e.mask[i] = tiling.Erased
	}

	e.UndoLastErasing()
	assertAllVisible(t, e)
}

// TestResetBufferTextureCPU verifies the reset makes everything visible and keeps history
func TestResetBufferTextureCPU(t *testing.T) {
	e := newTestEraser(t, 6, 6, 6, DefaultOptions(), uniform(200))
	e.ErasePixels(startGesture(Point{3, 3, 3}))
	e.ClearDirty()

	e.ResetBufferTextureCPU()

	assertAllVisible(t, e)
	if e.Records() != 1 {
		t.Errorf("Expected history to be kept, got %d records", e.Records())
	}
	if !e.Dirty() {
		t.Error("Expected mask to be marked dirty after reset")
	}
}
