package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"

	"voxeleraser/pkg/tiling"
	"voxeleraser/pkg/transfer"
)

// Viewer renders 2D slices of a tiled volume with the erase mask applied.
// Erased voxels render black.
type Viewer struct {
	layout tiling.Layout

	// intensity and mask are tiled buffers shared with the eraser
	intensity []byte
	mask      []byte

	// table maps intensities to colours. Nil renders grayscale.
	table *transfer.Table

	// optional ROI overlay for segmented volumes
	roi       []byte
	selection *transfer.Selection
	roiColors *transfer.ColorMap
}

// Stats summarises the visible part of a masked volume
type Stats struct {
	Visible int
	Erased  int

	// MeanIntensity and StdDevIntensity cover visible voxels only
	MeanIntensity   float64
	StdDevIntensity float64
}

// ErasedFraction is the share of voxels that are erased
func (s Stats) ErasedFraction() float64 {
	total := s.Visible + s.Erased
	if total == 0 {
		return 0
	}
	return float64(s.Erased) / float64(total)
}

// NewViewer creates a slice viewer over tiled intensity and mask buffers
func NewViewer(layout tiling.Layout, intensity, mask []byte, table *transfer.Table) *Viewer {
	return &Viewer{
		layout:    layout,
		intensity: intensity,
		mask:      mask,
		table:     table,
	}
}

// SetROI overlays a tiled ROI id plane. Voxels whose ROI is selected take the
// ROI colour instead of the transfer function colour.
func (v *Viewer) SetROI(roi []byte, selection *transfer.Selection, colors *transfer.ColorMap) {
	v.roi = roi
	v.selection = selection
	v.roiColors = colors
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	l := v.layout
	var width, height int
	var voxel func(u, w int) (int, int, int)

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= l.XDim {
			return nil, fmt.Errorf("position %d exceeds width %d", position, l.XDim)
		}
		width, height = l.ZDim, l.YDim
		voxel = func(u, w int) (int, int, int) { return position, w, u }

	case "y", "Y":
		// XZ plane
		if position >= l.YDim {
			return nil, fmt.Errorf("position %d exceeds height %d", position, l.YDim)
		}
		width, height = l.XDim, l.ZDim
		voxel = func(u, w int) (int, int, int) { return u, position, w }

	case "z", "Z":
		// XY plane
		if position >= l.ZDim {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, l.ZDim)
		}
		width, height = l.XDim, l.YDim
		voxel = func(u, w int) (int, int, int) { return u, w, position }

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	rect := image.Rect(0, 0, width, height)
	if v.table == nil && v.roi == nil {
		img := image.NewGray(rect)
		for w := 0; w < height; w++ {
			for u := 0; u < width; u++ {
				x, y, z := voxel(u, w)
				off := l.Offset(x, y, z)
				if v.mask[off] != tiling.Erased {
					img.SetGray(u, w, color.Gray{Y: v.intensity[off]})
				}
			}
		}
		return img, nil
	}

	img := image.NewRGBA(rect)
	for w := 0; w < height; w++ {
		for u := 0; u < width; u++ {
			x, y, z := voxel(u, w)
			img.SetRGBA(u, w, v.colorAt(l.Offset(x, y, z)))
		}
	}
	return img, nil
}

// colorAt composites the voxel colour over black
func (v *Viewer) colorAt(off int) color.RGBA {
	black := color.RGBA{A: 255}
	if v.mask[off] == tiling.Erased {
		return black
	}

	var c color.RGBA
	switch {
	case v.roi != nil && v.selection != nil && v.roiColors != nil && v.selection.Selected(v.roi[off]):
		c = v.roiColors.Color(v.roi[off])
	case v.table != nil:
		c = v.table.Color(v.intensity[off])
	default:
		val := v.intensity[off]
		return color.RGBA{R: val, G: val, B: val, A: 255}
	}

	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: 255,
	}
}

// Stats counts visible and erased voxels and summarises visible intensities
func (v *Viewer) Stats() Stats {
	l := v.layout
	var s Stats
	values := make([]float64, 0, l.Voxels())

	for z := 0; z < l.ZDim; z++ {
		for y := 0; y < l.YDim; y++ {
			for x := 0; x < l.XDim; x++ {
				off := l.Offset(x, y, z)
				if v.mask[off] == tiling.Erased {
					s.Erased++
					continue
				}
				s.Visible++
				values = append(values, float64(v.intensity[off]))
			}
		}
	}

	if len(values) > 1 {
		s.MeanIntensity, s.StdDevIntensity = stat.MeanStdDev(values, nil)
	} else if len(values) == 1 {
		s.MeanIntensity = values[0]
	}
	return s
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.layout.XDim
	case "y", "Y":
		maxPos = v.layout.YDim
	case "z", "Z":
		maxPos = v.layout.ZDim
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return fmt.Errorf("failed to save %s: %w", filename, err)
		}
	}

	return nil
}
