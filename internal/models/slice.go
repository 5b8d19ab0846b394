package models

import (
	"image"
)

// Slice represents a single scan slice with metadata
type Slice struct {
	// Image is the actual slice image data
	Image image.Image

	// Index is the position of this slice in the sequence
	Index int

	// Filename is the original filename of the slice
	Filename string
}

// Volume represents a scan volume of 8-bit voxels
type Volume struct {
	// Data is the volume as a 1D array, x fastest: x + y*Width + z*Width*Height.
	// Each voxel takes Channels bytes.
	Data []byte

	// Channels is 1 for plain scans and 4 for segmented RGBA volumes, where
	// channel 0 is intensity and channel 3 the ROI id
	Channels int

	// Width is the width of the volume in voxels
	Width int

	// Height is the height of the volume in voxels
	Height int

	// Depth is the depth of the volume in voxels
	Depth int

	// VoxelSize is the physical size of each voxel in mm
	VoxelSize struct {
		X, Y, Z float64
	}
}

// At returns the intensity of voxel (x, y, z)
func (v *Volume) At(x, y, z int) byte {
	return v.Data[(x+y*v.Width+z*v.Width*v.Height)*v.Channels]
}
