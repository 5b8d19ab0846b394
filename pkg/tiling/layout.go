// Package tiling maps 3D voxel coordinates onto the 2D tiled texture layout
// used to upload volumes and masks to the GPU.
//
// A volume of xDim × yDim × zDim voxels is packed into a square grid of
// zDimSqrt × zDimSqrt tiles, each tile holding one Z slice of xDim × yDim
// texels. Slice z lands in tile row z/zDimSqrt, column z%zDimSqrt.
package tiling

import (
	"fmt"
	"math"
)

// Visible and Erased are the two mask values.
const (
	Visible byte = 255
	Erased  byte = 0
)

// Layout describes a tiled 3D texture
type Layout struct {
	XDim, YDim, ZDim int

	// ZDimSqrt is the number of tiles along each side of the texture
	ZDimSqrt int

	// XTex, YTex are the texture dimensions in texels
	XTex, YTex int
}

// NewLayout creates the tiled layout for a volume of the given dimensions
func NewLayout(xDim, yDim, zDim int) (Layout, error) {
	if xDim <= 0 || yDim <= 0 || zDim <= 0 {
		return Layout{}, fmt.Errorf("invalid volume dimensions %dx%dx%d", xDim, yDim, zDim)
	}

	zDimSqrt := int(math.Ceil(math.Sqrt(float64(zDim))))
	for zDimSqrt*zDimSqrt < zDim {
		zDimSqrt++
	}

	return Layout{
		XDim:     xDim,
		YDim:     yDim,
		ZDim:     zDim,
		ZDimSqrt: zDimSqrt,
		XTex:     xDim * zDimSqrt,
		YTex:     yDim * zDimSqrt,
	}, nil
}

// Len returns the number of texels in the tiled texture
func (l Layout) Len() int {
	return l.XTex * l.YTex
}

// Voxels returns the number of voxels in the volume
func (l Layout) Voxels() int {
	return l.XDim * l.YDim * l.ZDim
}

// Contains reports whether (x, y, z) lies inside the volume
func (l Layout) Contains(x, y, z int) bool {
	return x >= 0 && x < l.XDim &&
		y >= 0 && y < l.YDim &&
		z >= 0 && z < l.ZDim
}

// Offset returns the texel offset of voxel (x, y, z). The caller is
// responsible for bounds; use Contains first.
func (l Layout) Offset(x, y, z int) int {
	yTile := z / l.ZDimSqrt
	xTile := z - l.ZDimSqrt*yTile
	yTileOff := yTile * l.YDim * l.XTex
	xTileOff := xTile * l.XDim

	return yTileOff + y*l.XTex + xTileOff + x
}

// FlatOffset returns the index of (x, y, z) in a flat x-fastest volume
func (l Layout) FlatOffset(x, y, z int) int {
	return x + y*l.XDim + z*l.XDim*l.YDim
}

// NewMask allocates a fully visible mask for the layout
func (l Layout) NewMask() []byte {
	mask := make([]byte, l.Len())
	for i := range mask {
		mask[i] = Visible
	}
	return mask
}

// Pack copies a flat one-byte-per-voxel volume into tiled order.
// Texels of unused tiles are left zero.
func (l Layout) Pack(flat []byte) ([]byte, error) {
	if len(flat) != l.Voxels() {
		return nil, fmt.Errorf("volume has %d bytes, expected %d", len(flat), l.Voxels())
	}

	tiled := make([]byte, l.Len())
	for z := 0; z < l.ZDim; z++ {
		for y := 0; y < l.YDim; y++ {
			src := l.FlatOffset(0, y, z)
			dst := l.Offset(0, y, z)
			copy(tiled[dst:dst+l.XDim], flat[src:src+l.XDim])
		}
	}
	return tiled, nil
}

// PackRGBA splits a four-bytes-per-voxel volume into tiled intensity and
// ROI planes. Channel 0 carries intensity, channel 3 the ROI id.
func (l Layout) PackRGBA(flat []byte) (intensity, roi []byte, err error) {
	const bpp = 4
	if len(flat) != l.Voxels()*bpp {
		return nil, nil, fmt.Errorf("volume has %d bytes, expected %d", len(flat), l.Voxels()*bpp)
	}

	intensity = make([]byte, l.Len())
	roi = make([]byte, l.Len())
	for z := 0; z < l.ZDim; z++ {
		for y := 0; y < l.YDim; y++ {
			for x := 0; x < l.XDim; x++ {
				src := l.FlatOffset(x, y, z) * bpp
				dst := l.Offset(x, y, z)
				intensity[dst] = flat[src]
				roi[dst] = flat[src+3]
			}
		}
	}
	return intensity, roi, nil
}

// Unpack is the inverse of Pack
func (l Layout) Unpack(tiled []byte) ([]byte, error) {
	if len(tiled) != l.Len() {
		return nil, fmt.Errorf("texture has %d bytes, expected %d", len(tiled), l.Len())
	}

	flat := make([]byte, l.Voxels())
	for z := 0; z < l.ZDim; z++ {
		for y := 0; y < l.YDim; y++ {
			src := l.Offset(0, y, z)
			dst := l.FlatOffset(0, y, z)
			copy(flat[dst:dst+l.XDim], tiled[src:src+l.XDim])
		}
	}
	return flat, nil
}
