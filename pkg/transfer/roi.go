package transfer

import (
	"fmt"
	"image/color"
)

// Default range of ROI ids shown when a segmented volume is loaded
const (
	defaultFirstROI = 100
	defaultLastROI  = 240
)

// Selection marks which ROI ids of a segmented volume are visible
type Selection struct {
	rgba [Size * bpp]byte
}

// NewSelection returns the default selection, ids 100..240 visible
func NewSelection() *Selection {
	s := &Selection{}
	for id := 0; id < Size; id++ {
		s.Select(byte(id), id >= defaultFirstROI && id <= defaultLastROI)
	}
	return s
}

// Select shows or hides one ROI
func (s *Selection) Select(id byte, visible bool) {
	if visible {
		s.rgba[int(id)*bpp] = 255
	} else {
		s.rgba[int(id)*bpp] = 0
	}
}

// SetAll replaces the selection. Ids past the end of selected are hidden.
func (s *Selection) SetAll(selected []bool) {
	for id := 0; id < Size; id++ {
		s.Select(byte(id), id < len(selected) && selected[id])
	}
}

// Selected reports whether an ROI is visible
func (s *Selection) Selected(id byte) bool {
	return s.rgba[int(id)*bpp] != 0
}

// RGBA returns the selection as texture bytes
func (s *Selection) RGBA() []byte {
	out := make([]byte, len(s.rgba))
	copy(out, s.rgba[:])
	return out
}

// ColorMap holds one RGBA colour per ROI id
type ColorMap struct {
	rgba [Size * bpp]byte
}

// NewColorMap builds a colour map from 256 RGBA entries. With nil every ROI
// is opaque red.
func NewColorMap(colors []byte) (*ColorMap, error) {
	m := &ColorMap{}
	if colors == nil {
		for id := 0; id < Size; id++ {
			copy(m.rgba[id*bpp:], []byte{255, 0, 0, 255})
		}
		return m, nil
	}
	if len(colors) != len(m.rgba) {
		return nil, fmt.Errorf("roi colour map has %d bytes, expected %d", len(colors), len(m.rgba))
	}
	copy(m.rgba[:], colors)
	return m, nil
}

// Color returns the colour of an ROI
func (m *ColorMap) Color(id byte) color.RGBA {
	i := int(id) * bpp
	return color.RGBA{R: m.rgba[i], G: m.rgba[i+1], B: m.rgba[i+2], A: m.rgba[i+3]}
}
