// Package transfer builds the lookup tables the volume renderer samples:
// the intensity transfer function and the ROI selection and colour maps.
package transfer

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Size is the number of entries in every table
const Size = 256

const bpp = 4

// Table is a 256-entry RGBA transfer function
type Table struct {
	rgba [Size * bpp]byte

	// control point colours in [0,1]
	ctrl [][3]float64
}

// DefaultTable returns the built-in ramp: faint red soft tissue followed by
// an opaque bone tint.
func DefaultTable() *Table {
	const (
		scale  = 255.0
		scale1 = 12.0
		scale2 = 3.0
	)
	a1 := 0.09 * scale
	a2 := 0.2 * scale
	a3 := 0.3 * scale
	a4 := 0.43 * scale
	a5 := 0.53 * scale

	t := &Table{}
	alpha := 0.0
	for pix := 0; pix < Size; pix++ {
		p := float64(pix)
		// alpha holds its last value between ramps
		if p > a1 && p < a2 {
			alpha = (p - a1) / (a2 - a1)
		}
		if p > a2 && p < a3 {
			alpha = (a3 - p) / (a3 - a2)
		}
		if p > a4 && p < a5 {
			alpha = (p - a4) / (a5 - a4)
		}
		if p > a5 {
			alpha = 1
		}

		if p > a4 {
			t.set(pix, 255, 210, 180, scale*alpha/scale2)
		} else {
			t.set(pix, scale, 0, 0, scale*alpha/scale1)
		}
	}
	return t
}

func (t *Table) set(pix int, r, g, b, a float64) {
	t.rgba[pix*bpp+0] = toByte(r)
	t.rgba[pix*bpp+1] = toByte(g)
	t.rgba[pix*bpp+2] = toByte(b)
	t.rgba[pix*bpp+3] = toByte(a)
}

// toByte truncates like a typed-array store, clamped to the byte range
func toByte(v float64) byte {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

// SetColors sets the control point colours from hex strings such as "#ff8800"
func (t *Table) SetColors(hex []string) error {
	ctrl := make([][3]float64, len(hex))
	for i, h := range hex {
		c, err := ParseHex(h)
		if err != nil {
			return fmt.Errorf("control point %d: %w", i, err)
		}
		ctrl[i] = [3]float64{float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255}
	}
	t.ctrl = ctrl
	return nil
}

// ParseHex parses "#rrggbb", "0xrrggbb" or "rrggbb"
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "#"), "0x")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Update rewrites the table between control points. Intensities are in
// [0,255] and ascending, opacities in [0,1]. Colours come from SetColors.
func (t *Table) Update(intensities, opacities []float64) error {
	if len(intensities) != len(opacities) {
		return fmt.Errorf("got %d intensities and %d opacities", len(intensities), len(opacities))
	}
	if len(t.ctrl) < len(intensities) {
		return fmt.Errorf("need %d control colours, have %d", len(intensities), len(t.ctrl))
	}

	for cur := 0; cur < len(intensities)-1; cur++ {
		start := int(math.Floor(intensities[cur]))
		end := int(math.Floor(intensities[cur+1]))
		c0, c1 := t.ctrl[cur], t.ctrl[cur+1]

		for pix := max(start, 0); pix < end && pix < Size; pix++ {
			lerp := float64(pix-start) / float64(end-start)
			a := opacities[cur+1]*lerp + (1-lerp)*opacities[cur]
			t.set(pix,
				(c0[0]+(c1[0]-c0[0])*lerp)*255,
				(c0[1]+(c1[1]-c0[1])*lerp)*255,
				(c0[2]+(c1[2]-c0[2])*lerp)*255,
				a*255)
		}
	}
	return nil
}

// Color returns the table entry for an intensity
func (t *Table) Color(v byte) color.RGBA {
	i := int(v) * bpp
	return color.RGBA{R: t.rgba[i], G: t.rgba[i+1], B: t.rgba[i+2], A: t.rgba[i+3]}
}

// RGBA returns a copy of the table as texture bytes
func (t *Table) RGBA() []byte {
	out := make([]byte, len(t.rgba))
	copy(out, t.rgba[:])
	return out
}
