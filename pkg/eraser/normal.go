package eraser

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// estimateNormal returns the Gaussian-weighted intensity gradient around t,
// pointing away from dense material. The neighbourhood is clipped to the
// volume. The result is not normalized and may be zero.
func (e *Eraser) estimateNormal(t Point) r3.Vec {
	r := e.opts.GaussRadius
	sigma2 := e.opts.Sigma * e.opts.Sigma

	var n r3.Vec
	normFactor := 0.0
	for k := -min(r, t.Z); k <= min(r, e.layout.ZDim-1-t.Z); k++ {
		for j := -min(r, t.Y); j <= min(r, e.layout.YDim-1-t.Y); j++ {
			for i := -min(r, t.X); i <= min(r, e.layout.XDim-1-t.X); i++ {
				off := e.layout.Offset(t.X+i, t.Y+j, t.Z+k)

				d2 := float64(i*i + j*j + k*k)
				gauss := 1 - math.Exp(-d2/(2*sigma2))
				normFactor += gauss

				v := float64(e.intensity[off]) * gauss
				n.X += v * (-float64(i) / sigma2)
				n.Y += v * (-float64(j) / sigma2)
				n.Z += v * (-float64(k) / sigma2)
			}
		}
	}

	if normFactor == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/normFactor, n)
}

// cylinderFrame returns the rotation taking world offsets into the local
// frame of a cylinder whose +Z axis points along -normal.
func cylinderFrame(normal r3.Vec) r3.Rotation {
	axis := r3.Scale(-1, normal)
	z := r3.Vec{Z: 1}

	rot := r3.Cross(axis, z)
	cos := r3.Dot(axis, z)
	if r3.Norm(rot) < 1e-9 {
		if cos > 0 {
			return r3.NewRotation(0, z)
		}
		return r3.NewRotation(math.Pi, r3.Vec{X: 1})
	}
	return r3.NewRotation(math.Acos(clamp(cos, -1, 1)), rot)
}

// tangentialBack is the lower axial bound used in tangential mode. The more
// oblique the view is to the surface, the further the cylinder reaches back.
func tangentialBack(viewDir, gauss r3.Vec, radius float64) float64 {
	angle := angleBetween(viewDir, gauss)
	return -math.Round(math.Abs(math.Tan(angle)) * radius)
}

func angleBetween(a, b r3.Vec) float64 {
	if r3.Norm(a) == 0 || r3.Norm(b) == 0 {
		return 0
	}
	return math.Acos(clamp(r3.Cos(a, b), -1, 1))
}

// unit normalizes v, falling back to -Z for the zero vector
func unit(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return r3.Vec{Z: -1}
	}
	return r3.Unit(v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
