// Package plane maps a near-planar 3D point set to a canonical 2D working
// plane (z = 0 after rotation) and back.
package plane

import (
	"errors"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// RelPlanarTol is the out-of-plane tolerance relative to the extent of the
// aligned geometry.
const RelPlanarTol = 1e-4

// identityTol is how close the fitted normal must be to +Z for the
// rotation to be skipped entirely.
const identityTol = 1e-12

// ErrDegenerate is returned when no plane can be derived from the points
// (fewer than three points, or all points collinear).
var ErrDegenerate = errors.New("plane: degenerate point set")

// Aligner rotates a fitted plane onto the XY plane. It is immutable and
// safe for concurrent use.
type Aligner struct {
	normal   r3.Vec
	rot      r3.Rotation
	inv      r3.Rotation
	identity bool
	offset   float64
}

// Identity returns an aligner for geometry already lying in the XY plane
// at z = offset.
func Identity(offset float64) *Aligner {
	return &Aligner{normal: r3.Vec{Z: 1}, identity: true, offset: offset}
}

// Fit derives an aligner from a representative set of points. The plane
// normal is the least-squares fit (smallest right singular vector of the
// centred points); if that fails it falls back to the first non-collinear
// three-point normal.
func Fit(points []v3.Vec) (*Aligner, error) {
	if len(points) < 3 {
		return nil, ErrDegenerate
	}
	n, ok := fitNormal(points)
	if !ok {
		n, ok = threePointNormal(points)
		if !ok {
			return nil, ErrDegenerate
		}
	}
	if n.Z < 0 {
		n = r3.Scale(-1, n)
	}

	a := &Aligner{normal: n}
	if 1-n.Z <= identityTol {
		a.identity = true
		a.normal = r3.Vec{Z: 1}
	} else {
		z := r3.Vec{Z: 1}
		axis := r3.Unit(r3.Cross(n, z))
		angle := math.Acos(math.Max(-1, math.Min(1, r3.Dot(n, z))))
		a.rot = r3.NewRotation(angle, axis)
		a.inv = r3.NewRotation(-angle, axis)
	}
	_, a.offset = a.rotate(points[0])
	return a, nil
}

// fitNormal returns the least-squares plane normal via SVD.
func fitNormal(points []v3.Vec) (r3.Vec, bool) {
	var c r3.Vec
	for _, p := range points {
		c = r3.Add(c, toR3(p))
	}
	c = r3.Scale(1/float64(len(points)), c)

	data := make([]float64, 0, 3*len(points))
	for _, p := range points {
		d := r3.Sub(toR3(p), c)
		data = append(data, d.X, d.Y, d.Z)
	}
	a := mat.NewDense(len(points), 3, data)

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return r3.Vec{}, false
	}
	values := svd.Values(nil)
	if len(values) < 3 || values[0] == 0 || values[1] <= 1e-12*values[0] {
		// All points coincide or lie on a line.
		return r3.Vec{}, false
	}
	var v mat.Dense
	svd.VTo(&v)
	n := r3.Vec{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}
	if l := r3.Norm(n); l == 0 || math.IsNaN(l) {
		return r3.Vec{}, false
	}
	return r3.Unit(n), true
}

// threePointNormal returns the normal of the first non-collinear triple
// anchored at points[0].
func threePointNormal(points []v3.Vec) (r3.Vec, bool) {
	p0 := toR3(points[0])
	for i := 1; i < len(points); i++ {
		e1 := r3.Sub(toR3(points[i]), p0)
		if r3.Norm(e1) == 0 {
			continue
		}
		for j := i + 1; j < len(points); j++ {
			e2 := r3.Sub(toR3(points[j]), p0)
			n := r3.Cross(e1, e2)
			if r3.Norm(n) > 1e-12*r3.Norm(e1)*r3.Norm(e2) {
				return r3.Unit(n), true
			}
		}
	}
	return r3.Vec{}, false
}

func (a *Aligner) rotate(p v3.Vec) (v2.Vec, float64) {
	if a.identity {
		return v2.Vec{X: p.X, Y: p.Y}, p.Z
	}
	q := a.rot.Rotate(toR3(p))
	return v2.Vec{X: q.X, Y: q.Y}, q.Z
}

// Normal returns the unit normal of the fitted plane (+Z hemisphere).
func (a *Aligner) Normal() v3.Vec {
	return v3.Vec{X: a.normal.X, Y: a.normal.Y, Z: a.normal.Z}
}

// IsIdentity reports whether the aligner leaves x and y untouched.
func (a *Aligner) IsIdentity() bool {
	return a.identity
}

// Align maps p into the working plane. It returns the 2D point and the
// residual out-of-plane offset.
func (a *Aligner) Align(p v3.Vec) (v2.Vec, float64) {
	q, z := a.rotate(p)
	return q, z - a.offset
}

// AlignAll aligns a polyline and returns the 2D points and the largest
// absolute residual.
func (a *Aligner) AlignAll(points []v3.Vec) ([]v2.Vec, float64) {
	out := make([]v2.Vec, len(points))
	maxRes := 0.0
	for i, p := range points {
		var z float64
		out[i], z = a.Align(p)
		maxRes = math.Max(maxRes, math.Abs(z))
	}
	return out, maxRes
}

// Restore maps a 2D working-plane point with residual z back to 3D. It is
// the inverse of Align.
func (a *Aligner) Restore(p v2.Vec, z float64) v3.Vec {
	if a.identity {
		return v3.Vec{X: p.X, Y: p.Y, Z: z + a.offset}
	}
	q := a.inv.Rotate(r3.Vec{X: p.X, Y: p.Y, Z: z + a.offset})
	return v3.Vec{X: q.X, Y: q.Y, Z: q.Z}
}

// RestoreAll restores an in-plane polyline (residual 0).
func (a *Aligner) RestoreAll(points []v2.Vec) []v3.Vec {
	out := make([]v3.Vec, len(points))
	for i, p := range points {
		out[i] = a.Restore(p, 0)
	}
	return out
}

// PlanarTolerance is the largest residual accepted for geometry of the
// given extent.
func PlanarTolerance(extent float64) float64 {
	return RelPlanarTol * math.Max(extent, 1)
}

func toR3(p v3.Vec) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}
