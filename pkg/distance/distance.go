// Package distance evaluates the signed distance (and its gradient) from
// query points to a RingSet. Distances are negative inside the even-odd
// union of the rings, positive outside and exactly zero on a ring.
package distance

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/tyhts0829/grafix-sub000/internal/parallel"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

// nearest records the closest boundary point found so far.
type nearest struct {
	d2   float64
	q    v2.Vec
	edge v2.Vec // direction of the edge holding q
}

// Eval returns the signed distance from p to the ring set. An empty set
// yields +Inf.
func Eval(s *ring.Set, p v2.Vec) float64 {
	if s.IsEmpty() {
		return math.Inf(1)
	}
	n := closest(s, p)
	if n.d2 == 0 {
		return 0
	}
	d := math.Sqrt(n.d2)
	if Inside(s, p) {
		return -d
	}
	return d
}

// EvalGrad returns the signed distance and its gradient at p. The gradient
// is a unit vector pointing toward increasing signed distance (outward). On
// the boundary it is the outward normal of the nearest edge. An empty set
// yields +Inf and a zero gradient.
func EvalGrad(s *ring.Set, p v2.Vec) (float64, v2.Vec) {
	if s.IsEmpty() {
		return math.Inf(1), v2.Vec{}
	}
	n := closest(s, p)
	if n.d2 == 0 {
		return 0, boundaryNormal(s, p, n.edge)
	}
	d := math.Sqrt(n.d2)
	g := p.Sub(n.q).MulScalar(1 / d)
	if Inside(s, p) {
		return -d, g.MulScalar(-1)
	}
	return d, g
}

// Inside reports whether p lies inside the even-odd union of the rings.
func Inside(s *ring.Set, p v2.Vec) bool {
	if s.IsEmpty() {
		return false
	}
	var buf [16]int
	box := s.BoundingBox()
	cands := s.Within(buf[:0], p, v2.Vec{X: math.Max(box.Max.X, p.X), Y: p.Y})
	inside := false
	for _, i := range cands {
		if crossings(&s.Rings[i], p) {
			inside = !inside
		}
	}
	return inside
}

// RingDistance returns the unsigned distance from p to a single ring.
func RingDistance(r *ring.Ring, p v2.Vec) float64 {
	n := nearest{d2: math.Inf(1)}
	ringNearest(r, p, &n)
	return math.Sqrt(n.d2)
}

// Batch evaluates the signed distance at every point. The work is split
// across workers; the result does not depend on the worker count.
func Batch(s *ring.Set, pts []v2.Vec, workers int) []float64 {
	out := make([]float64, len(pts))
	parallel.For(len(pts), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = Eval(s, pts[i])
		}
	})
	return out
}

// BatchGrad is Batch with gradients.
func BatchGrad(s *ring.Set, pts []v2.Vec, workers int) ([]float64, []v2.Vec) {
	dist := make([]float64, len(pts))
	grad := make([]v2.Vec, len(pts))
	parallel.For(len(pts), workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dist[i], grad[i] = EvalGrad(s, pts[i])
		}
	})
	return dist, grad
}

// closest finds the nearest boundary point. The ring whose box is nearest
// gives an upper bound r; only rings whose boxes intersect the square of
// half-size r around p can beat it. Candidates are visited in ascending
// ring order so ties keep the lowest ring and edge index.
func closest(s *ring.Set, p v2.Vec) nearest {
	k := s.Nearest(p)
	bound := nearest{d2: math.Inf(1)}
	ringNearest(&s.Rings[k], p, &bound)
	r := math.Sqrt(bound.d2)

	var buf [16]int
	cands := s.Within(buf[:0], p.Sub(v2.Vec{X: r, Y: r}), p.Add(v2.Vec{X: r, Y: r}))
	n := nearest{d2: math.Inf(1)}
	for _, i := range cands {
		rg := &s.Rings[i]
		if ring.BoxDistance2(rg.Box, p) > n.d2 {
			continue
		}
		ringNearest(rg, p, &n)
	}
	if math.IsInf(n.d2, 1) {
		// The index missed every candidate; fall back to the bound.
		return bound
	}
	return n
}

// ringNearest updates n with the closest point of r's edges to p.
// Zero-length edges are skipped.
func ringNearest(r *ring.Ring, p v2.Vec, n *nearest) {
	for i := range r.Points {
		a, b := r.Edge(i)
		ab := b.Sub(a)
		l2 := ab.Dot(ab)
		if l2 == 0 {
			continue
		}
		ap := p.Sub(a)
		t := ap.Dot(ab) / l2
		var d2 float64
		var q v2.Vec
		switch {
		case t <= 0:
			q = a
			d2 = ap.Dot(ap)
		case t >= 1:
			q = b
			bp := p.Sub(b)
			d2 = bp.Dot(bp)
		default:
			q = a.Add(ab.MulScalar(t))
			c := cross(ab, ap)
			d2 = c * c / l2
		}
		if d2 < n.d2 {
			n.d2 = d2
			n.q = q
			n.edge = ab
		}
	}
}

// crossings returns the parity of crossings between r and the ray from p
// toward +x.
func crossings(r *ring.Ring, p v2.Vec) bool {
	inside := false
	for i := range r.Points {
		a, b := r.Edge(i)
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// boundaryNormal returns the outward unit normal of an edge direction at a
// boundary point p: of the two perpendiculars, the one whose probe lands
// outside.
func boundaryNormal(s *ring.Set, p, edge v2.Vec) v2.Vec {
	l := edge.Length()
	if l == 0 {
		return v2.Vec{}
	}
	n := v2.Vec{X: edge.Y / l, Y: -edge.X / l}
	h := 1e-7 * math.Max(1, s.Extent())
	if Inside(s, p.Add(n.MulScalar(h))) {
		return n.MulScalar(-1)
	}
	return n
}

func cross(a, b v2.Vec) float64 {
	return a.X*b.Y - a.Y*b.X
}
