// Package ring turns polylines into closed 2D rings and packs them into an
// immutable RingSet sharing one plane alignment.
package ring

import (
	"math"
	"slices"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/dhconnelly/rtreego"

	"github.com/tyhts0829/grafix-sub000/pkg/plane"
)

// Ring is a closed polygon of at least three distinct vertices. The closing
// edge runs from the last vertex back to the first; the first vertex is not
// repeated.
type Ring struct {
	Points []v2.Vec
	Box    sdf.Box2
	Source int // index of the originating polyline
}

// Edge returns the endpoints of edge i (from Points[i] to the next vertex).
func (r *Ring) Edge(i int) (v2.Vec, v2.Vec) {
	j := i + 1
	if j == len(r.Points) {
		j = 0
	}
	return r.Points[i], r.Points[j]
}

// Set is an immutable ordered collection of rings sharing one alignment.
type Set struct {
	Rings   []Ring
	Aligner *plane.Aligner
	box     sdf.Box2
	index   *rtreego.Rtree
}

// spatial wraps a ring index for the R-tree.
type spatial struct {
	idx  int
	rect rtreego.Rect
}

func (s *spatial) Bounds() rtreego.Rect { return s.rect }

// Extract builds a RingSet from aligned polylines. A polyline becomes a ring
// when it has at least three vertices and its endpoints lie within tol of
// each other; an explicit closing vertex equal to the first is dropped and
// the closing edge is implied. Polylines
// failing the criteria are silently omitted, and an empty set is valid.
func Extract(polys [][]v2.Vec, tol float64, al *plane.Aligner) *Set {
	if math.IsNaN(tol) || tol < 0 {
		tol = 0
	}
	var rings []Ring
	for i, p := range polys {
		if len(p) < 3 {
			continue
		}
		if p[0].Sub(p[len(p)-1]).Length() > tol {
			continue
		}
		pts := dedupe(p)
		if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
			pts = pts[:len(pts)-1]
		}
		if len(pts) < 3 {
			continue
		}
		rings = append(rings, Ring{Points: pts, Box: boundingBox(pts), Source: i})
	}
	return NewSet(rings, al)
}

// NewSet packs rings into a set and indexes their bounding boxes.
func NewSet(rings []Ring, al *plane.Aligner) *Set {
	s := &Set{Rings: rings, Aligner: al}
	if len(rings) == 0 {
		return s
	}
	s.box = rings[0].Box
	objs := make([]rtreego.Spatial, len(rings))
	for i := range rings {
		s.box = union(s.box, rings[i].Box)
		objs[i] = &spatial{idx: i, rect: toRect(rings[i].Box)}
	}
	s.index = rtreego.NewTree(2, 2, 8, objs...)
	return s
}

// Len returns the number of rings.
func (s *Set) Len() int {
	return len(s.Rings)
}

// IsEmpty reports whether the set holds no rings.
func (s *Set) IsEmpty() bool {
	return len(s.Rings) == 0
}

// BoundingBox returns the combined bounding box of all rings.
func (s *Set) BoundingBox() sdf.Box2 {
	return s.box
}

// Extent returns the diagonal length of the combined bounding box.
func (s *Set) Extent() float64 {
	return s.box.Max.Sub(s.box.Min).Length()
}

// PointCount returns the total number of ring vertices.
func (s *Set) PointCount() int {
	n := 0
	for i := range s.Rings {
		n += len(s.Rings[i].Points)
	}
	return n
}

// Centroid returns the mean of all ring vertices.
func (s *Set) Centroid() v2.Vec {
	var c v2.Vec
	n := 0
	for i := range s.Rings {
		for _, p := range s.Rings[i].Points {
			c = c.Add(p)
			n++
		}
	}
	if n == 0 {
		return c
	}
	return c.MulScalar(1 / float64(n))
}

// Within appends to dst the indices of rings whose bounding boxes touch the
// box [min, max], in ascending ring order.
func (s *Set) Within(dst []int, min, max v2.Vec) []int {
	if s.index == nil {
		return dst
	}
	// Pad so boxes that only touch the query still intersect it.
	pad := 1e-9 * math.Max(1, s.Extent())
	r, err := rtreego.NewRectFromPoints(
		rtreego.Point{min.X - pad, min.Y - pad},
		rtreego.Point{max.X + pad, max.Y + pad},
	)
	if err != nil {
		return dst
	}
	start := len(dst)
	for _, obj := range s.index.SearchIntersect(r) {
		dst = append(dst, obj.(*spatial).idx)
	}
	slices.Sort(dst[start:])
	return dst
}

// Nearest returns the index of a ring whose bounding box is closest to p.
func (s *Set) Nearest(p v2.Vec) int {
	if s.index == nil {
		return -1
	}
	obj := s.index.NearestNeighbor(rtreego.Point{p.X, p.Y})
	if obj == nil {
		return 0
	}
	return obj.(*spatial).idx
}

// BoxDistance2 returns the squared distance from p to a box (0 inside).
func BoxDistance2(b sdf.Box2, p v2.Vec) float64 {
	dx := math.Max(0, math.Max(b.Min.X-p.X, p.X-b.Max.X))
	dy := math.Max(0, math.Max(b.Min.Y-p.Y, p.Y-b.Max.Y))
	return dx*dx + dy*dy
}

// dedupe drops consecutive duplicate vertices.
func dedupe(p []v2.Vec) []v2.Vec {
	out := make([]v2.Vec, 0, len(p))
	for i, q := range p {
		if i > 0 && q == out[len(out)-1] {
			continue
		}
		out = append(out, q)
	}
	return out
}

func boundingBox(pts []v2.Vec) sdf.Box2 {
	b := sdf.Box2{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

func union(a, b sdf.Box2) sdf.Box2 {
	return sdf.Box2{Min: a.Min.Min(b.Min), Max: a.Max.Max(b.Max)}
}

// toRect converts a box to an R-tree rectangle, padded by a hair so
// degenerate boxes keep a positive extent.
func toRect(b sdf.Box2) rtreego.Rect {
	const eps = 1e-12
	r, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min.X - eps, b.Min.Y - eps},
		rtreego.Point{b.Max.X + eps, b.Max.Y + eps},
	)
	if err != nil {
		panic("ring: invalid bounding box: " + err.Error())
	}
	return r
}
