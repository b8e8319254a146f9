// Package lineart defines the generic line-art boundary representation:
// a flat vertex buffer plus a monotone offsets buffer delimiting individual
// polylines. It is the only type that crosses the engine's external boundary.
package lineart

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// LineArt is a collection of open or closed polylines sharing one vertex
// buffer. Polyline i is Coords[Offsets[i]:Offsets[i+1]].
type LineArt struct {
	Coords  []v3.Vec `json:"coords"`
	Offsets []int    `json:"offsets"`
}

// New returns an empty LineArt with Offsets = [0].
func New() LineArt {
	return LineArt{Offsets: []int{0}}
}

// FromPolylines packs the given polylines into a LineArt.
func FromPolylines(polys ...[]v3.Vec) LineArt {
	n := 0
	for _, p := range polys {
		n += len(p)
	}
	la := LineArt{
		Coords:  make([]v3.Vec, 0, n),
		Offsets: make([]int, 1, len(polys)+1),
	}
	for _, p := range polys {
		la.AppendPolyline(p)
	}
	return la
}

// AppendPolyline appends one polyline to the buffers.
func (la *LineArt) AppendPolyline(p []v3.Vec) {
	if len(la.Offsets) == 0 {
		la.Offsets = []int{len(la.Coords)}
	}
	la.Coords = append(la.Coords, p...)
	la.Offsets = append(la.Offsets, len(la.Coords))
}

// Append appends every polyline of other.
func (la *LineArt) Append(other LineArt) {
	for i := 0; i < other.Len(); i++ {
		la.AppendPolyline(other.Polyline(i))
	}
}

// Len returns the number of polylines.
func (la LineArt) Len() int {
	if len(la.Offsets) == 0 {
		return 0
	}
	return len(la.Offsets) - 1
}

// VertexCount returns the number of vertices.
func (la LineArt) VertexCount() int {
	return len(la.Coords)
}

// IsEmpty returns true if the line-art has no vertices.
func (la LineArt) IsEmpty() bool {
	return len(la.Coords) == 0
}

// Polyline returns the vertices of polyline i. The returned slice aliases
// the vertex buffer.
func (la LineArt) Polyline(i int) []v3.Vec {
	return la.Coords[la.Offsets[i]:la.Offsets[i+1]]
}

// Clone returns a deep copy.
func (la LineArt) Clone() LineArt {
	out := LineArt{
		Coords:  make([]v3.Vec, len(la.Coords)),
		Offsets: make([]int, len(la.Offsets)),
	}
	copy(out.Coords, la.Coords)
	copy(out.Offsets, la.Offsets)
	return out
}

// Concat returns a new LineArt holding the polylines of all parts in order.
func Concat(parts ...LineArt) LineArt {
	out := New()
	for _, p := range parts {
		out.Append(p)
	}
	return out
}

// Equal reports whether a and b hold bit-identical buffers.
func Equal(a, b LineArt) bool {
	if len(a.Coords) != len(b.Coords) || len(a.Offsets) != len(b.Offsets) {
		return false
	}
	for i := range a.Coords {
		if a.Coords[i] != b.Coords[i] {
			return false
		}
	}
	for i := range a.Offsets {
		if a.Offsets[i] != b.Offsets[i] {
			return false
		}
	}
	return true
}

// Validate checks the offsets invariants: Offsets[0] = 0, Offsets[last] =
// vertex count and the offsets are non-decreasing.
func (la LineArt) Validate() error {
	if len(la.Offsets) == 0 {
		return fmt.Errorf("lineart: offsets buffer is empty")
	}
	if la.Offsets[0] != 0 {
		return fmt.Errorf("lineart: offsets[0] is %d, must be 0", la.Offsets[0])
	}
	if last := la.Offsets[len(la.Offsets)-1]; last != len(la.Coords) {
		return fmt.Errorf("lineart: offsets[last] is %d, vertex count is %d", last, len(la.Coords))
	}
	for i := 1; i < len(la.Offsets); i++ {
		if la.Offsets[i] < la.Offsets[i-1] {
			return fmt.Errorf("lineart: offsets decrease at %d (%d < %d)", i, la.Offsets[i], la.Offsets[i-1])
		}
	}
	return nil
}

// IsClosed reports whether a polyline's endpoints lie within tol of each
// other. Polylines with fewer than two vertices are never closed.
func IsClosed(p []v3.Vec, tol float64) bool {
	if len(p) < 2 {
		return false
	}
	return p[0].Sub(p[len(p)-1]).Length() <= tol
}
