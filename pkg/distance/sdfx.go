package distance

import (
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

// ringSDF exposes a ring set as an sdfx 2D signed distance function.
type ringSDF struct {
	set *ring.Set
}

// Compile-time interface check.
var _ sdf.SDF2 = (*ringSDF)(nil)

// SDF2 wraps a ring set as an sdf.SDF2 so it can feed field builders and
// the sdfx combinators.
func SDF2(s *ring.Set) sdf.SDF2 {
	return &ringSDF{set: s}
}

// Evaluate returns the signed distance at p.
func (r *ringSDF) Evaluate(p v2.Vec) float64 {
	return Eval(r.set, p)
}

// BoundingBox returns the bounding box of the rings.
func (r *ringSDF) BoundingBox() sdf.Box2 {
	return r.set.BoundingBox()
}
