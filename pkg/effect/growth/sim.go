package growth

import (
	"fmt"
	"math"
	"math/rand/v2"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/tyhts0829/grafix-sub000/internal/parallel"
	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

// seedAttempts bounds rejection sampling per requested seed.
const seedAttempts = 200

// sim is the state of one growth run. Rings are stored open; the closing
// edge is implied.
type sim struct {
	set   *ring.Set
	p     *Params
	rng   *rand.Rand
	eps   float64
	rings [][]v2.Vec
}

func newSim(set *ring.Set, p *Params) *sim {
	s := &sim{
		set: set,
		p:   p,
		rng: rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)),
		eps: 1e-9 * math.Max(1, set.Extent()),
	}
	s.seed()
	return s
}

// seed places up to SeedCount small circles at sampled positions deep
// enough inside the domain, not overlapping earlier seeds.
func (s *sim) seed() {
	p := s.p
	box := s.set.BoundingBox()
	size := box.Max.Sub(box.Min)
	need := -(p.SeedRadius + p.TargetSpacing)
	n := int(min(max(math.Ceil(2*math.Pi*p.SeedRadius/p.TargetSpacing), 6), float64(p.MaxPointsPerRing)))

	var centers []v2.Vec
	for try := 0; try < p.SeedCount*seedAttempts && len(centers) < p.SeedCount; try++ {
		c := v2.Vec{
			X: box.Min.X + s.rng.Float64()*size.X,
			Y: box.Min.Y + s.rng.Float64()*size.Y,
		}
		if distance.Eval(s.set, c) > need {
			continue
		}
		free := true
		for _, o := range centers {
			if o.Sub(c).Length() < 2*p.SeedRadius+p.TargetSpacing {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		if s.total()+n > p.MaxTotalPoints {
			break
		}
		centers = append(centers, c)
		pts := make([]v2.Vec, n)
		for i := range pts {
			a := 2 * math.Pi * float64(i) / float64(n)
			pts[i] = c.Add(v2.Vec{X: math.Cos(a), Y: math.Sin(a)}.MulScalar(p.SeedRadius))
		}
		s.rings = append(s.rings, pts)
	}
}

func (s *sim) total() int {
	n := 0
	for _, r := range s.rings {
		n += len(r)
	}
	return n
}

// run iterates until done or until the point ceiling stops growth.
func (s *sim) run(iterations int) error {
	for it := 0; it < iterations; it++ {
		capped := s.resample()
		s.relax()
		if capped {
			return fmt.Errorf("growth: stopped at iteration %d with %d points: %w", it, s.total(), effect.ErrCeiling)
		}
	}
	return nil
}

// resample splits edges longer than the target spacing at their midpoints.
// A midpoint outside the domain is projected inside or skipped. It reports
// whether the total point ceiling was reached.
func (s *sim) resample() bool {
	p := s.p
	split := p.TargetSpacing
	total := s.total()
	capped := false
	for r, pts := range s.rings {
		out := make([]v2.Vec, 0, len(pts)+len(pts)/4)
		for i, a := range pts {
			out = append(out, a)
			b := pts[(i+1)%len(pts)]
			if b.Sub(a).Length() <= split {
				continue
			}
			if total >= p.MaxTotalPoints {
				capped = true
				continue
			}
			if len(pts)+len(out)-i-1 >= p.MaxPointsPerRing {
				continue
			}
			m, ok := s.inside(a.Add(b).MulScalar(0.5))
			if !ok {
				continue
			}
			out = append(out, m)
			total++
		}
		s.rings[r] = out
	}
	return capped
}

// inside returns q if it lies in the domain, else q pulled back along the
// gradient, else false.
func (s *sim) inside(q v2.Vec) (v2.Vec, bool) {
	d, g := distance.EvalGrad(s.set, q)
	if d <= 0 {
		return q, true
	}
	q = q.Sub(g.MulScalar(d + s.eps))
	if distance.Eval(s.set, q) <= 0 {
		return q, true
	}
	return v2.Vec{}, false
}

// relax moves every point once. Forces are computed in parallel from a
// snapshot; jitter is drawn sequentially.
func (s *sim) relax() {
	p := s.p
	var pts []v2.Vec
	var owner, index []int
	start := make([]int, len(s.rings))
	for r, rg := range s.rings {
		start[r] = len(pts)
		for i, q := range rg {
			pts = append(pts, q)
			owner = append(owner, r)
			index = append(index, i)
		}
	}
	hash := newGrid(pts, p.RepulsionRadius)
	step := make([]v2.Vec, len(pts))

	parallel.For(len(pts), p.Workers, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			step[k] = s.force(k, pts, owner, index, start, hash)
		}
	})

	if p.Jitter > 0 {
		for k := range step {
			step[k] = step[k].Add(v2.Vec{
				X: p.Jitter * (2*s.rng.Float64() - 1),
				Y: p.Jitter * (2*s.rng.Float64() - 1),
			})
		}
	}

	next := make([]v2.Vec, len(pts))
	parallel.For(len(pts), p.Workers, func(lo, hi int) {
		for k := lo; k < hi; k++ {
			next[k] = s.move(pts[k], step[k])
		}
	})
	for r := range s.rings {
		copy(s.rings[r], next[start[r]:start[r]+len(s.rings[r])])
	}
}

// force sums the spring, repulsion and boundary-avoidance forces on point k.
func (s *sim) force(k int, pts []v2.Vec, owner, index, start []int, hash *grid) v2.Vec {
	p := s.p
	r := owner[k]
	n := len(s.rings[r])
	q := pts[k]
	prev := start[r] + (index[k]+n-1)%n
	next := start[r] + (index[k]+1)%n

	var f v2.Vec
	for _, nb := range [2]int{prev, next} {
		e := pts[nb].Sub(q)
		if l := e.Length(); l > 0 {
			f = f.Add(e.MulScalar(p.SpringStrength * (l - p.TargetSpacing) / l))
		}
	}

	rad := p.RepulsionRadius
	hash.near(q, func(j int) {
		if j == k || j == prev || j == next {
			return
		}
		e := q.Sub(pts[j])
		l := e.Length()
		if l == 0 || l >= rad {
			return
		}
		f = f.Add(e.MulScalar(p.RepulsionStrength * (1 - l/rad) / l))
	})

	if p.BoundaryAvoidStrength > 0 {
		d, g := distance.EvalGrad(s.set, q)
		if d > -rad {
			f = f.Sub(g.MulScalar(p.BoundaryAvoidStrength * (1 + d/rad)))
		}
	}
	return f
}

// move applies a step to q, keeping the result inside the domain. The step
// is clamped to half the target spacing; near the boundary its outward
// part is removed or reflected, and a point that still escapes is pulled
// back or left where it was.
func (s *sim) move(q, step v2.Vec) v2.Vec {
	p := s.p
	limit := 0.5 * p.TargetSpacing
	if l := step.Length(); l > limit {
		step = step.MulScalar(limit / l)
	}
	d, g := distance.EvalGrad(s.set, q)
	if d > -p.TargetSpacing {
		if out := step.Dot(g); out > 0 {
			k := out
			if p.BoundaryMode == Bounce {
				k = 2 * out
			}
			step = step.Sub(g.MulScalar(k))
		}
	}
	if m, ok := s.inside(q.Add(step)); ok {
		return m
	}
	return q
}

// closed returns the rings with their first point repeated at the end.
func (s *sim) closed() [][]v2.Vec {
	out := make([][]v2.Vec, len(s.rings))
	for r, rg := range s.rings {
		c := make([]v2.Vec, len(rg)+1)
		copy(c, rg)
		c[len(rg)] = rg[0]
		out[r] = c
	}
	return out
}
