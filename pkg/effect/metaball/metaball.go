// Package metaball blends closed line-art into smooth merged outlines. Each
// ring contributes an exponential falloff of its distance; the outline is a
// level set of the summed field.
package metaball

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/tyhts0829/grafix-sub000/pkg/contour"
	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/field"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

// OutputMode selects which loops are returned.
type OutputMode string

const (
	All      OutputMode = "all"
	Exterior OutputMode = "exterior" // drop hole loops
)

// Params configures Apply.
type Params struct {
	FalloffRadius      float64    `json:"falloff_radius"`
	Threshold          float64    `json:"threshold"`
	GridPitch          float64    `json:"grid_pitch"`
	AutoCloseTolerance float64    `json:"auto_close_tolerance"`
	OutputMode         OutputMode `json:"output_mode"`
	KeepOriginal       bool       `json:"keep_original"`
	Workers            int        `json:"-"`
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		FalloffRadius:      3,
		Threshold:          0.5,
		GridPitch:          0.5,
		AutoCloseTolerance: effect.DefaultCloseTolerance,
		OutputMode:         All,
	}
}

func (p *Params) normalize() error {
	if p.OutputMode == "" {
		p.OutputMode = All
	}
	switch {
	case !(p.FalloffRadius > 0) || math.IsInf(p.FalloffRadius, 0):
		return fmt.Errorf("falloff_radius %v: %w", p.FalloffRadius, effect.ErrParameter)
	case !(p.Threshold > 0) || math.IsInf(p.Threshold, 0):
		return fmt.Errorf("threshold %v: %w", p.Threshold, effect.ErrParameter)
	case p.OutputMode != All && p.OutputMode != Exterior:
		return fmt.Errorf("output_mode %q: %w", p.OutputMode, effect.ErrParameter)
	}
	return nil
}

// blend is the metaball field of a ring set.
type blend struct {
	set *ring.Set
	r   float64
}

var _ sdf.SDF2 = (*blend)(nil)

// Field returns the blend field F(p) = inside(p) + sum over rings of
// exp(-d/r), where inside is 1 within the even-odd union and d is the
// unsigned distance to each ring. A larger r never shrinks {F >= t}.
func Field(set *ring.Set, r float64) sdf.SDF2 {
	return &blend{set: set, r: r}
}

func (b *blend) Evaluate(p v2.Vec) float64 {
	f := 0.0
	if distance.Inside(b.set, p) {
		f = 1
	}
	for i := range b.set.Rings {
		f += math.Exp(-distance.RingDistance(&b.set.Rings[i], p) / b.r)
	}
	return f
}

func (b *blend) BoundingBox() sdf.Box2 {
	return b.set.BoundingBox()
}

// Reach returns how far outside the rings the level set {F >= t} can
// extend for n rings.
func Reach(n int, r, t float64) float64 {
	if n <= 0 || float64(n) <= t {
		return 0
	}
	return r * math.Log(float64(n)/t)
}

// Apply returns the blended outlines of the rings in in. It never fails:
// degraded inputs come back unchanged (invalid parameters, non-planar
// input) or empty (no rings, grid ceiling).
func Apply(in lineart.LineArt, p Params) lineart.LineArt {
	out, err := Run(in, p)
	effect.Report("metaball", err)
	return out
}

// Run is Apply that also reports why the result was degraded.
func Run(in lineart.LineArt, p Params) (lineart.LineArt, error) {
	if err := p.normalize(); err != nil {
		return in, fmt.Errorf("metaball: %w", err)
	}
	pr, err := effect.Prepare(in, p.AutoCloseTolerance)
	if err != nil {
		return effect.Fallback(in, err), fmt.Errorf("metaball: %w", err)
	}

	src := Field(pr.Set, p.FalloffRadius)
	b := field.Builder{
		Pitch:   p.GridPitch,
		Margin:  Reach(pr.Set.Len(), p.FalloffRadius, p.Threshold) + 2*p.GridPitch,
		Workers: p.Workers,
	}
	f, err := b.Build(src)
	if err != nil {
		err = effect.FieldError("metaball", err)
		return effect.Fallback(in, err), err
	}
	segs, err := contour.March(f, p.Threshold, nil)
	if err != nil {
		return lineart.New(), fmt.Errorf("metaball: %w", err)
	}
	loops := contour.Stitch(segs, contour.SnapFor(f.Pitch))
	if p.OutputMode == Exterior {
		loops = exterior(loops, src, p.Threshold, f.Pitch/4)
	}
	out := pr.Restore(contour.LoopsToPolylines(loops))
	return effect.WithOriginal(in, out, p.KeepOriginal), nil
}

// exterior keeps the loops that enclose the superlevel set: F probed a
// step h along the loop's inward normal is at or above t.
func exterior(loops []contour.Loop, src sdf.SDF2, t, h float64) []contour.Loop {
	var out []contour.Loop
	for _, l := range loops {
		if insideProbe(l, src, h) >= t {
			out = append(out, l)
		}
	}
	return out
}

func insideProbe(l contour.Loop, src sdf.SDF2, h float64) float64 {
	area := contour.LoopArea(l)
	// longest edge gives the steadiest normal
	best, k := -1.0, 0
	for i := 0; i+1 < len(l); i++ {
		if d := l[i+1].Sub(l[i]).Length2(); d > best {
			best, k = d, i
		}
	}
	e := l[k+1].Sub(l[k])
	n := v2.Vec{X: -e.Y, Y: e.X}.Normalize() // left of the edge
	if area < 0 {
		n = n.MulScalar(-1)
	}
	mid := l[k].Add(l[k+1]).MulScalar(0.5)
	return src.Evaluate(mid.Add(n.MulScalar(h)))
}
