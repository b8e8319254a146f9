// Package lens deforms line-art locally around the rings of a second
// line-art: a distance-weighted blend toward a transformed copy, or a
// displacement along the distance gradient.
package lens

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// Mode selects the deformation.
type Mode string

const (
	Transform Mode = "transform"
	Displace  Mode = "displace"
)

// Profile maps normalized distance to a weight.
type Profile string

const (
	Band Profile = "band" // sin(pi t): zero at both ends of the band
	Ramp Profile = "ramp" // smoothstep, 1 from one band width inside
)

// Side gates the weight by the sign of the distance.
type Side string

const (
	InsideOnly Side = "inside"
	BothSides  Side = "both"
)

// Kind is the coordinate transform blended toward in Transform mode.
type Kind string

const (
	Scale  Kind = "scale"
	Rotate Kind = "rotate"
	Shear  Kind = "shear"
	Swirl  Kind = "swirl"
)

// Center selects the transform center.
type Center string

const (
	Centroid Center = "centroid"
	Pivot    Center = "pivot"
)

// Direction selects how Displace mode moves vertices relative to the
// target level.
type Direction string

const (
	Attract Direction = "attract"
	Repel   Direction = "repel"
)

// Params configures Apply. Angle is in degrees.
type Params struct {
	Mode               Mode      `json:"mode"`
	Profile            Profile   `json:"profile"`
	Side               Side      `json:"side"`
	BandWidth          float64   `json:"band_width"`
	Strength           float64   `json:"strength"`
	Transform          Kind      `json:"transform"`
	Scale              float64   `json:"scale"`
	Angle              float64   `json:"angle"`
	Shear              float64   `json:"shear"`
	SwirlRadius        float64   `json:"swirl_radius"`
	Center             Center    `json:"center"`
	Pivot              v3.Vec    `json:"pivot"`
	TargetLevel        float64   `json:"target_level"`
	Direction          Direction `json:"direction"`
	MaxDeviation       float64   `json:"max_deviation"`
	Falloff            float64   `json:"falloff"`
	AutoCloseTolerance float64   `json:"auto_close_tolerance"`
	Workers            int       `json:"-"`
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		Mode:               Transform,
		Profile:            Band,
		Side:               InsideOnly,
		BandWidth:          10,
		Strength:           1,
		Transform:          Scale,
		Scale:              1.5,
		Angle:              30,
		Shear:              0.5,
		SwirlRadius:        20,
		Center:             Centroid,
		Direction:          Attract,
		MaxDeviation:       10,
		Falloff:            5,
		AutoCloseTolerance: effect.DefaultCloseTolerance,
	}
}

func (p *Params) normalize() error {
	if p.Mode == "" {
		p.Mode = Transform
	}
	if p.Profile == "" {
		p.Profile = Band
	}
	if p.Side == "" {
		p.Side = InsideOnly
	}
	if p.Transform == "" {
		p.Transform = Scale
	}
	if p.Center == "" {
		p.Center = Centroid
	}
	if p.Direction == "" {
		p.Direction = Attract
	}
	switch {
	case !finite(p.Strength):
		return fmt.Errorf("strength %v: %w", p.Strength, effect.ErrParameter)
	case p.Mode != Transform && p.Mode != Displace:
		return fmt.Errorf("mode %q: %w", p.Mode, effect.ErrParameter)
	case p.Profile != Band && p.Profile != Ramp:
		return fmt.Errorf("profile %q: %w", p.Profile, effect.ErrParameter)
	case p.Side != InsideOnly && p.Side != BothSides:
		return fmt.Errorf("side %q: %w", p.Side, effect.ErrParameter)
	case p.Center != Centroid && p.Center != Pivot:
		return fmt.Errorf("center %q: %w", p.Center, effect.ErrParameter)
	}
	if p.Mode == Transform {
		switch {
		case !(p.BandWidth > 0) || math.IsInf(p.BandWidth, 0):
			return fmt.Errorf("band_width %v: %w", p.BandWidth, effect.ErrParameter)
		case p.Transform != Scale && p.Transform != Rotate && p.Transform != Shear && p.Transform != Swirl:
			return fmt.Errorf("transform %q: %w", p.Transform, effect.ErrParameter)
		case !finite(p.Scale) || !finite(p.Angle) || !finite(p.Shear):
			return fmt.Errorf("transform amounts not finite: %w", effect.ErrParameter)
		case p.Transform == Swirl && !(p.SwirlRadius > 0):
			return fmt.Errorf("swirl_radius %v: %w", p.SwirlRadius, effect.ErrParameter)
		}
		return nil
	}
	switch {
	case p.Direction != Attract && p.Direction != Repel:
		return fmt.Errorf("direction %q: %w", p.Direction, effect.ErrParameter)
	case !finite(p.TargetLevel):
		return fmt.Errorf("target_level %v: %w", p.TargetLevel, effect.ErrParameter)
	case !(p.MaxDeviation >= 0) || math.IsInf(p.MaxDeviation, 0):
		return fmt.Errorf("max_deviation %v: %w", p.MaxDeviation, effect.ErrParameter)
	case !(p.Falloff > 0):
		return fmt.Errorf("falloff %v: %w", p.Falloff, effect.ErrParameter)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Apply deforms base around the rings of mask. It never fails: zero
// strength, invalid parameters, a non-planar mask or a mask without rings
// return base unchanged.
func Apply(base, mask lineart.LineArt, p Params) lineart.LineArt {
	out, err := Run(base, mask, p)
	effect.Report("lens", err)
	return out
}

// Run is Apply that also reports why the result was degraded.
func Run(base, mask lineart.LineArt, p Params) (lineart.LineArt, error) {
	if err := p.normalize(); err != nil {
		return base, fmt.Errorf("lens: %w", err)
	}
	if p.Strength == 0 || base.VertexCount() == 0 {
		return base, nil
	}
	pr, err := effect.Prepare(mask, p.AutoCloseTolerance)
	if err != nil {
		return base, fmt.Errorf("lens: %w", err)
	}
	al := pr.Aligner

	pts := make([]v2.Vec, len(base.Coords))
	res := make([]float64, len(base.Coords))
	for i, q := range base.Coords {
		pts[i], res[i] = al.Align(q)
	}
	dist, grad := distance.BatchGrad(pr.Set, pts, p.Workers)

	var warp func(q v2.Vec, d float64, g v2.Vec) v2.Vec
	if p.Mode == Transform {
		c := pr.Set.Centroid()
		if p.Center == Pivot {
			c, _ = al.Align(p.Pivot)
		}
		warp = func(q v2.Vec, d float64, _ v2.Vec) v2.Vec {
			w := p.weight(d) * p.Strength
			if w == 0 {
				return q
			}
			return q.Add(p.target(q, c).Sub(q).MulScalar(w))
		}
	} else {
		warp = p.displace
	}

	out := lineart.LineArt{
		Coords:  make([]v3.Vec, len(base.Coords)),
		Offsets: append([]int(nil), base.Offsets...),
	}
	for i, q := range pts {
		out.Coords[i] = al.Restore(warp(q, dist[i], grad[i]), res[i])
	}
	return out, nil
}

// weight returns the profile weight at signed distance d. The ramp falls
// from 1 at one band width inside to 0 on the rings, or to 0 at one band
// width outside when both sides are weighted.
func (p *Params) weight(d float64) float64 {
	if p.Side == InsideOnly && d > 0 {
		return 0
	}
	if p.Profile == Band {
		t := math.Abs(d) / p.BandWidth
		if t > 1 {
			return 0
		}
		return math.Sin(math.Pi * t)
	}
	t := -d / p.BandWidth
	if p.Side == BothSides {
		t = (1 - d/p.BandWidth) / 2
	}
	t = math.Max(0, math.Min(t, 1))
	return t * t * (3 - 2*t)
}

// target returns q under the configured transform about c.
func (p *Params) target(q, c v2.Vec) v2.Vec {
	r := q.Sub(c)
	switch p.Transform {
	case Rotate:
		return c.Add(rotate(r, p.Angle*math.Pi/180))
	case Shear:
		return c.Add(v2.Vec{X: r.X + p.Shear*r.Y, Y: r.Y})
	case Swirl:
		f := math.Max(0, 1-r.Length()/p.SwirlRadius)
		return c.Add(rotate(r, p.Angle*math.Pi/180*f))
	default:
		return c.Add(r.MulScalar(p.Scale))
	}
}

// displace moves q along the gradient relative to the target level.
func (p *Params) displace(q v2.Vec, d float64, g v2.Vec) v2.Vec {
	e := d - p.TargetLevel
	ae := math.Abs(e)
	if ae > p.MaxDeviation || math.IsInf(d, 0) {
		return q
	}
	k := p.Strength * math.Exp(-ae/p.Falloff)
	if p.Direction == Attract {
		return q.Sub(g.MulScalar(k * e))
	}
	s := 0.0
	switch {
	case e > 0:
		s = 1
	case e < 0:
		s = -1
	}
	return q.Add(g.MulScalar(k * s * (p.MaxDeviation - ae)))
}

func rotate(v v2.Vec, a float64) v2.Vec {
	s, c := math.Sincos(a)
	return v2.Vec{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}
