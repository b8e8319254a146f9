// Package growth runs a differential-growth simulation inside closed
// line-art: small seed loops expand, wrinkle and fold while staying inside
// the rings.
package growth

import (
	"errors"
	"fmt"
	"math"

	"github.com/tyhts0829/grafix-sub000/pkg/contour"
	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/field"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// MaxIterations caps the number of iterations.
const MaxIterations = 5000

// BoundaryMode selects how a step that would leave the domain is corrected.
type BoundaryMode string

const (
	Slide  BoundaryMode = "slide"  // drop the outward component
	Bounce BoundaryMode = "bounce" // reflect the outward component
)

// Params configures Apply. Zero RepulsionRadius and SeedRadius select twice
// the target spacing.
type Params struct {
	SeedCount             int          `json:"seed_count"`
	TargetSpacing         float64      `json:"target_spacing"`
	BoundaryAvoidStrength float64      `json:"boundary_avoid_strength"`
	BoundaryMode          BoundaryMode `json:"boundary_mode"`
	Iterations            int          `json:"iterations"`
	Seed                  uint64       `json:"seed"`
	ShowMask              bool         `json:"show_mask"`
	RepulsionRadius       float64      `json:"repulsion_radius"`
	SpringStrength        float64      `json:"spring_strength"`
	RepulsionStrength     float64      `json:"repulsion_strength"`
	Jitter                float64      `json:"jitter"`
	SeedRadius            float64      `json:"seed_radius"`
	MaxPointsPerRing      int          `json:"max_points_per_ring"`
	MaxTotalPoints        int          `json:"max_total_points"`
	AutoCloseTolerance    float64      `json:"auto_close_tolerance"`
	Workers               int          `json:"-"`
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		SeedCount:             3,
		TargetSpacing:         2,
		BoundaryAvoidStrength: 1,
		BoundaryMode:          Slide,
		Iterations:            200,
		SpringStrength:        0.4,
		RepulsionStrength:     0.6,
		Jitter:                0.05,
		MaxPointsPerRing:      2000,
		MaxTotalPoints:        20000,
		AutoCloseTolerance:    effect.DefaultCloseTolerance,
	}
}

func (p *Params) normalize() error {
	if p.BoundaryMode == "" {
		p.BoundaryMode = Slide
	}
	if !(p.TargetSpacing > 0) || math.IsInf(p.TargetSpacing, 0) {
		return fmt.Errorf("target_spacing %v: %w", p.TargetSpacing, effect.ErrParameter)
	}
	if p.RepulsionRadius == 0 {
		p.RepulsionRadius = 2 * p.TargetSpacing
	}
	if p.SeedRadius == 0 {
		p.SeedRadius = 2 * p.TargetSpacing
	}
	p.Iterations = min(max(p.Iterations, 0), MaxIterations)
	p.SeedCount = max(p.SeedCount, 0)
	if p.MaxPointsPerRing <= 0 {
		p.MaxPointsPerRing = 2000
	}
	if p.MaxTotalPoints <= 0 {
		p.MaxTotalPoints = 20000
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"repulsion_radius", p.RepulsionRadius}, {"seed_radius", p.SeedRadius},
		{"boundary_avoid_strength", p.BoundaryAvoidStrength},
		{"spring_strength", p.SpringStrength}, {"repulsion_strength", p.RepulsionStrength},
		{"jitter", p.Jitter},
	} {
		if !(c.v >= 0) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%s %v: %w", c.name, c.v, effect.ErrParameter)
		}
	}
	if !(p.RepulsionRadius > 0) {
		return fmt.Errorf("repulsion_radius %v: %w", p.RepulsionRadius, effect.ErrParameter)
	}
	if p.BoundaryMode != Slide && p.BoundaryMode != Bounce {
		return fmt.Errorf("boundary_mode %q: %w", p.BoundaryMode, effect.ErrParameter)
	}
	return nil
}

// Apply grows seed loops inside the rings of in and returns them as closed
// polylines (plus the domain outline when ShowMask is set). It never fails:
// hitting the point ceiling returns the state reached so far.
func Apply(in lineart.LineArt, p Params) lineart.LineArt {
	out, err := Run(in, p)
	effect.Report("growth", err)
	return out
}

// Run is Apply that also reports why the result was degraded.
func Run(in lineart.LineArt, p Params) (lineart.LineArt, error) {
	if err := p.normalize(); err != nil {
		return in, fmt.Errorf("growth: %w", err)
	}
	pr, err := effect.Prepare(in, p.AutoCloseTolerance)
	if err != nil {
		return effect.Fallback(in, err), fmt.Errorf("growth: %w", err)
	}

	sim := newSim(pr.Set, &p)
	if len(sim.rings) == 0 {
		return lineart.New(), fmt.Errorf("growth: no seed fits inside the rings: %w", effect.ErrNoRings)
	}
	runErr := sim.run(p.Iterations)

	out := pr.Restore(sim.closed())
	if p.ShowMask {
		outline, err := maskOutline(&p, pr)
		if err != nil {
			return out, errors.Join(runErr, err)
		}
		out = lineart.Concat(outline, out)
	}
	return out, runErr
}

// maskOutline returns the zero contour of the sampled domain.
func maskOutline(p *Params, pr *effect.Prepared) (lineart.LineArt, error) {
	pitch := p.TargetSpacing / 2
	b := field.Builder{Pitch: pitch, Margin: 2 * pitch, Workers: p.Workers}
	sd, err := b.Build(distance.SDF2(pr.Set))
	if err != nil {
		return lineart.New(), effect.FieldError("growth: mask", err)
	}
	segs, err := contour.March(sd, 0, nil)
	if err != nil {
		return lineart.New(), fmt.Errorf("growth: mask: %w", err)
	}
	loops := contour.Stitch(segs, contour.SnapFor(sd.Pitch))
	return pr.Restore(contour.LoopsToPolylines(loops)), nil
}
