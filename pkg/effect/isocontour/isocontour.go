// Package isocontour draws evenly spaced offset curves of closed line-art:
// iso-lines of the signed distance to its rings, inside, outside or both.
package isocontour

import (
	"fmt"
	"math"

	"github.com/tyhts0829/grafix-sub000/pkg/contour"
	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/field"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// Mode selects which side of the rings gets contours.
type Mode string

const (
	Inside  Mode = "inside"
	Outside Mode = "outside"
	Both    Mode = "both"
)

// Params configures Apply.
type Params struct {
	LevelSpacing       float64 `json:"level_spacing"`
	LevelStep          int     `json:"level_step"`
	Phase              float64 `json:"phase"`
	MaxDist            float64 `json:"max_dist"`
	Mode               Mode    `json:"mode"`
	Gamma              float64 `json:"gamma"`
	GridPitch          float64 `json:"grid_pitch"`
	AutoCloseTolerance float64 `json:"auto_close_tolerance"`
	KeepOriginal       bool    `json:"keep_original"`
	Workers            int     `json:"-"`
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		LevelSpacing:       2,
		LevelStep:          1,
		MaxDist:            10,
		Mode:               Both,
		Gamma:              1,
		GridPitch:          0.5,
		AutoCloseTolerance: effect.DefaultCloseTolerance,
	}
}

func (p *Params) normalize() error {
	if p.LevelStep < 1 {
		p.LevelStep = 1
	}
	if p.Mode == "" {
		p.Mode = Both
	}
	switch {
	case !(p.LevelSpacing > 0) || math.IsInf(p.LevelSpacing, 0):
		return fmt.Errorf("level_spacing %v: %w", p.LevelSpacing, effect.ErrParameter)
	case !(p.MaxDist >= 0) || math.IsInf(p.MaxDist, 0):
		return fmt.Errorf("max_dist %v: %w", p.MaxDist, effect.ErrParameter)
	case !(p.Gamma > 0) || math.IsInf(p.Gamma, 0):
		return fmt.Errorf("gamma %v: %w", p.Gamma, effect.ErrParameter)
	case math.IsNaN(p.Phase) || math.IsInf(p.Phase, 0):
		return fmt.Errorf("phase %v: %w", p.Phase, effect.ErrParameter)
	case p.Mode != Inside && p.Mode != Outside && p.Mode != Both:
		return fmt.Errorf("mode %q: %w", p.Mode, effect.ErrParameter)
	}
	return nil
}

// Apply returns the iso-contours of in. It never fails: degraded inputs
// come back unchanged (invalid parameters, non-planar input) or empty (no
// rings, grid ceiling).
func Apply(in lineart.LineArt, p Params) lineart.LineArt {
	out, err := Run(in, p)
	effect.Report("isocontour", err)
	return out
}

// Run is Apply that also reports why the result was degraded.
func Run(in lineart.LineArt, p Params) (lineart.LineArt, error) {
	if err := p.normalize(); err != nil {
		return in, fmt.Errorf("isocontour: %w", err)
	}
	if p.MaxDist == 0 {
		return in, nil
	}
	pr, err := effect.Prepare(in, p.AutoCloseTolerance)
	if err != nil {
		return effect.Fallback(in, err), fmt.Errorf("isocontour: %w", err)
	}

	pitch := p.GridPitch
	margin := 2 * pitch
	if p.Mode != Inside {
		margin += p.MaxDist
	}
	b := field.Builder{Pitch: pitch, Margin: margin, Workers: p.Workers}
	sd, err := b.Build(distance.SDF2(pr.Set))
	if err != nil {
		err = effect.FieldError("isocontour", err)
		return effect.Fallback(in, err), err
	}

	period := p.LevelSpacing * float64(p.LevelStep)
	waves := sd.Map(func(d float64) float64 {
		w := math.Copysign(p.MaxDist*math.Pow(math.Abs(d)/p.MaxDist, p.Gamma), d)
		return math.Sin(math.Pi * (w - p.Phase) / period)
	})

	half := sd.Pitch / 2
	gate := &contour.Gate{Field: sd, Lo: -p.MaxDist - half, Hi: p.MaxDist + half}
	switch p.Mode {
	case Inside:
		gate.Hi = half
	case Outside:
		gate.Lo = -half
	}

	segs, err := contour.March(waves, 0, gate)
	if err != nil {
		return lineart.New(), fmt.Errorf("isocontour: %w", err)
	}
	loops := contour.Stitch(segs, contour.SnapFor(sd.Pitch))
	out := pr.Restore(contour.LoopsToPolylines(loops))
	return effect.WithOriginal(in, out, p.KeepOriginal), nil
}
