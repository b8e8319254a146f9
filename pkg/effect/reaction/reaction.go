// Package reaction grows Gray-Scott reaction-diffusion patterns inside
// closed line-art and returns the pattern's iso-lines.
package reaction

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/tyhts0829/grafix-sub000/internal/parallel"
	"github.com/tyhts0829/grafix-sub000/pkg/contour"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/field"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

const (
	// MaxSteps caps the number of simulation steps.
	MaxSteps = 20_000
	// MaxCells caps the simulation grid.
	MaxCells = 250_000
)

// Boundary selects how cells outside the rings act on the domain.
type Boundary string

const (
	Dirichlet Boundary = "dirichlet" // fixed concentrations outside
	NoFlux    Boundary = "noflux"    // zero flux across the rings
)

// Species selects the concentration that is contoured.
type Species string

const (
	SpeciesU Species = "u"
	SpeciesV Species = "v"
)

// Params configures Apply.
type Params struct {
	Steps              int      `json:"steps"`
	Feed               float64  `json:"feed"`
	Kill               float64  `json:"kill"`
	Du                 float64  `json:"du"`
	Dv                 float64  `json:"dv"`
	Dt                 float64  `json:"dt"`
	GridPitch          float64  `json:"grid_pitch"`
	Boundary           Boundary `json:"boundary"`
	BoundaryU          float64  `json:"boundary_u"`
	BoundaryV          float64  `json:"boundary_v"`
	SeedCount          int      `json:"seed_count"`
	SeedRadius         float64  `json:"seed_radius"` // in cells
	Jitter             float64  `json:"jitter"`
	Seed               uint64   `json:"seed"`
	Level              float64  `json:"level"`
	Species            Species  `json:"species"`
	AutoCloseTolerance float64  `json:"auto_close_tolerance"`
	KeepOriginal       bool     `json:"keep_original"`
	Workers            int      `json:"-"`
}

// DefaultParams returns the default parameters.
func DefaultParams() Params {
	return Params{
		Steps:              1000,
		Feed:               0.035,
		Kill:               0.065,
		Du:                 0.16,
		Dv:                 0.08,
		Dt:                 1,
		GridPitch:          1,
		Boundary:           Dirichlet,
		BoundaryU:          1,
		BoundaryV:          0,
		SeedCount:          8,
		SeedRadius:         3,
		Jitter:             0.02,
		Level:              0.25,
		Species:            SpeciesV,
		AutoCloseTolerance: effect.DefaultCloseTolerance,
	}
}

func (p *Params) normalize() error {
	if p.Boundary == "" {
		p.Boundary = Dirichlet
	}
	if p.Species == "" {
		p.Species = SpeciesV
	}
	p.Steps = min(p.Steps, MaxSteps)
	if p.Dt > 1 {
		p.Dt = 1
	}
	p.SeedCount = max(p.SeedCount, 0)
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"feed", p.Feed}, {"kill", p.Kill}, {"du", p.Du}, {"dv", p.Dv},
		{"seed_radius", p.SeedRadius}, {"jitter", p.Jitter},
	} {
		if !(c.v >= 0) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%s %v: %w", c.name, c.v, effect.ErrParameter)
		}
	}
	switch {
	case p.Steps < 0:
		return fmt.Errorf("steps %d: %w", p.Steps, effect.ErrParameter)
	case !(p.Dt > 0):
		return fmt.Errorf("dt %v: %w", p.Dt, effect.ErrParameter)
	case !finite(p.Level) || !finite(p.BoundaryU) || !finite(p.BoundaryV):
		return fmt.Errorf("level or boundary values not finite: %w", effect.ErrParameter)
	case p.Boundary != Dirichlet && p.Boundary != NoFlux:
		return fmt.Errorf("boundary %q: %w", p.Boundary, effect.ErrParameter)
	case p.Species != SpeciesU && p.Species != SpeciesV:
		return fmt.Errorf("species %q: %w", p.Species, effect.ErrParameter)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Apply runs the simulation inside the rings of in and returns the
// contours of the selected species. It never fails: steps = 0 gives empty
// line-art, non-planar input and invalid parameters pass through, and no
// rings or an oversized grid give empty line-art.
func Apply(in lineart.LineArt, p Params) lineart.LineArt {
	out, err := Run(in, p)
	effect.Report("reaction", err)
	return out
}

// Run is Apply that also reports why the result was degraded.
func Run(in lineart.LineArt, p Params) (lineart.LineArt, error) {
	if err := p.normalize(); err != nil {
		return in, fmt.Errorf("reaction: %w", err)
	}
	if p.Steps == 0 {
		return lineart.New(), nil
	}
	pr, err := effect.Prepare(in, p.AutoCloseTolerance)
	if err != nil {
		return effect.Fallback(in, err), fmt.Errorf("reaction: %w", err)
	}

	b := field.Builder{Pitch: p.GridPitch, Margin: p.GridPitch, MaxCells: MaxCells, Workers: p.Workers}
	grid, err := b.Grid(pr.Set.BoundingBox())
	if err != nil {
		err = effect.FieldError("reaction", err)
		return effect.Fallback(in, err), err
	}
	mask := field.BuildMask(pr.Set, grid, p.Workers)
	if mask.Count() == 0 {
		return lineart.New(), fmt.Errorf("reaction: empty domain: %w", effect.ErrNoRings)
	}

	st := newState(mask, &p)
	for s := 0; s < p.Steps; s++ {
		st.step(&p)
	}

	f := st.extract(grid, p.Species)
	segs, err := contour.March(f, p.Level, nil)
	if err != nil {
		return lineart.New(), fmt.Errorf("reaction: %w", err)
	}
	loops := contour.Stitch(segs, contour.SnapFor(f.Pitch))
	out := pr.Restore(contour.LoopsToPolylines(loops))
	return effect.WithOriginal(in, out, p.KeepOriginal), nil
}

// state holds the double-buffered concentrations on the mask grid.
type state struct {
	mask         *field.Mask
	u, v         []float64
	nextU, nextV []float64
	workers      int
}

func newState(mask *field.Mask, p *Params) *state {
	n := mask.Cols * mask.Rows
	st := &state{
		mask:    mask,
		u:       make([]float64, n),
		v:       make([]float64, n),
		nextU:   make([]float64, n),
		nextV:   make([]float64, n),
		workers: p.Workers,
	}
	var inside []int
	for i, in := range mask.In {
		if in {
			st.u[i], st.v[i] = 1, 0
			inside = append(inside, i)
		} else if p.Boundary == Dirichlet {
			st.u[i], st.v[i] = p.BoundaryU, p.BoundaryV
		} else {
			st.u[i], st.v[i] = 1, 0
		}
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	r := int(math.Ceil(min(p.SeedRadius, float64(max(mask.Cols, mask.Rows)))))
	for k := 0; k < p.SeedCount && len(inside) > 0; k++ {
		c := inside[rng.IntN(len(inside))]
		ci, cj := c%mask.Cols, c/mask.Cols
		for dj := -r; dj <= r; dj++ {
			for di := -r; di <= r; di++ {
				if float64(di*di+dj*dj) > p.SeedRadius*p.SeedRadius || !mask.At(ci+di, cj+dj) {
					continue
				}
				idx := (cj+dj)*mask.Cols + ci + di
				st.u[idx], st.v[idx] = 0.5, 0.25
			}
		}
	}
	if p.Jitter > 0 {
		for _, i := range inside {
			st.u[i] = clamp01(st.u[i] + p.Jitter*(2*rng.Float64()-1))
			st.v[i] = clamp01(st.v[i] + p.Jitter*(2*rng.Float64()-1))
		}
	}
	return st
}

// step advances one explicit Euler step. Rows are updated in parallel from
// the previous buffers.
func (st *state) step(p *Params) {
	m := st.mask
	noflux := p.Boundary == NoFlux
	parallel.ForRows(m.Rows, st.workers, func(j int) {
		for i := 0; i < m.Cols; i++ {
			idx := j*m.Cols + i
			if !m.In[idx] {
				st.nextU[idx], st.nextV[idx] = st.u[idx], st.v[idx]
				continue
			}
			u, v := st.u[idx], st.v[idx]
			lapU, lapV := -4*u, -4*v
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				ni, nj := i+d[0], j+d[1]
				switch {
				case m.At(ni, nj):
					k := nj*m.Cols + ni
					lapU += st.u[k]
					lapV += st.v[k]
				case noflux:
					lapU += u
					lapV += v
				default:
					lapU += p.BoundaryU
					lapV += p.BoundaryV
				}
			}
			uvv := u * v * v
			st.nextU[idx] = clamp01(u + p.Dt*(p.Du*lapU-uvv+p.Feed*(1-u)))
			st.nextV[idx] = clamp01(v + p.Dt*(p.Dv*lapV+uvv-(p.Feed+p.Kill)*v))
		}
	})
	st.u, st.nextU = st.nextU, st.u
	st.v, st.nextV = st.nextV, st.v
}

// extract returns the contoured species laid out on grid. Cells outside
// the domain hold the empty value so loops close along the boundary.
func (st *state) extract(grid *field.ScalarField, s Species) *field.ScalarField {
	f := field.New(grid.Cols, grid.Rows, grid.Origin, grid.Pitch)
	for i, in := range st.mask.In {
		switch {
		case !in:
			f.Values[i] = 0
		case s == SpeciesU:
			f.Values[i] = 1 - st.u[i]
		default:
			f.Values[i] = st.v[i]
		}
	}
	return f
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
