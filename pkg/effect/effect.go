// Package effect holds the pipeline shared by the line-art effects: plane
// alignment, ring extraction, error classification and result restoration.
// The effects themselves live in the sub-packages.
package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/tyhts0829/grafix-sub000/pkg/field"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
	"github.com/tyhts0829/grafix-sub000/pkg/plane"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

// Degradation causes. Every error returned by an effect's Run wraps one of
// these.
var (
	ErrNoRings   = errors.New("no closed rings in input")
	ErrNonPlanar = errors.New("input is not planar")
	ErrParameter = errors.New("parameter out of range")
	ErrCeiling   = errors.New("resource ceiling exceeded")
)

// DefaultCloseTolerance is the default auto-close tolerance.
const DefaultCloseTolerance = 0.01

// Prepared is line-art moved into the working plane with its rings
// extracted.
type Prepared struct {
	Input    lineart.LineArt
	Aligner  *plane.Aligner
	Aligned  [][]v2.Vec  // every input polyline, in input order
	Residual [][]float64 // out-of-plane offset of every input vertex
	Set      *ring.Set
}

// Prepare aligns every polyline of in to the plane of the first closed
// polyline and extracts the rings. It fails with ErrNoRings when nothing
// closes within tol and with ErrNonPlanar when a closed polyline leaves the
// plane by more than the planar tolerance.
func Prepare(in lineart.LineArt, tol float64) (*Prepared, error) {
	if math.IsNaN(tol) || tol < 0 {
		tol = 0
	}
	var closed []int
	for i := 0; i < in.Len(); i++ {
		p := in.Polyline(i)
		if len(p) >= 3 && lineart.IsClosed(p, tol) {
			closed = append(closed, i)
		}
	}
	if len(closed) == 0 {
		return nil, fmt.Errorf("effect: prepare: %w", ErrNoRings)
	}

	var al *plane.Aligner
	for _, i := range closed {
		a, err := plane.Fit(in.Polyline(i))
		if err == nil {
			al = a
			break
		}
	}
	if al == nil {
		return nil, fmt.Errorf("effect: prepare: %w: %w", ErrNoRings, plane.ErrDegenerate)
	}

	limit := plane.PlanarTolerance(extent(in.Coords))
	pr := &Prepared{
		Input:    in,
		Aligner:  al,
		Aligned:  make([][]v2.Vec, in.Len()),
		Residual: make([][]float64, in.Len()),
	}
	for i := 0; i < in.Len(); i++ {
		src := in.Polyline(i)
		pts := make([]v2.Vec, len(src))
		res := make([]float64, len(src))
		for k, p := range src {
			pts[k], res[k] = al.Align(p)
		}
		pr.Aligned[i] = pts
		pr.Residual[i] = res
	}
	for _, i := range closed {
		for _, z := range pr.Residual[i] {
			if math.Abs(z) > limit {
				return nil, fmt.Errorf("effect: prepare: %w: residual %.3g exceeds %.3g", ErrNonPlanar, math.Abs(z), limit)
			}
		}
	}

	pr.Set = ring.Extract(pr.Aligned, tol, al)
	if pr.Set.IsEmpty() {
		return nil, fmt.Errorf("effect: prepare: %w", ErrNoRings)
	}
	Logger().Debug("prepare", "rings", len(pr.Set.Rings), "points", pr.Set.PointCount(), "normal", al.Normal(), "identity", al.IsIdentity())
	return pr, nil
}

// Restore maps working-plane polylines back to 3D line-art.
func (pr *Prepared) Restore(polys [][]v2.Vec) lineart.LineArt {
	out := lineart.New()
	for _, p := range polys {
		out.AppendPolyline(pr.Aligner.RestoreAll(p))
	}
	return out
}

// WithOriginal prepends the input to out when keep is set.
func WithOriginal(in, out lineart.LineArt, keep bool) lineart.LineArt {
	if !keep {
		return out
	}
	return lineart.Concat(in, out)
}

// Fallback returns the degraded result for err: the input itself when it
// was left alone (non-planar input, invalid parameters), empty line-art
// otherwise.
func Fallback(in lineart.LineArt, err error) lineart.LineArt {
	if errors.Is(err, ErrNonPlanar) || errors.Is(err, ErrParameter) {
		return in
	}
	return lineart.New()
}

// FieldError classifies an error from the field builder.
func FieldError(op string, err error) error {
	switch {
	case errors.Is(err, field.ErrCeiling):
		return fmt.Errorf("%s: %w: %w", op, ErrCeiling, err)
	case errors.Is(err, field.ErrPitch):
		return fmt.Errorf("%s: %w: %w", op, ErrParameter, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Report logs a degraded result. Ceiling breaches are warnings; the other
// causes are expected for some inputs and logged at debug level.
func Report(op string, err error) {
	if err == nil {
		return
	}
	level := slog.LevelDebug
	if errors.Is(err, ErrCeiling) {
		level = slog.LevelWarn
	}
	Logger().Log(context.Background(), level, "effect degraded", "op", op, "err", err)
}

func extent(coords []v3.Vec) float64 {
	if len(coords) == 0 {
		return 0
	}
	lo, hi := coords[0], coords[0]
	for _, p := range coords[1:] {
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	return hi.Sub(lo).Length()
}
