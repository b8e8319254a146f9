package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/tyhts0829/grafix-sub000/internal/parallel"
	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

const (
	// DefaultMaxCells is the node ceiling used when Builder.MaxCells is 0.
	DefaultMaxCells = 2_000_000
	// HardMaxCells caps any requested ceiling.
	HardMaxCells = 16_000_000

	maxCoarsen = 8
)

var (
	// ErrCeiling is returned when the grid cannot fit the cell ceiling.
	ErrCeiling = errors.New("grid cell ceiling exceeded")
	// ErrPitch is returned for a non-positive or non-finite pitch.
	ErrPitch = errors.New("invalid grid pitch")
)

// Builder samples a source onto a grid covering its bounding box plus a
// margin. Build a fresh Builder per call.
type Builder struct {
	Pitch    float64
	Margin   float64
	MaxCells int // 0 selects DefaultMaxCells
	Workers  int // 0 selects GOMAXPROCS
}

// Grid lays out an empty field over box. The pitch is coarsened when the
// node count exceeds the ceiling.
func (b Builder) Grid(box sdf.Box2) (*ScalarField, error) {
	pitch := b.Pitch
	if !(pitch > 0) || math.IsInf(pitch, 0) {
		return nil, fmt.Errorf("field: grid: %w: %v", ErrPitch, pitch)
	}
	margin := b.Margin
	if !(margin >= 0) || math.IsInf(margin, 0) {
		margin = 0
	}
	limit := b.MaxCells
	if limit <= 0 {
		limit = DefaultMaxCells
	}
	limit = min(limit, HardMaxCells)

	lo := box.Min.Sub(v2.Vec{X: margin, Y: margin})
	hi := box.Max.Add(v2.Vec{X: margin, Y: margin})
	w, h := hi.X-lo.X, hi.Y-lo.Y
	if !(w >= 0 && h >= 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return nil, fmt.Errorf("field: grid: %w: box %v", ErrCeiling, box)
	}
	for try := 0; try <= maxCoarsen; try++ {
		// float until checked; int(w/pitch) overflows for huge extents
		cols := math.Ceil(w/pitch) + 1
		rows := math.Ceil(h/pitch) + 1
		n := cols * rows
		if n <= float64(limit) {
			return New(int(cols), int(rows), lo, pitch), nil
		}
		pitch *= math.Sqrt(cols/float64(limit)) * math.Sqrt(rows) * 1.01
		if math.IsInf(pitch, 0) {
			break
		}
	}
	return nil, fmt.Errorf("field: grid: %w: %d nodes", ErrCeiling, limit)
}

// Build samples src once per node over its bounding box plus the margin.
func (b Builder) Build(src sdf.SDF2) (*ScalarField, error) {
	f, err := b.Grid(src.BoundingBox())
	if err != nil {
		return nil, err
	}
	b.Fill(f, src.Evaluate)
	return f, nil
}

// Fill evaluates fn at every node of f, parallel over rows.
func (b Builder) Fill(f *ScalarField, fn func(p v2.Vec) float64) {
	parallel.ForRows(f.Rows, b.Workers, func(j int) {
		row := f.Values[j*f.Cols : (j+1)*f.Cols]
		for i := range row {
			row[i] = fn(f.Pos(i, j))
		}
	})
}

// BuildMask marks the nodes of f whose signed distance to set is <= 0.
func BuildMask(set *ring.Set, f *ScalarField, workers int) *Mask {
	m := &Mask{Cols: f.Cols, Rows: f.Rows, In: make([]bool, f.Cols*f.Rows)}
	if set.IsEmpty() {
		return m
	}
	parallel.ForRows(f.Rows, workers, func(j int) {
		for i := 0; i < f.Cols; i++ {
			m.In[f.Index(i, j)] = distance.Eval(set, f.Pos(i, j)) <= 0
		}
	})
	return m
}
