// Package contour extracts iso-level line segments from scalar fields with
// marching squares and stitches them into closed loops.
package contour

import (
	"errors"
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"

	"github.com/tyhts0829/grafix-sub000/pkg/field"
)

// ErrFieldMismatch is returned when a gate field is not aligned with the
// marched field.
var ErrFieldMismatch = errors.New("gate field does not match grid")

// Segment is one straight piece of a contour.
type Segment struct {
	A, B v2.Vec
}

// Gate filters segments by a second field: a segment is kept only when the
// gate's value at its midpoint lies in [Lo, Hi].
type Gate struct {
	Field  *field.ScalarField
	Lo, Hi float64
}

func (g *Gate) keep(s Segment) bool {
	v := g.Field.Bilinear(s.A.Add(s.B).MulScalar(0.5))
	return v >= g.Lo && v <= g.Hi
}

// cell edges
const (
	bottom = iota // a-b
	right         // b-c
	top           // d-c
	left          // a-d
)

// edgePairs lists the edge pairs joined by each non-saddle corner pattern.
// Corner bits: a=(i,j) 1, b=(i+1,j) 2, c=(i+1,j+1) 4, d=(i,j+1) 8.
var edgePairs = [16][][2]int{
	0:  nil,
	1:  {{left, bottom}},
	2:  {{bottom, right}},
	3:  {{left, right}},
	4:  {{right, top}},
	6:  {{bottom, top}},
	7:  {{left, top}},
	8:  {{top, left}},
	9:  {{bottom, top}},
	11: {{right, top}},
	12: {{left, right}},
	13: {{bottom, right}},
	14: {{left, bottom}},
	15: nil,
}

// saddle resolutions: isolate a and c, or isolate b and d.
var (
	isolateAC = [][2]int{{left, bottom}, {right, top}}
	isolateBD = [][2]int{{bottom, right}, {top, left}}
)

// March returns the segments of the iso-line f = level. A corner counts as
// set when its value is >= level; non-finite values are unset. Saddle cells
// are resolved by the mean of their four corners: a mean >= level joins the
// set corners. A nil gate keeps every segment.
func March(f *field.ScalarField, level float64, gate *Gate) ([]Segment, error) {
	if gate != nil && (gate.Field == nil || !f.SameGrid(gate.Field)) {
		return nil, fmt.Errorf("contour: march: %w", ErrFieldMismatch)
	}
	var out []Segment
	for j := 0; j+1 < f.Rows; j++ {
		for i := 0; i+1 < f.Cols; i++ {
			va := f.At(i, j)
			vb := f.At(i+1, j)
			vc := f.At(i+1, j+1)
			vd := f.At(i, j+1)
			code := 0
			if isSet(va, level) {
				code |= 1
			}
			if isSet(vb, level) {
				code |= 2
			}
			if isSet(vc, level) {
				code |= 4
			}
			if isSet(vd, level) {
				code |= 8
			}
			if code == 0 || code == 15 {
				continue
			}

			pairs := edgePairs[code]
			switch code {
			case 5, 10:
				mean := (va + vb + vc + vd) / 4
				joined := mean >= level
				// joining a and c isolates b and d, and vice versa
				if (code == 5) == joined {
					pairs = isolateBD
				} else {
					pairs = isolateAC
				}
			}
			for _, pr := range pairs {
				s := Segment{A: crossing(f, i, j, pr[0], level), B: crossing(f, i, j, pr[1], level)}
				if gate != nil && !gate.keep(s) {
					continue
				}
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func isSet(v, level float64) bool {
	return v >= level && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// crossing returns the level crossing on edge e of cell (i, j). Every grid
// edge is interpolated from its lower node so neighbouring cells agree
// bit for bit.
func crossing(f *field.ScalarField, i, j, e int, level float64) v2.Vec {
	switch e {
	case bottom:
		return crossX(f, i, j, level)
	case top:
		return crossX(f, i, j+1, level)
	case left:
		return crossY(f, i, j, level)
	default:
		return crossY(f, i+1, j, level)
	}
}

func crossX(f *field.ScalarField, i, j int, level float64) v2.Vec {
	t := lerpT(f.At(i, j), f.At(i+1, j), level)
	p := f.Pos(i, j)
	return v2.Vec{X: p.X + t*f.Pitch, Y: p.Y}
}

func crossY(f *field.ScalarField, i, j int, level float64) v2.Vec {
	t := lerpT(f.At(i, j), f.At(i, j+1), level)
	p := f.Pos(i, j)
	return v2.Vec{X: p.X, Y: p.Y + t*f.Pitch}
}

// lerpT returns where level falls between v0 and v1, clamped to [0, 1].
// Non-finite endpoints put the crossing at the middle of the edge.
func lerpT(v0, v1, level float64) float64 {
	d := v1 - v0
	if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0.5
	}
	t := (level - v0) / d
	return math.Max(0, math.Min(1, t))
}
