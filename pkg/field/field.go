// Package field samples 2D signed distance functions onto uniform grids.
package field

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ScalarField is a row-major grid of samples. Node (i, j) sits at
// Origin + (i*Pitch, j*Pitch).
type ScalarField struct {
	Cols, Rows int
	Origin     v2.Vec
	Pitch      float64
	Values     []float64
}

// New allocates a zeroed field.
func New(cols, rows int, origin v2.Vec, pitch float64) *ScalarField {
	return &ScalarField{
		Cols:   cols,
		Rows:   rows,
		Origin: origin,
		Pitch:  pitch,
		Values: make([]float64, cols*rows),
	}
}

// Index returns the flat index of node (i, j).
func (f *ScalarField) Index(i, j int) int {
	return j*f.Cols + i
}

// At returns the sample at node (i, j).
func (f *ScalarField) At(i, j int) float64 {
	return f.Values[j*f.Cols+i]
}

// Set stores a sample at node (i, j).
func (f *ScalarField) Set(i, j int, v float64) {
	f.Values[j*f.Cols+i] = v
}

// Pos returns the position of node (i, j).
func (f *ScalarField) Pos(i, j int) v2.Vec {
	return v2.Vec{
		X: f.Origin.X + float64(i)*f.Pitch,
		Y: f.Origin.Y + float64(j)*f.Pitch,
	}
}

// SameGrid reports whether g has the same dimensions and placement as f.
func (f *ScalarField) SameGrid(g *ScalarField) bool {
	return f.Cols == g.Cols && f.Rows == g.Rows && f.Origin == g.Origin && f.Pitch == g.Pitch
}

// Clone returns a deep copy.
func (f *ScalarField) Clone() *ScalarField {
	g := *f
	g.Values = append([]float64(nil), f.Values...)
	return &g
}

// Map returns a new field with fn applied to every sample.
func (f *ScalarField) Map(fn func(v float64) float64) *ScalarField {
	g := New(f.Cols, f.Rows, f.Origin, f.Pitch)
	for i, v := range f.Values {
		g.Values[i] = fn(v)
	}
	return g
}

// Bilinear interpolates the field at p. Points outside the grid are clamped
// to the border.
func (f *ScalarField) Bilinear(p v2.Vec) float64 {
	if f.Cols == 0 || f.Rows == 0 {
		return math.NaN()
	}
	x := (p.X - f.Origin.X) / f.Pitch
	y := (p.Y - f.Origin.Y) / f.Pitch
	x = clamp(x, 0, float64(f.Cols-1))
	y = clamp(y, 0, float64(f.Rows-1))
	i := min(int(x), max(f.Cols-2, 0))
	j := min(int(y), max(f.Rows-2, 0))
	tx := x - float64(i)
	ty := y - float64(j)
	i1 := min(i+1, f.Cols-1)
	j1 := min(j+1, f.Rows-1)
	v00 := f.At(i, j)
	v10 := f.At(i1, j)
	v01 := f.At(i, j1)
	v11 := f.At(i1, j1)
	return (v00*(1-tx)+v10*tx)*(1-ty) + (v01*(1-tx)+v11*tx)*ty
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Mask is a boolean grid aligned with a ScalarField.
type Mask struct {
	Cols, Rows int
	In         []bool
}

// At reports whether node (i, j) is inside; out-of-range nodes are outside.
func (m *Mask) At(i, j int) bool {
	if i < 0 || j < 0 || i >= m.Cols || j >= m.Rows {
		return false
	}
	return m.In[j*m.Cols+i]
}

// Count returns the number of inside nodes.
func (m *Mask) Count() int {
	n := 0
	for _, in := range m.In {
		if in {
			n++
		}
	}
	return n
}
