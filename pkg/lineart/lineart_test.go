package lineart

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/go-cmp/cmp"
)

func square(z float64) []v3.Vec {
	return []v3.Vec{{X: 0, Y: 0, Z: z}, {X: 1, Y: 0, Z: z}, {X: 1, Y: 1, Z: z}, {X: 0, Y: 1, Z: z}, {X: 0, Y: 0, Z: z}}
}

// --- Buffer helper tests ---

func TestFromPolylines(t *testing.T) {
	la := FromPolylines(square(0), []v3.Vec{{X: 5}, {X: 6}})
	if got := la.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if got := la.VertexCount(); got != 7 {
		t.Fatalf("VertexCount() = %d, want 7", got)
	}
	if d := cmp.Diff([]int{0, 5, 7}, la.Offsets); d != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", d)
	}
	if got := la.Polyline(1); len(got) != 2 || got[0].X != 5 {
		t.Errorf("Polyline(1) = %v", got)
	}
	if err := la.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestNewIsEmpty(t *testing.T) {
	la := New()
	if !la.IsEmpty() {
		t.Error("IsEmpty() = false for New(), want true")
	}
	if la.Len() != 0 {
		t.Errorf("Len() = %d, want 0", la.Len())
	}
	if err := la.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		la      LineArt
		wantErr bool
	}{
		{"valid", FromPolylines(square(0)), false},
		{"no offsets", LineArt{}, true},
		{"nonzero first", LineArt{Coords: square(0), Offsets: []int{1, 5}}, true},
		{"wrong last", LineArt{Coords: square(0), Offsets: []int{0, 4}}, true},
		{"decreasing", LineArt{Coords: square(0), Offsets: []int{0, 3, 2, 5}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.la.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloneAndEqual(t *testing.T) {
	a := FromPolylines(square(2))
	b := a.Clone()
	if !Equal(a, b) {
		t.Fatal("clone is not equal to original")
	}
	b.Coords[0].X = 42
	if Equal(a, b) {
		t.Fatal("mutating clone changed the original")
	}
}

func TestConcat(t *testing.T) {
	a := FromPolylines(square(0))
	b := FromPolylines(square(1), square(2))
	c := Concat(a, New(), b)
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if c.Polyline(2)[0].Z != 2 {
		t.Errorf("third polyline z = %v, want 2", c.Polyline(2)[0].Z)
	}
}

func TestIsClosed(t *testing.T) {
	open := []v3.Vec{{X: 0}, {X: 1}, {X: 1, Y: 1}, {X: 0.1, Y: 0}}
	tests := []struct {
		name string
		poly []v3.Vec
		tol  float64
		want bool
	}{
		{"closed", square(0), 0, true},
		{"gap within tolerance", open, 0.2, true},
		{"gap beyond tolerance", open, 0.05, false},
		{"single vertex", []v3.Vec{{X: 1}}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClosed(tt.poly, tt.tol); got != tt.want {
				t.Errorf("IsClosed() = %v, want %v", got, tt.want)
			}
		})
	}
}
