package plane

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func circle3(n int, r float64, f func(x, y float64) v3.Vec) []v3.Vec {
	out := make([]v3.Vec, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = f(r*math.Cos(a), r*math.Sin(a))
	}
	return out
}

func TestFitXYPlaneIsIdentity(t *testing.T) {
	pts := circle3(16, 5, func(x, y float64) v3.Vec { return v3.Vec{X: x + 1, Y: y - 2, Z: 3.25} })
	a, err := Fit(pts)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !a.IsIdentity() {
		t.Fatalf("expected identity aligner for an XY-plane ring, normal = %v", a.Normal())
	}
	for _, p := range pts {
		q, z := a.Align(p)
		if q.X != p.X || q.Y != p.Y {
			t.Fatalf("identity Align changed xy: %v -> %v", p, q)
		}
		if z != 0 {
			t.Fatalf("residual = %v, want 0", z)
		}
		if got := a.Restore(q, z); got != p {
			t.Fatalf("Restore(Align(p)) = %v, want %v", got, p)
		}
	}
}

func TestFitTiltedPlaneRoundTrip(t *testing.T) {
	// Plane z = 0.5x + 0.25y + 4, sampled on a circle.
	pts := circle3(24, 10, func(x, y float64) v3.Vec {
		return v3.Vec{X: x, Y: y, Z: 0.5*x + 0.25*y + 4}
	})
	a, err := Fit(pts)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if a.IsIdentity() {
		t.Fatal("tilted plane produced identity aligner")
	}
	n := a.Normal()
	want := v3.Vec{X: -0.5, Y: -0.25, Z: 1}
	want = want.MulScalar(1 / want.Length())
	if math.Abs(n.X-want.X) > 1e-9 || math.Abs(n.Y-want.Y) > 1e-9 || math.Abs(n.Z-want.Z) > 1e-9 {
		t.Errorf("normal = %v, want %v", n, want)
	}

	q2, res := a.AlignAll(pts)
	if res > 1e-9 {
		t.Errorf("max residual = %v, want ~0", res)
	}
	for i, q := range q2 {
		back := a.Restore(q, 0)
		if back.Sub(pts[i]).Length() > 1e-9 {
			t.Fatalf("point %d: restore %v, want %v", i, back, pts[i])
		}
	}
	// Distances are preserved by the rotation.
	d3 := pts[0].Sub(pts[5]).Length()
	d2 := q2[0].Sub(q2[5]).Length()
	if math.Abs(d3-d2) > 1e-9 {
		t.Errorf("in-plane distance %v != 3D distance %v", d2, d3)
	}
}

func TestFitResidualReportsOffPlanePoints(t *testing.T) {
	pts := circle3(12, 10, func(x, y float64) v3.Vec { return v3.Vec{X: x, Y: y} })
	a, err := Fit(pts)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, z := a.Align(v3.Vec{X: 1, Y: 1, Z: 2})
	if math.Abs(z-2) > 1e-12 {
		t.Errorf("residual = %v, want 2", z)
	}
	if z <= PlanarTolerance(20) {
		t.Errorf("residual %v should exceed tolerance %v", z, PlanarTolerance(20))
	}
}

func TestFitDegenerate(t *testing.T) {
	tests := []struct {
		name string
		pts  []v3.Vec
	}{
		{"too few", []v3.Vec{{X: 0}, {X: 1}}},
		{"collinear", []v3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}}},
		{"coincident", []v3.Vec{{X: 1}, {X: 1}, {X: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.pts)
			if !errors.Is(err, ErrDegenerate) {
				t.Errorf("Fit() error = %v, want ErrDegenerate", err)
			}
		})
	}
}

func TestThreePointNormalFallback(t *testing.T) {
	pts := []v3.Vec{{X: 0}, {X: 0}, {X: 1}, {Y: 1}}
	n, ok := threePointNormal(pts)
	if !ok {
		t.Fatal("threePointNormal failed on a valid triangle")
	}
	if math.Abs(math.Abs(n.Z)-1) > 1e-12 {
		t.Errorf("normal = %v, want ±Z", n)
	}
}
