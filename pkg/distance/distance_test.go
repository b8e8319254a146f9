package distance

import (
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/tyhts0829/grafix-sub000/pkg/plane"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

func square(x0, y0, size float64) []v2.Vec {
	return []v2.Vec{
		{X: x0, Y: y0}, {X: x0 + size, Y: y0},
		{X: x0 + size, Y: y0 + size}, {X: x0, Y: y0 + size},
		{X: x0, Y: y0},
	}
}

func circle(cx, cy, r float64, n int) []v2.Vec {
	out := make([]v2.Vec, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = v2.Vec{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	out[n] = out[0]
	return out
}

func set(polys ...[]v2.Vec) *ring.Set {
	return ring.Extract(polys, 0, plane.Identity(0))
}

// ---------------------------------------------------------------------------
// Sign and boundary
// ---------------------------------------------------------------------------

func TestEvalSquare(t *testing.T) {
	s := set(square(0, 0, 10))
	tests := []struct {
		name string
		p    v2.Vec
		want float64
	}{
		{"center", v2.Vec{X: 5, Y: 5}, -5},
		{"near left edge", v2.Vec{X: 1, Y: 5}, -1},
		{"outside right", v2.Vec{X: 13, Y: 5}, 3},
		{"outside corner", v2.Vec{X: 13, Y: 14}, 5},
		{"on bottom edge", v2.Vec{X: 4, Y: 0}, 0},
		{"on vertex", v2.Vec{X: 10, Y: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Eval(s, tt.p)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Eval(%v) = %v, want %v", tt.p, got, tt.want)
			}
			if tt.want == 0 && math.Signbit(got) {
				t.Errorf("Eval(%v) returned negative zero", tt.p)
			}
		})
	}
}

func TestEvalEmptySet(t *testing.T) {
	s := set()
	if d := Eval(s, v2.Vec{}); !math.IsInf(d, 1) {
		t.Errorf("Eval on empty set = %v, want +Inf", d)
	}
	if Inside(s, v2.Vec{}) {
		t.Error("Inside on empty set = true")
	}
}

func TestInsidePointsAreNegative(t *testing.T) {
	s := set(circle(0, 0, 10, 64))
	for i := 0; i < 50; i++ {
		a := float64(i) * 0.37
		r := 9 * float64(i%10) / 10
		p := v2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)}
		if d := Eval(s, p); d >= 0 {
			t.Fatalf("Eval(%v) = %v, want < 0", p, d)
		}
	}
	for _, p := range s.Rings[0].Points {
		if d := Eval(s, p); d != 0 {
			t.Fatalf("Eval(vertex %v) = %v, want 0", p, d)
		}
	}
}

func TestEvenOddHole(t *testing.T) {
	s := set(square(0, 0, 10), square(3, 3, 4))
	if d := Eval(s, v2.Vec{X: 5, Y: 5}); d <= 0 {
		t.Errorf("hole center: Eval = %v, want > 0", d)
	}
	if math.Abs(Eval(s, v2.Vec{X: 5, Y: 5})-2) > 1e-12 {
		t.Errorf("hole center distance = %v, want 2", Eval(s, v2.Vec{X: 5, Y: 5}))
	}
	if d := Eval(s, v2.Vec{X: 1.5, Y: 5}); math.Abs(d+1.5) > 1e-12 {
		t.Errorf("band point: Eval = %v, want -1.5", d)
	}
}

// ---------------------------------------------------------------------------
// Cross-check with sdfx
// ---------------------------------------------------------------------------

func TestMatchesPolygon2D(t *testing.T) {
	poly := []v2.Vec{{X: 0, Y: 0}, {X: 8, Y: 1}, {X: 10, Y: 7}, {X: 4, Y: 4}, {X: 1, Y: 9}}
	ref, err := sdf.Polygon2D(poly)
	if err != nil {
		t.Fatalf("Polygon2D: %v", err)
	}
	closed := append(append([]v2.Vec(nil), poly...), poly[0])
	s := set(closed)
	for x := -3.0; x <= 13; x += 0.7 {
		for y := -3.0; y <= 12; y += 0.9 {
			p := v2.Vec{X: x, Y: y}
			want := ref.Evaluate(p)
			got := Eval(s, p)
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("Eval(%v) = %v, Polygon2D = %v", p, got, want)
			}
		}
	}
}

func TestSDF2Adapter(t *testing.T) {
	s := set(square(-2, -2, 4))
	f := SDF2(s)
	if got := f.Evaluate(v2.Vec{}); math.Abs(got+2) > 1e-12 {
		t.Errorf("Evaluate(origin) = %v, want -2", got)
	}
	want := sdf.Box2{Min: v2.Vec{X: -2, Y: -2}, Max: v2.Vec{X: 2, Y: 2}}
	if d := cmp.Diff(want, f.BoundingBox()); d != "" {
		t.Errorf("BoundingBox mismatch (-want +got):\n%s", d)
	}
}

// ---------------------------------------------------------------------------
// Gradient
// ---------------------------------------------------------------------------

func TestGradientPointsOutward(t *testing.T) {
	s := set(square(0, 0, 10))
	tests := []struct {
		name string
		p    v2.Vec
		want v2.Vec
	}{
		{"inside near left", v2.Vec{X: 1, Y: 5}, v2.Vec{X: -1}},
		{"outside right", v2.Vec{X: 12, Y: 5}, v2.Vec{X: 1}},
		{"on top edge", v2.Vec{X: 5, Y: 10}, v2.Vec{Y: 1}},
		{"on bottom edge", v2.Vec{X: 5, Y: 0}, v2.Vec{Y: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, g := EvalGrad(s, tt.p)
			if g.Sub(tt.want).Length() > 1e-9 {
				t.Errorf("gradient at %v = %v, want %v", tt.p, g, tt.want)
			}
		})
	}
}

func TestGradientMatchesFiniteDifference(t *testing.T) {
	s := set(circle(0, 0, 5, 48))
	const h = 1e-6
	for _, p := range []v2.Vec{{X: 1, Y: 2}, {X: 7, Y: -1}, {X: -3, Y: 0.5}} {
		d, g := EvalGrad(s, p)
		if d != Eval(s, p) {
			t.Errorf("EvalGrad distance %v differs from Eval %v", d, Eval(s, p))
		}
		gx := (Eval(s, p.Add(v2.Vec{X: h})) - Eval(s, p.Sub(v2.Vec{X: h}))) / (2 * h)
		gy := (Eval(s, p.Add(v2.Vec{Y: h})) - Eval(s, p.Sub(v2.Vec{Y: h}))) / (2 * h)
		if math.Abs(gx-g.X) > 1e-4 || math.Abs(gy-g.Y) > 1e-4 {
			t.Errorf("gradient at %v = %v, finite difference (%v, %v)", p, g, gx, gy)
		}
	}
}

// ---------------------------------------------------------------------------
// Batch evaluation
// ---------------------------------------------------------------------------

func TestBatchWorkerIndependent(t *testing.T) {
	var polys [][]v2.Vec
	for i := 0; i < 6; i++ {
		polys = append(polys, circle(float64(i)*7, float64(i%2)*3, 3, 40))
	}
	s := set(polys...)
	var pts []v2.Vec
	for x := -5.0; x < 45; x += 0.37 {
		for y := -6.0; y < 9; y += 0.41 {
			pts = append(pts, v2.Vec{X: x, Y: y})
		}
	}
	one := Batch(s, pts, 1)
	many := Batch(s, pts, 8)
	if d := cmp.Diff(one, many); d != "" {
		t.Fatalf("Batch differs between 1 and 8 workers:\n%s", d)
	}
	d1, g1 := BatchGrad(s, pts, 1)
	d8, g8 := BatchGrad(s, pts, 8)
	if d := cmp.Diff(d1, d8); d != "" {
		t.Fatalf("BatchGrad distances differ:\n%s", d)
	}
	if d := cmp.Diff(g1, g8); d != "" {
		t.Fatalf("BatchGrad gradients differ:\n%s", d)
	}
	for i, p := range pts[:50] {
		if one[i] != Eval(s, p) {
			t.Fatalf("Batch[%d] = %v, Eval = %v", i, one[i], Eval(s, p))
		}
	}
}

func TestRingDistance(t *testing.T) {
	s := set(square(0, 0, 2), square(10, 0, 2))
	if d := RingDistance(&s.Rings[1], v2.Vec{X: 1, Y: 1}); math.Abs(d-9) > 1e-12 {
		t.Errorf("RingDistance = %v, want 9", d)
	}
	if !crossings(&s.Rings[0], v2.Vec{X: 1, Y: 1}) {
		t.Error("crossings(first square, its center) = false")
	}
	if crossings(&s.Rings[1], v2.Vec{X: 1, Y: 1}) {
		t.Error("crossings(second square, first center) = true")
	}
}
