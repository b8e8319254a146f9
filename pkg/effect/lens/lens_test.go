package lens

import (
	"errors"
	"math"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/tyhts0829/grafix-sub000/pkg/distance"
	"github.com/tyhts0829/grafix-sub000/pkg/effect"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
	"github.com/tyhts0829/grafix-sub000/pkg/plane"
	"github.com/tyhts0829/grafix-sub000/pkg/ring"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func circle(r float64, n int) []v2.Vec {
	pts := make([]v2.Vec, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = v2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)}
	}
	pts[n] = pts[0]
	return pts
}

func to3(pts []v2.Vec) []v3.Vec {
	out := make([]v3.Vec, len(pts))
	for i, p := range pts {
		out[i] = v3.Vec{X: p.X, Y: p.Y}
	}
	return out
}

func circleMask() lineart.LineArt {
	return lineart.FromPolylines(to3(circle(10, 64)))
}

func circleSet() *ring.Set {
	return ring.Extract([][]v2.Vec{circle(10, 64)}, 0, plane.Identity(0))
}

func points(ps ...v3.Vec) lineart.LineArt {
	return lineart.FromPolylines(ps)
}

func near(a, b v3.Vec, tol float64) bool {
	return a.Sub(b).Length() <= tol
}

// ---------------------------------------------------------------------------
// Transform mode
// ---------------------------------------------------------------------------

func TestZeroStrengthIsIdentity(t *testing.T) {
	base := points(v3.Vec{X: 1, Y: 2, Z: 3}, v3.Vec{X: 4, Y: 5, Z: 6})
	p := DefaultParams()
	p.Strength = 0
	out, err := Run(base, circleMask(), p)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !lineart.Equal(base, out) {
		t.Errorf("zero strength changed the input: %v", out.Coords)
	}
}

func TestTransforms(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		in     v3.Vec
		want   v3.Vec
	}{
		{
			name:   "scale inside",
			mutate: func(p *Params) { p.Scale = 2 },
			in:     v3.Vec{X: 5},
			want:   v3.Vec{X: 10},
		},
		{
			name:   "outside untouched by inside side",
			mutate: func(p *Params) { p.Scale = 2 },
			in:     v3.Vec{X: 15},
			want:   v3.Vec{X: 15},
		},
		{
			name:   "outside within band with both sides",
			mutate: func(p *Params) { p.Scale = 2; p.Side = BothSides; p.BandWidth = 10 },
			in:     v3.Vec{X: 15},
			want:   v3.Vec{X: 15 + 15*0.15625}, // smoothstep(0.25)
		},
		{
			name:   "outside beyond band with both sides",
			mutate: func(p *Params) { p.Scale = 2; p.Side = BothSides },
			in:     v3.Vec{X: 15},
			want:   v3.Vec{X: 15},
		},
		{
			name:   "rotate",
			mutate: func(p *Params) { p.Transform = Rotate; p.Angle = 90 },
			in:     v3.Vec{X: 5},
			want:   v3.Vec{Y: 5},
		},
		{
			name:   "shear",
			mutate: func(p *Params) { p.Transform = Shear; p.Shear = 0.5 },
			in:     v3.Vec{Y: 4},
			want:   v3.Vec{X: 2, Y: 4},
		},
		{
			name:   "swirl beyond radius",
			mutate: func(p *Params) { p.Transform = Swirl; p.Angle = 90; p.SwirlRadius = 4 },
			in:     v3.Vec{X: 5},
			want:   v3.Vec{X: 5},
		},
		{
			name:   "pivot",
			mutate: func(p *Params) { p.Scale = 2; p.Center = Pivot; p.Pivot = v3.Vec{X: 2} },
			in:     v3.Vec{X: 5},
			want:   v3.Vec{X: 8},
		},
		{
			name:   "residual z kept",
			mutate: func(p *Params) { p.Scale = 2 },
			in:     v3.Vec{X: 5, Z: 0.5},
			want:   v3.Vec{X: 10, Z: 0.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			// ramp saturates at one band width inside, so inside points
			// here have weight 1
			p.Profile = Ramp
			p.BandWidth = 1
			tt.mutate(&p)
			out, err := Run(points(tt.in), circleMask(), p)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := out.Coords[0]; !near(got, tt.want, 1e-9) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSwirlInsideRadius(t *testing.T) {
	p := DefaultParams()
	p.Profile = Ramp
	p.BandWidth = 1
	p.Transform = Swirl
	p.Angle = 90
	p.SwirlRadius = 10
	out := Apply(points(v3.Vec{X: 5}), circleMask(), p)
	// half the radius turns by half the angle
	want := v3.Vec{X: 5 * math.Cos(math.Pi/4), Y: 5 * math.Sin(math.Pi/4)}
	if got := out.Coords[0]; !near(got, want, 1e-9) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBandProfile(t *testing.T) {
	p := DefaultParams()
	p.Profile = Band
	p.BandWidth = 10
	p.Scale = 2
	tests := []struct {
		name string
		d    float64
		want float64
	}{
		{"boundary", 0, 0},
		{"middle", -5, 1},
		{"quarter", -2.5, math.Sin(math.Pi / 4)},
		{"beyond band", -11, 0},
		{"outside", 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.weight(tt.d); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("weight(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}

	// a vertex deeper than the band keeps its position
	p.BandWidth = 4
	out := Apply(points(v3.Vec{X: 0.1}), circleMask(), p)
	d := distance.Eval(circleSet(), v2.Vec{X: 0.1})
	if d > -p.BandWidth {
		t.Fatalf("test point is inside the band (d = %v)", d)
	}
	if got := out.Coords[0]; got != (v3.Vec{X: 0.1}) {
		t.Errorf("got %v, want the input point", got)
	}
}

func TestRampIsMonotone(t *testing.T) {
	for _, side := range []Side{InsideOnly, BothSides} {
		t.Run(string(side), func(t *testing.T) {
			p := DefaultParams()
			p.Profile = Ramp
			p.Side = side
			prev := 2.0
			for d := -12.0; d <= 12; d += 0.5 {
				w := p.weight(d)
				if w > prev {
					t.Fatalf("weight increased at d=%v", d)
				}
				prev = w
			}
		})
	}
}

func TestRampIsLocal(t *testing.T) {
	p := DefaultParams()
	p.Profile = Ramp
	tests := []struct {
		side Side
		d    float64
		want float64
	}{
		{InsideOnly, -10, 1},
		{InsideOnly, -5, 0.5},
		{InsideOnly, 0, 0},
		{InsideOnly, 5, 0},
		{BothSides, -10, 1},
		{BothSides, 0, 0.5},
		{BothSides, 5, 0.15625},
		{BothSides, 10, 0},
		{BothSides, 1e6, 0},
	}
	for _, tt := range tests {
		p.Side = tt.side
		if got := p.weight(tt.d); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: weight(%v) = %v, want %v", tt.side, tt.d, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Displace mode
// ---------------------------------------------------------------------------

func TestDisplaceAttract(t *testing.T) {
	p := DefaultParams()
	p.Mode = Displace
	p.Falloff = 1e12
	set := circleSet()
	out := Apply(points(v3.Vec{X: 5}, v3.Vec{X: 2, Y: 3}), circleMask(), p)
	for i, q := range out.Coords {
		if d := distance.Eval(set, v2.Vec{X: q.X, Y: q.Y}); math.Abs(d) > 1e-6 {
			t.Errorf("vertex %d: sdf %v after attraction to level 0", i, d)
		}
	}
}

func TestDisplaceRepel(t *testing.T) {
	p := DefaultParams()
	p.Mode = Displace
	p.Direction = Repel
	p.Falloff = 1e12
	set := circleSet()
	in := v2.Vec{X: 9}
	before := distance.Eval(set, in)
	out := Apply(points(v3.Vec{X: in.X}), circleMask(), p)
	q := out.Coords[0]
	after := distance.Eval(set, v2.Vec{X: q.X, Y: q.Y})
	if after >= before-1 {
		t.Errorf("sdf %v -> %v, want the vertex pushed deeper", before, after)
	}
}

func TestDisplaceMaxDeviation(t *testing.T) {
	p := DefaultParams()
	p.Mode = Displace
	p.MaxDeviation = 2
	in := points(v3.Vec{X: 1}, v3.Vec{X: 30})
	out := Apply(in, circleMask(), p)
	if !lineart.Equal(in, out) {
		t.Errorf("vertices outside the deviation band moved: %v", out.Coords)
	}
}

// ---------------------------------------------------------------------------
// Degraded inputs
// ---------------------------------------------------------------------------

func TestPassThrough(t *testing.T) {
	base := points(v3.Vec{X: 5}, v3.Vec{X: 6, Y: 1})
	tilted := lineart.FromPolylines([]v3.Vec{{}, {X: 10}, {X: 10, Y: 10, Z: 5}, {Y: 10}, {}})
	tests := []struct {
		name   string
		mask   lineart.LineArt
		mutate func(*Params)
		want   error
	}{
		{"no mask", lineart.New(), func(*Params) {}, effect.ErrNoRings},
		{"open mask", lineart.FromPolylines([]v3.Vec{{}, {X: 10}, {X: 10, Y: 10}}), func(*Params) {}, effect.ErrNoRings},
		{"non-planar mask", tilted, func(*Params) {}, effect.ErrNonPlanar},
		{"bad band", circleMask(), func(p *Params) { p.BandWidth = 0 }, effect.ErrParameter},
		{"bad mode", circleMask(), func(p *Params) { p.Mode = "bend" }, effect.ErrParameter},
		{"bad falloff", circleMask(), func(p *Params) { p.Mode = Displace; p.Falloff = 0 }, effect.ErrParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			out, err := Run(base, tt.mask, p)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if !lineart.Equal(base, out) {
				t.Errorf("base changed: %v", out.Coords)
			}
		})
	}
}

func TestOffsetsPreserved(t *testing.T) {
	base := lineart.FromPolylines(
		[]v3.Vec{{X: 1}, {X: 2}},
		[]v3.Vec{{Y: 1}, {Y: 2}, {Y: 3}},
	)
	out := Apply(base, circleMask(), DefaultParams())
	if out.Len() != 2 || out.VertexCount() != 5 {
		t.Fatalf("got %d polylines / %d vertices", out.Len(), out.VertexCount())
	}
	if err := out.Validate(); err != nil {
		t.Error(err)
	}
}
