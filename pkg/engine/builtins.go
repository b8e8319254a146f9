package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/tyhts0829/grafix-sub000/pkg/effect/growth"
	"github.com/tyhts0829/grafix-sub000/pkg/effect/isocontour"
	"github.com/tyhts0829/grafix-sub000/pkg/effect/lens"
	"github.com/tyhts0829/grafix-sub000/pkg/effect/metaball"
	"github.com/tyhts0829/grafix-sub000/pkg/effect/reaction"
	"github.com/tyhts0829/grafix-sub000/pkg/lineart"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites user source before zygomys sees it:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords never
//     collide with user variables.
//  2. kebab-case identifiers become snake_case (reaction-diffusion ->
//     reaction_diffusion); zygomys reads a bare hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied untouched.
func preprocessSource(source string) string {
	s := scanner{src: []byte(source)}
	s.out = make([]byte, 0, len(source)+len(source)/4)
	for s.i < len(s.src) {
		c := s.src[s.i]
		switch {
		case c == '"' || c == '`':
			s.quoted(c)
		case c == ';':
			s.comment()
		case c == ':' && s.peek() == '=':
			s.emit(2)
		case c == ':' && isLetter(s.peek()):
			s.keyword()
		case c == '-' && s.i > 0 && isIdentChar(s.src[s.i-1]) && isLetter(s.peek()):
			s.out = append(s.out, '_')
			s.i++
		default:
			s.emit(1)
		}
	}
	return string(s.out)
}

type scanner struct {
	src []byte
	out []byte
	i   int
}

func (s *scanner) peek() byte {
	if s.i+1 < len(s.src) {
		return s.src[s.i+1]
	}
	return 0
}

func (s *scanner) emit(n int) {
	n = min(n, len(s.src)-s.i)
	s.out = append(s.out, s.src[s.i:s.i+n]...)
	s.i += n
}

// quoted copies a string literal including its delimiters. Backslash
// escapes apply only to double-quoted strings.
func (s *scanner) quoted(q byte) {
	s.emit(1)
	for s.i < len(s.src) && s.src[s.i] != q {
		if q == '"' && s.src[s.i] == '\\' {
			s.emit(2)
			continue
		}
		s.emit(1)
	}
	s.emit(1)
}

func (s *scanner) comment() {
	s.out = append(s.out, '/', '/')
	for s.i < len(s.src) && s.src[s.i] == ';' {
		s.i++
	}
	for s.i < len(s.src) && s.src[s.i] != '\n' {
		s.emit(1)
	}
}

func (s *scanner) keyword() {
	j := s.i + 1
	for j < len(s.src) && isKWChar(s.src[j]) {
		j++
	}
	s.out = append(s.out, '"')
	s.out = append(s.out, kwPrefix...)
	s.out = append(s.out, s.src[s.i+1:j]...)
	s.out = append(s.out, '"')
	s.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpLineArt wraps a lineart.LineArt so it can be passed between builtins.
type sexpLineArt struct {
	art lineart.LineArt
}

func (l *sexpLineArt) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(lineart %d polylines %d vertices)", l.art.Len(), l.art.VertexCount())
}
func (l *sexpLineArt) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW checks if a Sexp is a preprocessed keyword string and returns the
// keyword name without its prefix.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. A
// trailing keyword with no value is bound to nil.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// binder copies keyword arguments into a parameter struct. The first
// failure is kept; later calls are no-ops.
type binder struct {
	op  string
	kw  map[string]zygo.Sexp
	err error
}

func bind(op string, pa kwArgs) *binder {
	return &binder{op: op, kw: pa.kw}
}

func (b *binder) take(name string) (zygo.Sexp, bool) {
	if b.err != nil {
		return nil, false
	}
	v, ok := b.kw[name]
	delete(b.kw, name)
	return v, ok
}

func (b *binder) fail(name string, err error) {
	b.err = fmt.Errorf("%s: %s: %w", b.op, name, err)
}

func (b *binder) num(name string, dst *float64) {
	if v, ok := b.take(name); ok {
		f, err := toFloat64(v)
		if err != nil {
			b.fail(name, err)
			return
		}
		*dst = f
	}
}

func (b *binder) count(name string, dst *int) {
	if v, ok := b.take(name); ok {
		n, err := toInt(v)
		if err != nil {
			b.fail(name, err)
			return
		}
		*dst = int(n)
	}
}

func (b *binder) seed(name string, dst *uint64) {
	if v, ok := b.take(name); ok {
		n, err := toInt(v)
		if err != nil {
			b.fail(name, err)
			return
		}
		if n < 0 {
			b.fail(name, fmt.Errorf("expected non-negative integer, got %d", n))
			return
		}
		*dst = uint64(n)
	}
}

func (b *binder) flag(name string, dst *bool) {
	if v, ok := b.take(name); ok {
		t, err := toBool(v)
		if err != nil {
			b.fail(name, err)
			return
		}
		*dst = t
	}
}

func (b *binder) vec(name string, dst *v3.Vec) {
	if v, ok := b.take(name); ok {
		p, err := toVec3(v)
		if err != nil {
			b.fail(name, err)
			return
		}
		*dst = p
	}
}

// word binds a keyword or string argument to a string-typed enum. Values
// are checked by the effect itself.
func word[T ~string](b *binder, name string, dst *T) {
	if v, ok := b.take(name); ok {
		s, err := toKeywordString(v)
		if err != nil {
			b.fail(name, err)
			return
		}
		*dst = T(s)
	}
}

// done reports the first binding error or any keyword nobody consumed.
func (b *binder) done() error {
	if b.err != nil {
		return b.err
	}
	if len(b.kw) == 0 {
		return nil
	}
	names := make([]string, 0, len(b.kw))
	for k := range b.kw {
		names = append(names, ":"+k)
	}
	sort.Strings(names)
	return fmt.Errorf("%s: unknown keyword %s", b.op, strings.Join(names, " "))
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer; floats must be integral.
func toInt(s zygo.Sexp) (int64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return v.Val, nil
	case *zygo.SexpFloat:
		if v.Val == math.Trunc(v.Val) && math.Abs(v.Val) < 1<<53 {
			return int64(v.Val), nil
		}
		return 0, fmt.Errorf("expected integer, got %g", v.Val)
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_inside) and plain strings ("inside").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toLineArt extracts line-art from a sexpLineArt.
func toLineArt(s zygo.Sexp) (lineart.LineArt, error) {
	if l, ok := s.(*sexpLineArt); ok {
		return l.art, nil
	}
	return lineart.LineArt{}, fmt.Errorf("expected line-art, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// source returns the single positional line-art argument of an effect.
func source(op string, pa kwArgs) (lineart.LineArt, error) {
	if len(pa.positional) != 1 {
		return lineart.LineArt{}, fmt.Errorf("%s requires one line-art argument, got %d", op, len(pa.positional))
	}
	la, err := toLineArt(pa.positional[0])
	if err != nil {
		return lineart.LineArt{}, fmt.Errorf("%s: %w", op, err)
	}
	return la, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the line-art builtins into a zygomys environment.
// Effects receive workers as their parallelism.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, inputs map[string]lineart.LineArt, workers int) {

	// -----------------------------------------------------------------------
	// (input "name")
	// -----------------------------------------------------------------------
	env.AddFunction("input", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("input requires a name argument")
		}
		key, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("input: name: %w", err)
		}
		la, ok := inputs[key]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("input: no input named %q", key)
		}
		return &sexpLineArt{art: la.Clone()}, nil
	})

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var c [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %c: %w", "xyz"[i], err)
			}
			c[i] = f
		}
		return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
	})

	// -----------------------------------------------------------------------
	// (polyline (vec3 0 0 0) (vec3 10 0 0) (vec3 10 10 0) :close true)
	// Points may also be given as one list.
	// -----------------------------------------------------------------------
	env.AddFunction("polyline", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		closeIt := false
		b := bind("polyline", pa)
		b.flag("close", &closeIt)
		if err := b.done(); err != nil {
			return zygo.SexpNull, err
		}

		items := pa.positional
		if len(items) == 1 {
			if list, err := sexpListToSlice(items[0]); err == nil {
				items = list
			}
		}
		pts := make([]v3.Vec, 0, len(items)+1)
		for i, item := range items {
			p, err := toVec3(item)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polyline: point %d: %w", i, err)
			}
			pts = append(pts, p)
		}
		if len(pts) < 2 {
			return zygo.SexpNull, fmt.Errorf("polyline requires at least 2 points, got %d", len(pts))
		}
		if closeIt && pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		return &sexpLineArt{art: lineart.FromPolylines(pts)}, nil
	})

	// -----------------------------------------------------------------------
	// (join a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("join", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		parts := make([]lineart.LineArt, len(args))
		for i, a := range args {
			la, err := toLineArt(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("join: argument %d: %w", i, err)
			}
			parts[i] = la
		}
		return &sexpLineArt{art: lineart.Concat(parts...)}, nil
	})

	// -----------------------------------------------------------------------
	// (isocontour shape :level-spacing 2 :max-dist 10 :mode :inside)
	// -----------------------------------------------------------------------
	env.AddFunction("isocontour", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		in, err := source("isocontour", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		p := isocontour.DefaultParams()
		p.Workers = workers
		b := bind("isocontour", pa)
		b.num("level-spacing", &p.LevelSpacing)
		b.count("level-step", &p.LevelStep)
		b.num("phase", &p.Phase)
		b.num("max-dist", &p.MaxDist)
		word(b, "mode", &p.Mode)
		b.num("gamma", &p.Gamma)
		b.num("grid-pitch", &p.GridPitch)
		b.num("auto-close-tolerance", &p.AutoCloseTolerance)
		b.flag("keep-original", &p.KeepOriginal)
		if err := b.done(); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpLineArt{art: isocontour.Apply(in, p)}, nil
	})

	// -----------------------------------------------------------------------
	// (metaball shape :falloff-radius 3 :threshold 0.5 :output-mode :exterior)
	// -----------------------------------------------------------------------
	env.AddFunction("metaball", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		in, err := source("metaball", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		p := metaball.DefaultParams()
		p.Workers = workers
		b := bind("metaball", pa)
		b.num("falloff-radius", &p.FalloffRadius)
		b.num("threshold", &p.Threshold)
		b.num("grid-pitch", &p.GridPitch)
		b.num("auto-close-tolerance", &p.AutoCloseTolerance)
		word(b, "output-mode", &p.OutputMode)
		b.flag("keep-original", &p.KeepOriginal)
		if err := b.done(); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpLineArt{art: metaball.Apply(in, p)}, nil
	})

	// -----------------------------------------------------------------------
	// (reaction-diffusion shape :steps 2000 :feed 0.037 :kill 0.06 :seed 7)
	//
	// Registered as "reaction_diffusion"; the preprocessor converts the
	// kebab-case name.
	// -----------------------------------------------------------------------
	env.AddFunction("reaction_diffusion", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		in, err := source("reaction-diffusion", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		p := reaction.DefaultParams()
		p.Workers = workers
		b := bind("reaction-diffusion", pa)
		b.count("steps", &p.Steps)
		b.num("feed", &p.Feed)
		b.num("kill", &p.Kill)
		b.num("du", &p.Du)
		b.num("dv", &p.Dv)
		b.num("dt", &p.Dt)
		b.num("grid-pitch", &p.GridPitch)
		word(b, "boundary", &p.Boundary)
		b.num("boundary-u", &p.BoundaryU)
		b.num("boundary-v", &p.BoundaryV)
		b.count("seed-count", &p.SeedCount)
		b.num("seed-radius", &p.SeedRadius)
		b.num("jitter", &p.Jitter)
		b.seed("seed", &p.Seed)
		b.num("level", &p.Level)
		word(b, "species", &p.Species)
		b.num("auto-close-tolerance", &p.AutoCloseTolerance)
		b.flag("keep-original", &p.KeepOriginal)
		if err := b.done(); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpLineArt{art: reaction.Apply(in, p)}, nil
	})

	// -----------------------------------------------------------------------
	// (growth shape :seed-count 3 :target-spacing 2 :iterations 200 :seed 1)
	// -----------------------------------------------------------------------
	env.AddFunction("growth", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		in, err := source("growth", pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		p := growth.DefaultParams()
		p.Workers = workers
		b := bind("growth", pa)
		b.count("seed-count", &p.SeedCount)
		b.num("target-spacing", &p.TargetSpacing)
		b.num("boundary-avoid-strength", &p.BoundaryAvoidStrength)
		word(b, "boundary-mode", &p.BoundaryMode)
		b.count("iterations", &p.Iterations)
		b.seed("seed", &p.Seed)
		b.flag("show-mask", &p.ShowMask)
		b.num("repulsion-radius", &p.RepulsionRadius)
		b.num("spring-strength", &p.SpringStrength)
		b.num("repulsion-strength", &p.RepulsionStrength)
		b.num("jitter", &p.Jitter)
		b.num("seed-radius", &p.SeedRadius)
		b.count("max-points-per-ring", &p.MaxPointsPerRing)
		b.count("max-total-points", &p.MaxTotalPoints)
		b.num("auto-close-tolerance", &p.AutoCloseTolerance)
		if err := b.done(); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpLineArt{art: growth.Apply(in, p)}, nil
	})

	// -----------------------------------------------------------------------
	// (lens base mask :transform :rotate :angle 45 :profile :ramp)
	// -----------------------------------------------------------------------
	env.AddFunction("lens", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("lens requires base and mask line-art, got %d arguments", len(pa.positional))
		}
		base, err := toLineArt(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lens: base: %w", err)
		}
		mask, err := toLineArt(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("lens: mask: %w", err)
		}
		p := lens.DefaultParams()
		p.Workers = workers
		b := bind("lens", pa)
		word(b, "mode", &p.Mode)
		word(b, "profile", &p.Profile)
		word(b, "side", &p.Side)
		b.num("band-width", &p.BandWidth)
		b.num("strength", &p.Strength)
		word(b, "transform", &p.Transform)
		b.num("scale", &p.Scale)
		b.num("angle", &p.Angle)
		b.num("shear", &p.Shear)
		b.num("swirl-radius", &p.SwirlRadius)
		word(b, "center", &p.Center)
		b.vec("pivot", &p.Pivot)
		b.num("target-level", &p.TargetLevel)
		word(b, "direction", &p.Direction)
		b.num("max-deviation", &p.MaxDeviation)
		b.num("falloff", &p.Falloff)
		b.num("auto-close-tolerance", &p.AutoCloseTolerance)
		if err := b.done(); err != nil {
			return zygo.SexpNull, err
		}
		return &sexpLineArt{art: lens.Apply(base, mask, p)}, nil
	})
}
