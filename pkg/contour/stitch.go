package contour

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Loop is a closed polyline whose first and last points are equal.
type Loop []v2.Vec

// SnapFor returns the default endpoint snap distance for a grid pitch.
func SnapFor(pitch float64) float64 {
	return pitch * 1e-6
}

type key struct {
	x, y int64
}

func quantize(p v2.Vec, snap float64) key {
	if !(snap > 0) || math.IsInf(snap, 0) {
		return key{int64(math.Float64bits(p.X)), int64(math.Float64bits(p.Y))}
	}
	return key{int64(math.Round(p.X / snap)), int64(math.Round(p.Y / snap))}
}

// graph is an undirected multigraph over snapped segment endpoints.
type graph struct {
	pts   []v2.Vec // first-seen position per vertex id
	adj   [][]int  // edge ids per vertex, insertion order
	edges [][2]int
}

func (g *graph) other(e, v int) int {
	if g.edges[e][0] == v {
		return g.edges[e][1]
	}
	return g.edges[e][0]
}

// Stitch joins segments into closed loops. Endpoints closer than snap share
// a vertex; vertices are numbered in first-seen order and walks start from
// the lowest id, so the output depends only on segment order. Chains that
// dead-end are dropped, as are loops of fewer than four points.
func Stitch(segs []Segment, snap float64) []Loop {
	g := build(segs, snap)
	used := make([]bool, len(g.edges))
	var loops []Loop

	for start := range g.adj {
		for _, e0 := range g.adj[start] {
			if used[e0] {
				continue
			}
			used[e0] = true
			path := Loop{g.pts[start]}
			cur := g.other(e0, start)
		walk:
			for {
				path = append(path, g.pts[cur])
				if cur == start {
					if len(path) >= 4 {
						loops = append(loops, path)
					}
					break walk
				}
				next := -1
				for _, e := range g.adj[cur] {
					if !used[e] {
						next = e
						break
					}
				}
				if next < 0 {
					break walk // dead end
				}
				used[next] = true
				cur = g.other(next, cur)
			}
		}
	}
	return loops
}

func build(segs []Segment, snap float64) *graph {
	g := &graph{}
	ids := make(map[key]int, len(segs))
	vertex := func(p v2.Vec) int {
		k := quantize(p, snap)
		if id, ok := ids[k]; ok {
			return id
		}
		id := len(g.pts)
		ids[k] = id
		g.pts = append(g.pts, p)
		g.adj = append(g.adj, nil)
		return id
	}
	for _, s := range segs {
		a := vertex(s.A)
		b := vertex(s.B)
		if a == b {
			continue
		}
		e := len(g.edges)
		g.edges = append(g.edges, [2]int{a, b})
		g.adj[a] = append(g.adj[a], e)
		g.adj[b] = append(g.adj[b], e)
	}
	return g
}

// LoopArea returns the signed shoelace area of a loop (positive for
// counter-clockwise).
func LoopArea(l Loop) float64 {
	a := 0.0
	for i := 0; i+1 < len(l); i++ {
		a += l[i].X*l[i+1].Y - l[i+1].X*l[i].Y
	}
	return a / 2
}

// LoopsToPolylines converts loops to plain point slices.
func LoopsToPolylines(loops []Loop) [][]v2.Vec {
	out := make([][]v2.Vec, len(loops))
	for i, l := range loops {
		out[i] = []v2.Vec(l)
	}
	return out
}
