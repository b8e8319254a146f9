package growth

import (
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// grid is a uniform spatial hash over a point snapshot. Buckets keep point
// indices in insertion order so neighbour sums are reproducible.
type grid struct {
	size    float64
	buckets map[[2]int][]int
}

func newGrid(pts []v2.Vec, size float64) *grid {
	g := &grid{size: size, buckets: make(map[[2]int][]int, len(pts))}
	for i, p := range pts {
		k := g.key(p)
		g.buckets[k] = append(g.buckets[k], i)
	}
	return g
}

func (g *grid) key(p v2.Vec) [2]int {
	return [2]int{int(math.Floor(p.X / g.size)), int(math.Floor(p.Y / g.size))}
}

// near calls fn for every point in the 3x3 block of cells around p.
func (g *grid) near(p v2.Vec, fn func(j int)) {
	k := g.key(p)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, j := range g.buckets[[2]int{k[0] + dx, k[1] + dy}] {
				fn(j)
			}
		}
	}
}
