package meshrepair

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/mesh"
)

// SmoothConfig controls Taubin lambda/mu smoothing.
type SmoothConfig struct {
	// Iterations is how many lambda/mu pass pairs to run.
	Iterations int `json:"iterations"`
	// Lambda is the positive shrink factor applied on the first half of
	// each iteration.
	Lambda float64 `json:"lambda"`
	// Mu is the negative inflate factor applied on the second half. Its
	// magnitude must exceed Lambda for the pair to hold volume.
	Mu float64 `json:"mu"`
}

// DefaultSmoothConfig returns the lambda/mu pairing used for scan meshes.
func DefaultSmoothConfig() SmoothConfig {
	return SmoothConfig{Iterations: 5, Lambda: 0.5, Mu: -0.53}
}

// Validate returns an error if the factors cannot preserve volume.
func (cfg SmoothConfig) Validate() error {
	if cfg.Iterations < 1 {
		return errors.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.Lambda <= 0 {
		return errors.Errorf("lambda must be positive, got %v", cfg.Lambda)
	}
	if cfg.Mu >= 0 {
		return errors.Errorf("mu must be negative, got %v", cfg.Mu)
	}
	if math.Abs(cfg.Mu) <= cfg.Lambda {
		return errors.Errorf("mu magnitude (%v) must exceed lambda (%v)", math.Abs(cfg.Mu), cfg.Lambda)
	}
	return nil
}

// SmoothTaubin returns a smoothed copy of the mesh. Each iteration moves
// every vertex toward the centroid of its neighbors by Lambda and then away
// by Mu; the alternating signs cancel the shrinkage that a plain Laplacian
// pass accumulates. Topology is untouched and vertices with no adjacent
// triangle do not move.
func SmoothTaubin(m *mesh.Mesh, cfg SmoothConfig) (*mesh.Mesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := m.Clone()
	if out.TriangleCount() == 0 {
		return out, nil
	}

	neighbors := vertexNeighborSets(out)
	scratch := make([]r3.Vector, len(out.Vertices))
	for iter := 0; iter < cfg.Iterations; iter++ {
		laplacianPass(out.Vertices, scratch, neighbors, cfg.Lambda)
		laplacianPass(out.Vertices, scratch, neighbors, cfg.Mu)
	}
	return out, nil
}

// laplacianPass displaces every connected vertex toward (factor > 0) or
// away from (factor < 0) the centroid of its neighbors, reading the
// positions from before the pass.
func laplacianPass(vertices, scratch []r3.Vector, neighbors [][]uint32, factor float64) {
	copy(scratch, vertices)
	for i, adj := range neighbors {
		if len(adj) == 0 {
			continue
		}
		centroid := r3.Vector{}
		for _, n := range adj {
			centroid = centroid.Add(scratch[n])
		}
		centroid = centroid.Mul(1. / float64(len(adj)))
		delta := centroid.Sub(scratch[i])
		vertices[i] = scratch[i].Add(delta.Mul(factor))
	}
}

// vertexNeighborSets builds the unique neighbor list of every vertex once,
// sorted so the centroid sums are reproducible.
func vertexNeighborSets(m *mesh.Mesh) [][]uint32 {
	sets := make([]map[uint32]struct{}, m.VertexCount())
	add := func(a, b uint32) {
		if sets[a] == nil {
			sets[a] = make(map[uint32]struct{})
		}
		sets[a][b] = struct{}{}
	}
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		add(a, b)
		add(a, c)
		add(b, a)
		add(b, c)
		add(c, a)
		add(c, b)
	}

	neighbors := make([][]uint32, m.VertexCount())
	for i, set := range sets {
		if set == nil {
			continue
		}
		adj := make([]uint32, 0, len(set))
		for n := range set {
			adj = append(adj, n)
		}
		sort.Slice(adj, func(x, y int) bool { return adj[x] < adj[y] })
		neighbors[i] = adj
	}
	return neighbors
}
