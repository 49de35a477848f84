package meshrepair

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/volumetriclabs/scancore/mesh"
)

// TopologyConfig controls the repair passes applied by RepairTopology.
type TopologyConfig struct {
	// MaxHoleSize is the largest boundary loop, in vertices, that hole
	// filling will close. Zero disables filling.
	MaxHoleSize int `json:"max_hole_size"`
	// RemoveNonManifold drops every triangle touching an edge shared by
	// more than two triangles.
	RemoveNonManifold bool `json:"remove_non_manifold"`
	// RemoveSmallComponents keeps only the largest connected component.
	RemoveSmallComponents bool `json:"remove_small_components"`
	// MinComponentSize is the smallest vertex count the surviving component
	// must have for pruning to act at all. A mesh whose largest component
	// is below it has no dominant object and is left alone.
	MinComponentSize int `json:"min_component_size"`
}

// DefaultTopologyConfig returns the repair settings used for scans.
func DefaultTopologyConfig() TopologyConfig {
	return TopologyConfig{
		MaxHoleSize:           100,
		RemoveNonManifold:     true,
		RemoveSmallComponents: true,
		MinComponentSize:      10,
	}
}

// Validate returns an error if the config cannot drive a repair.
func (cfg TopologyConfig) Validate() error {
	if cfg.MaxHoleSize < 0 {
		return errors.Errorf("max hole size cannot be negative, got %d", cfg.MaxHoleSize)
	}
	if cfg.MinComponentSize < 1 {
		return errors.Errorf("min component size must be positive, got %d", cfg.MinComponentSize)
	}
	return nil
}

// TopologyStats reports what RepairTopology changed.
type TopologyStats struct {
	NonManifoldTrianglesDropped int
	HolesDetected               int
	HolesFilled                 int
	ComponentsRemoved           int
}

// RepairTopology runs the non-manifold, hole filling, and component passes
// in order and compacts the result. The returned mesh is always valid; a
// mesh that is already manifold, watertight, and connected comes back
// unchanged, so running the repair on its own output is a no-op.
func RepairTopology(m *mesh.Mesh, cfg TopologyConfig, logger golog.Logger) (*mesh.Mesh, TopologyStats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, TopologyStats{}, err
	}
	if err := m.Validate(); err != nil {
		return nil, TopologyStats{}, multierr.Combine(ErrRepairTopology, err)
	}

	var stats TopologyStats
	out := m
	if cfg.RemoveNonManifold {
		out, stats.NonManifoldTrianglesDropped = RemoveNonManifold(out)
	}
	out, stats.HolesDetected, stats.HolesFilled = FillHoles(out, cfg.MaxHoleSize)
	if cfg.RemoveSmallComponents {
		out, stats.ComponentsRemoved = PruneComponents(out, cfg.MinComponentSize)
	}
	out.Compact()

	logger.Debugf("topology repair: dropped %d non-manifold triangles, filled %d of %d holes, removed %d components",
		stats.NonManifoldTrianglesDropped, stats.HolesFilled, stats.HolesDetected, stats.ComponentsRemoved)
	return out, stats, nil
}

// RemoveNonManifold returns a copy of the mesh without any triangle touching
// an edge shared by more than two triangles, along with the number of
// triangles dropped.
func RemoveNonManifold(m *mesh.Mesh) (*mesh.Mesh, int) {
	nonManifold := m.NonManifoldEdges()
	if len(nonManifold) == 0 {
		return m.Clone(), 0
	}
	bad := make(map[mesh.Edge]bool, len(nonManifold))
	for _, e := range nonManifold {
		bad[e] = true
	}

	vertices := append([]r3.Vector(nil), m.Vertices...)
	indices := make([]uint32, 0, len(m.Indices))
	dropped := 0
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if bad[mesh.NewEdge(a, b)] || bad[mesh.NewEdge(b, c)] || bad[mesh.NewEdge(c, a)] {
			dropped++
			continue
		}
		indices = append(indices, a, b, c)
	}
	return &mesh.Mesh{Vertices: vertices, Indices: indices}, dropped
}

// FillHoles closes boundary loops of at most maxHoleSize vertices with a
// triangle fan anchored at each loop's first vertex. It returns the filled
// mesh along with how many holes were detected and how many were closed.
func FillHoles(m *mesh.Mesh, maxHoleSize int) (*mesh.Mesh, int, int) {
	out := m.Clone()
	loops := m.BoundaryLoops()
	if len(loops) == 0 {
		return out, 0, 0
	}

	directed := directedEdgeSet(m)
	filled := 0
	for _, loop := range loops {
		if len(loop) > maxHoleSize {
			continue
		}
		fillLoop(out, loop, directed)
		filled++
	}
	return out, len(loops), filled
}

// directedEdgeSet records the winding of every triangle edge so fill
// triangles can wind opposite to the surface they border.
func directedEdgeSet(m *mesh.Mesh) map[[2]uint32]bool {
	set := make(map[[2]uint32]bool, len(m.Indices))
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		set[[2]uint32{a, b}] = true
		set[[2]uint32{b, c}] = true
		set[[2]uint32{c, a}] = true
	}
	return set
}

func fillLoop(out *mesh.Mesh, loop []uint32, directed map[[2]uint32]bool) {
	// The surrounding surface traverses each boundary edge once; a
	// consistently oriented fill must traverse it the opposite way.
	reversed := directed[[2]uint32{loop[0], loop[1]}]
	for i := 1; i+1 < len(loop); i++ {
		if reversed {
			out.Indices = append(out.Indices, loop[0], loop[i+1], loop[i])
		} else {
			out.Indices = append(out.Indices, loop[0], loop[i], loop[i+1])
		}
	}
}

// PruneComponents keeps only the largest connected component of the vertex
// adjacency graph induced by triangles, assuming one dominant object per
// scan. When even the largest component has fewer than minComponentSize
// vertices that assumption does not hold and the mesh is returned
// unchanged. The second return is the number of components removed.
func PruneComponents(m *mesh.Mesh, minComponentSize int) (*mesh.Mesh, int) {
	components := vertexComponents(m)
	if len(components) <= 1 {
		return m.Clone(), 0
	}

	largest := 0
	for i, c := range components {
		if len(c) > len(components[largest]) {
			largest = i
		}
	}
	if len(components[largest]) < minComponentSize {
		return m.Clone(), 0
	}

	keep := make(map[uint32]bool, len(components[largest]))
	for _, v := range components[largest] {
		keep[v] = true
	}
	vertices := append([]r3.Vector(nil), m.Vertices...)
	indices := make([]uint32, 0, len(m.Indices))
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if keep[a] && keep[b] && keep[c] {
			indices = append(indices, a, b, c)
		}
	}
	return &mesh.Mesh{Vertices: vertices, Indices: indices}, len(components) - 1
}

// vertexComponents returns the connected components of the vertex adjacency
// graph, each a list of vertex indices, seeded in ascending vertex order so
// the result is deterministic. Vertices referenced by no triangle belong to
// no component.
func vertexComponents(m *mesh.Mesh) [][]uint32 {
	adjacency := make(map[uint32][]uint32)
	addEdge := func(a, b uint32) {
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		addEdge(a, b)
		addEdge(b, c)
		addEdge(c, a)
	}

	visited := make(map[uint32]bool, len(adjacency))
	var components [][]uint32
	for v := uint32(0); int(v) < m.VertexCount(); v++ {
		if _, referenced := adjacency[v]; !referenced || visited[v] {
			continue
		}
		var component []uint32
		queue := []uint32{v}
		visited[v] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			component = append(component, cur)
			for _, n := range adjacency[cur] {
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		components = append(components, component)
	}
	return components
}
