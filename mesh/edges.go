package mesh

import (
	"sort"
)

// Edge is an undirected edge between two vertex indices, stored with the
// smaller index first so it can serve as a map key.
type Edge struct {
	A, B uint32
}

// NewEdge returns the canonical form of the edge between two vertex indices.
func NewEdge(a, b uint32) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// EdgeCounts returns, for every undirected edge in the mesh, the number of
// triangles that reference it. A closed manifold surface has every edge
// referenced exactly twice.
func (m *Mesh) EdgeCounts() map[Edge]int {
	counts := make(map[Edge]int, len(m.Indices))
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		counts[NewEdge(a, b)]++
		counts[NewEdge(b, c)]++
		counts[NewEdge(c, a)]++
	}
	return counts
}

// BoundaryEdges returns the edges referenced by exactly one triangle, sorted
// by vertex index so repeated calls yield the same order.
func (m *Mesh) BoundaryEdges() []Edge {
	return m.edgesWithCount(func(n int) bool { return n == 1 })
}

// NonManifoldEdges returns the edges referenced by more than two triangles,
// sorted by vertex index.
func (m *Mesh) NonManifoldEdges() []Edge {
	return m.edgesWithCount(func(n int) bool { return n > 2 })
}

func (m *Mesh) edgesWithCount(match func(int) bool) []Edge {
	var edges []Edge
	for e, n := range m.EdgeCounts() {
		if match(n) {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// BoundaryLoops groups the boundary edges into closed rings of vertex
// indices, each ring ordered by walking edge adjacency from its lowest
// numbered edge. A ring corresponds to one hole in the surface. Boundary
// chains that never close, which only happens on badly broken input, are
// dropped. The result is deterministic for a given mesh.
func (m *Mesh) BoundaryLoops() [][]uint32 {
	boundary := m.BoundaryEdges()
	if len(boundary) == 0 {
		return nil
	}
	neighbors := make(map[uint32][]uint32, len(boundary))
	for _, e := range boundary {
		neighbors[e.A] = append(neighbors[e.A], e.B)
		neighbors[e.B] = append(neighbors[e.B], e.A)
	}
	for _, adj := range neighbors {
		sort.Slice(adj, func(i, j int) bool { return adj[i] < adj[j] })
	}

	visited := make(map[Edge]bool, len(boundary))
	var loops [][]uint32
	for _, start := range boundary {
		if visited[start] {
			continue
		}
		visited[start] = true
		loop := []uint32{start.A}
		cur := start.B
		closed := false
		for {
			if cur == start.A {
				closed = true
				break
			}
			loop = append(loop, cur)
			next, ok := nextUnvisited(neighbors[cur], cur, visited)
			if !ok {
				break
			}
			visited[NewEdge(cur, next)] = true
			cur = next
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

func nextUnvisited(candidates []uint32, from uint32, visited map[Edge]bool) (uint32, bool) {
	for _, cand := range candidates {
		if !visited[NewEdge(from, cand)] {
			return cand, true
		}
	}
	return 0, false
}

// IsWatertight reports whether the mesh is a closed manifold surface, that
// is, non-empty with every edge shared by exactly two triangles.
func (m *Mesh) IsWatertight() bool {
	if m.TriangleCount() == 0 {
		return false
	}
	for _, n := range m.EdgeCounts() {
		if n != 2 {
			return false
		}
	}
	return true
}
