package reconstruct

import (
	"github.com/golang/geo/r3"
)

type cellKey struct {
	i, j, k int
}

// freudenthalTets decomposes a cube into six tetrahedra that all share the
// main diagonal. The decomposition is translation invariant, so neighboring
// cells split their shared face along the same diagonal and the extracted
// surface has no cracks between cells. Corner indices use bit 0 for +x,
// bit 1 for +y and bit 2 for +z.
var freudenthalTets = [6][4]int{
	{0, 1, 3, 7},
	{0, 1, 5, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 4, 6, 7},
}

type tetEdgeKey struct {
	a, b cornerKey
}

// marcher walks finest-level cells and extracts the zero isosurface of the
// implicit field by marching tetrahedra. Isosurface vertices sit on lattice
// edges and are shared between every tetrahedron and cell that cuts the same
// edge.
type marcher struct {
	field       *implicitField
	vertexCache map[tetEdgeKey]uint32
	vertices    []r3.Vector
	indices     []uint32
	// triangleCells records the originating cell of every emitted triangle so
	// low density regions can be trimmed afterwards.
	triangleCells []cellKey
}

func newMarcher(field *implicitField) *marcher {
	return &marcher{
		field:       field,
		vertexCache: map[tetEdgeKey]uint32{},
	}
}

// marchCell runs marching tetrahedra over one cell of the finest lattice.
// Inside is strictly negative field, so a corner sitting exactly on the
// surface counts as outside and never produces duplicate crossings.
func (m *marcher) marchCell(cell cellKey) {
	var keys [8]cornerKey
	var values [8]float64
	var positions [8]r3.Vector
	for c := 0; c < 8; c++ {
		keys[c] = cornerKey{
			level: m.field.depth,
			i:     cell.i + (c & 1),
			j:     cell.j + ((c >> 1) & 1),
			k:     cell.k + ((c >> 2) & 1),
		}
		values[c] = m.field.valueAtCorner(keys[c])
		positions[c] = m.field.cornerPos(keys[c])
	}

	for _, tet := range freudenthalTets {
		var inside, outside []int
		for _, c := range tet {
			if values[c] < 0 {
				inside = append(inside, c)
			} else {
				outside = append(outside, c)
			}
		}

		switch len(inside) {
		case 0, 4:
			continue
		case 1:
			a := inside[0]
			v0 := m.edgeVertex(keys[a], keys[outside[0]], values[a], values[outside[0]], positions[a], positions[outside[0]])
			v1 := m.edgeVertex(keys[a], keys[outside[1]], values[a], values[outside[1]], positions[a], positions[outside[1]])
			v2 := m.edgeVertex(keys[a], keys[outside[2]], values[a], values[outside[2]], positions[a], positions[outside[2]])
			m.emitTriangle(cell, tet, values, positions, v0, v1, v2)
		case 3:
			a := outside[0]
			v0 := m.edgeVertex(keys[inside[0]], keys[a], values[inside[0]], values[a], positions[inside[0]], positions[a])
			v1 := m.edgeVertex(keys[inside[1]], keys[a], values[inside[1]], values[a], positions[inside[1]], positions[a])
			v2 := m.edgeVertex(keys[inside[2]], keys[a], values[inside[2]], values[a], positions[inside[2]], positions[a])
			m.emitTriangle(cell, tet, values, positions, v0, v1, v2)
		case 2:
			a, b := inside[0], inside[1]
			c, d := outside[0], outside[1]
			vac := m.edgeVertex(keys[a], keys[c], values[a], values[c], positions[a], positions[c])
			vad := m.edgeVertex(keys[a], keys[d], values[a], values[d], positions[a], positions[d])
			vbd := m.edgeVertex(keys[b], keys[d], values[b], values[d], positions[b], positions[d])
			vbc := m.edgeVertex(keys[b], keys[c], values[b], values[c], positions[b], positions[c])
			m.emitTriangle(cell, tet, values, positions, vac, vad, vbd)
			m.emitTriangle(cell, tet, values, positions, vac, vbd, vbc)
		}
	}
}

// edgeVertex returns the index of the isosurface vertex on the lattice edge
// between two corners, creating it by linear interpolation on first use.
func (m *marcher) edgeVertex(ka, kb cornerKey, va, vb float64, pa, pb r3.Vector) uint32 {
	if cornerKeyLess(kb, ka) {
		ka, kb = kb, ka
		va, vb = vb, va
		pa, pb = pb, pa
	}
	key := tetEdgeKey{a: ka, b: kb}
	if idx, ok := m.vertexCache[key]; ok {
		return idx
	}
	t := va / (va - vb)
	idx := uint32(len(m.vertices))
	m.vertices = append(m.vertices, pa.Add(pb.Sub(pa).Mul(t)))
	m.vertexCache[key] = idx
	return idx
}

func cornerKeyLess(a, b cornerKey) bool {
	if a.i != b.i {
		return a.i < b.i
	}
	if a.j != b.j {
		return a.j < b.j
	}
	return a.k < b.k
}

// emitTriangle appends a triangle wound so its normal points toward the
// positive (outside) side of the field.
func (m *marcher) emitTriangle(cell cellKey, tet [4]int, values [8]float64, positions [8]r3.Vector, a, b, c uint32) {
	tetCenter := r3.Vector{}
	for _, corner := range tet {
		tetCenter = tetCenter.Add(positions[corner])
	}
	tetCenter = tetCenter.Mul(0.25)
	gradient := r3.Vector{}
	for _, corner := range tet {
		gradient = gradient.Add(positions[corner].Sub(tetCenter).Mul(values[corner]))
	}

	pa, pb, pc := m.vertices[a], m.vertices[b], m.vertices[c]
	normal := pb.Sub(pa).Cross(pc.Sub(pa))
	if normal.Dot(gradient) < 0 {
		b, c = c, b
	}
	m.indices = append(m.indices, a, b, c)
	m.triangleCells = append(m.triangleCells, cell)
}
