package meshrepair

import (
	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/utils"
)

// MeshMetrics captures the measurable properties of a mesh that quality
// scoring and result diagnostics are built from.
type MeshMetrics struct {
	VertexCount        int
	TriangleCount      int
	HoleCount          int
	BoundaryEdgeCount  int
	Watertight         bool
	Volume             float64
	SurfaceArea        float64
	AvgTriangleQuality float64
}

// MeasureMesh computes the metrics of a mesh in one sweep.
func MeasureMesh(m *mesh.Mesh) MeshMetrics {
	return MeshMetrics{
		VertexCount:        m.VertexCount(),
		TriangleCount:      m.TriangleCount(),
		HoleCount:          len(m.BoundaryLoops()),
		BoundaryEdgeCount:  len(m.BoundaryEdges()),
		Watertight:         m.IsWatertight(),
		Volume:             m.Volume(),
		SurfaceArea:        m.SurfaceArea(),
		AvgTriangleQuality: m.AverageTriangleQuality(),
	}
}

// Quality score weights. Watertightness dominates because a closed surface
// is the whole point of the repair.
const (
	watertightWeight  = 0.4
	holeWeight        = 0.2
	triangleWeight    = 0.2
	vertexRatioWeight = 0.2

	vertexRatioMin = 0.5
	vertexRatioMax = 2.0
)

// QualityScore blends watertightness, hole reduction, triangle shape, and
// vertex count stability into one [0,1] score for a repair that consumed
// inputPoints points and moved the mesh from before to after.
func QualityScore(before, after MeshMetrics, inputPoints int) float64 {
	score := 0.0
	if after.Watertight {
		score += watertightWeight
	}
	score += holeWeight * holeReduction(before.HoleCount, after.HoleCount)
	score += triangleWeight * utils.Clamp(after.AvgTriangleQuality, 0, 1)
	if inputPoints > 0 {
		ratio := float64(after.VertexCount) / float64(inputPoints)
		if ratio >= vertexRatioMin && ratio <= vertexRatioMax {
			score += vertexRatioWeight
		}
	}
	return score
}

// holeReduction scores how much of the hole count the repair eliminated. A
// mesh that started without holes and still has none scores full marks.
func holeReduction(before, after int) float64 {
	if before == 0 {
		if after == 0 {
			return 1
		}
		return 0
	}
	return utils.Clamp(float64(before-after)/float64(before), 0, 1)
}
