package meshrepair

import (
	"time"

	"github.com/google/uuid"

	"github.com/volumetriclabs/scancore/mesh"
)

// RepairResult is the final product of a repair session.
type RepairResult struct {
	// ID uniquely identifies the session for logs and downstream storage.
	ID   uuid.UUID
	Mesh *mesh.Mesh
	// Method is the strategy that actually produced Mesh, which differs
	// from the requested one when a fallback ran.
	Method         Method
	ProcessingTime time.Duration
	// MemoryUsed is the estimate reserved against the budget, not a
	// measured peak.
	MemoryUsed uint64
	// QualityScore grades the repair in [0, 1].
	QualityScore float64
	Watertight   bool
	// Before describes the raw reconstructed surface, After the delivered
	// mesh.
	Before   MeshMetrics
	After    MeshMetrics
	Topology TopologyStats
	Warnings []string
}
