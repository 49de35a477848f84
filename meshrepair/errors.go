// Package meshrepair turns captured point clouds into watertight meshes. It
// owns the topological repair passes, Taubin smoothing, the repair
// strategies built on the reconstruct package, and the Coordinator that
// selects, budgets, and supervises a repair session.
package meshrepair

import "github.com/pkg/errors"

var (
	// ErrUnknownMethod reports a repair method this build does not know.
	ErrUnknownMethod = errors.New("unknown repair method")

	// ErrNeuralUnavailable reports a request for neural refinement on a
	// coordinator constructed without a model.
	ErrNeuralUnavailable = errors.New("neural refinement model is not available")

	// ErrMemoryBudgetExceeded reports a repair rejected up front because its
	// estimated memory would not fit the session budget.
	ErrMemoryBudgetExceeded = errors.New("estimated memory exceeds the repair budget")

	// ErrRepairTimeout reports a repair cancelled by the session timeout.
	ErrRepairTimeout = errors.New("repair timed out")

	// ErrReconstructionFailed marks strategy failures that happened while
	// building the surface, as opposed to repairing its topology.
	ErrReconstructionFailed = errors.New("reconstruction failed")

	// ErrRepairTopology marks failures inside the topology repair passes.
	ErrRepairTopology = errors.New("repair topology failed")
)
