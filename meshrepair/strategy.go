package meshrepair

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/pointcloud"
	"github.com/volumetriclabs/scancore/reconstruct"
)

// Memory estimate scale factors. The voxel figure is exact; the octree and
// refiner figures are deliberately generous so the ledger errs toward
// rejecting rather than thrashing.
const (
	bytesPerVoxelCell    = 8
	bytesPerOctreeNode   = 256
	refinerOverheadBytes = 64 << 20
)

// Refiner is the optional neural refinement capability. The core runs fully
// without one; methods that need it are simply not registered when the
// model is absent.
type Refiner interface {
	// Name identifies the model for logs and warnings.
	Name() string
	// Refine returns an improved version of the mesh.
	Refine(ctx context.Context, m *mesh.Mesh) (*mesh.Mesh, error)
}

// Outcome is what a strategy run produces before the coordinator wraps it
// into a RepairResult.
type Outcome struct {
	Mesh *mesh.Mesh
	// RawRecon measures the surface as reconstructed, before any repair
	// pass ran; it is the before side of the result metrics.
	RawRecon MeshMetrics
	Topology TopologyStats
	Warnings []string
}

// Strategy turns a captured point cloud into a repaired mesh.
type Strategy interface {
	// Name reports which method the strategy implements.
	Name() Method
	// EstimateMemory predicts the peak working set in bytes for the given
	// cloud so the coordinator can reserve budget before running.
	EstimateMemory(cloud *pointcloud.PointCloud) uint64
	// Repair builds the repaired mesh. Implementations stop between
	// pipeline stages when ctx is cancelled.
	Repair(ctx context.Context, cloud *pointcloud.PointCloud) (*Outcome, error)
}

// StrategyParams carries the configuration the built-in strategies share.
type StrategyParams struct {
	Voxel           reconstruct.VoxelConfig
	Poisson         reconstruct.PoissonConfig
	NormalNeighbors int
	Topology        TopologyConfig
	Smooth          SmoothConfig
	// EnableSmoothing applies Taubin smoothing at the end of the implicit
	// surface and refinement paths. The voxel path follows its own
	// VoxelConfig flag since its blocky output is smoothed by default.
	EnableSmoothing bool
	Logger          golog.Logger
}

// surfaceFinisher is the shared tail of every strategy: topology repair
// plus optional Taubin smoothing.
type surfaceFinisher struct {
	topo      TopologyConfig
	smooth    SmoothConfig
	smoothing bool
	logger    golog.Logger
}

func (f *surfaceFinisher) finish(ctx context.Context, raw *mesh.Mesh, before MeshMetrics) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &Outcome{RawRecon: before}
	repaired, stats, err := RepairTopology(raw, f.topo, f.logger)
	if err != nil {
		return nil, err
	}
	out.Topology = stats
	if f.smoothing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		smoothed, err := SmoothTaubin(repaired, f.smooth)
		if err != nil {
			return nil, err
		}
		repaired = smoothed
	}
	out.Mesh = repaired
	return out, nil
}

// voxelStrategy rebuilds the surface from a dense occupancy grid, then
// repairs and optionally smooths it. The grid surface is watertight by
// construction, so the repair passes are usually no-ops.
type voxelStrategy struct {
	voxel reconstruct.VoxelConfig
	surfaceFinisher
}

// NewVoxelStrategy returns the occupancy grid strategy.
func NewVoxelStrategy(p StrategyParams) Strategy {
	return &voxelStrategy{
		voxel: p.Voxel,
		surfaceFinisher: surfaceFinisher{
			topo:      p.Topology,
			smooth:    p.Smooth,
			smoothing: p.Voxel.EnableSmoothing,
			logger:    p.Logger,
		},
	}
}

func (s *voxelStrategy) Name() Method { return MethodVoxel }

func (s *voxelStrategy) EstimateMemory(cloud *pointcloud.PointCloud) uint64 {
	cells := uint64(s.voxel.Resolution + 2*s.voxel.PaddingCells)
	return cells * cells * cells * bytesPerVoxelCell
}

func (s *voxelStrategy) Repair(ctx context.Context, cloud *pointcloud.PointCloud) (*Outcome, error) {
	m, err := reconstruct.ReconstructVoxel(cloud, s.voxel, s.logger)
	if err != nil {
		return nil, multierr.Combine(ErrReconstructionFailed, err)
	}
	return s.finish(ctx, m, MeasureMesh(m))
}

// poissonStrategy fits an implicit surface to oriented points, estimating
// normals first when the capture did not provide them.
type poissonStrategy struct {
	poisson reconstruct.PoissonConfig
	normalK int
	surfaceFinisher
}

// NewPoissonStrategy returns the implicit surface strategy.
func NewPoissonStrategy(p StrategyParams) Strategy {
	return &poissonStrategy{
		poisson: p.Poisson,
		normalK: p.NormalNeighbors,
		surfaceFinisher: surfaceFinisher{
			topo:      p.Topology,
			smooth:    p.Smooth,
			smoothing: p.EnableSmoothing,
			logger:    p.Logger,
		},
	}
}

func (s *poissonStrategy) Name() Method { return MethodPoisson }

func (s *poissonStrategy) EstimateMemory(cloud *pointcloud.PointCloud) uint64 {
	return reconstruct.EstimateOctreeNodeCount(cloud.Size(), s.poisson.Depth) * bytesPerOctreeNode
}

func (s *poissonStrategy) Repair(ctx context.Context, cloud *pointcloud.PointCloud) (*Outcome, error) {
	m, err := s.reconstruct(ctx, cloud)
	if err != nil {
		return nil, multierr.Combine(ErrReconstructionFailed, err)
	}
	return s.finish(ctx, m, MeasureMesh(m))
}

func (s *poissonStrategy) reconstruct(ctx context.Context, cloud *pointcloud.PointCloud) (*mesh.Mesh, error) {
	if !cloud.HasNormals() {
		// never mutate the caller's cloud
		cloud = cloud.Clone()
		if err := pointcloud.EstimateNormals(ctx, cloud, s.normalK); err != nil {
			return nil, err
		}
	}
	return reconstruct.ReconstructPoisson(cloud, s.poisson, s.logger)
}

// neuralStrategy lets the refinement model do the real surfacing work from
// a coarse voxel scaffold, then re-checks topology behind it.
type neuralStrategy struct {
	refiner Refiner
	voxel   reconstruct.VoxelConfig
	surfaceFinisher
}

// NewNeuralStrategy returns the model driven strategy.
func NewNeuralStrategy(refiner Refiner, p StrategyParams) Strategy {
	return &neuralStrategy{
		refiner: refiner,
		voxel:   p.Voxel,
		surfaceFinisher: surfaceFinisher{
			topo:      p.Topology,
			smooth:    p.Smooth,
			smoothing: p.EnableSmoothing,
			logger:    p.Logger,
		},
	}
}

func (s *neuralStrategy) Name() Method { return MethodNeural }

func (s *neuralStrategy) EstimateMemory(cloud *pointcloud.PointCloud) uint64 {
	cells := uint64(s.voxel.Resolution + 2*s.voxel.PaddingCells)
	return cells*cells*cells*bytesPerVoxelCell + refinerOverheadBytes
}

func (s *neuralStrategy) Repair(ctx context.Context, cloud *pointcloud.PointCloud) (*Outcome, error) {
	scaffold, err := reconstruct.ReconstructVoxel(cloud, s.voxel, s.logger)
	if err != nil {
		return nil, multierr.Combine(ErrReconstructionFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	refined, err := s.refiner.Refine(ctx, scaffold)
	if err != nil {
		return nil, errors.Wrapf(err, "refiner %q", s.refiner.Name())
	}
	return s.finish(ctx, refined, MeasureMesh(scaffold))
}

// hybridStrategy runs the full implicit surface pipeline and then lets the
// model refine the repaired result. Smoothing is deferred to the very end
// so the mesh is not smoothed twice.
type hybridStrategy struct {
	base    *poissonStrategy
	refiner Refiner
	surfaceFinisher
}

// NewHybridStrategy returns the implicit-then-refine strategy.
func NewHybridStrategy(refiner Refiner, p StrategyParams) Strategy {
	inner := p
	inner.EnableSmoothing = false
	return &hybridStrategy{
		base:    NewPoissonStrategy(inner).(*poissonStrategy),
		refiner: refiner,
		surfaceFinisher: surfaceFinisher{
			topo:      p.Topology,
			smooth:    p.Smooth,
			smoothing: p.EnableSmoothing,
			logger:    p.Logger,
		},
	}
}

func (s *hybridStrategy) Name() Method { return MethodHybrid }

func (s *hybridStrategy) EstimateMemory(cloud *pointcloud.PointCloud) uint64 {
	return s.base.EstimateMemory(cloud) + refinerOverheadBytes
}

func (s *hybridStrategy) Repair(ctx context.Context, cloud *pointcloud.PointCloud) (*Outcome, error) {
	baseOut, err := s.base.Repair(ctx, cloud)
	if err != nil {
		return nil, err
	}
	refined, err := s.refiner.Refine(ctx, baseOut.Mesh)
	if err != nil {
		return nil, errors.Wrapf(err, "refiner %q", s.refiner.Name())
	}
	out, err := s.finish(ctx, refined, baseOut.RawRecon)
	if err != nil {
		return nil, err
	}
	out.Topology = addTopologyStats(baseOut.Topology, out.Topology)
	out.Warnings = append(baseOut.Warnings, out.Warnings...)
	return out, nil
}

func addTopologyStats(a, b TopologyStats) TopologyStats {
	return TopologyStats{
		NonManifoldTrianglesDropped: a.NonManifoldTrianglesDropped + b.NonManifoldTrianglesDropped,
		HolesDetected:               a.HolesDetected + b.HolesDetected,
		HolesFilled:                 a.HolesFilled + b.HolesFilled,
		ComponentsRemoved:           a.ComponentsRemoved + b.ComponentsRemoved,
	}
}
