package meshrepair

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/volumetriclabs/scancore/mesh"
	"github.com/volumetriclabs/scancore/pointcloud"
	"github.com/volumetriclabs/scancore/reconstruct"
)

// State is the observable phase of the most recent repair session.
type State int

// The session states, in the order a successful repair moves through them.
const (
	StateIdle = State(iota)
	StateAnalyzingCharacteristics
	StateSelectingMethod
	StateExecuting
	StateSucceeded
	StateFailedWithFallback
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzingCharacteristics:
		return "analyzing_characteristics"
	case StateSelectingMethod:
		return "selecting_method"
	case StateExecuting:
		return "executing"
	case StateSucceeded:
		return "succeeded"
	case StateFailedWithFallback:
		return "failed_with_fallback"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Coordinator.
type Options struct {
	// Method picks the repair strategy. MethodAuto selects one from the
	// cloud characteristics.
	Method   Method
	Voxel    reconstruct.VoxelConfig
	Poisson  reconstruct.PoissonConfig
	Topology TopologyConfig
	Smooth   SmoothConfig
	// NormalNeighbors is the neighborhood size used to estimate normals
	// when the capture did not provide them.
	NormalNeighbors int
	// MemoryBudgetBytes caps the estimated working set of concurrent
	// repairs. Zero means unlimited.
	MemoryBudgetBytes uint64
	// Timeout bounds a single strategy attempt. Zero disables it.
	Timeout time.Duration
	// EnableFallback retries a failed repair with progressively simpler
	// strategies.
	EnableFallback bool
	// EnableSmoothing applies Taubin smoothing to implicit surface and
	// refined meshes. The voxel path follows Voxel.EnableSmoothing.
	EnableSmoothing bool
	// Clock overrides the wall clock in tests.
	Clock clock.Clock
}

// DefaultOptions returns the options the capture pipeline starts from.
func DefaultOptions() Options {
	return Options{
		Method:            MethodAuto,
		Voxel:             reconstruct.DefaultVoxelConfig(),
		Poisson:           reconstruct.DefaultPoissonConfig(),
		Topology:          DefaultTopologyConfig(),
		Smooth:            DefaultSmoothConfig(),
		NormalNeighbors:   pointcloud.DefaultNormalNeighborhood,
		MemoryBudgetBytes: 512 << 20,
		Timeout:           30 * time.Second,
		EnableFallback:    true,
		EnableSmoothing:   true,
	}
}

// Validate checks every nested config so a bad option fails construction
// rather than the first repair.
func (o Options) Validate() error {
	if o.Method < MethodAuto || o.Method > MethodHybrid {
		return errors.Wrapf(ErrUnknownMethod, "%d", int(o.Method))
	}
	if err := o.Voxel.Validate(); err != nil {
		return err
	}
	if err := o.Poisson.Validate(); err != nil {
		return err
	}
	if err := o.Topology.Validate(); err != nil {
		return err
	}
	if err := o.Smooth.Validate(); err != nil {
		return err
	}
	if o.NormalNeighbors < 3 {
		return errors.Errorf("normal neighbors must be at least 3, got %d", o.NormalNeighbors)
	}
	if o.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", o.Timeout)
	}
	return nil
}

// fallbackLadder lists the simpler strategies to try, in order, after a
// method fails. Voxel is the floor since it cannot produce open surfaces.
var fallbackLadder = map[Method][]Method{
	MethodPoisson: {MethodVoxel},
	MethodNeural:  {MethodPoisson, MethodVoxel},
	MethodHybrid:  {MethodPoisson, MethodVoxel},
}

// Coordinator runs repair sessions. It is safe for concurrent use; all
// sessions draw from one memory ledger and State reports the most recent
// transition.
type Coordinator struct {
	opts       Options
	clock      clock.Clock
	ledger     *MemoryLedger
	refiner    Refiner
	strategies map[Method]Strategy
	logger     golog.Logger

	mu    sync.Mutex
	state State
}

// NewCoordinator wires the configured strategies behind a shared memory
// ledger. refiner may be nil, in which case the neural and hybrid methods
// are unavailable.
func NewCoordinator(opts Options, refiner Refiner, logger golog.Logger) (*Coordinator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{
		opts:    opts,
		clock:   opts.Clock,
		ledger:  NewMemoryLedger(opts.MemoryBudgetBytes),
		refiner: refiner,
		logger:  logger,
		state:   StateIdle,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	params := StrategyParams{
		Voxel:           opts.Voxel,
		Poisson:         opts.Poisson,
		NormalNeighbors: opts.NormalNeighbors,
		Topology:        opts.Topology,
		Smooth:          opts.Smooth,
		EnableSmoothing: opts.EnableSmoothing,
		Logger:          logger,
	}
	c.strategies = map[Method]Strategy{
		MethodVoxel:   NewVoxelStrategy(params),
		MethodPoisson: NewPoissonStrategy(params),
	}
	if refiner != nil {
		c.strategies[MethodNeural] = NewNeuralStrategy(refiner, params)
		c.strategies[MethodHybrid] = NewHybridStrategy(refiner, params)
	}
	logger.Debugf("repair coordinator ready, %d strategies, budget %d bytes", len(c.strategies), opts.MemoryBudgetBytes)
	return c, nil
}

// State reports the phase of the most recent repair session.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev != next {
		c.logger.Debugf("repair state %s to %s", prev, next)
	}
}

// Repair turns a captured cloud into a repaired mesh, choosing and running
// a strategy under the memory budget and per attempt timeout. A non-nil
// result with warnings means a fallback strategy delivered it.
func (c *Coordinator) Repair(ctx context.Context, cloud *pointcloud.PointCloud) (*RepairResult, error) {
	start := c.clock.Now()
	if cloud == nil || cloud.Size() == 0 {
		c.setState(StateFailed)
		return nil, pointcloud.ErrEmptyCloud
	}

	c.setState(StateAnalyzingCharacteristics)
	ch := Analyze(cloud)
	c.logger.Debugf(
		"cloud characteristics: %d points, density %.0f pts/m3, coverage %.2f, noise %.2f, extent %.3f m",
		ch.PointCount, ch.Density, ch.Coverage, ch.Noise, ch.MaxExtent,
	)

	c.setState(StateSelectingMethod)
	method := c.opts.Method
	if method == MethodAuto {
		method = SelectMethod(ch, c.refiner != nil)
		c.logger.Infof("auto selected %s repair", method)
	}
	strat, ok := c.strategies[method]
	if !ok {
		c.setState(StateFailed)
		if method == MethodNeural || method == MethodHybrid {
			return nil, errors.Wrapf(ErrNeuralUnavailable, "%s repair requires a refinement model", method)
		}
		return nil, errors.Wrapf(ErrUnknownMethod, "%s", method)
	}

	c.setState(StateExecuting)
	exec, err := c.executeWithFallback(ctx, strat, cloud)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}

	after := MeasureMesh(exec.out.Mesh)
	res := &RepairResult{
		ID:             uuid.New(),
		Mesh:           exec.out.Mesh,
		Method:         exec.method,
		ProcessingTime: c.clock.Since(start),
		MemoryUsed:     exec.used,
		QualityScore:   QualityScore(exec.out.RawRecon, after, cloud.Size()),
		Watertight:     after.Watertight,
		Before:         exec.out.RawRecon,
		After:          after,
		Topology:       exec.out.Topology,
		Warnings:       append(exec.warnings, exec.out.Warnings...),
	}
	if len(exec.warnings) > 0 {
		c.setState(StateFailedWithFallback)
	} else {
		c.setState(StateSucceeded)
	}
	c.logger.Infof(
		"%s repair finished in %s: %d vertices, %d triangles, quality %.2f, watertight %t",
		exec.method, res.ProcessingTime, after.VertexCount, after.TriangleCount, res.QualityScore, res.Watertight,
	)
	return res, nil
}

// RepairMesh runs a repair session over an existing mesh, such as one
// reloaded from an earlier scan. The mesh vertices become the capture
// cloud, carrying their area weighted vertex normals so implicit strategies
// do not re-estimate orientation from scratch.
func (c *Coordinator) RepairMesh(ctx context.Context, m *mesh.Mesh) (*RepairResult, error) {
	cloud, err := pointcloud.FromMesh(m)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	c.logger.Debugf("repairing existing mesh: %d vertices, %d triangles", m.VertexCount(), m.TriangleCount())
	return c.Repair(ctx, cloud)
}

// execution is a successful strategy run plus how it came about.
type execution struct {
	out      *Outcome
	used     uint64
	method   Method
	warnings []string
}

func (c *Coordinator) executeWithFallback(ctx context.Context, primary Strategy, cloud *pointcloud.PointCloud) (*execution, error) {
	out, used, err := c.executeOnce(ctx, primary, cloud)
	if err == nil {
		return &execution{out: out, used: used, method: primary.Name()}, nil
	}
	lastErr := errors.Wrapf(err, "%s repair", primary.Name())
	if !c.opts.EnableFallback || ctx.Err() != nil {
		return nil, lastErr
	}

	var warnings []string
	prev, prevErr := primary.Name(), err
	for _, next := range fallbackLadder[primary.Name()] {
		strat, ok := c.strategies[next]
		if !ok {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("%s repair failed, fell back to %s: %v", prev, next, prevErr))
		c.logger.Warnf("%s repair failed, falling back to %s: %v", prev, next, prevErr)
		out, used, nextErr := c.executeOnce(ctx, strat, cloud)
		if nextErr == nil {
			return &execution{out: out, used: used, method: next, warnings: warnings}, nil
		}
		lastErr = errors.Wrapf(nextErr, "%s repair", next)
		if ctx.Err() != nil {
			break
		}
		prev, prevErr = next, nextErr
	}
	return nil, lastErr
}

// executeOnce runs one strategy attempt under the ledger and timeout. The
// reservation is the attempt's reported memory use.
func (c *Coordinator) executeOnce(ctx context.Context, strat Strategy, cloud *pointcloud.PointCloud) (*Outcome, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	need := strat.EstimateMemory(cloud)
	if err := c.ledger.Reserve(need); err != nil {
		return nil, 0, err
	}
	defer c.ledger.Release(need)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timerC <-chan time.Time
	if c.opts.Timeout > 0 {
		timer := c.clock.Timer(c.opts.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	type repairReturn struct {
		out *Outcome
		err error
	}
	done := make(chan repairReturn, 1)
	goutils.PanicCapturingGo(func() {
		out, err := strat.Repair(runCtx, cloud)
		done <- repairReturn{out, err}
	})

	select {
	case r := <-done:
		return r.out, need, r.err
	case <-timerC:
		return nil, 0, errors.Wrapf(ErrRepairTimeout, "exceeded %s", c.opts.Timeout)
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}
