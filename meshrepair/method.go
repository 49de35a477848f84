package meshrepair

import (
	"strings"

	"github.com/pkg/errors"
)

// Method identifies one of the repair strategies.
type Method int

const (
	// MethodAuto picks a concrete method from the cloud's characteristics.
	MethodAuto Method = iota
	// MethodVoxel rebuilds the surface from a dense occupancy grid.
	MethodVoxel
	// MethodPoisson fits an implicit surface to oriented points.
	MethodPoisson
	// MethodNeural hands a coarse scaffold to the refinement model.
	MethodNeural
	// MethodHybrid refines the implicit surface result with the model.
	MethodHybrid
)

// String returns the config spelling of the method.
func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodVoxel:
		return "voxel"
	case MethodPoisson:
		return "poisson"
	case MethodNeural:
		return "neural"
	case MethodHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseMethod maps a config string onto a Method. The implicit surface
// method answers to both "poisson" and "implicit".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return MethodAuto, nil
	case "voxel":
		return MethodVoxel, nil
	case "poisson", "implicit":
		return MethodPoisson, nil
	case "neural":
		return MethodNeural, nil
	case "hybrid":
		return MethodHybrid, nil
	default:
		return MethodAuto, errors.Wrapf(ErrUnknownMethod, "%q", s)
	}
}
