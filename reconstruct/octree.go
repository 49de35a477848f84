package reconstruct

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Each node in the sample octree is either an internal node which links to
// eight octants, an empty leaf, or a filled leaf holding the oriented samples
// that fall inside its cube.
const (
	InternalNode = NodeType(iota)
	LeafNodeEmpty
	LeafNodeFilled
)

// NodeType represents the possible types of nodes in the sample octree.
type NodeType uint8

// orientedSample is one surface observation: a position and its outward
// normal.
type orientedSample struct {
	pos    r3.Vector
	normal r3.Vector
}

// sampleOctree recursively partitions the bounding cube of a scan. A filled
// leaf splits into octants once it holds more samples than the configured
// budget, until the maximum depth is reached, so dense surface regions end up
// subdivided to the finest level while empty space stays coarse.
type sampleOctree struct {
	logger         golog.Logger
	node           sampleOctreeNode
	center         r3.Vector
	sideLength     float64
	depth          int
	maxDepth       int
	samplesPerNode float64
	size           int
}

type sampleOctreeNode struct {
	nodeType NodeType
	children []*sampleOctree
	samples  []orientedSample
}

func newLeafNodeEmpty() sampleOctreeNode {
	return sampleOctreeNode{nodeType: LeafNodeEmpty}
}

func newLeafNodeFilled(samples []orientedSample) sampleOctreeNode {
	return sampleOctreeNode{nodeType: LeafNodeFilled, samples: samples}
}

func newInternalNode(children []*sampleOctree) sampleOctreeNode {
	return sampleOctreeNode{nodeType: InternalNode, children: children}
}

// newSampleOctree creates an octree covering a cube at the given center with
// the given side length.
func newSampleOctree(center r3.Vector, sideLength float64, maxDepth int, samplesPerNode float64, logger golog.Logger) (*sampleOctree, error) {
	if sideLength <= 0 {
		return nil, errors.Errorf("invalid side length (%.2f) for octree", sideLength)
	}
	return &sampleOctree{
		logger:         logger,
		node:           newLeafNodeEmpty(),
		center:         center,
		sideLength:     sideLength,
		maxDepth:       maxDepth,
		samplesPerNode: samplesPerNode,
	}, nil
}

// Size returns the number of samples stored in the octree.
func (tree *sampleOctree) Size() int {
	return tree.size
}

// NodeCount returns the total number of nodes, which tracks how much memory
// the hierarchy consumes.
func (tree *sampleOctree) NodeCount() int {
	count := 1
	for _, child := range tree.node.children {
		count += child.NodeCount()
	}
	return count
}

// Insert places an oriented sample into the tree, splitting filled leaves
// into octants whenever they exceed the per-node sample budget and depth
// remains.
func (tree *sampleOctree) Insert(p, normal r3.Vector) error {
	if !tree.checkPointPlacement(p) {
		return errors.New("error point is outside the bounds of this octree")
	}

	switch tree.node.nodeType {
	case InternalNode:
		for _, child := range tree.node.children {
			if child.checkPointPlacement(p) {
				if err := child.Insert(p, normal); err != nil {
					return err
				}
				tree.size++
				return nil
			}
		}
		return errors.New("error invalid internal node detected, please check your tree")

	case LeafNodeFilled:
		tree.node.samples = append(tree.node.samples, orientedSample{pos: p, normal: normal})
		tree.size++
		if float64(len(tree.node.samples)) > tree.samplesPerNode && tree.depth < tree.maxDepth {
			if err := tree.splitIntoOctants(); err != nil {
				return errors.Errorf("error in splitting octree into new octants: %v", err)
			}
		}
		return nil

	case LeafNodeEmpty:
		tree.node = newLeafNodeFilled([]orientedSample{{pos: p, normal: normal}})
		tree.size++
	}
	return nil
}

// splitIntoOctants turns a filled leaf into an internal node with eight
// children and redistributes its samples among them.
func (tree *sampleOctree) splitIntoOctants() error {
	switch tree.node.nodeType {
	case InternalNode:
		return errors.New("error attempted to split internal node")
	case LeafNodeEmpty:
		return errors.New("error attempted to split empty leaf node")
	case LeafNodeFilled:
		children := make([]*sampleOctree, 0, 8)
		newSideLength := tree.sideLength / 2
		for _, i := range []float64{-1, 1} {
			for _, j := range []float64{-1, 1} {
				for _, k := range []float64{-1, 1} {
					centerOffset := r3.Vector{
						X: i * newSideLength / 2.,
						Y: j * newSideLength / 2.,
						Z: k * newSideLength / 2.,
					}
					children = append(children, &sampleOctree{
						logger:         tree.logger,
						node:           newLeafNodeEmpty(),
						center:         tree.center.Add(centerOffset),
						sideLength:     newSideLength,
						depth:          tree.depth + 1,
						maxDepth:       tree.maxDepth,
						samplesPerNode: tree.samplesPerNode,
					})
				}
			}
		}

		samples := tree.node.samples
		tree.node = newInternalNode(children)
		tree.size = 0
		for _, sample := range samples {
			if err := tree.Insert(sample.pos, sample.normal); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPointPlacement returns whether a point fits inside this node's cube.
func (tree *sampleOctree) checkPointPlacement(p r3.Vector) bool {
	half := tree.sideLength/2. + floatTol
	return math.Abs(p.X-tree.center.X) <= half &&
		math.Abs(p.Y-tree.center.Y) <= half &&
		math.Abs(p.Z-tree.center.Z) <= half
}

// IterateSamples visits every stored sample, depth first.
func (tree *sampleOctree) IterateSamples(fn func(p, normal r3.Vector) bool) bool {
	switch tree.node.nodeType {
	case InternalNode:
		for _, child := range tree.node.children {
			if !child.IterateSamples(fn) {
				return false
			}
		}
	case LeafNodeFilled:
		for _, sample := range tree.node.samples {
			if !fn(sample.pos, sample.normal) {
				return false
			}
		}
	case LeafNodeEmpty:
	}
	return true
}

const floatTol = 1e-9

// EstimateOctreeNodeCount bounds the node count of a sample octree before it
// is built. Every inserted point touches at most one node per level, and the
// tree can never exceed the full grid at the finest level.
func EstimateOctreeNodeCount(pointCount, depth int) uint64 {
	if pointCount <= 0 || depth <= 0 {
		return 1
	}
	full := math.Pow(8, float64(depth))
	byPoints := float64(pointCount) * float64(depth) * 8
	return uint64(math.Min(full, byPoints)) + 1
}
