package bsp

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/polaris-bsp/log"
	"github.com/achilleasa/polaris-bsp/types"
)

var (
	ErrEmptyTree      = errors.New("bsp: tree has no nodes")
	ErrEmptyBounds    = errors.New("bsp: scene bounds are empty")
	ErrInvalidOptions = errors.New("bsp: leaf threshold must be at least 1 and max depth non-negative")
)

// Options control tree subdivision.
type Options struct {
	// Nodes with at most this many triangles become leafs.
	LeafThreshold int

	// Nodes at this depth become leafs regardless of their triangle count.
	MaxDepth int
}

// DefaultOptions returns the options used by the compile command.
func DefaultOptions() Options {
	return Options{
		LeafThreshold: 4,
		MaxDepth:      20,
	}
}

type Stats struct {
	Triangles    int
	TriangleRefs int
	Nodes        int
	Leafs        int
	EmptyLeafs   int
	ForcedLeafs  int
	MaxDepth     int
	MaxLeafSize  int
	BuildTime    time.Duration
}

type builder struct {
	logger log.Logger
	opts   Options

	triangles [][3]types.Vec3
	tree      *Tree
}

// Build partitions the triangles inside bounds into a BSP tree. Each node is
// split at the spatial median of the widest axis of its box. Triangles that
// straddle a split plane are referenced by both children.
func Build(triangles [][3]types.Vec3, bounds types.BBox, opts Options) (*Tree, error) {
	if opts.LeafThreshold < 1 || opts.MaxDepth < 0 {
		return nil, ErrInvalidOptions
	}
	if len(triangles) > 0 && bounds.IsEmpty() {
		return nil, ErrEmptyBounds
	}

	b := &builder{
		logger:    log.New("bsp builder"),
		opts:      opts,
		triangles: triangles,
		tree: &Tree{
			Bounds: bounds,
			Stats: Stats{
				Triangles: len(triangles),
			},
		},
	}

	workList := make([]uint32, len(triangles))
	for i := range workList {
		workList[i] = uint32(i)
	}

	start := time.Now()
	b.partition(workList, bounds, 0)
	b.tree.Stats.BuildTime = time.Since(start)
	b.tree.Stats.Nodes = len(b.tree.Nodes)
	b.tree.Stats.TriangleRefs = len(b.tree.TriangleIndices)

	st := b.tree.Stats
	b.logger.Infof(
		"BSP tree build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d (%d empty, %d forced), triangle refs: %d/%d",
		st.BuildTime.Nanoseconds()/1e6, st.MaxDepth, st.Nodes, st.Leafs, st.EmptyLeafs, st.ForcedLeafs,
		st.TriangleRefs, st.Triangles,
	)
	return b.tree, nil
}

// Partition workList inside box and return the index of the emitted node.
func (b *builder) partition(workList []uint32, box types.BBox, depth int) uint32 {
	if depth > b.tree.Stats.MaxDepth {
		b.tree.Stats.MaxDepth = depth
	}

	if len(workList) <= b.opts.LeafThreshold || depth >= b.opts.MaxDepth {
		return b.createLeaf(workList)
	}

	axis := box.MaxAxis()
	extent := box.Extent()[axis]
	if extent <= 0 {
		return b.createLeaf(workList)
	}
	splitPoint := box[0][axis] + 0.5*extent

	left, right := b.split(workList, axis, splitPoint)

	// Every triangle straddles the plane; splitting further cannot help.
	if len(left) == len(workList) && len(right) == len(workList) {
		b.tree.Stats.ForcedLeafs++
		return b.createLeaf(workList)
	}

	node := &Internal{Plane: uint32(len(b.tree.Planes))}
	nodeIndex := uint32(len(b.tree.Nodes))
	b.tree.Nodes = append(b.tree.Nodes, node)
	b.tree.Planes = append(b.tree.Planes, Plane{Axis: Axis(axis), Offset: splitPoint})

	leftBox, rightBox := box, box
	leftBox[1][axis] = splitPoint
	rightBox[0][axis] = splitPoint

	node.Left = b.partition(left, leftBox, depth+1)
	node.Right = b.partition(right, rightBox, depth+1)
	return nodeIndex
}

// Split workList against the plane at splitPoint along axis. A triangle is
// placed left if any vertex lies strictly below the plane and right if any
// vertex lies strictly above it. Triangles lying in the plane go left.
func (b *builder) split(workList []uint32, axis int, splitPoint float32) (left, right []uint32) {
	for _, tri := range workList {
		var below, above bool
		for _, v := range b.triangles[tri] {
			if v[axis] < splitPoint {
				below = true
			} else if v[axis] > splitPoint {
				above = true
			}
		}

		if below || !above {
			left = append(left, tri)
		}
		if above {
			right = append(right, tri)
		}
	}
	return left, right
}

func (b *builder) createLeaf(workList []uint32) uint32 {
	leaf := &Leaf{
		Offset: uint32(len(b.tree.TriangleIndices)),
		Count:  uint32(len(workList)),
	}
	b.tree.TriangleIndices = append(b.tree.TriangleIndices, workList...)
	b.tree.Nodes = append(b.tree.Nodes, leaf)

	b.tree.Stats.Leafs++
	if len(workList) == 0 {
		b.tree.Stats.EmptyLeafs++
	}
	if len(workList) > b.tree.Stats.MaxLeafSize {
		b.tree.Stats.MaxLeafSize = len(workList)
	}
	return uint32(len(b.tree.Nodes) - 1)
}

// String summarizes the tree for log output.
func (s Stats) String() string {
	return fmt.Sprintf("%d nodes, %d leafs, depth %d, %d refs for %d triangles", s.Nodes, s.Leafs, s.MaxDepth, s.TriangleRefs, s.Triangles)
}
