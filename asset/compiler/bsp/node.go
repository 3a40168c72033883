package bsp

import (
	"fmt"

	"github.com/achilleasa/polaris-bsp/types"
)

type Axis uint32

const (
	XAxis Axis = iota
	YAxis
	ZAxis
)

func (a Axis) String() string {
	switch a {
	case XAxis:
		return "x"
	case YAxis:
		return "y"
	case ZAxis:
		return "z"
	}
	return fmt.Sprintf("axis(%d)", uint32(a))
}

// Plane is an axis aligned split plane.
type Plane struct {
	Axis   Axis
	Offset float32
}

// Node is either an *Internal or a *Leaf tree node.
type Node interface {
	isNode()
}

// Internal nodes split space with Planes[Plane]; triangles below the plane
// are reachable through Left and triangles above it through Right.
type Internal struct {
	Plane uint32
	Left  uint32
	Right uint32
}

// Leaf nodes reference the run TriangleIndices[Offset:Offset+Count].
type Leaf struct {
	Offset uint32
	Count  uint32
}

func (*Internal) isNode() {}
func (*Leaf) isNode() {}

// Tree is a flattened BSP tree. Nodes are stored in pre-order so the root is
// always Nodes[0] and parents precede their children.
type Tree struct {
	Nodes           []Node
	Planes          []Plane
	TriangleIndices []uint32

	// Root bounding box.
	Bounds types.BBox

	Stats Stats
}

// Walk visits every node reachable from the root along with its depth. It
// returns an error if the tree is malformed: child indices out of range or
// not greater than their parent, plane indices out of range or leaf runs
// outside TriangleIndices.
func (t *Tree) Walk(fn func(index uint32, node Node, depth int)) error {
	if len(t.Nodes) == 0 {
		return ErrEmptyTree
	}

	type entry struct {
		index uint32
		depth int
	}
	stack := []entry{{0, 0}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node := t.Nodes[cur.index].(type) {
		case *Internal:
			if int(node.Plane) >= len(t.Planes) {
				return fmt.Errorf("bsp: node %d references plane %d; tree has %d planes", cur.index, node.Plane, len(t.Planes))
			}
			for _, child := range []uint32{node.Right, node.Left} {
				if child <= cur.index || int(child) >= len(t.Nodes) {
					return fmt.Errorf("bsp: node %d has invalid child index %d", cur.index, child)
				}
				stack = append(stack, entry{child, cur.depth + 1})
			}
		case *Leaf:
			if uint64(node.Offset)+uint64(node.Count) > uint64(len(t.TriangleIndices)) {
				return fmt.Errorf("bsp: leaf %d range [%d, %d) exceeds %d triangle indices", cur.index, node.Offset, node.Offset+node.Count, len(t.TriangleIndices))
			}
		default:
			return fmt.Errorf("bsp: node %d has unknown type %T", cur.index, node)
		}

		fn(cur.index, t.Nodes[cur.index], cur.depth)
	}
	return nil
}

// Validate checks the structural integrity of the tree.
func (t *Tree) Validate() error {
	return t.Walk(func(uint32, Node, int) {})
}
