package types

import "math"

// BBox is an axis aligned bounding box defined by its min and max corners.
type BBox [2]Vec3

// EmptyBBox returns an inverted box that any Extend call will overwrite.
func EmptyBBox() BBox {
	inf := float32(math.Inf(1))
	return BBox{
		{inf, inf, inf},
		{-inf, -inf, -inf},
	}
}

// Extend grows the box so it includes point p.
func (b BBox) Extend(p Vec3) BBox {
	return BBox{MinVec3(b[0], p), MaxVec3(b[1], p)}
}

// Union returns a box enclosing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{MinVec3(b[0], o[0]), MaxVec3(b[1], o[1])}
}

// Extent returns the box size along each axis.
func (b BBox) Extent() Vec3 {
	return b[1].Sub(b[0])
}

// Center returns the box midpoint.
func (b BBox) Center() Vec3 {
	return b[0].Add(b[1]).Mul(0.5)
}

// IsEmpty returns true if the box has not been extended by any point.
func (b BBox) IsEmpty() bool {
	return b[0][0] > b[1][0] || b[0][1] > b[1][1] || b[0][2] > b[1][2]
}

// MaxAxis returns the index of the axis with the largest extent. Ties are
// resolved in x, y, z order.
func (b BBox) MaxAxis() int {
	ext := b.Extent()
	axis := 0
	if ext[1] > ext[axis] {
		axis = 1
	}
	if ext[2] > ext[axis] {
		axis = 2
	}
	return axis
}
