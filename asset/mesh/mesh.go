package mesh

import (
	"errors"
	"fmt"

	"github.com/achilleasa/polaris-bsp/types"
)

var (
	ErrEmptyMesh = errors.New("mesh: mesh contains no triangles")
)

// Material describes the surface of a group of triangles.
type Material struct {
	Name string

	// Albedo color; alpha holds the dissolve factor.
	Color types.Vec4

	// Emitted radiance. Triangles using a material with non-zero
	// emission are reported as lights.
	Emission types.Vec4
}

// IsEmissive returns true if the material emits light.
func (m *Material) IsEmissive() bool {
	return m.Emission[0] > 0 || m.Emission[1] > 0 || m.Emission[2] > 0
}

// Mesh stores triangle geometry as flat, device-ready arrays.
type Mesh struct {
	// Per-vertex attributes.
	Vertices []types.Vec3
	Normals  []types.Vec3

	// Three vertex indices per triangle.
	Indices []uint32

	Materials []Material

	// One material index per triangle.
	MaterialIndices []uint32

	// Indices of triangles with emissive materials.
	LightIndices []uint32
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Triangle returns the vertex positions of triangle tri.
func (m *Mesh) Triangle(tri int) [3]types.Vec3 {
	return [3]types.Vec3{
		m.Vertices[m.Indices[3*tri]],
		m.Vertices[m.Indices[3*tri+1]],
		m.Vertices[m.Indices[3*tri+2]],
	}
}

// Triangles returns the vertex positions of every triangle.
func (m *Mesh) Triangles() [][3]types.Vec3 {
	out := make([][3]types.Vec3, m.TriangleCount())
	for tri := range out {
		out[tri] = m.Triangle(tri)
	}
	return out
}

// BBox returns the bounding box of all referenced vertices.
func (m *Mesh) BBox() types.BBox {
	box := types.EmptyBBox()
	for _, index := range m.Indices {
		box = box.Extend(m.Vertices[index])
	}
	return box
}

// Validate checks that every index references a valid table entry.
func (m *Mesh) Validate() error {
	if len(m.Indices) == 0 {
		return ErrEmptyMesh
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh: index count %d is not a multiple of 3", len(m.Indices))
	}
	if len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("mesh: got %d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	for i, index := range m.Indices {
		if int(index) >= len(m.Vertices) {
			return fmt.Errorf("mesh: triangle %d references vertex %d; mesh has %d vertices", i/3, index, len(m.Vertices))
		}
	}

	triCount := m.TriangleCount()
	if len(m.MaterialIndices) != triCount {
		return fmt.Errorf("mesh: got %d material indices for %d triangles", len(m.MaterialIndices), triCount)
	}
	for tri, matIndex := range m.MaterialIndices {
		if int(matIndex) >= len(m.Materials) {
			return fmt.Errorf("mesh: triangle %d references material %d; mesh has %d materials", tri, matIndex, len(m.Materials))
		}
	}
	for _, tri := range m.LightIndices {
		if int(tri) >= triCount {
			return fmt.Errorf("mesh: light index %d out of range; mesh has %d triangles", tri, triCount)
		}
	}
	return nil
}
