package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/asset/mesh"
	"github.com/achilleasa/polaris-bsp/types"
)

var ErrDecoding = errors.New("scene: decoding failed")

type recordReader struct {
	buf []byte
	off int
}

func (r *recordReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *recordReader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *recordReader) vec4() types.Vec4 {
	return types.Vec4{r.f32(), r.f32(), r.f32(), r.f32()}
}

// Decode reconstructs the tree and mesh tables from the scene buffers and
// checks the same cross references that Encode enforces. Material names are
// not part of the buffers and are not restored.
func Decode(sc *Scene) (*bsp.Tree, *mesh.Mesh, error) {
	readers := make(map[BufferName]*recordReader, len(BufferNames))
	recordSizes := map[BufferName]int{
		AttribBuffer:   AttribRecordSize,
		IndexBuffer:    IndexRecordSize,
		MaterialBuffer: MaterialRecordSize,
		BBoxBuffer:     BBoxRecordSize,
		PlaneBuffer:    PlaneRecordSize,
		TreeBuffer:     NodeRecordSize,
		TreeIdBuffer:   TreeIdRecordSize,
	}
	for _, name := range BufferNames {
		data, err := sc.Buffer(name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrDecoding, err)
		}
		if len(data)%recordSizes[name] != 0 {
			return nil, nil, fmt.Errorf("%w: %s length %d is not a multiple of %d", ErrDecoding, name, len(data), recordSizes[name])
		}
		readers[name] = &recordReader{buf: data}
	}

	m := &mesh.Mesh{}
	attribs := readers[AttribBuffer]
	for attribs.off < len(attribs.buf) {
		m.Vertices = append(m.Vertices, attribs.vec4().Vec3())
		m.Normals = append(m.Normals, attribs.vec4().Vec3())
	}

	indices := readers[IndexBuffer]
	for indices.off < len(indices.buf) {
		m.Indices = append(m.Indices, indices.u32(), indices.u32(), indices.u32())
		m.MaterialIndices = append(m.MaterialIndices, indices.u32())
	}

	materials := readers[MaterialBuffer]
	for materials.off < len(materials.buf) {
		emission := materials.vec4()
		m.Materials = append(m.Materials, mesh.Material{Emission: emission, Color: materials.vec4()})
	}

	bbox := readers[BBoxBuffer]
	if len(bbox.buf) != BBoxRecordSize {
		return nil, nil, fmt.Errorf("%w: %s must contain exactly one record", ErrDecoding, BBoxBuffer)
	}
	tree := &bsp.Tree{}
	tree.Bounds[0] = bbox.vec4().Vec3()
	tree.Bounds[1] = bbox.vec4().Vec3()

	planes := readers[PlaneBuffer]
	for planes.off < len(planes.buf) {
		axis := bsp.Axis(planes.u32())
		tree.Planes = append(tree.Planes, bsp.Plane{Axis: axis, Offset: planes.f32()})
		planes.off += 8
	}

	nodes := readers[TreeBuffer]
	for nodes.off < len(nodes.buf) {
		index := len(tree.Nodes)
		tag, a, b, c := nodes.u32(), nodes.u32(), nodes.u32(), nodes.u32()
		switch tag {
		case InternalNodeTag:
			tree.Nodes = append(tree.Nodes, &bsp.Internal{Plane: a, Left: b, Right: c})
		case LeafNodeTag:
			tree.Nodes = append(tree.Nodes, &bsp.Leaf{Offset: a, Count: b})
		default:
			return nil, nil, fmt.Errorf("%w: %s record %d has unknown tag %d", ErrDecoding, TreeBuffer, index, tag)
		}
	}

	ids := readers[TreeIdBuffer]
	for ids.off < len(ids.buf) {
		tri := ids.u32()
		if tri == PaddingIndex {
			break
		}
		tree.TriangleIndices = append(tree.TriangleIndices, tri)
	}
	for ids.off < len(ids.buf) {
		if tri := ids.u32(); tri != PaddingIndex {
			return nil, nil, fmt.Errorf("%w: %s entry %d follows the padding", ErrDecoding, TreeIdBuffer, ids.off/4-1)
		}
	}

	m.LightIndices = append(m.LightIndices, sc.LightIndices...)
	if err := validate(sc, tree, m); err != nil {
		return nil, nil, err
	}
	return tree, m, nil
}

func validate(sc *Scene, tree *bsp.Tree, m *mesh.Mesh) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}

	triCount := m.TriangleCount()
	for index, tri := range tree.TriangleIndices {
		if int(tri) >= triCount {
			return fmt.Errorf("%w: %s entry %d references triangle %d; %s has %d records", ErrDecoding, TreeIdBuffer, index, tri, IndexBuffer, triCount)
		}
	}

	decoded := Counts{
		Vertices:        len(m.Vertices),
		Triangles:       triCount,
		Materials:       len(m.Materials),
		Planes:          len(tree.Planes),
		Nodes:           len(tree.Nodes),
		TriangleIndices: len(tree.TriangleIndices),
	}
	if decoded != sc.Counts {
		return fmt.Errorf("%w: buffers hold %+v records; header expects %+v", ErrDecoding, decoded, sc.Counts)
	}
	return nil
}
