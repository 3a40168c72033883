package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/asset/mesh"
	"github.com/achilleasa/polaris-bsp/log"
	"github.com/achilleasa/polaris-bsp/types"
)

var ErrEncoding = errors.New("scene: encoding failed")

type recordWriter struct {
	buf []byte
	off int
}

func newRecordWriter(records, recordSize int) *recordWriter {
	return &recordWriter{buf: make([]byte, records*recordSize)}
}

func (w *recordWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *recordWriter) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *recordWriter) vec4(v types.Vec4) {
	for _, c := range v {
		w.f32(c)
	}
}

// Encode serializes a BSP tree and the mesh it was built from into the scene
// buffers. It fails with ErrEncoding if any record references an entry
// outside the bounds of the table it points into.
func Encode(tree *bsp.Tree, m *mesh.Mesh) (*Scene, error) {
	logger := log.New("scene encoder")
	start := time.Now()

	if tree.Bounds.IsEmpty() {
		return nil, fmt.Errorf("%w: scene bounds are empty", ErrEncoding)
	}

	sc := &Scene{
		Buffers:      make(map[BufferName][]byte),
		Bounds:       tree.Bounds,
		LightIndices: append([]uint32(nil), m.LightIndices...),
		Counts: Counts{
			Vertices:        len(m.Vertices),
			Triangles:       m.TriangleCount(),
			Materials:       len(m.Materials),
			Planes:          len(tree.Planes),
			Nodes:           len(tree.Nodes),
			TriangleIndices: len(tree.TriangleIndices),
		},
	}

	encoders := []struct {
		name BufferName
		fn   func() ([]byte, error)
	}{
		{AttribBuffer, func() ([]byte, error) { return encodeAttribs(m) }},
		{IndexBuffer, func() ([]byte, error) { return encodeIndices(m) }},
		{MaterialBuffer, func() ([]byte, error) { return encodeMaterials(m) }},
		{BBoxBuffer, func() ([]byte, error) { return encodeBBox(tree.Bounds), nil }},
		{PlaneBuffer, func() ([]byte, error) { return encodePlanes(tree.Planes) }},
		{TreeBuffer, func() ([]byte, error) { return encodeNodes(tree) }},
		{TreeIdBuffer, func() ([]byte, error) { return encodeTreeIds(tree.TriangleIndices, m.TriangleCount()) }},
	}
	for _, enc := range encoders {
		data, err := enc.fn()
		if err != nil {
			return nil, err
		}
		sc.Buffers[enc.name] = data
	}

	for _, tri := range sc.LightIndices {
		if int(tri) >= sc.Counts.Triangles {
			return nil, fmt.Errorf("%w: light references triangle %d; index table has %d records", ErrEncoding, tri, sc.Counts.Triangles)
		}
	}

	logger.Debugf("encoded scene buffers in %d ms", time.Since(start).Nanoseconds()/1e6)
	return sc, nil
}

func encodeAttribs(m *mesh.Mesh) ([]byte, error) {
	if len(m.Normals) != len(m.Vertices) {
		return nil, fmt.Errorf("%w: %s: got %d normals for %d vertices", ErrEncoding, AttribBuffer, len(m.Normals), len(m.Vertices))
	}

	w := newRecordWriter(len(m.Vertices), AttribRecordSize)
	for i, v := range m.Vertices {
		w.vec4(v.Vec4(1))
		w.vec4(m.Normals[i].Vec4(0))
	}
	return w.buf, nil
}

func encodeIndices(m *mesh.Mesh) ([]byte, error) {
	triCount := m.TriangleCount()
	if len(m.Indices) != 3*triCount || len(m.MaterialIndices) != triCount {
		return nil, fmt.Errorf("%w: %s: got %d vertex indices and %d material indices", ErrEncoding, IndexBuffer, len(m.Indices), len(m.MaterialIndices))
	}

	w := newRecordWriter(triCount, IndexRecordSize)
	for tri := 0; tri < triCount; tri++ {
		for corner := 0; corner < 3; corner++ {
			vertex := m.Indices[3*tri+corner]
			if int(vertex) >= len(m.Vertices) {
				return nil, fmt.Errorf("%w: %s record %d references vertex %d; %s has %d records", ErrEncoding, IndexBuffer, tri, vertex, AttribBuffer, len(m.Vertices))
			}
			w.u32(vertex)
		}

		material := m.MaterialIndices[tri]
		if int(material) >= len(m.Materials) {
			return nil, fmt.Errorf("%w: %s record %d references material %d; %s has %d records", ErrEncoding, IndexBuffer, tri, material, MaterialBuffer, len(m.Materials))
		}
		w.u32(material)
	}
	return w.buf, nil
}

func encodeMaterials(m *mesh.Mesh) ([]byte, error) {
	w := newRecordWriter(len(m.Materials), MaterialRecordSize)
	for _, mat := range m.Materials {
		w.vec4(mat.Emission)
		w.vec4(mat.Color)
	}
	return w.buf, nil
}

func encodeBBox(bounds types.BBox) []byte {
	w := newRecordWriter(1, BBoxRecordSize)
	w.vec4(bounds[0].Vec4(0))
	w.vec4(bounds[1].Vec4(0))
	return w.buf
}

func encodePlanes(planes []bsp.Plane) ([]byte, error) {
	w := newRecordWriter(len(planes), PlaneRecordSize)
	for index, plane := range planes {
		if plane.Axis > bsp.ZAxis {
			return nil, fmt.Errorf("%w: %s record %d has invalid axis %d", ErrEncoding, PlaneBuffer, index, plane.Axis)
		}
		w.u32(uint32(plane.Axis))
		w.f32(plane.Offset)
		w.u32(0)
		w.u32(0)
	}
	return w.buf, nil
}

func encodeNodes(tree *bsp.Tree) ([]byte, error) {
	nodeCount := len(tree.Nodes)
	if nodeCount == 0 {
		return nil, fmt.Errorf("%w: %s: tree has no nodes", ErrEncoding, TreeBuffer)
	}

	w := newRecordWriter(nodeCount, NodeRecordSize)
	for index, node := range tree.Nodes {
		switch n := node.(type) {
		case *bsp.Internal:
			if int(n.Plane) >= len(tree.Planes) {
				return nil, fmt.Errorf("%w: %s record %d references plane %d; %s has %d records", ErrEncoding, TreeBuffer, index, n.Plane, PlaneBuffer, len(tree.Planes))
			}
			for _, child := range []uint32{n.Left, n.Right} {
				if int(child) >= nodeCount || int(child) <= index {
					return nil, fmt.Errorf("%w: %s record %d references child %d; children must follow their parent within %d records", ErrEncoding, TreeBuffer, index, child, nodeCount)
				}
			}
			w.u32(InternalNodeTag)
			w.u32(n.Plane)
			w.u32(n.Left)
			w.u32(n.Right)
		case *bsp.Leaf:
			if uint64(n.Offset)+uint64(n.Count) > uint64(len(tree.TriangleIndices)) {
				return nil, fmt.Errorf("%w: %s record %d references range [%d, %d); %s has %d entries", ErrEncoding, TreeBuffer, index, n.Offset, uint64(n.Offset)+uint64(n.Count), TreeIdBuffer, len(tree.TriangleIndices))
			}
			w.u32(LeafNodeTag)
			w.u32(n.Offset)
			w.u32(n.Count)
			w.u32(0)
		default:
			return nil, fmt.Errorf("%w: %s record %d has unsupported type %T", ErrEncoding, TreeBuffer, index, node)
		}
	}
	return w.buf, nil
}

func encodeTreeIds(triangleIndices []uint32, triCount int) ([]byte, error) {
	records := (len(triangleIndices) + treeIdsPerRecord - 1) / treeIdsPerRecord
	w := newRecordWriter(records, TreeIdRecordSize)
	for index, tri := range triangleIndices {
		if int(tri) >= triCount {
			return nil, fmt.Errorf("%w: %s entry %d references triangle %d; %s has %d records", ErrEncoding, TreeIdBuffer, index, tri, IndexBuffer, triCount)
		}
		w.u32(tri)
	}
	for w.off < len(w.buf) {
		w.u32(PaddingIndex)
	}
	return w.buf, nil
}
