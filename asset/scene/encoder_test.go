package scene

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/polaris-bsp/asset/compiler/bsp"
	"github.com/achilleasa/polaris-bsp/asset/mesh"
	"github.com/achilleasa/polaris-bsp/types"
)

// A row of unit triangles along x; every third triangle is emissive.
func stripMesh(count int) *mesh.Mesh {
	m := &mesh.Mesh{
		Materials: []mesh.Material{
			{Name: "white", Color: types.XYZW(0.8, 0.8, 0.8, 1)},
			{Name: "light", Emission: types.XYZW(10, 10, 10, 1)},
		},
	}
	for i := 0; i < count; i++ {
		x := float32(i) * 2
		base := uint32(len(m.Vertices))
		m.Vertices = append(m.Vertices, types.XYZ(x, 0, 0), types.XYZ(x+1, 0, 0), types.XYZ(x, 1, 0))
		m.Normals = append(m.Normals, types.XYZ(0, 0, 1), types.XYZ(0, 0, 1), types.XYZ(0, 0, 1))
		m.Indices = append(m.Indices, base, base+1, base+2)
		if i%3 == 0 {
			m.MaterialIndices = append(m.MaterialIndices, 1)
			m.LightIndices = append(m.LightIndices, uint32(i))
		} else {
			m.MaterialIndices = append(m.MaterialIndices, 0)
		}
	}
	return m
}

func buildTree(t *testing.T, m *mesh.Mesh) *bsp.Tree {
	t.Helper()
	tree, err := bsp.Build(m.Triangles(), m.BBox(), bsp.Options{LeafThreshold: 2, MaxDepth: 10})
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := stripMesh(13)
	tree := buildTree(t, m)

	sc, err := Encode(tree, m)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range BufferNames {
		if len(sc.Buffers[name])%16 != 0 {
			t.Fatalf("expected %s length to be 16-byte aligned; got %d", name, len(sc.Buffers[name]))
		}
	}

	decTree, decMesh, err := Decode(sc)
	if err != nil {
		t.Fatal(err)
	}

	if len(decTree.Nodes) != len(tree.Nodes) {
		t.Fatalf("expected %d nodes; got %d", len(tree.Nodes), len(decTree.Nodes))
	}
	if len(decTree.Planes) != len(tree.Planes) {
		t.Fatalf("expected %d planes; got %d", len(tree.Planes), len(decTree.Planes))
	}
	if len(decTree.TriangleIndices) != len(tree.TriangleIndices) {
		t.Fatalf("expected %d triangle indices; got %d", len(tree.TriangleIndices), len(decTree.TriangleIndices))
	}
	if !reflect.DeepEqual(decTree.Nodes, tree.Nodes) {
		t.Fatal("decoded nodes do not match")
	}
	if !reflect.DeepEqual(decTree.Planes, tree.Planes) {
		t.Fatalf("expected planes %v; got %v", tree.Planes, decTree.Planes)
	}
	if !reflect.DeepEqual(decTree.TriangleIndices, tree.TriangleIndices) {
		t.Fatalf("expected triangle indices %v; got %v", tree.TriangleIndices, decTree.TriangleIndices)
	}
	if decTree.Bounds != tree.Bounds {
		t.Fatalf("expected bounds %v; got %v", tree.Bounds, decTree.Bounds)
	}
	if !reflect.DeepEqual(decMesh.Vertices, m.Vertices) || !reflect.DeepEqual(decMesh.Indices, m.Indices) {
		t.Fatal("decoded geometry does not match")
	}
	if !reflect.DeepEqual(decMesh.MaterialIndices, m.MaterialIndices) {
		t.Fatalf("expected material indices %v; got %v", m.MaterialIndices, decMesh.MaterialIndices)
	}
	if decMesh.Materials[1].Emission != m.Materials[1].Emission || decMesh.Materials[0].Color != m.Materials[0].Color {
		t.Fatalf("decoded materials do not match: %+v", decMesh.Materials)
	}
	if err := decTree.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestEncodeTreeRecordLayout(t *testing.T) {
	m := stripMesh(2)
	tree := &bsp.Tree{
		Nodes: []bsp.Node{
			&bsp.Internal{Plane: 0, Left: 1, Right: 2},
			&bsp.Leaf{Offset: 0, Count: 1},
			&bsp.Leaf{Offset: 1, Count: 1},
		},
		Planes:          []bsp.Plane{{Axis: bsp.XAxis, Offset: 1.5}},
		TriangleIndices: []uint32{0, 1},
		Bounds:          m.BBox(),
	}

	sc, err := Encode(tree, m)
	if err != nil {
		t.Fatal(err)
	}

	u32 := func(buf []byte, word int) uint32 { return binary.LittleEndian.Uint32(buf[4*word:]) }

	nodes := sc.Buffers[TreeBuffer]
	expNodes := []uint32{
		InternalNodeTag, 0, 1, 2,
		LeafNodeTag, 0, 1, 0,
		LeafNodeTag, 1, 1, 0,
	}
	for word, exp := range expNodes {
		if got := u32(nodes, word); got != exp {
			t.Fatalf("expected tree word %d to be %d; got %d", word, exp, got)
		}
	}

	planes := sc.Buffers[PlaneBuffer]
	if u32(planes, 0) != uint32(bsp.XAxis) || math.Float32frombits(u32(planes, 1)) != 1.5 {
		t.Fatalf("unexpected plane record %v", planes)
	}

	ids := sc.Buffers[TreeIdBuffer]
	expIds := []uint32{0, 1, PaddingIndex, PaddingIndex}
	for word, exp := range expIds {
		if got := u32(ids, word); got != exp {
			t.Fatalf("expected treeIds word %d to be %d; got %d", word, exp, got)
		}
	}

	indices := sc.Buffers[IndexBuffer]
	expIndices := []uint32{0, 1, 2, 1, 3, 4, 5, 0}
	for word, exp := range expIndices {
		if got := u32(indices, word); got != exp {
			t.Fatalf("expected index word %d to be %d; got %d", word, exp, got)
		}
	}
}

func TestEncodeRejectsOutOfRangeIndices(t *testing.T) {
	validTree := func(m *mesh.Mesh) *bsp.Tree {
		return &bsp.Tree{
			Nodes: []bsp.Node{
				&bsp.Internal{Plane: 0, Left: 1, Right: 2},
				&bsp.Leaf{Offset: 0, Count: 1},
				&bsp.Leaf{Offset: 1, Count: 1},
			},
			Planes:          []bsp.Plane{{Axis: bsp.XAxis, Offset: 1.5}},
			TriangleIndices: []uint32{0, 1},
			Bounds:          m.BBox(),
		}
	}

	specs := []struct {
		desc   string
		mutate func(*bsp.Tree, *mesh.Mesh)
		expMsg string
	}{
		{"vertex", func(_ *bsp.Tree, m *mesh.Mesh) { m.Indices[4] = 99 }, "references vertex 99"},
		{"material", func(_ *bsp.Tree, m *mesh.Mesh) { m.MaterialIndices[1] = 7 }, "references material 7"},
		{"plane", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.Nodes[0].(*bsp.Internal).Plane = 1 }, "references plane 1"},
		{"child range", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.Nodes[0].(*bsp.Internal).Right = 3 }, "references child 3"},
		{"child order", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.Nodes[0].(*bsp.Internal).Left = 0 }, "references child 0"},
		{"leaf range", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.Nodes[2].(*bsp.Leaf).Count = 2 }, "references range [1, 3)"},
		{"triangle id", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.TriangleIndices[1] = 2 }, "references triangle 2"},
		{"light", func(_ *bsp.Tree, m *mesh.Mesh) { m.LightIndices = []uint32{5} }, "light references triangle 5"},
		{"axis", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.Planes[0].Axis = 3 }, "invalid axis 3"},
		{"bounds", func(tr *bsp.Tree, _ *mesh.Mesh) { tr.Bounds = types.EmptyBBox() }, "scene bounds are empty"},
	}

	for _, spec := range specs {
		m := stripMesh(2)
		tree := validTree(m)
		spec.mutate(tree, m)

		_, err := Encode(tree, m)
		if !errors.Is(err, ErrEncoding) {
			t.Fatalf("[%s] expected ErrEncoding; got %v", spec.desc, err)
		}
		if !strings.Contains(err.Error(), spec.expMsg) {
			t.Fatalf("[%s] expected error to contain %q; got %v", spec.desc, spec.expMsg, err)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	m := stripMesh(1)
	sc, err := Encode(buildTree(t, m), m)
	if err != nil {
		t.Fatal(err)
	}

	truncated := &Scene{Buffers: make(map[BufferName][]byte)}
	for name, data := range sc.Buffers {
		truncated.Buffers[name] = data
	}
	truncated.Buffers[PlaneBuffer] = make([]byte, 8)
	if _, _, err := Decode(truncated); !errors.Is(err, ErrDecoding) {
		t.Fatalf("expected ErrDecoding for misaligned buffer; got %v", err)
	}

	delete(truncated.Buffers, PlaneBuffer)
	if _, _, err := Decode(truncated); !errors.Is(err, ErrDecoding) {
		t.Fatalf("expected ErrDecoding for missing buffer; got %v", err)
	}

	badTag := &Scene{Buffers: make(map[BufferName][]byte)}
	for name, data := range sc.Buffers {
		badTag.Buffers[name] = data
	}
	badTag.Buffers[TreeBuffer] = make([]byte, NodeRecordSize)
	if _, _, err := Decode(badTag); err == nil || !strings.Contains(err.Error(), "unknown tag 0") {
		t.Fatalf("expected unknown tag error; got %v", err)
	}
}

func cloneScene(sc *Scene) *Scene {
	out := *sc
	out.Buffers = make(map[BufferName][]byte, len(sc.Buffers))
	for name, data := range sc.Buffers {
		out.Buffers[name] = append([]byte(nil), data...)
	}
	out.LightIndices = append([]uint32(nil), sc.LightIndices...)
	return &out
}

func TestDecodeRejectsBrokenReferences(t *testing.T) {
	m := stripMesh(13)
	sc, err := Encode(buildTree(t, m), m)
	if err != nil {
		t.Fatal(err)
	}
	if tag := binary.LittleEndian.Uint32(sc.Buffers[TreeBuffer]); tag != InternalNodeTag {
		t.Fatalf("expected an internal root node; got tag %d", tag)
	}

	specs := []struct {
		descr  string
		mutate func(*Scene)
		errMsg string
	}{
		{
			"root child out of range",
			func(sc *Scene) { binary.LittleEndian.PutUint32(sc.Buffers[TreeBuffer][12:], 9999) },
			"invalid child index 9999",
		},
		{
			"tree id out of range",
			func(sc *Scene) { binary.LittleEndian.PutUint32(sc.Buffers[TreeIdBuffer], 12345) },
			"references triangle 12345",
		},
		{
			"light out of range",
			func(sc *Scene) { sc.LightIndices = []uint32{777} },
			"light index 777",
		},
		{
			"material out of range",
			func(sc *Scene) { binary.LittleEndian.PutUint32(sc.Buffers[IndexBuffer][12:], 42) },
			"material 42",
		},
		{
			"header count mismatch",
			func(sc *Scene) { sc.Counts.Nodes++ },
			"header expects",
		},
	}

	for specIndex, spec := range specs {
		broken := cloneScene(sc)
		spec.mutate(broken)
		_, _, err := Decode(broken)
		if !errors.Is(err, ErrDecoding) || !strings.Contains(err.Error(), spec.errMsg) {
			t.Errorf("[spec %d: %s] expected ErrDecoding mentioning %q; got %v", specIndex, spec.descr, spec.errMsg, err)
		}
	}

	if _, _, err = Decode(sc); err != nil {
		t.Fatalf("expected the untouched scene to decode; got %v", err)
	}
}

func TestStatsTable(t *testing.T) {
	m := stripMesh(4)
	sc, err := Encode(buildTree(t, m), m)
	if err != nil {
		t.Fatal(err)
	}

	stats := sc.Stats()
	for _, name := range BufferNames {
		if !strings.Contains(stats, string(name)) {
			t.Fatalf("expected stats table to list %s; got\n%s", name, stats)
		}
	}
	if !strings.Contains(stats, "2 lights") {
		t.Fatalf("expected stats table to report 2 lights; got\n%s", stats)
	}
}
