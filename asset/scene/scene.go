package scene

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/achilleasa/polaris-bsp/types"
	"github.com/olekukonko/tablewriter"
)

type BufferName string

// Scene buffers. Every buffer is an array of little-endian records whose
// size is a multiple of 16 bytes.
const (
	// position (w=1) and normal (w=0) vec4 pairs.
	AttribBuffer BufferName = "attribs"

	// vec4<u32>(v0, v1, v2, material) per triangle.
	IndexBuffer BufferName = "indices"

	// emission and color vec4 pairs.
	MaterialBuffer BufferName = "materials"

	// Scene min and max corner as vec4.
	BBoxBuffer BufferName = "aabb"

	// vec4(axis u32, offset f32, 0, 0) per split plane.
	PlaneBuffer BufferName = "planes"

	// vec4<u32>(tag, a, b, c) per tree node.
	TreeBuffer BufferName = "tree"

	// Leaf triangle indices packed four per record; tail padded with
	// PaddingIndex.
	TreeIdBuffer BufferName = "treeIds"
)

// Shader binding slots. Slots 0-2 hold per-frame resources owned by the
// frame driver; the remaining ones hold scene buffers.
const (
	UniformSlot uint32 = iota
	AccumulationSlot
	JitterSlot
	AttribSlot
	IndexSlot
	MaterialSlot
	BBoxSlot
	PlaneSlot
	TreeSlot
	TreeIdSlot
)

// Record sizes in bytes.
const (
	AttribRecordSize   = 32
	IndexRecordSize    = 16
	MaterialRecordSize = 32
	BBoxRecordSize     = 32
	PlaneRecordSize    = 16
	NodeRecordSize     = 16
	TreeIdRecordSize   = 16

	treeIdsPerRecord = TreeIdRecordSize / 4
)

// Tree node tags. Zero is reserved so that zeroed memory never decodes as a
// valid node.
const (
	InternalNodeTag uint32 = 1
	LeafNodeTag     uint32 = 2
)

// PaddingIndex fills unused slots in the last treeIds record.
const PaddingIndex uint32 = 0xffffffff

// BufferNames lists the scene buffers in slot order.
var BufferNames = []BufferName{
	AttribBuffer,
	IndexBuffer,
	MaterialBuffer,
	BBoxBuffer,
	PlaneBuffer,
	TreeBuffer,
	TreeIdBuffer,
}

// BufferSlots maps each scene buffer to its shader binding slot.
var BufferSlots = map[BufferName]uint32{
	AttribBuffer:   AttribSlot,
	IndexBuffer:    IndexSlot,
	MaterialBuffer: MaterialSlot,
	BBoxBuffer:     BBoxSlot,
	PlaneBuffer:    PlaneSlot,
	TreeBuffer:     TreeSlot,
	TreeIdBuffer:   TreeIdSlot,
}

// Counts holds the number of records encoded in each table.
type Counts struct {
	Vertices        int
	Triangles       int
	Materials       int
	Planes          int
	Nodes           int
	TriangleIndices int
}

// Scene is a compiled scene ready to be uploaded to the device.
type Scene struct {
	Buffers map[BufferName][]byte

	// Root bounding box; also encoded in BBoxBuffer.
	Bounds types.BBox

	// Emissive triangle indices.
	LightIndices []uint32

	Counts Counts
}

// Buffer returns the named buffer or an error if it is missing.
func (sc *Scene) Buffer(name BufferName) ([]byte, error) {
	data, exists := sc.Buffers[name]
	if !exists {
		return nil, fmt.Errorf("scene: missing buffer %q", name)
	}
	return data, nil
}

// Stats renders a table with the size of each scene buffer.
func (sc *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Buffer", "Slot", "Records", "Size"})

	records := map[BufferName]int{
		AttribBuffer:   sc.Counts.Vertices,
		IndexBuffer:    sc.Counts.Triangles,
		MaterialBuffer: sc.Counts.Materials,
		BBoxBuffer:     1,
		PlaneBuffer:    sc.Counts.Planes,
		TreeBuffer:     sc.Counts.Nodes,
		TreeIdBuffer:   sc.Counts.TriangleIndices,
	}

	var total int
	for _, name := range BufferNames {
		size := len(sc.Buffers[name])
		total += size
		table.Append([]string{
			string(name),
			fmt.Sprint(BufferSlots[name]),
			fmt.Sprint(records[name]),
			fmtSize(size),
		})
	}
	table.SetFooter([]string{"Total", " ", fmt.Sprintf("%d lights", len(sc.LightIndices)), strings.TrimLeft(fmtSize(total), " ")})

	table.Render()
	return buf.String()
}

// Format a byte count with the appropriate byte/kb/mb unit.
func fmtSize(totalBytes int) string {
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", totalBytes)
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", float32(totalBytes)/1e3)
	}
	return fmt.Sprintf("%5.1f mb", float32(totalBytes)/1e6)
}

// HeaderFile is the bundle entry holding the gob encoded Header.
const HeaderFile = "scene.bin"

// Header holds the scene metadata that is not part of the device buffers.
type Header struct {
	Bounds       types.BBox
	LightIndices []uint32
	Counts       Counts
}

// BufferFile returns the bundle entry name for a scene buffer.
func BufferFile(name BufferName) string {
	return "buffers/" + string(name) + ".bin"
}
