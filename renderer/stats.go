package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/achilleasa/polaris-bsp/tracer"
	"github.com/olekukonko/tablewriter"
)

type FrameStats struct {
	// The device that rendered the frames.
	Device string

	// Aggregated per-frame stats.
	Frames tracer.FrameStats

	// Frame counter value after the last frame.
	Accumulated uint32

	// Total render time for the entire run.
	RenderTime time.Duration
}

// Table renders the stats as a text table.
func (fs FrameStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Device", "Frames", "Failures", "GPU avg", "GPU max", "Wall avg"})
	table.Append([]string{
		fs.Device,
		fmt.Sprintf("%d", fs.Frames.Frames),
		fmt.Sprintf("%d", fs.Frames.Failures),
		fs.Frames.AvgGPUTime().String(),
		fs.Frames.MaxGPUTime.String(),
		fs.Frames.AvgWallTime().String(),
	})
	table.SetFooter([]string{"", "", "", "", "TOTAL", fs.RenderTime.String()})

	table.Render()
	return buf.String()
}
