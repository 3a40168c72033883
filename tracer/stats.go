package tracer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

// FrameStat describes a single completed frame.
type FrameStat struct {
	// Frame counter value the frame was rendered with.
	Frame uint32

	// Pass execution time as measured by the device.
	GPUTime time.Duration

	// Time from the start of frame encoding until the timing readback.
	WallTime time.Duration
}

// FrameStats aggregates the frames rendered by a driver.
type FrameStats struct {
	Frames   int
	Failures int

	TotalGPUTime  time.Duration
	TotalWallTime time.Duration
	MinGPUTime    time.Duration
	MaxGPUTime    time.Duration

	Last FrameStat
}

func (s *FrameStats) record(stat FrameStat) {
	if s.Frames == 0 || stat.GPUTime < s.MinGPUTime {
		s.MinGPUTime = stat.GPUTime
	}
	if stat.GPUTime > s.MaxGPUTime {
		s.MaxGPUTime = stat.GPUTime
	}
	s.Frames++
	s.TotalGPUTime += stat.GPUTime
	s.TotalWallTime += stat.WallTime
	s.Last = stat
}

// AvgGPUTime returns the mean pass time.
func (s FrameStats) AvgGPUTime() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.TotalGPUTime / time.Duration(s.Frames)
}

// AvgWallTime returns the mean frame latency.
func (s FrameStats) AvgWallTime() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.TotalWallTime / time.Duration(s.Frames)
}

// Table renders the stats as a text table.
func (s FrameStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Frames", "Failures", "GPU avg", "GPU min", "GPU max", "Wall avg", "Wall total"})
	table.Append([]string{
		fmt.Sprint(s.Frames),
		fmt.Sprint(s.Failures),
		s.AvgGPUTime().String(),
		s.MinGPUTime.String(),
		s.MaxGPUTime.String(),
		s.AvgWallTime().String(),
		s.TotalWallTime.String(),
	})
	table.Render()
	return buf.String()
}
