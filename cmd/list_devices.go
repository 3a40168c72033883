package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/polaris-bsp/tracer/webgpu"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List available WebGPU adapters.
func ListDevices(ctx *cli.Context) error {
	setupLogging(ctx)

	adapters := webgpu.ListAdapters()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Name", "Driver", "Type", "Backend", "Timestamps"})
	for idx, info := range adapters {
		table.Append([]string{
			fmt.Sprintf("%02d", idx),
			info.Name,
			info.Driver,
			info.Type,
			info.Backend,
			fmt.Sprintf("%t", info.Timestamps),
		})
	}
	table.Render()

	logger.Noticef("system provides %d adapter(s)\n%s", len(adapters), buf.String())
	return nil
}
