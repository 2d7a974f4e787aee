package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/objectcapture/objectcapture/capture"
	"github.com/objectcapture/objectcapture/pointcloud"
)

// FramesAction prints a table of every frame in the capture folder.
func FramesAction(c *cli.Context) error {
	logger := loggerFor(c)
	opts, err := readOptions(c)
	if err != nil {
		return err
	}
	frames, err := capture.ReadFrames(c.Context, c.String(flagData), opts, logger)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"ID", "Size", "Fx", "Fy", "Cx", "Cy", "Depth (m)"})
	for _, f := range frames {
		lo, hi := f.Depth.MinMax()
		t.AppendRow(table.Row{
			f.ID,
			fmt.Sprintf("%dx%d", f.Width(), f.Height()),
			fmt.Sprintf("%.2f", f.Intrinsics.Fx),
			fmt.Sprintf("%.2f", f.Intrinsics.Fy),
			fmt.Sprintf("%.2f", f.Intrinsics.Ppx),
			fmt.Sprintf("%.2f", f.Intrinsics.Ppy),
			fmt.Sprintf("%.3f-%.3f", lo, hi),
		})
	}
	t.Render()
	return nil
}

// PointCloudAction back-projects a single frame and writes it as a .pcd or .las file.
func PointCloudAction(c *cli.Context) error {
	logger := loggerFor(c)
	opts, err := readOptions(c)
	if err != nil {
		return err
	}
	f, err := capture.ReadFrame(c.String(flagData), c.String(flagFrame), opts)
	if err != nil {
		return err
	}
	cloud, err := f.PointCloud(c.Float64(flagDepthTrunc))
	if err != nil {
		return err
	}

	outputType := pointcloud.PCDAscii
	if c.Bool(flagBinary) {
		outputType = pointcloud.PCDBinary
	}
	out := c.String(flagOut)
	if err := pointcloud.WriteToFileAs(cloud, out, outputType); err != nil {
		return err
	}
	logger.Infow("wrote point cloud", "frame", f.ID, "points", cloud.Size(), "file", out)
	fmt.Fprintf(c.App.Writer, "wrote %d points to %s\n", cloud.Size(), out)
	return nil
}
