package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/objectcapture/objectcapture/capture"
	"github.com/objectcapture/objectcapture/pointcloud"
	"github.com/objectcapture/objectcapture/registration"
	"github.com/objectcapture/objectcapture/utils"
)

// AlignAction aligns every correspondence in the given file and prints one row per pair. Pairs
// that fail are listed with their error and make the command exit non-zero once the table is out.
func AlignAction(c *cli.Context) error {
	logger := loggerFor(c)
	corrs, err := registration.ReadCorrespondencesFile(c.String(flagCorrespondence))
	if err != nil {
		return err
	}
	opts, err := readOptions(c)
	if err != nil {
		return err
	}
	frames, err := capture.ReadFrames(c.Context, c.String(flagData), opts, logger)
	if err != nil {
		return err
	}

	results, alignErr := registration.AlignBatch(c.Context, frames, corrs, registration.DefaultOptions(), logger)

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{
		"Source", "Target", "Rotation (deg)", "Translation (m)", "MSE", "Used", "Dropped", "Median", "P90", "Max",
	})
	for i, res := range results {
		if res == nil {
			t.AppendRow(table.Row{corrs[i].SourceFrame, corrs[i].TargetFrame, "failed"})
			continue
		}
		tr := res.Translation
		t.AppendRow(table.Row{
			res.SourceFrame,
			res.TargetFrame,
			fmt.Sprintf("%.3f", utils.RadToDeg(res.RotationVector.Norm())),
			fmt.Sprintf("X:%.4f, Y:%.4f, Z:%.4f", tr.X, tr.Y, tr.Z),
			fmt.Sprintf("%.3g", res.Error),
			res.Used,
			res.Dropped,
			fmt.Sprintf("%.4f", res.Residuals.Median),
			fmt.Sprintf("%.4f", res.Residuals.P90),
			fmt.Sprintf("%.4f", res.Residuals.Max),
		})
	}
	t.Render()

	if out := c.String(flagMergedOut); out != "" && results != nil {
		merged, err := registration.MergeAligned(frames, results, c.Float64(flagDepthTrunc))
		if err != nil {
			return err
		}
		if err := pointcloud.WriteToFile(merged, out); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %d merged points to %s\n", merged.Size(), out)
	}
	return alignErr
}
