// Package cli contains the objectcapture command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"github.com/objectcapture/objectcapture/capture"
	"github.com/objectcapture/objectcapture/logging"
	"github.com/objectcapture/objectcapture/rimage/transform"
)

const (
	flagDebug          = "debug"
	flagData           = "data"
	flagFrame          = "frame"
	flagOut            = "out"
	flagBinary         = "binary"
	flagDepthTrunc     = "depth-trunc"
	flagMaskBeyond     = "mask-beyond"
	flagCorrespondence = "correspondences"
	flagMergedOut      = "merged-out"
	flagIntrinsics     = "intrinsics"
)

var dataFlag = &cli.StringFlag{
	Name:     flagData,
	Aliases:  []string{"d"},
	Required: true,
	Usage:    "capture folder holding frame_<id>_* files",
}

var depthTruncFlag = &cli.Float64Flag{
	Name:  flagDepthTrunc,
	Value: transform.DefaultDepthTrunc,
	Usage: "drop points farther than this many meters, 0 keeps all",
}

var maskBeyondFlag = &cli.Float64Flag{
	Name:  flagMaskBeyond,
	Usage: "zero depths farther than this many meters when loading frames, 0 disables",
}

var intrinsicsFlag = &cli.StringFlag{
	Name:  flagIntrinsics,
	Usage: "use the intrinsics in JSON `FILE` instead of the ones derived from each frame's metadata",
}

var app = &cli.App{
	Name:            "objectcapture",
	Usage:           "inspect and register RGB-D frames from a capture folder",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "frames",
			Usage:  "list the frames of a capture folder with their intrinsics",
			Flags:  []cli.Flag{dataFlag, maskBeyondFlag, intrinsicsFlag},
			Action: FramesAction,
		},
		{
			Name:  "pointcloud",
			Usage: "back-project one frame into a pcd file",
			Flags: []cli.Flag{
				dataFlag,
				&cli.StringFlag{
					Name:     flagFrame,
					Aliases:  []string{"f"},
					Required: true,
					Usage:    "frame id",
				},
				&cli.StringFlag{
					Name:     flagOut,
					Aliases:  []string{"o"},
					Required: true,
					Usage:    "write the cloud to `FILE`, .pcd or .las",
				},
				&cli.BoolFlag{
					Name:  flagBinary,
					Usage: "write binary pcd instead of ascii",
				},
				depthTruncFlag,
				maskBeyondFlag,
				intrinsicsFlag,
			},
			Action: PointCloudAction,
		},
		{
			Name:  "align",
			Usage: "recover the transform between frame pairs from pixel correspondences",
			Flags: []cli.Flag{
				dataFlag,
				&cli.StringFlag{
					Name:     flagCorrespondence,
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "JSON list of correspondences in `FILE`",
				},
				&cli.StringFlag{
					Name:  flagMergedOut,
					Usage: "write every aligned pair merged into one .pcd or .las `FILE`",
				},
				depthTruncFlag,
				maskBeyondFlag,
				intrinsicsFlag,
			},
			Action: AlignAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func loggerFor(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger(c.App.Name)
	}
	return logging.NewLogger(c.App.Name)
}

// readOptions builds the frame loading options shared by every command.
func readOptions(c *cli.Context) (capture.ReadOptions, error) {
	opts := capture.ReadOptions{MaskBeyond: c.Float64(flagMaskBeyond)}
	if path := c.String(flagIntrinsics); path != "" {
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(path)
		if err != nil {
			return capture.ReadOptions{}, err
		}
		opts.Intrinsics = intrinsics
	}
	return opts, nil
}
