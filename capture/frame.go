// Package capture loads the frames recorded by the depth capture app.
//
// A capture folder holds, per frame id, three files:
//
//	frame_<id>_colorImage.jpg
//	frame_<id>_depthImage.png
//	frame_<id>_metadata.json
//
// Images are stored in the landscape orientation of the sensor. Frames are returned rotated a
// quarter turn clockwise, with the depth map resampled onto the color pixel grid and the
// intrinsics adjusted to match.
package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/objectcapture/objectcapture/pointcloud"
	"github.com/objectcapture/objectcapture/rimage"
	"github.com/objectcapture/objectcapture/rimage/transform"
)

// ErrFrameNotFound is returned when a frame id has no color image in the capture folder.
var ErrFrameNotFound = errors.New("frame not found")

// ReadOptions tune how frames are decoded.
type ReadOptions struct {
	// MaskBeyond zeroes depths farther than this many meters. 0 disables masking.
	MaskBeyond float64
	// Intrinsics, when set, replace the intrinsics derived from each frame's metadata. Their size
	// must match the rotated frame.
	Intrinsics *transform.PinholeCameraIntrinsics
}

// Frame is one capture with everything the projection model needs.
type Frame struct {
	ID         string
	Color      image.Image
	Depth      *rimage.DepthMap
	Intrinsics *transform.PinholeCameraIntrinsics
	K          *mat.Dense
	InvK       *mat.Dense
	Metadata   *Metadata
}

// Width returns the width of the color image, which is also the width of the depth map.
func (f *Frame) Width() int {
	return f.Color.Bounds().Dx()
}

// Height returns the height of the color image.
func (f *Frame) Height() int {
	return f.Color.Bounds().Dy()
}

// PointCloud back-projects the frame into a colored cloud in its camera frame.
func (f *Frame) PointCloud(depthTrunc float64) (pointcloud.PointCloud, error) {
	return transform.RGBDToPointCloud(f.Color, f.Depth, f.Intrinsics, depthTrunc)
}

// ColorImagePath returns the path of a frame's color image.
func ColorImagePath(dir, id string) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%s_colorImage.jpg", id))
}

// DepthImagePath returns the path of a frame's encoded depth image.
func DepthImagePath(dir, id string) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%s_depthImage.png", id))
}

// MetadataPath returns the path of a frame's metadata.
func MetadataPath(dir, id string) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%s_metadata.json", id))
}

// ReadFrame loads a single frame.
func ReadFrame(dir, id string, opts ReadOptions) (*Frame, error) {
	colorPath := ColorImagePath(dir, id)
	if _, err := os.Stat(colorPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFrameNotFound, "frame %s in %q", id, dir)
		}
		return nil, err
	}
	md, err := ReadMetadataFile(MetadataPath(dir, id))
	if err != nil {
		return nil, err
	}

	raw, err := rimage.ReadImageFromFile(colorPath)
	if err != nil {
		return nil, err
	}
	color := rimage.RotateClockwise(raw)
	width, height := color.Bounds().Dx(), color.Bounds().Dy()

	rawDepth, err := rimage.ReadImageFromFile(DepthImagePath(dir, id))
	if err != nil {
		return nil, err
	}
	depthImg := rimage.ResizeNearest(rimage.RotateClockwise(rawDepth), width, height)
	depth, err := rimage.DepthMapFromEncodedImage(depthImg, md.MinDepth, md.MaxDepth)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %s", id)
	}
	if opts.MaskBeyond > 0 {
		depth.MaskBeyond(opts.MaskBeyond)
	}

	intrinsics, k, err := frameIntrinsics(md, width, height, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %s", id)
	}
	var invK mat.Dense
	if err := invK.Inverse(k); err != nil {
		return nil, errors.Wrapf(err, "frame %s camera matrix is not invertible", id)
	}

	return &Frame{
		ID:         id,
		Color:      color,
		Depth:      depth,
		Intrinsics: intrinsics,
		K:          k,
		InvK:       &invK,
		Metadata:   md,
	}, nil
}

func frameIntrinsics(
	md *Metadata,
	width, height int,
	opts ReadOptions,
) (*transform.PinholeCameraIntrinsics, *mat.Dense, error) {
	if opts.Intrinsics == nil {
		k, err := md.IntrinsicMatrix(width, height)
		if err != nil {
			return nil, nil, err
		}
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromMatrix(k, width, height)
		if err != nil {
			return nil, nil, err
		}
		return intrinsics, k, nil
	}
	if err := opts.Intrinsics.CheckValid(); err != nil {
		return nil, nil, err
	}
	if opts.Intrinsics.Width != width || opts.Intrinsics.Height != height {
		return nil, nil, errors.Errorf("intrinsics are for %dx%d but the frame is %dx%d",
			opts.Intrinsics.Width, opts.Intrinsics.Height, width, height)
	}
	intrinsics := *opts.Intrinsics
	return &intrinsics, intrinsics.GetCameraMatrix(), nil
}
