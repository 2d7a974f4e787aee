package capture

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Metadata is the per-frame JSON written next to the color and depth images.
type Metadata struct {
	// MinDepth and MaxDepth are the metric depths, in meters, of raw depth values 0 and 255.
	MinDepth float64 `json:"minDepth"`
	MaxDepth float64 `json:"maxDepth"`
	// CameraIntrinsics is the device camera matrix as stored by the capture app: three columns,
	// in the landscape orientation of the sensor.
	CameraIntrinsics          [3][3]float64 `json:"cameraIntrinsics"`
	CameraReferenceDimensions Dimensions    `json:"cameraReferenceDimensions"`
	// MotionMetadata is either a Motion object or an empty array when no motion was recorded.
	MotionMetadata json.RawMessage `json:"motionMetadata,omitempty"`
}

// Dimensions is the sensor size the intrinsics refer to, in landscape orientation.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Orientation is device attitude in radians.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Acceleration is user acceleration in g.
type Acceleration struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Motion is the device motion recorded with a frame.
type Motion struct {
	Orientation  Orientation  `json:"orientation"`
	Acceleration Acceleration `json:"acceleration"`
}

// ReadMetadataFile parses a frame metadata file.
func ReadMetadataFile(path string) (*Metadata, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read metadata %q", path)
	}
	md := &Metadata{}
	if err := json.Unmarshal(data, md); err != nil {
		return nil, errors.Wrapf(err, "cannot parse metadata %q", path)
	}
	return md, nil
}

// Motion returns the recorded device motion, or nil if none was recorded.
func (md *Metadata) Motion() (*Motion, error) {
	raw := bytes.TrimSpace(md.MotionMetadata)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("[]")) {
		return nil, nil
	}
	m := &Motion{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, errors.Wrap(err, "cannot parse motion metadata")
	}
	return m, nil
}

// IntrinsicMatrix returns the camera matrix for an image of width×height pixels that was rotated a
// quarter turn clockwise from the sensor orientation. The stored matrix is transposed into
// [[fx 0 cx] [0 fy cy] [0 0 1]], the focal lengths and principal point coordinates are swapped
// between the axes, and the rows are scaled by width/reference height and height/reference width.
func (md *Metadata) IntrinsicMatrix(width, height int) (*mat.Dense, error) {
	ref := md.CameraReferenceDimensions
	if ref.Width <= 0 || ref.Height <= 0 {
		return nil, errors.Errorf("invalid camera reference dimensions %vx%v", ref.Width, ref.Height)
	}
	k := mat.NewDense(3, 3, nil)
	for c, col := range md.CameraIntrinsics {
		for r, v := range col {
			k.Set(r, c, v)
		}
	}

	fx, fy := k.At(1, 1), k.At(0, 0)
	cx, cy := k.At(1, 2), k.At(0, 2)
	k.Set(0, 0, fx)
	k.Set(1, 1, fy)
	k.Set(0, 2, cx)
	k.Set(1, 2, cy)

	scaleRow := func(r int, s float64) {
		for c := 0; c < 3; c++ {
			k.Set(r, c, k.At(r, c)*s)
		}
	}
	scaleRow(0, float64(width)/ref.Height)
	scaleRow(1, float64(height)/ref.Width)
	return k, nil
}
