package capture

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/objectcapture/objectcapture/logging"
	"github.com/objectcapture/objectcapture/rimage"
	"github.com/objectcapture/objectcapture/rimage/transform"
)

// writeTestFrame writes an 8x6 landscape color image, a 4x3 landscape depth image whose only
// non-zero raw value is 255 at (0,0), and metadata with a 0-2m depth range.
func writeTestFrame(t *testing.T, dir, id string, motion interface{}) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 100, 50, 255})
		}
	}
	test.That(t, rimage.WriteImageToFile(ColorImagePath(dir, id), img), test.ShouldBeNil)

	depth := image.NewGray(image.Rect(0, 0, 4, 3))
	depth.SetGray(0, 0, color.Gray{Y: 255})
	test.That(t, rimage.WriteImageToFile(DepthImagePath(dir, id), depth), test.ShouldBeNil)

	md := map[string]interface{}{
		"minDepth":                  0.0,
		"maxDepth":                  2.0,
		"cameraIntrinsics":          [][]float64{{100, 0, 0}, {0, 110, 0}, {40, 30, 1}},
		"cameraReferenceDimensions": map[string]float64{"width": 80, "height": 60},
		"motionMetadata":            motion,
	}
	data, err := json.Marshal(md)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(MetadataPath(dir, id), data, 0o600), test.ShouldBeNil)
}

func TestFrameIDs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"frame_10_colorImage.jpg", "frame_10_depthImage.png", "frame_2_metadata.json",
		"frame_1_colorImage.jpg", "frame_x_colorImage.jpg", "frame_3", "notes.txt",
	} {
		test.That(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600), test.ShouldBeNil)
	}
	test.That(t, os.Mkdir(filepath.Join(dir, "frame_4_dir"), 0o700), test.ShouldBeNil)

	ids, err := FrameIDs(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ids, test.ShouldResemble, []string{"1", "2", "10"})

	_, err = FrameIDs(filepath.Join(dir, "missing"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestIntrinsicMatrix(t *testing.T) {
	md := &Metadata{
		CameraIntrinsics:          [3][3]float64{{100, 0, 0}, {0, 110, 0}, {40, 30, 1}},
		CameraReferenceDimensions: Dimensions{Width: 80, Height: 60},
	}
	k, err := md.IntrinsicMatrix(6, 8)
	test.That(t, err, test.ShouldBeNil)
	want := [3][3]float64{{11, 0, 3}, {0, 10, 4}, {0, 0, 1}}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			test.That(t, k.At(r, c), test.ShouldAlmostEqual, want[r][c])
		}
	}

	_, err = (&Metadata{}).IntrinsicMatrix(6, 8)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMotion(t *testing.T) {
	md := &Metadata{MotionMetadata: json.RawMessage(`[]`)}
	m, err := md.Motion()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m, test.ShouldBeNil)

	md.MotionMetadata = json.RawMessage(`{"orientation":{"roll":0.1,"pitch":0.2,"yaw":0.3},"acceleration":{"x":1,"y":2,"z":3}}`)
	m, err = md.Motion()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Orientation.Yaw, test.ShouldEqual, 0.3)
	test.That(t, m.Acceleration.Z, test.ShouldEqual, 3.)

	md.MotionMetadata = json.RawMessage(`"bad"`)
	_, err = md.Motion()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadFrame(t *testing.T) {
	dir := t.TempDir()
	writeTestFrame(t, dir, "0", []interface{}{})

	f, err := ReadFrame(dir, "0", ReadOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.ID, test.ShouldEqual, "0")
	test.That(t, f.Width(), test.ShouldEqual, 6)
	test.That(t, f.Height(), test.ShouldEqual, 8)
	test.That(t, f.Depth.Width(), test.ShouldEqual, 6)
	test.That(t, f.Depth.Height(), test.ShouldEqual, 8)

	// raw (0,0) of the 4x3 depth lands at (2,0) after the rotation, then (4..5, 0..1) after the 2x resize
	test.That(t, f.Depth.GetDepth(5, 1), test.ShouldEqual, 2.)
	test.That(t, f.Depth.GetDepth(4, 0), test.ShouldEqual, 2.)
	test.That(t, f.Depth.GetDepth(3, 1), test.ShouldEqual, 0.)
	test.That(t, f.Depth.GetDepth(0, 0), test.ShouldEqual, 0.)

	test.That(t, f.Intrinsics.Fx, test.ShouldAlmostEqual, 11.)
	test.That(t, f.Intrinsics.Fy, test.ShouldAlmostEqual, 10.)
	test.That(t, f.Intrinsics.Ppx, test.ShouldAlmostEqual, 3.)
	test.That(t, f.Intrinsics.Ppy, test.ShouldAlmostEqual, 4.)
	test.That(t, f.InvK.At(0, 0), test.ShouldAlmostEqual, 1./11)

	pc, err := f.PointCloud(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 4)
	test.That(t, pc.MetaData().HasColor, test.ShouldBeTrue)

	masked, err := ReadFrame(dir, "0", ReadOptions{MaskBeyond: 1.1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, masked.Depth.GetDepth(5, 1), test.ShouldEqual, 0.)

	override := &transform.PinholeCameraIntrinsics{Width: 6, Height: 8, Fx: 20, Fy: 21, Ppx: 2.5, Ppy: 3.5}
	fixed, err := ReadFrame(dir, "0", ReadOptions{Intrinsics: override})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fixed.Intrinsics, test.ShouldResemble, override)
	test.That(t, fixed.K.At(0, 0), test.ShouldEqual, 20.)
	test.That(t, fixed.K.At(1, 2), test.ShouldEqual, 3.5)
	test.That(t, fixed.InvK.At(1, 1), test.ShouldAlmostEqual, 1./21)

	_, err = ReadFrame(dir, "0", ReadOptions{Intrinsics: &transform.PinholeCameraIntrinsics{
		Width: 8, Height: 6, Fx: 20, Fy: 21, Ppx: 2.5, Ppy: 3.5,
	}})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "8x6")
	_, err = ReadFrame(dir, "0", ReadOptions{Intrinsics: &transform.PinholeCameraIntrinsics{Width: 6, Height: 8}})
	test.That(t, errors.Is(err, transform.ErrNoIntrinsics), test.ShouldBeTrue)

	_, err = ReadFrame(dir, "9", ReadOptions{})
	test.That(t, errors.Is(err, ErrFrameNotFound), test.ShouldBeTrue)

	test.That(t, os.Remove(MetadataPath(dir, "0")), test.ShouldBeNil)
	_, err = ReadFrame(dir, "0", ReadOptions{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadFrames(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	dir := t.TempDir()
	writeTestFrame(t, dir, "2", map[string]interface{}{
		"orientation":  map[string]float64{"roll": 0, "pitch": 0, "yaw": 1},
		"acceleration": map[string]float64{"x": 0, "y": 0, "z": 0},
	})
	writeTestFrame(t, dir, "11", []interface{}{})
	writeTestFrame(t, dir, "1", []interface{}{})

	frames, err := ReadFrames(context.Background(), dir, ReadOptions{}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(frames), test.ShouldEqual, 3)
	test.That(t, []string{frames[0].ID, frames[1].ID, frames[2].ID}, test.ShouldResemble, []string{"1", "2", "11"})
	test.That(t, logs.FilterMessage("read frames").Len(), test.ShouldEqual, 1)

	f, ok := FrameByID(frames, "2")
	test.That(t, ok, test.ShouldBeTrue)
	m, err := f.Metadata.Motion()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Orientation.Yaw, test.ShouldEqual, 1.)
	_, ok = FrameByID(frames, "3")
	test.That(t, ok, test.ShouldBeFalse)

	_, err = ReadFrames(context.Background(), t.TempDir(), ReadOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	// a frame with a color image but no depth fails the whole read
	test.That(t, os.Remove(DepthImagePath(dir, "11")), test.ShouldBeNil)
	_, err = ReadFrames(context.Background(), dir, ReadOptions{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
