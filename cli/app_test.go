package cli

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"

	"github.com/objectcapture/objectcapture/capture"
	"github.com/objectcapture/objectcapture/logging"
	"github.com/objectcapture/objectcapture/pointcloud"
	"github.com/objectcapture/objectcapture/rimage"
)

func writeFrame(t *testing.T, dir, id string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{10, 20, 30, 255})
		}
	}
	test.That(t, rimage.WriteImageToFile(capture.ColorImagePath(dir, id), img), test.ShouldBeNil)
	depth := image.NewGray(image.Rect(0, 0, 4, 3))
	depth.SetGray(0, 0, color.Gray{Y: 255})
	test.That(t, rimage.WriteImageToFile(capture.DepthImagePath(dir, id), depth), test.ShouldBeNil)

	data, err := json.Marshal(map[string]interface{}{
		"minDepth":                  0.0,
		"maxDepth":                  2.0,
		"cameraIntrinsics":          [][]float64{{100, 0, 0}, {0, 110, 0}, {40, 30, 1}},
		"cameraReferenceDimensions": map[string]float64{"width": 80, "height": 60},
		"motionMetadata":            []interface{}{},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(capture.MetadataPath(dir, id), data, 0o600), test.ShouldBeNil)
}

func runApp(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"objectcapture"}, args...))
	return out.String(), err
}

func TestFramesCommand(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "0")
	writeFrame(t, dir, "1")

	out, err := runApp("frames", "--data", dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "6x8")
	test.That(t, out, test.ShouldContainSubstring, "11.00")
	test.That(t, out, test.ShouldContainSubstring, "2.000-2.000")

	_, err = runApp("frames")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp("frames", "--data", filepath.Join(dir, "missing"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPointCloudCommand(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "3")

	for _, binary := range []bool{false, true} {
		pcdPath := filepath.Join(t.TempDir(), "frame.pcd")
		args := []string{"pointcloud", "--data", dir, "--frame", "3", "--out", pcdPath}
		if binary {
			args = append(args, "--binary")
		}
		out, err := runApp(args...)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "wrote 4 points")

		cloud, err := pointcloud.NewFromPCDFile(pcdPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.Size(), test.ShouldEqual, 4)
		test.That(t, cloud.MetaData().HasColor, test.ShouldBeTrue)
	}

	lasPath := filepath.Join(t.TempDir(), "frame.las")
	_, err := runApp("pointcloud", "--data", dir, "--frame", "3", "--out", lasPath)
	test.That(t, err, test.ShouldBeNil)
	cloud, err := pointcloud.NewFromLASFile(lasPath, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.Size(), test.ShouldEqual, 4)

	pcdPath := filepath.Join(t.TempDir(), "empty.pcd")
	out, err := runApp("pointcloud", "--data", dir, "--frame", "3", "--out", pcdPath, "--depth-trunc", "1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "wrote 0 points")

	_, err = runApp("pointcloud", "--data", dir, "--frame", "4", "--out", pcdPath)
	test.That(t, err, test.ShouldNotBeNil)

	plyPath := filepath.Join(t.TempDir(), "frame.ply")
	_, err = runApp("pointcloud", "--data", dir, "--frame", "3", "--out", plyPath, "--binary")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame.ply")
	_, err = os.Stat(plyPath)
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestIntrinsicsFlag(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "5")

	good := filepath.Join(dir, "intrinsics.json")
	test.That(t, os.WriteFile(good, []byte(
		`{"width_px": 6, "height_px": 8, "fx": 20, "fy": 21, "ppx": 2.5, "ppy": 3.5}`), 0o600), test.ShouldBeNil)
	out, err := runApp("frames", "--data", dir, "--intrinsics", good)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "20.00")
	test.That(t, out, test.ShouldContainSubstring, "21.00")

	pcdPath := filepath.Join(t.TempDir(), "frame.pcd")
	out, err = runApp("pointcloud", "--data", dir, "--frame", "5", "--out", pcdPath, "--intrinsics", good)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "wrote 4 points")

	invalid := filepath.Join(dir, "zero.json")
	test.That(t, os.WriteFile(invalid, []byte(
		`{"width_px": 6, "height_px": 8, "fx": 0, "fy": 21, "ppx": 2.5, "ppy": 3.5}`), 0o600), test.ShouldBeNil)
	_, err = runApp("pointcloud", "--data", dir, "--frame", "5", "--out", pcdPath, "--intrinsics", invalid)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "zero.json")

	wrongSize := filepath.Join(dir, "landscape.json")
	test.That(t, os.WriteFile(wrongSize, []byte(
		`{"width_px": 8, "height_px": 6, "fx": 20, "fy": 21, "ppx": 2.5, "ppy": 3.5}`), 0o600), test.ShouldBeNil)
	_, err = runApp("frames", "--data", dir, "--intrinsics", wrongSize)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAlignCommand(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, "0")
	writeFrame(t, dir, "1")

	corrPath := filepath.Join(dir, "corrs.json")
	test.That(t, os.WriteFile(corrPath, []byte(`[
		{"source_frame": "0", "target_frame": "1",
		 "source_pixels": [[4, 0], [5, 0], [4, 1], [5, 1]],
		 "target_pixels": [[4, 0], [5, 0], [4, 1], [5, 1]]}
	]`), 0o600), test.ShouldBeNil)

	mergedPath := filepath.Join(t.TempDir(), "merged.pcd")
	out, err := runApp("align", "--data", dir, "--correspondences", corrPath, "--merged-out", mergedPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "wrote")
	merged, err := pointcloud.NewFromPCDFile(mergedPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, merged.Size(), test.ShouldBeGreaterThanOrEqualTo, 4)

	badPath := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(badPath, []byte(`[
		{"source_frame": "0", "target_frame": "9",
		 "source_pixels": [[4, 0], [5, 0], [4, 1]],
		 "target_pixels": [[4, 0], [5, 0], [4, 1]]}
	]`), 0o600), test.ShouldBeNil)
	out, err = runApp("align", "--data", dir, "--correspondences", badPath)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, out, test.ShouldContainSubstring, "failed")
}
