package transform

import (
	"image"
	"image/color"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/objectcapture/objectcapture/pointcloud"
	"github.com/objectcapture/objectcapture/rimage"
)

// DefaultDepthTrunc is the farthest depth in meters kept by RGBDToPointCloud unless told otherwise.
const DefaultDepthTrunc = 3.0

// RGBDToPointCloud back-projects every pixel whose depth lies in (0, depthTrunc] into a colored
// point in the camera frame. A non-positive depthTrunc keeps all measured depths.
func RGBDToPointCloud(
	img image.Image,
	dm *rimage.DepthMap,
	params *PinholeCameraIntrinsics,
	depthTrunc float64,
) (pointcloud.PointCloud, error) {
	if img == nil {
		return nil, errors.New("no rgb channel. Cannot project to Pointcloud")
	}
	if dm == nil {
		return nil, errors.New("no depth channel. Cannot project to Pointcloud")
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() != dm.Width() || bounds.Dy() != dm.Height() {
		return nil, errors.Errorf("depth map and color dimensions don't match Depth(%d,%d) != Color(%d,%d)",
			dm.Width(), dm.Height(), bounds.Dx(), bounds.Dy())
	}
	if params.Width != dm.Width() || params.Height != dm.Height() {
		return nil, errors.Errorf("depth map and intrinsics dimensions don't match Depth(%d,%d) != Intrinsics(%d,%d)",
			dm.Width(), dm.Height(), params.Width, params.Height)
	}

	pixels := make([]r2.Point, 0, dm.Width()*dm.Height())
	depths := make([]float64, 0, dm.Width()*dm.Height())
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			d := dm.GetDepth(x, y)
			if d <= 0 || (depthTrunc > 0 && d > depthTrunc) {
				continue
			}
			pixels = append(pixels, r2.Point{X: float64(x), Y: float64(y)})
			depths = append(depths, d)
		}
	}
	pc := pointcloud.NewWithPrealloc(len(pixels))
	if len(pixels) == 0 {
		return pc, nil
	}

	points, err := BackprojectPoints(PixelsToDense(pixels), depths, params.GetInverseCameraMatrix())
	if err != nil {
		return nil, err
	}
	for i, px := range pixels {
		c, _ := color.NRGBAModel.Convert(img.At(bounds.Min.X+int(px.X), bounds.Min.Y+int(px.Y))).(color.NRGBA)
		c.A = 255
		row := points.RawRowView(i)
		if err := pc.Set(pointcloud.NewVector(row[0], row[1], row[2]), pointcloud.NewColoredData(c)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}
