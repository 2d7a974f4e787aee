package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/objectcapture/objectcapture/rimage"
)

// BackprojectPoints lifts N pixels to N camera-space points:
//
//	result[i] = depth[i] * (invK · (u_i, v_i, 1))
//
// imgPoints is N×2 or already homogeneous N×3. depth must hold one value per pixel.
func BackprojectPoints(imgPoints mat.Matrix, depth []float64, invK mat.Matrix) (*mat.Dense, error) {
	n, c := imgPoints.Dims()
	if n != len(depth) {
		return nil, newDimensionError("%d image points but %d depths", n, len(depth))
	}
	if n == 0 {
		return &mat.Dense{}, nil
	}
	if kr, kc := invK.Dims(); kr != 3 || kc != 3 {
		return nil, newDimensionError("inverse camera matrix must be 3x3, got %dx%d", kr, kc)
	}
	var homog mat.Matrix
	switch c {
	case 2:
		homog = ToHomogeneous(imgPoints)
	case 3:
		homog = imgPoints
	default:
		return nil, newDimensionError("image points must have 2 or 3 columns, got %d", c)
	}

	var rays mat.Dense
	rays.Mul(homog, invK.T())
	for i, d := range depth {
		row := rays.RawRowView(i)
		for j := range row {
			row[j] *= d
		}
	}
	return &rays, nil
}

// ProjectPoints applies K to N×3 camera-space points, or to N×4 homogeneous points after
// dehomogenizing them. The result is N×3 pixel-homogeneous coordinates; dividing by the third
// column to get pixels is left to the caller.
func ProjectPoints(points, k mat.Matrix) (*mat.Dense, error) {
	n, c := points.Dims()
	if n == 0 {
		return &mat.Dense{}, nil
	}
	if kr, kc := k.Dims(); kr != 3 || kc != 3 {
		return nil, newDimensionError("camera matrix must be 3x3, got %dx%d", kr, kc)
	}
	var pts mat.Matrix
	switch c {
	case 3:
		pts = points
	case 4:
		pts = FromHomogeneous(points)
	default:
		return nil, newDimensionError("points must have 3 or 4 columns, got %d", c)
	}

	var projected mat.Dense
	projected.Mul(pts, k.T())
	return &projected, nil
}

// DepthsForPoints samples the depth map at each pixel, column x = first coordinate and
// row y = second coordinate, both truncated toward zero. There is no interpolation and no bounds
// check: pixels must lie on the depth map grid, which must already match the pixel coordinate
// system of imgPoints.
func DepthsForPoints(imgPoints mat.Matrix, dm *rimage.DepthMap) []float64 {
	n, _ := imgPoints.Dims()
	depths := make([]float64, n)
	for i := range depths {
		depths[i] = dm.GetDepth(int(imgPoints.At(i, 0)), int(imgPoints.At(i, 1)))
	}
	return depths
}
