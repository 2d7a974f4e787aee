// Package rimage holds the image and depth map types consumed by the projection model.
package rimage

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MaxEncodedDepth is the largest raw value of an 8-bit depth encoding.
const MaxEncodedDepth = 255

// DepthMap is a dense grid of metric depths in meters, aligned 1:1 with an image pixel grid.
// A depth of zero means no measurement.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a depth map of the given size filled with zeros.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromMat copies an H×W matrix into a depth map, row r being image row y = r.
func NewDepthMapFromMat(m mat.Matrix) *DepthMap {
	rows, cols := m.Dims()
	dm := NewEmptyDepthMap(cols, rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dm.Set(x, y, m.At(y, x))
		}
	}
	return dm
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle dimensions of the depth map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains reports whether (x, y) lies on the grid.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the depth at column x, row y. Coordinates outside the grid panic.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	if !dm.Contains(x, y) {
		panic(errors.Errorf("depth lookup (%d,%d) outside %dx%d depth map", x, y, dm.width, dm.height))
	}
	return dm.data[dm.kxy(x, y)]
}

// Set stores the depth at column x, row y.
func (dm *DepthMap) Set(x, y int, val float64) {
	dm.data[dm.kxy(x, y)] = val
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	data := make([]float64, len(dm.data))
	copy(data, dm.data)
	return &DepthMap{width: dm.width, height: dm.height, data: data}
}

// MinMax returns the smallest and largest non-zero depths. Both are zero when nothing was measured.
func (dm *DepthMap) MinMax() (float64, float64) {
	min, max := 0.0, 0.0
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		if min == 0 || d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// MaskBeyond zeroes every depth greater than limit and returns how many were removed.
func (dm *DepthMap) MaskBeyond(limit float64) int {
	n := 0
	for i, d := range dm.data {
		if d > limit {
			dm.data[i] = 0
			n++
		}
	}
	return n
}

// Dense returns the depth map as an H×W matrix.
func (dm *DepthMap) Dense() *mat.Dense {
	data := make([]float64, len(dm.data))
	copy(data, dm.data)
	return mat.NewDense(dm.height, dm.width, data)
}

// DepthMapFromEncodedImage decodes an 8-bit depth image whose raw values span [minDepth, maxDepth]
// meters: depth = raw / (255 / (maxDepth - minDepth)) + minDepth. The red channel is used for
// color images.
func DepthMapFromEncodedImage(img image.Image, minDepth, maxDepth float64) (*DepthMap, error) {
	if maxDepth <= minDepth {
		return nil, errors.Errorf("invalid depth range [%v, %v]", minDepth, maxDepth)
	}
	scale := MaxEncodedDepth / (maxDepth - minDepth)
	bounds := img.Bounds()
	dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			dm.Set(x, y, float64(encodedValue(img, bounds.Min.X+x, bounds.Min.Y+y))/scale+minDepth)
		}
	}
	return dm, nil
}

func encodedValue(img image.Image, x, y int) uint8 {
	switch typed := img.(type) {
	case *image.Gray:
		return typed.GrayAt(x, y).Y
	case *image.NRGBA:
		return typed.NRGBAAt(x, y).R
	default:
		r, _, _, _ := img.At(x, y).RGBA()
		return uint8(r >> 8)
	}
}
