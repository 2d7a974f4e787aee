package rimage

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestDepthMapFromMat(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	dm := NewDepthMapFromMat(m)
	test.That(t, dm.Width(), test.ShouldEqual, 3)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(2, 0), test.ShouldEqual, 3.0)
	test.That(t, dm.GetDepth(0, 1), test.ShouldEqual, 4.0)
	test.That(t, mat.Equal(dm.Dense(), m), test.ShouldBeTrue)
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 3, 2))

	test.That(t, func() { dm.GetDepth(3, 0) }, test.ShouldPanic)
	test.That(t, func() { dm.GetDepth(0, -1) }, test.ShouldPanic)
}

func TestDepthMapMasking(t *testing.T) {
	dm := NewEmptyDepthMap(2, 2)
	dm.Set(0, 0, 0.5)
	dm.Set(1, 0, 1.2)
	dm.Set(0, 1, 1.9)
	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, 0.5)
	test.That(t, max, test.ShouldEqual, 1.9)

	cloned := dm.Clone()
	test.That(t, dm.MaskBeyond(1.1), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, 0.0)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 0.5)
	test.That(t, cloned.GetDepth(1, 0), test.ShouldEqual, 1.2)
}

func TestDepthMapFromEncodedImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(0, 0, color.Gray{Y: 0})
	gray.SetGray(1, 0, color.Gray{Y: 255})

	dm, err := DepthMapFromEncodedImage(gray, 0, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 0.0)
	test.That(t, dm.GetDepth(1, 0), test.ShouldAlmostEqual, 2.0)

	offset, err := DepthMapFromEncodedImage(gray, 0.5, 1.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, offset.GetDepth(0, 0), test.ShouldEqual, 0.5)
	test.That(t, offset.GetDepth(1, 0), test.ShouldAlmostEqual, 1.5)

	_, err = DepthMapFromEncodedImage(gray, 2, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthFileRoundTrip(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		gray.SetGray(x, 0, color.Gray{Y: uint8(51 * x)})
		gray.SetGray(x, 1, color.Gray{Y: 255})
	}
	fn := filepath.Join(t.TempDir(), "depth.png")
	test.That(t, WriteImageToFile(fn, gray), test.ShouldBeNil)

	dm, err := ReadDepthMapFromFile(fn, 0, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 2)
	test.That(t, dm.GetDepth(1, 0), test.ShouldAlmostEqual, 51*2.0/255)
	test.That(t, dm.GetDepth(3, 1), test.ShouldAlmostEqual, 2.0)

	// a quarter turn clockwise moves the left column onto the top row
	rotated := RotateClockwise(gray)
	test.That(t, rotated.Bounds().Dx(), test.ShouldEqual, 2)
	test.That(t, rotated.Bounds().Dy(), test.ShouldEqual, 4)
	rdm, err := DepthMapFromEncodedImage(rotated, 0, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rdm.GetDepth(0, 0), test.ShouldAlmostEqual, 2.0)
	test.That(t, rdm.GetDepth(1, 0), test.ShouldEqual, 0.0)

	resized := ResizeNearest(gray, 8, 4)
	test.That(t, resized.Bounds().Dx(), test.ShouldEqual, 8)
	test.That(t, resized.Bounds().Dy(), test.ShouldEqual, 4)

	_, err = ReadImageFromFile(filepath.Join(t.TempDir(), "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
}
