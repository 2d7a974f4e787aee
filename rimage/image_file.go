package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ReadImageFromFile decodes a JPEG or PNG file.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	return img, nil
}

// WriteImageToFile encodes img in the format implied by the file extension.
func WriteImageToFile(path string, img image.Image) error {
	return errors.Wrapf(imaging.Save(img, path), "cannot write image %q", path)
}

// RotateClockwise turns an image a quarter turn clockwise.
func RotateClockwise(img image.Image) *image.NRGBA {
	return imaging.Rotate270(img)
}

// ResizeNearest resamples img to width×height without mixing neighboring values, which keeps
// encoded depths intact.
func ResizeNearest(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.NearestNeighbor)
}

// ReadDepthMapFromFile decodes an 8-bit depth image spanning [minDepth, maxDepth] meters.
func ReadDepthMapFromFile(path string, minDepth, maxDepth float64) (*DepthMap, error) {
	img, err := ReadImageFromFile(path)
	if err != nil {
		return nil, err
	}
	return DepthMapFromEncodedImage(img, minDepth, maxDepth)
}
