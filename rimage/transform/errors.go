package transform

import "github.com/pkg/errors"

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// ErrDimensionMismatch is returned when paired inputs disagree on point count or coordinate size.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

func newDimensionError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDimensionMismatch, format, args...)
}
