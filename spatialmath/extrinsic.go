package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ExtrinsicParams is the 6-parameter rigid pose used by the extrinsic optimizer: a rotation
// vector (axis scaled by the angle in radians) followed by a translation.
type ExtrinsicParams [6]float64

// NewExtrinsicParams packs a rotation vector and a translation vector.
func NewExtrinsicParams(rotVec, tVec r3.Vector) ExtrinsicParams {
	return ExtrinsicParams{rotVec.X, rotVec.Y, rotVec.Z, tVec.X, tVec.Y, tVec.Z}
}

// ExtrinsicParamsFromSlice copies the first six values of x. x must hold at least six values.
func ExtrinsicParamsFromSlice(x []float64) ExtrinsicParams {
	var p ExtrinsicParams
	copy(p[:], x[:6])
	return p
}

// RotationVector returns the rotation part.
func (p ExtrinsicParams) RotationVector() r3.Vector {
	return r3.Vector{X: p[0], Y: p[1], Z: p[2]}
}

// Translation returns the translation part.
func (p ExtrinsicParams) Translation() r3.Vector {
	return r3.Vector{X: p[3], Y: p[4], Z: p[5]}
}

// Matrix returns the 4x4 extrinsic matrix of the parameters.
func (p ExtrinsicParams) Matrix() *mat.Dense {
	return ExtrinsicMatrixFromVectors(p.RotationVector(), p.Translation())
}

// ExtrinsicMatrixFromVectors builds the 4x4 rigid transform
//
//	[[R t],
//	 [0 1]]
//
// where R is the rotation of rotVec and t is tVec.
func ExtrinsicMatrixFromVectors(rotVec, tVec r3.Vector) *mat.Dense {
	return NewExtrinsicMatrix(RotationMatrixFromVector(rotVec), tVec)
}

// NewExtrinsicMatrix builds the 4x4 rigid transform from a rotation and a translation.
func NewExtrinsicMatrix(rot *RotationMatrix, tVec r3.Vector) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		rot.At(0, 0), rot.At(0, 1), rot.At(0, 2), tVec.X,
		rot.At(1, 0), rot.At(1, 1), rot.At(1, 2), tVec.Y,
		rot.At(2, 0), rot.At(2, 1), rot.At(2, 2), tVec.Z,
		0, 0, 0, 1,
	})
}

// DecomposeExtrinsicMatrix splits a 4x4 rigid transform into its rotation and translation.
// The bottom row is not checked.
func DecomposeExtrinsicMatrix(extrinsic mat.Matrix) (*RotationMatrix, r3.Vector) {
	var rot RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.mat[3*i+j] = extrinsic.At(i, j)
		}
	}
	return &rot, r3.Vector{X: extrinsic.At(0, 3), Y: extrinsic.At(1, 3), Z: extrinsic.At(2, 3)}
}

// ExtrinsicParamsFromMatrix recovers the 6-parameter form of a 4x4 rigid transform.
func ExtrinsicParamsFromMatrix(extrinsic mat.Matrix) ExtrinsicParams {
	rot, t := DecomposeExtrinsicMatrix(extrinsic)
	return NewExtrinsicParams(rot.RotationVector(), t)
}

// TransformPoint applies a 4x4 rigid transform to a Euclidean point.
func TransformPoint(extrinsic mat.Matrix, pt r3.Vector) r3.Vector {
	rot, t := DecomposeExtrinsicMatrix(extrinsic)
	return rot.Mul(pt).Add(t)
}
