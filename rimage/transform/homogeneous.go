package transform

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ToHomogeneous appends a column of ones to an N×d point set.
func ToHomogeneous(points mat.Matrix) *mat.Dense {
	r, c := points.Dims()
	if r == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, points.At(i, j))
		}
		out.Set(i, c, 1)
	}
	return out
}

// FromHomogeneous divides every row of an N×(d+1) point set by its last coordinate and drops it.
// The last coordinate must be nonzero; a zero divisor yields ±Inf or NaN in that row.
func FromHomogeneous(points mat.Matrix) *mat.Dense {
	r, c := points.Dims()
	if r == 0 || c < 2 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c-1, nil)
	for i := 0; i < r; i++ {
		w := points.At(i, c-1)
		for j := 0; j < c-1; j++ {
			out.Set(i, j, points.At(i, j)/w)
		}
	}
	return out
}

// Convert2DPointsToHomogeneousPoints converts float pixel coordinates into homogeneous coordinates.
func Convert2DPointsToHomogeneousPoints(pts []r2.Point) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, pt := range pts {
		out[i] = r3.Vector{X: pt.X, Y: pt.Y, Z: 1}
	}
	return out
}

// PixelsToDense stacks pixels into an N×2 matrix.
func PixelsToDense(pts []r2.Point) *mat.Dense {
	if len(pts) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(pts), 2, nil)
	for i, pt := range pts {
		out.Set(i, 0, pt.X)
		out.Set(i, 1, pt.Y)
	}
	return out
}

// PointsToDense stacks points into an N×3 matrix.
func PointsToDense(pts []r3.Vector) *mat.Dense {
	if len(pts) == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(len(pts), 3, nil)
	for i, pt := range pts {
		out.SetRow(i, []float64{pt.X, pt.Y, pt.Z})
	}
	return out
}

// DenseToPoints reads the first three columns of every row as a point.
func DenseToPoints(m mat.Matrix) []r3.Vector {
	r, c := m.Dims()
	if c < 3 {
		return nil
	}
	out := make([]r3.Vector, r)
	for i := range out {
		out[i] = r3.Vector{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)}
	}
	return out
}
