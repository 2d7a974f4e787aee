package transform

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/objectcapture/objectcapture/logging"
	"github.com/objectcapture/objectcapture/spatialmath"
)

// ExtrinsicOptimizationConfig holds the stopping rules of the extrinsic search.
type ExtrinsicOptimizationConfig struct {
	// GradientThreshold stops the search once the infinity norm of the gradient drops below it.
	GradientThreshold float64
	// FunctionAbsolute and FunctionIterations stop the search once the error has not improved by
	// more than FunctionAbsolute over FunctionIterations major iterations.
	FunctionAbsolute   float64
	FunctionIterations int
	// MajorIterations caps the number of L-BFGS iterations. 0 means no cap.
	MajorIterations int
}

// DefaultExtrinsicOptimizationConfig returns the stopping rules used by SolveExtrinsicOptimization.
func DefaultExtrinsicOptimizationConfig() ExtrinsicOptimizationConfig {
	return ExtrinsicOptimizationConfig{
		GradientThreshold:  1e-10,
		FunctionAbsolute:   1e-15,
		FunctionIterations: 20,
		MajorIterations:    1000,
	}
}

// SolveExtrinsicOptimization finds the rigid transform E minimizing
//
//	mean_i ||target_i - (E · source_i)[:3]||²
//
// with the default config, logging to the global logger. See SolveExtrinsicOptimizationWithConfig.
func SolveExtrinsicOptimization(source, target mat.Matrix) (*mat.Dense, float64, error) {
	return SolveExtrinsicOptimizationWithConfig(source, target, DefaultExtrinsicOptimizationConfig(), logging.Global())
}

// SolveExtrinsicOptimizationWithConfig returns the fitted 4x4 extrinsic matrix and the mean squared
// error it achieves. source and target are N×3 or N×4 with the same N > 0; N×3 sources are
// promoted to homogeneous points and only the first three target coordinates are compared.
//
// The search is a local L-BFGS descent from the identity transform, so a large initial
// misalignment may end in a local minimum. Stopping early on an iteration limit or a stalled
// line search is logged and the best transform found is returned.
func SolveExtrinsicOptimizationWithConfig(
	source, target mat.Matrix,
	cfg ExtrinsicOptimizationConfig,
	logger logging.Logger,
) (*mat.Dense, float64, error) {
	src, tgt, err := extrinsicInputs(source, target)
	if err != nil {
		return nil, 0, err
	}
	if logger == nil {
		logger = logging.Global()
	}

	objective := extrinsicObjective(src, tgt)
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: cfg.GradientThreshold,
		MajorIterations:   cfg.MajorIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   cfg.FunctionAbsolute,
			Iterations: cfg.FunctionIterations,
		},
	}

	x0 := make([]float64, len(spatialmath.ExtrinsicParams{}))
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.Wrap(err, "extrinsic optimization failed")
	}
	if err != nil {
		logger.Warnw("extrinsic optimization stopped early", "status", result.Status.String(), "error", err)
	}
	logger.Debugw("extrinsic optimization finished",
		"status", result.Status.String(),
		"mse", result.F,
		"iterations", result.Stats.MajorIterations,
		"evaluations", result.Stats.FuncEvaluations,
	)
	return spatialmath.ExtrinsicParamsFromSlice(result.X).Matrix(), result.F, nil
}

// ExtrinsicResiduals returns, per point, the Euclidean distance between the target and the
// transformed source. Inputs follow the rules of SolveExtrinsicOptimizationWithConfig.
func ExtrinsicResiduals(source, target, extrinsic mat.Matrix) ([]float64, error) {
	src, tgt, err := extrinsicInputs(source, target)
	if err != nil {
		return nil, err
	}
	if r, c := extrinsic.Dims(); r != 4 || c != 4 {
		return nil, newDimensionError("extrinsic matrix must be 4x4, got %dx%d", r, c)
	}
	return residuals(src, tgt, extrinsic), nil
}

// extrinsicInputs validates the point sets and returns the N×4 homogeneous source and the N×3 target.
func extrinsicInputs(source, target mat.Matrix) (*mat.Dense, *mat.Dense, error) {
	sn, sc := source.Dims()
	tn, tc := target.Dims()
	if sn != tn {
		return nil, nil, newDimensionError("source has %d points but target has %d", sn, tn)
	}
	if sn == 0 {
		return nil, nil, newDimensionError("no points to align")
	}
	if sc != 3 && sc != 4 {
		return nil, nil, newDimensionError("source points must have 3 or 4 columns, got %d", sc)
	}
	if tc != 3 && tc != 4 {
		return nil, nil, newDimensionError("target points must have 3 or 4 columns, got %d", tc)
	}

	var src *mat.Dense
	if sc == 3 {
		src = ToHomogeneous(source)
	} else {
		src = mat.DenseCopyOf(source)
	}
	tgt := mat.NewDense(tn, 3, nil)
	for i := 0; i < tn; i++ {
		tgt.SetRow(i, []float64{target.At(i, 0), target.At(i, 1), target.At(i, 2)})
	}
	return src, tgt, nil
}

func residuals(src, tgt *mat.Dense, extrinsic mat.Matrix) []float64 {
	var moved mat.Dense
	moved.Mul(src, extrinsic.T())
	n, _ := tgt.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = floats.Distance(tgt.RawRowView(i), moved.RawRowView(i)[:3], 2)
	}
	return out
}

func extrinsicObjective(src, tgt *mat.Dense) func(x []float64) float64 {
	return func(x []float64) float64 {
		res := residuals(src, tgt, spatialmath.ExtrinsicParamsFromSlice(x).Matrix())
		return floats.Dot(res, res) / float64(len(res))
	}
}
