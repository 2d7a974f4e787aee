package registration

import (
	"context"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/objectcapture/objectcapture/capture"
	"github.com/objectcapture/objectcapture/logging"
	"github.com/objectcapture/objectcapture/pointcloud"
	"github.com/objectcapture/objectcapture/rimage"
	"github.com/objectcapture/objectcapture/rimage/transform"
	"github.com/objectcapture/objectcapture/spatialmath"
	"github.com/objectcapture/objectcapture/utils"
)

// MinCorrespondences is the fewest usable pixel pairs AlignFrames accepts.
const MinCorrespondences = 3

// ErrNotEnoughCorrespondences is returned when too few pixel pairs have a depth on both sides.
var ErrNotEnoughCorrespondences = errors.New("not enough correspondences with depth")

// Options tune pair alignment.
type Options struct {
	// KeepZeroDepth keeps pixel pairs where either frame has no depth measurement.
	KeepZeroDepth bool
	Optimizer     transform.ExtrinsicOptimizationConfig
}

// DefaultOptions drops pairs without depth and uses the default optimizer config.
func DefaultOptions() Options {
	return Options{Optimizer: transform.DefaultExtrinsicOptimizationConfig()}
}

// ResidualStats summarizes per-point alignment distances in meters.
type ResidualStats struct {
	Mean   float64
	Median float64
	P90    float64
	Max    float64
}

// Result is the recovered transform taking source camera coordinates into target camera coordinates.
type Result struct {
	SourceFrame    string
	TargetFrame    string
	Extrinsic      *mat.Dense
	Error          float64
	RotationVector r3.Vector
	Translation    r3.Vector
	Used           int
	Dropped        int
	Residuals      ResidualStats
}

// AlignFrames back-projects the corresponding pixels of both frames with their sampled depths and
// fits the extrinsic between the two point sets.
func AlignFrames(
	src, tgt *capture.Frame,
	corr Correspondence,
	opts Options,
	logger logging.Logger,
) (*Result, error) {
	if err := corr.Validate(); err != nil {
		return nil, err
	}
	srcPix, tgtPix := corr.Pairs()
	for i := range srcPix {
		if !onGrid(src.Depth, srcPix[i]) {
			return nil, errors.Errorf("%s->%s: source pixel %d %v outside frame %s",
				corr.SourceFrame, corr.TargetFrame, i, srcPix[i], src.ID)
		}
		if !onGrid(tgt.Depth, tgtPix[i]) {
			return nil, errors.Errorf("%s->%s: target pixel %d %v outside frame %s",
				corr.SourceFrame, corr.TargetFrame, i, tgtPix[i], tgt.ID)
		}
	}

	srcDense := transform.PixelsToDense(srcPix)
	tgtDense := transform.PixelsToDense(tgtPix)
	srcDepth := transform.DepthsForPoints(srcDense, src.Depth)
	tgtDepth := transform.DepthsForPoints(tgtDense, tgt.Depth)

	dropped := 0
	if !opts.KeepZeroDepth {
		keep := make([]int, 0, len(srcPix))
		for i := range srcPix {
			if srcDepth[i] > 0 && tgtDepth[i] > 0 {
				keep = append(keep, i)
			}
		}
		dropped = len(srcPix) - len(keep)
		srcPix, srcDepth = pick(srcPix, srcDepth, keep)
		tgtPix, tgtDepth = pick(tgtPix, tgtDepth, keep)
		srcDense = transform.PixelsToDense(srcPix)
		tgtDense = transform.PixelsToDense(tgtPix)
	}
	if len(srcPix) < MinCorrespondences {
		return nil, errors.Wrapf(ErrNotEnoughCorrespondences, "%s->%s: %d of %d pairs usable",
			corr.SourceFrame, corr.TargetFrame, len(srcPix), len(srcPix)+dropped)
	}

	srcPts, err := transform.BackprojectPoints(srcDense, srcDepth, src.InvK)
	if err != nil {
		return nil, err
	}
	tgtPts, err := transform.BackprojectPoints(tgtDense, tgtDepth, tgt.InvK)
	if err != nil {
		return nil, err
	}

	extrinsic, mse, err := transform.SolveExtrinsicOptimizationWithConfig(srcPts, tgtPts, opts.Optimizer, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "%s->%s", corr.SourceFrame, corr.TargetFrame)
	}
	residuals, err := transform.ExtrinsicResiduals(srcPts, tgtPts, extrinsic)
	if err != nil {
		return nil, err
	}
	residualStats, err := summarize(residuals)
	if err != nil {
		return nil, err
	}

	params := spatialmath.ExtrinsicParamsFromMatrix(extrinsic)
	res := &Result{
		SourceFrame:    corr.SourceFrame,
		TargetFrame:    corr.TargetFrame,
		Extrinsic:      extrinsic,
		Error:          mse,
		RotationVector: params.RotationVector(),
		Translation:    params.Translation(),
		Used:           len(srcPix),
		Dropped:        dropped,
		Residuals:      residualStats,
	}
	logger.Infow("aligned frames",
		"source", res.SourceFrame,
		"target", res.TargetFrame,
		"mse", res.Error,
		"used", res.Used,
		"dropped", res.Dropped,
	)
	return res, nil
}

// AlignBatch aligns every correspondence, at most utils.ParallelFactor at a time. Results are
// returned in the order of corrs; a failed pair leaves a nil entry and its error is combined into
// the returned error.
func AlignBatch(
	ctx context.Context,
	frames []*capture.Frame,
	corrs []Correspondence,
	opts Options,
	logger logging.Logger,
) ([]*Result, error) {
	results := make([]*Result, len(corrs))
	var (
		errMu sync.Mutex
		errs  error
	)
	record := func(err error) {
		errMu.Lock()
		errs = multierr.Append(errs, err)
		errMu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(utils.ParallelFactor)
	for i, corr := range corrs {
		i, corr := i, corr
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(errors.Wrapf(err, "%s->%s", corr.SourceFrame, corr.TargetFrame))
				return nil
			}
			src, ok := capture.FrameByID(frames, corr.SourceFrame)
			if !ok {
				record(errors.Wrapf(capture.ErrFrameNotFound, "source frame %s", corr.SourceFrame))
				return nil
			}
			tgt, ok := capture.FrameByID(frames, corr.TargetFrame)
			if !ok {
				record(errors.Wrapf(capture.ErrFrameNotFound, "target frame %s", corr.TargetFrame))
				return nil
			}
			res, err := AlignFrames(src, tgt, corr, opts, logger.Sublogger(corr.SourceFrame+"-"+corr.TargetFrame))
			if err != nil {
				record(err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if errs != nil {
		logger.Warnw("some frame pairs failed to align", "failed", len(multierr.Errors(errs)), "total", len(corrs))
	}
	return results, errs
}

// MergeAligned builds one cloud in which every aligned source frame is moved into its target's
// camera frame and merged with the target's own points.
func MergeAligned(frames []*capture.Frame, results []*Result, depthTrunc float64) (pointcloud.PointCloud, error) {
	var clouds []pointcloud.PointCloud
	for _, res := range results {
		if res == nil {
			continue
		}
		src, ok := capture.FrameByID(frames, res.SourceFrame)
		if !ok {
			return nil, errors.Wrapf(capture.ErrFrameNotFound, "source frame %s", res.SourceFrame)
		}
		tgt, ok := capture.FrameByID(frames, res.TargetFrame)
		if !ok {
			return nil, errors.Wrapf(capture.ErrFrameNotFound, "target frame %s", res.TargetFrame)
		}
		srcCloud, err := src.PointCloud(depthTrunc)
		if err != nil {
			return nil, err
		}
		moved, err := pointcloud.ApplyExtrinsic(srcCloud, res.Extrinsic)
		if err != nil {
			return nil, err
		}
		tgtCloud, err := tgt.PointCloud(depthTrunc)
		if err != nil {
			return nil, err
		}
		clouds = append(clouds, tgtCloud, moved)
	}
	if len(clouds) == 0 {
		return nil, errors.New("no aligned frame pairs to merge")
	}
	return pointcloud.Merge(clouds...)
}

func onGrid(dm *rimage.DepthMap, p r2.Point) bool {
	return p.X >= 0 && p.Y >= 0 && dm.Contains(int(p.X), int(p.Y))
}

func pick(pix []r2.Point, depth []float64, keep []int) ([]r2.Point, []float64) {
	outPix := make([]r2.Point, len(keep))
	outDepth := make([]float64, len(keep))
	for j, i := range keep {
		outPix[j] = pix[i]
		outDepth[j] = depth[i]
	}
	return outPix, outDepth
}

func summarize(residuals []float64) (ResidualStats, error) {
	var s ResidualStats
	var err error
	if s.Mean, err = stats.Mean(residuals); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(residuals); err != nil {
		return s, err
	}
	if s.P90, err = stats.PercentileNearestRank(residuals, 90); err != nil {
		return s, err
	}
	if s.Max, err = stats.Max(residuals); err != nil {
		return s, err
	}
	return s, nil
}
