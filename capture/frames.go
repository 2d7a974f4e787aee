package capture

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/objectcapture/objectcapture/logging"
	"github.com/objectcapture/objectcapture/utils"
)

// FrameIDs lists the numeric frame ids present in dir, in numeric order. Files that do not start
// with "frame_<number>_" are ignored.
func FrameIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list capture folder %q", dir)
	}
	ids := lo.Uniq(lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "frame_") {
			return "", false
		}
		parts := strings.SplitN(e.Name(), "_", 3)
		if len(parts) < 3 {
			return "", false
		}
		if _, err := strconv.Atoi(parts[1]); err != nil {
			return "", false
		}
		return parts[1], true
	}))
	sort.SliceStable(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids, nil
}

// ReadFrames loads every frame in dir, in frame id order. Frames are decoded in parallel.
func ReadFrames(ctx context.Context, dir string, opts ReadOptions, logger logging.Logger) ([]*Frame, error) {
	ids, err := FrameIDs(dir)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.Errorf("no frames found in %q", dir)
	}

	frames := make([]*Frame, len(ids))
	fs := lo.Map(ids, func(id string, i int) utils.SimpleFunc {
		return func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := ReadFrame(dir, id, opts)
			if err != nil {
				return err
			}
			logger.Debugw("read frame", "id", id, "width", f.Width(), "height", f.Height())
			frames[i] = f
			return nil
		}
	})
	elapsed, err := utils.RunInParallel(ctx, fs)
	if err != nil {
		return nil, err
	}
	logger.Infow("read frames", "dir", dir, "count", len(frames), "elapsed", elapsed)
	return frames, nil
}

// FrameByID returns the frame with the given id.
func FrameByID(frames []*Frame, id string) (*Frame, bool) {
	return lo.Find(frames, func(f *Frame) bool { return f.ID == id })
}
