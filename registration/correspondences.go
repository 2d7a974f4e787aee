// Package registration recovers the rigid transform between pairs of captured frames from pixel
// correspondences.
package registration

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Correspondence pairs pixels of a source frame with the pixels of the same scene points in a
// target frame. Pixels are (x, y) in the rotated frame orientation.
type Correspondence struct {
	SourceFrame  string       `json:"source_frame"`
	TargetFrame  string       `json:"target_frame"`
	SourcePixels [][2]float64 `json:"source_pixels"`
	TargetPixels [][2]float64 `json:"target_pixels"`
}

// Validate checks that both sides name a frame and list the same, non-zero number of pixels.
func (c *Correspondence) Validate() error {
	if c.SourceFrame == "" || c.TargetFrame == "" {
		return errors.New("correspondence needs a source_frame and a target_frame")
	}
	if len(c.SourcePixels) != len(c.TargetPixels) {
		return errors.Errorf("%s->%s: %d source pixels but %d target pixels",
			c.SourceFrame, c.TargetFrame, len(c.SourcePixels), len(c.TargetPixels))
	}
	if len(c.SourcePixels) == 0 {
		return errors.Errorf("%s->%s: no pixels", c.SourceFrame, c.TargetFrame)
	}
	return nil
}

// Pairs returns the source and target pixels as points.
func (c *Correspondence) Pairs() ([]r2.Point, []r2.Point) {
	toPoint := func(p [2]float64, _ int) r2.Point { return r2.Point{X: p[0], Y: p[1]} }
	return lo.Map(c.SourcePixels, toPoint), lo.Map(c.TargetPixels, toPoint)
}

// ReadCorrespondencesFile parses a JSON list of correspondences and validates each of them.
func ReadCorrespondencesFile(path string) ([]Correspondence, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read correspondences %q", path)
	}
	var corrs []Correspondence
	if err := json.Unmarshal(data, &corrs); err != nil {
		return nil, errors.Wrapf(err, "cannot parse correspondences %q", path)
	}
	for i := range corrs {
		if err := corrs[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "correspondence %d", i)
		}
	}
	return corrs, nil
}
