package pointcloud

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/objectcapture/objectcapture/spatialmath"
)

// ApplyExtrinsic returns a new cloud with every point moved by the 4x4 rigid transform.
func ApplyExtrinsic(cloud PointCloud, extrinsic mat.Matrix) (PointCloud, error) {
	rot, t := spatialmath.DecomposeExtrinsicMatrix(extrinsic)
	out := NewWithPrealloc(cloud.Size())
	var err error
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		err = out.Set(rot.Mul(p).Add(t), d)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Merge combines clouds into one. Where positions collide, the later cloud's data wins.
func Merge(clouds ...PointCloud) (PointCloud, error) {
	total := 0
	for _, c := range clouds {
		total += c.Size()
	}
	out := NewWithPrealloc(total)
	for _, c := range clouds {
		var err error
		c.Iterate(0, 0, func(p r3.Vector, d Data) bool {
			err = out.Set(p, d)
			return err == nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
