// Package pointcloud defines a point cloud and provides an implementation for one.
//
// Points are metric camera or world coordinates in meters, optionally colored. The cloud is the
// hand-off format between back-projected RGB-D frames and file output.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasColor bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// NewMetaData returns meta data with empty bounds.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge widens the bounds to include p and records whether d carries color.
func (meta *MetaData) Merge(p r3.Vector, d Data) {
	if d != nil && d.HasColor() {
		meta.HasColor = true
	}
	meta.MinX = math.Min(meta.MinX, p.X)
	meta.MinY = math.Min(meta.MinY, p.Y)
	meta.MinZ = math.Min(meta.MinZ, p.Z)
	meta.MaxX = math.Max(meta.MaxX, p.X)
	meta.MaxY = math.Max(meta.MaxY, p.Y)
	meta.MaxZ = math.Max(meta.MaxZ, p.Z)
}

// Center returns the middle of the bounding box.
func (meta *MetaData) Center() r3.Vector {
	return r3.Vector{
		X: (meta.MinX + meta.MaxX) / 2,
		Y: (meta.MinY + meta.MaxY) / 2,
		Z: (meta.MinZ + meta.MaxZ) / 2,
	}
}

// PointCloud is a general purpose container of points. It does not
// dictate whether or not the cloud is sparse or dense.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// MetaData returns meta data
	MetaData() MetaData

	// Set places the given point in the cloud, replacing the data of an existing point at the
	// same position.
	Set(p r3.Vector, d Data) error

	// At returns the point in the cloud at the given position.
	// The 2nd return is if the point exists, the first is data if any.
	At(x, y, z float64) (Data, bool)

	// Iterate iterates over all points in the cloud in insertion order and calls the given
	// function for each point. If the supplied function returns false, iteration will stop
	// after the function returns.
	// numBatches lets you divide up the work. 0 means don't divide
	// myBatch is used iff numBatches > 0 and is which batch you want
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}
