package pointcloud

import (
	"image/color"
	"path/filepath"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/objectcapture/objectcapture/logging"
)

// LAS stores coordinates as scaled integers; beyond this range millimeter precision is lost.
const (
	minPreciseLAS = -2e6
	maxPreciseLAS = 2e6
)

// WriteToFile writes the cloud in the format named by the file extension: .pcd (binary) or .las.
func WriteToFile(cloud PointCloud, fn string) error {
	return WriteToFileAs(cloud, fn, PCDBinary)
}

// WriteToFileAs is WriteToFile with the pcd output type chosen by the caller. pcdType is ignored
// for .las files.
func WriteToFileAs(cloud PointCloud, fn string, pcdType PCDType) error {
	switch filepath.Ext(fn) {
	case ".pcd":
		return WriteToPCDFile(cloud, fn, pcdType)
	case ".las":
		return WriteToLASFile(cloud, fn)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
}

// NewFromFile reads a cloud written by WriteToFile.
func NewFromFile(fn string, logger logging.Logger) (PointCloud, error) {
	switch filepath.Ext(fn) {
	case ".pcd":
		return NewFromPCDFile(fn)
	case ".las":
		return NewFromLASFile(fn, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// NewFromLASFile returns a point cloud from reading a LAS file. Points outside the precise range
// are reported but kept.
func NewFromLASFile(fn string, logger logging.Logger) (PointCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", fn)
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	pc := NewWithPrealloc(lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		v := r3.Vector{X: data.X, Y: data.Y, Z: data.Z}
		if !preciseLAS(v) {
			logger.Warnw("potential floating point lossiness for LAS point", "point", v)
		}

		var d Data
		if lf.Header.PointFormatID == 2 && p.RgbData() != nil {
			rgb := p.RgbData()
			d = NewColoredData(color.NRGBA{uint8(rgb.Red / 256), uint8(rgb.Green / 256), uint8(rgb.Blue / 256), 255})
		}
		if err := pc.Set(v, d); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// WriteToLASFile writes the point cloud out to a LAS file, with RGB when the cloud has color.
func WriteToLASFile(cloud PointCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	hasColor := cloud.MetaData().HasColor
	pointFormatID := 0
	if hasColor {
		pointFormatID = 2
	}
	if err = lf.AddHeader(lidario.LasHeader{PointFormatID: byte(pointFormatID)}); err != nil {
		return err
	}

	var lastErr error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		pr0 := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}
		var lp lidario.LasPointer = pr0
		if hasColor {
			red, green, blue := 255, 255, 255
			if d != nil && d.HasColor() {
				r, g, b := d.RGB255()
				red, green, blue = int(r), int(g), int(b)
			}
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(red * 256),
					Green: uint16(green * 256),
					Blue:  uint16(blue * 256),
				},
			}
		}
		if lerr := lf.AddLasPoint(lp); lerr != nil {
			lastErr = lerr
			return false
		}
		return true
	})
	return lastErr
}

func preciseLAS(p r3.Vector) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if v < minPreciseLAS || v > maxPreciseLAS {
			return false
		}
	}
	return true
}
