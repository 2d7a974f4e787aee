package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

func colorToPCDInt(pt Data) int {
	if pt == nil || !pt.HasColor() {
		return 0
	}
	r, g, b := pt.RGB255()
	return (int(r) << 16) | (int(g) << 8) | int(b)
}

func pcdIntToColor(c int) color.NRGBA {
	r := uint8(0xFF & (c >> 16))
	g := uint8(0xFF & (c >> 8))
	b := uint8(0xFF & (c >> 0))
	return color.NRGBA{r, g, b, 255}
}

// WriteToPCDFile writes the point cloud out to a PCD file.
func WriteToPCDFile(cloud PointCloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err = ToPCD(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

// ToPCD writes out a point cloud to a PCD file of the given type. Positions are written in meters.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	var dataLine string
	switch outputType {
	case PCDBinary:
		dataLine = "binary"
	case PCDAscii:
		dataLine = "ascii"
	default:
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}

	hasColor := cloud.MetaData().HasColor
	header := "VERSION .7\n"
	if hasColor {
		header += "FIELDS x y z rgb\n" +
			"SIZE 4 4 4 4\n" +
			"TYPE F F F I\n" +
			"COUNT 1 1 1 1\n"
	} else {
		header += "FIELDS x y z\n" +
			"SIZE 4 4 4\n" +
			"TYPE F F F\n" +
			"COUNT 1 1 1\n"
	}
	if _, err := fmt.Fprintf(out, "%sWIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		header, cloud.Size(), cloud.Size(), dataLine); err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType, hasColor)
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType, hasColor bool) error {
	var err error
	cloud.Iterate(0, 0, func(pos r3.Vector, d Data) bool {
		switch pcdtype {
		case PCDBinary:
			size := 12
			if hasColor {
				size = 16
			}
			buf := make([]byte, size)
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(pos.X)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(pos.Y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(pos.Z)))
			if hasColor {
				binary.LittleEndian.PutUint32(buf[12:], uint32(colorToPCDInt(d)))
			}
			_, err = out.Write(buf)
		case PCDAscii:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", pos.X, pos.Y, pos.Z, colorToPCDInt(d))
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", pos.X, pos.Y, pos.Z)
			}
		}
		return err == nil
	})
	return err
}

// maxPCDPrealloc bounds the capacity reserved from a header's POINTS count; larger clouds grow as
// points are read.
const maxPCDPrealloc = 1 << 20

type pcdHeader struct {
	hasColor bool
	points   int
}

// NewFromPCDFile reads a PCD file written by WriteToPCDFile.
func NewFromPCDFile(fn string) (PointCloud, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", fn)
	}
	defer utils.UncheckedErrorFunc(f.Close)
	return ReadPCD(f)
}

// ReadPCD reads the ascii or binary x y z [rgb] layout produced by ToPCD.
func ReadPCD(inRaw io.Reader) (PointCloud, error) {
	in := bufio.NewReader(inRaw)
	header := pcdHeader{}
	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(err, "error reading pcd header")
		}
		line, _, _ = strings.Cut(line, "#")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		field, value, _ := strings.Cut(line, " ")
		switch field {
		case "FIELDS":
			switch value {
			case "x y z":
			case "x y z rgb":
				header.hasColor = true
			default:
				return nil, errors.Errorf("unsupported pcd fields %q", value)
			}
		case "POINTS":
			header.points, err = strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid POINTS field %q", value)
			}
			if header.points < 0 {
				return nil, errors.Errorf("invalid POINTS field %q", value)
			}
		case "DATA":
			switch value {
			case "ascii":
				return readPCDAscii(in, header)
			case "binary":
				return readPCDBinary(in, header)
			default:
				return nil, errors.Errorf("unsupported pcd data type %q", value)
			}
		}
	}
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	pc := NewWithPrealloc(min(header.points, maxPCDPrealloc))
	for i := 0; i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		tokens := strings.Fields(line)
		want := 3
		if header.hasColor {
			want = 4
		}
		if len(tokens) != want {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		vals := make([]float64, want)
		for j, token := range tokens {
			vals[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d field %q", i, token)
			}
		}
		if err := pc.Set(NewVector(vals[0], vals[1], vals[2]), pcdData(header, vals)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (PointCloud, error) {
	size := 12
	if header.hasColor {
		size = 16
	}
	pc := NewWithPrealloc(min(header.points, maxPCDPrealloc))
	buf := make([]byte, size)
	for i := 0; i < header.points; i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "reading point %d", i)
		}
		vals := []float64{
			float64(math.Float32frombits(binary.LittleEndian.Uint32(buf))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4:]))),
			float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[8:]))),
		}
		if header.hasColor {
			vals = append(vals, float64(binary.LittleEndian.Uint32(buf[12:])))
		}
		if err := pc.Set(NewVector(vals[0], vals[1], vals[2]), pcdData(header, vals)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func pcdData(header pcdHeader, vals []float64) Data {
	if !header.hasColor {
		return NewBasicData()
	}
	return NewColoredData(pcdIntToColor(int(vals[3])))
}
