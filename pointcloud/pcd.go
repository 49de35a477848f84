package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the data encoding of a pcd file.
type PCDType int

const (
	// PCDAscii is the ascii pcd encoding.
	PCDAscii PCDType = 0
	// PCDBinary is the little endian float32 binary pcd encoding.
	PCDBinary PCDType = 1
)

// NewFromFile returns a point cloud read in from the given file.
func NewFromFile(fn string, logger golog.Logger) (*PointCloud, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	switch filepath.Ext(fn) {
	case ".pcd":
		cloud, err := ReadPCD(f)
		if err != nil {
			return nil, err
		}
		logger.Debugf("read pcd cloud with %d points, normals %t", cloud.Size(), cloud.HasNormals())
		return cloud, nil
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// WriteToFile writes the cloud out to the given file as ascii pcd.
func (cloud *PointCloud) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	switch filepath.Ext(fn) {
	case ".pcd":
		return ToPCD(cloud, f, PCDAscii)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
}

// ToPCD writes the cloud to out as a VERSION .7 pcd file, with coordinates
// in meters. Clouds with normals carry them in the normal_x, normal_y and
// normal_z fields; both encodings store every field as a float32.
func ToPCD(cloud *PointCloud, out io.Writer, outputType PCDType) error {
	if outputType != PCDAscii && outputType != PCDBinary {
		return errors.Errorf("unsupported pcd output type %d", outputType)
	}

	w := bufio.NewWriter(out)
	fields := "FIELDS x y z\n" +
		"SIZE 4 4 4\n" +
		"TYPE F F F\n" +
		"COUNT 1 1 1\n"
	if cloud.HasNormals() {
		fields = "FIELDS x y z normal_x normal_y normal_z\n" +
			"SIZE 4 4 4 4 4 4\n" +
			"TYPE F F F F F F\n" +
			"COUNT 1 1 1 1 1 1\n"
	}
	if _, err := fmt.Fprintf(w, "VERSION .7\n"+
		"%s"+
		"WIDTH %d\n"+
		"HEIGHT 1\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		fields, cloud.Size(), cloud.Size()); err != nil {
		return err
	}

	if outputType == PCDBinary {
		if _, err := fmt.Fprintf(w, "DATA binary\n"); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(w, "DATA ascii\n"); err != nil {
			return err
		}
	}
	if err := writePCDData(cloud, w, outputType); err != nil {
		return err
	}
	return w.Flush()
}

func writePCDData(cloud *PointCloud, w io.Writer, outputType PCDType) error {
	var firstErr error
	cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
		row := []float64{p.X, p.Y, p.Z}
		if cloud.HasNormals() {
			n := cloud.NormalAt(i)
			row = append(row, n.X, n.Y, n.Z)
		}

		var err error
		if outputType == PCDBinary {
			buf := make([]byte, 4*len(row))
			for j, v := range row {
				binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(float32(v)))
			}
			_, err = w.Write(buf)
		} else {
			parts := make([]string, len(row))
			for j, v := range row {
				parts[j] = strconv.FormatFloat(v, 'f', 6, 64)
			}
			_, err = fmt.Fprintln(w, strings.Join(parts, " "))
		}
		firstErr = err
		return err == nil
	})
	return firstErr
}

type pcdFieldType int

const (
	pcdPointOnly   pcdFieldType = 3
	pcdPointNormal pcdFieldType = 6
)

type pcdHeader struct {
	fields pcdFieldType
	size   []uint64
	types  []string
	width  uint64
	height uint64
	points uint64
	data   PCDType
}

const pcdCommentChar = "#"

// pcdHeaderFields is the set of pcd header lines in the order the format
// requires them.
var pcdHeaderFields = []string{
	"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA",
}

// ReadPCD reads a pcd point cloud with plain or normal carrying points, in
// either the ascii or the binary encoding.
func ReadPCD(inRaw io.Reader) (*PointCloud, error) {
	header := pcdHeader{}
	in := bufio.NewReader(inRaw)
	headerLineCount := 0
	for headerLineCount < len(pcdHeaderFields) {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "reading header line %d", headerLineCount)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, headerLineCount, &header); err != nil {
			return nil, err
		}
		headerLineCount++
	}
	switch header.data {
	case PCDAscii:
		return readPCDAscii(in, header)
	case PCDBinary:
		return readPCDBinary(in, header)
	default:
		return nil, errors.Errorf("unsupported pcd data encoding %v", header.data)
	}
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("header line %q should start with %s", line, name)
	}

	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %q", value)
		}
	case "FIELDS":
		switch value {
		case "x y z":
			header.fields = pcdPointOnly
		case "x y z normal_x normal_y normal_z":
			header.fields = pcdPointNormal
		default:
			return errors.Errorf("unsupported pcd fields %q", value)
		}
	case "SIZE":
		if len(tokens) != int(header.fields) {
			return errors.Errorf("SIZE has %d fields, want %d", len(tokens), header.fields)
		}
		header.size = make([]uint64, len(tokens))
		for i, token := range tokens {
			size, err := strconv.ParseUint(token, 10, 64)
			if err != nil {
				return errors.Errorf("invalid SIZE field %q", token)
			}
			header.size[i] = size
		}
	case "TYPE":
		if len(tokens) != int(header.fields) {
			return errors.Errorf("TYPE has %d fields, want %d", len(tokens), header.fields)
		}
		header.types = tokens
	case "COUNT":
		if len(tokens) != int(header.fields) {
			return errors.Errorf("COUNT has %d fields, want %d", len(tokens), header.fields)
		}
		for _, token := range tokens {
			if token != "1" {
				return errors.Errorf("unsupported COUNT field %q, only scalar fields are supported", token)
			}
		}
	case "WIDTH":
		width, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid WIDTH %q", value)
		}
		header.width = width
	case "HEIGHT":
		height, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid HEIGHT %q", value)
		}
		header.height = height
	case "VIEWPOINT":
		if len(tokens) != 7 {
			return errors.Errorf("VIEWPOINT has %d fields, want 7", len(tokens))
		}
		for _, token := range tokens {
			if _, err := strconv.ParseFloat(token, 64); err != nil {
				return errors.Errorf("invalid VIEWPOINT field %q", token)
			}
		}
	case "POINTS":
		points, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid POINTS %q", value)
		}
		if points != header.width*header.height {
			return errors.Errorf("POINTS %d does not match WIDTH*HEIGHT %d", points, header.width*header.height)
		}
		header.points = points
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		default:
			return errors.Errorf("unsupported pcd data encoding %q", value)
		}
	}
	return nil
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) (*PointCloud, error) {
	cloud := NewWithPrealloc(int(header.points))
	for i := 0; i < int(header.points); i++ {
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		tokens := strings.Fields(strings.TrimSpace(line))
		if len(tokens) != int(header.fields) {
			return nil, errors.Errorf("point %d has %d fields, want %d", i, len(tokens), header.fields)
		}
		row := make([]float64, len(tokens))
		for j, token := range tokens {
			row[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Errorf("point %d has invalid field %q", i, token)
			}
		}
		addPCDRow(cloud, row, header)
	}
	return cloud, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) (*PointCloud, error) {
	for i, size := range header.size {
		if size != 4 || header.types[i] != "F" {
			return nil, errors.Errorf("unsupported binary field layout, want 4 byte floats, got %s%d", header.types[i], size*8)
		}
	}
	cloud := NewWithPrealloc(int(header.points))
	buf := make([]byte, 4*int(header.fields))
	for i := 0; i < int(header.points); i++ {
		if _, err := io.ReadFull(in, buf); err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		row := make([]float64, int(header.fields))
		for j := range row {
			row[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:])))
		}
		addPCDRow(cloud, row, header)
	}
	return cloud, nil
}

func addPCDRow(cloud *PointCloud, row []float64, header pcdHeader) {
	pos := r3.Vector{X: row[0], Y: row[1], Z: row[2]}
	if header.fields == pcdPointNormal {
		cloud.AddWithNormal(pos, r3.Vector{X: row[3], Y: row[4], Z: row[5]})
		return
	}
	cloud.Add(pos)
}
