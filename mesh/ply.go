package mesh

import (
	"bufio"
	"fmt"
	"io"
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

// NewFromFile returns a mesh read in from the given file.
func NewFromFile(fn string, logger golog.Logger) (*Mesh, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	switch filepath.Ext(fn) {
	case ".ply":
		return ReadPLY(f, logger)
	case ".obj":
		return ReadOBJ(f, logger)
	default:
		return nil, errors.Errorf("do not know how to read file %q", fn)
	}
}

// WriteToFile writes the mesh out to the given file, with the format chosen
// by the file extension.
func (m *Mesh) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	switch filepath.Ext(fn) {
	case ".ply":
		return WritePLY(f, m)
	case ".obj":
		return WriteOBJ(f, m)
	default:
		return errors.Errorf("do not know how to write file %q", fn)
	}
}

type plyElement struct {
	name       string
	count      int
	properties []string
}

// ReadPLY reads an ascii PLY mesh. Vertex properties beyond x, y and z are
// skipped and faces must be triangles.
func ReadPLY(r io.Reader, logger golog.Logger) (*Mesh, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "ply" {
		return nil, errors.New("file does not start with ply magic")
	}

	var elements []*plyElement
	var current *plyElement
	formatSeen := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return nil, errors.Errorf("unsupported ply format %q, only ascii is supported", line)
			}
			formatSeen = true
		case "element":
			if len(fields) != 3 {
				return nil, errors.Errorf("malformed element declaration %q", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, errors.Errorf("bad element count in %q", line)
			}
			current = &plyElement{name: fields[1], count: count}
			elements = append(elements, current)
		case "property":
			if current == nil {
				return nil, errors.New("property declared before any element")
			}
			current.properties = append(current.properties, fields[len(fields)-1])
		case "end_header":
			if !formatSeen {
				return nil, errors.New("ply header missing format declaration")
			}
			return readPLYBody(scanner, elements, logger)
		default:
			return nil, errors.Errorf("unexpected header line %q", line)
		}
	}
	return nil, errors.New("ply header missing end_header")
}

func readPLYBody(scanner *bufio.Scanner, elements []*plyElement, logger golog.Logger) (*Mesh, error) {
	m := NewEmpty()
	for _, element := range elements {
		switch element.name {
		case "vertex":
			xi, yi, zi := propertyIndex(element, "x"), propertyIndex(element, "y"), propertyIndex(element, "z")
			if xi < 0 || yi < 0 || zi < 0 {
				return nil, errors.New("vertex element missing x, y or z property")
			}
			for i := 0; i < element.count; i++ {
				values, err := scanElementRowFloats(scanner)
				if err != nil {
					return nil, errors.Wrapf(err, "vertex %d", i)
				}
				if len(values) != len(element.properties) {
					return nil, errors.Errorf("vertex %d has %d fields, want %d", i, len(values), len(element.properties))
				}
				m.Vertices = append(m.Vertices, r3.Vector{X: values[xi], Y: values[yi], Z: values[zi]})
			}
		case "face":
			for i := 0; i < element.count; i++ {
				values, err := scanElementRowInts(scanner)
				if err != nil {
					return nil, errors.Wrapf(err, "face %d", i)
				}
				if len(values) < 1 || len(values) != values[0]+1 {
					return nil, errors.Errorf("face %d has a malformed index list", i)
				}
				if values[0] != 3 {
					return nil, errors.Errorf("face %d has %d vertices, only triangles are supported", i, values[0])
				}
				for _, idx := range values[1:] {
					if idx < 0 || idx >= len(m.Vertices) {
						return nil, errors.Errorf("face %d references vertex %d out of %d", i, idx, len(m.Vertices))
					}
					m.Indices = append(m.Indices, uint32(idx))
				}
			}
		default:
			logger.Debugf("skipping unknown ply element %q with %d rows", element.name, element.count)
			for i := 0; i < element.count; i++ {
				if !scanner.Scan() {
					return nil, errors.Errorf("unexpected end of file in element %q", element.name)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func propertyIndex(element *plyElement, name string) int {
	for i, p := range element.properties {
		if p == name {
			return i
		}
	}
	return -1
}

func scanElementRowFloats(scanner *bufio.Scanner) ([]float64, error) {
	if !scanner.Scan() {
		return nil, errors.New("unexpected end of file")
	}
	return parseFloatFields(scanner.Text())
}

func scanElementRowInts(scanner *bufio.Scanner) ([]int, error) {
	if !scanner.Scan() {
		return nil, errors.New("unexpected end of file")
	}
	return parseIntFields(scanner.Text())
}

// WritePLY writes the mesh to the given writer as ascii PLY.
func WritePLY(out io.Writer, m *Mesh) error {
	w := bufio.NewWriter(out)
	_, err := fmt.Fprintf(w, "ply\n"+
		"format ascii 1.0\n"+
		"element vertex %d\n"+
		"property float x\n"+
		"property float y\n"+
		"property float z\n"+
		"element face %d\n"+
		"property list uchar int vertex_indices\n"+
		"end_header\n",
		m.VertexCount(), m.TriangleCount())
	if err != nil {
		return err
	}
	for _, v := range m.Vertices {
		if _, err := fmt.Fprintf(w, "%f %f %f\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for i := 0; i < len(m.Indices); i += 3 {
		if _, err := fmt.Fprintf(w, "3 %d %d %d\n", m.Indices[i], m.Indices[i+1], m.Indices[i+2]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadOBJ reads a wavefront OBJ mesh. Polygonal faces are fan triangulated
// and any texture or normal references on face corners are dropped.
func ReadOBJ(r io.Reader, logger golog.Logger) (*Mesh, error) {
	m := NewEmpty()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			values, err := parseFloatFields(strings.Join(fields[1:], " "))
			if err != nil || len(values) < 3 {
				return nil, errors.Errorf("line %d: malformed vertex %q", lineNo, line)
			}
			m.Vertices = append(m.Vertices, r3.Vector{X: values[0], Y: values[1], Z: values[2]})
		case "f":
			corners := fields[1:]
			if len(corners) < 3 {
				return nil, errors.Errorf("line %d: face has %d corners", lineNo, len(corners))
			}
			indices := make([]uint32, 0, len(corners))
			for _, corner := range corners {
				idx, err := parseOBJCorner(corner, len(m.Vertices))
				if err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
				indices = append(indices, idx)
			}
			for i := 1; i+1 < len(indices); i++ {
				m.Indices = append(m.Indices, indices[0], indices[i], indices[i+1])
			}
		default:
			// vn, vt, usemtl and friends carry no geometry we keep
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debugf("read obj mesh with %d vertices and %d triangles", m.VertexCount(), m.TriangleCount())
	return m, nil
}

// parseOBJCorner resolves one face corner such as "7", "7/1" or "7/1/2" to a
// zero based vertex index. Negative indices count back from the most recent
// vertex.
func parseOBJCorner(corner string, vertexCount int) (uint32, error) {
	vertexField := strings.SplitN(corner, "/", 2)[0]
	idx, err := strconv.Atoi(vertexField)
	if err != nil {
		return 0, errors.Errorf("malformed face corner %q", corner)
	}
	switch {
	case idx > 0 && idx <= vertexCount:
		return uint32(idx - 1), nil
	case idx < 0 && -idx <= vertexCount:
		return uint32(vertexCount + idx), nil
	default:
		return 0, errors.Errorf("face corner %q references vertex %d out of %d", corner, idx, vertexCount)
	}
}

// WriteOBJ writes the mesh to the given writer as wavefront OBJ.
func WriteOBJ(out io.Writer, m *Mesh) error {
	w := bufio.NewWriter(out)
	for _, v := range m.Vertices {
		if _, err := fmt.Fprintf(w, "v %f %f %f\n", v.X, v.Y, v.Z); err != nil {
			return err
		}
	}
	for i := 0; i < len(m.Indices); i += 3 {
		if _, err := fmt.Fprintf(w, "f %d %d %d\n", m.Indices[i]+1, m.Indices[i+1]+1, m.Indices[i+2]+1); err != nil {
			return err
		}
	}
	return w.Flush()
}
