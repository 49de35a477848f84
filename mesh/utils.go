package mesh

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseFloatFields splits a whitespace-delimited record, such as a PLY vertex
// row or an OBJ "v" line, into float64 fields.
func parseFloatFields(s string) ([]float64, error) {
	fields := strings.Fields(s)
	converted := make([]float64, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Errorf("bad numeric field %q", field)
		}
		converted = append(converted, value)
	}
	return converted, nil
}

// parseIntFields splits a whitespace-delimited record, such as a PLY face
// row, into int fields.
func parseIntFields(s string) ([]int, error) {
	fields := strings.Fields(s)
	converted := make([]int, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Errorf("bad integer field %q", field)
		}
		converted = append(converted, value)
	}
	return converted, nil
}
