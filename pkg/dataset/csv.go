package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned for file formats this loader does not
// decode. SPSS .sav files must be converted by the external parsing
// collaborator before they reach the engine.
var ErrUnsupportedFormat = errors.New("unsupported dataset format")

// LoadCSV reads a headered CSV file into a Dataset. Column types are
// inferred: a column whose non-empty cells all parse as numbers is numeric,
// anything else is categorical.
func LoadCSV(path string) (*Dataset, error) {
	if strings.HasSuffix(strings.ToLower(path), ".sav") {
		return nil, fmt.Errorf("%w: %q (SPSS files are decoded upstream)", ErrUnsupportedFormat, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV builds a Dataset from CSV content with a header row.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.New("empty CSV: missing header row")
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	cells := make([][]string, len(header))
	rows := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", rows+2, err)
		}
		for i := range header {
			v := ""
			if i < len(record) {
				v = strings.TrimSpace(record[i])
			}
			cells[i] = append(cells[i], v)
		}
		rows++
	}

	ds := New(rows)
	for i, name := range header {
		col := &Column{
			Name:   strings.TrimSpace(name),
			Type:   inferType(cells[i]),
			Values: cells[i],
		}
		if err := ds.AppendColumn(col); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func inferType(values []string) SemanticType {
	numeric := false
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return Categorical
		}
		numeric = true
	}
	if numeric {
		return Numeric
	}
	return Categorical
}
