// Package local reads pipeline inputs from local CSV files.
package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadRows reads a CSV and returns one map per data row, keyed by the
// lowercased, trimmed header names. Every required column must appear in the
// header; cells a short row does not cover come back as "".
func ReadRows(r io.Reader, required ...string) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := index[strings.ToLower(col)]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		m := make(map[string]string, len(index))
		for name, i := range index {
			if i < len(rec) {
				m[name] = rec[i]
			} else {
				m[name] = ""
			}
		}
		rows = append(rows, m)
	}
}
