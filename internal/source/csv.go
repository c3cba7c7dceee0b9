// Package source reads raw event feeds and splits tabular payloads into
// rows.
package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	appLog "confsched/internal/log"
	"confsched/internal/model"
)

// ErrMalformedTable is returned when a payload cannot be read as a table
// at all. Problems with individual rows are not errors.
var ErrMalformedTable = errors.New("malformed tabular data")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a CSV document with a header row into raw rows keyed by
// header name. Short rows leave the missing columns empty, extra columns
// are dropped and blank lines are skipped.
func ParseCSV(r io.Reader) ([]model.RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformedTable)
		}
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedTable, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if !hasNamedColumn(header) {
		return nil, fmt.Errorf("%w: header row has no column names", ErrMalformedTable)
	}

	rows := make([]model.RawRow, 0)
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// A broken record is skipped like any other malformed row.
			appLog.Debug("csv: skipping unreadable record", "line", line, "err", err.Error())
			continue
		}
		if blank(rec) {
			continue
		}

		row := make(model.RawRow, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(rec) {
				row[name] = rec[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func hasNamedColumn(header []string) bool {
	for _, h := range header {
		if h != "" {
			return true
		}
	}
	return false
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
