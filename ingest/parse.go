// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package ingest

import (
	"fmt"
	"strconv"

	"github.com/cosnicolaou/tsbatch"
	"github.com/cosnicolaou/tsbatch/catalog"
)

// ParseRow converts one textual record, as read from a CSV file, into a
// row of the hypertable. Empty fields parse as null.
func ParseRow(ht *catalog.Hypertable, record []string) (tsbatch.Row, error) {
	if len(record) != len(ht.Columns) {
		return nil, fmt.Errorf("record has %d fields, hypertable %q has %d columns", len(record), ht.Name, len(ht.Columns))
	}
	row := make(tsbatch.Row, len(record))
	for i, field := range record {
		if field == "" {
			row[i] = tsbatch.NullDatum()
			continue
		}
		t, err := ht.TypeOf(ht.Columns[i].Name)
		if err != nil {
			return nil, err
		}
		switch t {
		case tsbatch.TypeInt64:
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %v", ht.Columns[i].Name, err)
			}
			row[i] = tsbatch.IntDatum(v)
		case tsbatch.TypeFloat64:
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q: %v", ht.Columns[i].Name, err)
			}
			row[i] = tsbatch.FloatDatum(v)
		case tsbatch.TypeBool:
			v, err := strconv.ParseBool(field)
			if err != nil {
				return nil, fmt.Errorf("column %q: %v", ht.Columns[i].Name, err)
			}
			row[i] = tsbatch.BoolDatum(v)
		case tsbatch.TypeBytes:
			row[i] = tsbatch.BytesDatum([]byte(field))
		}
	}
	return row, nil
}

// FormatRow renders a decoded row as textual fields, the inverse of
// ParseRow for round-tripping through CSV.
func FormatRow(ht *catalog.Hypertable, row tsbatch.Row) ([]string, error) {
	fields := make([]string, len(row))
	for i, v := range row {
		if v.Null {
			continue
		}
		if i >= len(ht.Columns) {
			return nil, fmt.Errorf("row has %d columns, hypertable %q has %d", len(row), ht.Name, len(ht.Columns))
		}
		t, err := ht.TypeOf(ht.Columns[i].Name)
		if err != nil {
			return nil, err
		}
		switch t {
		case tsbatch.TypeInt64:
			fields[i] = strconv.FormatInt(v.Int, 10)
		case tsbatch.TypeFloat64:
			fields[i] = strconv.FormatFloat(v.Float, 'g', -1, 64)
		case tsbatch.TypeBool:
			fields[i] = strconv.FormatBool(v.Bool)
		case tsbatch.TypeBytes:
			fields[i] = string(v.Bytes)
		}
	}
	return fields, nil
}
