package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"samplewatch/internal/logging"
)

// Delimiter used by the ERP's Excel exports.
const delimiter = ';'

// utf8BOM is written before the header so Excel opens the file with the
// right encoding, and stripped on read.
const utf8BOM = "\uFEFF"

// Table maps one CSV file to a typed record slice. Decode receives a
// fully coerced Row whose required fields are guaranteed present;
// encode produces the Row that gets serialized in schema order.
//
// Loading is lazy and cached for the process lifetime; Save overwrites
// the whole file and replaces the cache with exactly the saved set.
// Tables are not safe for concurrent use - the tool runs as a
// single-threaded batch process.
type Table[T any] struct {
	path   string
	schema Schema
	decode func(Row) T
	encode func(T) Row

	cache  []T
	loaded bool
}

// NewTable creates a table over path.
func NewTable[T any](path string, schema Schema, decode func(Row) T, encode func(T) Row) *Table[T] {
	return &Table[T]{path: path, schema: schema, decode: decode, encode: encode}
}

// Path returns the backing file path.
func (t *Table[T]) Path() string { return t.path }

// Load parses the backing file. A missing file or a file with zero data
// rows yields an empty slice, not an error; rows with missing required
// fields or unparseable required values are logged and skipped whole.
// Only an unreadable existing file returns an error.
func (t *Table[T]) Load() ([]T, error) {
	if t.loaded {
		return t.cache, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Get(logging.CategoryStore).Error("file not found: %s", t.path)
			t.cache = []T{}
			t.loaded = true
			return t.cache, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	lines, err := reader.ReadAll()
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to read %s: %v", t.path, err)
		t.cache = []T{}
		t.loaded = true
		return t.cache, nil
	}
	if len(lines) == 0 {
		t.cache = []T{}
		t.loaded = true
		return t.cache, nil
	}

	header := lines[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}

	var records []T
	for i, line := range lines[1:] {
		rowNum := i + 2 // header is line 1
		row, ok := t.coerceLine(line, colIndex, rowNum)
		if !ok {
			continue
		}
		records = append(records, t.decode(row))
	}
	if records == nil {
		records = []T{}
	}

	logging.StoreDebug("loaded %d records from %s", len(records), t.path)
	t.cache = records
	t.loaded = true
	return t.cache, nil
}

// coerceLine applies the schema to one raw line. Returns ok=false when
// the whole row must be skipped.
func (t *Table[T]) coerceLine(line []string, colIndex map[string]int, rowNum int) (Row, bool) {
	row := make(Row, len(t.schema.Fields))
	var missing []string

	for _, f := range t.schema.Fields {
		raw := ""
		if idx, ok := colIndex[f.Name]; ok && idx < len(line) {
			raw = line[idx]
		}
		if strings.TrimSpace(raw) == "" {
			if f.Required {
				missing = append(missing, f.Name)
			}
			// Optional and empty: omit, zero value applies.
			continue
		}

		v, err := coerce(f, raw)
		if err != nil {
			if f.Required {
				logging.StoreWarn("row %d in %s: %v, skipping row", rowNum, filepath.Base(t.path), err)
				return nil, false
			}
			logging.StoreWarn("row %d in %s: %v, dropping field", rowNum, filepath.Base(t.path), err)
			continue
		}
		row[f.Name] = v
	}

	if len(missing) > 0 {
		logging.StoreWarn("row %d in %s: missing required fields %v, skipping row",
			rowNum, filepath.Base(t.path), missing)
		return nil, false
	}
	return row, true
}

// Save serializes records in schema field order, fully overwriting the
// destination and creating missing parent directories. On success the
// cache is replaced with exactly the saved set. Save failures
// propagate - unlike load, they are never swallowed.
func (t *Table[T]) Save(records []T) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("failed to create directory for %s: %v", t.path, err)
		return fmt.Errorf("failed to create directory for %s: %w", t.path, err)
	}

	f, err := os.Create(t.path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("failed to create %s: %v", t.path, err)
		return fmt.Errorf("failed to create %s: %w", t.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM to %s: %w", t.path, err)
	}

	writer := csv.NewWriter(f)
	writer.Comma = delimiter

	if err := writer.Write(t.schema.Names()); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", t.path, err)
	}
	for _, rec := range records {
		row := t.encode(rec)
		cells := make([]string, len(t.schema.Fields))
		for i, field := range t.schema.Fields {
			cells[i] = format(field, row[field.Name])
		}
		if err := writer.Write(cells); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", t.path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", t.path, err)
	}

	t.cache = append([]T(nil), records...)
	t.loaded = true
	logging.Store("saved %d records to %s", len(records), t.path)
	return nil
}

// ClearCache forces the next Load to re-read the file.
func (t *Table[T]) ClearCache() {
	t.cache = nil
	t.loaded = false
}
