package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is a fully read CSV export. Every row is padded to the header width.
type Table struct {
	Headers []string
	Rows    [][]string
	index   map[string]int
}

func ReadTable(path string) (*Table, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTable(f)
}

// ParseTable reads a CSV stream, dropping a leading byte-order mark. Repeated
// header names are renamed X, X.1, X.2 so every column stays addressable.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &Table{Headers: dedupeHeaders(header)}
	t.index = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		t.index[h] = i
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}
		if len(record) < len(t.Headers) {
			padded := make([]string, len(t.Headers))
			copy(padded, record)
			record = padded
		}
		t.Rows = append(t.Rows, record[:len(t.Headers)])
	}
	return t, nil
}

func (t *Table) Has(header string) bool {
	_, ok := t.index[header]
	return ok
}

// Column returns the index of header, or -1.
func (t *Table) Column(header string) int {
	if i, ok := t.index[header]; ok {
		return i
	}
	return -1
}

// Cell returns the cell of row under header, or "" when the column is absent.
func (t *Table) Cell(row []string, header string) string {
	i, ok := t.index[header]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func dedupeHeaders(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]struct{}, len(header))
	counts := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if _, dup := used[name]; dup {
			n := counts[h]
			for {
				n++
				name = h + "." + strconv.Itoa(n)
				if _, taken := used[name]; !taken {
					break
				}
			}
			counts[h] = n
		}
		used[name] = struct{}{}
		out[i] = name
	}
	return out
}
