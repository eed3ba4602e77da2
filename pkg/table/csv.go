package table

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultDelimiter is the field separator used when a Source leaves it unset.
const DefaultDelimiter = ','

// checkEvery is how many records are read between context checks.
const checkEvery = 1024

// Source locates a delimited text file.
type Source struct {
	Path      string
	Delimiter rune
	HasHeader bool
}

// Name returns the table name derived from the file name without extension.
func (s Source) Name() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (s Source) delimiter() rune {
	if s.Delimiter == 0 {
		return DefaultDelimiter
	}
	return s.Delimiter
}

// ParseDelimiter turns a user supplied separator into a rune. "tab" and
// a literal backslash-t select a tab; the empty string selects the default.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return DefaultDelimiter, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character", s)
	}
	return r, nil
}

// LoadCSV reads and types the file described by src.
func LoadCSV(ctx context.Context, src Source) (*Table, error) {
	file, err := os.Open(src.Path) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	t, err := ReadCSV(ctx, src.Name(), file, src.delimiter(), src.HasHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	return t, nil
}

// ReadCSV reads delimited records from r into a typed table.
func ReadCSV(ctx context.Context, name string, r io.Reader, delimiter rune, hasHeader bool) (*Table, error) {
	header, records, err := ReadRecords(ctx, r, delimiter, hasHeader)
	if err != nil {
		return nil, err
	}
	return FromRecords(name, header, records)
}

// ReadRecords reads raw string records from r. The header is nil when
// hasHeader is false. Every record must have as many fields as the first one.
func ReadRecords(ctx context.Context, r io.Reader, delimiter rune, hasHeader bool) ([]string, [][]string, error) {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false

	var header []string
	width := -1
	if hasHeader {
		h, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil, ErrEmptyTable
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		header = make([]string, len(h))
		for i, col := range h {
			header[i] = strings.TrimSpace(col)
		}
		width = len(header)
	}

	var records [][]string
	for {
		if len(records)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if width < 0 {
			width = len(rec)
		}
		if len(rec) != width {
			line, _ := reader.FieldPos(0)
			return nil, nil, fmt.Errorf("line %d: expected %d fields, got %d", line, width, len(rec))
		}
		records = append(records, rec)
	}

	if header == nil && len(records) == 0 {
		return nil, nil, ErrEmptyTable
	}
	return header, records, nil
}

// ReadHeader returns the column names of src without reading the whole
// file: the trimmed header row, or Col0, Col1, ... sized after the first
// record when the file has no header.
func ReadHeader(src Source) ([]string, error) {
	file, err := os.Open(src.Path) //nolint:gosec // path comes from the caller
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.Comma = src.delimiter()
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	names := make([]string, len(first))
	for i, col := range first {
		if src.HasHeader {
			names[i] = strings.TrimSpace(col)
		} else {
			names[i] = DefaultColumnName(i)
		}
	}
	return names, nil
}
