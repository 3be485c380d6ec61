package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column names in file order.
const (
	ColumnName      = "Name"
	ColumnEmail     = "Email"
	ColumnPhone     = "Phone"
	ColumnTimestamp = "Timestamp"
)

// Header returns the header row written at the top of a new queue file.
func Header() []string {
	return []string{ColumnName, ColumnEmail, ColumnPhone, ColumnTimestamp}
}

// EncodeRow renders a record in header order.
func EncodeRow(r Record) []string {
	return []string{r.Name, r.Email, r.Phone, FormatTimestamp(r.SubmittedAt)}
}

// WriteRows writes records (and optionally the header) as CSV.
func WriteRows(w io.Writer, withHeader bool, records ...Record) error {
	cw := csv.NewWriter(w)
	if withHeader {
		if err := cw.Write(Header()); err != nil {
			return fmt.Errorf("contacts: write header: %w", err)
		}
	}
	for _, r := range records {
		if err := cw.Write(EncodeRow(r)); err != nil {
			return fmt.Errorf("contacts: write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("contacts: flush csv: %w", err)
	}
	return nil
}

// SkippedRow describes a data row that could not be turned into a Record.
type SkippedRow struct {
	Line   int
	Reason string
}

// ParseResult holds the rows that parsed and the rows that did not.
type ParseResult struct {
	Records []Record
	Skipped []SkippedRow
}

// ParseCSV reads a queue file. Columns are located by header name, so extra
// or reordered columns are tolerated. Bad rows are skipped, never fatal.
func ParseCSV(r io.Reader) (ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ParseResult{}, ErrMissingHeader
	}
	if err != nil {
		return ParseResult{}, fmt.Errorf("contacts: read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}
	for _, required := range []string{ColumnEmail, ColumnTimestamp} {
		if _, ok := index[required]; !ok {
			return ParseResult{}, ErrMissingHeader
		}
	}

	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var result ParseResult
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: parseErr.Err.Error()})
				continue
			}
			return result, fmt.Errorf("contacts: read row %d: %w", line, err)
		}

		email := NormalizeEmail(field(row, ColumnEmail))
		if email == "" {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: "missing email"})
			continue
		}
		rawTS := field(row, ColumnTimestamp)
		if rawTS == "" {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: "missing timestamp"})
			continue
		}
		ts, err := ParseTimestamp(rawTS)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedRow{Line: line, Reason: "invalid timestamp " + rawTS})
			continue
		}

		result.Records = append(result.Records, Record{
			Name:        field(row, ColumnName),
			Email:       email,
			Phone:       field(row, ColumnPhone),
			SubmittedAt: ts,
		})
	}
	return result, nil
}
