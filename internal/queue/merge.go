package queue

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// mergeRows returns remote followed by every local data row remote does not
// already hold. Rows are compared field by field after CSV decoding, so
// quoting differences do not produce duplicates. The remote header wins;
// local rows are written in the local file's column order.
func mergeRows(remote, local []byte) ([]byte, error) {
	remoteRows, err := readRows(remote)
	if err != nil {
		return nil, fmt.Errorf("queue: parse remote content: %w", err)
	}
	if len(remoteRows) == 0 {
		return local, nil
	}
	localRows, err := readRows(local)
	if err != nil {
		return nil, fmt.Errorf("queue: parse local content: %w", err)
	}
	if len(localRows) <= 1 {
		return remote, nil
	}

	seen := make(map[string]struct{}, len(remoteRows))
	for _, row := range remoteRows[1:] {
		seen[rowKey(row)] = struct{}{}
	}
	var missing [][]string
	for _, row := range localRows[1:] {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		missing = append(missing, row)
	}
	if len(missing) == 0 {
		return remote, nil
	}

	var buf bytes.Buffer
	buf.Write(remote)
	if len(remote) > 0 && remote[len(remote)-1] != '\n' {
		buf.WriteByte('\n')
	}
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(missing); err != nil {
		return nil, fmt.Errorf("queue: write merged rows: %w", err)
	}
	return buf.Bytes(), nil
}

func readRows(data []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

func rowKey(row []string) string {
	trimmed := make([]string, len(row))
	for i, f := range row {
		trimmed[i] = strings.TrimSpace(f)
	}
	return strings.Join(trimmed, "\x1f")
}
