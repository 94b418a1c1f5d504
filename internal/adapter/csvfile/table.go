// Package csvfile reads the piezometer, station, level and weather listings
// and writes association and observation files. Inputs may be comma or
// semicolon separated and gzip-compressed; outputs are comma separated.
package csvfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// table is a parsed CSV file with columns addressed by header name.
type table struct {
	name  string
	comma rune
	cols  map[string]int
	rows  [][]string
	lines []int
}

type gzipReadCloser struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipReadCloser) Close() error {
	return errors.Join(g.Reader.Close(), g.f.Close())
}

// openFile opens path for reading, decompressing it when it ends in .gz.
func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: zr, f: f}, nil
}

type gzipWriteCloser struct {
	*gzip.Writer
	f *os.File
}

func (g *gzipWriteCloser) Close() error {
	return errors.Join(g.Writer.Close(), g.f.Close())
}

// createFile creates path and its parent directories, compressing output
// when the path ends in .gz.
func createFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	return &gzipWriteCloser{Writer: gzip.NewWriter(f), f: f}, nil
}

// readTable parses r, sniffing the delimiter from the header line.
func readTable(r io.Reader, name string) (*table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	comma := sniffDelimiter(head)

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	t := &table{name: name, comma: comma, cols: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.cols[h]; !dup {
			t.cols[h] = i
		}
	}

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if blank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.rows = append(t.rows, row)
		t.lines = append(t.lines, line)
	}
	return t, nil
}

func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		return ';'
	}
	return ','
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// column resolves the first of names present in the header.
func (t *table) column(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := t.cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}

// require resolves a mandatory column.
func (t *table) require(names ...string) (int, error) {
	if i, ok := t.column(names...); ok {
		return i, nil
	}
	return 0, fmt.Errorf("%s: missing column %q", t.name, names[0])
}

func (t *table) text(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// float parses a numeric cell. Empty cells are missing values (NaN).
// Semicolon-separated files may use a decimal comma.
func (t *table) float(n, col int, header string) (float64, error) {
	s := t.text(t.rows[n], col)
	if s == "" {
		return math.NaN(), nil
	}
	if t.comma == ';' {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s:%d: column %q: invalid number %q", t.name, t.lines[n], header, s)
	}
	return v, nil
}

// count parses a non-negative whole number, tolerating a ".0" suffix from
// spreadsheet exports. Empty cells count as zero.
func (t *table) count(n, col int, header string) (int, error) {
	v, err := t.float(n, col, header)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, nil
	}
	if v < 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s:%d: column %q: invalid count %q", t.name, t.lines[n], header, t.text(t.rows[n], col))
	}
	return int(v), nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
