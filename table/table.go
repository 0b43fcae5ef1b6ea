// Package table reads and writes the CSV tables exchanged between the
// calibration tools: per-diameter radial falloff tables and diameter
// normalized falloff tables.
//
// Parsing is lenient. Blank lines, "#" comment lines and header lines are
// skipped, and rows whose numeric fields do not parse are dropped and
// counted in Table.Skipped instead of failing the whole file.
package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// Kind identifies which persisted format a table was read from.
type Kind int

const (
	// KindUnknown is a headerless table.
	KindUnknown Kind = iota
	// KindRadial is keyed by integer pixel radius ("r").
	KindRadial
	// KindNormalized is keyed by integer normalized radius ("r_norm").
	KindNormalized
)

func (k Kind) String() string {
	switch k {
	case KindRadial:
		return "radial"
	case KindNormalized:
		return "normalized"
	default:
		return "unknown"
	}
}

// Row is one parsed table line.
type Row struct {
	R      float64 `csv:"r"`
	Mean   float64 `csv:"mean_alpha"`
	Stddev float64 `csv:"stddev_alpha"`
	Count  int     `csv:"count"`
}

// Table is a parsed falloff table.
type Table struct {
	Kind      Kind
	Rows      []Row
	HasStddev bool
	HasCount  bool
	Meta      Meta
	Skipped   int // malformed rows dropped while parsing
}

// canonicalHeader is the column layout every row is normalized to before
// handing the body to gocsv.
const canonicalHeader = "r,mean_alpha,stddev_alpha,count"

const canonicalFields = 4

// Parse reads a radial or normalized falloff table.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{}

	var body bytes.Buffer
	body.WriteString(canonicalHeader)
	body.WriteByte('\n')

	maxFields := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			t.Meta = append(t.Meta, parseMeta(line)...)
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		if kind, ok := headerKind(fields[0]); ok {
			t.Kind = kind
			for _, f := range fields[1:] {
				switch strings.ToLower(f) {
				case "stddev_alpha":
					t.HasStddev = true
				case "count":
					t.HasCount = true
				}
			}
			continue
		}

		if len(fields) < 2 || !numeric(fields) {
			t.Skipped++
			continue
		}
		if len(fields) > maxFields {
			maxFields = len(fields)
		}
		if len(fields) > canonicalFields {
			fields = fields[:canonicalFields]
		}
		for len(fields) < canonicalFields {
			fields = append(fields, "0")
		}
		body.WriteString(strings.Join(fields, ","))
		body.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}

	if t.Kind == KindUnknown {
		t.HasStddev = maxFields >= 3
		t.HasCount = maxFields >= 4
	}

	// gocsv keeps a partially filled row when the handler asks it to
	// continue, so remember which lines failed and drop them afterwards.
	bad := make(map[int]bool)
	var rows []Row
	err := gocsv.UnmarshalWithErrorHandler(&body, func(e *csv.ParseError) bool {
		bad[e.Line-2] = true
		return true
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("decoding table: %w", err)
	}

	t.Rows = make([]Row, 0, len(rows))
	for i, row := range rows {
		if bad[i] || !finite(row.R) || !finite(row.Mean) || !finite(row.Stddev) {
			t.Skipped++
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].R < t.Rows[j].R })

	return t, nil
}

// ParseFile reads a table from disk.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening table: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Means returns the mean column.
func (t *Table) Means() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Mean
	}
	return out
}

func headerKind(first string) (Kind, bool) {
	switch strings.ToLower(first) {
	case "r":
		return KindRadial, true
	case "r_norm":
		return KindNormalized, true
	}
	return KindUnknown, false
}

// numeric reports whether every field parses as a float. Rows that fail
// never reach the CSV decoder, so a stray quote cannot abort the parse.
func numeric(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MetaField is one key=value pair from a comment line.
type MetaField struct {
	Key   string
	Value string
}

// Meta holds the key=value pairs of "#" comment lines, in file order.
type Meta []MetaField

func parseMeta(line string) Meta {
	var m Meta
	for _, tok := range strings.Fields(strings.TrimPrefix(line, "#")) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok || k == "" {
			continue
		}
		m = append(m, MetaField{Key: k, Value: v})
	}
	return m
}

// Get returns the last value recorded for key.
func (m Meta) Get(key string) (string, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if strings.EqualFold(m[i].Key, key) {
			return m[i].Value, true
		}
	}
	return "", false
}

// Float returns key parsed as a float.
func (m Meta) Float(key string) (float64, bool) {
	s, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// String renders the metadata as a comment line without a trailing newline.
func (m Meta) String() string {
	var sb strings.Builder
	sb.WriteByte('#')
	for _, f := range m {
		sb.WriteByte(' ')
		sb.WriteString(f.Key)
		sb.WriteByte('=')
		sb.WriteString(f.Value)
	}
	return sb.String()
}
