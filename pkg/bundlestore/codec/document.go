package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/table"
)

// DocumentVersion is the current payload layout version.
// Increment when making breaking changes to the document structure.
const DocumentVersion = 1

// Document is the format-neutral payload written by every codec.
type Document struct {
	Version  int               `json:"version" yaml:"version"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Columns  []DocumentColumn  `json:"columns" yaml:"columns"`
}

// DocumentColumn holds one column in its wire representation.
//
// Wire values: int64 and bool columns are written as plain arrays; string
// columns as arrays whose entries that are not valid UTF-8 become
// {"base64": "<std encoding>"} objects; float64 columns as arrays whose
// non-finite entries are the strings "NaN", "+Inf" and "-Inf"; timestamps as
// RFC 3339 strings with nanoseconds, limited to years 0000 through 9999.
type DocumentColumn struct {
	Name     string            `json:"name" yaml:"name"`
	Type     table.Type        `json:"type" yaml:"type"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Values   any               `json:"values" yaml:"values"`
}

// NewDocument converts a table and its annotations into a Document.
// Column names and metadata must be valid UTF-8.
func NewDocument(tbl *table.Table, meta Metadata) (*Document, error) {
	if err := ValidateDocument(tbl, meta); err != nil {
		return nil, err
	}
	doc := &Document{
		Version:  DocumentVersion,
		Metadata: merge(tbl.Metadata(), meta.Table),
	}
	for _, col := range tbl.Columns() {
		wire, err := toWire(col)
		if err != nil {
			return nil, err
		}
		doc.Columns = append(doc.Columns, DocumentColumn{
			Name:     col.Name,
			Type:     col.Type,
			Metadata: merge(col.Metadata, meta.Columns[col.Name]),
			Values:   wire,
		})
	}
	return doc, nil
}

// ValidateDocument reports the error NewDocument would return for tbl and
// meta without building the wire values.
func ValidateDocument(tbl *table.Table, meta Metadata) error {
	if err := checkText("table metadata", merge(tbl.Metadata(), meta.Table)); err != nil {
		return err
	}
	for _, col := range tbl.Columns() {
		if !utf8.ValidString(col.Name) {
			return fmt.Errorf("%w: column name %q", ErrInvalidText, col.Name)
		}
		if err := checkText("column "+strconv.Quote(col.Name)+" metadata", merge(col.Metadata, meta.Columns[col.Name])); err != nil {
			return err
		}
		if col.Type != table.Timestamp {
			continue
		}
		for i, v := range col.Values.([]time.Time) {
			if err := checkYear(col.Name, i, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkYear rejects instants RFC 3339 cannot represent.
func checkYear(column string, row int, v time.Time) error {
	if y := v.UTC().Year(); y < 0 || y > 9999 {
		return fmt.Errorf("%w: column %q row %d: year %d outside 0000-9999",
			ErrUnsupportedValue, column, row, y)
	}
	return nil
}

func checkText(where string, m map[string]string) error {
	for k, v := range m {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return fmt.Errorf("%w: %s entry %q", ErrInvalidText, where, k)
		}
	}
	return nil
}

// Table rebuilds the table described by the document.
func (d *Document) Table() (*table.Table, error) {
	if d.Version != DocumentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, d.Version)
	}
	cols := make([]table.Column, 0, len(d.Columns))
	colMeta := make(map[string]map[string]string)
	for _, dc := range d.Columns {
		col, err := fromWire(dc.Name, dc.Type, dc.Values)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if len(dc.Metadata) > 0 {
			colMeta[dc.Name] = dc.Metadata
		}
	}
	tbl, err := table.New(cols...)
	if err != nil {
		return nil, err
	}
	return tbl.WithMetadata(d.Metadata, colMeta), nil
}

func merge(base, overlay map[string]string) map[string]string {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string, len(overlay))
	}
	maps.Copy(out, overlay)
	return out
}

func toWire(col table.Column) (any, error) {
	switch col.Type {
	case table.Int64, table.Bool:
		return col.Values, nil
	case table.String:
		values := col.Values.([]string)
		if !allValidUTF8(values) {
			out := make([]any, len(values))
			for i, v := range values {
				if utf8.ValidString(v) {
					out[i] = v
				} else {
					out[i] = map[string]string{binaryKey: base64.StdEncoding.EncodeToString([]byte(v))}
				}
			}
			return out, nil
		}
		return values, nil
	case table.Float64:
		values := col.Values.([]float64)
		out := make([]any, len(values))
		for i, v := range values {
			switch {
			case math.IsNaN(v):
				out[i] = "NaN"
			case math.IsInf(v, 1):
				out[i] = "+Inf"
			case math.IsInf(v, -1):
				out[i] = "-Inf"
			default:
				out[i] = v
			}
		}
		return out, nil
	case table.Timestamp:
		values := col.Values.([]time.Time)
		out := make([]string, len(values))
		for i, v := range values {
			if err := checkYear(col.Name, i, v); err != nil {
				return nil, err
			}
			out[i] = v.UTC().Format(time.RFC3339Nano)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: column %q has type %q", ErrUnsupportedType, col.Name, col.Type)
}

// fromWire converts decoded wire values into a typed column. Formats decode
// values into generic shapes ([]any), so numeric kinds are normalized here.
func fromWire(name string, typ table.Type, values any) (table.Column, error) {
	raw, ok := values.([]any)
	if !ok && values != nil {
		return table.Column{}, fmt.Errorf("column %q: expected array, got %T", name, values)
	}
	switch typ {
	case table.Int64:
		out := make([]int64, len(raw))
		for i, v := range raw {
			n, err := toInt64(v)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			out[i] = n
		}
		return table.Int64s(name, out...), nil
	case table.Float64:
		out := make([]float64, len(raw))
		for i, v := range raw {
			f, err := toFloat64(v)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			out[i] = f
		}
		return table.Float64s(name, out...), nil
	case table.String:
		out := make([]string, len(raw))
		for i, v := range raw {
			s, err := toString(v)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			out[i] = s
		}
		return table.Strings(name, out...), nil
	case table.Bool:
		out := make([]bool, len(raw))
		for i, v := range raw {
			b, ok := v.(bool)
			if !ok {
				return table.Column{}, fmt.Errorf("column %q row %d: expected bool, got %T", name, i, v)
			}
			out[i] = b
		}
		return table.Bools(name, out...), nil
	case table.Timestamp:
		out := make([]time.Time, len(raw))
		for i, v := range raw {
			ts, err := toTime(v)
			if err != nil {
				return table.Column{}, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			out[i] = ts
		}
		return table.Timestamps(name, out...), nil
	}
	return table.Column{}, fmt.Errorf("%w: column %q has type %q", ErrUnsupportedType, name, typ)
}

// binaryKey tags a string value carried as base64.
const binaryKey = "base64"

func allValidUTF8(values []string) bool {
	for _, v := range values {
		if !utf8.ValidString(v) {
			return false
		}
	}
	return true
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case map[string]any:
		enc, ok := s[binaryKey].(string)
		if !ok || len(s) != 1 {
			return "", fmt.Errorf("expected {%q: ...} object", binaryKey)
		}
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	return "", fmt.Errorf("expected string, got %T", v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		switch n {
		case "NaN":
			return math.NaN(), nil
		case "+Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		}
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	}
	return time.Time{}, fmt.Errorf("expected timestamp string, got %T", v)
}
