// Package table provides the in-memory tabular container persisted by
// bundlestore: an ordered set of named, typed columns of equal length, with
// optional table-level and per-column string metadata.
package table

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"time"
)

// Type identifies the element type of a column.
type Type string

// Supported element types. Any other Type value is an opaque type that
// codecs are expected to reject.
const (
	Int64     Type = "int64"
	Float64   Type = "float64"
	String    Type = "string"
	Bool      Type = "bool"
	Timestamp Type = "timestamp"
)

// KnownTypes lists the element types with a concrete Go representation.
var KnownTypes = []Type{Int64, Float64, String, Bool, Timestamp}

// OpaqueType returns a Type for values the container holds but does not
// interpret, such as a mixed "object" column.
func OpaqueType(name string) Type {
	return Type(name)
}

// Known reports whether t has a concrete Go representation.
func (t Type) Known() bool {
	return slices.Contains(KnownTypes, t)
}

// Sentinel errors for table construction.
var (
	// ErrRowCountMismatch indicates columns of different lengths.
	ErrRowCountMismatch = errors.New("columns have different row counts")

	// ErrDuplicateColumn indicates two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrEmptyColumnName indicates a column without a name.
	ErrEmptyColumnName = errors.New("column name is empty")
)

// Column is a named, typed sequence of values.
//
// Values holds []int64, []float64, []string, []bool or []time.Time for the
// known types, and []any for opaque types.
type Column struct {
	Name     string
	Type     Type
	Values   any
	Metadata map[string]string
}

// Int64s builds an Int64 column.
func Int64s(name string, values ...int64) Column {
	return Column{Name: name, Type: Int64, Values: nonNil(values)}
}

// Float64s builds a Float64 column.
func Float64s(name string, values ...float64) Column {
	return Column{Name: name, Type: Float64, Values: nonNil(values)}
}

// Strings builds a String column.
func Strings(name string, values ...string) Column {
	return Column{Name: name, Type: String, Values: nonNil(values)}
}

// Bools builds a Bool column.
func Bools(name string, values ...bool) Column {
	return Column{Name: name, Type: Bool, Values: nonNil(values)}
}

// Timestamps builds a Timestamp column. Values are normalized to UTC with
// the monotonic clock reading stripped.
func Timestamps(name string, values ...time.Time) Column {
	norm := make([]time.Time, len(values))
	for i, v := range values {
		norm[i] = v.Round(0).UTC()
	}
	return Column{Name: name, Type: Timestamp, Values: norm}
}

// Opaque builds a column of an uninterpreted type.
func Opaque(name string, typ Type, values ...any) Column {
	return Column{Name: name, Type: typ, Values: nonNil(values)}
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

// Len returns the number of values in the column.
func (c Column) Len() int {
	switch v := c.Values.(type) {
	case []int64:
		return len(v)
	case []float64:
		return len(v)
	case []string:
		return len(v)
	case []bool:
		return len(v)
	case []time.Time:
		return len(v)
	case []any:
		return len(v)
	}
	return 0
}

// validate checks that Values matches Type for the known types.
func (c Column) validate() error {
	if c.Name == "" {
		return ErrEmptyColumnName
	}
	var ok bool
	switch c.Type {
	case Int64:
		_, ok = c.Values.([]int64)
	case Float64:
		_, ok = c.Values.([]float64)
	case String:
		_, ok = c.Values.([]string)
	case Bool:
		_, ok = c.Values.([]bool)
	case Timestamp:
		_, ok = c.Values.([]time.Time)
	default:
		_, ok = c.Values.([]any)
	}
	if !ok {
		return fmt.Errorf("column %q: values %T do not match type %s", c.Name, c.Values, c.Type)
	}
	return nil
}

// Table is an ordered set of equal-length columns.
// A Table is immutable once built; accessors return copies of metadata.
type Table struct {
	columns  []Column
	rows     int
	metadata map[string]string
}

// New builds a table from columns. It fails if names are empty or repeated,
// if a column's values do not match its type, or if row counts differ.
func New(columns ...Column) (*Table, error) {
	t := &Table{columns: make([]Column, 0, len(columns))}
	seen := make(map[string]bool, len(columns))
	for i, c := range columns {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
		}
		seen[c.Name] = true
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d",
				ErrRowCountMismatch, c.Name, c.Len(), t.rows)
		}
		c.Metadata = maps.Clone(c.Metadata)
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// MustNew is like New but panics on error. Intended for tests and examples.
func MustNew(columns ...Column) *Table {
	t, err := New(columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return t.rows }

// NumColumns returns the column count.
func (t *Table) NumColumns() int { return len(t.columns) }

// Columns returns the columns in order. The slice is a copy; the value
// slices inside are shared and must not be modified.
func (t *Table) Columns() []Column {
	return slices.Clone(t.columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Metadata returns a copy of the table-level metadata.
func (t *Table) Metadata() map[string]string {
	return maps.Clone(t.metadata)
}

// ColumnMetadata returns a copy of the metadata of the named column.
func (t *Table) ColumnMetadata(name string) map[string]string {
	c, ok := t.Column(name)
	if !ok {
		return nil
	}
	return maps.Clone(c.Metadata)
}

// WithMetadata returns a shallow copy of t carrying the given table-level
// and per-column metadata. Column metadata for unknown names is ignored.
func (t *Table) WithMetadata(meta map[string]string, columnMeta map[string]map[string]string) *Table {
	out := &Table{
		columns:  slices.Clone(t.columns),
		rows:     t.rows,
		metadata: maps.Clone(meta),
	}
	for i := range out.columns {
		if m, ok := columnMeta[out.columns[i].Name]; ok {
			out.columns[i].Metadata = maps.Clone(m)
		}
	}
	return out
}

// Equal reports whether both tables have the same column names, types,
// values and row order. Metadata is not compared. Float NaNs compare equal
// to each other.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.columns {
		a, b := t.columns[i], o.columns[i]
		if a.Name != b.Name || a.Type != b.Type {
			return false
		}
		if !valuesEqual(a.Values, b.Values) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch x := a.(type) {
	case []int64:
		y, ok := b.([]int64)
		return ok && slices.Equal(x, y)
	case []string:
		y, ok := b.([]string)
		return ok && slices.Equal(x, y)
	case []bool:
		y, ok := b.([]bool)
		return ok && slices.Equal(x, y)
	case []float64:
		y, ok := b.([]float64)
		return ok && slices.EqualFunc(x, y, func(p, q float64) bool {
			return p == q || (math.IsNaN(p) && math.IsNaN(q))
		})
	case []time.Time:
		y, ok := b.([]time.Time)
		return ok && slices.EqualFunc(x, y, time.Time.Equal)
	case []any:
		y, ok := b.([]any)
		return ok && reflect.DeepEqual(x, y)
	}
	return false
}
