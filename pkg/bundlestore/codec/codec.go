// Package codec serializes tables to and from byte streams.
//
// A codec is named by a format tag of the form "<format>.<compression>",
// for example "json.snappy" or "yaml.none". The tag is embedded in artifact
// filenames so a reader can pick the matching codec without sniffing bytes.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/randalmurphal/bundlestore/pkg/bundlestore/table"
)

// DefaultTag is the format tag used when none is configured.
const DefaultTag = "json.snappy"

// Sentinel errors for codec operations.
var (
	// ErrUnknownFormat indicates a format tag with no registered codec.
	ErrUnknownFormat = errors.New("unknown format tag")

	// ErrUnsupportedType indicates a column type the codec cannot represent.
	ErrUnsupportedType = errors.New("unsupported column type")

	// ErrUnsupportedVersion indicates a payload written by a newer layout.
	ErrUnsupportedVersion = errors.New("unsupported payload version")

	// ErrUnsupportedValue indicates a value the wire format cannot carry
	// in a form that reads back unchanged.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrInvalidText indicates a column name or metadata entry that is not
	// valid UTF-8.
	ErrInvalidText = errors.New("text is not valid UTF-8")
)

// Metadata is the annotation set written alongside a table.
// Entries override metadata already carried by the table.
type Metadata struct {
	Table   map[string]string
	Columns map[string]map[string]string
}

// Codec encodes and decodes tables for one format tag.
type Codec interface {
	// Tag returns the format tag, e.g. "json.snappy".
	Tag() string

	// Supports reports whether columns of type t can be encoded.
	Supports(t table.Type) bool

	// Encode writes tbl and meta to w.
	Encode(w io.Writer, tbl *table.Table, meta Metadata) error

	// Decode reads a table, with its metadata attached, from r.
	Decode(r io.Reader) (*table.Table, error)
}

// Validator is implemented by codecs that can reject a table before any
// bytes are written. The store calls it before touching the filesystem.
type Validator interface {
	Validate(tbl *table.Table, meta Metadata) error
}

// Format turns a document into bytes and back.
type Format interface {
	Name() string
	Marshal(w io.Writer, doc *Document) error
	Unmarshal(r io.Reader) (*Document, error)
}

// Compression wraps streams with a compression algorithm.
type Compression interface {
	Name() string
	NewWriter(w io.Writer) io.WriteCloser
	NewReader(r io.Reader) (io.Reader, error)
}

// New combines a format and a compression into a Codec.
func New(f Format, c Compression) Codec {
	return &streamCodec{format: f, compression: c}
}

type streamCodec struct {
	format      Format
	compression Compression
}

func (c *streamCodec) Tag() string {
	return c.format.Name() + "." + c.compression.Name()
}

func (c *streamCodec) Supports(t table.Type) bool {
	return t.Known()
}

func (c *streamCodec) Validate(tbl *table.Table, meta Metadata) error {
	return ValidateDocument(tbl, meta)
}

func (c *streamCodec) Encode(w io.Writer, tbl *table.Table, meta Metadata) error {
	for _, col := range tbl.Columns() {
		if !c.Supports(col.Type) {
			return fmt.Errorf("%w: column %q has type %q", ErrUnsupportedType, col.Name, col.Type)
		}
	}
	doc, err := NewDocument(tbl, meta)
	if err != nil {
		return err
	}
	cw := c.compression.NewWriter(w)
	if err := c.format.Marshal(cw, doc); err != nil {
		cw.Close()
		return fmt.Errorf("encode %s: %w", c.format.Name(), err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", c.compression.Name(), err)
	}
	return nil
}

func (c *streamCodec) Decode(r io.Reader) (*table.Table, error) {
	cr, err := c.compression.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.compression.Name(), err)
	}
	doc, err := c.format.Unmarshal(cr)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.format.Name(), err)
	}
	return doc.Table()
}

// JoinFilename builds the artifact filename for a version and format tag.
func JoinFilename(versionID, tag string) string {
	return versionID + "." + tag
}

// SplitFilename splits an artifact filename into version id and format tag.
// The version id is everything before the first dot.
func SplitFilename(name string) (versionID, tag string, ok bool) {
	versionID, tag, ok = strings.Cut(name, ".")
	if !ok || versionID == "" || tag == "" {
		return "", "", false
	}
	return versionID, tag, true
}
