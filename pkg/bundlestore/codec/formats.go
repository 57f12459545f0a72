package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// JSON is the columnar JSON document format.
type JSON struct{}

// Name implements Format.
func (JSON) Name() string { return "json" }

// Marshal implements Format.
func (JSON) Marshal(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	if err := json.NewEncoder(bw).Encode(doc); err != nil {
		return err
	}
	return bw.Flush()
}

// Unmarshal implements Format. Numbers are decoded as json.Number so int64
// columns keep full precision.
func (JSON) Unmarshal(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// YAML is the YAML document format, readable without tooling.
type YAML struct{}

// Name implements Format.
func (YAML) Name() string { return "yaml" }

// Marshal implements Format.
func (YAML) Marshal(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Unmarshal implements Format.
func (YAML) Unmarshal(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty document: %w", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return &doc, nil
}
