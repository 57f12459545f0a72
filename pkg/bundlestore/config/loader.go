package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat indicates a settings source that is neither YAML nor
// JSON.
var ErrUnsupportedFormat = errors.New("unsupported settings format")

// FromFile loads a settings file, choosing the parser from its extension
// (.yaml, .yml or .json, any case). Errors name the file.
func FromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("read settings: %w", err)
	}
	defer f.Close()

	c, err := FromReader(f, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return c, nil
}

// FromReader parses r in the given format: "yaml", "yml" or "json", with or
// without a leading dot.
func FromReader(r io.Reader, format string) (Config, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	var parse func([]byte) (Config, error)
	switch format {
	case "yaml", "yml":
		parse = FromYAML
	case "json":
		parse = FromJSON
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", format, err)
	}
	return parse(data)
}

// FromYAML parses YAML data into a Config. An empty document yields an
// empty Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses a JSON object into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}
