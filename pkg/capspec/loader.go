package capspec

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const logPrefix = "capspec:loader"

//go:embed default_spec.json
var defaultSpecJSON []byte

// documentSchema constrains the persisted form before it is decoded.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "object",
    "additionalProperties": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["order"],
        "properties": {
          "name": {"type": "string"},
          "order": {"type": "integer", "minimum": 0},
          "optional": {"type": "boolean"},
          "type": {"type": "string"}
        }
      }
    }
  }
}`

// Default returns the embedded capability spec. It panics if the embedded file is broken,
// which can only happen at build time.
func Default() *Spec {
	s, err := Parse(defaultSpecJSON)
	if err != nil {
		panic(fmt.Sprintf("%s - embedded spec is invalid: %v", logPrefix, err))
	}
	return s
}

// Load reads a capability spec from path. Files ending in .yaml or .yml are decoded as YAML,
// anything else as JSON.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read %s: %w", logPrefix, path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to parse %s: %w", logPrefix, path, err)
		}
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, path, err)
	}
	slog.Info(fmt.Sprintf("%s - Loaded capability spec from %s (%d types)", logPrefix, path, len(s.types)))
	return s, nil
}

// LoadOrDefault tries, in order: the given paths, CAPABILITY_SPEC_FILE, config/capabilities.json
// and capabilities.json. Missing files are skipped; a file that exists but is malformed is an
// error. With nothing found it returns the embedded default.
func LoadOrDefault(paths ...string) (*Spec, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("CAPABILITY_SPEC_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, filepath.Join("config", "capabilities.json"), "capabilities.json")

	for _, p := range all {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%s - failed to stat %s: %w", logPrefix, p, err)
		}
		return Load(p)
	}

	slog.Info(fmt.Sprintf("%s - Using embedded capability spec", logPrefix))
	return Parse(defaultSpecJSON)
}

// Parse validates and decodes a JSON document in the persisted form.
func Parse(data []byte) (*Spec, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return New(doc)
}

// Validate checks a JSON document against the persisted-form schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("malformed capability spec: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("malformed capability spec: %s", strings.Join(details, "; "))
	}
	return nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
