// SPDX-License-Identifier: MIT

// Package schema validates normalized messages against the embedded
// aviation data model schemas (v1.0). Schemas are loaded once at boot;
// validation afterwards is pure and performs no I/O.
package schema

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/airwaveio/airwave/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrSchemaNotFound is returned when validating against an unknown schema name.
var ErrSchemaNotFound = errors.New("schema not found")

// Result is the outcome of validating one document.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator holds the named schema set.
type Validator struct {
	schemas map[string]*openapi3.Schema
}

// Load parses every embedded schema document. Parse failures are boot-time
// fatal for the caller.
func Load() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	v := &Validator{schemas: make(map[string]*openapi3.Schema, len(entries))}
	ctx := context.Background()
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		s := &openapi3.Schema{}
		if err := s.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry.Name(), err)
		}
		if err := s.Validate(ctx); err != nil {
			return nil, fmt.Errorf("invalid schema %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		v.schemas[name] = s
	}
	return v, nil
}

// Names returns the loaded schema names, for diagnostics.
func (v *Validator) Names() []string {
	out := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		out = append(out, name)
	}
	return out
}

// Validate checks doc against the named schema. Validation errors carry
// JSON-pointer paths into the document.
func (v *Validator) Validate(schemaName string, doc map[string]any) (Result, error) {
	s, ok := v.schemas[schemaName]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, schemaName)
	}

	err := s.VisitJSON(doc, openapi3.MultiErrors())
	if err == nil {
		return Result{Valid: true}, nil
	}

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		res := Result{Errors: make([]string, 0, len(multi))}
		for _, e := range multi {
			res.Errors = append(res.Errors, renderSchemaError(e))
		}
		return res, nil
	}
	return Result{Errors: []string{renderSchemaError(err)}}, nil
}

// ValidateMessage validates a canonical message, picking the schema from
// its source type and category.
func (v *Validator) ValidateMessage(msg *model.Message) (Result, error) {
	doc, err := toDocument(msg)
	if err != nil {
		return Result{}, fmt.Errorf("encode message: %w", err)
	}
	return v.Validate(schemaFor(msg), doc)
}

// schemaFor maps source type and category onto a schema name. The message
// envelope schema is the fallback for categories without a dedicated one.
func schemaFor(msg *model.Message) string {
	switch msg.Category {
	case model.CategoryOOOI:
		return "oooi"
	case model.CategoryPosition:
		return "position"
	case model.CategoryCPDLC:
		return "cpdlc"
	case model.CategoryHFGCS:
		return "hfgcs"
	}
	if msg.Type == model.SourceEAM {
		return "eam"
	}
	return "message"
}

func toDocument(msg *model.Message) (map[string]any, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func renderSchemaError(err error) string {
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		ptr := "/" + strings.Join(se.JSONPointer(), "/")
		return fmt.Sprintf("%s: %s", ptr, se.Reason)
	}
	return err.Error()
}
