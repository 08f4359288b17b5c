// Package schema validates event payloads against embedded JSON schemas.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

//go:embed schemas/*.json
var files embed.FS

// Validator holds one compiled schema per event type.
type Validator struct {
	schemas map[model.EventType]*jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[model.EventType]*jsonschema.Schema, len(model.EventTypes))}
	for _, t := range model.EventTypes {
		raw, err := files.ReadFile("schemas/" + string(t) + ".json")
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", t, err)
		}
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://cv-keeper.local/schemas/%s.json", t)
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s load: %w", t, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("schema %s compile: %w", t, err)
		}
		v.schemas[t] = compiled
	}
	return v, nil
}

// Validate checks payload against the schema of t.
func (v *Validator) Validate(t model.EventType, payload json.RawMessage) error {
	s, ok := v.schemas[t]
	if !ok {
		return fmt.Errorf("%w: unknown event type %q", errs.ErrValidation, t)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %s payload is not JSON: %v", errs.ErrValidation, t, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s payload: %v", errs.ErrValidation, t, err)
	}
	return nil
}
