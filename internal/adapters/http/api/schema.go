package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas.
const (
	schemaLocationUpdate = "location_update.json"
	schemaTagUpdate      = "tag_update.json"
)

// requestSchemas holds the compiled schemas by file name.
type requestSchemas map[string]*jsonschema.Schema

func compileSchemas() (requestSchemas, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	out := make(requestSchemas)
	for _, name := range []string{schemaLocationUpdate, schemaTagUpdate} {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		url := "mem://schemas/" + name
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		out[name] = compiled
	}
	return out, nil
}

// decode parses body as JSON, validates it against the named schema and
// unmarshals it into dst. The returned document lets callers inspect the
// raw shape first.
func (rs requestSchemas) decode(name string, body []byte, dst any) error {
	doc, err := parseDocument(body)
	if err != nil {
		return err
	}
	if err := rs[name].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidArgument, schemaMessage(err))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func parseDocument(body []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: request body must be valid JSON", ErrBadRequest)
	}
	return doc, nil
}

// schemaMessage reduces a validation error to its first leaf, which names
// the offending field.
func schemaMessage(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	if leaf.InstanceLocation == "" {
		return leaf.Message
	}
	return leaf.InstanceLocation + ": " + leaf.Message
}
