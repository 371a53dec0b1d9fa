package claims

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const claimSetSchemaURL = "https://claimroot.local/schemas/claim-set.schema.json"

const claimSetSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["merkleRoot", "claims"],
  "additionalProperties": false,
  "properties": {
    "merkleRoot": {"type": "string", "pattern": "^0x[0-9a-f]{64}$"},
    "claims": {
      "type": "object",
      "minProperties": 1,
      "propertyNames": {"pattern": "^0x[0-9a-fA-F]{40}$"},
      "additionalProperties": {
        "type": "object",
        "required": ["index", "amount", "proof"],
        "additionalProperties": false,
        "properties": {
          "index": {"type": "integer", "minimum": 0},
          "amount": {"type": "string", "pattern": "^0x([0-9a-f]{2})+$"},
          "proof": {
            "type": "array",
            "items": {"type": "string", "pattern": "^0x[0-9a-f]{64}$"}
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(claimSetSchemaURL, strings.NewReader(claimSetSchema)); err != nil {
			schemaErr = fmt.Errorf("claim set schema load failed: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(claimSetSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("claim set schema compile failed: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateSchema checks the shape of a serialized claim set
func ValidateSchema(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("claim set is not valid JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("claim set is not valid JSON: trailing data")
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("claim set schema validation failed: %w", err)
	}
	return nil
}
