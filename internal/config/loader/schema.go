package loader

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const invoiceFileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["invoices"],
  "properties": {
    "invoices": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["amount"],
        "properties": {
          "id": {"type": "string"},
          "recipient_id": {"type": "integer"},
          "recipient_type": {"type": "string"},
          "min_price": {"type": ["number", "string"]},
          "max_price": {"type": ["number", "string"]},
          "amount": {"type": "integer", "minimum": 0},
          "max_supply": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

func compileInvoiceSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoices.json", strings.NewReader(invoiceFileSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("invoices.json")
}

// validateDocument checks a decoded YAML document against the schema. The
// document goes through a JSON round trip so the validator sees JSON types.
func validateDocument(schema *jsonschema.Schema, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("invoice file is not representable as json: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	return schema.Validate(generic)
}
