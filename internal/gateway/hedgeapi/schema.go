package hedgeapi

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const responseSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "error": {
      "type": "object",
      "properties": {"message": {"type": "string"}, "code": {}}
    },
    "data": {
      "type": "object",
      "properties": {
        "hedge_positions": {
          "type": "object",
          "additionalProperties": {
            "type": "object",
            "required": ["amount", "value_usd", "price"],
            "properties": {
              "amount":    {"type": ["number", "string"]},
              "value_usd": {"type": ["number", "string"]},
              "price":     {"type": ["number", "string"]},
              "weight":    {"type": ["number", "string"]}
            }
          }
        }
      }
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("hedge_response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("hedge_response.json")
}
