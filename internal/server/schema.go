package server

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// startJobSchema validates POST /jobs payloads before any of the values
// reach the controller.
const startJobSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["files", "output_dir"],
  "additionalProperties": false,
  "properties": {
    "files": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "output_dir": {"type": "string", "minLength": 1}
  }
}`

func compileStartJobSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("start_job.json", strings.NewReader(startJobSchema)); err != nil {
		panic(fmt.Sprintf("add start job schema: %v", err))
	}
	return c.MustCompile("start_job.json")
}
