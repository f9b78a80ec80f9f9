package update

import (
	"bytes"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const releaseSchemaURL = "https://carelite.invalid/release.schema.json"

// releaseSchema accepts GitHub's "latest release" document. Only the fields the
// updater relies on are constrained; everything else passes through.
const releaseSchema = `{
  "type": "object",
  "required": ["tag_name"],
  "properties": {
    "tag_name": {"type": "string", "minLength": 1},
    "body": {"type": ["string", "null"]},
    "assets": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["name", "browser_download_url"],
        "properties": {
          "name": {"type": "string"},
          "browser_download_url": {"type": "string"},
          "size": {"type": "integer"}
        }
      }
    }
  }
}`

var compiledReleaseSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(releaseSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(releaseSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(releaseSchemaURL)
})

// validateRelease checks a raw release document against the schema.
func validateRelease(body []byte) error {
	schema, err := compiledReleaseSchema()
	if err != nil {
		return parseError("compile release schema", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return parseError("decode release document", err)
	}
	if err := schema.Validate(inst); err != nil {
		return parseError("release document rejected", err)
	}
	return nil
}
