package reply

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/doeshing/replybot/assets"
	"github.com/doeshing/replybot/internal/domain"
)

const resultSchemaURL = "https://replybot.local/schemas/result.schema.json"

var resultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(resultSchemaURL, bytes.NewReader(assets.ResultSchemaJSON)); err != nil {
		return nil, fmt.Errorf("result schema load failed: %w", err)
	}
	return c.Compile(resultSchemaURL)
})

// checkResultShape rejects guest output that is not a result object before it is decoded.
func checkResultShape(raw string) error {
	schema, err := resultSchema()
	if err != nil {
		return err
	}
	var doc interface{}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return domain.NewExecutionFailed("bot result is not valid JSON", err.Error(), "")
	}
	if err := schema.Validate(doc); err != nil {
		return domain.NewExecutionFailed("bot result does not match the result schema", err.Error(), "")
	}
	return nil
}
