package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vampirenirmal/storyforge/internal/phase"
)

// CompleteStructured issues a JSON-mode completion and validates the
// result against schema. On a parse failure or schema mismatch it
// retries once with a reinforced system prompt describing the
// violation, using avast/retry-go/v4 as a distinct retry layer from
// the client's own transport-level backoff. This one is conditional
// on the *content* of the response, not its transport success.
func (c *Client) CompleteStructured(ctx context.Context, req Request, schema *jsonschema.Schema) (json.RawMessage, error) {
	req.JSON = true
	var result json.RawMessage

	err := retry.Do(
		func() error {
			raw, err := c.Complete(ctx, req)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			cleaned := phase.CleanJSONResponse(raw)

			var parsed any
			if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
				req.System = reinforcedPrompt(req.System, fmt.Sprintf("the previous response was not valid JSON: %v", err))
				return fmt.Errorf("invalid json: %w", err)
			}

			if schema != nil {
				if err := schema.Validate(parsed); err != nil {
					req.System = reinforcedPrompt(req.System, fmt.Sprintf("the previous response violated the required schema: %v", err))
					return fmt.Errorf("schema validation failed: %w", err)
				}
			}

			result = json.RawMessage(cleaned)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.LastErrorOnly(true),
	)

	if err != nil {
		c.logger.Warn("llm structured output retry exhausted", "phase", req.Phase, "error", err)
		return nil, fmt.Errorf("llm: bad format after retry: %w", err)
	}
	return result, nil
}

func reinforcedPrompt(system, complaint string) string {
	var b bytes.Buffer
	b.WriteString(strings.TrimSpace(system))
	b.WriteString("\n\nIMPORTANT: ")
	b.WriteString(complaint)
	b.WriteString(" Respond again with ONLY valid JSON matching the required schema, no other text.")
	return b.String()
}

// CompileSchema compiles a JSON-schema document for use with
// CompleteStructured.
func CompileSchema(name string, schemaJSON []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	return compiler.Compile(name)
}
