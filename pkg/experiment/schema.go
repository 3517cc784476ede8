package experiment

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// GenerateStateSchema produces a JSON Schema Draft 2020-12 document for the
// persisted Experiment record.
func GenerateStateSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Experiment{})
	s.ID = "https://github.com/jive-vlbi/evnpp/schemas/experiment-v1.json"
	s.Title = "EVN post-processing experiment state v1"
	s.Description = "Schema for persisted experiment metadata documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// ValidateState checks a raw state document against the generated schema.
// It catches hand-edited or truncated files before they are decoded into an
// Experiment with silently zeroed fields.
func ValidateState(data []byte) error {
	schemaJSON, err := GenerateStateSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("experiment-v1.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("experiment-v1.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("state is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("state does not match schema: %w", err)
	}
	return nil
}
