package interpretations

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed payload.schema.json
var payloadSchema []byte

var compilePayloadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.schema.json", bytes.NewReader(payloadSchema)); err != nil {
		return nil, fmt.Errorf("add payload schema: %w", err)
	}
	return compiler.Compile("payload.schema.json")
})

// EncodePayload validates p and returns its stored JSON form.
func EncodePayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	if err := validatePayload(data); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodePayload validates stored JSON and decodes it strictly. Anything that
// does not match the payload schema is rejected.
func DecodePayload(data []byte) (Payload, error) {
	if err := validatePayload(data); err != nil {
		return Payload{}, err
	}

	var p Payload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return p, nil
}

func validatePayload(data []byte) error {
	sch, err := compilePayloadSchema()
	if err != nil {
		return fmt.Errorf("compile payload schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
