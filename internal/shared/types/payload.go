package types

import (
	"bytes"
	"fmt"

	"github.com/bytedance/sonic"
)

// Feature is one named input value
type Feature struct {
	Name  string
	Value interface{}
}

// Payload is an ordered feature mapping. It encodes as a JSON object whose
// keys keep their slice order.
type Payload []Feature

// Names returns feature names in order
func (p Payload) Names() []string {
	names := make([]string, len(p))
	for i, f := range p {
		names[i] = f.Name
	}
	return names
}

// MarshalJSON writes the features as an object in order
func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := sonic.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := sonic.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ServiceOutput is the normalized result of a dispatch.
// A non-empty Errors list is authoritative failure.
type ServiceOutput struct {
	InputPayload Payload                `json:"input_payload"`
	Output       map[string]interface{} `json:"output"`
	Errors       []string               `json:"errors"`

	// Cause is the backend failure behind Errors, kept for status mapping
	Cause error `json:"-"`
}

// Succeeded reports whether the dispatch produced output without errors
func (o ServiceOutput) Succeeded() bool {
	return len(o.Errors) == 0
}

// NewServiceOutput creates a successful output
func NewServiceOutput(input Payload, output map[string]interface{}) ServiceOutput {
	if input == nil {
		input = Payload{}
	}
	if output == nil {
		output = map[string]interface{}{}
	}
	return ServiceOutput{
		InputPayload: input,
		Output:       output,
		Errors:       []string{},
	}
}

// FailedServiceOutput creates a failed output carrying one error
func FailedServiceOutput(input Payload, cause error) ServiceOutput {
	if input == nil {
		input = Payload{}
	}
	return ServiceOutput{
		InputPayload: input,
		Output:       map[string]interface{}{},
		Errors:       []string{cause.Error()},
		Cause:        cause,
	}
}
