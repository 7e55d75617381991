package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPatch is returned when a partial update cannot be decoded
var ErrInvalidPatch = errors.New("invalid service patch")

// ServicePatch is a partial update. Nil fields leave the stored value untouched.
// The id is not patchable.
type ServicePatch struct {
	Name          *string             `json:"name,omitempty"`
	Description   *string             `json:"description,omitempty"`
	ThumbnailURL  *string             `json:"thumbnail_url,omitempty"`
	Parameters    *[]ServiceParameter `json:"parameters,omitempty"`
	ExecutableURL *string             `json:"executable_url,omitempty"`
	PathToModel   *string             `json:"path_to_model,omitempty"`
}

// DecodePatch decodes a JSON object into a patch; a wrongly-typed field is an error
func DecodePatch(data []byte) (ServicePatch, error) {
	var patch ServicePatch

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return patch, fmt.Errorf("%w: body must be a JSON object", ErrInvalidPatch)
	}

	if err := json.Unmarshal(trimmed, &patch); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return patch, fmt.Errorf("%w: field %q must be %s, got %s",
				ErrInvalidPatch, typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return patch, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return patch, nil
}

// Apply merges the patch over a clone of s
func (p ServicePatch) Apply(s Service) Service {
	out := s.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.ThumbnailURL != nil {
		out.ThumbnailURL = *p.ThumbnailURL
	}
	if p.Parameters != nil {
		out.Parameters = make([]ServiceParameter, len(*p.Parameters))
		copy(out.Parameters, *p.Parameters)
	}
	if p.ExecutableURL != nil {
		out.ExecutableURL = *p.ExecutableURL
	}
	if p.PathToModel != nil {
		out.PathToModel = *p.PathToModel
	}
	return out
}
