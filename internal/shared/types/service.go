package types

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidService is returned when a service definition fails schema validation
var ErrInvalidService = errors.New("invalid service definition")

// ServiceParameter declares one positional input slot of a service
type ServiceParameter struct {
	Name        string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Description string `json:"description" yaml:"description" toml:"description"`
	DataType    string `json:"data_type" yaml:"data_type" toml:"data_type"`
}

// Service is a registered predictive capability.
// Parameter order is load-bearing: backends receive values in declared order.
type Service struct {
	ID            string             `json:"id" yaml:"id" toml:"id"`
	Name          string             `json:"name" yaml:"name" toml:"name"`
	Description   string             `json:"description" yaml:"description" toml:"description"`
	ThumbnailURL  string             `json:"thumbnail_url" yaml:"thumbnail_url" toml:"thumbnail_url"`
	Parameters    []ServiceParameter `json:"parameters" yaml:"parameters" toml:"parameters" validate:"dive"`
	ExecutableURL string             `json:"executable_url" yaml:"executable_url" toml:"executable_url"`
	PathToModel   string             `json:"path_to_model" yaml:"path_to_model" toml:"path_to_model"`
}

// Backend is the execution target a service declares
type Backend interface {
	backend()
}

// LocalArtifact runs a model artifact from local storage
type LocalArtifact struct {
	Path string
}

// RemoteEndpoint proxies the call to another instance over HTTP
type RemoteEndpoint struct {
	URL string
}

func (LocalArtifact) backend()  {}
func (RemoteEndpoint) backend() {}

// Backend returns the declared execution backend, or nil when none is set.
// executable_url takes precedence for stored definitions that carry both.
func (s Service) Backend() Backend {
	switch {
	case s.ExecutableURL != "":
		return RemoteEndpoint{URL: s.ExecutableURL}
	case s.PathToModel != "":
		return LocalArtifact{Path: s.PathToModel}
	default:
		return nil
	}
}

// FeatureNames returns the declared parameter names in order
func (s Service) FeatureNames() []string {
	names := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		names[i] = p.Name
	}
	return names
}

// Clone returns a deep copy
func (s Service) Clone() Service {
	out := s
	if s.Parameters != nil {
		out.Parameters = make([]ServiceParameter, len(s.Parameters))
		copy(out.Parameters, s.Parameters)
	}
	return out
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func schema() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ErrBothBackends rejects new definitions declaring two backends
var ErrBothBackends = fmt.Errorf("%w: executable_url and path_to_model are mutually exclusive", ErrInvalidService)

// Validate checks a new or updated definition: the schema plus at most one backend
func (s Service) Validate() error {
	if err := s.ValidateSchema(); err != nil {
		return err
	}
	if s.ExecutableURL != "" && s.PathToModel != "" {
		return ErrBothBackends
	}
	return nil
}

// ValidateSchema checks field shapes only. Stored definitions that carry both
// backends pass and resolve to the remote endpoint.
func (s Service) ValidateSchema() error {
	if err := schema().Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidService, describeFieldError(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalidService, err)
	}

	seen := make(map[string]struct{}, len(s.Parameters))
	for _, p := range s.Parameters {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidService, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag())
	}
}
