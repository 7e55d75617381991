// Package format decodes structured documents by file extension.
package format

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupported is returned for extensions with no decoder
var ErrUnsupported = errors.New("unsupported document format")

// Kind is a document encoding
type Kind string

const (
	JSON Kind = "json"
	YAML Kind = "yaml"
	TOML Kind = "toml"
)

// Extensions lists the recognised file extensions without the dot
var Extensions = []string{"json", "yaml", "yml", "toml"}

// KindOf maps a file name to its encoding, ignoring compression suffixes
func KindOf(name string) (Kind, error) {
	base := strings.ToLower(name)
	for _, suffix := range []string{".gz", ".zst"} {
		base = strings.TrimSuffix(base, suffix)
	}

	switch filepath.Ext(base) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

// Decode unmarshals data of the given kind into v
func Decode(kind Kind, data []byte, v interface{}) error {
	switch kind {
	case JSON:
		return sonic.Unmarshal(data, v)
	case YAML:
		return yaml.Unmarshal(data, v)
	case TOML:
		return toml.Unmarshal(data, v)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, kind)
	}
}

// DecodeFile decodes data read from the named file
func DecodeFile(name string, data []byte, v interface{}) error {
	kind, err := KindOf(name)
	if err != nil {
		return err
	}
	if err := Decode(kind, data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(name), err)
	}
	return nil
}
