// Package id provides identifier generation for the backend.
//
// Two families of identifiers are produced here:
//   - Request and span IDs: prefixed ULIDs, sortable and readable in logs
//   - Service IDs: short random alphanumeric strings drawn from [A-Za-z0-9]
//
// Both generators take an injectable entropy source so tests can make draws
// deterministic (and force collisions).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an API request or a trace span
type RequestID string

func (id RequestID) String() string { return string(id) }

const (
	RequestPrefix = "req"
	SpanPrefix    = "span"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a ULID generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() RequestID {
	return RequestID(Default().GenerateWithPrefix(SpanPrefix))
}

// IsValid checks if a string is a valid ULID
func IsValid(s string) bool {
	_, err := ulid.Parse(s)
	return err == nil
}

// ============================================================================
// Alphanumeric Generator (service IDs)
// ============================================================================

// Alphabet is the character set service IDs are drawn from
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ServiceIDLength is the length of a generated service ID
const ServiceIDLength = 6

// largest multiple of len(Alphabet) that fits in a byte; bytes above it are
// rejected so every character is equally likely
const alnumCutoff = 256 - 256%len(Alphabet)

// AlnumGenerator draws fixed-length random strings from Alphabet
type AlnumGenerator struct {
	entropy io.Reader
	length  int
	mu      sync.Mutex
}

// NewAlnumGenerator creates a service ID generator backed by crypto/rand
func NewAlnumGenerator() *AlnumGenerator {
	return NewAlnumGeneratorWithEntropy(rand.Reader)
}

// NewAlnumGeneratorWithEntropy creates a generator reading from entropy
func NewAlnumGeneratorWithEntropy(entropy io.Reader) *AlnumGenerator {
	return &AlnumGenerator{entropy: entropy, length: ServiceIDLength}
}

// Draw returns one random string
func (g *AlnumGenerator) Draw() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]byte, 0, g.length)
	buf := make([]byte, g.length)
	for len(out) < g.length {
		if _, err := io.ReadFull(g.entropy, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= alnumCutoff {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == g.length {
				break
			}
		}
	}
	return string(out), nil
}
