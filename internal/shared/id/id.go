// Package id provides centralized ID generation for the backend.
//
// Identifiers are ULIDs with a short type prefix:
//   - Lexicographic sortability: session ids sort in creation order
//   - Prefixed types: term_* for terminal sessions, req_* for HTTP requests
//   - Type safety: separate types prevent ID misuse
//
// Session ids are never reused: the generator draws from monotonic entropy,
// so two ids created in the same millisecond still compare in creation order.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session.
type SessionID string

// RequestID identifies an HTTP request.
type RequestID string

const (
	SessionPrefix = "term"
	RequestPrefix = "req"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// increments inside the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string.
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new terminal session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewRequestID generates a new request ID.
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id SessionID) String() string { return string(id) }
func (id RequestID) String() string { return string(id) }

// Split separates a prefixed id into its prefix and ULID parts.
func Split(prefixed string) (prefix string, raw ulid.ULID, err error) {
	prefix, rest, ok := strings.Cut(prefixed, "_")
	if !ok {
		return "", ulid.ULID{}, fmt.Errorf("id %q has no prefix", prefixed)
	}
	raw, err = ulid.Parse(rest)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("id %q: %w", prefixed, err)
	}
	return prefix, raw, nil
}

// ParseSessionID accepts only well-formed term_<ULID> ids.
func ParseSessionID(s string) (SessionID, error) {
	prefix, _, err := Split(s)
	if err != nil {
		return "", err
	}
	if prefix != SessionPrefix {
		return "", fmt.Errorf("id %q is not a session id", s)
	}
	return SessionID(s), nil
}
