package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"PropDashboards/internal/domain"
)

// DefaultFormat is the parser used when a category names none.
const DefaultFormat = "weekly-csv"

// ErrMalformedRow is returned when a snapshot row cannot be turned into a record.
var ErrMalformedRow = errors.New("malformed row")

// Request carries the context a parser needs besides the raw bytes.
type Request struct {
	Category domain.Category
	Week     string
	// Source names the input in error messages (usually the file name).
	Source string
}

// Parser turns one snapshot document into firm records.
type Parser interface {
	Name() string
	Parse(ctx context.Context, r io.Reader, req Request) ([]domain.FirmRecord, error)
}

// Registry keeps a mapping from format names to parser implementations.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(parser Parser) {
	if r.parsers == nil {
		r.parsers = map[string]Parser{}
	}
	r.parsers[parser.Name()] = parser
}

// Resolve returns a parser by name or an error if it is absent. An empty
// name resolves DefaultFormat.
func (r *Registry) Resolve(name string) (Parser, error) {
	if name == "" {
		name = DefaultFormat
	}
	if parser, ok := r.parsers[name]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("parser %s is not registered", name)
}
