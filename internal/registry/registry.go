package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/detect"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parsers/ofx"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parsers/pdf"
)

// headerPeekSize is how much of the file is read for format detection.
// 512 bytes covers magic numbers and the leading header lines of every
// supported format.
const headerPeekSize = 512

// Registry holds all registered parsers.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with the built-in parsers. Order matters: OFX is
// checked before CSV since its header test is the most specific.
func New(detector *detect.Detector) *Registry {
	return &Registry{
		parsers: []parser.Parser{
			ofx.New(detector),
			pdf.New(detector),
			csv.New(detector),
		},
	}
}

// Register adds a custom parser.
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser returns the first parser claiming this file, probing each with
// the file's leading bytes.
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, headerPeekSize)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is fine: small statement files are shorter than the peek size and
	// parsers handle variable header lengths.
	header = header[:n]

	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser found for file: %s", path)
}

// ListParsers returns the registered parser names.
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
