// Package scanner walks a directory tree and finds statement files to feed
// the pipeline. Directory names carry optional context: institution and
// account folders become metadata hints alongside content-based detection.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// Scanner walks a directory tree and finds statement files.
type Scanner struct {
	rootDir string
}

// New creates a scanner rooted at the given directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult is one found file with its path-derived metadata.
type ScanResult struct {
	Path     string
	Metadata parser.Metadata
}

// Scan walks the tree and collects all statement files.
func (s *Scanner) Scan() ([]ScanResult, error) {
	var results []ScanResult

	rootDir := s.expandHome(s.rootDir)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !s.isStatementFile(path) {
			return nil
		}

		meta, err := s.extractMetadata(path, rootDir)
		if err != nil {
			return err
		}

		results = append(results, ScanResult{Path: path, Metadata: *meta})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// isStatementFile checks if the file has a known statement extension.
func (s *Scanner) isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".csv", ".ofx", ".qfx":
		return true
	}
	return false
}

// extractMetadata reads institution and account context from the directory
// layout: {root}/{institution}/{account}/{period?}/file.ext. Files outside
// that layout get path-only metadata; content-based detection fills the
// gaps downstream.
func (s *Scanner) extractMetadata(filePath, rootDir string) (*parser.Metadata, error) {
	meta, err := parser.NewMetadata(filePath, time.Now())
	if err != nil {
		return nil, err
	}

	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		return meta, nil
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	if len(parts) >= 2 {
		meta.SetInstitution(s.normalizeInstitutionName(parts[0]))
	}
	// Account folders hold full numbers; only the last four digits are
	// carried forward.
	if len(parts) >= 3 {
		meta.SetAccountNumber(transform.ExtractLast4(parts[1]))
	}
	if len(parts) >= 4 && s.looksLikePeriod(parts[2]) {
		meta.SetPeriod(parts[2])
	}

	return meta, nil
}

// normalizeInstitutionName converts a directory name to a readable name:
// "capital_one" becomes "Capital One".
func (s *Scanner) normalizeInstitutionName(dirName string) string {
	name := strings.ReplaceAll(dirName, "_", " ")

	words := strings.Split(name, " ")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// looksLikePeriod checks for a YYYY-MM shaped directory name.
func (s *Scanner) looksLikePeriod(str string) bool {
	return len(str) >= 7 && str[4] == '-'
}

// expandHome expands a leading ~ to the home directory.
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
