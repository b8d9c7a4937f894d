// Package dedup collapses duplicate transactions two ways: a fuzzy matcher
// for duplicates within a single document (see Matcher) and SHA256
// fingerprint state persisted across runs.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State represents the cross-run deduplication state with fingerprint history.
// Access the fingerprint set through IsDuplicate, RecordTransaction, and
// TotalFingerprints; the map itself is unexported to keep records validated.
type State struct {
	Version      int
	fingerprints map[string]*FingerprintRecord
	Metadata     StateMetadata
}

// FingerprintRecord tracks a transaction fingerprint across multiple observations.
type FingerprintRecord struct {
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Count     int       `json:"count"`
	Source    string    `json:"source"`
}

// StateMetadata contains aggregate statistics about the state.
type StateMetadata struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalFingerprints int       `json:"totalFingerprints"`
}

const (
	// CurrentVersion is the current state file format version
	CurrentVersion = 1
)

// NewState creates an empty deduplication state with version 1.
func NewState() *State {
	return &State{
		Version:      CurrentVersion,
		fingerprints: make(map[string]*FingerprintRecord),
		Metadata: StateMetadata{
			LastUpdated:       time.Now(),
			TotalFingerprints: 0,
		},
	}
}

// NewFingerprintRecord creates a validated record for a first observation.
// Source names the statement file the transaction came from.
func NewFingerprintRecord(source string, timestamp time.Time) (*FingerprintRecord, error) {
	if source == "" {
		return nil, fmt.Errorf("source cannot be empty")
	}
	if timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp cannot be zero")
	}
	return &FingerprintRecord{
		FirstSeen: timestamp,
		LastSeen:  timestamp,
		Count:     1,
		Source:    source,
	}, nil
}

// Update registers a repeat observation. Equal timestamps are allowed
// (idempotent re-parse); timestamps before FirstSeen indicate clock problems
// or state corruption and are rejected.
func (r *FingerprintRecord) Update(timestamp time.Time) error {
	if timestamp.Before(r.FirstSeen) {
		return fmt.Errorf("timestamp %v is before first seen %v", timestamp, r.FirstSeen)
	}
	r.LastSeen = timestamp
	r.Count++
	return nil
}

// GenerateFingerprint creates a SHA256 hash of date, amount, and description.
// Format: SHA256("{date}|{amount}|{normalizedDescription}")
// Amount is formatted with 2 decimal places for consistency.
// Description is normalized: lowercase and trimmed.
func GenerateFingerprint(date string, amount float64, description string) string {
	// Normalize description
	normalizedDesc := strings.ToLower(strings.TrimSpace(description))

	// Format amount with 2 decimal places
	formattedAmount := fmt.Sprintf("%.2f", amount)

	// Create fingerprint input
	input := fmt.Sprintf("%s|%s|%s", date, formattedAmount, normalizedDesc)

	// Hash with SHA256
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// LoadState loads a state file from disk.
// Returns os.IsNotExist error if file doesn't exist (caller should handle).
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err // Preserve os.IsNotExist for caller
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	// Validate version
	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state file version %d (current version: %d)", state.Version, CurrentVersion)
	}

	// Ensure fingerprints map is initialized
	if state.fingerprints == nil {
		state.fingerprints = make(map[string]*FingerprintRecord)
	}

	return &state, nil
}

// SaveState atomically writes the state to disk.
// Uses atomic write pattern: write to temp file, then rename.
// Ensures parent directory exists.
func SaveState(state *State, filePath string) error {
	// Ensure directory exists
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Update metadata
	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalFingerprints = len(state.fingerprints)

	// Marshal to JSON with indentation for readability
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Atomic write pattern: write to temp file, then rename
	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		// Clean up temp file on error
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Validate checks state integrity after loading. A state that fails
// validation must not be used for parsing; proceeding would corrupt the
// deduplication history further.
func (s *State) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported version %d (current version: %d)", s.Version, CurrentVersion)
	}
	if s.fingerprints == nil {
		return fmt.Errorf("fingerprint map is missing")
	}
	for fp, record := range s.fingerprints {
		if fp == "" {
			return fmt.Errorf("empty fingerprint key")
		}
		if record == nil {
			return fmt.Errorf("fingerprint %s has no record", fp)
		}
		if record.Source == "" {
			return fmt.Errorf("fingerprint %s has empty source", fp)
		}
		if record.Count < 1 {
			return fmt.Errorf("fingerprint %s has count %d", fp, record.Count)
		}
		if record.FirstSeen.IsZero() || record.LastSeen.IsZero() {
			return fmt.Errorf("fingerprint %s has zero timestamps", fp)
		}
		if record.LastSeen.Before(record.FirstSeen) {
			return fmt.Errorf("fingerprint %s last seen %v before first seen %v",
				fp, record.LastSeen, record.FirstSeen)
		}
	}
	return nil
}

// IsDuplicate checks if a fingerprint exists in the state.
func (s *State) IsDuplicate(fingerprint string) bool {
	_, exists := s.fingerprints[fingerprint]
	return exists
}

// TotalFingerprints returns the number of distinct fingerprints tracked.
func (s *State) TotalFingerprints() int {
	return len(s.fingerprints)
}

// RecordTransaction records a transaction fingerprint in the state.
// Source names the statement file the transaction came from.
// If new: creates record with firstSeen=timestamp, count=1.
// If exists: updates lastSeen=timestamp, increments count; the original
// source is kept.
func (s *State) RecordTransaction(fingerprint, source string, timestamp time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}
	if source == "" {
		return fmt.Errorf("source cannot be empty")
	}

	if record, exists := s.fingerprints[fingerprint]; exists {
		return record.Update(timestamp)
	}

	record, err := NewFingerprintRecord(source, timestamp)
	if err != nil {
		return err
	}
	s.fingerprints[fingerprint] = record
	return nil
}

// MarshalJSON implements custom JSON marshaling for State
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Version      int                           `json:"version"`
		Fingerprints map[string]*FingerprintRecord `json:"fingerprints"`
		Metadata     StateMetadata                 `json:"metadata"`
	}{
		Version:      s.Version,
		Fingerprints: s.fingerprints,
		Metadata:     s.Metadata,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for State
func (s *State) UnmarshalJSON(data []byte) error {
	aux := &struct {
		Version      int                           `json:"version"`
		Fingerprints map[string]*FingerprintRecord `json:"fingerprints"`
		Metadata     StateMetadata                 `json:"metadata"`
	}{}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	s.Version = aux.Version
	s.fingerprints = aux.Fingerprints
	s.Metadata = aux.Metadata
	return nil
}
