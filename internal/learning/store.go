// Package learning persists user category corrections so later runs
// categorize the same merchants the corrected way. Overrides outrank the
// static rules engine but never an explicit category column in the source.
package learning

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
)

// MatchKind defines how an override's merchant text is matched against
// transaction descriptions.
type MatchKind string

const (
	// MatchExact requires the merchant text to equal the whole description.
	MatchExact MatchKind = "exact"
	// MatchContains requires the merchant text to appear in the description.
	MatchContains MatchKind = "contains"
)

// Override is one persisted category correction. Auto overrides are created
// by the pipeline from repeated corrections and carry an "Auto: " rule name
// prefix; manual ones keep the name the user gave them.
type Override struct {
	RuleName string
	Merchant string
	Kind     MatchKind
	Category domain.Category
	Auto     bool
}

// Store is a SQLite-backed override repository. One store maps to one
// database file; safe for concurrent readers within a process.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the override database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open learning database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping learning database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().Str("db_path", path).Msg("learning store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS category_overrides (
			merchant   TEXT NOT NULL,
			kind       TEXT NOT NULL,
			category   TEXT NOT NULL,
			rule_name  TEXT NOT NULL,
			auto       INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (merchant, kind)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create category_overrides table: %w", err)
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_category_overrides_kind ON category_overrides(kind)
	`)
	if err != nil {
		return fmt.Errorf("failed to create category_overrides index: %w", err)
	}

	return nil
}

// Record persists a correction, replacing any previous override for the same
// merchant and kind. Merchant text is stored lowercased so matching is
// case-insensitive.
func (s *Store) Record(merchant string, kind MatchKind, category domain.Category, auto bool) error {
	merchant = strings.ToLower(strings.TrimSpace(merchant))
	if merchant == "" {
		return fmt.Errorf("merchant cannot be empty")
	}
	if kind != MatchExact && kind != MatchContains {
		return fmt.Errorf("invalid match kind %q (must be 'exact' or 'contains')", kind)
	}
	if !domain.ValidateCategory(category) {
		return fmt.Errorf("invalid category %q", category)
	}

	ruleName := merchant
	if auto {
		ruleName = "Auto: " + merchant
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO category_overrides (merchant, kind, category, rule_name, auto, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, merchant, string(kind), string(category), ruleName, auto)
	if err != nil {
		return fmt.Errorf("failed to record category override: %w", err)
	}

	s.logger.Debug().
		Str("merchant", merchant).
		Str("kind", string(kind)).
		Str("category", string(category)).
		Bool("auto", auto).
		Msg("category override recorded")
	return nil
}

// Lookup finds the override for a description, if any. Exact matches beat
// contains matches; among contains matches the longest merchant text wins so
// more specific overrides shadow broader ones. Returns false when nothing
// matches.
func (s *Store) Lookup(description string) (*Override, bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(description))
	if normalized == "" {
		return nil, false, nil
	}

	ov, err := s.scanOne(`
		SELECT merchant, kind, category, rule_name, auto
		FROM category_overrides
		WHERE kind = 'exact' AND merchant = ?
	`, normalized)
	if err != nil {
		return nil, false, err
	}
	if ov != nil {
		return ov, true, nil
	}

	ov, err = s.scanOne(`
		SELECT merchant, kind, category, rule_name, auto
		FROM category_overrides
		WHERE kind = 'contains' AND instr(?, merchant) > 0
		ORDER BY length(merchant) DESC, merchant
		LIMIT 1
	`, normalized)
	if err != nil {
		return nil, false, err
	}
	if ov != nil {
		return ov, true, nil
	}

	return nil, false, nil
}

func (s *Store) scanOne(query string, args ...any) (*Override, error) {
	var (
		ov   Override
		kind string
		cat  string
	)
	err := s.db.QueryRow(query, args...).Scan(&ov.Merchant, &kind, &cat, &ov.RuleName, &ov.Auto)
	if err == sql.ErrNoRows {
		// Not found is not an error
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category overrides: %w", err)
	}
	ov.Kind = MatchKind(kind)
	ov.Category = domain.Category(cat)
	return &ov, nil
}

// Overrides returns all persisted overrides, most recently updated first.
func (s *Store) Overrides() ([]Override, error) {
	rows, err := s.db.Query(`
		SELECT merchant, kind, category, rule_name, auto
		FROM category_overrides
		ORDER BY updated_at DESC, merchant
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list category overrides: %w", err)
	}
	defer rows.Close()

	var overrides []Override
	for rows.Next() {
		var (
			ov   Override
			kind string
			cat  string
		)
		if err := rows.Scan(&ov.Merchant, &kind, &cat, &ov.RuleName, &ov.Auto); err != nil {
			s.logger.Warn().Err(err).Msg("failed to scan override row")
			continue
		}
		ov.Kind = MatchKind(kind)
		ov.Category = domain.Category(cat)
		overrides = append(overrides, ov)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating override rows: %w", err)
	}

	return overrides, nil
}

// Delete removes the override for a merchant and kind. Deleting a missing
// override is not an error.
func (s *Store) Delete(merchant string, kind MatchKind) error {
	merchant = strings.ToLower(strings.TrimSpace(merchant))
	_, err := s.db.Exec(`
		DELETE FROM category_overrides WHERE merchant = ? AND kind = ?
	`, merchant, string(kind))
	if err != nil {
		return fmt.Errorf("failed to delete category override: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
