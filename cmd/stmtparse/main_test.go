package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/summary"
)

func TestBuildConfigFlagOverrides(t *testing.T) {
	cfg, err := buildConfig(flags{
		dedupEnabled:   true,
		dedupTolerance: 0.05,
		logLevel:       "warn",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Dedup.Enabled)
	assert.Equal(t, 0.05, cfg.Dedup.Tolerance)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg, err := buildConfig(flags{})
	require.NoError(t, err)

	assert.False(t, cfg.Dedup.Enabled)
	assert.Equal(t, 0.01, cfg.Dedup.Tolerance)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestBuildConfigVerboseForcesDebug(t *testing.T) {
	cfg, err := buildConfig(flags{verbose: true, logLevel: "error"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestBuildConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ndedup:\n  enabled: true\n"), 0o644))

	cfg, err := buildConfig(flags{configFile: path})
	require.NoError(t, err)
	assert.True(t, cfg.Dedup.Enabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseBankFlag(t *testing.T) {
	bank, err := parseBankFlag("")
	require.NoError(t, err)
	assert.Empty(t, bank)

	bank, err = parseBankFlag("Chase")
	require.NoError(t, err)
	assert.Equal(t, domain.BankChase, bank)

	_, err = parseBankFlag("not-a-bank")
	assert.Error(t, err)
}

func TestLoadOrCreateState(t *testing.T) {
	log := logger.Nop()

	t.Run("no path disables state", func(t *testing.T) {
		state, err := loadOrCreateState("", log)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("missing file starts fresh", func(t *testing.T) {
		state, err := loadOrCreateState(filepath.Join(t.TempDir(), "state.json"), log)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, 0, state.TotalFingerprints())
	})

	t.Run("existing state round-trips", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		state := dedup.NewState()
		fp := dedup.GenerateFingerprint("2025-04-16", -26.03, "UBER EATS")
		require.NoError(t, state.RecordTransaction(fp, "statement.pdf", time.Now()))
		require.NoError(t, dedup.SaveState(state, path))

		loaded, err := loadOrCreateState(path, log)
		require.NoError(t, err)
		assert.Equal(t, 1, loaded.TotalFingerprints())
		assert.True(t, loaded.IsDuplicate(fp))
	})

	t.Run("corrupt file is fatal", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

		_, err := loadOrCreateState(path, log)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deduplication history")
	})
}

func TestLoadRulesEmbedded(t *testing.T) {
	engine, err := loadRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, engine.GetRules())
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := loadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCombineResults(t *testing.T) {
	good := domain.NewResult(domain.Metadata{Bank: domain.BankChase})
	txn, err := domain.NewTransaction("2025-04-16", "COFFEE SHOP", -4.50, domain.BankChase, domain.MethodCSV)
	require.NoError(t, err)
	good.Transactions = []domain.Transaction{*txn}
	good.Summary = summary.Aggregate(good.Transactions)

	bad := domain.NewErrorResult(domain.Metadata{Bank: domain.BankUnknown}, os.ErrNotExist)

	combined, failed := combineResults([]*domain.Result{good, bad})
	assert.Equal(t, 1, failed)
	assert.True(t, combined.Success)
	require.Len(t, combined.Transactions, 1)
	assert.Equal(t, 1, combined.Summary.TransactionCount)
}

func TestCombineResultsSingleFailure(t *testing.T) {
	bad := domain.NewErrorResult(domain.Metadata{Bank: domain.BankUnknown}, os.ErrNotExist)
	combined, failed := combineResults([]*domain.Result{bad})
	assert.Equal(t, 1, failed)
	assert.False(t, combined.Success)
	assert.NotEmpty(t, combined.Error)
}
