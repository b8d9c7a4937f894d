// Package pipeline orchestrates statement processing: parser selection,
// extraction, categorization, deduplication, and summary aggregation. One
// file in, one result envelope out; a batch never aborts because a single
// file failed.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/config"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/learning"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/progress"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/registry"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/rules"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/summary"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/transform"
)

// Deps carries the processor's collaborators. Registry, Engine, and Matcher
// are required; Store, State, and Hub are optional features that degrade to
// no-ops when nil.
type Deps struct {
	Registry *registry.Registry
	Engine   *rules.Engine
	Matcher  *dedup.Matcher
	// Store is the learned-override lookup; nil disables it.
	Store *learning.Store
	// State is the cross-run fingerprint state; nil disables cross-run
	// dedup.
	State *dedup.State
	// Hub receives progress events; nil disables them.
	Hub *progress.Hub
	// BankHint forces the institution for every file in the run.
	BankHint domain.Bank
	Logger   zerolog.Logger
	Config   config.Config
}

// Processor runs the full pipeline over statement files.
type Processor struct {
	deps Deps
}

// New creates a processor.
func New(deps Deps) *Processor {
	return &Processor{deps: deps}
}

// Stats aggregates a batch run.
type Stats struct {
	Files             int
	Parsed            int
	Failed            int
	Transactions      int
	DuplicatesDropped int
	CrossRunDropped   int
	RulesMatched      int
	RulesUnmatched    int
	// PerInstitution counts transactions by institution slug.
	PerInstitution map[string]int
}

// fileStats counts what one file's processing dropped.
type fileStats struct {
	withinFileDropped int
	crossRunDropped   int
}

// ProcessFile runs one file through the pipeline. Failures come back as
// error results, never as errors: the caller always gets a well-formed
// envelope to report or write.
func (p *Processor) ProcessFile(ctx context.Context, path, runID string) *domain.Result {
	res, _ := p.process(ctx, path, runID)
	return res
}

func (p *Processor) process(ctx context.Context, path, runID string) (*domain.Result, fileStats) {
	meta := domain.Metadata{
		Bank:         domain.BankUnknown,
		SourcePath:   path,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		DedupEnabled: p.deps.Config.Dedup.Enabled,
		RunID:        runID,
	}

	p.publish(runID, progress.EventTypeFile, progress.FileEvent{Path: path, Status: "processing"})

	var fs fileStats

	sel, err := p.deps.Registry.FindParser(path)
	if err != nil {
		return p.fail(runID, meta, err), fs
	}

	parsed, err := sel.Parse(ctx, path, parser.Options{
		BankHint:          p.deps.BankHint,
		AccuracyThreshold: p.deps.Config.Extraction.AccuracyThreshold,
		AssumedYear:       p.deps.Config.Extraction.AssumedYear,
		Logger:            p.deps.Logger,
	})
	if err != nil {
		return p.fail(runID, meta, fmt.Errorf("%s parser: %w", sel.Name(), err)), fs
	}

	meta.Bank = parsed.Bank
	meta.ExtractionMethod = parsed.Method
	meta.TablesFound = parsed.TablesFound

	txns := parsed.Transactions
	for i := range txns {
		p.categorize(&txns[i])
	}

	if p.deps.Config.Dedup.Enabled {
		kept, dropped := p.deps.Matcher.Collapse(txns)
		if len(dropped) > 0 {
			p.deps.Logger.Debug().
				Int("dropped", len(dropped)).
				Str("file", filepath.Base(path)).
				Msg("within-file duplicates collapsed")
		}
		fs.withinFileDropped = len(dropped)
		txns = kept

		before := len(txns)
		txns = p.dropCrossRun(txns, path)
		fs.crossRunDropped = before - len(txns)
	}

	res := domain.NewResult(meta)
	res.Transactions = txns
	res.Summary = summary.Aggregate(txns)

	p.publish(runID, progress.EventTypeTransactions, progress.TransactionsEvent{Path: path, Count: len(txns)})
	p.publish(runID, progress.EventTypeFile, progress.FileEvent{Path: path, Status: "completed"})
	return res, fs
}

// ProcessFiles runs a batch. Every file produces a result; failed files
// yield error results and the batch continues.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string, runID string) ([]*domain.Result, Stats) {
	stats := Stats{Files: len(paths), PerInstitution: make(map[string]int)}
	results := make([]*domain.Result, 0, len(paths))

	p.publish(runID, progress.EventTypeStage, progress.StageEvent{Stage: "parse", Step: 1, Total: 1})

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			res := domain.NewErrorResult(domain.Metadata{
				Bank:       domain.BankUnknown,
				SourcePath: path,
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
				RunID:      runID,
			}, err)
			results = append(results, res)
			stats.Failed++
			continue
		}

		res, fs := p.process(ctx, path, runID)
		results = append(results, res)

		if !res.Success {
			stats.Failed++
			continue
		}
		stats.Parsed++
		stats.Transactions += len(res.Transactions)
		stats.DuplicatesDropped += fs.withinFileDropped
		stats.CrossRunDropped += fs.crossRunDropped

		slug, err := transform.SlugifyInstitution(string(res.Metadata.Bank))
		if err != nil {
			slug = string(domain.BankUnknown)
		}
		stats.PerInstitution[slug] += len(res.Transactions)

		for _, txn := range res.Transactions {
			if txn.Category == domain.CategoryOther {
				stats.RulesUnmatched++
			} else {
				stats.RulesMatched++
			}
		}
	}

	p.publish(runID, progress.EventTypeComplete, stats)
	return results, stats
}

// categorize resolves a transaction's category by precedence: a category
// the source file itself carried, then a learned override, then the rules
// engine. Anything else stays Other.
func (p *Processor) categorize(txn *domain.Transaction) {
	if txn.Category != domain.CategoryOther && txn.Category != "" {
		return
	}

	if p.deps.Store != nil {
		if override, ok, err := p.deps.Store.Lookup(txn.Description); err == nil && ok {
			txn.Category = override.Category
			return
		} else if err != nil {
			p.deps.Logger.Warn().Err(err).Msg("learning store lookup failed")
		}
	}

	if match, ok := p.deps.Engine.Match(txn.Description); ok {
		txn.Category = match.Category
		return
	}

	txn.Category = domain.CategoryOther
}

// dropCrossRun filters transactions whose fingerprints were recorded by an
// earlier run, and records the survivors.
func (p *Processor) dropCrossRun(txns []domain.Transaction, source string) []domain.Transaction {
	if p.deps.State == nil {
		return txns
	}

	kept := txns[:0]
	now := time.Now()
	for _, txn := range txns {
		fp := dedup.GenerateFingerprint(txn.Date, txn.Amount, txn.Description)
		if p.deps.State.IsDuplicate(fp) {
			p.deps.Logger.Debug().
				Str("date", txn.Date).
				Float64("amount", txn.Amount).
				Msg("cross-run duplicate dropped")
			continue
		}
		if err := p.deps.State.RecordTransaction(fp, source, now); err != nil {
			p.deps.Logger.Warn().Err(err).Msg("failed to record fingerprint")
		}
		kept = append(kept, txn)
	}
	return kept
}

func (p *Processor) fail(runID string, meta domain.Metadata, err error) *domain.Result {
	p.deps.Logger.Error().Err(err).Str("file", meta.SourcePath).Msg("processing failed")
	p.publish(runID, progress.EventTypeFile, progress.FileEvent{
		Path: meta.SourcePath, Status: "error", Error: err.Error(),
	})
	return domain.NewErrorResult(meta, err)
}

func (p *Processor) publish(runID string, eventType progress.EventType, data interface{}) {
	if p.deps.Hub == nil || runID == "" {
		return
	}
	p.deps.Hub.Publish(runID, eventType, data)
}
