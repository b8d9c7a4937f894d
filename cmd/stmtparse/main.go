package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/stmtparse/internal/config"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/detect"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/learning"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/output"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/pipeline"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/progress"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/registry"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/rules"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/scanner"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/summary"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/ui"
	"github.com/rumor-ml/commons.systems/stmtparse/internal/validate"
)

const version = "0.1.0"

// flags groups the parsed command line. Config-file values sit underneath;
// explicit flags override them.
type flags struct {
	input   string
	dryRun  bool
	verbose bool

	outputFile string
	mergeMode  bool
	csvFile    string
	summaryCSV string
	xlsxFile   string

	stateFile string
	rulesFile string
	learnDB   string
	bank      string

	dedupEnabled   bool
	dedupTolerance float64
	configFile     string
	logLevel       string
}

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Show version")

		inputDir = flag.String("input", "", "Input directory containing statements (required)")
		dryRun   = flag.Bool("dry-run", false, "Show what would be parsed without writing")
		verbose  = flag.Bool("verbose", false, "Show detailed parsing logs")

		outputFile = flag.String("output", "", "Output JSON file (default: stdout)")
		mergeMode  = flag.Bool("merge", false, "Merge with existing output file")
		csvFile    = flag.String("csv", "", "Also write transactions as CSV to this file")
		summaryCSV = flag.String("summary-csv", "", "Also write the summary as CSV to this file")
		xlsxFile   = flag.String("xlsx", "", "Also write an Excel workbook to this file")

		stateFile = flag.String("state", "", "Cross-run deduplication state file")
		rulesFile = flag.String("rules", "", "Category rules YAML file (default: embedded rules)")
		learnDB   = flag.String("learn-db", "", "Learned category override database")
		bankFlag  = flag.String("bank", "", "Force the institution for all files (e.g. chase, capital_one)")

		dedupFlag      = flag.Bool("dedup", false, "Enable within-file duplicate collapsing")
		dedupTolerance = flag.Float64("dedup-tolerance", 0, "Amount tolerance for duplicate matching (0 keeps the configured value)")
		configFile     = flag.String("config", "", "Configuration YAML file")
		logLevel       = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
	)

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `stmtparse - Bank statement extraction and normalization

Usage:
  stmtparse [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Parse all statements to stdout
  stmtparse -input ~/statements

  # Parse to file with cross-run state tracking
  stmtparse -input ~/statements -output results.json -state state.json

  # Dry run with verbose output
  stmtparse -input ~/statements -dry-run -verbose

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("stmtparse version %s\n", version)
		os.Exit(0)
	}

	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	f := flags{
		input:          *inputDir,
		dryRun:         *dryRun,
		verbose:        *verbose,
		outputFile:     *outputFile,
		mergeMode:      *mergeMode,
		csvFile:        *csvFile,
		summaryCSV:     *summaryCSV,
		xlsxFile:       *xlsxFile,
		stateFile:      *stateFile,
		rulesFile:      *rulesFile,
		learnDB:        *learnDB,
		bank:           *bankFlag,
		dedupEnabled:   *dedupFlag,
		dedupTolerance: *dedupTolerance,
		configFile:     *configFile,
		logLevel:       *logLevel,
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := buildConfig(f)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)

	bankHint, err := parseBankFlag(f.bank)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if !f.verbose {
		ui.Header("Parsing Bank Statements")
		ui.Step(1, 4, "Scanning directory")
	}

	s := scanner.New(f.input)
	files, err := s.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan directory %s: %w", f.input, err)
	}

	if f.verbose {
		log.Info().Int("files", len(files)).Str("dir", f.input).Msg("scan complete")
		for _, file := range files {
			log.Debug().
				Str("path", file.Path).
				Str("institution", file.Metadata.Institution()).
				Str("account", file.Metadata.AccountNumber()).
				Msg("found statement file")
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(files)))
	}

	if f.dryRun {
		fmt.Printf("Dry run complete. Would process %d files.\n", len(files))
		for _, file := range files {
			fmt.Printf("  - %s\n", file.Path)
		}
		return nil
	}

	// Empty scans fail loudly so scripted runs cannot silently produce
	// nothing.
	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s\n\nPlease check:\n  - Directory path is correct\n  - Files have supported extensions (.pdf, .csv, .ofx, .qfx)\n  - You have read permissions on the directory and files\n\nRun with -verbose to see file discovery details", f.input)
	}

	if !f.verbose {
		ui.Step(2, 4, "Loading deduplication state")
	}
	state, err := loadOrCreateState(f.stateFile, log)
	if err != nil {
		return err
	}
	if state != nil {
		log.Info().
			Str("state", f.stateFile).
			Int("fingerprints", state.TotalFingerprints()).
			Msg("cross-run deduplication enabled")
	}

	if !f.verbose {
		ui.Step(3, 4, "Loading category rules")
	}
	engine, err := loadRules(f.rulesFile)
	if err != nil {
		return err
	}
	log.Debug().Int("rules", len(engine.GetRules())).Msg("rules engine loaded")

	var store *learning.Store
	if f.learnDB != "" {
		store, err = learning.Open(f.learnDB, log)
		if err != nil {
			return fmt.Errorf("failed to open learning database: %w", err)
		}
		defer store.Close()
	}

	if !f.verbose {
		ui.Step(4, 4, "Parsing and transforming statements")
	}

	hub := progress.NewHub(log)
	runID := progress.NewRunID()

	// Verbose runs already get per-file detail from the structured log, so
	// the console renderer only subscribes for the step-style output.
	var renderDone chan struct{}
	if !f.verbose {
		sub := hub.Subscribe(ctx, runID)
		renderDone = make(chan struct{})
		go func() {
			defer close(renderDone)
			renderProgress(sub)
		}()
	}

	proc := pipeline.New(pipeline.Deps{
		Registry: registry.New(detect.NewDetector()),
		Engine:   engine,
		Matcher:  dedup.NewMatcher(cfg.Dedup),
		Store:    store,
		State:    state,
		Hub:      hub,
		BankHint: bankHint,
		Logger:   log,
		Config:   cfg,
	})

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = file.Path
	}

	results, stats := proc.ProcessFiles(ctx, paths, runID)
	hub.Close(runID)
	if renderDone != nil {
		<-renderDone
	}
	reportStats(stats, f.verbose, log)

	combined, failed := combineResults(results)
	if failed == len(results) {
		return fmt.Errorf("all %d files failed to parse; run with -verbose for details", failed)
	}
	if failed > 0 {
		ui.Warning(fmt.Sprintf("%d of %d files failed to parse", failed, len(results)))
	}

	fmt.Fprintf(os.Stderr, "\n")
	ui.Info("Validating results...")
	vr := validate.ValidateResult(combined)
	if !vr.Valid() {
		ui.Error(fmt.Sprintf("Validation failed with %d errors", len(vr.Errors)))
		for i, e := range vr.Errors {
			if i >= 5 {
				ui.Error(fmt.Sprintf("... and %d more errors", len(vr.Errors)-5))
				break
			}
			ui.Error(fmt.Sprintf("%s %s [%s]: %s", e.Entity, e.ID, e.Field, e.Message))
		}
		return fmt.Errorf("validation failed with %d errors", len(vr.Errors))
	}
	if len(vr.Warnings) > 0 {
		ui.Warning(fmt.Sprintf("Validation produced %d warnings", len(vr.Warnings)))
		for _, w := range vr.Warnings {
			log.Warn().
				Str("entity", w.Entity).
				Str("field", w.Field).
				Msg(w.Message)
		}
	} else {
		ui.Success("Validation passed")
	}

	// State is saved before output so a failed output write can be retried
	// without reprocessing transactions as new.
	if state != nil && f.stateFile != "" {
		if err := dedup.SaveState(state, f.stateFile); err != nil {
			return fmt.Errorf("failed to save state file before writing output: %w\n\nOutput was NOT written; retrying this run will reprocess all transactions as new", err)
		}
		log.Debug().
			Int("fingerprints", state.TotalFingerprints()).
			Str("state", f.stateFile).
			Msg("state saved")
	}

	if err := output.WriteResultToFile(combined, output.WriteOptions{
		FilePath:  f.outputFile,
		MergeMode: f.mergeMode,
	}); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if f.outputFile != "" {
		fmt.Fprintf(os.Stderr, "\n")
		ui.Success(fmt.Sprintf("Output written to %s", f.outputFile))
	}

	if f.csvFile != "" {
		if err := writeFileWith(f.csvFile, combined, output.WriteCSV); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		ui.Success(fmt.Sprintf("Transactions CSV written to %s", f.csvFile))
	}
	if f.summaryCSV != "" {
		if err := writeFileWith(f.summaryCSV, combined, output.WriteSummaryCSV); err != nil {
			return fmt.Errorf("failed to write summary CSV: %w", err)
		}
		ui.Success(fmt.Sprintf("Summary CSV written to %s", f.summaryCSV))
	}
	if f.xlsxFile != "" {
		if err := output.WriteXLSX(combined, f.xlsxFile); err != nil {
			return fmt.Errorf("failed to write Excel workbook: %w", err)
		}
		ui.Success(fmt.Sprintf("Excel workbook written to %s", f.xlsxFile))
	}

	return nil
}

// buildConfig resolves the effective configuration: defaults, then the
// config file, then explicit flags.
func buildConfig(f flags) (config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.Load(f.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if f.dedupEnabled {
		cfg.Dedup.Enabled = true
	}
	if f.dedupTolerance > 0 {
		cfg.Dedup.Tolerance = f.dedupTolerance
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func parseBankFlag(value string) (domain.Bank, error) {
	if value == "" {
		return "", nil
	}
	bank := domain.Bank(strings.ToLower(strings.TrimSpace(value)))
	if !domain.ValidateBank(bank) {
		return "", fmt.Errorf("unknown bank %q", value)
	}
	return bank, nil
}

// loadOrCreateState loads the cross-run state file. A missing file starts a
// fresh state; a file that exists but cannot be loaded or validated is fatal,
// since overwriting it would silently lose deduplication history.
func loadOrCreateState(path string, log zerolog.Logger) (*dedup.State, error) {
	if path == "" {
		return nil, nil
	}

	state, err := dedup.LoadState(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("state", path).Msg("state file not found, starting fresh")
			return dedup.NewState(), nil
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrPermission) {
			return nil, fmt.Errorf("failed to load state file %q: permission denied: %w\n\nThe state file exists but cannot be read.\nDeleting it would reprocess all transactions as NEW, losing deduplication history.\nCheck permissions with: ls -la %q", path, err, path)
		}
		return nil, fmt.Errorf("failed to load state file %q: %w\n\nThe state file exists but cannot be loaded.\nDeleting it would reprocess all transactions as NEW, losing deduplication history.\nBack it up before resetting: cp %q %q.backup", path, err, path, path)
	}

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("state file %q failed validation: %w\n\nParsing with invalid state would allow duplicates and risk further corruption.\nRestore from backup, or back up and remove the file to start fresh", path, err)
	}

	return state, nil
}

func loadRules(path string) (*rules.Engine, error) {
	if path != "" {
		engine, err := rules.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		return engine, nil
	}
	engine, err := rules.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

// combineResults folds a batch into one result for validation and output.
// Failed files contribute no transactions; their count comes back so the
// caller can report them.
func combineResults(results []*domain.Result) (*domain.Result, int) {
	combined := domain.NewResult(domain.Metadata{Bank: domain.BankUnknown})
	failed := 0

	for _, res := range results {
		if !res.Success {
			failed++
			continue
		}
		combined.Metadata = res.Metadata
		combined.Transactions = append(combined.Transactions, res.Transactions...)
	}

	if len(results) == 1 {
		combined.Metadata = results[0].Metadata
		combined.Success = results[0].Success
		combined.Error = results[0].Error
	}

	combined.Summary = summary.Aggregate(combined.Transactions)
	return combined, failed
}

// renderProgress turns pipeline events into per-file console lines. It runs
// until the subscriber's channel is closed by the hub.
func renderProgress(sub *progress.Subscriber) {
	for event := range sub.Events {
		switch data := event.Data.(type) {
		case progress.TransactionsEvent:
			ui.Success(fmt.Sprintf("%s: %d transactions", filepath.Base(data.Path), data.Count))
		case progress.FileEvent:
			if data.Status == "error" {
				ui.Warning(fmt.Sprintf("%s: %s", filepath.Base(data.Path), data.Error))
			}
		}
	}
}

func reportStats(stats pipeline.Stats, verbose bool, log zerolog.Logger) {
	if stats.DuplicatesDropped > 0 || stats.CrossRunDropped > 0 {
		ui.Info(fmt.Sprintf("Duplicates: %d within files, %d across runs",
			stats.DuplicatesDropped, stats.CrossRunDropped))
	}

	total := stats.RulesMatched + stats.RulesUnmatched
	if total == 0 {
		return
	}
	coverage := float64(stats.RulesMatched) / float64(total) * 100
	ui.Info(fmt.Sprintf("Rule coverage: %.1f%% (%d/%d matched)", coverage, stats.RulesMatched, total))
	if coverage < 80.0 {
		ui.Warning(fmt.Sprintf("Rule coverage %.1f%% below 80%% target (%d unmatched)", coverage, stats.RulesUnmatched))
		if !verbose {
			ui.Info("Run with -verbose to see unmatched transactions in the logs")
		}
	}

	for inst, count := range stats.PerInstitution {
		log.Debug().Str("institution", inst).Int("transactions", count).Msg("institution breakdown")
	}
}

// writeFileWith adapts the writer-based output functions to a file path.
func writeFileWith(path string, res *domain.Result, write func(*domain.Result, io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(res, file)
}
