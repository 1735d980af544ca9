package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TFMV/hismetrics/cache"
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/db"
	"github.com/TFMV/hismetrics/parser"
	"github.com/TFMV/hismetrics/report"
	"github.com/TFMV/hismetrics/types"
)

// Analyzer provides a high-level interface for metric analysis and storage
type Analyzer struct {
	DB     db.DB // optional
	Cache  *cache.ExtractionCache
	Parser *parser.Parser
	Config *config.Config
	Logger *zap.Logger
	// Progress receives "Checking <file>..." lines; nil disables them
	Progress io.Writer
}

// NewAnalyzer creates an Analyzer without persistence
func NewAnalyzer(cfg *config.Config, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Analyzer{
		Cache:  cache.NewExtractionCache(1000),
		Parser: parser.NewParser(logger.Named("parser")),
		Config: cfg,
		Logger: logger,
	}
}

// NewAnalyzerWithDB creates an Analyzer that stores reports in SurrealDB
func NewAnalyzerWithDB(cfg *config.Config, dbConfig db.Config, logger *zap.Logger) (*Analyzer, error) {
	a := NewAnalyzer(cfg, logger)
	sdb, err := db.NewSurrealDB(dbConfig, a.Logger.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	a.DB = sdb
	return a, nil
}

// Initialize sets up the database connection and schema
func (a *Analyzer) Initialize(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Initialize(ctx)
}

// AnalyzePaths analyzes the given files and directories and stores the report
// when a database is configured
func (a *Analyzer) AnalyzePaths(ctx context.Context, paths []string) (types.AnalysisReport, error) {
	rep, err := a.GetAnalysis(ctx, paths)
	if err != nil {
		return rep, fmt.Errorf("failed to analyze paths: %w", err)
	}
	if a.DB == nil {
		return rep, nil
	}
	if err := a.DB.StoreAnalysis(ctx, rep); err != nil {
		return rep, fmt.Errorf("failed to store analysis results: %w", err)
	}
	return rep, nil
}

// GetAnalysis performs the analysis without storing results
func (a *Analyzer) GetAnalysis(ctx context.Context, paths []string) (types.AnalysisReport, error) {
	if err := a.Config.Validate(); err != nil {
		return types.AnalysisReport{}, fmt.Errorf("invalid configuration: %w", err)
	}

	filePaths, fileErrs := a.collectFiles(paths)
	files, err := a.extractFiles(ctx, filePaths)
	if err != nil {
		return types.AnalysisReport{}, err
	}

	rep := types.AnalysisReport{
		RunID:      uuid.NewString(),
		Files:      filePaths,
		Errors:     fileErrs,
		Suppressed: append([]types.MetricKind(nil), a.Config.Suppress...),
	}

	seen := make(map[string]bool)
	seenAnnotation := make(map[string]bool)
	for _, fa := range files {
		for _, fn := range fa.Functions {
			if seen[fn.Key()] {
				continue
			}
			seen[fn.Key()] = true
			rep.Functions = append(rep.Functions, fn)
			rep.Conditions = append(rep.Conditions, fn.Conditions...)
		}
		rep.Errors = append(rep.Errors, fa.Errors...)
		for _, an := range fa.Annotations {
			if !seenAnnotation[an.String()] {
				seenAnnotation[an.String()] = true
				rep.Annotations = append(rep.Annotations, an)
			}
		}
	}

	results, err := a.measure(ctx, rep.Functions)
	if err != nil {
		return types.AnalysisReport{}, err
	}
	results = append(results, measureFiles(files, a.Config)...)
	report.Sort(results)
	rep.Results = results
	rep.Violations = report.Violations(results, a.Config.Active())

	a.Logger.Info("analysis complete",
		zap.String("run_id", rep.RunID),
		zap.Int("files", len(rep.Files)),
		zap.Int("functions", len(rep.Functions)),
		zap.Int("results", len(rep.Results)),
		zap.Int("errors", len(rep.Errors)))
	return rep, nil
}

// collectFiles expands directories, drops excluded and duplicate paths and
// records unreadable paths as errors
func (a *Analyzer) collectFiles(paths []string) ([]string, []types.FunctionError) {
	var files []string
	var errs []types.FunctionError
	seen := make(map[string]bool)

	add := func(path string) {
		path = filepath.Clean(path)
		if seen[path] || a.excluded(path) {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			errs = append(errs, types.FunctionError{File: root, Message: err.Error()})
			continue
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		if err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("failed to walk directory: %w", err)
			}
			if d.IsDir() {
				if path != root && a.excluded(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if a.wants(path) {
				add(path)
			}
			return nil
		}); err != nil {
			errs = append(errs, types.FunctionError{File: root, Message: err.Error()})
		}
	}
	return files, errs
}

func (a *Analyzer) wants(path string) bool {
	if a.Config.Frontend == config.FrontendSource {
		return parser.IsSource(path)
	}
	return strings.HasSuffix(path, ".dump")
}

func (a *Analyzer) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range a.Config.Exclude {
		matched, err := doublestar.Match(pattern, slashed)
		if err != nil {
			a.Logger.Warn("invalid exclude pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// extractFiles parses every file concurrently. A file that cannot be read is
// returned with a single error entry.
func (a *Analyzer) extractFiles(ctx context.Context, filePaths []string) ([]types.FileAnalysis, error) {
	g, ctx := errgroup.WithContext(ctx)
	resultCh := make(chan types.FileAnalysis, len(filePaths))

	for _, path := range filePaths {
		if a.Progress != nil {
			fmt.Fprintf(a.Progress, "Checking %s...\n", path)
		}
		path := path
		g.Go(func() error {
			analysis, err := a.extract(ctx, path)
			if err != nil {
				a.Logger.Warn("failed to extract file", zap.String("path", path), zap.Error(err))
				analysis = types.FileAnalysis{
					Path:   path,
					Errors: []types.FunctionError{{File: path, Message: err.Error()}},
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case resultCh <- analysis:
				return nil
			}
		})
	}

	// Close results channel when all goroutines complete
	go func() {
		g.Wait()
		close(resultCh)
	}()

	var files []types.FileAnalysis
	for res := range resultCh {
		files = append(files, res)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make(map[string]int, len(filePaths))
	for i, p := range filePaths {
		order[p] = i
	}
	sort.Slice(files, func(i, j int) bool { return order[files[i].Path] < order[files[j].Path] })
	return files, nil
}

func (a *Analyzer) extract(ctx context.Context, path string) (types.FileAnalysis, error) {
	frontend := a.Config.Frontend
	return a.Cache.GetOrLoad(frontend, path, func() (types.FileAnalysis, error) {
		if frontend == config.FrontendSource {
			return a.Parser.ParseSourceFile(ctx, path)
		}
		return a.Parser.ParseDump(path)
	})
}

// measure computes every active metric. Per-function metrics run on a
// bounded pool, each task filling its own slot; call graph metrics follow.
func (a *Analyzer) measure(ctx context.Context, functions []*types.FunctionRecord) ([]types.MetricResult, error) {
	active := a.Config.Active()
	thresholds := a.Config.Thresholds

	perFunction := make([][]types.MetricResult, len(functions))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.Workers)
	for i, fn := range functions {
		i, fn := i, fn
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results := make([]types.MetricResult, 0, len(active))
			for _, kind := range active {
				calc, ok := CalculatorFor(kind)
				if !ok {
					continue
				}
				value, err := calc(fn)
				results = append(results, Evaluate(fn, kind, value, err, thresholds))
			}
			perFunction[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis canceled: %w", err)
	}

	var results []types.MetricResult
	for _, r := range perFunction {
		results = append(results, r...)
	}

	if !a.Config.IsSuppressed(types.MetricCalling) {
		callers := CallerCounts(functions)
		for _, fn := range functions {
			results = append(results, Evaluate(fn, types.MetricCalling, callers[fn.Name], nil, thresholds))
		}
	}
	if !a.Config.IsSuppressed(types.MetricRecursion) {
		recursive := DetectRecursion(functions)
		for _, fn := range functions {
			value := 0
			if recursive[fn.Name] {
				value = 1
			}
			results = append(results, Evaluate(fn, types.MetricRecursion, value, nil, thresholds))
		}
	}
	return results, nil
}
