package analysis_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/TFMV/hismetrics/analysis"
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/db"
	"github.com/TFMV/hismetrics/report"
	"github.com/TFMV/hismetrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleSource  = filepath.Join("..", "testdata", "src", "sample.c")
	lambdaPresent = filepath.Join("..", "testdata", "dump", "lambda_present.cpp.dump")
	lambdaMissing = filepath.Join("..", "testdata", "dump", "lambda_missing.cpp.dump")
)

func sourceConfig(workers int) *config.Config {
	cfg := config.Default()
	cfg.Frontend = config.FrontendSource
	cfg.Workers = workers
	return cfg
}

func failures(rep types.AnalysisReport) map[string]types.MetricKind {
	out := make(map[string]types.MetricKind)
	for _, res := range rep.Results {
		if res.Verdict == types.VerdictFail {
			out[res.Function+"/"+res.Kind.ID()] = res.Kind
		}
	}
	return out
}

func TestAnalyzer_SourceFixture(t *testing.T) {
	analyzer := analysis.NewAnalyzer(sourceConfig(4), nil)

	rep, err := analyzer.GetAnalysis(context.Background(), []string{sampleSource})
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, []string{filepath.Clean(sampleSource)}, rep.Files)
	assert.Empty(t, rep.Errors)
	assert.Len(t, rep.Functions, 8)
	// eight functions with every function metric, plus COMF and VOCF once each
	assert.Len(t, rep.Results, 8*(len(types.AllMetricKinds())-2)+2)

	assert.Equal(t, map[string]types.MetricKind{
		"sign/RETURN":  types.MetricReturns,
		"six/PARAM":    types.MetricParams,
		"jump/GOTO":    types.MetricGoto,
		"fanout/CALLS": types.MetricCallees,
		"fact/NRECUR":  types.MetricRecursion,
		"/COMF":        types.MetricComf,
	}, failures(rep))

	assert.Equal(t, 1, rep.Violations[types.MetricGoto])
	assert.Equal(t, 0, rep.Violations[types.MetricNesting])
	assert.Equal(t, 1, rep.Violations[types.MetricComf])

	for _, res := range rep.Results {
		switch res.Kind {
		case types.MetricComf:
			assert.Equal(t, filepath.Clean(sampleSource), res.File)
			assert.Equal(t, 1, res.Line)
			assert.Less(t, res.Value, 20)
		case types.MetricVocf:
			assert.Empty(t, res.File)
			assert.Empty(t, res.Function)
		}
	}

	m := report.Verify(rep)
	assert.True(t, m.OK(), "missing %v, unexpected %v", m.Missing, m.Unexpected)
}

func TestAnalyzer_ResultsAreOrdered(t *testing.T) {
	rep, err := analysis.NewAnalyzer(sourceConfig(3), nil).GetAnalysis(context.Background(), []string{sampleSource})
	require.NoError(t, err)

	for i := 1; i < len(rep.Results); i++ {
		prev, cur := rep.Results[i-1], rep.Results[i]
		if prev.Function == cur.Function {
			assert.Less(t, int(prev.Kind), int(cur.Kind))
		} else {
			assert.Less(t, prev.Function, cur.Function)
		}
	}
}

func TestAnalyzer_DeterministicAcrossWorkers(t *testing.T) {
	var reference []types.MetricResult
	for _, workers := range []int{1, 2, 8} {
		rep, err := analysis.NewAnalyzer(sourceConfig(workers), nil).GetAnalysis(context.Background(), []string{sampleSource})
		require.NoError(t, err)
		if reference == nil {
			reference = rep.Results
			continue
		}
		assert.Equal(t, reference, rep.Results, "workers=%d", workers)
	}
}

func TestAnalyzer_Lambdas(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		wantReturns    int
		wantVerdict    types.Verdict
		wantConditions int
	}{
		{
			name:        "lambda present in dump",
			path:        lambdaPresent,
			wantReturns: 1,
			wantVerdict: types.VerdictPass,
		},
		{
			name:           "lambda missing from dump",
			path:           lambdaMissing,
			wantReturns:    2,
			wantVerdict:    types.VerdictFail,
			wantConditions: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := analysis.NewAnalyzer(config.Default(), nil).GetAnalysis(context.Background(), []string{tt.path})
			require.NoError(t, err)
			require.Len(t, rep.Functions, 1)
			assert.Len(t, rep.Conditions, tt.wantConditions)

			for _, res := range rep.Results {
				if res.Kind != types.MetricReturns {
					continue
				}
				assert.Equal(t, "hasMember", res.Function)
				assert.Equal(t, tt.wantReturns, res.Value)
				assert.Equal(t, tt.wantVerdict, res.Verdict)
			}
			assert.True(t, report.Verify(rep).OK())
		})
	}
}

func TestAnalyzer_DirectoryAndExclude(t *testing.T) {
	cfg := config.Default()
	cfg.Exclude = []string{"**/lambda_present*"}
	var progress bytes.Buffer
	analyzer := analysis.NewAnalyzer(cfg, nil)
	analyzer.Progress = &progress

	rep, err := analyzer.GetAnalysis(context.Background(), []string{
		filepath.Join("..", "testdata", "dump"),
		lambdaMissing,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Clean(lambdaMissing)}, rep.Files)
	assert.Equal(t, "Checking "+filepath.Clean(lambdaMissing)+"...\n", progress.String())
}

func TestAnalyzer_Suppression(t *testing.T) {
	cfg := sourceConfig(2)
	require.NoError(t, cfg.AddSuppressed("goto,HIS-NRECUR"))

	rep, err := analysis.NewAnalyzer(cfg, nil).GetAnalysis(context.Background(), []string{sampleSource})
	require.NoError(t, err)

	for _, res := range rep.Results {
		assert.NotEqual(t, types.MetricGoto, res.Kind)
		assert.NotEqual(t, types.MetricRecursion, res.Kind)
	}
	assert.Equal(t, []types.MetricKind{types.MetricGoto, types.MetricRecursion}, rep.Suppressed)
	_, counted := rep.Violations[types.MetricGoto]
	assert.False(t, counted)
}

func TestAnalyzer_FileErrorsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.dump")
	require.NoError(t, os.WriteFile(broken, []byte("<dumps><rawtokens>"), 0644))

	rep, err := analysis.NewAnalyzer(config.Default(), nil).GetAnalysis(context.Background(), []string{
		filepath.Join(dir, "missing.dump"),
		broken,
		lambdaPresent,
	})
	require.NoError(t, err)

	require.Len(t, rep.Errors, 2)
	assert.Equal(t, filepath.Join(dir, "missing.dump"), rep.Errors[0].File)
	assert.Equal(t, broken, rep.Errors[1].File)
	assert.Len(t, rep.Functions, 1)
}

func TestAnalyzer_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analysis.NewAnalyzer(config.Default(), nil).GetAnalysis(ctx, []string{lambdaPresent})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Thresholds[types.MetricParams] = types.Range{Min: 3, Max: 1}

	_, err := analysis.NewAnalyzer(cfg, nil).GetAnalysis(context.Background(), []string{lambdaPresent})
	assert.ErrorIs(t, err, config.ErrInvalidRange)
}

func TestAnalyzer_StoresAndCaches(t *testing.T) {
	mock := db.NewMockDB()
	analyzer := analysis.NewAnalyzer(config.Default(), nil)
	analyzer.DB = mock
	ctx := context.Background()

	require.NoError(t, analyzer.Initialize(ctx))
	assert.Equal(t, 1, mock.InitializeCalls())

	first, err := analyzer.AnalyzePaths(ctx, []string{lambdaPresent})
	require.NoError(t, err)
	second, err := analyzer.AnalyzePaths(ctx, []string{lambdaPresent})
	require.NoError(t, err)

	stored := mock.Stored()
	require.Len(t, stored, 2)
	assert.Equal(t, first.RunID, stored[0].RunID)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, analyzer.Cache.Hits())

	mock.StoreAnalysisFunc = func(ctx context.Context, report types.AnalysisReport) error {
		return errors.New("connection refused")
	}
	_, err = analyzer.AnalyzePaths(ctx, []string{lambdaPresent})
	assert.ErrorContains(t, err, "failed to store analysis results")
}

func TestDetectRecursion(t *testing.T) {
	tests := []struct {
		name      string
		functions []*types.FunctionRecord
		want      map[string]bool
	}{
		{
			name: "direct recursion",
			functions: []*types.FunctionRecord{
				{Name: "factorial", Callees: []string{"factorial"}},
			},
			want: map[string]bool{"factorial": true},
		},
		{
			name: "indirect recursion",
			functions: []*types.FunctionRecord{
				{Name: "isEven", Callees: []string{"isOdd"}},
				{Name: "isOdd", Callees: []string{"isEven"}},
				{Name: "main", Callees: []string{"isEven", "printf"}},
			},
			want: map[string]bool{"isEven": true, "isOdd": true},
		},
		{
			name: "no recursion",
			functions: []*types.FunctionRecord{
				{Name: "a", Callees: []string{"b"}},
				{Name: "b", Callees: []string{"c"}},
				{Name: "c"},
			},
			want: map[string]bool{},
		},
		{
			name: "cycle through unanalyzed function is not seen",
			functions: []*types.FunctionRecord{
				{Name: "a", Callees: []string{"external"}},
			},
			want: map[string]bool{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analysis.DetectRecursion(tt.functions))
		})
	}
}

func TestCallerCounts(t *testing.T) {
	functions := []*types.FunctionRecord{
		{Name: "log", File: "a.c", Line: 1, Callees: []string{"log"}},
		{Name: "init", File: "a.c", Line: 5, Callees: []string{"log"}},
		{Name: "run", File: "a.c", Line: 9, Callees: []string{"init", "log"}},
		{Name: "stop", File: "b.c", Line: 2, Callees: []string{"log", "exit"}},
	}

	assert.Equal(t, map[string]int{
		"log":  3,
		"init": 1,
		"run":  0,
		"stop": 0,
	}, analysis.CallerCounts(functions))
}

func TestEvaluate(t *testing.T) {
	fn := &types.FunctionRecord{Name: "f", File: "f.c", Line: 3}
	thresholds := config.DefaultThresholds()

	tests := []struct {
		name    string
		kind    types.MetricKind
		value   int
		calcErr error
		table   config.ThresholdTable
		want    types.Verdict
	}{
		{name: "upper boundary passes", kind: types.MetricParams, value: 5, table: thresholds, want: types.VerdictPass},
		{name: "above range fails", kind: types.MetricParams, value: 6, table: thresholds, want: types.VerdictFail},
		{name: "lower boundary passes", kind: types.MetricStatements, value: 1, table: thresholds, want: types.VerdictPass},
		{name: "below range fails", kind: types.MetricStatements, value: 0, table: thresholds, want: types.VerdictFail},
		{name: "calculator error", kind: types.MetricReturns, value: 7, calcErr: analysis.ErrMalformedRecord, table: thresholds, want: types.VerdictError},
		{name: "unconfigured kind", kind: types.MetricGoto, value: 0, table: config.ThresholdTable{}, want: types.VerdictError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analysis.Evaluate(fn, tt.kind, tt.value, tt.calcErr, tt.table)
			assert.Equal(t, tt.want, res.Verdict)
			assert.Equal(t, "f", res.Function)
			assert.Equal(t, 3, res.Line)
			if tt.want == types.VerdictError {
				assert.NotEmpty(t, res.Error)
				assert.Zero(t, res.Value)
			}
		})
	}
}
