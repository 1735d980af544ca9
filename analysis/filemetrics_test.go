package analysis_test

import (
	"context"
	"testing"

	"github.com/TFMV/hismetrics/analysis"
	"github.com/TFMV/hismetrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func returning(n int) *types.FunctionRecord {
	body := &types.Statement{Kind: types.StmtBlock}
	for i := 0; i < n; i++ {
		body.Children = append(body.Children, &types.Statement{Kind: types.StmtReturn, Line: i + 2})
	}
	return &types.FunctionRecord{Name: "f", File: "f.c", Line: 1, Body: body}
}

func TestCommentDensity(t *testing.T) {
	tests := []struct {
		name      string
		comments  int
		functions []*types.FunctionRecord
		want      int
	}{
		{name: "no functions", comments: 1, want: 100},
		{name: "no comments", functions: []*types.FunctionRecord{returning(3)}, want: 0},
		{name: "one comment over four statements", comments: 1, functions: []*types.FunctionRecord{returning(4)}, want: 20},
		{name: "rounds down", comments: 1, functions: []*types.FunctionRecord{returning(5)}, want: 16},
		{name: "statements of every function", comments: 3, functions: []*types.FunctionRecord{returning(2), returning(2)}, want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analysis.CommentDensity(types.FileAnalysis{Comments: tt.comments, Functions: tt.functions})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := analysis.CommentDensity(types.FileAnalysis{Functions: []*types.FunctionRecord{{Name: "broken"}}})
	assert.Error(t, err)
}

func TestLanguageScope(t *testing.T) {
	var a, b types.Vocabulary
	a.AddOperator("=")
	a.AddOperator("=")
	a.AddOperand("x")
	b.AddOperator("=")
	b.AddOperand("x")
	b.AddOperand("y")
	b.AddOperand("y")

	got, ok := analysis.LanguageScope(a, b)
	require.True(t, ok)
	// seven tokens over three distinct ones
	assert.Equal(t, 2, got)

	_, ok = analysis.LanguageScope()
	assert.False(t, ok)
	_, ok = analysis.LanguageScope(types.Vocabulary{})
	assert.False(t, ok)
}

func TestAnalyzer_FileMetricsSuppressed(t *testing.T) {
	tests := []struct {
		name     string
		suppress string
		want     []types.MetricKind
	}{
		{name: "comment density", suppress: "COMF", want: []types.MetricKind{types.MetricVocf}},
		{name: "language scope", suppress: "HIS-VOCF", want: []types.MetricKind{types.MetricComf}},
		{name: "both", suppress: "comf,vocf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sourceConfig(1)
			require.NoError(t, cfg.AddSuppressed(tt.suppress))

			rep, err := analysis.NewAnalyzer(cfg, nil).GetAnalysis(context.Background(), []string{sampleSource})
			require.NoError(t, err)

			var got []types.MetricKind
			for _, res := range rep.Results {
				if res.Kind == types.MetricComf || res.Kind == types.MetricVocf {
					got = append(got, res.Kind)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalyzer_FileMetricThresholds(t *testing.T) {
	cfg := sourceConfig(1)
	cfg.Thresholds[types.MetricComf] = types.Range{Min: 0, Max: types.Unbounded}
	cfg.Thresholds[types.MetricVocf] = types.Range{Min: 100, Max: 200}

	rep, err := analysis.NewAnalyzer(cfg, nil).GetAnalysis(context.Background(), []string{sampleSource})
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Violations[types.MetricComf])
	assert.Equal(t, 1, rep.Violations[types.MetricVocf])
	// run level results carry no location and take no part in verification
	for _, res := range rep.Results {
		if res.Kind == types.MetricVocf {
			assert.Equal(t, types.VerdictFail, res.Verdict)
			assert.Empty(t, res.File)
		}
	}
}
