package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/TFMV/hismetrics/db"
	"github.com/TFMV/hismetrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() types.AnalysisReport {
	fn := &types.FunctionRecord{
		Name:    "parse",
		File:    "p.c",
		Line:    12,
		Params:  []types.Parameter{{Name: "buf", Type: "char *"}, {Type: "int"}},
		Callees: []string{"memcpy"},
	}
	return types.AnalysisReport{
		RunID: "run-1",
		Files: []string{"p.c"},
		Results: []types.MetricResult{
			{Function: "parse", File: "p.c", Line: 12, Kind: types.MetricGoto, Value: 2, Range: types.Range{Max: 0}, Verdict: types.VerdictFail, Lines: []int{14, 20}},
			{Function: "parse", File: "p.c", Line: 12, Kind: types.MetricParams, Value: 2, Range: types.Range{Max: 5}, Verdict: types.VerdictPass},
			{Function: "parse", File: "p.c", Line: 12, Kind: types.MetricPaths, Verdict: types.VerdictError, Error: "malformed"},
		},
		Conditions: []types.Condition{
			{Kind: types.ConditionMissingLambda, Function: "parse", File: "p.c", Line: 15, Message: "lambda body missing"},
		},
		Errors:     []types.FunctionError{{File: "q.c", Message: "no such file"}},
		Violations: map[types.MetricKind]int{types.MetricGoto: 2, types.MetricParams: 0},
		Suppressed: []types.MetricKind{types.MetricCalling},
		Functions:  []*types.FunctionRecord{fn},
	}
}

func TestRows(t *testing.T) {
	rows := db.Rows(sampleReport())

	assert.Equal(t, "run-1", rows.Run.RunID)
	assert.Equal(t, map[string]int{"GOTO": 2, "PARAM": 0}, rows.Run.Violations)
	assert.Equal(t, []string{"CALLING"}, rows.Run.Suppressed)
	assert.Equal(t, []string{"q.c: no such file"}, rows.Run.Errors)

	require.Len(t, rows.Functions, 1)
	fn := rows.Functions[0]
	assert.Equal(t, "run-1", fn.RunID)
	assert.Equal(t, []string{"char * buf", "int"}, fn.Params)
	assert.Equal(t, []string{"memcpy"}, fn.Callees)
	// errored results carry no value
	assert.Equal(t, map[string]int{"GOTO": 2, "PARAM": 2}, fn.Metrics)

	require.Len(t, rows.Results, 3)
	assert.Equal(t, "GOTO", rows.Results[0].Metric)
	assert.Equal(t, "fail", rows.Results[0].Verdict)
	assert.Equal(t, []int{14, 20}, rows.Results[0].Lines)
	assert.Equal(t, []int{}, rows.Results[1].Lines)
	assert.Equal(t, "error", rows.Results[2].Verdict)
	assert.Equal(t, "malformed", rows.Results[2].Error)

	require.Len(t, rows.Conditions, 1)
	assert.Equal(t, "missing-lambda", rows.Conditions[0].Kind)
	assert.Equal(t, 15, rows.Conditions[0].Line)
}

func TestRows_EmptyReport(t *testing.T) {
	rows := db.Rows(types.AnalysisReport{RunID: "empty"})

	assert.Equal(t, []string{}, rows.Run.Files)
	assert.Empty(t, rows.Run.Violations)
	assert.Empty(t, rows.Functions)
	assert.Empty(t, rows.Results)
	assert.Empty(t, rows.Conditions)
}

func TestMockDB(t *testing.T) {
	ctx := context.Background()
	var store db.DB = db.NewMockDB()
	mock := store.(*db.MockDB)

	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.StoreAnalysis(ctx, sampleReport()))
	assert.Equal(t, 1, mock.InitializeCalls())
	require.Len(t, mock.Stored(), 1)
	assert.Equal(t, "run-1", mock.Stored()[0].RunID)

	mock.InitializeFunc = func(ctx context.Context) error { return errors.New("refused") }
	mock.StoreAnalysisFunc = func(ctx context.Context, report types.AnalysisReport) error { return errors.New("refused") }
	assert.Error(t, store.Initialize(ctx))
	assert.Error(t, store.StoreAnalysis(ctx, sampleReport()))
	assert.Equal(t, 2, mock.InitializeCalls())
	assert.Len(t, mock.Stored(), 1)
}
