package hismetrics_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/TFMV/hismetrics"
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/report"
	"github.com/TFMV/hismetrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	cfg := config.Default()
	cfg.Frontend = config.FrontendSource

	rep, err := hismetrics.Analyze(context.Background(), cfg, filepath.Join("testdata", "src"))
	require.NoError(t, err)

	assert.Len(t, rep.Files, 2)
	assert.Equal(t, 5, rep.Violations[types.MetricReturns]+rep.Violations[types.MetricParams]+
		rep.Violations[types.MetricGoto]+rep.Violations[types.MetricCallees]+rep.Violations[types.MetricRecursion])
	assert.True(t, report.Verify(rep).OK())
}

func TestAnalyze_DefaultConfig(t *testing.T) {
	rep, err := hismetrics.Analyze(context.Background(), nil, filepath.Join("testdata", "dump"))
	require.NoError(t, err)

	assert.Len(t, rep.Files, 2)
	assert.Len(t, rep.Conditions, 1)
	assert.True(t, report.Verify(rep).OK())
}

func TestNewAnalyzer(t *testing.T) {
	a := hismetrics.NewAnalyzer(nil, nil)
	require.NotNil(t, a)
	assert.Nil(t, a.DB)
	assert.NoError(t, a.Initialize(context.Background()))
}
