// Package hismetrics computes HIS code metrics for C and C++ functions.
//
// Inputs are cppcheck dump files or C/C++ sources. Each function definition
// is measured against a threshold table and labelled pass or fail per metric.
package hismetrics

import (
	"context"

	"go.uber.org/zap"

	"github.com/TFMV/hismetrics/analysis"
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/db"
	"github.com/TFMV/hismetrics/types"
)

// NewAnalyzer creates an analyzer that keeps reports in memory
func NewAnalyzer(cfg *config.Config, logger *zap.Logger) *analysis.Analyzer {
	return analysis.NewAnalyzer(cfg, logger)
}

// NewAnalyzerWithDB creates an analyzer that also stores reports in SurrealDB
func NewAnalyzerWithDB(cfg *config.Config, dbURL, namespace, database, username, password string, logger *zap.Logger) (*analysis.Analyzer, error) {
	return analysis.NewAnalyzerWithDB(cfg, db.Config{
		URL:       dbURL,
		Namespace: namespace,
		Database:  database,
		Username:  username,
		Password:  password,
	}, logger)
}

// Analyze runs a one-off analysis of paths with cfg, or the defaults when cfg
// is nil
func Analyze(ctx context.Context, cfg *config.Config, paths ...string) (types.AnalysisReport, error) {
	return analysis.NewAnalyzer(cfg, nil).GetAnalysis(ctx, paths)
}
