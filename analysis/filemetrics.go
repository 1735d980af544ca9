package analysis

import (
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/types"
)

// CommentDensity returns the comment lines of a file per hundred statements
// of its functions. The statement total starts at 1 so that a file without
// functions is measured too.
func CommentDensity(fa types.FileAnalysis) (int, error) {
	statements := 1
	for _, fn := range fa.Functions {
		n, err := StatementCount(fn)
		if err != nil {
			return 0, err
		}
		statements += n
	}
	return fa.Comments * 100 / statements, nil
}

// LanguageScope returns how often each distinct operator and operand is used
// on average across all vocabularies. ok is false when no token was seen.
func LanguageScope(vocabularies ...types.Vocabulary) (value int, ok bool) {
	operators := make(map[string]struct{})
	operands := make(map[string]struct{})
	total := 0
	for _, v := range vocabularies {
		for s, n := range v.Operators {
			operators[s] = struct{}{}
			total += n
		}
		for s, n := range v.Operands {
			operands[s] = struct{}{}
			total += n
		}
	}
	distinct := len(operators) + len(operands)
	if distinct == 0 {
		return 0, false
	}
	return total / distinct, true
}

// measureFiles evaluates COMF for every file that was read and VOCF over all
// of them
func measureFiles(files []types.FileAnalysis, cfg *config.Config) []types.MetricResult {
	var results []types.MetricResult
	var vocabularies []types.Vocabulary
	for _, fa := range files {
		if fa.Source == "" {
			continue
		}
		vocabularies = append(vocabularies, fa.Vocabulary)
		if cfg.IsSuppressed(types.MetricComf) {
			continue
		}
		value, err := CommentDensity(fa)
		res := Evaluate(nil, types.MetricComf, value, err, cfg.Thresholds)
		res.File, res.Line = fa.Source, fa.Line
		results = append(results, res)
	}

	if cfg.IsSuppressed(types.MetricVocf) {
		return results
	}
	if value, ok := LanguageScope(vocabularies...); ok {
		results = append(results, Evaluate(nil, types.MetricVocf, value, nil, cfg.Thresholds))
	}
	return results
}
