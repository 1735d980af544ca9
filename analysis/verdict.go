package analysis

import (
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/types"
)

// Evaluate labels a computed value against the threshold table. A calculator
// error yields VerdictError; an unconfigured kind is reported as an error too.
func Evaluate(fn *types.FunctionRecord, kind types.MetricKind, value int, calcErr error, thresholds config.ThresholdTable) types.MetricResult {
	res := types.MetricResult{Kind: kind, Value: value}
	if fn != nil {
		res.Function, res.File, res.Line = fn.Name, fn.File, fn.Line
	}

	r, err := thresholds.Range(kind)
	switch {
	case calcErr != nil:
		res.Verdict = types.VerdictError
		res.Error = calcErr.Error()
		res.Value = 0
	case err != nil:
		res.Verdict = types.VerdictError
		res.Error = err.Error()
	case r.Contains(value):
		res.Verdict = types.VerdictPass
	default:
		res.Verdict = types.VerdictFail
		res.Lines = ViolationLines(fn, kind, r.Max)
	}
	res.Range = r
	return res
}
