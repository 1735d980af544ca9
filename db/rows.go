package db

import (
	"strings"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/TFMV/hismetrics/types"
)

// RunRow is one analysis run in the runs table
type RunRow struct {
	ID         *models.RecordID `json:"id,omitempty"`
	RunID      string           `json:"run_id"`
	Files      []string         `json:"files"`
	Violations map[string]int   `json:"violations"`
	Suppressed []string         `json:"suppressed"`
	Errors     []string         `json:"errors"`
}

// FunctionRow is one function with its metric values
type FunctionRow struct {
	ID      *models.RecordID `json:"id,omitempty"`
	RunID   string           `json:"run_id"`
	Name    string           `json:"name"`
	File    string           `json:"file"`
	Line    int              `json:"line"`
	Params  []string         `json:"params"`
	Callees []string         `json:"callees"`
	Metrics map[string]int   `json:"metrics"`
}

type MetricRow struct {
	ID       *models.RecordID `json:"id,omitempty"`
	RunID    string           `json:"run_id"`
	Function string           `json:"function"`
	File     string           `json:"file"`
	Line     int              `json:"line"`
	Metric   string           `json:"metric"`
	Value    int              `json:"value"`
	Min      int              `json:"min"`
	Max      int              `json:"max"`
	Verdict  string           `json:"verdict"`
	Error    string           `json:"error,omitempty"`
	Lines    []int            `json:"lines"`
}

type ConditionRow struct {
	ID       *models.RecordID `json:"id,omitempty"`
	RunID    string           `json:"run_id"`
	Kind     string           `json:"kind"`
	Function string           `json:"function"`
	File     string           `json:"file"`
	Line     int              `json:"line"`
	Message  string           `json:"message"`
}

// ReportRows is a report flattened into table rows
type ReportRows struct {
	Run        RunRow
	Functions  []FunctionRow
	Results    []MetricRow
	Conditions []ConditionRow
}

// Rows flattens a report into the rows written by StoreAnalysis
func Rows(report types.AnalysisReport) ReportRows {
	rows := ReportRows{
		Run: RunRow{
			RunID:      report.RunID,
			Files:      append([]string{}, report.Files...),
			Violations: make(map[string]int, len(report.Violations)),
			Suppressed: []string{},
			Errors:     []string{},
		},
	}
	for kind, n := range report.Violations {
		rows.Run.Violations[kind.ID()] = n
	}
	for _, kind := range report.Suppressed {
		rows.Run.Suppressed = append(rows.Run.Suppressed, kind.ID())
	}
	for _, e := range report.Errors {
		rows.Run.Errors = append(rows.Run.Errors, e.Error())
	}

	metrics := make(map[string]map[string]int)
	for _, res := range report.Results {
		rows.Results = append(rows.Results, MetricRow{
			RunID:    report.RunID,
			Function: res.Function,
			File:     res.File,
			Line:     res.Line,
			Metric:   res.Kind.ID(),
			Value:    res.Value,
			Min:      res.Range.Min,
			Max:      res.Range.Max,
			Verdict:  res.Verdict.String(),
			Error:    res.Error,
			Lines:    append([]int{}, res.Lines...),
		})
		if res.Verdict == types.VerdictError {
			continue
		}
		key := functionKey(res.File, res.Line, res.Function)
		if metrics[key] == nil {
			metrics[key] = make(map[string]int)
		}
		metrics[key][res.Kind.ID()] = res.Value
	}

	for _, fn := range report.Functions {
		params := make([]string, 0, len(fn.Params))
		for _, p := range fn.Params {
			params = append(params, strings.TrimSpace(p.Type+" "+p.Name))
		}
		m := metrics[fn.Key()]
		if m == nil {
			m = map[string]int{}
		}
		rows.Functions = append(rows.Functions, FunctionRow{
			RunID:   report.RunID,
			Name:    fn.Name,
			File:    fn.File,
			Line:    fn.Line,
			Params:  params,
			Callees: append([]string{}, fn.Callees...),
			Metrics: m,
		})
	}

	for _, c := range report.Conditions {
		rows.Conditions = append(rows.Conditions, ConditionRow{
			RunID:    report.RunID,
			Kind:     string(c.Kind),
			Function: c.Function,
			File:     c.File,
			Line:     c.Line,
			Message:  c.Message,
		})
	}
	return rows
}

func functionKey(file string, line int, name string) string {
	return (&types.FunctionRecord{File: file, Line: line, Name: name}).Key()
}
