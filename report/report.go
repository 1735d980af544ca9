// Package report renders analysis reports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/TFMV/hismetrics/types"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects what the text renderer prints
type Options struct {
	NoSummary  bool
	Statistics bool
}

// Sort orders results by function name, then metric kind, then file and line
func Sort(results []types.MetricResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}

// ReportedLines returns where a failing result is reported
func ReportedLines(res types.MetricResult) []int {
	if len(res.Lines) > 0 {
		return res.Lines
	}
	return []int{res.Line}
}

// CheckFormat returns an error for a format Write cannot render
func CheckFormat(format string) error {
	switch format {
	case FormatJSON, FormatText, "":
		return nil
	}
	return fmt.Errorf("unknown report format %q", format)
}

// Write renders r in the given format
func Write(w io.Writer, r types.AnalysisReport, format string, opts Options) error {
	if err := CheckFormat(format); err != nil {
		return err
	}
	if format == FormatJSON {
		return WriteJSON(w, r)
	}
	return WriteText(w, r, opts)
}

func WriteJSON(w io.Writer, r types.AnalysisReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteText prints one line per violation, then conditions, extraction
// errors, the violation summary and optionally every computed value
func WriteText(w io.Writer, r types.AnalysisReport, opts Options) error {
	var b strings.Builder

	for _, res := range r.Results {
		switch res.Verdict {
		case types.VerdictFail:
			if res.File == "" {
				fmt.Fprintf(&b, "[All files:---] (style) %s: %s [%s]\n", res.Kind.Description(), res.Range, res.Kind)
				continue
			}
			for _, line := range ReportedLines(res) {
				fmt.Fprintf(&b, "[%s:%d] (style) %s: %s [%s]\n",
					res.File, line, res.Kind.Description(), res.Range, res.Kind)
			}
		case types.VerdictError:
			fmt.Fprintf(&b, "[%s:%d] (error) %s: %s [%s]\n", res.File, res.Line, res.Function, res.Error, res.Kind)
		}
	}
	for _, c := range r.Conditions {
		fmt.Fprintf(&b, "[%s:%d] (%s) %s: %s\n", c.File, c.Line, c.Kind, c.Function, c.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "[%s:%d] (extraction-error) %s\n", e.File, e.Line, strings.TrimSpace(e.Function+" "+e.Message))
	}

	if !opts.NoSummary {
		writeSummary(&b, r)
	}
	if opts.Statistics {
		writeStatistics(&b, r)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSummary(b *strings.Builder, r types.AnalysisReport) {
	b.WriteString("\n---------------------------\n")
	b.WriteString("--- Summary of violations\n")
	b.WriteString("---------------------------\n")
	suppressed := make(map[types.MetricKind]bool, len(r.Suppressed))
	for _, k := range r.Suppressed {
		suppressed[k] = true
	}
	for _, k := range types.AllMetricKinds() {
		if suppressed[k] {
			fmt.Fprintf(b, "%-14s: Suppressed\n", k)
			continue
		}
		fmt.Fprintf(b, "%-14s: %d\n", k, r.Violations[k])
	}
	b.WriteString("\n")
}

func writeStatistics(b *strings.Builder, r types.AnalysisReport) {
	b.WriteString("\n---------------------------\n")
	b.WriteString("--- Statistics information\n")
	b.WriteString("---------------------------\n")
	for _, res := range r.Results {
		if res.Verdict == types.VerdictError {
			continue
		}
		fmt.Fprintf(b, "%-10s - %-50s: %d\n", res.Kind, subject(res), res.Value)
	}
	b.WriteString("\n")
}

// subject names what a result measures: a function, a file or the whole run
func subject(res types.MetricResult) string {
	switch {
	case res.Function != "":
		return res.Function
	case res.File != "":
		return res.File
	}
	return "All files"
}

// Violations counts reported violations per kind; GOTO and LEVEL count each
// reported line
func Violations(results []types.MetricResult, kinds []types.MetricKind) map[types.MetricKind]int {
	counts := make(map[types.MetricKind]int, len(kinds))
	for _, k := range kinds {
		counts[k] = 0
	}
	for _, res := range results {
		if res.Verdict == types.VerdictFail {
			counts[res.Kind] += len(ReportedLines(res))
		}
	}
	return counts
}
