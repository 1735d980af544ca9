package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/TFMV/hismetrics/types"
)

// Mismatch is the outcome of comparing annotations with reported violations
type Mismatch struct {
	Missing    []string `json:"missing"`
	Unexpected []string `json:"unexpected"`
}

func (m Mismatch) OK() bool {
	return len(m.Missing) == 0 && len(m.Unexpected) == 0
}

// Verify compares the report's annotations with its failing results. Only
// annotations naming a known, unsuppressed metric take part; run level
// results have no location and are never compared.
func Verify(r types.AnalysisReport) Mismatch {
	suppressed := make(map[types.MetricKind]bool, len(r.Suppressed))
	for _, k := range r.Suppressed {
		suppressed[k] = true
	}

	expected := make(map[string]bool)
	for _, a := range r.Annotations {
		kind, ok := types.ParseMetricKind(a.ID)
		if !ok || suppressed[kind] {
			continue
		}
		expected[fmt.Sprintf("%s:%d:%s", a.File, a.Line, kind)] = true
	}

	actual := make(map[string]bool)
	for _, res := range r.Results {
		if res.Verdict != types.VerdictFail || res.File == "" {
			continue
		}
		for _, line := range ReportedLines(res) {
			actual[fmt.Sprintf("%s:%d:%s", res.File, line, res.Kind)] = true
		}
	}

	var m Mismatch
	for key := range expected {
		if !actual[key] {
			m.Missing = append(m.Missing, key)
		}
	}
	for key := range actual {
		if !expected[key] {
			m.Unexpected = append(m.Unexpected, key)
		}
	}
	sort.Strings(m.Missing)
	sort.Strings(m.Unexpected)
	return m
}

func WriteVerify(w io.Writer, m Mismatch) error {
	for _, key := range m.Missing {
		if _, err := fmt.Fprintf(w, "Expected but not seen: %s\n", key); err != nil {
			return err
		}
	}
	for _, key := range m.Unexpected {
		if _, err := fmt.Fprintf(w, "Not expected: %s\n", key); err != nil {
			return err
		}
	}
	return nil
}
