package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MetricKind enumerates the HIS metrics. The order is the report order.
// COMF is measured per file and VOCF once per run; every other kind is
// measured per function.
type MetricKind int

const (
	MetricStatements MetricKind = iota
	MetricReturns
	MetricParams
	MetricNesting
	MetricGoto
	MetricCallees
	MetricCyclomatic
	MetricPaths
	MetricCalling
	MetricRecursion
	MetricComf
	MetricVocf
	metricKindCount
)

var metricIDs = [...]string{
	MetricStatements: "STMT",
	MetricReturns:    "RETURN",
	MetricParams:     "PARAM",
	MetricNesting:    "LEVEL",
	MetricGoto:       "GOTO",
	MetricCallees:    "CALLS",
	MetricCyclomatic: "STCYC",
	MetricPaths:      "PATH",
	MetricCalling:    "CALLING",
	MetricRecursion:  "NRECUR",
	MetricComf:       "COMF",
	MetricVocf:       "VOCF",
}

var metricDescriptions = [...]string{
	MetricStatements: "Number of statements per function",
	MetricReturns:    "Number of return points within a function",
	MetricParams:     "Number of function parameters",
	MetricNesting:    "Depth of nesting of a function",
	MetricGoto:       "Number of goto statements",
	MetricCallees:    "Number of called functions excluding duplicates",
	MetricCyclomatic: "Cyclomatic complexity v(G) of functions by McCabe",
	MetricPaths:      "Number of non cyclic remark paths",
	MetricCalling:    "Number of subfunctions calling a function",
	MetricRecursion:  "Number of recursions",
	MetricComf:       "Relationship of comments to number of statements (percent)",
	MetricVocf:       "Language scope",
}

// AllMetricKinds returns every metric kind in report order
func AllMetricKinds() []MetricKind {
	kinds := make([]MetricKind, 0, metricKindCount)
	for k := MetricKind(0); k < metricKindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

func (k MetricKind) Valid() bool {
	return k >= 0 && k < metricKindCount
}

// ID returns the short HIS identifier, e.g. "RETURN"
func (k MetricKind) ID() string {
	if !k.Valid() {
		return fmt.Sprintf("MetricKind(%d)", int(k))
	}
	return metricIDs[k]
}

func (k MetricKind) String() string {
	return "HIS-" + k.ID()
}

func (k MetricKind) Description() string {
	if !k.Valid() {
		return ""
	}
	return metricDescriptions[k]
}

func (k MetricKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid metric kind %d", int(k))
	}
	return []byte(k.ID()), nil
}

func (k *MetricKind) UnmarshalText(text []byte) error {
	parsed, ok := ParseMetricKind(string(text))
	if !ok {
		return fmt.Errorf("unknown metric kind %q", string(text))
	}
	*k = parsed
	return nil
}

// ParseMetricKind accepts "RETURN", "his-return" and similar spellings
func ParseMetricKind(s string) (MetricKind, bool) {
	id := strings.ToUpper(strings.TrimSpace(s))
	id = strings.TrimPrefix(id, "HIS-")
	for k, name := range metricIDs {
		if name == id {
			return MetricKind(k), true
		}
	}
	return 0, false
}

// Unbounded is the Max of a range without an upper limit
const Unbounded = math.MaxInt32

// Range is an inclusive acceptable interval
type Range struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	if r.Max >= Unbounded {
		return fmt.Sprintf(">=%d", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Verdict is the outcome of evaluating one metric of one function
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictFail
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "pass"
	case VerdictFail:
		return "fail"
	case VerdictError:
		return "error"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// MetricResult is one (function, metric) evaluation. File level results leave
// Function empty; run level results leave File empty too.
type MetricResult struct {
	Function string     `json:"function"`
	File     string     `json:"file"`
	Line     int        `json:"line"`
	Kind     MetricKind `json:"kind"`
	Value    int        `json:"value"`
	Range    Range      `json:"range"`
	Verdict  Verdict    `json:"verdict"`
	Error    string     `json:"error,omitempty"`
	// Lines lists the source lines a violation is reported at when they
	// differ from the function's line, e.g. each goto.
	Lines []int `json:"lines,omitempty"`
}
