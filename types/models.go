package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StatementKind tags the variant held by a Statement
type StatementKind int

const (
	StmtExpression StatementKind = iota
	StmtDeclaration
	StmtEmpty
	StmtBlock
	StmtIf
	StmtFor
	StmtWhile
	StmtDoWhile
	StmtSwitch
	StmtCase
	StmtDefault
	StmtReturn
	StmtGoto
	StmtLabel
	StmtBreak
	StmtContinue
	StmtTry
	StmtCatch
	StmtLambda
	stmtKindCount
)

var statementKindNames = [...]string{
	StmtExpression:  "expression",
	StmtDeclaration: "declaration",
	StmtEmpty:       "empty",
	StmtBlock:       "block",
	StmtIf:          "if",
	StmtFor:         "for",
	StmtWhile:       "while",
	StmtDoWhile:     "do-while",
	StmtSwitch:      "switch",
	StmtCase:        "case",
	StmtDefault:     "default",
	StmtReturn:      "return",
	StmtGoto:        "goto",
	StmtLabel:       "label",
	StmtBreak:       "break",
	StmtContinue:    "continue",
	StmtTry:         "try",
	StmtCatch:       "catch",
	StmtLambda:      "lambda",
}

func (k StatementKind) Valid() bool {
	return k >= 0 && k < stmtKindCount
}

func (k StatementKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("StatementKind(%d)", int(k))
	}
	return statementKindNames[k]
}

func (k StatementKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Call is a single call site inside a statement
type Call struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Statement is one node of a function's semantic tree.
//
// Body holds the controlled statement of if/loops/switch/try/catch, Else the
// else branch of an if. Children holds the contents of a block or lambda, the
// handlers of a try, and any lambdas embedded in the statement's expression.
type Statement struct {
	Kind       StatementKind `json:"kind"`
	Line       int           `json:"line"`
	Label      string        `json:"label,omitempty"`
	Calls      []Call        `json:"calls,omitempty"`
	LogicalOps int           `json:"logical_ops,omitempty"`
	Body       *Statement    `json:"body,omitempty"`
	Else       *Statement    `json:"else,omitempty"`
	Children   []*Statement  `json:"children,omitempty"`
	// Missing marks a lambda whose body the front-end did not separate from
	// the enclosing function.
	Missing bool `json:"missing,omitempty"`
}

// Walk visits s and every statement below it in source order. Returning false
// from fn skips the node's subtree.
func (s *Statement) Walk(fn func(*Statement) bool) {
	if s == nil || !fn(s) {
		return
	}
	for _, c := range s.Children {
		c.Walk(fn)
	}
	s.Body.Walk(fn)
	s.Else.Walk(fn)
}

// Parameter is one entry of a function signature
type Parameter struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// ConditionKind labels an extraction outcome that is neither success nor error
type ConditionKind string

const (
	ConditionMissingLambda ConditionKind = "missing-lambda"
)

// Condition is a distinctly reported extraction outcome
type Condition struct {
	Kind     ConditionKind `json:"kind"`
	Function string        `json:"function"`
	File     string        `json:"file"`
	Line     int           `json:"line"`
	Message  string        `json:"message"`
}

// FunctionRecord is the structural content of one function definition
type FunctionRecord struct {
	Name       string      `json:"name"`
	File       string      `json:"file"`
	Line       int         `json:"line"`
	Params     []Parameter `json:"params"`
	Body       *Statement  `json:"body"`
	Callees    []string    `json:"callees"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// Key identifies a function across configurations of the same file
func (f *FunctionRecord) Key() string {
	return fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Name)
}

// FunctionError is an extraction failure isolated to one function or file
type FunctionError struct {
	File     string `json:"file"`
	Function string `json:"function,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

func (e FunctionError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Function, e.Message)
}

// Annotation is an expected result embedded in a fixture comment
type Annotation struct {
	File string `json:"file"`
	Line int    `json:"line"`
	ID   string `json:"id"`
}

func (a Annotation) String() string {
	return fmt.Sprintf("%s:%d:%s", a.File, a.Line, a.ID)
}

// ParseAnnotations returns the HIS-XXX words of a // comment. Comments
// mentioning TODO carry no expectations.
func ParseAnnotations(file string, line int, comment string) []Annotation {
	if !strings.HasPrefix(comment, "//") || strings.Contains(comment, "TODO") {
		return nil
	}
	var out []Annotation
	for _, word := range strings.Fields(comment[2:]) {
		if strings.HasPrefix(word, "HIS-") {
			out = append(out, Annotation{File: file, Line: line, ID: word})
		}
	}
	return out
}

// Vocabulary counts the operator and operand tokens of a translation unit by
// spelling. Keywords and called names are operators.
type Vocabulary struct {
	Operators map[string]int `json:"operators,omitempty"`
	Operands  map[string]int `json:"operands,omitempty"`
}

func (v *Vocabulary) AddOperator(s string) {
	if v.Operators == nil {
		v.Operators = make(map[string]int)
	}
	v.Operators[s]++
}

func (v *Vocabulary) AddOperand(s string) {
	if v.Operands == nil {
		v.Operands = make(map[string]int)
	}
	v.Operands[s]++
}

// FileAnalysis is the extraction output for one input file
type FileAnalysis struct {
	Path        string
	Functions   []*FunctionRecord
	Errors      []FunctionError
	Annotations []Annotation
	// Source and Line locate the first token of the translation unit, where
	// file level results are reported. Source is empty when nothing was read.
	Source     string
	Line       int
	Comments   int
	Vocabulary Vocabulary
}

// AnalysisReport contains the complete analysis results
type AnalysisReport struct {
	RunID       string             `json:"run_id"`
	Files       []string           `json:"files"`
	Results     []MetricResult     `json:"results"`
	Conditions  []Condition        `json:"conditions,omitempty"`
	Errors      []FunctionError    `json:"errors,omitempty"`
	Annotations []Annotation       `json:"annotations,omitempty"`
	Violations  map[MetricKind]int `json:"violations"`
	Suppressed  []MetricKind       `json:"suppressed,omitempty"`
	// Functions holds the measured records for storage
	Functions []*FunctionRecord `json:"-"`
}

// PrettyPrint returns an indented JSON rendering of the report
func (r AnalysisReport) PrettyPrint() string {
	jsonBytes, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating summary: %v", err)
	}
	return string(jsonBytes)
}
