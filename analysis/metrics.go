package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/TFMV/hismetrics/types"
)

// ErrMalformedRecord is returned by every calculator given a record it cannot
// measure
var ErrMalformedRecord = errors.New("malformed function record")

// Calculator computes one per-function metric
type Calculator func(fn *types.FunctionRecord) (int, error)

var calculators = map[types.MetricKind]Calculator{
	types.MetricStatements: StatementCount,
	types.MetricReturns:    ReturnCount,
	types.MetricParams:     ParamCount,
	types.MetricNesting:    NestingDepth,
	types.MetricGoto:       GotoCount,
	types.MetricCallees:    CalleeCount,
	types.MetricCyclomatic: CyclomaticComplexity,
	types.MetricPaths:      PathCount,
}

// CalculatorFor returns the calculator of a per-function metric. CALLING and
// NRECUR depend on the whole call graph, COMF and VOCF on whole files; they
// have none.
func CalculatorFor(kind types.MetricKind) (Calculator, bool) {
	c, ok := calculators[kind]
	return c, ok
}

func isControl(k types.StatementKind) bool {
	switch k {
	case types.StmtIf, types.StmtFor, types.StmtWhile, types.StmtDoWhile, types.StmtSwitch:
		return true
	}
	return false
}

func needsBody(k types.StatementKind) bool {
	return isControl(k) || k == types.StmtTry || k == types.StmtCatch
}

func malformed(fn *types.FunctionRecord, format string, args ...interface{}) error {
	name := "<nil>"
	if fn != nil {
		name = fn.Name
	}
	return fmt.Errorf("%w: %s: %s", ErrMalformedRecord, name, fmt.Sprintf(format, args...))
}

func validate(fn *types.FunctionRecord) error {
	if fn == nil {
		return malformed(fn, "nil record")
	}
	if fn.Name == "" {
		return malformed(fn, "empty function name")
	}
	if fn.Body == nil || fn.Body.Kind != types.StmtBlock {
		return malformed(fn, "body is not a block")
	}
	var err error
	fn.Body.Walk(func(s *types.Statement) bool {
		switch {
		case err != nil:
		case !s.Kind.Valid():
			err = malformed(fn, "line %d: invalid statement kind %d", s.Line, int(s.Kind))
		case needsBody(s.Kind) && s.Body == nil:
			err = malformed(fn, "line %d: %s without body", s.Line, s.Kind)
		case s.LogicalOps < 0:
			err = malformed(fn, "line %d: negative logical operator count", s.Line)
		default:
			for _, c := range s.Calls {
				if c.Name == "" {
					err = malformed(fn, "line %d: call without a name", s.Line)
					break
				}
			}
		}
		return err == nil
	})
	return err
}

// StatementCount counts the statements of the body. Labels, case labels,
// empty statements and the braces of a controlled body are not statements;
// a nested free-standing block is.
func StatementCount(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	var count func(s *types.Statement, controlled bool) int
	count = func(s *types.Statement, controlled bool) int {
		if s == nil {
			return 0
		}
		n := 0
		switch s.Kind {
		case types.StmtEmpty, types.StmtCase, types.StmtDefault, types.StmtLabel, types.StmtLambda:
		case types.StmtBlock:
			if !controlled {
				n = 1
			}
		default:
			n = 1
		}
		for _, c := range s.Children {
			n += count(c, false)
		}
		n += count(s.Body, true)
		n += count(s.Else, true)
		return n
	}
	return count(fn.Body, true), nil
}

// ReturnCount counts return statements. Returns inside a lambda belong to the
// lambda unless the lambda body is missing from the input.
func ReturnCount(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	n := 0
	fn.Body.Walk(func(s *types.Statement) bool {
		if s.Kind == types.StmtLambda && !s.Missing {
			return false
		}
		if s.Kind == types.StmtReturn {
			n++
		}
		return true
	})
	return n, nil
}

func ParamCount(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	return len(fn.Params), nil
}

// NestingDepth returns the deepest nesting level of an if, loop or switch.
// The function entry is level 1 and every scope enclosing the statement's
// body adds one, else branches included, so `else if` chains nest. A body
// without control statements has level 0.
func NestingDepth(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	deepest := 0
	visitNesting(fn.Body, 0, func(_ *types.Statement, level int) {
		if level > deepest {
			deepest = level
		}
	})
	return deepest, nil
}

// visitNesting calls fn for every control statement with its level. depth
// counts the scopes between the function body and s.
func visitNesting(s *types.Statement, depth int, fn func(*types.Statement, int)) {
	if s == nil {
		return
	}
	inner := depth
	switch {
	case isControl(s.Kind):
		inner = depth + 1
		fn(s, inner+1)
	case s.Kind == types.StmtTry, s.Kind == types.StmtCatch:
		inner = depth + 1
	case s.Kind == types.StmtLambda && !s.Missing:
		inner = depth + 1
	}
	contents := depth
	if s.Kind == types.StmtLambda {
		contents = inner
	}
	for _, c := range s.Children {
		if c.Kind == types.StmtBlock {
			visitNesting(c, contents+1, fn)
			continue
		}
		visitNesting(c, contents, fn)
	}
	visitNesting(s.Body, inner, fn)
	visitNesting(s.Else, inner, fn)
}

func GotoCount(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	n := 0
	fn.Body.Walk(func(s *types.Statement) bool {
		if s.Kind == types.StmtGoto {
			n++
		}
		return true
	})
	return n, nil
}

// CalleeCount counts distinct called names
func CalleeCount(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	fn.Body.Walk(func(s *types.Statement) bool {
		for _, c := range s.Calls {
			seen[c.Name] = struct{}{}
		}
		return true
	})
	return len(seen), nil
}

// CyclomaticComplexity is 1 plus one per if, loop, case arm, catch handler
// and logical branch (&&, ||, ?:)
func CyclomaticComplexity(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	n := 1
	fn.Body.Walk(func(s *types.Statement) bool {
		switch s.Kind {
		case types.StmtIf, types.StmtFor, types.StmtWhile, types.StmtDoWhile, types.StmtCase, types.StmtCatch:
			n++
		}
		n += s.LogicalOps
		return true
	})
	return n, nil
}

// maxPaths is where PathCount saturates
const maxPaths = math.MaxInt32

// PathCount estimates non cyclic paths: every if and loop doubles the count,
// a switch multiplies it by its number of case arms plus one
func PathCount(fn *types.FunctionRecord) (int, error) {
	if err := validate(fn); err != nil {
		return 0, err
	}
	n := 1
	fn.Body.Walk(func(s *types.Statement) bool {
		factor := 1
		switch s.Kind {
		case types.StmtIf, types.StmtFor, types.StmtWhile, types.StmtDoWhile:
			factor = 2
		case types.StmtSwitch:
			factor = 1 + switchCases(s)
		}
		if n > maxPaths/factor {
			n = maxPaths
		} else {
			n *= factor
		}
		return true
	})
	return n, nil
}

// switchCases counts the case labels belonging to sw, ignoring nested switches
func switchCases(sw *types.Statement) int {
	n := 0
	sw.Body.Walk(func(s *types.Statement) bool {
		if s.Kind == types.StmtSwitch {
			return false
		}
		if s.Kind == types.StmtCase {
			n++
		}
		return true
	})
	return n
}

// ViolationLines returns the lines a failing metric is reported at: each goto
// for GOTO and each control statement whose level exceeds limit for LEVEL.
// Other metrics report at the function's line and return nil.
func ViolationLines(fn *types.FunctionRecord, kind types.MetricKind, limit int) []int {
	if validate(fn) != nil {
		return nil
	}
	var lines []int
	switch kind {
	case types.MetricGoto:
		fn.Body.Walk(func(s *types.Statement) bool {
			if s.Kind == types.StmtGoto {
				lines = append(lines, s.Line)
			}
			return true
		})
	case types.MetricNesting:
		visitNesting(fn.Body, 0, func(s *types.Statement, level int) {
			if level > limit {
				lines = append(lines, s.Line)
			}
		})
	}
	return lines
}
