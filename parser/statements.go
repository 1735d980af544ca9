package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/TFMV/hismetrics/dump"
	"github.com/TFMV/hismetrics/types"
)

// tokenWalker builds a statement tree from a function body in a dump token list
type tokenWalker struct {
	tl *dump.TokenList
	// lambdas holds the token index of every lambda body start known to the dump
	lambdas    map[int]bool
	function   string
	file       string
	conditions []types.Condition
}

// exprInfo collects what an expression contributes to its statement
type exprInfo struct {
	calls   []types.Call
	logical int
	lambdas []*types.Statement
}

func (w *tokenWalker) errorf(i int, format string, args ...interface{}) error {
	line := 0
	if i >= 0 && i < len(w.tl.Tokens) {
		line = w.tl.Tokens[i].Line
	}
	return fmt.Errorf("%w: line %d: %s", ErrExtraction, line, fmt.Sprintf(format, args...))
}

func (w *tokenWalker) line(i int) int {
	if i < 0 || i >= len(w.tl.Tokens) {
		return 0
	}
	return w.tl.Tokens[i].Line
}

// link returns the matching bracket of i, requiring it to lie before end
func (w *tokenWalker) link(i, end int) (int, error) {
	j := w.tl.Links[i]
	if j < 0 || j <= i || j > end {
		return 0, w.errorf(i, "unbalanced %q", w.tl.Str(i))
	}
	return j, nil
}

// block parses the statements in the token range [start, end)
func (w *tokenWalker) block(start, end int) ([]*types.Statement, error) {
	var stmts []*types.Statement
	for i := start; i < end; {
		st, next, err := w.statement(i, end)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		i = next
	}
	return stmts, nil
}

func (w *tokenWalker) statement(i, end int) (*types.Statement, int, error) {
	tok := w.tl.Str(i)
	st := &types.Statement{Line: w.line(i)}

	switch tok {
	case "{":
		j, err := w.link(i, end)
		if err != nil {
			return nil, 0, err
		}
		children, err := w.block(i+1, j)
		if err != nil {
			return nil, 0, err
		}
		st.Kind = types.StmtBlock
		st.Children = children
		return st, j + 1, nil

	case ";":
		st.Kind = types.StmtEmpty
		return st, i + 1, nil

	case "if":
		st.Kind = types.StmtIf
		open := i + 1
		if w.tl.Str(open) == "constexpr" {
			open++
		}
		next, err := w.controlled(st, open, end)
		if err != nil {
			return nil, 0, err
		}
		if w.tl.Str(next) == "else" {
			els, n, err := w.statement(next+1, end)
			if err != nil {
				return nil, 0, err
			}
			st.Else = flattenElseIf(els)
			next = n
		}
		return st, next, nil

	case "for", "while", "switch":
		st.Kind = map[string]types.StatementKind{
			"for": types.StmtFor, "while": types.StmtWhile, "switch": types.StmtSwitch,
		}[tok]
		next, err := w.controlled(st, i+1, end)
		if err != nil {
			return nil, 0, err
		}
		return st, next, nil

	case "do":
		st.Kind = types.StmtDoWhile
		body, n, err := w.statement(i+1, end)
		if err != nil {
			return nil, 0, err
		}
		st.Body = body
		if w.tl.Str(n) != "while" || w.tl.Str(n+1) != "(" {
			return nil, 0, w.errorf(i, "do without while")
		}
		c, err := w.link(n+1, end)
		if err != nil {
			return nil, 0, err
		}
		info, err := w.expr(n+2, c)
		if err != nil {
			return nil, 0, err
		}
		info.apply(st)
		if w.tl.Str(c+1) != ";" {
			return nil, 0, w.errorf(c, "expected ';' after do-while")
		}
		return st, c + 2, nil

	case "case":
		st.Kind = types.StmtCase
		colon, err := w.caseColon(i+1, end)
		if err != nil {
			return nil, 0, err
		}
		st.Label = w.text(i+1, colon)
		info, err := w.expr(i+1, colon)
		if err != nil {
			return nil, 0, err
		}
		info.apply(st)
		return st, colon + 1, nil

	case "default":
		if w.tl.Str(i+1) != ":" {
			return nil, 0, w.errorf(i, "expected ':' after default")
		}
		st.Kind = types.StmtDefault
		return st, i + 2, nil

	case "return":
		st.Kind = types.StmtReturn
		return w.terminated(st, i+1, end)

	case "goto":
		st.Kind = types.StmtGoto
		st.Label = w.tl.Str(i + 1)
		if !isName(st.Label) || w.tl.Str(i+2) != ";" {
			return nil, 0, w.errorf(i, "malformed goto")
		}
		return st, i + 3, nil

	case "break", "continue":
		st.Kind = types.StmtBreak
		if tok == "continue" {
			st.Kind = types.StmtContinue
		}
		if w.tl.Str(i+1) != ";" {
			return nil, 0, w.errorf(i, "expected ';' after %s", tok)
		}
		return st, i + 2, nil

	case "try":
		return w.tryStatement(st, i, end)

	case "else", "catch", ")", "]", "}":
		return nil, 0, w.errorf(i, "unexpected %q", tok)
	}

	if isName(tok) && !isKeyword(tok) && w.tl.Str(i+1) == ":" {
		st.Kind = types.StmtLabel
		st.Label = tok
		return st, i + 2, nil
	}

	st.Kind = types.StmtExpression
	if _, ok := declKeywords[tok]; ok {
		st.Kind = types.StmtDeclaration
	}
	return w.terminated(st, i, end)
}

// controlled parses `( header ) body` starting at the opening parenthesis
func (w *tokenWalker) controlled(st *types.Statement, open, end int) (int, error) {
	if w.tl.Str(open) != "(" {
		return 0, w.errorf(open, "expected '(' after %s", st.Kind)
	}
	c, err := w.link(open, end)
	if err != nil {
		return 0, err
	}
	info, err := w.expr(open+1, c)
	if err != nil {
		return 0, err
	}
	info.apply(st)
	if c+1 >= end {
		return 0, w.errorf(c, "%s without body", st.Kind)
	}
	body, next, err := w.statement(c+1, end)
	if err != nil {
		return 0, err
	}
	st.Body = body
	return next, nil
}

// terminated scans an expression up to its ';' and fills st from it
func (w *tokenWalker) terminated(st *types.Statement, i, end int) (*types.Statement, int, error) {
	semi, err := w.semicolon(i, end)
	if err != nil {
		return nil, 0, err
	}
	info, err := w.expr(i, semi)
	if err != nil {
		return nil, 0, err
	}
	info.apply(st)
	return st, semi + 1, nil
}

func (w *tokenWalker) tryStatement(st *types.Statement, i, end int) (*types.Statement, int, error) {
	st.Kind = types.StmtTry
	if w.tl.Str(i+1) != "{" {
		return nil, 0, w.errorf(i, "expected '{' after try")
	}
	body, next, err := w.statement(i+1, end)
	if err != nil {
		return nil, 0, err
	}
	st.Body = body
	for w.tl.Str(next) == "catch" {
		if w.tl.Str(next+1) != "(" {
			return nil, 0, w.errorf(next, "expected '(' after catch")
		}
		c, err := w.link(next+1, end)
		if err != nil {
			return nil, 0, err
		}
		if w.tl.Str(c+1) != "{" {
			return nil, 0, w.errorf(c, "expected '{' after catch")
		}
		handler := &types.Statement{Kind: types.StmtCatch, Line: w.line(next), Label: w.text(next+2, c)}
		hbody, n, err := w.statement(c+1, end)
		if err != nil {
			return nil, 0, err
		}
		handler.Body = hbody
		st.Children = append(st.Children, handler)
		next = n
	}
	if len(st.Children) == 0 {
		return nil, 0, w.errorf(i, "try without catch")
	}
	return st, next, nil
}

// semicolon finds the ';' ending the statement that starts at i
func (w *tokenWalker) semicolon(i, end int) (int, error) {
	for k := i; k < end; k++ {
		switch w.tl.Str(k) {
		case ";":
			return k, nil
		case "(", "[", "{":
			j, err := w.link(k, end)
			if err != nil {
				return 0, err
			}
			k = j
		}
	}
	return 0, w.errorf(i, "missing ';'")
}

// caseColon finds the ':' ending a case label, skipping ternary pairs
func (w *tokenWalker) caseColon(i, end int) (int, error) {
	pending := 0
	for k := i; k < end; k++ {
		switch w.tl.Str(k) {
		case "?":
			pending++
		case ":":
			if pending == 0 {
				return k, nil
			}
			pending--
		case "(", "[", "{":
			j, err := w.link(k, end)
			if err != nil {
				return 0, err
			}
			k = j
		}
	}
	return 0, w.errorf(i, "case without ':'")
}

// expr scans the token range [start, end) for call sites, logical branches
// and lambdas
func (w *tokenWalker) expr(start, end int) (exprInfo, error) {
	var info exprInfo
	for k := start; k < end; k++ {
		s := w.tl.Str(k)
		switch {
		case isLogicalOp(s):
			info.logical++
		case s == "{" && w.lambdaIntroducer(k):
			j, err := w.link(k, end)
			if err != nil {
				return info, err
			}
			lambda, err := w.lambda(k, j)
			if err != nil {
				return info, err
			}
			info.lambdas = append(info.lambdas, lambda)
			k = j
		case w.isFunctionCall(k):
			info.calls = append(info.calls, types.Call{Name: s, Line: w.line(k)})
		}
	}
	return info, nil
}

func (w *tokenWalker) lambda(open, close int) (*types.Statement, error) {
	children, err := w.block(open+1, close)
	if err != nil {
		return nil, err
	}
	st := &types.Statement{
		Kind:     types.StmtLambda,
		Line:     w.line(open),
		Children: children,
		Missing:  !w.lambdas[open],
	}
	if st.Missing {
		w.conditions = append(w.conditions, types.Condition{
			Kind:     types.ConditionMissingLambda,
			Function: w.function,
			File:     w.file,
			Line:     st.Line,
			Message:  "lambda body is not part of the dump; its statements are attributed to the enclosing function",
		})
	}
	return st, nil
}

// lambdaIntroducer reports whether the '{' at k opens a lambda body:
// `[...] {`, `[...] (...) specifiers {` or `[...] (...) -> T {`. A capture
// list cannot follow a name or a closing bracket, which tells it apart from
// the brace initializer of an array such as `int a[3] {1, 2, 3}`.
func (w *tokenWalker) lambdaIntroducer(k int) bool {
	j := k - 1
	for j >= 0 {
		if _, ok := lambdaSpecifiers[w.tl.Str(j)]; !ok {
			break
		}
		j--
	}
	if arrow := w.trailingReturn(j); arrow >= 0 {
		j = arrow - 1
	}
	if w.tl.Str(j) == ")" {
		open := w.tl.Links[j]
		if open < 0 {
			return false
		}
		j = open - 1
		for j >= 0 {
			if _, ok := lambdaSpecifiers[w.tl.Str(j)]; !ok {
				break
			}
			j--
		}
	}
	if w.tl.Str(j) != "]" {
		return false
	}
	open := w.tl.Links[j]
	if open < 0 || open >= j {
		return false
	}
	return startsLambda(w.tl.Str(open - 1))
}

// startsLambda reports whether a '[' preceded by prev can open a capture list
func startsLambda(prev string) bool {
	switch prev {
	case "", "return", "throw", "co_return", "co_yield":
		return true
	case "]", ")":
		return false
	}
	r, _ := utf8.DecodeRuneInString(prev)
	return r != '_' && r != '"' && r != '\'' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// trailingReturn returns the index of a "->" that ends at j, or -1
func (w *tokenWalker) trailingReturn(j int) int {
	for k := j; k >= 0 && j-k < 8; k-- {
		s := w.tl.Str(k)
		switch {
		case s == "->":
			if p := w.tl.Str(k - 1); p == ")" || p == "]" {
				return k
			}
			return -1
		case isName(s), s == "::", s == "*", s == "&", s == "<", s == ">", s == ",":
			continue
		default:
			return -1
		}
	}
	return -1
}

// isFunctionCall mirrors the dump convention: a name followed by "(" whose
// AST parent is that parenthesis
func (w *tokenWalker) isFunctionCall(k int) bool {
	s := w.tl.Str(k)
	if !isName(s) || isKeyword(s) || w.tl.Str(k+1) != "(" {
		return false
	}
	if w.tl.HasAST() {
		return w.tl.Tokens[k].AstParent == w.tl.Tokens[k+1].ID
	}
	prev := w.tl.Str(k - 1)
	if _, decl := declKeywords[prev]; decl {
		return false
	}
	switch prev {
	case ".", "->", "::":
		return false
	}
	return !isName(prev) || isKeyword(prev)
}

func (w *tokenWalker) text(start, end int) string {
	parts := make([]string, 0, end-start)
	for k := start; k < end; k++ {
		parts = append(parts, w.tl.Str(k))
	}
	return strings.Join(parts, " ")
}

func (info exprInfo) apply(st *types.Statement) {
	st.Calls = append(st.Calls, info.calls...)
	st.LogicalOps += info.logical
	st.Children = append(st.Children, info.lambdas...)
}
