package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"go.uber.org/zap"

	"github.com/TFMV/hismetrics/types"
)

// IsSource reports whether path has a C or C++ source extension
func IsSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h", ".cc", ".cpp", ".cxx", ".hh", ".hpp", ".hxx":
		return true
	}
	return false
}

func language(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c", ".h":
		return c.GetLanguage()
	default:
		return cpp.GetLanguage()
	}
}

// ParseSourceFile reads path and extracts its function definitions
func (p *Parser) ParseSourceFile(ctx context.Context, path string) (types.FileAnalysis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.FileAnalysis{Path: path}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return p.ParseSource(ctx, path, content)
}

// ParseSource extracts function definitions from C or C++ source text using
// tree-sitter. Functions whose subtree contains syntax errors are reported as
// errors and skipped.
func (p *Parser) ParseSource(ctx context.Context, path string, content []byte) (types.FileAnalysis, error) {
	fa := types.FileAnalysis{Path: path}

	// a parser instance is not safe for concurrent use
	sp := sitter.NewParser()
	sp.SetLanguage(language(path))
	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return fa, fmt.Errorf("%w: tree-sitter parse of %s: %v", ErrExtraction, path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return fa, fmt.Errorf("%w: %s: empty syntax tree", ErrExtraction, path)
	}

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "comment":
				fa.Annotations = append(fa.Annotations,
					types.ParseAnnotations(path, int(child.StartPoint().Row)+1, child.Content(content))...)
			case "function_definition":
				rec, err := extractDefinition(child, content, path)
				if err != nil {
					fe := types.FunctionError{File: path, Line: int(child.StartPoint().Row) + 1, Message: err.Error()}
					if rec != nil {
						fe.Function, fe.Line = rec.Name, rec.Line
					}
					p.logger.Warn("failed to extract function",
						zap.String("file", path),
						zap.String("function", fe.Function),
						zap.Int("line", fe.Line),
						zap.Error(err))
					fa.Errors = append(fa.Errors, fe)
				} else {
					fa.Functions = append(fa.Functions, rec)
				}
				collectComments(child, content, path, &fa)
			default:
				visit(child)
			}
		}
	}
	visit(root)
	tallySource(root, content, path, &fa)

	p.logger.Debug("extracted source",
		zap.String("path", path),
		zap.Int("functions", len(fa.Functions)),
		zap.Int("errors", len(fa.Errors)))
	return fa, nil
}

func collectComments(n *sitter.Node, content []byte, path string, fa *types.FileAnalysis) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			fa.Annotations = append(fa.Annotations,
				types.ParseAnnotations(path, int(child.StartPoint().Row)+1, child.Content(content))...)
			continue
		}
		collectComments(child, content, path, fa)
	}
}

// extractDefinition builds the record of a function_definition node. On
// failure the returned record, when not nil, only carries name and line.
func extractDefinition(n *sitter.Node, src []byte, path string) (*types.FunctionRecord, error) {
	fd := functionDeclarator(n.ChildByFieldName("declarator"))
	if fd == nil {
		return nil, fmt.Errorf("%w: definition without a function declarator", ErrExtraction)
	}
	nameNode := fd.ChildByFieldName("declarator")
	name := declaredName(nameNode, src)
	if name == "" {
		return nil, fmt.Errorf("%w: function without a name", ErrExtraction)
	}
	rec := &types.FunctionRecord{Name: name, File: path, Line: int(nameNode.StartPoint().Row) + 1}

	if n.HasError() {
		return rec, fmt.Errorf("%w: syntax error in %s", ErrExtraction, name)
	}
	body := n.ChildByFieldName("body")
	if body == nil || body.Type() != "compound_statement" {
		return rec, fmt.Errorf("%w: %s has no body", ErrExtraction, name)
	}

	w := &sourceWalker{src: src}
	children, err := w.block(body)
	if err != nil {
		return rec, err
	}
	rec.Body = &types.Statement{Kind: types.StmtBlock, Line: int(body.StartPoint().Row) + 1, Children: children}
	rec.Params = parameters(fd.ChildByFieldName("parameters"), src)
	rec.Callees = collectCallees(rec.Body)
	return rec, nil
}

// functionDeclarator unwraps pointer and reference declarators
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator", "attributed_declarator":
			next := n.ChildByFieldName("declarator")
			if next == nil && n.NamedChildCount() > 0 {
				next = n.NamedChild(int(n.NamedChildCount()) - 1)
			}
			n = next
		default:
			return nil
		}
	}
	return nil
}

// declaredName returns the unqualified name of a declarator
func declaredName(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "field_identifier", "destructor_name", "operator_name", "type_identifier":
		return n.Content(src)
	case "qualified_identifier", "template_function":
		return declaredName(n.ChildByFieldName("name"), src)
	case "pointer_declarator", "reference_declarator", "array_declarator", "init_declarator", "parenthesized_declarator":
		if d := n.ChildByFieldName("declarator"); d != nil {
			return declaredName(d, src)
		}
		if n.NamedChildCount() > 0 {
			return declaredName(n.NamedChild(int(n.NamedChildCount())-1), src)
		}
	}
	return ""
}

func parameters(list *sitter.Node, src []byte) []types.Parameter {
	params := []types.Parameter{}
	if list == nil {
		return params
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		pn := list.NamedChild(i)
		switch pn.Type() {
		case "parameter_declaration", "optional_parameter_declaration":
		default:
			continue
		}
		param := types.Parameter{}
		if t := pn.ChildByFieldName("type"); t != nil {
			param.Type = t.Content(src)
		}
		d := pn.ChildByFieldName("declarator")
		if d == nil && param.Type == "void" && list.NamedChildCount() == 1 {
			return params
		}
		param.Name = declaredName(d, src)
		params = append(params, param)
	}
	return params
}

// sourceWalker maps tree-sitter statements onto the Statement model
type sourceWalker struct {
	src []byte
}

func (w *sourceWalker) errorf(n *sitter.Node, format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrExtraction, int(n.StartPoint().Row)+1, fmt.Sprintf(format, args...))
}

func (w *sourceWalker) block(n *sitter.Node) ([]*types.Statement, error) {
	var out []*types.Statement
	for i := 0; i < int(n.NamedChildCount()); i++ {
		stmts, err := w.statements(n.NamedChild(i))
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// statements converts one node. Case labels, labels and preprocessor blocks
// expand into the statements they contain.
func (w *sourceWalker) statements(n *sitter.Node) ([]*types.Statement, error) {
	switch n.Type() {
	case "comment":
		return nil, nil

	case "case_statement":
		st := &types.Statement{Kind: types.StmtCase, Line: line(n)}
		value := n.ChildByFieldName("value")
		if value == nil {
			st.Kind = types.StmtDefault
		} else {
			st.Label = value.Content(w.src)
			if err := w.scan(value, st); err != nil {
				return nil, err
			}
		}
		out := []*types.Statement{st}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if value != nil && sameNode(child, value) {
				continue
			}
			stmts, err := w.statements(child)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
		}
		return out, nil

	case "labeled_statement":
		label := n.ChildByFieldName("label")
		if label == nil {
			return nil, w.errorf(n, "label without a name")
		}
		out := []*types.Statement{{Kind: types.StmtLabel, Line: line(n), Label: label.Content(w.src)}}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if sameNode(child, label) {
				continue
			}
			stmts, err := w.statements(child)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
		}
		return out, nil

	case "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
		var out []*types.Statement
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if cond := n.ChildByFieldName("condition"); cond != nil && sameNode(child, cond) {
				continue
			}
			if name := n.ChildByFieldName("name"); name != nil && sameNode(child, name) {
				continue
			}
			stmts, err := w.statements(child)
			if err != nil {
				return nil, err
			}
			out = append(out, stmts...)
		}
		return out, nil

	case "preproc_call", "preproc_def", "preproc_function_def", "preproc_include":
		return nil, nil
	}

	st, err := w.statement(n)
	if err != nil {
		return nil, err
	}
	return []*types.Statement{st}, nil
}

// single converts a controlled statement
func (w *sourceWalker) single(n *sitter.Node) (*types.Statement, error) {
	if n == nil {
		return nil, nil
	}
	stmts, err := w.statements(n)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 1 {
		return stmts[0], nil
	}
	return &types.Statement{Kind: types.StmtBlock, Line: line(n), Children: stmts}, nil
}

func (w *sourceWalker) statement(n *sitter.Node) (*types.Statement, error) {
	st := &types.Statement{Line: line(n)}
	var err error

	switch n.Type() {
	case "compound_statement":
		st.Kind = types.StmtBlock
		st.Children, err = w.block(n)

	case "expression_statement":
		if n.NamedChildCount() == 0 {
			st.Kind = types.StmtEmpty
			return st, nil
		}
		st.Kind = types.StmtExpression
		err = w.scanChildren(n, st, nil)

	case "declaration", "type_definition", "alias_declaration", "using_declaration",
		"static_assert_declaration", "namespace_alias_definition":
		st.Kind = types.StmtDeclaration
		err = w.scanChildren(n, st, nil)

	case "if_statement":
		st.Kind = types.StmtIf
		err = w.controlled(n, st, "condition", "consequence")
		if err == nil {
			if alt := n.ChildByFieldName("alternative"); alt != nil {
				if alt.Type() == "else_clause" && alt.NamedChildCount() > 0 {
					alt = alt.NamedChild(int(alt.NamedChildCount()) - 1)
				}
				var els *types.Statement
				els, err = w.single(alt)
				st.Else = flattenElseIf(els)
			}
		}

	case "for_statement", "for_range_loop":
		st.Kind = types.StmtFor
		body := n.ChildByFieldName("body")
		if body == nil {
			return nil, w.errorf(n, "for without body")
		}
		if err = w.scanChildren(n, st, body); err == nil {
			st.Body, err = w.single(body)
		}

	case "while_statement":
		st.Kind = types.StmtWhile
		err = w.controlled(n, st, "condition", "body")

	case "do_statement":
		st.Kind = types.StmtDoWhile
		err = w.controlled(n, st, "condition", "body")

	case "switch_statement":
		st.Kind = types.StmtSwitch
		err = w.controlled(n, st, "condition", "body")

	case "return_statement", "co_return_statement":
		st.Kind = types.StmtReturn
		err = w.scanChildren(n, st, nil)

	case "goto_statement":
		st.Kind = types.StmtGoto
		label := n.ChildByFieldName("label")
		if label == nil {
			return nil, w.errorf(n, "goto without label")
		}
		st.Label = label.Content(w.src)

	case "break_statement":
		st.Kind = types.StmtBreak

	case "continue_statement":
		st.Kind = types.StmtContinue

	case "try_statement":
		st.Kind = types.StmtTry
		body := n.ChildByFieldName("body")
		if body == nil {
			return nil, w.errorf(n, "try without body")
		}
		if st.Body, err = w.single(body); err != nil {
			return nil, err
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			clause := n.NamedChild(i)
			if clause.Type() != "catch_clause" {
				continue
			}
			handler := &types.Statement{Kind: types.StmtCatch, Line: line(clause)}
			if params := clause.ChildByFieldName("parameters"); params != nil {
				handler.Label = strings.Trim(params.Content(w.src), "()")
			}
			hbody := clause.ChildByFieldName("body")
			if hbody == nil {
				return nil, w.errorf(clause, "catch without body")
			}
			if handler.Body, err = w.single(hbody); err != nil {
				return nil, err
			}
			st.Children = append(st.Children, handler)
		}
		if len(st.Children) == 0 {
			return nil, w.errorf(n, "try without catch")
		}

	case "attributed_statement":
		if n.NamedChildCount() == 0 {
			return nil, w.errorf(n, "empty attributed statement")
		}
		return w.single(n.NamedChild(int(n.NamedChildCount()) - 1))

	case "ERROR":
		return nil, w.errorf(n, "syntax error")

	default:
		st.Kind = types.StmtExpression
		err = w.scan(n, st)
	}

	if err != nil {
		return nil, err
	}
	return st, nil
}

// controlled fills a control statement from its condition and body fields
func (w *sourceWalker) controlled(n *sitter.Node, st *types.Statement, condField, bodyField string) error {
	body := n.ChildByFieldName(bodyField)
	if body == nil {
		return w.errorf(n, "%s without body", st.Kind)
	}
	if cond := n.ChildByFieldName(condField); cond != nil {
		if err := w.scan(cond, st); err != nil {
			return err
		}
	}
	var err error
	st.Body, err = w.single(body)
	return err
}

// scanChildren scans every named child of n except skip
func (w *sourceWalker) scanChildren(n *sitter.Node, st *types.Statement, skip *sitter.Node) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if skip != nil && sameNode(child, skip) {
			continue
		}
		if err := w.scan(child, st); err != nil {
			return err
		}
	}
	return nil
}

// scan records the call sites, logical branches and lambdas of an expression
func (w *sourceWalker) scan(n *sitter.Node, st *types.Statement) error {
	switch n.Type() {
	case "lambda_expression":
		body := n.ChildByFieldName("body")
		if body == nil {
			return w.errorf(n, "lambda without body")
		}
		children, err := w.block(body)
		if err != nil {
			return err
		}
		st.Children = append(st.Children, &types.Statement{Kind: types.StmtLambda, Line: line(body), Children: children})
		return nil

	case "call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil {
			if name := calleeName(fn, w.src); name != "" && !isKeyword(name) {
				st.Calls = append(st.Calls, types.Call{Name: name, Line: line(fn)})
			}
		}

	case "binary_expression":
		if op := n.ChildByFieldName("operator"); op != nil {
			switch op.Type() {
			case "&&", "||", "and", "or":
				st.LogicalOps++
			}
		}

	case "conditional_expression":
		st.LogicalOps++
	}
	return w.scanChildren(n, st, nil)
}

// calleeName returns the called name for direct calls. Member, qualified and
// indirect calls have no callee name.
func calleeName(fn *sitter.Node, src []byte) string {
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "template_function":
		if name := fn.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			return name.Content(src)
		}
	}
	return ""
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
