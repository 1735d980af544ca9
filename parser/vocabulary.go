package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/TFMV/hismetrics/dump"
	"github.com/TFMV/hismetrics/types"
)

// punctuators counted as operators. Closing brackets are counted through
// their opening one.
var operators = map[string]struct{}{
	"[": {}, "(": {}, "{": {}, ".": {}, "->": {}, "++": {}, "--": {}, "&": {},
	"*": {}, "+": {}, "-": {}, "~": {}, "!": {}, "/": {}, "%": {}, "<<": {},
	">>": {}, "<": {}, "<=": {}, ">": {}, ">=": {}, "==": {}, "!=": {}, "|": {},
	"^": {}, "&&": {}, "||": {}, "?": {}, ":": {}, "=": {}, "*=": {}, "/=": {},
	"%=": {}, "+=": {}, "-=": {}, "<<=": {}, ">>=": {}, "&=": {}, "^=": {},
	"|=": {}, ",": {}, ";": {}, "::": {},
}

func isClosing(s string) bool {
	return s == ")" || s == "]" || s == "}"
}

// commentLines counts the lines of a comment token. A block comment counts
// every line it spans.
func commentLines(s string) int {
	switch {
	case strings.HasPrefix(s, "//"):
		return 1
	case strings.HasPrefix(s, "/*"):
		return 1 + strings.Count(strings.TrimRight(s, "\n"), "\n")
	}
	return 0
}

// tallyDump fills the file level fields of fa: the comment lines come from
// the raw tokens and the vocabulary from tl, the token list of the first
// configuration
func tallyDump(d *dump.File, tl *dump.TokenList, fa *types.FileAnalysis) {
	raw := d.RawTokens.Tokens
	if len(raw) > 0 {
		fa.Source = d.FileName(raw[0].File, raw[0].FileIndex)
		fa.Line = raw[0].Line
	}
	for _, tok := range raw {
		fa.Comments += commentLines(tok.Str)
	}

	if fa.Source == "" && len(tl.Tokens) > 0 {
		fa.Source, fa.Line = tl.Files[0], tl.Tokens[0].Line
	}
	w := &tokenWalker{tl: tl}
	for k := range tl.Tokens {
		s := tl.Str(k)
		if isClosing(s) {
			continue
		}
		if _, ok := operators[s]; ok || isKeyword(s) || w.isFunctionCall(k) {
			fa.Vocabulary.AddOperator(s)
			continue
		}
		fa.Vocabulary.AddOperand(s)
	}
}

// literal node types counted as a single operand
var literals = map[string]struct{}{
	"string_literal": {}, "raw_string_literal": {}, "char_literal": {},
	"number_literal": {}, "system_lib_string": {},
}

// preprocessor lines that never reach a dump token list
var directives = map[string]struct{}{
	"preproc_include": {}, "preproc_def": {}, "preproc_function_def": {},
	"preproc_call": {},
}

// tallySource fills the file level fields of fa from a syntax tree
func tallySource(root *sitter.Node, src []byte, path string, fa *types.FileAnalysis) {
	fa.Source, fa.Line = path, 1
	if root.ChildCount() > 0 {
		fa.Line = line(root.Child(0))
	}

	var visit func(n *sitter.Node, call bool)
	visit = func(n *sitter.Node, call bool) {
		typ := n.Type()
		if _, ok := directives[typ]; ok {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if c := n.NamedChild(i); c.Type() == "comment" {
					fa.Comments += commentLines(c.Content(src))
				}
			}
			return
		}
		if typ == "comment" {
			fa.Comments += commentLines(n.Content(src))
			return
		}
		if _, ok := literals[typ]; ok {
			fa.Vocabulary.AddOperand(n.Content(src))
			return
		}
		if n.ChildCount() == 0 {
			s := n.Content(src)
			if s == "" || isClosing(s) || strings.HasPrefix(s, "#") {
				return
			}
			if _, ok := operators[s]; ok || isKeyword(s) || call {
				fa.Vocabulary.AddOperator(s)
				return
			}
			fa.Vocabulary.AddOperand(s)
			return
		}

		var callee *sitter.Node
		if typ == "call_expression" {
			callee = n.ChildByFieldName("function")
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			visit(child, callee != nil && child.Type() == "identifier" && sameNode(child, callee))
		}
	}
	visit(root, false)
}
