package parser

import (
	"sort"
	"unicode"

	"github.com/TFMV/hismetrics/types"
)

// C/C++ keywords that are never call targets even when followed by "("
var keywords = map[string]struct{}{
	"auto": {}, "break": {}, "case": {}, "char": {}, "const": {}, "continue": {},
	"default": {}, "do": {}, "double": {}, "else": {}, "enum": {}, "extern": {},
	"float": {}, "for": {}, "goto": {}, "if": {}, "int": {}, "long": {},
	"register": {}, "return": {}, "short": {}, "signed": {}, "sizeof": {},
	"static": {}, "struct": {}, "switch": {}, "typedef": {}, "union": {},
	"unsigned": {}, "void": {}, "volatile": {}, "while": {},
	// C++
	"alignof": {}, "catch": {}, "decltype": {}, "delete": {}, "new": {},
	"noexcept": {}, "static_assert": {}, "throw": {}, "try": {}, "typeid": {},
	"static_cast": {}, "dynamic_cast": {}, "const_cast": {}, "reinterpret_cast": {},
	"_Alignof": {}, "_Generic": {}, "_Static_assert": {},
}

// tokens that start a declaration statement
var declKeywords = map[string]struct{}{
	"auto": {}, "bool": {}, "char": {}, "const": {}, "double": {}, "enum": {},
	"extern": {}, "float": {}, "int": {}, "long": {}, "register": {},
	"short": {}, "signed": {}, "static": {}, "struct": {}, "typedef": {},
	"union": {}, "unsigned": {}, "void": {}, "volatile": {}, "size_t": {},
	"constexpr": {}, "using": {},
}

// specifiers allowed between a lambda's parameter list and its body
var lambdaSpecifiers = map[string]struct{}{
	"mutable": {}, "constexpr": {}, "consteval": {}, "noexcept": {}, "const": {},
}

func isKeyword(s string) bool {
	_, ok := keywords[s]
	return ok
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func isLogicalOp(s string) bool {
	return s == "&&" || s == "||" || s == "?"
}

// collectCallees returns the sorted distinct call targets below body
func collectCallees(body *types.Statement) []string {
	seen := make(map[string]struct{})
	body.Walk(func(s *types.Statement) bool {
		for _, c := range s.Calls {
			seen[c.Name] = struct{}{}
		}
		return true
	})
	callees := make([]string, 0, len(seen))
	for name := range seen {
		callees = append(callees, name)
	}
	sort.Strings(callees)
	return callees
}

// flattenElseIf turns `else { if ... }` into `else if ...`
func flattenElseIf(els *types.Statement) *types.Statement {
	if els != nil && els.Kind == types.StmtBlock && len(els.Children) == 1 && els.Children[0].Kind == types.StmtIf {
		return els.Children[0]
	}
	return els
}

// FindFunction returns the first record with the given name, or nil
func FindFunction(functions []*types.FunctionRecord, name string) *types.FunctionRecord {
	for _, fn := range functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
