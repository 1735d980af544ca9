// Package parser turns cppcheck dumps and C/C++ sources into FunctionRecords.
package parser

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/TFMV/hismetrics/dump"
	"github.com/TFMV/hismetrics/types"
)

// ErrExtraction wraps every failure to turn input into function records
var ErrExtraction = errors.New("extraction failed")

type Parser struct {
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// ParseDump loads a cppcheck dump and extracts its function definitions.
// The error is only set when the file itself cannot be read or decoded.
func (p *Parser) ParseDump(path string) (types.FileAnalysis, error) {
	d, err := dump.Load(path)
	if err != nil {
		return types.FileAnalysis{Path: path}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return p.ParseDumpFile(path, d), nil
}

// ParseDumpFile extracts every function of every configuration in d. A
// function seen in several configurations is kept from the first one.
func (p *Parser) ParseDumpFile(path string, d *dump.File) types.FileAnalysis {
	fa := types.FileAnalysis{Path: path, Annotations: d.Annotations()}
	seen := make(map[string]bool)

	for ci := range d.Configurations {
		cfg := &d.Configurations[ci]
		tl := d.Index(cfg)
		if ci == 0 {
			tallyDump(d, tl, &fa)
		}

		functions := make(map[string]*dump.Function)
		for i := range cfg.Functions {
			functions[cfg.Functions[i].ID] = &cfg.Functions[i]
		}
		lambdas := make(map[int]bool)
		for si := range cfg.Scopes {
			sc := &cfg.Scopes[si]
			for i := range sc.Functions {
				functions[sc.Functions[i].ID] = &sc.Functions[i]
			}
			if sc.Type == "Lambda" {
				if i, ok := tl.Lookup(sc.BodyStart); ok {
					lambdas[i] = true
				}
			}
		}
		variables := make(map[string]*dump.Variable, len(cfg.Variables))
		for i := range cfg.Variables {
			variables[cfg.Variables[i].ID] = &cfg.Variables[i]
		}

		for si := range cfg.Scopes {
			sc := &cfg.Scopes[si]
			if sc.Type != "Function" {
				continue
			}
			ex := &dumpExtractor{tl: tl, scope: sc, fn: functions[sc.Function], variables: variables, lambdas: lambdas}
			name, file, line := ex.position()
			key := fmt.Sprintf("%s:%d:%s", file, line, name)
			if seen[key] {
				continue
			}
			seen[key] = true

			rec, err := ex.extract(name, file, line)
			if err != nil {
				p.logger.Warn("failed to extract function",
					zap.String("file", file),
					zap.String("function", name),
					zap.Int("line", line),
					zap.Error(err))
				fa.Errors = append(fa.Errors, types.FunctionError{
					File:     file,
					Function: name,
					Line:     line,
					Message:  err.Error(),
				})
				continue
			}
			fa.Functions = append(fa.Functions, rec)
		}
	}

	p.logger.Debug("extracted dump",
		zap.String("path", path),
		zap.Int("configurations", len(d.Configurations)),
		zap.Int("functions", len(fa.Functions)),
		zap.Int("errors", len(fa.Errors)))
	return fa
}

type dumpExtractor struct {
	tl        *dump.TokenList
	scope     *dump.Scope
	fn        *dump.Function
	variables map[string]*dump.Variable
	lambdas   map[int]bool
}

// position returns the function's name and the location of its definition
func (ex *dumpExtractor) position() (string, string, int) {
	name := ex.scope.ClassName
	anchor := ex.scope.BodyStart
	if ex.fn != nil {
		if ex.fn.Name != "" {
			name = ex.fn.Name
		}
		switch {
		case ex.fn.TokenDef != "":
			anchor = ex.fn.TokenDef
		case ex.fn.Token != "":
			anchor = ex.fn.Token
		}
	}
	i, ok := ex.tl.Lookup(anchor)
	if !ok {
		return name, "", 0
	}
	return name, ex.tl.Files[i], ex.tl.Tokens[i].Line
}

func (ex *dumpExtractor) extract(name, file string, line int) (*types.FunctionRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: function scope without a name", ErrExtraction)
	}
	start, ok := ex.tl.Lookup(ex.scope.BodyStart)
	if !ok || ex.tl.Str(start) != "{" {
		return nil, fmt.Errorf("%w: body start token %q not found", ErrExtraction, ex.scope.BodyStart)
	}
	end, ok := ex.tl.Lookup(ex.scope.BodyEnd)
	if !ok || ex.tl.Str(end) != "}" || ex.tl.Links[start] != end {
		return nil, fmt.Errorf("%w: body of %s is not a balanced block", ErrExtraction, name)
	}

	w := &tokenWalker{tl: ex.tl, lambdas: ex.lambdas, function: name, file: file}
	children, err := w.block(start+1, end)
	if err != nil {
		return nil, err
	}
	params, err := ex.params(start)
	if err != nil {
		return nil, err
	}

	body := &types.Statement{Kind: types.StmtBlock, Line: ex.tl.Tokens[start].Line, Children: children}
	return &types.FunctionRecord{
		Name:       name,
		File:       file,
		Line:       line,
		Params:     params,
		Body:       body,
		Callees:    collectCallees(body),
		Conditions: w.conditions,
	}, nil
}

// params reads the argument list from the dump, falling back to the tokens of
// the signature when the function element is missing
func (ex *dumpExtractor) params(bodyStart int) ([]types.Parameter, error) {
	if ex.fn != nil {
		args := append([]dump.Arg(nil), ex.fn.Args...)
		sort.Slice(args, func(i, j int) bool { return args[i].Nr < args[j].Nr })
		params := make([]types.Parameter, 0, len(args))
		for _, a := range args {
			params = append(params, ex.param(a))
		}
		return params, nil
	}

	closeParen := -1
	for k := bodyStart - 1; k >= 0 && bodyStart-k <= 16; k-- {
		if ex.tl.Str(k) == ")" {
			closeParen = k
			break
		}
	}
	if closeParen < 0 || ex.tl.Links[closeParen] < 0 {
		return nil, fmt.Errorf("%w: parameter list not found", ErrExtraction)
	}
	open := ex.tl.Links[closeParen]
	if closeParen == open+1 || (closeParen == open+2 && ex.tl.Str(open+1) == "void") {
		return []types.Parameter{}, nil
	}

	var params []types.Parameter
	var text []string
	flush := func() {
		params = append(params, types.Parameter{Type: strings.Join(text, " ")})
		text = nil
	}
	for k := open + 1; k < closeParen; k++ {
		switch s := ex.tl.Str(k); s {
		case ",":
			flush()
		case "(", "[", "{":
			if j := ex.tl.Links[k]; j > k && j < closeParen {
				k = j
			}
			text = append(text, s)
		default:
			text = append(text, s)
		}
	}
	flush()
	return params, nil
}

func (ex *dumpExtractor) param(a dump.Arg) types.Parameter {
	v, ok := ex.variables[a.Variable]
	if !ok {
		return types.Parameter{}
	}
	var param types.Parameter
	if i, ok := ex.tl.Lookup(v.NameToken); ok {
		param.Name = ex.tl.Str(i)
	}
	from, okFrom := ex.tl.Lookup(v.TypeStartToken)
	to, okTo := ex.tl.Lookup(v.TypeEndToken)
	if okFrom && okTo && from <= to {
		parts := make([]string, 0, to-from+1)
		for k := from; k <= to; k++ {
			parts = append(parts, ex.tl.Str(k))
		}
		param.Type = strings.Join(parts, " ")
	}
	return param
}
