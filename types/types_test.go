package types_test

import (
	"encoding/json"
	"testing"

	"github.com/TFMV/hismetrics/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricKind(t *testing.T) {
	tests := []struct {
		input string
		want  types.MetricKind
		ok    bool
	}{
		{"RETURN", types.MetricReturns, true},
		{"his-return", types.MetricReturns, true},
		{" HIS-STCYC ", types.MetricCyclomatic, true},
		{"nrecur", types.MetricRecursion, true},
		{"HIS-COMF", types.MetricComf, true},
		{"vocf", types.MetricVocf, true},
		{"HIS-LINES", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := types.ParseMetricKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetricKindText(t *testing.T) {
	assert.Equal(t, "HIS-LEVEL", types.MetricNesting.String())
	assert.Equal(t, "Depth of nesting of a function", types.MetricNesting.Description())
	assert.Len(t, types.AllMetricKinds(), 12)

	var k types.MetricKind
	require.NoError(t, k.UnmarshalText([]byte("his-path")))
	assert.Equal(t, types.MetricPaths, k)
	assert.Error(t, k.UnmarshalText([]byte("LINES")))

	_, err := types.MetricKind(99).MarshalText()
	assert.Error(t, err)
}

func TestRange(t *testing.T) {
	r := types.Range{Min: 1, Max: 5}
	assert.True(t, r.Contains(1))
	assert.True(t, r.Contains(5))
	assert.False(t, r.Contains(0))
	assert.False(t, r.Contains(6))
	assert.Equal(t, "1-5", r.String())

	open := types.Range{Min: 20, Max: types.Unbounded}
	assert.True(t, open.Contains(1000))
	assert.False(t, open.Contains(19))
	assert.Equal(t, ">=20", open.String())
}

func TestParseAnnotations(t *testing.T) {
	tests := []struct {
		name    string
		comment string
		want    []types.Annotation
	}{
		{
			name:    "single",
			comment: "// HIS-RETURN",
			want:    []types.Annotation{{File: "f.c", Line: 4, ID: "HIS-RETURN"}},
		},
		{
			name:    "several",
			comment: "//HIS-GOTO and HIS-LEVEL expected",
			want: []types.Annotation{
				{File: "f.c", Line: 4, ID: "HIS-GOTO"},
				{File: "f.c", Line: 4, ID: "HIS-LEVEL"},
			},
		},
		{name: "todo", comment: "// TODO HIS-RETURN"},
		{name: "block comment", comment: "/* HIS-RETURN */"},
		{name: "no annotation", comment: "// plain comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types.ParseAnnotations("f.c", 4, tt.comment))
		})
	}
}

func TestStatementWalk(t *testing.T) {
	tree := &types.Statement{Kind: types.StmtBlock, Children: []*types.Statement{
		{Kind: types.StmtIf, Line: 2,
			Body: &types.Statement{Kind: types.StmtReturn, Line: 3},
			Else: &types.Statement{Kind: types.StmtGoto, Line: 4}},
		{Kind: types.StmtLambda, Line: 5, Children: []*types.Statement{{Kind: types.StmtReturn, Line: 6}}},
	}}

	var lines []int
	tree.Walk(func(s *types.Statement) bool {
		lines = append(lines, s.Line)
		return s.Kind != types.StmtLambda
	})
	assert.Equal(t, []int{0, 2, 3, 4, 5}, lines)
}

func TestJSONNames(t *testing.T) {
	data, err := json.Marshal(types.MetricResult{Kind: types.MetricGoto, Verdict: types.VerdictFail})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"GOTO"`)
	assert.Contains(t, string(data), `"verdict":"fail"`)

	data, err = json.Marshal(&types.Statement{Kind: types.StmtDoWhile})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"do-while"`)
}

func TestFunctionRecordKey(t *testing.T) {
	fn := &types.FunctionRecord{Name: "main", File: "m.c", Line: 10}
	assert.Equal(t, "m.c:10:main", fn.Key())

	fe := types.FunctionError{File: "m.c", Function: "main", Line: 10, Message: "boom"}
	assert.Equal(t, "m.c:10: main: boom", fe.Error())
	assert.Equal(t, "m.c: boom", types.FunctionError{File: "m.c", Message: "boom"}.Error())
}
