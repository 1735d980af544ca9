package analysis

import "github.com/TFMV/hismetrics/types"

type functionNode struct {
	name    string
	index   int
	lowlink int
	inStack bool
}

// DetectRecursion returns the names of functions that can reach themselves
// through the call graph of the analyzed functions. Callees that are not
// analyzed functions end the search.
func DetectRecursion(functions []*types.FunctionRecord) map[string]bool {
	callees := make(map[string][]string, len(functions))
	for _, fn := range functions {
		callees[fn.Name] = append(callees[fn.Name], fn.Callees...)
	}

	recursive := make(map[string]bool)
	index := 0
	stack := []string{}
	recData := map[string]*functionNode{}

	var tarjan func(caller string)
	tarjan = func(caller string) {
		rec := &functionNode{
			name:    caller,
			index:   index,
			lowlink: index,
			inStack: true,
		}
		recData[caller] = rec
		index++
		stack = append(stack, caller)

		for _, callee := range callees[caller] {
			if callee == caller {
				recursive[caller] = true
				continue
			}
			if _, analyzed := callees[callee]; !analyzed {
				continue
			}

			if data, found := recData[callee]; !found {
				tarjan(callee)
				rec.lowlink = min(rec.lowlink, recData[callee].lowlink)
			} else if data.inStack {
				rec.lowlink = min(rec.lowlink, data.index)
			}
		}

		if rec.lowlink == rec.index {
			var sccNodes []string
			for {
				n := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				recData[n].inStack = false
				sccNodes = append(sccNodes, n)
				if n == caller {
					break
				}
			}
			if len(sccNodes) > 1 {
				for _, n := range sccNodes {
					recursive[n] = true
				}
			}
		}
	}

	for _, fn := range functions {
		if _, found := recData[fn.Name]; !found {
			tarjan(fn.Name)
		}
	}

	return recursive
}

// CallerCounts maps every analyzed function name to the number of other
// functions that call it
func CallerCounts(functions []*types.FunctionRecord) map[string]int {
	callers := make(map[string]map[string]struct{})
	for _, fn := range functions {
		for _, callee := range fn.Callees {
			if callee == fn.Name {
				continue
			}
			if callers[callee] == nil {
				callers[callee] = make(map[string]struct{})
			}
			callers[callee][fn.Key()] = struct{}{}
		}
	}

	counts := make(map[string]int, len(functions))
	for _, fn := range functions {
		counts[fn.Name] = len(callers[fn.Name])
	}
	return counts
}
