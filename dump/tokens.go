package dump

// TokenList is an indexed view of a configuration's token list
type TokenList struct {
	Tokens []Token
	// Files holds the resolved file name of each token
	Files []string
	// Links holds the index of the matching bracket, or -1
	Links  []int
	byID   map[string]int
	hasAST bool
}

var closing = map[string]string{"(": ")", "[": "]", "{": "}"}

// Index builds a TokenList for cfg. Links missing from the dump are computed
// by bracket matching; unmatched brackets keep -1.
func (d *File) Index(cfg *Configuration) *TokenList {
	tl := &TokenList{
		Tokens: cfg.Tokens,
		Files:  make([]string, len(cfg.Tokens)),
		Links:  make([]int, len(cfg.Tokens)),
		byID:   make(map[string]int, len(cfg.Tokens)),
	}
	for i, tok := range cfg.Tokens {
		tl.byID[tok.ID] = i
		tl.Files[i] = d.FileName(tok.File, tok.FileIndex)
		tl.Links[i] = -1
		if tok.AstParent != "" {
			tl.hasAST = true
		}
	}

	var stack []int
	for i, tok := range cfg.Tokens {
		if tok.Link != "" {
			if j, ok := tl.byID[tok.Link]; ok {
				tl.Links[i] = j
				continue
			}
		}
		switch tok.Str {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			if closing[cfg.Tokens[open].Str] != tok.Str {
				continue
			}
			stack = stack[:len(stack)-1]
			if tl.Links[open] == -1 {
				tl.Links[open] = i
			}
			if tl.Links[i] == -1 {
				tl.Links[i] = open
			}
		}
	}
	return tl
}

// Lookup returns the index of the token with the given id
func (tl *TokenList) Lookup(id string) (int, bool) {
	i, ok := tl.byID[id]
	return i, ok
}

// Str returns the text of token i, or "" when i is out of range
func (tl *TokenList) Str(i int) string {
	if i < 0 || i >= len(tl.Tokens) {
		return ""
	}
	return tl.Tokens[i].Str
}

// HasAST reports whether the dump carries AST parent links
func (tl *TokenList) HasAST() bool {
	return tl.hasAST
}
