// Package dump decodes the XML dump written by `cppcheck --dump`.
package dump

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/TFMV/hismetrics/types"
)

// File is the root <dumps> element
type File struct {
	XMLName        xml.Name        `xml:"dumps"`
	RawTokens      RawTokens       `xml:"rawtokens"`
	Configurations []Configuration `xml:"dump"`
}

// RawTokens holds the unpreprocessed token stream, comments included
type RawTokens struct {
	Files  []SourceFile `xml:"file"`
	Tokens []RawToken   `xml:"tok"`
}

type SourceFile struct {
	Index int    `xml:"index,attr"`
	Name  string `xml:"name,attr"`
}

type RawToken struct {
	File      string `xml:"file,attr"`
	FileIndex string `xml:"fileIndex,attr"`
	Line      int    `xml:"linenr,attr"`
	Column    int    `xml:"column,attr"`
	Str       string `xml:"str,attr"`
}

// Configuration is one preprocessor configuration of the translation unit
type Configuration struct {
	Name      string     `xml:"cfg,attr"`
	Tokens    []Token    `xml:"tokenlist>token"`
	Scopes    []Scope    `xml:"scopes>scope"`
	Functions []Function `xml:"functionList>function"`
	Variables []Variable `xml:"variables>var"`
}

type Token struct {
	ID        string `xml:"id,attr"`
	Str       string `xml:"str,attr"`
	File      string `xml:"file,attr"`
	FileIndex string `xml:"fileIndex,attr"`
	Line      int    `xml:"linenr,attr"`
	Column    int    `xml:"column,attr"`
	Scope     string `xml:"scope,attr"`
	Link      string `xml:"link,attr"`
	AstParent string `xml:"astParent,attr"`
	Function  string `xml:"function,attr"`
	Variable  string `xml:"variable,attr"`
}

type Scope struct {
	ID        string     `xml:"id,attr"`
	Type      string     `xml:"type,attr"`
	ClassName string     `xml:"className,attr"`
	BodyStart string     `xml:"bodyStart,attr"`
	BodyEnd   string     `xml:"bodyEnd,attr"`
	NestedIn  string     `xml:"nestedIn,attr"`
	Function  string     `xml:"function,attr"`
	Functions []Function `xml:"functionList>function"`
}

type Function struct {
	ID       string `xml:"id,attr"`
	Token    string `xml:"token,attr"`
	TokenDef string `xml:"tokenDef,attr"`
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	Args     []Arg  `xml:"arg"`
}

type Arg struct {
	Nr       int    `xml:"nr,attr"`
	Variable string `xml:"variable,attr"`
}

type Variable struct {
	ID             string `xml:"id,attr"`
	NameToken      string `xml:"nameToken,attr"`
	TypeStartToken string `xml:"typeStartToken,attr"`
	TypeEndToken   string `xml:"typeEndToken,attr"`
}

// Load reads and decodes a dump file
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump %s: %w", path, err)
	}
	defer f.Close()

	d, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dump %s: %w", path, err)
	}
	return d, nil
}

// Decode reads a dump from r
func Decode(r io.Reader) (*File, error) {
	var d File
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, err
	}
	if len(d.Configurations) == 0 {
		return nil, fmt.Errorf("dump contains no configuration")
	}
	return &d, nil
}

// FileName resolves a token's file from either the file or fileIndex attribute
func (d *File) FileName(file, fileIndex string) string {
	if file != "" {
		return file
	}
	idx, err := strconv.Atoi(fileIndex)
	if err != nil {
		return ""
	}
	for _, sf := range d.RawTokens.Files {
		if sf.Index == idx {
			return sf.Name
		}
	}
	return ""
}

// Annotations returns the expectations written in // comments
func (d *File) Annotations() []types.Annotation {
	var out []types.Annotation
	for _, tok := range d.RawTokens.Tokens {
		out = append(out, types.ParseAnnotations(d.FileName(tok.File, tok.FileIndex), tok.Line, tok.Str)...)
	}
	return out
}
