// Package syntaxcheck implements the Syntax component: extension-dispatched
// structural diagnostics run after every successful write or edit.
package syntaxcheck

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Diagnostic is one syntax problem, positioned for an agent to act on.
type Diagnostic struct {
	Line    int
	Column  int
	Snippet string
	Message string
}

// Check picks a grammar from path's extension and parses content. An
// unrecognized extension yields no diagnostics and no error — Syntax never
// fails the caller's write/edit.
func Check(path string, content []byte) []Diagnostic {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return checkGo(content)
	case ".json":
		return checkJSON(content)
	case ".yaml", ".yml":
		return checkYAML(content)
	case ".sh", ".bash":
		return checkBalanced(content, bashPairs)
	case ".py":
		return checkBalanced(content, bracketPairs)
	case ".ts", ".tsx", ".js", ".jsx":
		return checkBalanced(content, bracketPairs)
	case ".rs":
		return checkBalanced(content, bracketPairs)
	case ".c", ".h", ".cc", ".cpp", ".hpp":
		return checkBalanced(content, bracketPairs)
	case ".java":
		return checkBalanced(content, bracketPairs)
	case ".toml":
		return checkBalanced(content, bracketPairs)
	case ".md", ".markdown":
		return checkMarkdown(content)
	default:
		return nil
	}
}

// checkGo uses go/parser — the language's own frontend, not a hand-rolled
// grammar — so this is the one case where reaching for the standard library
// is the idiomatic choice rather than a fallback.
func checkGo(content []byte) []Diagnostic {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "", content, parser.AllErrors)
	if err == nil {
		return nil
	}
	var diags []Diagnostic
	if list, ok := err.(scanner.ErrorList); ok {
		for _, e := range list {
			diags = append(diags, Diagnostic{
				Line:    e.Pos.Line,
				Column:  e.Pos.Column,
				Snippet: snippetAt(content, e.Pos.Line),
				Message: e.Msg,
			})
		}
		return diags
	}
	return []Diagnostic{{Message: err.Error()}}
}

func checkJSON(content []byte) []Diagnostic {
	var v interface{}
	err := json.Unmarshal(content, &v)
	if err == nil {
		return nil
	}
	if syn, ok := err.(*json.SyntaxError); ok {
		line, col := offsetToLineCol(content, int(syn.Offset))
		return []Diagnostic{{
			Line:    line,
			Column:  col,
			Snippet: snippetAt(content, line),
			Message: syn.Error(),
		}}
	}
	if te, ok := err.(*json.UnmarshalTypeError); ok {
		line, col := offsetToLineCol(content, int(te.Offset))
		return []Diagnostic{{
			Line:    line,
			Column:  col,
			Snippet: snippetAt(content, line),
			Message: te.Error(),
		}}
	}
	return []Diagnostic{{Message: err.Error()}}
}

func checkYAML(content []byte) []Diagnostic {
	var v interface{}
	err := yaml.Unmarshal(content, &v)
	if err == nil {
		return nil
	}
	var diags []Diagnostic
	if te, ok := err.(*yaml.TypeError); ok {
		for _, msg := range te.Errors {
			line := extractYAMLLine(msg)
			diags = append(diags, Diagnostic{
				Line:    line,
				Snippet: snippetAt(content, line),
				Message: msg,
			})
		}
		return diags
	}
	line := extractYAMLLine(err.Error())
	return []Diagnostic{{
		Line:    line,
		Snippet: snippetAt(content, line),
		Message: err.Error(),
	}}
}

// extractYAMLLine pulls the "line N" token yaml.v3 embeds in its error text.
func extractYAMLLine(msg string) int {
	idx := strings.Index(msg, "line ")
	if idx == -1 {
		return 0
	}
	rest := msg[idx+len("line "):]
	n := 0
	found := false
	for _, r := range rest {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		found = true
	}
	if !found {
		return 0
	}
	return n
}

type pairSet struct {
	open, close map[rune]rune
	stringChars map[rune]bool
	lineComment string
}

var bracketPairs = pairSet{
	open:        map[rune]rune{'(': ')', '{': '}', '[': ']'},
	close:       map[rune]rune{')': '(', '}': '{', ']': '['},
	stringChars: map[rune]bool{'"': true, '\'': true, '`': true},
}

var bashPairs = pairSet{
	open:        map[rune]rune{'(': ')', '{': '}', '[': ']'},
	close:       map[rune]rune{')': '(', '}': '{', ']': '['},
	stringChars: map[rune]bool{'"': true, '\'': true},
	lineComment: "#",
}

// checkBalanced is the hand-rolled structural fallback for languages with no
// parser library in reach: it tracks bracket nesting, quote state and (when
// p.lineComment is set) line comments, and reports the first unmatched or
// mismatched bracket, or the last bracket still open at end of file. Quotes
// only suppress bracket counting until the matching quote; escape sequences
// are not recognized and an unterminated string is not reported.
func checkBalanced(content []byte, p pairSet) []Diagnostic {
	lines := strings.Split(string(content), "\n")
	var stack []rune
	var stackLine []int
	var inString rune
	for lineIdx, line := range lines {
		runes := []rune(line)
		for col, r := range runes {
			if inString != 0 {
				if r == inString {
					inString = 0
				}
				continue
			}
			if p.lineComment != "" && strings.HasPrefix(string(runes[col:]), p.lineComment) {
				break
			}
			if p.stringChars[r] {
				inString = r
				continue
			}
			if closeOf, ok := p.open[r]; ok {
				stack = append(stack, closeOf)
				stackLine = append(stackLine, lineIdx+1)
				continue
			}
			if openOf, ok := p.close[r]; ok {
				if len(stack) == 0 {
					return []Diagnostic{{
						Line:    lineIdx + 1,
						Column:  col + 1,
						Snippet: line,
						Message: fmt.Sprintf("unmatched closing %q", r),
					}}
				}
				expected := stack[len(stack)-1]
				if expected != r {
					return []Diagnostic{{
						Line:    lineIdx + 1,
						Column:  col + 1,
						Snippet: line,
						Message: fmt.Sprintf("mismatched bracket: expected %q to close %q", expected, openOf),
					}}
				}
				stack = stack[:len(stack)-1]
				stackLine = stackLine[:len(stackLine)-1]
			}
		}
	}
	if len(stack) > 0 {
		line := stackLine[len(stackLine)-1]
		return []Diagnostic{{
			Line:    line,
			Snippet: snippetAt(content, line),
			Message: fmt.Sprintf("unclosed bracket, expected %q before end of file", stack[len(stack)-1]),
		}}
	}
	return nil
}

// checkMarkdown flags unterminated fenced code blocks, the one structural
// invariant worth catching without a full CommonMark parser.
func checkMarkdown(content []byte) []Diagnostic {
	lines := strings.Split(string(content), "\n")
	open := false
	openLine := 0
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if !open {
				open = true
				openLine = i + 1
			} else {
				open = false
			}
		}
	}
	if open {
		return []Diagnostic{{
			Line:    openLine,
			Snippet: snippetAt(content, openLine),
			Message: "unterminated fenced code block",
		}}
	}
	return nil
}

func offsetToLineCol(content []byte, offset int) (line, col int) {
	line = 1
	col = 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

func snippetAt(content []byte, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(string(content), "\n")
	if line-1 >= len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}
