package dfilter

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
	tokOp
	tokWord
	tokString
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of filter"
	case tokLParen:
		return `"("`
	case tokRParen:
		return `")"`
	case tokAnd:
		return `"and"`
	case tokOr:
		return `"or"`
	case tokNot:
		return `"not"`
	case tokOp:
		return "comparison operator"
	case tokWord:
		return "word"
	case tokString:
		return "string"
	default:
		return "unknown token"
	}
}

type token struct {
	kind tokenKind
	text string // operator name (normalized), word or unquoted string
	pos  int    // byte offset in the filter text
}

// keyword operators and their symbolic equivalents
var wordOps = map[string]string{
	"eq":       "==",
	"ne":       "!=",
	"gt":       ">",
	"lt":       "<",
	"ge":       ">=",
	"le":       "<=",
	"contains": "contains",
	"matches":  "matches",
}

// lex splits a filter into tokens
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"':
			s, n, err := lexString(text[i:])
			if err != nil {
				return nil, &SyntaxError{Offset: i, Msg: err.Error()}
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += n
		case strings.HasPrefix(text[i:], "&&"):
			toks = append(toks, token{kind: tokAnd, text: "&&", pos: i})
			i += 2
		case strings.HasPrefix(text[i:], "||"):
			toks = append(toks, token{kind: tokOr, text: "||", pos: i})
			i += 2
		case strings.HasPrefix(text[i:], "=="), strings.HasPrefix(text[i:], "!="),
			strings.HasPrefix(text[i:], ">="), strings.HasPrefix(text[i:], "<="):
			toks = append(toks, token{kind: tokOp, text: text[i : i+2], pos: i})
			i += 2
		case c == '>' || c == '<':
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '~':
			toks = append(toks, token{kind: tokOp, text: "matches", pos: i})
			i++
		case c == '!':
			toks = append(toks, token{kind: tokNot, text: "!", pos: i})
			i++
		case c == '=' || c == '&' || c == '|':
			return nil, &SyntaxError{Offset: i, Msg: fmt.Sprintf("unexpected %q", c)}
		default:
			start := i
			for i < len(text) && isWordByte(text[i]) {
				i++
			}
			word := text[start:i]
			switch lower := strings.ToLower(word); {
			case lower == "and":
				toks = append(toks, token{kind: tokAnd, text: lower, pos: start})
			case lower == "or":
				toks = append(toks, token{kind: tokOr, text: lower, pos: start})
			case lower == "not":
				toks = append(toks, token{kind: tokNot, text: lower, pos: start})
			case wordOps[lower] != "":
				toks = append(toks, token{kind: tokOp, text: wordOps[lower], pos: start})
			default:
				toks = append(toks, token{kind: tokWord, text: word, pos: start})
			}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(text)})
	return toks, nil
}

func isWordByte(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '(', ')', '"', '=', '!', '<', '>', '&', '|', '~':
		return false
	}
	return true
}

// lexString reads a double-quoted string starting at s[0] and returns the
// unescaped contents and the number of bytes consumed
func lexString(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("unterminated escape in string")
			}
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
		case '"':
			return b.String(), i + 1, nil
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}
