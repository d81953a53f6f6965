package template

import (
	"fmt"
	"strings"
)

// call is one use of a variadic helper with a fixed number of arguments
type call struct {
	name  string
	arity int
}

func variadicName(name string, arity int) string {
	return fmt.Sprintf("%s__%d", name, arity)
}

// expandVariadic renames every call of a helper listed in names to
// name__N, N being the number of positional arguments at that call site.
// Plain mustaches and subexpressions are rewritten; block, partial and
// closing heads keep their name. Comments, raw blocks and escaped
// mustaches are copied unchanged.
func expandVariadic(src string, names map[string]bool) (string, []call) {
	if len(names) == 0 {
		return src, nil
	}

	r := &rewriter{names: names, seen: make(map[call]bool)}
	var b strings.Builder
	b.Grow(len(src))

	i := 0
	for i < len(src) {
		j := strings.Index(src[i:], "{{")
		if j < 0 {
			b.WriteString(src[i:])
			break
		}
		j += i
		b.WriteString(src[i:j])

		var end int
		switch {
		case j > 0 && src[j-1] == '\\':
			end = after(src, j, "}}")
		case strings.HasPrefix(src[j:], "{{{{"):
			end = rawBlockEnd(src, j)
		case strings.HasPrefix(src[j:], "{{!--"):
			end = after(src, j, "--}}")
		case strings.HasPrefix(src[j:], "{{!"):
			end = after(src, j, "}}")
		default:
			closeAt := mustacheClose(src, j+2)
			if closeAt < 0 {
				b.WriteString(src[j:])
				return b.String(), r.calls
			}
			b.WriteString("{{")
			b.WriteString(r.statement(src[j+2 : closeAt]))
			i = closeAt
			continue
		}
		b.WriteString(src[j:end])
		i = end
	}
	return b.String(), r.calls
}

type rewriter struct {
	names map[string]bool
	seen  map[call]bool
	calls []call
}

func (r *rewriter) statement(content string) string {
	var prefix, suffix string
	if strings.HasPrefix(content, "~") {
		prefix, content = "~", content[1:]
	}
	if strings.HasSuffix(content, "~") {
		suffix, content = "~", content[:len(content)-1]
	}

	trimmed := strings.TrimLeft(content, " \t\r\n")
	prefix += content[:len(content)-len(trimmed)]

	renameHead := true
	if trimmed != "" {
		switch trimmed[0] {
		case '{', '&':
			prefix += trimmed[:1]
			trimmed = trimmed[1:]
		case '#', '^', '/', '>', '*':
			n := 1
			if trimmed[0] == '#' && len(trimmed) > 1 && (trimmed[1] == '>' || trimmed[1] == '*') {
				n = 2
			}
			prefix += trimmed[:n]
			trimmed = trimmed[n:]
			renameHead = false
		}
	}
	return prefix + r.expression(trimmed, renameHead) + suffix
}

func (r *rewriter) expression(s string, renameHead bool) string {
	tokens := tokenize(s)

	var b strings.Builder
	last := 0
	for idx, tok := range tokens {
		b.WriteString(s[last:tok.start])
		text := s[tok.start:tok.end]
		switch {
		case tok.kind == tokSub:
			inner := strings.TrimSuffix(text[1:], ")")
			closing := ""
			if strings.HasSuffix(text, ")") {
				closing = ")"
			}
			b.WriteString("(" + r.expression(inner, true) + closing)
		case idx == 0 && renameHead && tok.kind == tokWord && r.names[text]:
			c := call{name: text, arity: arity(tokens[1:])}
			if !r.seen[c] {
				r.seen[c] = true
				r.calls = append(r.calls, c)
			}
			b.WriteString(variadicName(c.name, c.arity))
		default:
			b.WriteString(text)
		}
		last = tok.end
	}
	b.WriteString(s[last:])
	return b.String()
}

// arity counts positional parameters: hash arguments and block params are
// not part of it
func arity(params []token) int {
	n := 0
	for i, tok := range params {
		if tok.hash || tok.kind == tokHashKey || tok.kind == tokBlockParams {
			continue
		}
		if tok.kind == tokWord && i+1 < len(params) && params[i+1].kind == tokBlockParams {
			// "as |x|"
			continue
		}
		n++
	}
	return n
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokSub
	tokHashKey
	tokBlockParams
)

type token struct {
	start, end int
	kind       tokenKind
	hash       bool
}

func tokenize(s string) []token {
	var tokens []token
	hashValue := false

	i := 0
	for i < len(s) {
		c := s[i]
		start := i
		switch {
		case isSpace(c):
			i++
			continue
		case c == '(':
			i = parenEnd(s, i)
			tokens = append(tokens, token{start: start, end: i, kind: tokSub, hash: hashValue})
		case c == '"' || c == '\'':
			i = stringEnd(s, i)
			tokens = append(tokens, token{start: start, end: i, kind: tokString, hash: hashValue})
		case c == '|':
			if k := strings.IndexByte(s[i+1:], '|'); k >= 0 {
				i += k + 2
			} else {
				i = len(s)
			}
			tokens = append(tokens, token{start: start, end: i, kind: tokBlockParams})
		default:
			for i < len(s) && !isSpace(s[i]) && s[i] != '(' && s[i] != ')' && s[i] != '=' {
				if s[i] == '[' {
					if k := strings.IndexByte(s[i:], ']'); k >= 0 {
						i += k
					}
				}
				i++
			}
			if i < len(s) && s[i] == '=' {
				i++
				tokens = append(tokens, token{start: start, end: i, kind: tokHashKey})
				hashValue = true
				continue
			}
			if i == start {
				i++
				continue
			}
			tokens = append(tokens, token{start: start, end: i, kind: tokWord, hash: hashValue})
		}
		hashValue = false
	}
	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// stringEnd returns the index after the literal opened at s[i]
func stringEnd(s string, i int) int {
	q := s[i]
	j := i + 1
	for j < len(s) && s[j] != q {
		if s[j] == '\\' {
			j++
		}
		j++
	}
	if j >= len(s) {
		return len(s)
	}
	return j + 1
}

// parenEnd returns the index after the parenthesis matching s[i]
func parenEnd(s string, i int) int {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '"', '\'':
			j = stringEnd(s, j) - 1
		case '[':
			if k := strings.IndexByte(s[j:], ']'); k >= 0 {
				j += k
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(s)
}

// mustacheClose returns the index of the "}}" closing a mustache whose
// content starts at from, or -1
func mustacheClose(src string, from int) int {
	for j := from; j < len(src)-1; j++ {
		switch src[j] {
		case '"', '\'':
			j = stringEnd(src, j) - 1
		case '}':
			if src[j+1] == '}' {
				return j
			}
		}
	}
	return -1
}

func after(src string, from int, delim string) int {
	k := strings.Index(src[from:], delim)
	if k < 0 {
		return len(src)
	}
	return from + k + len(delim)
}

func rawBlockEnd(src string, from int) int {
	k := strings.Index(src[from+4:], "{{{{/")
	if k < 0 {
		return len(src)
	}
	return after(src, from+4+k, "}}}}")
}
