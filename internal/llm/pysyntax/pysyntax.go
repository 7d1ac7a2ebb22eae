package pysyntax

import (
	"fmt"
	"strings"
)

// Check 判断一段文本是否是结构上合法的 Python 源码。
//
// 这是一个轻量级检查器，不构建语法树：它按物理行扫描出逻辑行，
// 校验字符串与括号的闭合、缩进层级、块语句的冒号，以及表达式中
// 相邻字面量/标识符这类自然语言特征。目标是把自然语言和残缺代码
// 挡在执行层之外，而不是完整复刻解释器的语法。
func Check(src string) error {
	lines, err := scan(src)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("empty source")
	}
	return validate(lines)
}

type tokenKind int

const (
	tokenName tokenKind = iota
	tokenKeyword
	tokenNumber
	tokenString
	tokenOp
)

type token struct {
	kind tokenKind
	text string
}

type logicalLine struct {
	indent int
	number int
	tokens []token
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true,
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

// blockKeywords 开头的语句必须带冒号。
var blockKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true,
	"def": true, "class": true, "try": true, "except": true,
	"finally": true, "with": true,
}

const opChars = "+-*/%@<>=!&|^~:;,."

type scanner struct {
	src  []rune
	pos  int
	line int
}

func scan(src string) ([]logicalLine, error) {
	s := &scanner{src: []rune(src), line: 1}
	var lines []logicalLine

	for {
		indent, ok := s.startLine()
		if !ok {
			break
		}
		tokens, err := s.scanLogicalLine()
		if err != nil {
			return nil, err
		}
		if len(tokens) > 0 {
			lines = append(lines, logicalLine{indent: indent, number: s.line, tokens: tokens})
		}
	}
	return lines, nil
}

// startLine 跳过空行与纯注释行，返回下一逻辑行的缩进。
func (s *scanner) startLine() (int, bool) {
	for {
		if s.pos >= len(s.src) {
			return 0, false
		}
		indent := 0
		for s.pos < len(s.src) {
			switch s.src[s.pos] {
			case ' ':
				indent++
			case '\t':
				indent = (indent/8 + 1) * 8
			default:
				goto measured
			}
			s.pos++
		}
	measured:
		if s.pos >= len(s.src) {
			return 0, false
		}
		switch s.src[s.pos] {
		case '\n':
			s.pos++
			s.line++
			continue
		case '\r':
			s.pos++
			continue
		case '#':
			s.skipComment()
			continue
		}
		return indent, true
	}
}

func (s *scanner) skipComment() {
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
}

func (s *scanner) scanLogicalLine() ([]token, error) {
	var tokens []token
	var brackets []rune

	for s.pos < len(s.src) {
		r := s.src[s.pos]
		switch {
		case r == ' ' || r == '\t' || r == '\r':
			s.pos++
		case r == '\n':
			s.pos++
			s.line++
			if len(brackets) == 0 {
				return tokens, nil
			}
		case r == '#':
			s.skipComment()
		case r == '\\':
			// 显式续行：反斜杠后必须是换行。
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '\n' {
				s.pos += 2
				s.line++
				continue
			}
			return nil, fmt.Errorf("line %d: unexpected character %q", s.line, r)
		case r == '(' || r == '[' || r == '{':
			brackets = append(brackets, r)
			tokens = append(tokens, token{kind: tokenOp, text: string(r)})
			s.pos++
		case r == ')' || r == ']' || r == '}':
			if len(brackets) == 0 || !bracketsMatch(brackets[len(brackets)-1], r) {
				return nil, fmt.Errorf("line %d: unmatched %q", s.line, r)
			}
			brackets = brackets[:len(brackets)-1]
			tokens = append(tokens, token{kind: tokenOp, text: string(r)})
			s.pos++
		case r == '\'' || r == '"':
			if err := s.scanString(); err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString})
		case isNameStart(r):
			tok, isString, err := s.scanNameOrPrefixedString()
			if err != nil {
				return nil, err
			}
			if isString {
				tokens = append(tokens, token{kind: tokenString})
			} else {
				tokens = append(tokens, tok)
			}
		case r >= '0' && r <= '9':
			tokens = append(tokens, s.scanNumber())
		case r == '.':
			if s.pos+2 < len(s.src) && s.src[s.pos+1] == '.' && s.src[s.pos+2] == '.' {
				s.pos += 3
				tokens = append(tokens, token{kind: tokenNumber, text: "..."})
				continue
			}
			if s.pos+1 < len(s.src) && s.src[s.pos+1] >= '0' && s.src[s.pos+1] <= '9' {
				tokens = append(tokens, s.scanNumber())
				continue
			}
			tokens = append(tokens, token{kind: tokenOp, text: "."})
			s.pos++
		case strings.ContainsRune(opChars, r):
			tokens = append(tokens, token{kind: tokenOp, text: string(r)})
			s.pos++
		default:
			return nil, fmt.Errorf("line %d: unexpected character %q", s.line, r)
		}
	}

	if len(brackets) > 0 {
		return nil, fmt.Errorf("line %d: unclosed %q", s.line, brackets[len(brackets)-1])
	}
	return tokens, nil
}

func bracketsMatch(open, close rune) bool {
	switch open {
	case '(':
		return close == ')'
	case '[':
		return close == ']'
	case '{':
		return close == '}'
	}
	return false
}

func isNameStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isNameRune(r rune) bool {
	return isNameStart(r) || (r >= '0' && r <= '9')
}

// scanNameOrPrefixedString 识别标识符，同时处理 r"" / f"" / b"" 这类
// 带前缀的字符串字面量。
func (s *scanner) scanNameOrPrefixedString() (token, bool, error) {
	start := s.pos
	for s.pos < len(s.src) && isNameRune(s.src[s.pos]) {
		s.pos++
	}
	name := string(s.src[start:s.pos])

	if len(name) <= 2 && s.pos < len(s.src) && (s.src[s.pos] == '\'' || s.src[s.pos] == '"') {
		if isStringPrefix(name) {
			if err := s.scanString(); err != nil {
				return token{}, false, err
			}
			return token{}, true, nil
		}
	}

	if keywords[name] {
		return token{kind: tokenKeyword, text: name}, false, nil
	}
	return token{kind: tokenName, text: name}, false, nil
}

func isStringPrefix(name string) bool {
	switch strings.ToLower(name) {
	case "r", "b", "f", "u", "rb", "br", "rf", "fr":
		return true
	}
	return false
}

func (s *scanner) scanString() error {
	quote := s.src[s.pos]
	startLine := s.line
	s.pos++

	triple := false
	if s.pos+1 < len(s.src) && s.src[s.pos] == quote && s.src[s.pos+1] == quote {
		triple = true
		s.pos += 2
	} else if s.pos < len(s.src) && s.src[s.pos] == quote {
		// 空字符串。
		s.pos++
		return nil
	}

	for s.pos < len(s.src) {
		r := s.src[s.pos]
		switch {
		case r == '\\':
			s.pos += 2
			continue
		case r == '\n':
			if !triple {
				return fmt.Errorf("line %d: unterminated string", startLine)
			}
			s.line++
			s.pos++
		case r == quote:
			if !triple {
				s.pos++
				return nil
			}
			if s.pos+2 < len(s.src) && s.src[s.pos+1] == quote && s.src[s.pos+2] == quote {
				s.pos += 3
				return nil
			}
			if s.pos+2 == len(s.src) && s.src[s.pos+1] == quote {
				s.pos += 2
				// 末尾恰好两个引号，按未闭合处理。
				return fmt.Errorf("line %d: unterminated string", startLine)
			}
			s.pos++
		default:
			s.pos++
		}
	}
	return fmt.Errorf("line %d: unterminated string", startLine)
}

func (s *scanner) scanNumber() token {
	start := s.pos
	prev := rune(0)
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		switch {
		case (r >= '0' && r <= '9') || r == '.' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			prev = r
			s.pos++
		case (r == '+' || r == '-') && (prev == 'e' || prev == 'E'):
			prev = r
			s.pos++
		default:
			return token{kind: tokenNumber, text: string(s.src[start:s.pos])}
		}
	}
	return token{kind: tokenNumber, text: string(s.src[start:s.pos])}
}

// validate 对逻辑行做结构校验：相邻字面量、行首/行尾操作符、
// 块语句冒号以及缩进层级。
func validate(lines []logicalLine) error {
	indents := []int{lines[0].indent}
	expectIndent := false

	for idx, line := range lines {
		if idx > 0 {
			if expectIndent {
				if line.indent <= indents[len(indents)-1] {
					return fmt.Errorf("line %d: expected an indented block", line.number)
				}
				indents = append(indents, line.indent)
			} else if line.indent > indents[len(indents)-1] {
				return fmt.Errorf("line %d: unexpected indent", line.number)
			} else {
				for len(indents) > 1 && line.indent < indents[len(indents)-1] {
					indents = indents[:len(indents)-1]
				}
				if line.indent != indents[len(indents)-1] {
					return fmt.Errorf("line %d: unindent does not match any outer level", line.number)
				}
			}
		}

		if err := validateTokens(line); err != nil {
			return err
		}

		last := line.tokens[len(line.tokens)-1]
		expectIndent = last.kind == tokenOp && last.text == ":"
	}

	if expectIndent {
		return fmt.Errorf("line %d: block header without a body", lines[len(lines)-1].number)
	}
	return nil
}

var allowedLeadingOps = map[string]bool{
	"(": true, "[": true, "{": true, "-": true, "+": true, "~": true,
	"*": true, "@": true,
}

var allowedTrailingOps = map[string]bool{
	":": true, ")": true, "]": true, "}": true, ",": true, ";": true,
}

func validateTokens(line logicalLine) error {
	tokens := line.tokens

	first := tokens[0]
	if first.kind == tokenOp && !allowedLeadingOps[first.text] {
		return fmt.Errorf("line %d: statement cannot start with %q", line.number, first.text)
	}

	last := tokens[len(tokens)-1]
	if last.kind == tokenOp && !allowedTrailingOps[last.text] {
		return fmt.Errorf("line %d: statement cannot end with %q", line.number, last.text)
	}

	for i := 1; i < len(tokens); i++ {
		prev, cur := tokens[i-1], tokens[i]
		if !isValueToken(prev) || !isValueToken(cur) {
			continue
		}
		// 相邻字符串是合法的隐式拼接，其余相邻字面量/标识符
		// 在表达式里没有合法位置，基本可以断定是自然语言。
		if prev.kind == tokenString && cur.kind == tokenString {
			continue
		}
		return fmt.Errorf("line %d: unexpected token after %s", line.number, describe(prev))
	}

	if first.kind == tokenKeyword && blockKeywords[first.text] {
		if !containsColon(tokens) {
			return fmt.Errorf("line %d: %q statement missing ':'", line.number, first.text)
		}
	}
	return nil
}

func isValueToken(t token) bool {
	switch t.kind {
	case tokenName, tokenNumber, tokenString:
		return true
	}
	return false
}

func containsColon(tokens []token) bool {
	for _, t := range tokens {
		if t.kind == tokenOp && t.text == ":" {
			return true
		}
	}
	return false
}

func describe(t token) string {
	switch t.kind {
	case tokenString:
		return "string literal"
	case tokenNumber:
		return fmt.Sprintf("number %q", t.text)
	default:
		return fmt.Sprintf("name %q", t.text)
	}
}
