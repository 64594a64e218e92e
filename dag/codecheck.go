package dag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// CheckCode statically checks generated DAG code without executing it.
// It approximates a parser: delimiter balance, string termination,
// block-statement colons, and presence of the expected Airflow
// scaffolding. Errors fail validation; missing scaffolding only warns.
func CheckCode(code string) Result {
	v := &collector{}
	if strings.TrimSpace(code) == "" {
		v.addError(Issue{Type: IssueSyntax, Message: "DAG code is empty"})
		return v.result()
	}
	lines := strings.Split(code, "\n")
	infos := scanSource(code, v)
	checkBlockStatements(infos, lines, v)
	checkCodeStructure(infos, v)
	return v.result()
}

// lineInfo captures per-line scan results. stripped holds the source
// line with string contents and comments blanked so later passes can
// match code tokens without false hits inside literals.
type lineInfo struct {
	stripped    string
	depthEnd    int  // open-delimiter depth at end of line
	colonDepth0 bool // a ':' appeared at depth 0 outside strings
	backslash   bool // line ends with a continuation backslash
}

type openDelim struct {
	r    rune
	line int
}

func delimPair(open, close rune) bool {
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

// scanSource walks the code rune by rune tracking string, comment, and
// delimiter state. Newlines never occur inside a UTF-8 multi-byte
// sequence, so line accounting is byte-exact even for non-ASCII source.
func scanSource(code string, c *collector) []lineInfo {
	const (
		stCode = iota
		stString
		stComment
	)

	src := []rune(code)
	var infos []lineInfo
	var cur strings.Builder
	info := lineInfo{}
	line := 1

	var stack []openDelim
	state := stCode
	var quote rune
	triple := false
	stringLine := 0
	escaped := false
	pendingBackslash := false

	endLine := func() {
		info.stripped = cur.String()
		info.depthEnd = len(stack)
		info.backslash = pendingBackslash
		infos = append(infos, info)
		cur.Reset()
		info = lineInfo{}
		pendingBackslash = false
		line++
	}

	for i := 0; i < len(src); i++ {
		r := src[i]

		if r == '\n' {
			switch state {
			case stString:
				if triple || escaped {
					escaped = false
					endLine()
					continue
				}
				c.addError(Issue{
					Type:    IssueSyntax,
					Line:    stringLine,
					Message: fmt.Sprintf("Syntax error at line %d: unterminated string literal", stringLine),
				})
				state = stCode
				endLine()
				continue
			case stComment:
				state = stCode
				endLine()
				continue
			default:
				endLine()
				continue
			}
		}

		switch state {
		case stComment:
			cur.WriteRune(' ')

		case stString:
			if escaped {
				escaped = false
				cur.WriteRune(' ')
				continue
			}
			if r == '\\' {
				escaped = true
				cur.WriteRune(' ')
				continue
			}
			if r == quote {
				if !triple {
					cur.WriteRune(quote)
					state = stCode
					continue
				}
				if i+2 < len(src) && src[i+1] == quote && src[i+2] == quote {
					cur.WriteRune(quote)
					cur.WriteRune(quote)
					cur.WriteRune(quote)
					i += 2
					state = stCode
					continue
				}
			}
			cur.WriteRune(' ')

		case stCode:
			if r != '\\' {
				pendingBackslash = false
			}
			switch r {
			case '#':
				state = stComment
				cur.WriteRune(' ')
			case '\'', '"':
				quote = r
				stringLine = line
				escaped = false
				if i+2 < len(src) && src[i+1] == r && src[i+2] == r {
					triple = true
					cur.WriteRune(r)
					cur.WriteRune(r)
					cur.WriteRune(r)
					i += 2
				} else {
					triple = false
					cur.WriteRune(r)
				}
				state = stString
			case '(', '[', '{':
				stack = append(stack, openDelim{r: r, line: line})
				cur.WriteRune(r)
			case ')', ']', '}':
				if len(stack) == 0 {
					c.addError(Issue{
						Type:    IssueSyntax,
						Line:    line,
						Message: fmt.Sprintf("Syntax error at line %d: unmatched %q", line, string(r)),
					})
				} else {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					if !delimPair(top.r, r) {
						c.addError(Issue{
							Type:    IssueSyntax,
							Line:    line,
							Message: fmt.Sprintf("Syntax error at line %d: closing %q does not match opening %q from line %d", line, string(r), string(top.r), top.line),
						})
					}
				}
				cur.WriteRune(r)
			case ':':
				if len(stack) == 0 {
					info.colonDepth0 = true
				}
				cur.WriteRune(r)
			case '\\':
				pendingBackslash = true
				cur.WriteRune(r)
			default:
				cur.WriteRune(r)
			}
		}
	}

	if state == stString {
		if triple {
			c.addError(Issue{
				Type:    IssueSyntax,
				Line:    stringLine,
				Message: fmt.Sprintf("Syntax error at line %d: unterminated triple-quoted string literal", stringLine),
			})
		} else {
			c.addError(Issue{
				Type:    IssueSyntax,
				Line:    stringLine,
				Message: fmt.Sprintf("Syntax error at line %d: unterminated string literal", stringLine),
			})
		}
	}
	if cur.Len() > 0 {
		endLine()
	}
	for _, open := range stack {
		c.addError(Issue{
			Type:    IssueSyntax,
			Line:    open.line,
			Message: fmt.Sprintf("Syntax error at line %d: %q was never closed", open.line, string(open.r)),
		})
	}
	return infos
}

// blockKeywords open an indented suite and must carry a ':' on their
// logical line.
var blockKeywords = map[string]struct{}{
	"def": {}, "class": {}, "if": {}, "elif": {}, "else": {}, "for": {},
	"while": {}, "with": {}, "try": {}, "except": {}, "finally": {},
}

var defPattern = regexp.MustCompile(`^\s*(?:async\s+)?def\s+\w+\s*\(`)

func firstWord(s string) string {
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return s[:i]
		}
	}
	return s
}

// checkBlockStatements groups physical lines into logical lines
// (following open delimiters and trailing backslashes) and verifies
// block statements are well formed.
func checkBlockStatements(infos []lineInfo, lines []string, c *collector) {
	for start := 0; start < len(infos); {
		end := start
		for end < len(infos)-1 && (infos[end].depthEnd > 0 || infos[end].backslash) {
			end++
		}

		var sb strings.Builder
		colon := false
		for j := start; j <= end; j++ {
			sb.WriteString(infos[j].stripped)
			sb.WriteByte(' ')
			if infos[j].colonDepth0 {
				colon = true
			}
		}
		logical := strings.TrimSpace(sb.String())

		if logical != "" {
			keyword := firstWord(logical)
			if keyword == "async" {
				keyword = firstWord(strings.TrimSpace(strings.TrimPrefix(logical, "async")))
			}
			if _, isBlock := blockKeywords[keyword]; isBlock {
				detail := ""
				if start < len(lines) {
					detail = strings.TrimSpace(lines[start])
				}
				if keyword == "def" && !defPattern.MatchString(logical) {
					c.addError(Issue{
						Type:    IssueSyntax,
						Line:    start + 1,
						Message: fmt.Sprintf("Syntax error at line %d: invalid function definition", start+1),
						Details: detail,
					})
				}
				if !colon {
					c.addError(Issue{
						Type:    IssueSyntax,
						Line:    start + 1,
						Message: fmt.Sprintf("Syntax error at line %d: expected ':'", start+1),
						Details: detail,
					})
				}
			}
		}
		start = end + 1
	}
}

var (
	airflowImportPattern = regexp.MustCompile(`^\s*from\s+airflow[\w.]*\s+import\b`)
	dagImportPattern     = regexp.MustCompile(`^\s*from\s+airflow[\w.]*\s+import\b.*\bDAG\b`)
	dagCallPattern       = regexp.MustCompile(`\bDAG\s*\(`)
	operatorCallPattern  = regexp.MustCompile(`\b\w*(Operator|Sensor)\w*\s*\(`)
)

// checkCodeStructure warns when the code is syntactically plausible but
// missing the pieces every runnable DAG file has.
func checkCodeStructure(infos []lineInfo, c *collector) {
	hasImport := false
	hasDAG := false
	var all strings.Builder
	for _, info := range infos {
		if airflowImportPattern.MatchString(info.stripped) {
			hasImport = true
		}
		if dagImportPattern.MatchString(info.stripped) {
			hasDAG = true
		}
		all.WriteString(info.stripped)
		all.WriteByte('\n')
	}
	text := all.String()
	if dagCallPattern.MatchString(text) {
		hasDAG = true
	}
	hasTasks := operatorCallPattern.MatchString(text)

	if !hasImport {
		c.addWarning(Issue{Type: IssueStructure, Message: "No Airflow imports detected. Ensure you import from airflow modules."})
	}
	if !hasDAG {
		c.addWarning(Issue{Type: IssueStructure, Message: "No DAG definition found. A DAG object must be instantiated."})
	}
	if !hasTasks {
		c.addWarning(Issue{Type: IssueStructure, Message: "No task operators detected. DAG should contain at least one task."})
	}
}
