// Package condition implements the conditional-validation expression
// language: a restricted boolean grammar evaluated against flat
// field-to-value data.
//
// The grammar has no parentheses and no operator precedence. Parsing splits
// on the first AND/OR token found, so "a AND b OR c" parses as
// "a AND (b OR c)" — a right-leaning chain of single conditions.
package condition

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/blimu-dev/typegen/pkg/diag"
)

// Operator is a comparison or membership operator.
type Operator string

const (
	OpEq        Operator = "=="
	OpNe        Operator = "!="
	OpGt        Operator = ">"
	OpGe        Operator = ">="
	OpLt        Operator = "<"
	OpLe        Operator = "<="
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpContains  Operator = "contains"
	OpMatches   Operator = "matches"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"
	// OpTruthy is a bare field reference with no operator, true when the
	// field's value is truthy.
	OpTruthy Operator = "truthy"
)

// LogicalOp joins two chained conditions.
type LogicalOp string

const (
	LogicAnd LogicalOp = "AND"
	LogicOr  LogicalOp = "OR"
)

// Expression is one node of the right-leaning condition chain.
type Expression struct {
	Field    string
	Operator Operator
	Value    any   // comparison / contains operand
	Values   []any // in / not_in list
	Pattern  string
	Flags    string

	Logical LogicalOp
	Next    *Expression
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*`)

// Parse parses a condition string into its expression chain.
func Parse(text string) (*Expression, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, parseErr(text, "condition is empty", "write a condition such as `status == 'ACTIVE'`")
	}
	head, op, rest, chained := splitLogical(trimmed)
	expr, err := parseSingle(text, head)
	if err != nil {
		return nil, err
	}
	if chained {
		next, err := Parse(rest)
		if err != nil {
			return nil, err
		}
		expr.Logical = op
		expr.Next = next
	}
	return expr, nil
}

// splitLogical finds the first AND/OR token outside quotes and brackets and
// splits there. The match is non-greedy on the left, which is what produces
// the right-leaning chain.
func splitLogical(s string) (head string, op LogicalOp, rest string, ok bool) {
	var inQuote rune
	depth := 0
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
			continue
		case r == '\'' || r == '"':
			inQuote = r
			continue
		case r == '[':
			depth++
			continue
		case r == ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 || !atWordStart(runes, i) {
			continue
		}
		if word, width := wordAt(runes, i); width > 0 {
			switch strings.ToUpper(word) {
			case "AND":
				return strings.TrimSpace(string(runes[:i])), LogicAnd, strings.TrimSpace(string(runes[i+width:])), true
			case "OR":
				return strings.TrimSpace(string(runes[:i])), LogicOr, strings.TrimSpace(string(runes[i+width:])), true
			}
		}
	}
	return s, "", "", false
}

func atWordStart(runes []rune, i int) bool {
	if i == 0 {
		return false // a leading AND/OR would leave an empty head
	}
	return runes[i-1] == ' ' || runes[i-1] == '\t'
}

func wordAt(runes []rune, i int) (string, int) {
	j := i
	for j < len(runes) && isWordRune(runes[j]) {
		j++
	}
	if j == i || (j < len(runes) && runes[j] != ' ' && runes[j] != '\t') {
		return "", 0
	}
	return string(runes[i:j]), j - i
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// parseSingle parses one condition: FIELD followed by an operator clause,
// or a bare FIELD (truthiness).
func parseSingle(full, s string) (*Expression, error) {
	s = strings.TrimSpace(s)
	field := fieldPattern.FindString(s)
	if field == "" {
		return nil, parseErr(full, "expected a field name", "conditions start with a field identifier")
	}
	rest := strings.TrimSpace(s[len(field):])
	if rest == "" {
		return &Expression{Field: field, Operator: OpTruthy}, nil
	}

	if expr, ok, err := parseKeywordClause(full, field, rest); ok || err != nil {
		return expr, err
	}

	for _, op := range []Operator{OpGe, OpLe, OpEq, OpNe, OpGt, OpLt} {
		if strings.HasPrefix(rest, string(op)) {
			operand := strings.TrimSpace(rest[len(op):])
			if operand == "" {
				return nil, parseErr(full, "comparison has no right-hand side", "supply a value after the operator")
			}
			return &Expression{Field: field, Operator: op, Value: parseValue(operand)}, nil
		}
	}
	return nil, parseErr(full, "unrecognized operator", "use ==, !=, >, >=, <, <=, in, not in, contains, matches, is null or is not null")
}

// parseKeywordClause handles the word-operator productions. Keywords are
// case-insensitive.
func parseKeywordClause(full, field, rest string) (*Expression, bool, error) {
	lower := strings.ToLower(rest)
	switch {
	case lower == "is null":
		return &Expression{Field: field, Operator: OpIsNull}, true, nil
	case lower == "is not null":
		return &Expression{Field: field, Operator: OpIsNotNull}, true, nil
	case strings.HasPrefix(lower, "not in"):
		values, err := parseList(full, strings.TrimSpace(rest[len("not in"):]))
		if err != nil {
			return nil, true, err
		}
		return &Expression{Field: field, Operator: OpNotIn, Values: values}, true, nil
	case strings.HasPrefix(lower, "in"):
		values, err := parseList(full, strings.TrimSpace(rest[len("in"):]))
		if err != nil {
			return nil, true, err
		}
		return &Expression{Field: field, Operator: OpIn, Values: values}, true, nil
	case strings.HasPrefix(lower, "contains"):
		operand := strings.TrimSpace(rest[len("contains"):])
		if operand == "" {
			return nil, true, parseErr(full, "contains has no operand", "supply the value to look for")
		}
		return &Expression{Field: field, Operator: OpContains, Value: parseValue(operand)}, true, nil
	case strings.HasPrefix(lower, "matches"):
		operand := strings.TrimSpace(rest[len("matches"):])
		pattern, flags, err := parseRegex(full, operand)
		if err != nil {
			return nil, true, err
		}
		return &Expression{Field: field, Operator: OpMatches, Pattern: pattern, Flags: flags}, true, nil
	}
	return nil, false, nil
}

// parseList parses "[ v, v, ... ]".
func parseList(full, s string) ([]any, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, parseErr(full, "expected a bracketed list", "write the membership list as ['a', 'b']")
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, parseErr(full, "membership list is empty", "list at least one value")
	}
	var values []any
	for _, part := range splitTopLevel(inner, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, parseErr(full, "membership list has an empty element", "remove the stray comma")
		}
		values = append(values, parseValue(part))
	}
	return values, nil
}

// parseRegex parses "/pattern/flags".
func parseRegex(full, s string) (string, string, error) {
	if !strings.HasPrefix(s, "/") {
		return "", "", parseErr(full, "matches needs a /pattern/", "write the pattern as /expr/ with optional flags")
	}
	end := strings.LastIndex(s[1:], "/")
	if end < 0 {
		return "", "", parseErr(full, "unterminated regular expression", "close the pattern with a second /")
	}
	end++ // offset for the leading slash
	return s[1:end], s[end+1:], nil
}

// splitTopLevel splits on sep outside quotes.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	var inQuote rune
	start := 0
	for i, r := range s {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '\'' || r == '"':
			inQuote = r
		case r == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// parseValue turns a token into its typed value: quoted string, boolean,
// null, number, or bare word.
func parseValue(s string) any {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

var keywords = map[string]bool{
	"and": true, "or": true, "is": true, "not": true, "null": true,
	"in": true, "contains": true, "matches": true, "true": true, "false": true,
}

var identPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)

// Fields returns the field identifiers a condition mentions, excluding
// grammar keywords and quoted text. Used to project the data map when
// building cache keys.
func Fields(text string) []string {
	stripped := stripQuoted(text)
	var out []string
	seen := map[string]bool{}
	for _, id := range identPattern.FindAllString(stripped, -1) {
		if keywords[strings.ToLower(id)] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// stripQuoted blanks out quoted strings and regex bodies so their contents
// are not mistaken for identifiers.
func stripQuoted(s string) string {
	var b strings.Builder
	var inQuote rune
	for _, r := range s {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
			b.WriteRune(' ')
		case r == '\'' || r == '"' || r == '/':
			inQuote = r
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseErr(text, format string, suggestion string) *diag.Error {
	return diag.New(diag.CodeConditionParse, format+": %q", diag.Excerpt(text)).
		WithSuggestion("%s", suggestion)
}
