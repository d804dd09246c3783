package ddl

import (
	"fmt"
	"strings"
	"unicode"
)

// deniedKeywords are statement-level keywords that never belong in a
// filter, ordering or column expression.
var deniedKeywords = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true, "drop": true,
	"create": true, "alter": true, "attach": true, "detach": true, "copy": true,
	"pragma": true, "install": true, "load": true, "call": true, "export": true,
	"import": true, "set": true, "reset": true, "union": true, "intersect": true,
	"except": true, "from": true, "into": true, "with": true, "execute": true,
	"truncate": true, "grant": true, "revoke": true, "vacuum": true,
	"checkpoint": true, "use": true, "returning": true, "window": true,
}

// allowedFunctions is the closed set of functions an expression may call.
var allowedFunctions = map[string]bool{
	"abs": true, "round": true, "floor": true, "ceil": true,
	"lower": true, "upper": true, "trim": true, "length": true,
	"substr": true, "substring": true, "concat": true, "replace": true,
	"coalesce": true, "nullif": true, "cast": true,
	"sum": true, "avg": true, "min": true, "max": true, "count": true,
	"year": true, "month": true, "day": true, "date_trunc": true,
	"date_part": true, "strftime": true,
}

// twoCharOps are the multi-character operators accepted by the tokenizer.
var twoCharOps = map[string]bool{
	"<=": true, ">=": true, "<>": true, "!=": true, "||": true, "::": true,
}

const singleCharOps = "=<>+-*/%(),."

// GuardExpression checks expr against a narrow expression grammar:
// identifiers (bare or double-quoted), string and numeric literals,
// comparison/arithmetic/logical operators, parentheses, and calls to an
// allow-listed set of functions. Statement separators, comments and
// statement keywords are rejected.
func GuardExpression(expr string) error {
	toks, err := tokenize(expr)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return fmt.Errorf("expression is empty")
	}

	depth := 0
	for i, tok := range toks {
		switch tok.kind {
		case tokWord:
			word := strings.ToLower(tok.text)
			if deniedKeywords[word] {
				return fmt.Errorf("keyword %q is not allowed in expressions", strings.ToUpper(tok.text))
			}
			if followedByParen(toks, i) && !allowedFunctions[word] && !isGroupingKeyword(word) {
				return fmt.Errorf("function %q is not allowed in expressions", tok.text)
			}
		case tokQuotedIdent:
			// A quoted name resolves to the same function as the bare one.
			if followedByParen(toks, i) && !allowedFunctions[strings.ToLower(unquoteIdent(tok.text))] {
				return fmt.Errorf("function %s is not allowed in expressions", tok.text)
			}
		case tokOp:
			switch tok.text {
			case "(":
				depth++
			case ")":
				depth--
				if depth < 0 {
					return fmt.Errorf("unbalanced parentheses")
				}
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}
	return nil
}

// GuardOrderTerm checks a single ORDER BY entry: an expression optionally
// followed by ASC or DESC and NULLS FIRST or NULLS LAST.
func GuardOrderTerm(term string) error {
	fields := strings.Fields(term)
	n := len(fields)
	if n >= 2 && strings.EqualFold(fields[n-2], "nulls") &&
		(strings.EqualFold(fields[n-1], "first") || strings.EqualFold(fields[n-1], "last")) {
		n -= 2
	}
	if n >= 1 && (strings.EqualFold(fields[n-1], "asc") || strings.EqualFold(fields[n-1], "desc")) {
		n--
	}
	if n == 0 {
		return fmt.Errorf("order term %q has no expression", term)
	}
	return GuardExpression(strings.Join(fields[:n], " "))
}

func followedByParen(toks []token, i int) bool {
	return i+1 < len(toks) && toks[i+1].kind == tokOp && toks[i+1].text == "("
}

// unquoteIdent strips the surrounding double quotes and collapses doubled ones.
func unquoteIdent(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
	return strings.ReplaceAll(s, `""`, `"`)
}

// isGroupingKeyword reports keywords that may legitimately precede "(" without being calls.
func isGroupingKeyword(word string) bool {
	switch word {
	case "in", "and", "or", "not", "when", "then", "else", "as", "between":
		return true
	}
	return false
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == ';':
			return nil, fmt.Errorf("statement separator ';' is not allowed")
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			return nil, fmt.Errorf("comments are not allowed")
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			return nil, fmt.Errorf("comments are not allowed")
		case r == '\'':
			end, err := scanQuoted(rs, i, '\'')
			if err != nil {
				return nil, fmt.Errorf("unterminated string literal")
			}
			toks = append(toks, token{kind: tokString, text: string(rs[i:end])})
			i = end
		case r == '"':
			end, err := scanQuoted(rs, i, '"')
			if err != nil {
				return nil, fmt.Errorf("unterminated quoted identifier")
			}
			toks = append(toks, token{kind: tokQuotedIdent, text: string(rs[i:end])})
			i = end
		case unicode.IsLetter(r) || r == '_':
			j := i + 1
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[i:j])})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.' || rs[j] == 'e' || rs[j] == 'E') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[i:j])})
			i = j
		default:
			if i+1 < len(rs) && twoCharOps[string(rs[i:i+2])] {
				toks = append(toks, token{kind: tokOp, text: string(rs[i : i+2])})
				i += 2
				continue
			}
			if strings.ContainsRune(singleCharOps, r) {
				toks = append(toks, token{kind: tokOp, text: string(r)})
				i++
				continue
			}
			return nil, fmt.Errorf("character %q is not allowed in expressions", r)
		}
	}
	return toks, nil
}

// scanQuoted returns the index just past the closing quote starting at rs[start].
// A doubled quote character is an escaped quote.
func scanQuoted(rs []rune, start int, quote rune) (int, error) {
	for i := start + 1; i < len(rs); i++ {
		if rs[i] != quote {
			continue
		}
		if i+1 < len(rs) && rs[i+1] == quote {
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("unterminated")
}
