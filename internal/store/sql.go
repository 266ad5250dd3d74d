package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// MaxSQLRows caps how many rows one RunSQL call returns.
const MaxSQLRows = 10000

var (
	ErrNotReadOnly = errors.New("statement is not read-only")
	ErrTooManyRows = fmt.Errorf("query returned more than %d rows", MaxSQLRows)
)

var readOnlyVerbs = map[string]bool{
	"select":  true,
	"with":    true,
	"values":  true,
	"explain": true,
}

// CheckReadOnly accepts a single statement that starts with a query verb.
// The entry tables mirror the source files, so ad hoc SQL may read them
// but never write. Backends also run the statement in a read-only
// session, which catches writes hidden behind WITH.
func CheckReadOnly(query string) error {
	body, err := singleStatement(query)
	if err != nil {
		return err
	}
	verb := strings.ToLower(strings.FieldsFunc(body, func(r rune) bool {
		return !unicode.IsLetter(r)
	})[0])
	if !readOnlyVerbs[verb] {
		return fmt.Errorf("%w: %s", ErrNotReadOnly, strings.ToUpper(verb))
	}
	return nil
}

// singleStatement strips leading comments and a trailing semicolon and
// fails when more than one statement remains.
func singleStatement(query string) (string, error) {
	q := strings.TrimSpace(query)
	for {
		switch {
		case strings.HasPrefix(q, "--"):
			_, rest, _ := strings.Cut(q, "\n")
			q = strings.TrimSpace(rest)
			continue
		case strings.HasPrefix(q, "/*"):
			_, rest, ok := strings.Cut(q, "*/")
			if !ok {
				return "", fmt.Errorf("unterminated comment")
			}
			q = strings.TrimSpace(rest)
			continue
		}
		break
	}
	if strings.TrimFunc(q, func(r rune) bool { return !unicode.IsLetter(r) }) == "" {
		return "", fmt.Errorf("empty statement")
	}

	var quote rune
	for i, c := range q {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			if strings.TrimSpace(strings.TrimRight(q[i:], "; \t\r\n")) != "" {
				return "", fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
			}
			return q[:i], nil
		}
	}
	return q, nil
}

// SplitParams separates params keyed "1", "2", ... into positional args in
// order from the remaining named ones.
func SplitParams(params map[string]any) (positional []any, named map[string]any) {
	named = make(map[string]any)
	for key, val := range params {
		if _, err := strconv.Atoi(key); err != nil {
			named[key] = val
		}
	}
	for i := 1; i <= len(params)-len(named); i++ {
		if val, ok := params[strconv.Itoa(i)]; ok {
			positional = append(positional, val)
		}
	}
	return positional, named
}
