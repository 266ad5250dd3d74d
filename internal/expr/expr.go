package expr

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	variable   = regexp.MustCompile(`\$(\w+)`)
	expression = regexp.MustCompile(`\[\[(.*?)\]\]`)
)

const (
	invalidRange  = "* invalid range *"
	invalidSwitch = "* invalid switch *"
	delimiters    = "()+-*/,^"
)

type Evaluator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Compute substitutes $name parameters in text and then replaces every
// [[...]] span by its evaluated result. A nil params skips substitution.
func (ev *Evaluator) Compute(text string, params map[string]string) string {
	if params != nil {
		text = Substitute(text, params)
	}
	return expression.ReplaceAllStringFunc(text, func(m string) string {
		return ev.Evaluate(expression.FindStringSubmatch(m)[1])
	})
}

// Substitute replaces each $name with its parameter value. Dollar signs in
// values become underscores so a value cannot introduce a new variable.
// Unknown names are left as they are.
func Substitute(text string, params map[string]string) string {
	return variable.ReplaceAllStringFunc(text, func(m string) string {
		v, ok := params[m[1:]]
		if !ok {
			return m
		}
		return strings.ReplaceAll(v, "$", "_")
	})
}

// Evaluate computes one expression. Arithmetic is integer only and folds
// strictly left to right without precedence. Errors come back as a
// sentinel string in place of the result.
func (ev *Evaluator) Evaluate(src string) string {
	p := &evaluation{src: src, tokens: tokenize(src), logger: ev.logger}
	v, _ := p.expr()
	return v
}

func tokenize(src string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, c := range src {
		switch {
		case unicode.IsSpace(c):
		case strings.ContainsRune(delimiters, c):
			flush()
			tokens = append(tokens, string(c))
		default:
			cur.WriteRune(c)
		}
	}
	flush()
	return tokens
}

type evaluation struct {
	src    string
	tokens []string
	pos    int
	logger *slog.Logger
}

func (p *evaluation) next() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	t := p.tokens[p.pos]
	p.pos++
	return t, true
}

func (p *evaluation) peek() (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	return p.tokens[p.pos], true
}

func (p *evaluation) fail(msg string) (string, bool) {
	p.logger.Warn("invalid expression", "expression", p.src, "error", msg)
	return msg, false
}

// expr reads term (op term)* and consumes a closing ")" or "," that ends it.
func (p *evaluation) expr() (string, bool) {
	v, ok := p.term()
	if !ok {
		return v, false
	}
	for {
		op, more := p.peek()
		if !more {
			return v, true
		}
		if op == ")" || op == "," {
			p.next()
			return v, true
		}
		if !strings.Contains("+-*/^", op) || len(op) != 1 {
			return p.fail(fmt.Sprintf("* invalid operator %s: %s *", op, p.src))
		}
		p.next()
		rhs, ok := p.term()
		if !ok {
			return rhs, false
		}
		if v, ok = p.apply(v, op, rhs); !ok {
			return v, false
		}
	}
}

func (p *evaluation) term() (string, bool) {
	tok, ok := p.next()
	if !ok {
		return p.fail(fmt.Sprintf("* invalid expression, expected (: %s *", p.src))
	}
	switch strings.ToLower(tok) {
	case "(":
		return p.expr()
	case "-":
		v, ok := p.term()
		if !ok {
			return v, false
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return p.fail(fmt.Sprintf("* invalid number: %s *", v))
		}
		return strconv.Itoa(-n), true
	case "+":
		return p.term()
	case "min", "max":
		return p.minMax(strings.ToLower(tok))
	case "range":
		return p.rangeCall()
	case "switch":
		return p.switchCall()
	}
	return tok, true
}

func (p *evaluation) open() bool {
	if t, ok := p.peek(); ok && t == "(" {
		p.next()
		return true
	}
	return false
}

func (p *evaluation) minMax(fn string) (string, bool) {
	if !p.open() {
		return p.fail(fmt.Sprintf("* invalid expression, expected (: %s *", p.src))
	}
	a, ok := p.expr()
	if !ok {
		return a, false
	}
	b, ok := p.expr()
	if !ok {
		return b, false
	}
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return p.fail(fmt.Sprintf("* invalid number: %s(%s, %s) *", fn, a, b))
	}
	if (fn == "min") == (x < y) {
		return strconv.Itoa(x), true
	}
	return strconv.Itoa(y), true
}

// args collects the raw, comma separated arguments up to the closing
// parenthesis at the current depth.
func (p *evaluation) args() ([]string, bool) {
	var out []string
	var cur strings.Builder
	depth := 0
	for {
		t, ok := p.next()
		if !ok {
			return nil, false
		}
		switch {
		case t == "(":
			depth++
		case t == ")" && depth == 0:
			return append(out, cur.String()), true
		case t == ")":
			depth--
		case t == "," && depth == 0:
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteString(t)
	}
}

// rangeCall evaluates range(level, t1:v1, t2:v2, ...). Pairs are scanned
// from last to first and the greatest threshold not above level wins, the
// earlier hit in that scan on a tie. Malformed pairs are skipped.
func (p *evaluation) rangeCall() (string, bool) {
	if !p.open() {
		return p.fail(fmt.Sprintf("* invalid expression, expected (: %s *", p.src))
	}
	levelText, ok := p.expr()
	if !ok {
		return levelText, false
	}
	level, err := strconv.Atoi(levelText)
	if err != nil {
		return p.fail(fmt.Sprintf("* invalid number: %s *", levelText))
	}
	pairs, ok := p.args()
	if !ok {
		return p.fail(invalidRange)
	}
	best, found := 0, false
	result := ""
	for i := len(pairs) - 1; i >= 0; i-- {
		parts := strings.Split(pairs[i], ":")
		if len(parts) != 2 {
			continue
		}
		threshold, err := strconv.Atoi(parts[0])
		if err != nil || threshold > level {
			continue
		}
		if !found || threshold > best {
			best, found, result = threshold, true, parts[1]
		}
	}
	if !found {
		return p.fail(invalidRange)
	}
	return result, true
}

// switchCall evaluates switch(value, c1|c2:r1, default:r2, ...). Cases
// match case-insensitively and the first matching option wins.
func (p *evaluation) switchCall() (string, bool) {
	if !p.open() {
		return p.fail(fmt.Sprintf("* invalid expression, expected (: %s *", p.src))
	}
	v, ok := p.expr()
	if !ok {
		return v, false
	}
	options, ok := p.args()
	if !ok {
		return p.fail(invalidSwitch)
	}
	for _, option := range options {
		parts := strings.Split(option, ":")
		if len(parts) != 2 {
			continue
		}
		for _, c := range strings.Split(parts[0], "|") {
			if strings.EqualFold(c, v) || strings.EqualFold(c, "default") {
				return parts[1], true
			}
		}
	}
	return p.fail(invalidSwitch)
}

func (p *evaluation) apply(left, op, right string) (string, bool) {
	a, errA := strconv.Atoi(left)
	b, errB := strconv.Atoi(right)
	if errA != nil || errB != nil {
		return p.fail(fmt.Sprintf("* invalid number: %s %s %s *", left, op, right))
	}
	var n int
	switch op {
	case "+":
		n = a + b
	case "-":
		n = a - b
	case "*":
		n = a * b
	case "/":
		if b == 0 {
			return "0", true
		}
		n = a / b
	case "^":
		n = power(a, b)
	}
	return strconv.Itoa(n), true
}

func power(base, exp int) int {
	if exp < 0 {
		switch base {
		case 1:
			return 1
		case -1:
			if exp%2 == 0 {
				return 1
			}
			return -1
		}
		return 0
	}
	// Results outside the int range saturate toward the sign of the result.
	limit := math.MaxInt
	if base < 0 && exp%2 == 1 {
		limit = math.MinInt
	}
	n, b := 1, base
	for exp > 0 {
		var ok bool
		if exp&1 == 1 {
			if n, ok = mulInt(n, b); !ok {
				return limit
			}
		}
		exp >>= 1
		if exp > 0 {
			if b, ok = mulInt(b, b); !ok {
				return limit
			}
		}
	}
	return n
}

func mulInt(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	n := a * b
	if n/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	return n, true
}
