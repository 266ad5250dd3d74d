package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCompute(t *testing.T) {
	ev := New(nil)
	tests := []struct {
		name   string
		text   string
		params map[string]string
		want   string
	}{
		{name: "left to right", text: "[[2+3*4]]", want: "20"},
		{name: "parentheses", text: "[[2+(3*4)]]", want: "14"},
		{name: "division by zero", text: "[[4/0]]", want: "0"},
		{name: "integer division", text: "[[7/2]]", want: "3"},
		{name: "power", text: "[[2^10]]", want: "1024"},
		{name: "negative power", text: "[[2^-1]]", want: "0"},
		{name: "large exact power", text: "[[3^39]]", want: "4052555153018976267"},
		{name: "huge exponent saturates", text: "[[2^9000000000000]]", want: strconv.Itoa(math.MaxInt)},
		{name: "power overflow saturates", text: "[[3^40]]", want: strconv.Itoa(math.MaxInt)},
		{name: "wide power overflow saturates", text: "[[2^100]]", want: strconv.Itoa(math.MaxInt)},
		{name: "negative overflow saturates", text: "[[0-3^41]]", want: strconv.Itoa(math.MinInt)},
		{name: "unit base huge exponent", text: "[[1^9000000000000]]", want: "1"},
		{name: "unary minus", text: "[[-3+1]]", want: "-2"},
		{name: "whitespace", text: "[[ 1 +\t2 ]]", want: "3"},
		{name: "min", text: "[[min(3,max(1,7))]]", want: "3"},
		{name: "max then op", text: "[[max(2,5)*2]]", want: "10"},
		{name: "switch", text: "[[switch(common,rare:X,common:Y,default:Z)]]", want: "Y"},
		{name: "switch case insensitive", text: "[[switch(RARE,rare|epic:X,default:Z)]]", want: "X"},
		{name: "switch default", text: "[[switch(junk,rare:X,default:Z)]]", want: "Z"},
		{name: "switch no match", text: "[[switch(junk,rare:X)]]", want: invalidSwitch},
		{name: "range", text: "[[range(5,10:high,3:mid,0:low)]]", want: "mid"},
		{name: "range ascending", text: "[[range(12,0:low,3:mid,10:high)]]", want: "high"},
		{name: "range skips malformed", text: "[[range(5,x:bad,1:2:worse,2:ok)]]", want: "ok"},
		{name: "range no match", text: "[[range(1,3:mid,10:high)]]", want: invalidRange},
		{name: "range computed level", text: "[[range(2*3,0:low,6:six)]]", want: "six"},
		{name: "surrounding text", text: "deals [[1+1]]d6 and [[4/0]] more", want: "deals 2d6 and 0 more"},
		{name: "substitution", text: "[[$level*2]] at level $level", params: map[string]string{"level": "4"}, want: "8 at level 4"},
		{name: "unknown parameter", text: "$missing stays", params: map[string]string{}, want: "$missing stays"},
		{name: "no substitution without params", text: "$level", want: "$level"},
		{name: "bare word", text: "[[abc]]", want: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.Compute(tt.text, tt.params))
		})
	}
}

func TestMalformedExpressionsYieldSentinels(t *testing.T) {
	ev := New(nil)
	tests := []struct {
		text   string
		prefix string
	}{
		{text: "[[4+]]", prefix: "* invalid expression, expected (: 4+ *"},
		{text: "[[min,3]]", prefix: "* invalid expression, expected (: min,3 *"},
		{text: "[[abc+1]]", prefix: "* invalid number"},
		{text: "[[-abc]]", prefix: "* invalid number"},
		{text: "[[range(x,1:a)]]", prefix: "* invalid number"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ev.Compute("before "+tt.text+" after", nil)
			assert.True(t, strings.HasPrefix(got, "before "+tt.prefix), "got %q", got)
			assert.True(t, strings.HasSuffix(got, " after"), "got %q", got)
		})
	}
}

func TestSubstituteEscapesDollars(t *testing.T) {
	got := Substitute("$a and $b", map[string]string{"a": "$b", "b": "x"})
	assert.Equal(t, "_b and x", got)
}

func TestLeftToRightFoldProperty(t *testing.T) {
	ev := New(nil)
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "terms")
		acc := rapid.IntRange(-50, 50).Draw(rt, "first")
		text := fmt.Sprint(acc)
		for i := 0; i < n; i++ {
			op := rapid.SampledFrom([]string{"+", "-", "*", "/"}).Draw(rt, "op")
			x := rapid.IntRange(0, 50).Draw(rt, "operand")
			text += op + fmt.Sprint(x)
			switch op {
			case "+":
				acc += x
			case "-":
				acc -= x
			case "*":
				acc *= x
			case "/":
				if x == 0 {
					acc = 0
				} else {
					acc /= x
				}
			}
		}
		if got := ev.Evaluate(text); got != fmt.Sprint(acc) {
			rt.Fatalf("%s = %s, want %d", text, got, acc)
		}
	})
}

func TestComputeWithoutExpressionsIsIdentity(t *testing.T) {
	ev := New(nil)
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[A-Za-z0-9 .,;()+*-]{0,40}`).Draw(rt, "text")
		if got := ev.Compute(text, nil); got != text {
			rt.Fatalf("Compute(%q) = %q", text, got)
		}
	})
}
