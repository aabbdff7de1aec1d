package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solatis/trapmapper/internal/types"
)

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "syntax error", expr: "value >"},
		{name: "unknown variable", expr: "other > 1"},
		{name: "disabled builtin", expr: "len('abc') > 1"},
		{name: "unknown function", expr: "exec('rm')"},
		{name: "range literal", expr: "value in 1..100000000"},
		{name: "nested range", expr: "abs(value) > 1 && value in 0..5"},
		{name: "ticks is not defined", expr: "ticks(value) > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			if !errors.Is(err, types.ErrEval) {
				t.Errorf("Compile(%q) error = %v, want ErrEval", tt.expr, err)
			}
		})
	}
}

func TestCondition_Evaluate(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		value   any
		want    bool
		wantErr bool
	}{
		{name: "default true", expr: DefaultCondition, value: 1, want: true},
		{name: "greater than int", expr: "value > 10", value: 15, want: true},
		{name: "greater than false", expr: "value > 10", value: 5, want: false},
		{name: "float compare", expr: "value >= 2.5", value: 2.5, want: true},
		{name: "string equality", expr: "value == 'down'", value: "down", want: true},
		{name: "bool value", expr: "value", value: true, want: true},
		{name: "math function", expr: "abs(value) > 3", value: -4, want: true},
		{name: "round digits", expr: "round(value, 1) == 1.3", value: 1.26, want: true},
		{name: "min max", expr: "max(value, 3) == 7 && min(value, 3) == 3", value: 7, want: true},
		{name: "pow and sqrt", expr: "sqrt(pow(value, 2)) == 9", value: 9, want: true},
		{name: "unix seconds", expr: "unix(value) == 1577836800", value: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "membership without range", expr: "value in [1, 2, 3]", value: 2, want: true},
		{name: "date part", expr: "year(value) == 2020", value: time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "text result true", expr: "'yes'", value: nil, want: true},
		{name: "numeric result zero", expr: "value * 0", value: 3, want: false},
		{name: "nil result", expr: "nil", value: 1, want: false},
		{name: "type mismatch at runtime", expr: "value > 10", value: "abc", wantErr: true},
		{name: "function on bad input", expr: "abs(value) > 1", value: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.expr, err)
			}
			got, err := cond.Evaluate(context.Background(), tt.value)
			if tt.wantErr {
				if !errors.Is(err, types.ErrEval) {
					t.Errorf("Evaluate() error = %v, want ErrEval", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCondition_EvaluateWithDeadline(t *testing.T) {
	cond, err := Compile("value > 1")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := cond.Evaluate(ctx, 2)
	if err != nil || !got {
		t.Errorf("Evaluate() = (%v, %v), want (true, nil)", got, err)
	}

	expired, cancelExpired := context.WithCancel(context.Background())
	cancelExpired()

	// Either outcome is acceptable for an already-cancelled context, but an
	// error must be the timeout error.
	if _, err := cond.Evaluate(expired, 2); err != nil && !errors.Is(err, types.ErrEvalTimeout) {
		t.Errorf("Evaluate(cancelled) error = %v, want ErrEvalTimeout", err)
	}
}

func TestRule_MatchCachesCompileError(t *testing.T) {
	rule := NewRule("1.3.6.1")
	rule.Condition = "value >"

	for i := 0; i < 2; i++ {
		ok, err := rule.Match(context.Background(), 1)
		if ok || !errors.Is(err, types.ErrEval) {
			t.Fatalf("Match() = (%v, %v), want (false, ErrEval)", ok, err)
		}
	}

	c1, err1 := rule.Compiled()
	c2, err2 := rule.Compiled()
	if c1 != nil || c2 != nil || err1 != err2 {
		t.Errorf("Compiled() not cached: (%v, %v) vs (%v, %v)", c1, err1, c2, err2)
	}
}

func TestRule_MatchBindsValue(t *testing.T) {
	rule := NewRule("1.3.6.1")
	rule.Condition = "value == 5"

	ok, err := rule.Match(context.Background(), 5)
	if err != nil || !ok {
		t.Fatalf("Match(5) = (%v, %v), want (true, nil)", ok, err)
	}
	if rule.Bound() != 5 {
		t.Errorf("Bound() = %v, want 5", rule.Bound())
	}

	ok, err = rule.Match(context.Background(), 6)
	if err != nil || ok {
		t.Fatalf("Match(6) = (%v, %v), want (false, nil)", ok, err)
	}
	if rule.Bound() != 6 {
		t.Errorf("Bound() = %v, want 6", rule.Bound())
	}
}
