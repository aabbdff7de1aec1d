// internal/rules/functions.go
package rules

import (
	"fmt"
	"math"
	"time"

	"github.com/expr-lang/expr"
	"github.com/spf13/cast"
)

/*
 * Condition function allow-list.
 *
 * All expr builtins are disabled at compile time; only the functions below
 * are visible to rule conditions. The set mirrors the numeric and date
 * helpers operators expect from rule files (Math.* and DateTime.*), exposed
 * as plain lower-camel functions:
 *
 *   numeric: abs ceiling floor round truncate sqrt pow exp log log10 sign min max
 *   date:    now today year month day hour minute second dayOfWeek dayOfYear
 *            addSeconds addMinutes addHours addDays parseTime unix
 *
 * Numeric arguments accept any Go number or numeric text. Date arguments
 * accept time.Time or text understood by ParseValue.
 */

type conditionFunc struct {
	name  string
	arity int // -1 = variadic (at least one)
	fn    func(args []any) (any, error)
}

var conditionFuncs = []conditionFunc{
	{"abs", 1, unaryMath(math.Abs)},
	{"ceiling", 1, unaryMath(math.Ceil)},
	{"floor", 1, unaryMath(math.Floor)},
	{"round", -1, roundFunc},
	{"truncate", 1, unaryMath(math.Trunc)},
	{"sqrt", 1, unaryMath(math.Sqrt)},
	{"exp", 1, unaryMath(math.Exp)},
	{"log", 1, unaryMath(math.Log)},
	{"log10", 1, unaryMath(math.Log10)},
	{"sign", 1, signFunc},
	{"pow", 2, powFunc},
	{"min", -1, foldMath(math.Min)},
	{"max", -1, foldMath(math.Max)},

	{"now", 0, func([]any) (any, error) { return time.Now(), nil }},
	{"today", 0, func([]any) (any, error) {
		n := time.Now()
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location()), nil
	}},
	{"year", 1, timePart(func(t time.Time) int { return t.Year() })},
	{"month", 1, timePart(func(t time.Time) int { return int(t.Month()) })},
	{"day", 1, timePart(func(t time.Time) int { return t.Day() })},
	{"hour", 1, timePart(func(t time.Time) int { return t.Hour() })},
	{"minute", 1, timePart(func(t time.Time) int { return t.Minute() })},
	{"second", 1, timePart(func(t time.Time) int { return t.Second() })},
	{"dayOfWeek", 1, timePart(func(t time.Time) int { return int(t.Weekday()) })},
	{"dayOfYear", 1, timePart(func(t time.Time) int { return t.YearDay() })},
	{"addSeconds", 2, timeAdd(time.Second)},
	{"addMinutes", 2, timeAdd(time.Minute)},
	{"addHours", 2, timeAdd(time.Hour)},
	{"addDays", 2, timeAdd(24 * time.Hour)},
	{"parseTime", 1, func(args []any) (any, error) { return toTime(args[0]) }},
	{"unix", 1, func(args []any) (any, error) {
		t, err := toTime(args[0])
		if err != nil {
			return nil, err
		}
		return t.Unix(), nil
	}},
}

// functionOptions returns one expr.Function option per allow-listed function.
func functionOptions() []expr.Option {
	opts := make([]expr.Option, 0, len(conditionFuncs))
	for _, f := range conditionFuncs {
		f := f
		opts = append(opts, expr.Function(f.name, func(params ...any) (any, error) {
			if f.arity >= 0 && len(params) != f.arity {
				return nil, fmt.Errorf("%s: expected %d argument(s), got %d", f.name, f.arity, len(params))
			}
			if f.arity < 0 && len(params) == 0 {
				return nil, fmt.Errorf("%s: expected at least one argument", f.name)
			}
			return f.fn(params)
		}))
	}
	return opts
}

func unaryMath(op func(float64) float64) func([]any) (any, error) {
	return func(args []any) (any, error) {
		x, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		return op(x), nil
	}
}

func foldMath(op func(a, b float64) float64) func([]any) (any, error) {
	return func(args []any) (any, error) {
		acc, err := toFloat(args[0])
		if err != nil {
			return nil, err
		}
		for _, a := range args[1:] {
			x, err := toFloat(a)
			if err != nil {
				return nil, err
			}
			acc = op(acc, x)
		}
		return acc, nil
	}
}

// roundFunc rounds half away from zero, optionally to a number of digits.
func roundFunc(args []any) (any, error) {
	x, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return math.Round(x), nil
	}
	if len(args) > 2 {
		return nil, fmt.Errorf("round: expected 1 or 2 arguments, got %d", len(args))
	}
	digits, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	scale := math.Pow(10, math.Trunc(digits))
	return math.Round(x*scale) / scale, nil
}

func signFunc(args []any) (any, error) {
	x, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	switch {
	case x > 0:
		return 1, nil
	case x < 0:
		return -1, nil
	default:
		return 0, nil
	}
}

func powFunc(args []any) (any, error) {
	x, err := toFloat(args[0])
	if err != nil {
		return nil, err
	}
	y, err := toFloat(args[1])
	if err != nil {
		return nil, err
	}
	return math.Pow(x, y), nil
}

func timePart(part func(time.Time) int) func([]any) (any, error) {
	return func(args []any) (any, error) {
		t, err := toTime(args[0])
		if err != nil {
			return nil, err
		}
		return part(t), nil
	}
}

func timeAdd(unit time.Duration) func([]any) (any, error) {
	return func(args []any) (any, error) {
		t, err := toTime(args[0])
		if err != nil {
			return nil, err
		}
		n, err := toFloat(args[1])
		if err != nil {
			return nil, err
		}
		return t.Add(time.Duration(n * float64(unit))), nil
	}
}

// toFloat accepts any numeric type or numeric text; bools are rejected.
func toFloat(v any) (float64, error) {
	if _, ok := v.(bool); ok {
		return 0, fmt.Errorf("expected number, got bool")
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	return f, nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		if parsed, ok := ParseValue(t).(time.Time); ok {
			return parsed, nil
		}
		return time.Time{}, fmt.Errorf("not a timestamp: %q", t)
	default:
		return time.Time{}, fmt.Errorf("expected timestamp, got %T", v)
	}
}
