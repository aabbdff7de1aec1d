// internal/rules/condition.go
package rules

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"
	"github.com/solatis/trapmapper/internal/types"
)

/*
 * Rule condition compilation and evaluation.
 *
 * Conditions are expr-lang expressions over a sandboxed environment:
 *   - exactly one variable, `value`, bound per evaluation
 *   - all expr builtins disabled; only the allow-list in functions.go
 *   - expression size capped by MaxConditionNodes at compile time
 *   - range literals (a..b) rejected, so no condition allocates in
 *     proportion to a constant it names
 *
 * Results are coerced to bool: bools pass through, numbers are true when
 * non-zero, text goes through ParseBoolean, nil is false. Anything else is
 * an evaluation error.
 *
 * Every failure wraps types.ErrEval so callers can log and skip the rule
 * without aborting the enclosing dispatch loop.
 */

// MaxConditionNodes bounds the AST size of a single condition.
const MaxConditionNodes = 512

// DefaultCondition always holds.
const DefaultCondition = "true"

// conditionEnv is the only data visible to a condition.
type conditionEnv struct {
	Value any `expr:"value"`
}

// rangeGuard records range operators seen while the condition is compiled.
type rangeGuard struct {
	found bool
}

func (g *rangeGuard) Visit(node *ast.Node) {
	if b, ok := (*node).(*ast.BinaryNode); ok && b.Operator == ".." {
		g.found = true
	}
}

// Condition is a compiled rule condition.
type Condition struct {
	text    string
	program *vm.Program
}

// Compile compiles expression text against the restricted environment.
func Compile(text string) (*Condition, error) {
	guard := &rangeGuard{}
	opts := []expr.Option{
		expr.Env(conditionEnv{}),
		expr.DisableAllBuiltins(),
		expr.MaxNodes(MaxConditionNodes),
		expr.Patch(guard),
	}
	opts = append(opts, functionOptions()...)

	program, err := expr.Compile(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", types.ErrEval, text, err)
	}
	if guard.found {
		return nil, fmt.Errorf("%w: compile %q: range expressions are not allowed", types.ErrEval, text)
	}
	return &Condition{text: text, program: program}, nil
}

// String returns the source text of the condition.
func (c *Condition) String() string {
	return c.text
}

// Evaluate binds value and runs the condition. When ctx carries a deadline
// the evaluation is abandoned once it passes; the abandoned run still
// finishes in the background since expr programs cannot be interrupted.
func (c *Condition) Evaluate(ctx context.Context, value any) (bool, error) {
	if ctx.Done() == nil {
		return c.run(value)
	}

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := c.run(value)
		done <- result{ok: ok, err: err}
	}()

	select {
	case r := <-done:
		return r.ok, r.err
	case <-ctx.Done():
		return false, fmt.Errorf("%w: %q: %w", types.ErrEval, c.text, types.ErrEvalTimeout)
	}
}

func (c *Condition) run(value any) (bool, error) {
	out, err := expr.Run(c.program, conditionEnv{Value: value})
	if err != nil {
		return false, fmt.Errorf("%w: evaluate %q: %v", types.ErrEval, c.text, err)
	}
	ok, err := toBool(out)
	if err != nil {
		return false, fmt.Errorf("%w: %q: %v", types.ErrEval, c.text, err)
	}
	return ok, nil
}

// toBool coerces an expression result to a boolean.
func toBool(out any) (bool, error) {
	switch v := out.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return ParseBoolean(v)
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return ParseBoolean(fmt.Sprint(v))
	}
}
