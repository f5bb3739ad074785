package spec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/shopspring/decimal"
)

// divisionPrecision is the number of decimal places kept by a quotient.
const divisionPrecision = 16

var errDivisionByZero = errors.New("division by zero")

var operatorFunctions = map[Operator]string{
	OpAdd:      "add",
	OpSubtract: "sub",
	OpMultiply: "mul",
	OpDivide:   "div",
}

// decimalOptions registers the exact decimal arithmetic the folded program
// calls instead of expr's native int64 and float64 operators.
func decimalOptions() []expr.Option {
	binary := new(func(decimal.Decimal, decimal.Decimal) decimal.Decimal)
	fold := func(op func(a, b decimal.Decimal) (decimal.Decimal, error)) func(params ...any) (any, error) {
		return func(params ...any) (any, error) {
			return op(params[0].(decimal.Decimal), params[1].(decimal.Decimal))
		}
	}
	return []expr.Option{
		expr.Function("add", fold(func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Add(b), nil }), binary),
		expr.Function("sub", fold(func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Sub(b), nil }), binary),
		expr.Function("mul", fold(func(a, b decimal.Decimal) (decimal.Decimal, error) { return a.Mul(b), nil }), binary),
		expr.Function("div", fold(func(a, b decimal.Decimal) (decimal.Decimal, error) {
			if b.IsZero() {
				return decimal.Zero, errDivisionByZero
			}
			return a.DivRound(b, divisionPrecision), nil
		}), binary),
	}
}

// Evaluate folds an expression whose operands are numeric values, or
// expressions that evaluate themselves, into a single number. Operands are
// combined left to right with arbitrary precision; quotients keep
// divisionPrecision decimal places. References, module calls, file paths and
// lists are not evaluable.
func (e *Expression) Evaluate() (decimal.Decimal, error) {
	if e == nil || !e.Resolved() {
		return decimal.Zero, fmt.Errorf("%w: expression is not resolved", ErrNotEvaluable)
	}
	if len(e.Operands) < 2 {
		return decimal.Zero, fmt.Errorf("%w: %q needs at least two operands", ErrNotEvaluable, e.Raw)
	}
	fn, ok := operatorFunctions[e.Operator]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q has unknown operator %q", ErrNotEvaluable, e.Raw, e.Operator)
	}

	env := make(map[string]any, len(e.Operands))
	var code strings.Builder
	for i, operand := range e.Operands {
		value, err := operandNumber(operand)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q operand %d: %v", ErrNotEvaluable, e.Raw, i, err)
		}
		name := fmt.Sprintf("x%d", i)
		env[name] = value
		if i == 0 {
			code.WriteString(name)
			continue
		}
		// x0 - x1 - x2 becomes sub(sub(x0, x1), x2).
		folded := code.String()
		code.Reset()
		fmt.Fprintf(&code, "%s(%s, %s)", fn, folded, name)
	}

	program, err := expr.Compile(code.String(), append(decimalOptions(), expr.Env(env))...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("compile %q: %w", e.Raw, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrNotEvaluable, e.Raw, err)
	}
	result, ok := out.(decimal.Decimal)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q produced %T", ErrNotEvaluable, e.Raw, out)
	}
	return result, nil
}

func operandNumber(s Spec) (decimal.Decimal, error) {
	switch typed := s.(type) {
	case *Value:
		return typed.Decimal()
	case *Expression:
		return typed.Evaluate()
	default:
		return decimal.Zero, fmt.Errorf("%s operand", s.Kind())
	}
}
