package expr

import (
	"fmt"
	"strconv"

	"github.com/expr-lang/expr"
)

// ExprLangEvaluator is a second alternate Evaluator backend, compiling a
// parsed expression into expr-lang source and running it through
// expr.Compile/expr.Run instead of the hand-rolled tree-walker in Sandbox.
// Variable reads are routed through two expr.Function bindings (gg for
// $global, gl for %local) the same way RisorEvaluator routes them through
// Risor builtins, so assignment write-back still lands in the caller's
// Store and expr-lang itself never sees $ or % sigils.
//
// Runtime errors surfaced by the expr-lang VM are wrapped as a generic
// TypeError rather than classified the way Sandbox classifies them —
// callers that depend on exact error Kind matching (DivisionByZero in
// particular) should prefer Sandbox.
type ExprLangEvaluator struct{}

// NewExprLangEvaluator returns the expr-lang-backed alternate Evaluator.
func NewExprLangEvaluator() *ExprLangEvaluator {
	return &ExprLangEvaluator{}
}

var _ Evaluator = (*ExprLangEvaluator)(nil)

func (e *ExprLangEvaluator) Eval(expression string, globals, locals Store) (any, error) {
	sanitized := Sanitize(expression)

	toks, err := newLexer(sanitized).tokenize()
	if err != nil {
		return nil, err
	}
	ast, err := newParser(toks).parse()
	if err != nil {
		return nil, err
	}

	return evalExprLangNode(ast, globals, locals)
}

func evalExprLangNode(n astNode, globals, locals Store) (any, error) {
	if a, ok := n.(assignNode); ok {
		store := storeFor(a.target.global, globals, locals)
		if store == nil {
			return nil, newError(UndefinedVariable, "cannot assign %s%s: no store configured", sigil(a.target.global), a.target.name)
		}

		value, err := evalExprLangNode(a.value, globals, locals)
		if err != nil {
			return nil, err
		}

		if a.op != "=" {
			current, ok := store.Get(a.target.name)
			if !ok {
				return nil, newError(UndefinedVariable, "undefined variable %s%s", sigil(a.target.global), a.target.name)
			}
			op := a.op[:len(a.op)-1] // strip trailing "="
			value, err = applyBinaryOp(op, current, value)
			if err != nil {
				return nil, err
			}
		}

		store.Set(a.target.name, value)
		return value, nil
	}

	src, err := compileToExprLang(n)
	if err != nil {
		return nil, err
	}

	opts := []expr.Option{
		expr.Function("gg", func(params ...any) (any, error) {
			name, _ := params[0].(string)
			return lookupVar(globals, "$", name)
		}),
		expr.Function("gl", func(params ...any) (any, error) {
			name, _ := params[0].(string)
			return lookupVar(locals, "%", name)
		}),
	}

	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, newError(SyntaxError, "%v", err)
	}
	result, err := expr.Run(program, nil)
	if err != nil {
		if evalErr, ok := err.(*EvalError); ok {
			return nil, evalErr
		}
		return nil, newError(TypeError, "%v", err)
	}
	return result, nil
}

// compileToExprLang renders a parsed (non-assignment) node as expr-lang
// source. Binary and unary operators are passed through unchanged —
// expr-lang's operator set for these matches the mini-language's.
func compileToExprLang(n astNode) (string, error) {
	switch t := n.(type) {
	case numberNode:
		return strconv.FormatFloat(t.val, 'g', -1, 64), nil
	case stringNode:
		return strconv.Quote(t.val), nil
	case boolNode:
		if t.val {
			return "true", nil
		}
		return "false", nil
	case varNode:
		if t.global {
			return fmt.Sprintf("gg(%s)", strconv.Quote(t.name)), nil
		}
		return fmt.Sprintf("gl(%s)", strconv.Quote(t.name)), nil
	case unaryNode:
		x, err := compileToExprLang(t.x)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s(%s))", t.op, x), nil
	case binaryNode:
		l, err := compileToExprLang(t.l)
		if err != nil {
			return "", err
		}
		r, err := compileToExprLang(t.r)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, t.op, r), nil
	default:
		return "", newError(SyntaxError, "internal: cannot compile node type %T to expr-lang source", n)
	}
}
