package expr

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
)

// RisorEvaluator is an alternate Evaluator backend that compiles a parsed
// expression into Risor source and runs it through risor.Eval instead of
// the hand-rolled tree-walker in Sandbox. Variable reads are routed through
// injected builtins (__gg for $global, __gl for %local) rather than Risor's
// own globals map, so assignment write-back still lands in the caller's
// Store; Risor itself never sees $ or % sigils.
//
// Runtime errors surfaced by the Risor VM (a type mismatch mid-expression,
// say) are wrapped as a generic TypeError rather than classified the way
// Sandbox classifies them — callers that depend on exact error Kind
// matching (DivisionByZero in particular) should prefer Sandbox.
type RisorEvaluator struct{}

// NewRisorEvaluator returns the Risor-backed alternate Evaluator.
func NewRisorEvaluator() *RisorEvaluator {
	return &RisorEvaluator{}
}

var _ Evaluator = (*RisorEvaluator)(nil)

func (r *RisorEvaluator) Eval(expression string, globals, locals Store) (any, error) {
	sanitized := Sanitize(expression)

	toks, err := newLexer(sanitized).tokenize()
	if err != nil {
		return nil, err
	}
	ast, err := newParser(toks).parse()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	return evalRisorNode(ctx, ast, globals, locals)
}

func evalRisorNode(ctx context.Context, n astNode, globals, locals Store) (any, error) {
	if a, ok := n.(assignNode); ok {
		store := storeFor(a.target.global, globals, locals)
		if store == nil {
			return nil, newError(UndefinedVariable, "cannot assign %s%s: no store configured", sigil(a.target.global), a.target.name)
		}

		value, err := evalRisorNode(ctx, a.value, globals, locals)
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

	src, err := compileToRisor(n)
	if err != nil {
		return nil, err
	}

	risorGlobals := convertGlobals(map[string]any{
		"__gg": func(name string) (any, error) { return lookupVar(globals, "$", name) },
		"__gl": func(name string) (any, error) { return lookupVar(locals, "%", name) },
	})

	result, err := risor.Eval(ctx, src,
		risor.WithoutDefaultGlobals(),
		risor.WithGlobals(risorGlobals),
	)
	if err != nil {
		if evalErr, ok := err.(*EvalError); ok {
			return nil, evalErr
		}
		return nil, newError(TypeError, "%v", err)
	}
	return objectToGo(result), nil
}

func lookupVar(store Store, sigilStr, name string) (any, error) {
	if store == nil {
		return nil, newError(UndefinedVariable, "variable %s%s is not bound: no store configured", sigilStr, name)
	}
	v, ok := store.Get(name)
	if !ok {
		return nil, newError(UndefinedVariable, "undefined variable %s%s", sigilStr, name)
	}
	return v, nil
}

func storeFor(global bool, globals, locals Store) Store {
	if global {
		return globals
	}
	return locals
}

// compileToRisor renders a parsed (non-assignment) node as Risor source.
// Binary and unary operators are passed through unchanged — Risor's
// operator set for these matches the mini-language's.
func compileToRisor(n astNode) (string, error) {
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
			return fmt.Sprintf("__gg(%s)", strconv.Quote(t.name)), nil
		}
		return fmt.Sprintf("__gl(%s)", strconv.Quote(t.name)), nil
	case unaryNode:
		x, err := compileToRisor(t.x)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s(%s))", t.op, x), nil
	case binaryNode:
		l, err := compileToRisor(t.l)
		if err != nil {
			return "", err
		}
		r, err := compileToRisor(t.r)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", l, t.op, r), nil
	default:
		return "", newError(SyntaxError, "internal: cannot compile node type %T to risor source", n)
	}
}

// The conversion helpers below wrap arbitrary Go functions as Risor builtins
// so the evaluator can inject __gg/__gl without exposing Risor's file/os
// builtins or any other ambient capability.

func convertGlobals(globals map[string]any) map[string]any {
	result := make(map[string]any, len(globals))
	for k, v := range globals {
		result[k] = goToRisor(k, v)
	}
	return result
}

func goToRisor(name string, v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.(object.Object); ok {
		return v
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return wrapGoFunc(name, v)
	}
	return v
}

func wrapGoFunc(name string, fn any) *object.Builtin {
	fnValue := reflect.ValueOf(fn)
	fnType := fnValue.Type()

	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		goArgs := make([]reflect.Value, len(args))
		for i, arg := range args {
			goVal := objectToGo(arg)
			if i < fnType.NumIn() {
				goArgs[i] = convertToExpectedType(goVal, fnType.In(i))
			} else {
				goArgs[i] = reflect.ValueOf(goVal)
			}
		}

		results := fnValue.Call(goArgs)
		if len(results) == 0 {
			return object.Nil
		}

		lastIdx := len(results) - 1
		if fnType.Out(lastIdx).Implements(reflect.TypeOf((*error)(nil)).Elem()) {
			if !results[lastIdx].IsNil() {
				return object.NewError(results[lastIdx].Interface().(error))
			}
			if len(results) > 1 {
				return goValueToObject(results[0].Interface())
			}
			return object.Nil
		}
		return goValueToObject(results[0].Interface())
	})
}

func convertToExpectedType(val any, expected reflect.Type) reflect.Value {
	if val == nil {
		return reflect.Zero(expected)
	}
	actual := reflect.ValueOf(val)
	if actual.Type().AssignableTo(expected) {
		return actual
	}
	if actual.Type().ConvertibleTo(expected) {
		return actual.Convert(expected)
	}
	return actual
}

func goValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	obj := object.FromGoType(v)
	if obj == nil {
		return object.Nil
	}
	return obj
}

func objectToGo(obj object.Object) any {
	if obj == nil {
		return nil
	}
	switch o := obj.(type) {
	case *object.Map:
		goMap := make(map[string]any)
		for k, v := range o.Value() {
			goMap[k] = objectToGo(v)
		}
		return goMap
	case *object.List:
		items := o.Value()
		goSlice := make([]any, len(items))
		for i, v := range items {
			goSlice[i] = objectToGo(v)
		}
		return goSlice
	case *object.NilType:
		return nil
	default:
		return obj.Interface()
	}
}
