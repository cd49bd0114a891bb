package expr

import "fmt"

// ErrorKind classifies why an expression failed to evaluate.
type ErrorKind string

const (
	UndefinedVariable ErrorKind = "UndefinedVariable"
	SyntaxError       ErrorKind = "SyntaxError"
	TypeError         ErrorKind = "TypeError"
	DivisionByZero    ErrorKind = "DivisionByZero"
)

// EvalError is the tagged failure the mini-language's evaluator returns.
// It never escapes to the host as a panic — the templater catches it and
// substitutes a literal error marker into the rendered text instead.
type EvalError struct {
	Kind    ErrorKind
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *EvalError {
	return &EvalError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
