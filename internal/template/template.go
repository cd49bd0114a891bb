// Package template implements the text rendering pipeline: given an
// element's localized source text, it rewrites variation blocks, inline
// conditionals, authoring markers, and `{expr}` interpolations into the
// string a player actually sees.
package template

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/storyflowrt/engine/internal/expr"
	"github.com/storyflowrt/engine/internal/variation"
)

// Options controls how Render treats one piece of text.
type Options struct {
	Globals, Locals expr.Store
	Eval            expr.Evaluator
	Variations      *variation.Registry

	// ForceEval is true only when a Choice element has just been selected;
	// pre-display renders of choice text pass false.
	ForceEval bool
	// IsChoiceAssignment marks text belonging to a Choice element, so an
	// assignment block inside {…} is only evaluated when ForceEval is true.
	IsChoiceAssignment bool
	// WholeTextIsExpression is set for Condition/Variables elements whose
	// text carries no literal {…} braces — the entire string is the
	// expression.
	WholeTextIsExpression bool
}

// Result is the rendered text plus the authoring markers discovered while
// rendering. JustOnce/IfNoMore reflect markers present in THIS render of the
// text; the caller is responsible for persisting them onto its own
// per-element runtime state.
type Result struct {
	Text     string
	JustOnce bool
	IfNoMore bool
}

var (
	ifPattern     = regexp.MustCompile(`\[IF\s+(.*?)\]`)
	twoArmPattern = regexp.MustCompile(`(?s)^(.*?)\?\s*"([^"]*)"\s*:\s*"([^"]*)"\s*$`)
	todoPattern   = regexp.MustCompile(`\[TODO.*?\]`)
	justOncePat   = regexp.MustCompile(`\[-\]`)
	ifNoMorePat   = regexp.MustCompile(`\[\+\]`)
	bracePattern  = regexp.MustCompile(`\{([^{}]*)\}`)
	varRefPattern = regexp.MustCompile(`[$%][A-Za-z][A-Za-z0-9_.\[\]]*`)
	assignPattern = regexp.MustCompile(`(^|[^=!<>])=($|[^=])`)
	brTrimPattern = regexp.MustCompile(`(?i)^(\s|<br\s*/?>)+|(\s|<br\s*/?>)+$`)
)

// Render runs the seven-step pipeline over elementID's raw text.
func Render(elementID, text string, opts Options) Result {
	res := Result{}

	text = opts.Variations.Render(elementID, text)

	text = ifPattern.ReplaceAllStringFunc(text, func(m string) string {
		inner := ifPattern.FindStringSubmatch(m)[1]
		arms := twoArmPattern.FindStringSubmatch(inner)
		if arms == nil {
			return " --ERROR-- "
		}
		cond, yes, no := strings.TrimSpace(arms[1]), arms[2], arms[3]
		val, err := opts.Eval.Eval(cond, opts.Globals, opts.Locals)
		if err != nil {
			return " --ERROR-- "
		}
		if truthy(val) {
			return yes
		}
		return no
	})

	text = todoPattern.ReplaceAllString(text, "")

	if justOncePat.MatchString(text) {
		res.JustOnce = true
		text = justOncePat.ReplaceAllString(text, "")
	}
	if ifNoMorePat.MatchString(text) {
		res.IfNoMore = true
		text = ifNoMorePat.ReplaceAllString(text, "")
	}

	if opts.WholeTextIsExpression && !strings.Contains(text, "{") {
		trimmed := strings.TrimSpace(text)
		if trimmed != "" {
			text = "{" + trimmed + "}"
		}
	}

	text = bracePattern.ReplaceAllStringFunc(text, func(m string) string {
		inner := bracePattern.FindStringSubmatch(m)[1]

		suppressed := opts.IsChoiceAssignment && !opts.ForceEval && strings.Contains(inner, "=")
		if suppressed {
			return ""
		}

		val, err := opts.Eval.Eval(inner, opts.Globals, opts.Locals)
		if err != nil {
			return "--error--"
		}

		// A block that reads exactly one variable and assigns nothing shows
		// its value. An assigning block, or one reading zero or several
		// variables, has had its effects applied and is dropped from the
		// rendered output.
		if len(varRefPattern.FindAllString(inner, -1)) == 1 && !assignPattern.MatchString(inner) {
			return displayString(val)
		}
		return ""
	})

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = brTrimPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	res.Text = text
	return res
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func displayString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
