package template

import (
	"math/rand"
	"testing"

	"github.com/storyflowrt/engine/internal/expr"
	"github.com/storyflowrt/engine/internal/variation"
	"github.com/storyflowrt/engine/internal/varstore"
)

func newOpts(globals, locals *varstore.Store) Options {
	return Options{
		Globals:    globals,
		Locals:     locals,
		Eval:       expr.NewSandbox(),
		Variations: variation.New(rand.New(rand.NewSource(1))),
	}
}

func TestRender_VariableInterpolation_ScenarioS1(t *testing.T) {
	globals := varstore.New()
	globals.Set("n", float64(1))
	res := Render("e1", "n={$n}", newOpts(globals, varstore.New()))
	if res.Text != "n=1" {
		t.Errorf("got %q, want %q", res.Text, "n=1")
	}
}

func TestRender_InlineConditional_ScenarioS5(t *testing.T) {
	globals := varstore.New()
	globals.Set("x", float64(1))
	res := Render("e1", `[IF $x == 1 ? "one" : "other"] and {$x}`, newOpts(globals, varstore.New()))
	if res.Text != "one and 1" {
		t.Errorf("got %q, want %q", res.Text, "one and 1")
	}
}

func TestRender_InlineConditional_FalsyArm(t *testing.T) {
	globals := varstore.New()
	globals.Set("x", float64(2))
	res := Render("e1", `[IF $x == 1 ? "one" : "other"]`, newOpts(globals, varstore.New()))
	if res.Text != "other" {
		t.Errorf("got %q, want %q", res.Text, "other")
	}
}

func TestRender_InlineConditional_MalformedEmitsUppercaseError(t *testing.T) {
	res := Render("e1", `[IF $x only one arm]`, newOpts(varstore.New(), varstore.New()))
	if res.Text != "--ERROR--" {
		t.Errorf("got %q, want %q", res.Text, "--ERROR--")
	}
}

func TestRender_TODOIsStripped(t *testing.T) {
	res := Render("e1", "before [TODO fix this later] after", newOpts(varstore.New(), varstore.New()))
	if res.Text != "before  after" {
		t.Errorf("got %q", res.Text)
	}
}

func TestRender_JustOnceMarker(t *testing.T) {
	res := Render("e1", "Hello[-]", newOpts(varstore.New(), varstore.New()))
	if !res.JustOnce {
		t.Error("expected JustOnce=true")
	}
	if res.Text != "Hello" {
		t.Errorf("got %q, want %q", res.Text, "Hello")
	}
}

func TestRender_IfNoMoreMarker(t *testing.T) {
	res := Render("e1", "Hello[+]", newOpts(varstore.New(), varstore.New()))
	if !res.IfNoMore {
		t.Error("expected IfNoMore=true")
	}
}

func TestRender_VariationBlockWrapping(t *testing.T) {
	res := Render("e1", "[[LIST a|b|c]]", newOpts(varstore.New(), varstore.New()))
	if res.Text != "<variation>a</variation>" {
		t.Errorf("got %q", res.Text)
	}
}

func TestRender_SideEffectBlockDropsOutputButApplies(t *testing.T) {
	globals := varstore.New()
	globals.Set("n", float64(0))
	res := Render("e1", "before {$n = 5} after", newOpts(globals, varstore.New()))
	if res.Text != "before  after" {
		t.Errorf("got %q", res.Text)
	}
	v, _ := globals.Get("n")
	if v != float64(5) {
		t.Errorf("$n = %v, want 5", v)
	}
}

func TestRender_ChoiceAssignmentSuppressedWithoutForceEval(t *testing.T) {
	globals := varstore.New()
	globals.Set("n", float64(0))
	opts := newOpts(globals, varstore.New())
	opts.IsChoiceAssignment = true
	opts.ForceEval = false

	Render("e1", "Pick me {$n = 5}", opts)
	v, _ := globals.Get("n")
	if v != float64(0) {
		t.Errorf("expected suppressed assignment to leave $n=0, got %v", v)
	}
}

func TestRender_ChoiceAssignmentAppliesWithForceEval(t *testing.T) {
	globals := varstore.New()
	globals.Set("n", float64(0))
	opts := newOpts(globals, varstore.New())
	opts.IsChoiceAssignment = true
	opts.ForceEval = true

	Render("e1", "Pick me {$n = 5}", opts)
	v, _ := globals.Get("n")
	if v != float64(5) {
		t.Errorf("expected force_eval assignment to apply, got %v", v)
	}
}

func TestRender_WholeTextAsExpressionForConditionNode(t *testing.T) {
	globals := varstore.New()
	globals.Set("n", float64(5))
	opts := newOpts(globals, varstore.New())
	opts.WholeTextIsExpression = true

	res := Render("e1", "$n > 0", opts)
	if res.Text != "true" {
		t.Errorf("got %q, want %q", res.Text, "true")
	}
}

func TestRender_ErrorMarkerIsLowercaseForBraceExpr(t *testing.T) {
	res := Render("e1", "{$missing}", newOpts(varstore.New(), varstore.New()))
	if res.Text != "--error--" {
		t.Errorf("got %q, want %q", res.Text, "--error--")
	}
}

func TestRender_WhitespaceNormalization(t *testing.T) {
	res := Render("e1", "<br>Hi&nbsp;there<br/>", newOpts(varstore.New(), varstore.New()))
	if res.Text != "Hi there" {
		t.Errorf("got %q", res.Text)
	}
}
