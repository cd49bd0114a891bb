// Package engine implements the public Runtime facade: it loads a Project,
// walks it, and renders the text a player sees, composing the locale,
// variation, template, selector, and walker packages into the single
// stateful object a host embeds.
package engine

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/storyflowrt/engine/internal/expr"
	"github.com/storyflowrt/engine/internal/locale"
	"github.com/storyflowrt/engine/internal/project"
	"github.com/storyflowrt/engine/internal/template"
	"github.com/storyflowrt/engine/internal/variation"
	"github.com/storyflowrt/engine/internal/varstore"
	"github.com/storyflowrt/engine/internal/walker"
)

// Runtime is a single story position: its own variables, variation state,
// element visitation, and cursor over one Project. Multiple Runtimes may
// share one Project concurrently, since Project is never mutated after
// load.
type Runtime struct {
	eval     expr.Evaluator
	rngSeed  int64
	seeded   bool
	rng      *rand.Rand
	locale   string // explicit override; empty means "use the project's"
	maxDepth int

	proj       *project.Project
	walker     *walker.Walker
	globals    *varstore.Store
	locals     *varstore.Store
	variations *variation.Registry
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithEvaluator overrides the default sandboxed expression evaluator.
func WithEvaluator(e expr.Evaluator) Option {
	return func(r *Runtime) { r.eval = e }
}

// WithRNGSeed seeds the PRNG driving Random/SmartRandom/RND/SRND choices,
// for deterministic tests; the default seeds from a clock source.
func WithRNGSeed(seed int64) Option {
	return func(r *Runtime) { r.rngSeed, r.seeded = seed, true }
}

// WithLocale overrides the runtime locale the project itself declares.
func WithLocale(code string) Option {
	return func(r *Runtime) { r.locale = code }
}

// WithMaxDepth overrides the walker's internal pass-through depth cap.
func WithMaxDepth(n int) Option {
	return func(r *Runtime) { r.maxDepth = n }
}

// New builds an unloaded Runtime. Call Load or LoadFromSource before
// walking it.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		eval:     expr.NewSandbox(),
		rngSeed:  0,
		maxDepth: walker.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.seeded {
		r.rngSeed = time.Now().UnixNano()
	}
	r.rng = rand.New(rand.NewSource(r.rngSeed))
	return r
}

// Load installs proj and positions the cursor at flowName's Start node (or
// the project's default flow if flowName is empty).
func (r *Runtime) Load(proj *project.Project, flowName string) error {
	r.proj = proj
	r.globals = varstore.New()
	r.locals = varstore.New()
	for _, v := range proj.Variables {
		if v.Type == project.VarSeparator {
			continue
		}
		r.globals.Set(v.Key, v.Value)
	}
	r.variations = variation.New(r.rng)
	for fi := range proj.Flows {
		for ni := range proj.Flows[fi].Nodes {
			for ei := range proj.Flows[fi].Nodes[ni].Elements {
				el := &proj.Flows[fi].Nodes[ni].Elements[ei]
				if c, ok := el.Content(proj.MainLocale); ok {
					r.variations.Ensure(el.ID, c.Text)
				}
			}
		}
	}

	loc := r.locale
	if loc == "" {
		loc = proj.Locale
	}
	r.walker = walker.New(proj, r.eval, r.globals, r.locals, r.rng, loc)
	r.walker.SetMaxDepth(r.maxDepth)
	r.walker.SetChoiceRenderer(r.renderElementByID)
	return r.walker.Start("", flowName)
}

// LoadFromSource decodes data as a project JSON document, logs any
// non-fatal load warnings, and installs the result the same way Load does.
func (r *Runtime) LoadFromSource(data []byte, flowName string) error {
	result, err := project.Load(data)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		slog.Warn("project load warning", "warning", w)
	}
	return r.Load(result.Project, flowName)
}

// Start repositions the cursor, resolving flowName the same way Load does.
func (r *Runtime) Start(nodeID, flowName string) error {
	return r.walker.Start(nodeID, flowName)
}

// Restart repositions the cursor at the current flow's Start node.
func (r *Runtime) Restart() error {
	return r.walker.Restart()
}

// NextNode advances the cursor and reports what happened.
func (r *Runtime) NextNode(elementID string) (walker.Outcome, error) {
	return r.walker.NextNode(elementID)
}

// Locale returns the runtime's effective locale (override or project's).
func (r *Runtime) Locale() string {
	if r.locale != "" {
		return r.locale
	}
	if r.proj != nil {
		return r.proj.Locale
	}
	return ""
}

// Project exposes the loaded, read-only project — used by callers that need
// direct structural lookups the facade doesn't itself wrap.
func (r *Runtime) Project() *project.Project { return r.proj }

// Globals and Locals expose the runtime's variable stores directly, for
// hosts that need to seed or inspect variables outside of expression text.
func (r *Runtime) Globals() *varstore.Store { return r.globals }
func (r *Runtime) Locals() *varstore.Store  { return r.locals }

// resolveContent resolves an element's best-available localized content
// against the runtime's locale, given the owning node's translatability.
func (r *Runtime) resolveContent(el *project.NodeElement, node *project.Node) locale.Content {
	c, ok := locale.ResolveElement(el, r.Locale(), r.proj.MainLocale, node.Translatable)
	if !ok {
		return locale.Content{}
	}
	return c
}

// resolveLabel resolves a Label's best-available localized text.
func resolveLabel(l *project.Label, requested, mainLocale string) (string, bool) {
	c, ok := locale.ResolveLabel(l, requested, mainLocale)
	if !ok {
		return "", false
	}
	return c.Text, true
}

// renderOptions builds the template.Options shared by every render call.
func (r *Runtime) renderOptions(node *project.Node, forceEval bool) template.Options {
	isChoice := node != nil && node.Type == project.NodeChoice
	wholeText := node != nil && (node.Type == project.NodeCondition || node.Type == project.NodeVariables)
	return template.Options{
		Globals:               r.globals,
		Locals:                r.locals,
		Eval:                  r.eval,
		Variations:            r.variations,
		ForceEval:             forceEval,
		IsChoiceAssignment:    isChoice,
		WholeTextIsExpression: wholeText,
	}
}
