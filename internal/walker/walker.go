// Package walker implements the flow traversal state machine: given the
// currently selected node and (optionally) a chosen element, it determines
// the next node to emit, threading sub-flow calls, jumps, and internal
// pass-through nodes along the way.
package walker

import (
	"fmt"
	"math/rand"

	"github.com/storyflowrt/engine/internal/expr"
	"github.com/storyflowrt/engine/internal/project"
	"github.com/storyflowrt/engine/internal/selector"
)

// DefaultMaxDepth bounds the number of internal (non-emitting) nodes the
// walker will pass through in a single NextNode call before giving up —
// a guard against author-induced cycles over nodes with no emitting
// targets.
const DefaultMaxDepth = 1000

// Walker drives one Runtime's position through a Project. It owns every
// piece of state the Project itself does not: the cursor, element
// visitation, and the sub-flow call stack.
type Walker struct {
	proj               *project.Project
	eval               expr.Evaluator
	globals, locals    expr.Store
	rng                *rand.Rand
	locale, mainLocale string
	maxDepth           int

	selectedFlowID string
	selectedNodeID string
	isJumping      bool
	activeSubFlows []SubFlowFrame
	renderText     func(elementID string) string

	elementStates  map[string]*ElementState
	calledSubFlows map[string]bool
	connVisited    map[string]selector.VisitedTable
	previousNodeID map[string]string
}

// New builds a Walker over proj. rng drives Random/SmartRandom selection
// and should be seeded explicitly for deterministic tests.
func New(proj *project.Project, eval expr.Evaluator, globals, locals expr.Store, rng *rand.Rand, locale string) *Walker {
	return &Walker{
		proj:           proj,
		eval:           eval,
		globals:        globals,
		locals:         locals,
		rng:            rng,
		locale:         locale,
		mainLocale:     proj.MainLocale,
		maxDepth:       DefaultMaxDepth,
		elementStates:  make(map[string]*ElementState),
		calledSubFlows: make(map[string]bool),
		connVisited:    make(map[string]selector.VisitedTable),
		previousNodeID: make(map[string]string),
	}
}

// SelectElement chooses among a node's elements per its cycle-type policy
// (List/Loop/Random/SmartRandom), reusing each element's ElementState.Visited
// as the selector's visitation bookkeeping so Text/Note/Layout nodes and the
// Choice self-hiding logic share one notion of "visited" per element id.
func (w *Walker) SelectElement(policy selector.CycleType, ids []string) (int, bool) {
	vt := selector.VisitedTable{}
	for _, id := range ids {
		if w.ElementState(id).Visited {
			vt[id] = true
		}
	}
	idx, ok := selector.Select(policy, ids, vt, w.rng)
	for _, id := range ids {
		w.ElementState(id).Visited = vt[id]
	}
	return idx, ok
}

// SetMaxDepth overrides DefaultMaxDepth, e.g. from configuration.
func (w *Walker) SetMaxDepth(n int) { w.maxDepth = n }

// SetChoiceRenderer installs the render function the walker uses internally
// to run the full Choice self-hiding algorithm (AvailableChoicesWithRenderer)
// when it lands on a Choice node mid-traversal and must decide whether to
// follow its fail-connection. Without one installed, that internal check
// falls back to the renderer-less AvailableChoices, which only sees the
// Visited/IfNoMore flags and misses an element hidden by empty rendered
// text (e.g. a false `[IF]` collapsing it to ""). A host builds one from
// its own text-rendering pipeline (see engine.Runtime.renderElementByID).
func (w *Walker) SetChoiceRenderer(fn func(elementID string) string) { w.renderText = fn }

// ElementState returns the mutable runtime state for elementID, creating it
// on first access.
func (w *Walker) ElementState(elementID string) *ElementState {
	st, ok := w.elementStates[elementID]
	if !ok {
		st = &ElementState{}
		w.elementStates[elementID] = st
	}
	return st
}

// SelectedFlowID and SelectedNodeID expose the current cursor position.
func (w *Walker) SelectedFlowID() string { return w.selectedFlowID }
func (w *Walker) SelectedNodeID() string { return w.selectedNodeID }

// PreviousNodeID returns the node id that led to nodeID on the most recent
// traversal, if any.
func (w *Walker) PreviousNodeID(nodeID string) (string, bool) {
	id, ok := w.previousNodeID[nodeID]
	return id, ok
}

// Start resolves flowNameOrID (or the project's default flow group if
// empty) and positions the cursor at nodeID, or that flow's Start node if
// nodeID is empty.
func (w *Walker) Start(nodeID, flowNameOrID string) error {
	flow, err := w.resolveStartFlow(flowNameOrID)
	if err != nil {
		return err
	}
	w.selectedFlowID = flow.ID
	if nodeID != "" {
		if _, ok := flow.Node(nodeID); !ok {
			return fmt.Errorf("walker: node %q not found in flow %q", nodeID, flow.ID)
		}
		w.selectedNodeID = nodeID
		return nil
	}
	start, ok := flow.StartNode()
	if !ok {
		return fmt.Errorf("walker: flow %q has no Start node", flow.ID)
	}
	w.selectedNodeID = start.ID
	return nil
}

func (w *Walker) resolveStartFlow(flowNameOrID string) (*project.Flow, error) {
	if flowNameOrID != "" {
		flow, ok := w.proj.Flow(flowNameOrID)
		if !ok {
			return nil, fmt.Errorf("walker: flow %q not found", flowNameOrID)
		}
		return flow, nil
	}
	id, ok := w.proj.DefaultFlowID()
	if !ok {
		return nil, fmt.Errorf("walker: project has no flow groups to resolve a default flow")
	}
	flow, ok := w.proj.Flow(id)
	if !ok {
		return nil, fmt.Errorf("walker: default flow %q not found", id)
	}
	return flow, nil
}

// Restart repositions the cursor at the current flow's Start node, leaving
// variables, variation state, and sub-flow stack untouched — callers that
// want a full reset should rebuild the Walker.
func (w *Walker) Restart() error {
	flow, ok := w.proj.Flow(w.selectedFlowID)
	if !ok {
		return &FlowError{Kind: UnreachableEnd, FlowID: w.selectedFlowID,
			Message: fmt.Sprintf("current flow %q not found", w.selectedFlowID)}
	}
	start, ok := flow.StartNode()
	if !ok {
		return fmt.Errorf("walker: flow %q has no Start node", flow.ID)
	}
	w.selectedNodeID = start.ID
	return nil
}

// NextNode advances the cursor, optionally consuming a chosen elementID
// (for Choice nodes), and reports the outcome.
func (w *Walker) NextNode(elementID string) (Outcome, error) {
	return w.step(elementID, 0)
}

func (w *Walker) step(elementID string, depth int) (Outcome, error) {
	if depth > w.maxDepth {
		return Outcome{}, &FlowError{Kind: DepthExceeded, FlowID: w.selectedFlowID, NodeID: w.selectedNodeID,
			Message: fmt.Sprintf("internal pass-through exceeded depth %d", w.maxDepth)}
	}
	if w.selectedNodeID == EndSentinel {
		return Outcome{Kind: Ended}, nil
	}

	flow, ok := w.proj.Flow(w.selectedFlowID)
	if !ok {
		return Outcome{}, &FlowError{Kind: UnreachableEnd, FlowID: w.selectedFlowID,
			Message: fmt.Sprintf("current flow %q not found", w.selectedFlowID)}
	}
	current, ok := flow.Node(w.selectedNodeID)
	if !ok {
		return Outcome{}, &FlowError{Kind: UnreachableEnd, FlowID: flow.ID, NodeID: w.selectedNodeID,
			Message: fmt.Sprintf("current node %q not found in flow %q", w.selectedNodeID, flow.ID)}
	}

	connection, hasConn := w.availableConnection(current, elementID)
	if !hasConn {
		if fc, ok := current.FailConnection(); ok {
			connection, hasConn = fc, true
		}
	}

	switch {
	case current.Type == project.NodeChoice && !w.isJumping:
		if elementID != "" {
			st := w.ElementState(elementID)
			if st.JustOnce {
				st.Visited = true
			}
			w.realizeChoiceSideEffects(current, elementID)
		}
	case current.Type == project.NodeJumpToNode:
		badJump := current.JumpTo == nil
		if !badJump {
			_, _, nodeOK := w.proj.FindNode(current.JumpTo.NodeID)
			_, flowOK := w.proj.Flow(current.JumpTo.FlowID)
			badJump = !nodeOK || !flowOK
		}
		if badJump {
			// availableConnection already pointed the cursor at the jump
			// target; leave it on the jump node instead.
			w.selectedFlowID, w.selectedNodeID = flow.ID, current.ID
			return Outcome{Kind: BadJumpOutcome, NodeID: current.ID, FlowID: flow.ID}, nil
		}
		w.isJumping = true
	default:
		if elementID != "" {
			w.ElementState(elementID).Visited = true
		}
	}

	if !hasConn && current.Type != project.NodeJumpToNode {
		if len(w.activeSubFlows) > 0 {
			top := w.activeSubFlows[len(w.activeSubFlows)-1]
			w.activeSubFlows = w.activeSubFlows[:len(w.activeSubFlows)-1]
			if err := w.Start(top.NodeID, top.FlowID); err != nil {
				return Outcome{}, err
			}
			return w.step("", depth+1)
		}
		w.selectedNodeID = EndSentinel
		return Outcome{Kind: Ended}, nil
	} else if !w.isJumping {
		w.selectedNodeID = connection.To
	}

	target, targetFlow, ok := w.proj.FindNode(w.selectedNodeID)
	if !ok {
		return Outcome{}, &FlowError{Kind: UnreachableEnd, FlowID: w.selectedFlowID, NodeID: w.selectedNodeID,
			Message: fmt.Sprintf("target node %q not found", w.selectedNodeID)}
	}
	w.selectedFlowID = targetFlow.ID
	w.previousNodeID[target.ID] = current.ID

	if target.Type == project.NodeChoice {
		if choices := w.availableChoicesWithRenderer(target, w.renderText); len(choices) == 0 {
			if fc, ok := target.FailConnection(); ok {
				w.selectedNodeID = fc.To
				w.isJumping = false
				return w.step("", depth+1)
			}
		}
	}

	w.isJumping = false

	switch target.Type {
	case project.NodeStart, project.NodeNote, project.NodeSequence, project.NodeRandom,
		project.NodeVariables, project.NodeLayout, project.NodeSubFlow, project.NodeJumpToNode,
		project.NodeCondition:
		return w.step("", depth+1)
	default:
		return Outcome{Kind: Emitted, NodeID: target.ID, FlowID: targetFlow.ID}, nil
	}
}

// availableConnection implements the per-type outgoing-edge dispatch.
func (w *Walker) availableConnection(current *project.Node, elementID string) (project.Connection, bool) {
	switch current.Type {
	case project.NodeStart, project.NodeText, project.NodeNote, project.NodeLayout:
		return firstConnection(current)

	case project.NodeSubFlow:
		return w.availableSubFlowConnection(current)

	case project.NodeChoice:
		return current.ConnectionByElement(elementID)

	case project.NodeCondition:
		for _, el := range current.Elements {
			val, err := w.evalElementText(&el)
			if err != nil {
				continue
			}
			if truthy(val) {
				if c, ok := current.ConnectionByElement(el.ID); ok {
					return c, true
				}
			}
		}
		return project.Connection{}, false

	case project.NodeVariables:
		for _, el := range current.Elements {
			w.evalElementText(&el) // side effects only; errors are non-fatal
		}
		return firstConnection(current)

	case project.NodeRandom:
		if len(current.Connections) == 0 {
			return project.Connection{}, false
		}
		return current.Connections[w.rng.Intn(len(current.Connections))], true

	case project.NodeSequence:
		return w.availableSequenceConnection(current)

	case project.NodeJumpToNode:
		if current.JumpTo != nil {
			w.selectedFlowID = current.JumpTo.FlowID
			w.selectedNodeID = current.JumpTo.NodeID
		}
		return project.Connection{}, false

	default:
		return firstConnection(current)
	}
}

func firstConnection(n *project.Node) (project.Connection, bool) {
	for _, c := range n.Connections {
		if c.Type != project.ConnFailCondition {
			return c, true
		}
	}
	return project.Connection{}, false
}

// availableSubFlowConnection implements the call/return edge pair of a
// SubFlow node. "on the stack" here means "this node has already made its
// call" — a persistent flag, not literal membership in the (popped-on-
// return) activeSubFlows slice, since the resume position recorded at call
// time IS this very node and would otherwise immediately re-trigger the
// call when control returns to it.
func (w *Walker) availableSubFlowConnection(current *project.Node) (project.Connection, bool) {
	if !w.calledSubFlows[current.ID] {
		for _, c := range current.Connections {
			if c.Type == project.ConnSubFlow {
				w.calledSubFlows[current.ID] = true
				w.activeSubFlows = append(w.activeSubFlows, SubFlowFrame{FlowID: w.selectedFlowID, NodeID: current.ID})
				return c, true
			}
		}
		return project.Connection{}, false
	}
	for _, c := range current.Connections {
		if c.Type != project.ConnSubFlow && c.Type != project.ConnFailCondition {
			return c, true
		}
	}
	return project.Connection{}, false
}

func (w *Walker) availableSequenceConnection(current *project.Node) (project.Connection, bool) {
	conns := make([]project.Connection, 0, len(current.Connections))
	for _, c := range current.Connections {
		if c.Type != project.ConnFailCondition {
			conns = append(conns, c)
		}
	}
	if len(conns) == 0 {
		return project.Connection{}, false
	}
	ids := make([]string, len(conns))
	for i := range conns {
		ids[i] = fmt.Sprintf("%s#%d", current.ID, i)
	}
	visited := w.connVisitedTable(current.ID)
	idx, ok := selector.Select(selector.CycleType(current.CycleType), ids, visited, w.rng)
	if !ok {
		return conns[len(conns)-1], true
	}
	return conns[idx], true
}

func (w *Walker) connVisitedTable(nodeID string) selector.VisitedTable {
	t, ok := w.connVisited[nodeID]
	if !ok {
		t = selector.VisitedTable{}
		w.connVisited[nodeID] = t
	}
	return t
}

// evalElementText resolves el's text for the runtime locale (falling back
// to main locale) and evaluates it as a boolean/side-effecting expression.
func (w *Walker) evalElementText(el *project.NodeElement) (any, error) {
	content, ok := el.Content(w.locale)
	if !ok || content.Text == "" {
		content, ok = el.Content(w.mainLocale)
		if !ok {
			return nil, fmt.Errorf("walker: element %q has no content in locale %q or main locale %q", el.ID, w.locale, w.mainLocale)
		}
	}
	return w.eval.Eval(content.Text, w.globals, w.locals)
}

// realizeChoiceSideEffects force-evaluates the chosen choice element's text
// so that any `{...}` assignment inside it is applied now that it has been
// selected (pre-display renders of choice text never force-evaluate).
func (w *Walker) realizeChoiceSideEffects(node *project.Node, elementID string) {
	el, ok := node.Element(elementID)
	if !ok {
		return
	}
	w.evalElementText(el)
}

// AvailableChoices filters node's elements down to those a player may
// currently pick, applying the self-hiding and fallback-marker rules.
// renderText renders the element's current text (the caller supplies it,
// since rendering needs the templater/variation registry this package does
// not own); when renderText is nil the self-hide pass is skipped.
func (w *Walker) AvailableChoices(node *project.Node) []project.NodeElement {
	return w.availableChoicesWithRenderer(node, nil)
}

// AvailableChoicesWithRenderer is AvailableChoices but lets the caller
// supply a render function to detect empty-text self-hiding.
func (w *Walker) AvailableChoicesWithRenderer(node *project.Node, renderText func(elementID string) string) []project.NodeElement {
	return w.availableChoicesWithRenderer(node, renderText)
}

func (w *Walker) availableChoicesWithRenderer(node *project.Node, renderText func(elementID string) string) []project.NodeElement {
	var visible []project.NodeElement
	var fallback []project.NodeElement

	for _, el := range node.Elements {
		st := w.ElementState(el.ID)
		if st.IfNoMore {
			fallback = append(fallback, el)
			continue
		}
		if st.Visited {
			if st.WasHiddenBecauseEmpty && renderText != nil && renderText(el.ID) != "" {
				st.WasHiddenBecauseEmpty = false
				st.Visited = false
				visible = append(visible, el)
			}
			continue
		}
		if renderText != nil && renderText(el.ID) == "" {
			st.Visited = true
			st.WasHiddenBecauseEmpty = true
			continue
		}
		if st.IfNoMore { // the [+] marker may first be seen by the render above
			fallback = append(fallback, el)
			continue
		}
		visible = append(visible, el)
	}

	if len(visible) == 0 {
		return fallback
	}
	return visible
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
