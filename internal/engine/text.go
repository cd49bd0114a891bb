package engine

import (
	"fmt"

	"github.com/storyflowrt/engine/internal/project"
	"github.com/storyflowrt/engine/internal/template"
)

// GetOriginalText returns an element's raw, unrendered authored text for
// the runtime locale, with no variation/conditional/interpolation applied.
func (r *Runtime) GetOriginalText(elementID string) (string, error) {
	el, node, _, ok := r.proj.FindElement(elementID)
	if !ok {
		return "", fmt.Errorf("engine: element %q not found", elementID)
	}
	return r.resolveContent(el, node).Text, nil
}

// GetParsedText renders an element's text through the full pipeline:
// variations, inline conditionals, authoring markers, and {expr}
// interpolation, applying any side effects the expression carries.
// forceEval realizes assignment blocks inside a just-selected Choice
// element's text; every other caller should pass false.
func (r *Runtime) GetParsedText(elementID string, forceEval bool) (string, error) {
	el, node, _, ok := r.proj.FindElement(elementID)
	if !ok {
		return "", fmt.Errorf("engine: element %q not found", elementID)
	}
	return r.renderElement(el, node, forceEval), nil
}

// renderElement is the shared render path GetParsedText and the
// self-hiding choice pass both use.
func (r *Runtime) renderElement(el *project.NodeElement, node *project.Node, forceEval bool) string {
	content := r.resolveContent(el, node)
	result := template.Render(el.ID, content.Text, r.renderOptions(node, forceEval))
	st := r.walker.ElementState(el.ID)
	if result.JustOnce {
		st.JustOnce = true
	}
	if result.IfNoMore {
		st.IfNoMore = true
	}
	return result.Text
}

// GetAvailableChoices returns the Choice node's currently selectable
// elements, applying self-hiding (an element whose rendered text comes out
// empty is skipped and, if later un-hidden by a variable change, restored)
// and the if-no-more fallback.
func (r *Runtime) GetAvailableChoices(nodeID string) ([]project.NodeElement, error) {
	node, _, ok := r.proj.FindNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("engine: node %q not found", nodeID)
	}
	if node.Type != project.NodeChoice {
		return nil, fmt.Errorf("engine: node %q is not a Choice node", nodeID)
	}
	return r.walker.AvailableChoicesWithRenderer(node, r.renderElementByID), nil
}

// renderElementByID renders elementID's current text, resolving its owning
// node itself. Used as the general-purpose renderer the walker calls
// internally to evaluate Choice self-hiding during its own traversal
// (walker.SetChoiceRenderer), where only an element id is in hand.
func (r *Runtime) renderElementByID(elementID string) string {
	el, node, _, ok := r.proj.FindElement(elementID)
	if !ok {
		return ""
	}
	return r.renderElement(el, node, false)
}
