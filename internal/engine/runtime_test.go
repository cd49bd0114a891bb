package engine

import (
	"testing"

	"github.com/storyflowrt/engine/internal/project"
)

func content(text string) []project.LocalizedContent {
	return []project.LocalizedContent{{LocaleCode: "en", Text: text}}
}

func newLoadedRuntime(t *testing.T, proj *project.Project, opts ...Option) *Runtime {
	t.Helper()
	r := New(append([]Option{WithRNGSeed(1)}, opts...)...)
	if err := r.Load(proj, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

// TestRuntime_LinearWalkAndParsedText exercises scenario S1's variable
// interpolation end to end through Load/NextNode/GetParsedText.
func TestRuntime_LinearWalkAndParsedText(t *testing.T) {
	proj := &project.Project{
		Locale: "en", MainLocale: "en",
		FlowGroups: []project.FlowGroup{{ID: "fg1", FlowIDs: []string{"f1"}}},
		Variables:  []project.Variable{{Key: "n", Value: float64(1), Type: project.VarFloat}},
		Flows: []project.Flow{{
			ID: "f1", Nodes: []project.Node{
				{ID: "start", Type: project.NodeStart, Connections: []project.Connection{{To: "t1"}}},
				{ID: "t1", Type: project.NodeText,
					Elements: []project.NodeElement{{ID: "e1", LocalizedContents: content("n={$n}")}}},
			},
		}},
	}
	r := newLoadedRuntime(t, proj)

	out, err := r.NextNode("")
	if err != nil {
		t.Fatalf("NextNode: %v", err)
	}
	if out.NodeID != "t1" {
		t.Fatalf("out.NodeID = %q, want t1", out.NodeID)
	}

	text, err := r.GetParsedText("e1", false)
	if err != nil {
		t.Fatalf("GetParsedText: %v", err)
	}
	if text != "n=1" {
		t.Errorf("GetParsedText = %q, want %q", text, "n=1")
	}
}

// TestRuntime_LocaleFallback checks invariant 6: a missing fr translation
// falls back to the project's main locale via the facade.
func TestRuntime_LocaleFallback(t *testing.T) {
	proj := &project.Project{
		Locale: "en", MainLocale: "en",
		FlowGroups: []project.FlowGroup{{ID: "fg1", FlowIDs: []string{"f1"}}},
		Flows: []project.Flow{{
			ID: "f1", Nodes: []project.Node{
				{ID: "start", Type: project.NodeStart, Translatable: true, Connections: []project.Connection{{To: "t1"}}},
				{ID: "t1", Type: project.NodeText, Translatable: true,
					Elements: []project.NodeElement{{ID: "e1", LocalizedContents: content("hello")}}},
			},
		}},
	}
	r := newLoadedRuntime(t, proj, WithLocale("fr"))
	if _, err := r.NextNode(""); err != nil {
		t.Fatalf("NextNode: %v", err)
	}
	text, err := r.GetParsedText("e1", false)
	if err != nil {
		t.Fatalf("GetParsedText: %v", err)
	}
	if text != "hello" {
		t.Errorf("GetParsedText = %q, want fallback %q", text, "hello")
	}
}

// TestRuntime_AvailableChoicesExhaustion covers invariant 8 through the
// facade's self-hiding renderer wiring.
func TestRuntime_AvailableChoicesExhaustion(t *testing.T) {
	proj := &project.Project{
		Locale: "en", MainLocale: "en",
		FlowGroups: []project.FlowGroup{{ID: "fg1", FlowIDs: []string{"f1"}}},
		Flows: []project.Flow{{
			ID: "f1", Nodes: []project.Node{
				{ID: "start", Type: project.NodeStart, Connections: []project.Connection{{To: "choice"}}},
				{ID: "choice", Type: project.NodeChoice,
					Elements: []project.NodeElement{
						{ID: "c1", LocalizedContents: content("go left")},
						{ID: "c2", LocalizedContents: content("go right [+]")},
					},
					Connections: []project.Connection{
						{To: "start", NodeElementID: "c1"},
						{To: "start", NodeElementID: "c2"},
					}},
			},
		}},
	}
	r := newLoadedRuntime(t, proj)
	if _, err := r.NextNode(""); err != nil {
		t.Fatalf("NextNode: %v", err)
	}

	choices, err := r.GetAvailableChoices("choice")
	if err != nil {
		t.Fatalf("GetAvailableChoices: %v", err)
	}
	if len(choices) != 1 || choices[0].ID != "c1" {
		t.Fatalf("choices = %+v, want exactly [c1] initially ([+] c2 is fallback-only)", choices)
	}

	r.walker.ElementState("c1").Visited = true
	choices, err = r.GetAvailableChoices("choice")
	if err != nil {
		t.Fatalf("GetAvailableChoices: %v", err)
	}
	if len(choices) != 1 || choices[0].ID != "c2" {
		t.Errorf("choices = %+v, want exactly [c2]", choices)
	}
}

// TestRuntime_NextNodeSkipsChoiceHiddenByRender covers walker step()'s
// internal exhaustion check landing on a Choice node whose only element
// renders to empty text via a false [IF] — not visited, not marked [+], so
// only the full render-based self-hiding algorithm (not the bare
// Visited/IfNoMore check) can see it's unavailable. NextNode should follow
// the Choice node's fail-connection straight through to "landed" rather
// than stopping to emit the now-empty choice.
func TestRuntime_NextNodeSkipsChoiceHiddenByRender(t *testing.T) {
	proj := &project.Project{
		Locale: "en", MainLocale: "en",
		FlowGroups: []project.FlowGroup{{ID: "fg1", FlowIDs: []string{"f1"}}},
		Flows: []project.Flow{{
			ID: "f1", Nodes: []project.Node{
				{ID: "start", Type: project.NodeStart, Connections: []project.Connection{{To: "choice"}}},
				{ID: "choice", Type: project.NodeChoice,
					Elements: []project.NodeElement{
						{ID: "c1", LocalizedContents: content(`[IF false ? "go left" : ""]`)},
					},
					Connections: []project.Connection{
						{To: "start", NodeElementID: "c1"},
						{To: "relay", Type: project.ConnFailCondition},
					}},
				// relay is the fail-connection's own target: per the spec's
				// "follow the fail-connection and recurse" step, it becomes
				// the new current and is itself passed through, same as any
				// other internal node type, before landed is reached and
				// emitted.
				{ID: "relay", Type: project.NodeNote, Connections: []project.Connection{{To: "landed"}}},
				{ID: "landed", Type: project.NodeText,
					Elements: []project.NodeElement{{ID: "e1", LocalizedContents: content("arrived")}}},
			},
		}},
	}
	r := newLoadedRuntime(t, proj)

	out, err := r.NextNode("")
	if err != nil {
		t.Fatalf("NextNode: %v", err)
	}
	if out.NodeID != "landed" {
		t.Fatalf("out.NodeID = %q, want landed (choice with only an empty-rendered element should be skipped)", out.NodeID)
	}
}

// TestRuntime_GetLabel resolves a label's localized text through the
// facade's locale.
func TestRuntime_GetLabel(t *testing.T) {
	proj := &project.Project{
		Locale: "en", MainLocale: "en",
		Labels: []project.Label{{Key: "greeting", LocalizedContents: content("hi")}},
	}
	r := New(WithRNGSeed(1))
	r.proj = proj

	text, err := r.GetLabel("greeting")
	if err != nil {
		t.Fatalf("GetLabel: %v", err)
	}
	if text != "hi" {
		t.Errorf("GetLabel = %q, want %q", text, "hi")
	}
}

// TestRuntime_NodeLookups covers NodeExists, GetNodeByPermalink, and
// GetNodesByType.
func TestRuntime_NodeLookups(t *testing.T) {
	proj := &project.Project{
		Locale: "en", MainLocale: "en",
		Flows: []project.Flow{{
			ID: "f1", Nodes: []project.Node{
				{ID: "start", Type: project.NodeStart, Permalink: "intro"},
				{ID: "t1", Type: project.NodeText, Permalink: "t1-perm"},
			},
		}},
	}
	r := New(WithRNGSeed(1))
	r.proj = proj

	if !r.NodeExists("t1") || r.NodeExists("missing") {
		t.Errorf("NodeExists behaved unexpectedly")
	}
	node, err := r.GetNodeByPermalink("t1-perm")
	if err != nil || node.ID != "t1" {
		t.Errorf("GetNodeByPermalink = %+v, err=%v", node, err)
	}
	starts := r.GetNodesByType(project.NodeStart)
	if len(starts) != 1 || starts[0].ID != "start" {
		t.Errorf("GetNodesByType(Start) = %+v", starts)
	}
}
