// Package project holds the read-only, in-memory representation of a loaded
// story-flow project: flows, nodes, elements, actors, variables, labels and
// metadata. Nothing in this package is mutated once Load returns — per-run
// state (visitation flags, variation remainders, the cursor) is held by each
// engine.Runtime (in its walker and variation registry), keyed by id, so one
// Project can back many concurrent Runtimes.
package project

// NodeType classifies a Node and determines which outgoing-connection
// dispatch rule the flow walker applies.
type NodeType string

const (
	NodeStart         NodeType = "Start"
	NodeText          NodeType = "Text"
	NodeNote          NodeType = "Note"
	NodeChoice        NodeType = "Choice"
	NodeVariables     NodeType = "Variables"
	NodeCondition     NodeType = "Condition"
	NodeFailCondition NodeType = "FailCondition"
	NodeRandom        NodeType = "Random"
	NodeSequence      NodeType = "Sequence"
	NodeJumpToNode    NodeType = "JumpToNode"
	NodeLayout        NodeType = "Layout"
	NodeSubFlow       NodeType = "SubFlow"
	NodeLabel         NodeType = "Label"
)

// CycleType is the element-selection policy a node applies via the selector.
type CycleType string

const (
	CycleList        CycleType = "List"
	CycleLoop        CycleType = "Loop"
	CycleRandom      CycleType = "Random"
	CycleSmartRandom CycleType = "SmartRandom"
	CycleNone        CycleType = "None"
)

// ConnectionType distinguishes the default outgoing edge from the special
// edges a node type may carry (sub-flow call, fail-condition fallback).
type ConnectionType string

const (
	ConnDefault       ConnectionType = "default"
	ConnSubFlow       ConnectionType = "SubFlow"
	ConnFailCondition ConnectionType = "FailCondition"
)

// VariableType classifies a Variable's value and its load-time coercion.
type VariableType string

const (
	VarBool      VariableType = "bool"
	VarString    VariableType = "string"
	VarInt       VariableType = "int"
	VarFloat     VariableType = "float"
	VarFixed     VariableType = "fixed"
	VarSeparator VariableType = "separator"
)

// JumpTarget names the destination of a JumpToNode node.
type JumpTarget struct {
	FlowID string
	NodeID string
}

// LocalizedContent is one locale's rendering of an element's or label's text.
type LocalizedContent struct {
	LocaleCode string
	Text       string
}

// Connection is a directed edge from one node to another. NodeElementID
// binds the edge to a specific element for Choice/Condition/Sequence nodes.
type Connection struct {
	FromNodeID    string
	To            string
	NodeElementID string // empty when not element-scoped
	Type          ConnectionType
}

// NodeElement is a child of a Node carrying localized text: one per choice
// alternative, one per text/sequence variant. Visitation/just-once/if-no-more
// flags are NOT stored here — they are runtime state, see walker.ElementState.
type NodeElement struct {
	ID                string
	NodeID            string
	Type              string
	LocalizedContents []LocalizedContent
}

// Content returns the LocalizedContent for a locale code, or a zero
// LocalizedContent and false.
func (e *NodeElement) Content(localeCode string) (LocalizedContent, bool) {
	for _, c := range e.LocalizedContents {
		if c.LocaleCode == localeCode {
			return c, true
		}
	}
	return LocalizedContent{}, false
}

// Node is a vertex in a flow. Its Type determines which outgoing connection
// the walker selects and which fields below are meaningful.
type Node struct {
	ID            string
	Permalink     string
	Type          NodeType
	ActorID       string // empty when unset
	Metadata      []string
	Elements      []NodeElement
	Connections   []Connection
	CycleType     CycleType
	Translatable  bool
	JumpTo        *JumpTarget
	Image         string
	Header        *NodeElement // Choice node prompt element
	Tags          []string     // free-form authoring tags; walker never inspects these
}

// Element returns the node element with the given id, or (nil, false).
func (n *Node) Element(elementID string) (*NodeElement, bool) {
	for i := range n.Elements {
		if n.Elements[i].ID == elementID {
			return &n.Elements[i], true
		}
	}
	return nil, false
}

// FailConnection returns the node's FailCondition connection, if any.
func (n *Node) FailConnection() (Connection, bool) {
	for _, c := range n.Connections {
		if c.Type == ConnFailCondition {
			return c, true
		}
	}
	return Connection{}, false
}

// ConnectionByElement returns the connection bound to elementID, if any.
func (n *Node) ConnectionByElement(elementID string) (Connection, bool) {
	for _, c := range n.Connections {
		if c.NodeElementID == elementID && c.Type != ConnFailCondition {
			return c, true
		}
	}
	return Connection{}, false
}

// Flow is a named directed subgraph with a single Start node.
type Flow struct {
	ID    string
	Name  string
	Slug  string
	Nodes []Node
}

// Node looks up a node by id within the flow.
func (f *Flow) Node(nodeID string) (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].ID == nodeID {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// StartNode returns the flow's entry node (invariant: exactly one exists).
func (f *Flow) StartNode() (*Node, bool) {
	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeStart {
			return &f.Nodes[i], true
		}
	}
	return nil, false
}

// FlowGroup orders a set of flows for presentation/default-flow resolution.
type FlowGroup struct {
	ID      string
	Name    string
	FlowIDs []string
}

// Actor is a speaking entity a node may be attributed to.
type Actor struct {
	ID         string
	UID        string
	Name       string
	IsNarrator bool
}

// Variable is a project-level global seeded into the runtime's variable
// store at load. Separator is a display-only sentinel never loaded.
type Variable struct {
	Key   string
	Value any
	Type  VariableType
}

// Label is a localized, reusable text snippet resolved the same way as
// NodeElement content.
type Label struct {
	Key               string
	LocalizedContents []LocalizedContent
}

// Content returns the Label's LocalizedContent for a locale, or a zero
// LocalizedContent and false.
func (l *Label) Content(localeCode string) (LocalizedContent, bool) {
	for _, c := range l.LocalizedContents {
		if c.LocaleCode == localeCode {
			return c, true
		}
	}
	return LocalizedContent{}, false
}

// MetadataValue is one authorable value of a Metadata category.
type MetadataValue struct {
	ID         string
	UID        string
	Value      string
	Icon       string
	MetadataID string
}

// Metadata is an authoring category (e.g. "mood", "location") whose values
// nodes reference by id.
type Metadata struct {
	ID     string
	UID    string
	Name   string
	Icon   string
	Values []MetadataValue
}

// Project is the typed in-memory representation of a loaded story-flow
// project. It is immutable after Load; all mutable per-run state lives in
// the engine.Runtime that wraps it.
type Project struct {
	Locale            string
	MainLocale        string
	AvailableLocales  []string
	APIVersion        string
	FlowGroups        []FlowGroup
	Flows             []Flow
	Actors            []Actor
	Variables         []Variable
	Labels            []Label
	Metadata          []Metadata
	SchemaChecksum    string // derived at load, for host-side cache invalidation
}

// Flow looks up a flow by id, name, or slug — in that priority order.
func (p *Project) Flow(idOrNameOrSlug string) (*Flow, bool) {
	for i := range p.Flows {
		if p.Flows[i].ID == idOrNameOrSlug {
			return &p.Flows[i], true
		}
	}
	for i := range p.Flows {
		if p.Flows[i].Name == idOrNameOrSlug {
			return &p.Flows[i], true
		}
	}
	for i := range p.Flows {
		if p.Flows[i].Slug == idOrNameOrSlug {
			return &p.Flows[i], true
		}
	}
	return nil, false
}

// DefaultFlowID returns the first flow id of the first flow group, the
// entry point used when start() is called without an explicit flow name.
func (p *Project) DefaultFlowID() (string, bool) {
	if len(p.FlowGroups) == 0 || len(p.FlowGroups[0].FlowIDs) == 0 {
		return "", false
	}
	return p.FlowGroups[0].FlowIDs[0], true
}

// Actor looks up an actor by id.
func (p *Project) Actor(id string) (*Actor, bool) {
	for i := range p.Actors {
		if p.Actors[i].ID == id {
			return &p.Actors[i], true
		}
	}
	return nil, false
}

// ActorByUID looks up an actor by its stable uid.
func (p *Project) ActorByUID(uid string) (*Actor, bool) {
	for i := range p.Actors {
		if p.Actors[i].UID == uid {
			return &p.Actors[i], true
		}
	}
	return nil, false
}

// Label looks up a label by key.
func (p *Project) Label(key string) (*Label, bool) {
	for i := range p.Labels {
		if p.Labels[i].Key == key {
			return &p.Labels[i], true
		}
	}
	return nil, false
}

// MetadataValue looks up a metadata value by id across all categories.
func (p *Project) MetadataValue(id string) (*MetadataValue, bool) {
	for i := range p.Metadata {
		for j := range p.Metadata[i].Values {
			if p.Metadata[i].Values[j].ID == id {
				return &p.Metadata[i].Values[j], true
			}
		}
	}
	return nil, false
}

// MetadataByUID looks up a metadata category by uid.
func (p *Project) MetadataByUID(uid string) (*Metadata, bool) {
	for i := range p.Metadata {
		if p.Metadata[i].UID == uid {
			return &p.Metadata[i], true
		}
	}
	return nil, false
}

// NodesByType returns every node of the given type across all flows.
func (p *Project) NodesByType(t NodeType) []*Node {
	var out []*Node
	for fi := range p.Flows {
		for ni := range p.Flows[fi].Nodes {
			if p.Flows[fi].Nodes[ni].Type == t {
				out = append(out, &p.Flows[fi].Nodes[ni])
			}
		}
	}
	return out
}

// NodeByPermalink finds a node by its stable permalink across all flows.
func (p *Project) NodeByPermalink(permalink string) (*Node, bool) {
	for fi := range p.Flows {
		for ni := range p.Flows[fi].Nodes {
			if p.Flows[fi].Nodes[ni].Permalink == permalink {
				return &p.Flows[fi].Nodes[ni], true
			}
		}
	}
	return nil, false
}

// FindNode searches every flow for nodeID, returning the node and the flow
// that owns it. SubFlow edges target a node id that may live in a flow
// other than the caller's current one, so the walker resolves them this
// way rather than scoping the lookup to a single flow.
func (p *Project) FindNode(nodeID string) (*Node, *Flow, bool) {
	for fi := range p.Flows {
		if n, ok := p.Flows[fi].Node(nodeID); ok {
			return n, &p.Flows[fi], true
		}
	}
	return nil, nil, false
}

// FindElement searches every flow for an element with the given id,
// returning it alongside its owning node and flow.
func (p *Project) FindElement(elementID string) (*NodeElement, *Node, *Flow, bool) {
	for fi := range p.Flows {
		flow := &p.Flows[fi]
		for ni := range flow.Nodes {
			node := &flow.Nodes[ni]
			if el, ok := node.Element(elementID); ok {
				return el, node, flow, true
			}
			if node.Header != nil && node.Header.ID == elementID {
				return node.Header, node, flow, true
			}
		}
	}
	return nil, nil, nil, false
}

// LinkingNodes returns the nodes that hold a connection targeting nodeID.
func (p *Project) LinkingNodes(flowID, nodeID string) []*Node {
	flow, ok := p.Flow(flowID)
	if !ok {
		return nil
	}
	var out []*Node
	for i := range flow.Nodes {
		for _, c := range flow.Nodes[i].Connections {
			if c.To == nodeID {
				out = append(out, &flow.Nodes[i])
				break
			}
		}
	}
	return out
}

// LinksToNodes returns the distinct nodes that nodeID's connections target.
func (p *Project) LinksToNodes(flowID, nodeID string) []*Node {
	flow, ok := p.Flow(flowID)
	if !ok {
		return nil
	}
	node, ok := flow.Node(nodeID)
	if !ok {
		return nil
	}
	var out []*Node
	seen := make(map[string]bool)
	for _, c := range node.Connections {
		if seen[c.To] {
			continue
		}
		seen[c.To] = true
		if target, ok := flow.Node(c.To); ok {
			out = append(out, target)
		}
	}
	return out
}
