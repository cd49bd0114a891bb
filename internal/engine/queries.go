package engine

import (
	"fmt"

	"github.com/storyflowrt/engine/internal/project"
)

// GetNode looks up a node by id across every flow.
func (r *Runtime) GetNode(nodeID string) (*project.Node, error) {
	node, _, ok := r.proj.FindNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("engine: node %q not found", nodeID)
	}
	return node, nil
}

// NodeExists reports whether nodeID names a node in the loaded project.
func (r *Runtime) NodeExists(nodeID string) bool {
	_, _, ok := r.proj.FindNode(nodeID)
	return ok
}

// GetNodeByPermalink looks up a node by its stable permalink.
func (r *Runtime) GetNodeByPermalink(permalink string) (*project.Node, error) {
	node, ok := r.proj.NodeByPermalink(permalink)
	if !ok {
		return nil, fmt.Errorf("engine: no node with permalink %q", permalink)
	}
	return node, nil
}

// GetNodesByType returns every node of the given type across all flows.
func (r *Runtime) GetNodesByType(t project.NodeType) []*project.Node {
	return r.proj.NodesByType(t)
}

// GetFlow looks up a flow by id, name, or slug.
func (r *Runtime) GetFlow(idOrNameOrSlug string) (*project.Flow, error) {
	flow, ok := r.proj.Flow(idOrNameOrSlug)
	if !ok {
		return nil, fmt.Errorf("engine: flow %q not found", idOrNameOrSlug)
	}
	return flow, nil
}

// GetFlows returns every flow in the project.
func (r *Runtime) GetFlows() []project.Flow {
	return r.proj.Flows
}

// GetSelectedFlow returns the flow the cursor currently sits in.
func (r *Runtime) GetSelectedFlow() (*project.Flow, error) {
	return r.GetFlow(r.walker.SelectedFlowID())
}

// SelectedNodeID returns the cursor's current node id.
func (r *Runtime) SelectedNodeID() string { return r.walker.SelectedNodeID() }

// SelectedFlowID returns the flow id the cursor currently sits in.
func (r *Runtime) SelectedFlowID() string { return r.walker.SelectedFlowID() }

// GetNodeActor resolves the actor attributed to a node, if any.
func (r *Runtime) GetNodeActor(nodeID string) (*project.Actor, error) {
	node, err := r.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	if node.ActorID == "" {
		return nil, nil
	}
	actor, ok := r.proj.Actor(node.ActorID)
	if !ok {
		return nil, fmt.Errorf("engine: node %q references unknown actor %q", nodeID, node.ActorID)
	}
	return actor, nil
}

// GetActorByUID looks up an actor by its stable uid.
func (r *Runtime) GetActorByUID(uid string) (*project.Actor, error) {
	actor, ok := r.proj.ActorByUID(uid)
	if !ok {
		return nil, fmt.Errorf("engine: no actor with uid %q", uid)
	}
	return actor, nil
}

// GetLabels returns every label in the project.
func (r *Runtime) GetLabels() []project.Label {
	return r.proj.Labels
}

// GetLabel resolves a label's localized text against the runtime locale.
func (r *Runtime) GetLabel(key string) (string, error) {
	label, ok := r.proj.Label(key)
	if !ok {
		return "", fmt.Errorf("engine: label %q not found", key)
	}
	content, ok := resolveLabel(label, r.Locale(), r.proj.MainLocale)
	if !ok {
		return "", fmt.Errorf("engine: label %q has no content in locale %q or main locale %q", key, r.Locale(), r.proj.MainLocale)
	}
	return content, nil
}

// GetNodeMetadata resolves the metadata values a node's Metadata ids refer
// to, in the node's authored order.
func (r *Runtime) GetNodeMetadata(nodeID string) ([]project.MetadataValue, error) {
	node, err := r.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	out := make([]project.MetadataValue, 0, len(node.Metadata))
	for _, id := range node.Metadata {
		v, ok := r.proj.MetadataValue(id)
		if !ok {
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

// GetNodeMetaByMetaUID resolves a single metadata category by its uid,
// alongside the subset of its values referenced by nodeID, if any.
func (r *Runtime) GetNodeMetaByMetaUID(nodeID, metaUID string) (*project.Metadata, error) {
	node, err := r.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	meta, ok := r.proj.MetadataByUID(metaUID)
	if !ok {
		return nil, fmt.Errorf("engine: no metadata category with uid %q", metaUID)
	}
	bound := make(map[string]bool, len(node.Metadata))
	for _, id := range node.Metadata {
		bound[id] = true
	}
	filtered := &project.Metadata{ID: meta.ID, UID: meta.UID, Name: meta.Name, Icon: meta.Icon}
	for _, v := range meta.Values {
		if bound[v.ID] {
			filtered.Values = append(filtered.Values, v)
		}
	}
	return filtered, nil
}

// GetLinkingNodes returns the nodes within flowID that hold a connection
// targeting nodeID.
func (r *Runtime) GetLinkingNodes(flowID, nodeID string) []*project.Node {
	return r.proj.LinkingNodes(flowID, nodeID)
}

// GetLinksToNodes returns the distinct nodes that nodeID's own connections
// target.
func (r *Runtime) GetLinksToNodes(flowID, nodeID string) []*project.Node {
	return r.proj.LinksToNodes(flowID, nodeID)
}
