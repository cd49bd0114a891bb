package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// CurrentAPIVersion is the project wire format version this loader targets.
// A mismatch is non-fatal — Load reports it via the returned Warnings,
// never as an error, so older authoring-tool exports still load.
const CurrentAPIVersion = "1.4"

// wire* types mirror the project JSON document exactly, including its
// leading-underscore field names. They exist only to decode the wire
// format; Load converts them into the public, stable Project tree.
type wireProject struct {
	APIVersion       string            `json:"_apiVersion"`
	Name             string            `json:"_name"`
	Locale           string            `json:"_locale"`
	MainLocale       wireLocale        `json:"_mainLocale"`
	AvailableLocale  []wireLocale      `json:"_availableLocale"`
	FlowGroups       []wireFlowGroup   `json:"_flowGroups"`
	Flows            []wireFlow        `json:"_flows"`
	Actors           []wireActor       `json:"_actors"`
	Variables        []wireVariable    `json:"_variables"`
	Labels           []wireLabel       `json:"_labels"`
	Metadata         []wireMetadata    `json:"_metadata"`
}

type wireLocale struct {
	Code string `json:"_code"`
	Desc string `json:"_desc"`
}

type wireFlowGroup struct {
	ID      string   `json:"_id"`
	Name    string   `json:"_name"`
	FlowIDs []string `json:"_flowIds"`
}

type wireFlow struct {
	ID    string     `json:"_id"`
	Name  string     `json:"_name"`
	Slug  string     `json:"_slug"`
	Nodes []wireNode `json:"_nodes"`
}

type wireNode struct {
	ID           string            `json:"_id"`
	Type         string            `json:"_type"`
	ActorID      string            `json:"_actorId"`
	CycleType    string            `json:"_cycleType"`
	Translatable *bool             `json:"_translatable"`
	Metadata     []string          `json:"_metadata"`
	Elements     []wireElement     `json:"_elements"`
	Connections  []wireConnection  `json:"_connections"`
	JumpTo       *wireJumpTo       `json:"_jumpTo"`
	Permalink    string            `json:"_permalink"`
	Image        string            `json:"_image"`
	Tags         []string          `json:"_tags"`
}

type wireJumpTo struct {
	FlowID string `json:"_flowId"`
	NodeID string `json:"_nodeId"`
}

type wireElement struct {
	ID                string                 `json:"_id"`
	NodeID            string                 `json:"_nodeId"`
	Type              string                 `json:"_type"`
	LocalizedContents []wireLocalizedContent `json:"_localizedContents"`
}

type wireLocalizedContent struct {
	LocaleCode string `json:"_localeCode"`
	Text       string `json:"_text"`
}

type wireConnection struct {
	To            string `json:"_to"`
	Type          string `json:"_type"`
	NodeElementID string `json:"_nodeElementId"`
}

type wireActor struct {
	ID         string `json:"_id"`
	UID        string `json:"_uid"`
	Name       string `json:"_name"`
	IsNarrator bool   `json:"_isNarrator"`
}

type wireVariable struct {
	Key   string `json:"_key"`
	Value any    `json:"_value"`
	Type  string `json:"_type"`
}

type wireLabel struct {
	Key               string                 `json:"_key"`
	LocalizedContents []wireLocalizedContent `json:"_localizedContents"`
}

type wireMetadata struct {
	ID     string              `json:"_id"`
	UID    string              `json:"_uid"`
	Name   string              `json:"_name"`
	Icon   string              `json:"_icon"`
	Values []wireMetadataValue `json:"_values"`
}

type wireMetadataValue struct {
	ID         string `json:"_id"`
	UID        string `json:"_uid"`
	Value      string `json:"_value"`
	Icon       string `json:"_icon"`
	MetadataID string `json:"_metadataId"`
}

// LoadResult carries the decoded Project plus any non-fatal warnings
// collected while decoding (API version mismatches).
type LoadResult struct {
	Project  *Project
	Warnings []string
}

// Load decodes a project JSON document into a Project tree, validating its
// structural invariants (exactly one Start node per flow, connections
// targeting nodes in the same flow, element-scoped connections referencing
// a real element).
func Load(data []byte) (*LoadResult, error) {
	var w wireProject
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, newMalformed("invalid JSON: %v", err)
	}
	if w.MainLocale.Code == "" {
		return nil, newMissingField("_mainLocale._code")
	}
	if len(w.Flows) == 0 {
		return nil, newMissingField("_flows")
	}

	var warnings []string
	if w.APIVersion != "" && w.APIVersion != CurrentAPIVersion {
		warnings = append(warnings, fmt.Sprintf("project api version %q does not match runtime version %q", w.APIVersion, CurrentAPIVersion))
	}

	p := &Project{
		Locale:     firstNonEmpty(w.Locale, w.MainLocale.Code),
		MainLocale: w.MainLocale.Code,
		APIVersion: w.APIVersion,
	}
	for _, l := range w.AvailableLocale {
		p.AvailableLocales = append(p.AvailableLocales, l.Code)
	}

	for _, fg := range w.FlowGroups {
		p.FlowGroups = append(p.FlowGroups, FlowGroup{ID: fg.ID, Name: fg.Name, FlowIDs: fg.FlowIDs})
	}

	for _, wf := range w.Flows {
		flow, err := convertFlow(wf)
		if err != nil {
			return nil, err
		}
		p.Flows = append(p.Flows, flow)
	}

	for _, a := range w.Actors {
		p.Actors = append(p.Actors, Actor{ID: a.ID, UID: a.UID, Name: a.Name, IsNarrator: a.IsNarrator})
	}

	for _, v := range w.Variables {
		variable, err := convertVariable(v)
		if err != nil {
			return nil, err
		}
		p.Variables = append(p.Variables, variable)
	}

	for _, l := range w.Labels {
		p.Labels = append(p.Labels, Label{Key: l.Key, LocalizedContents: convertContents(l.LocalizedContents)})
	}

	for _, m := range w.Metadata {
		meta := Metadata{ID: m.ID, UID: m.UID, Name: m.Name, Icon: m.Icon}
		for _, v := range m.Values {
			meta.Values = append(meta.Values, MetadataValue{
				ID: v.ID, UID: v.UID, Value: v.Value, Icon: v.Icon, MetadataID: v.MetadataID,
			})
		}
		p.Metadata = append(p.Metadata, meta)
	}

	if err := validateInvariants(p); err != nil {
		return nil, err
	}

	p.SchemaChecksum = checksum(data)

	return &LoadResult{Project: p, Warnings: warnings}, nil
}

func convertFlow(wf wireFlow) (Flow, error) {
	flow := Flow{ID: wf.ID, Name: wf.Name, Slug: wf.Slug}
	startCount := 0
	for _, wn := range wf.Nodes {
		node := Node{
			ID:           wn.ID,
			Permalink:    wn.Permalink,
			Type:         NodeType(wn.Type),
			ActorID:      wn.ActorID,
			CycleType:    CycleType(wn.CycleType),
			Translatable: wn.Translatable == nil || *wn.Translatable,
			Metadata:     wn.Metadata,
			Image:        wn.Image,
			Tags:         wn.Tags,
		}
		if wn.JumpTo != nil {
			node.JumpTo = &JumpTarget{FlowID: wn.JumpTo.FlowID, NodeID: wn.JumpTo.NodeID}
		}
		for _, we := range wn.Elements {
			node.Elements = append(node.Elements, NodeElement{
				ID:                we.ID,
				NodeID:            we.NodeID,
				Type:              we.Type,
				LocalizedContents: convertContents(we.LocalizedContents),
			})
		}
		for _, wc := range wn.Connections {
			ct := ConnectionType(wc.Type)
			if ct == "" {
				ct = ConnDefault
			}
			node.Connections = append(node.Connections, Connection{
				FromNodeID:    node.ID,
				To:            wc.To,
				NodeElementID: wc.NodeElementID,
				Type:          ct,
			})
		}
		if node.Type == NodeStart {
			startCount++
		}
		flow.Nodes = append(flow.Nodes, node)
	}
	if startCount != 1 {
		return Flow{}, newMalformed("flow %q must contain exactly one Start node, found %d", wf.ID, startCount)
	}
	return flow, nil
}

func convertContents(wcs []wireLocalizedContent) []LocalizedContent {
	out := make([]LocalizedContent, 0, len(wcs))
	for _, wc := range wcs {
		out = append(out, LocalizedContent{LocaleCode: wc.LocaleCode, Text: wc.Text})
	}
	return out
}

// convertVariable coerces a raw JSON variable value according to its
// declared type. "true"/"false" strings become bool; separator variables
// are never loaded into the value, only the declaration survives for
// documentation/round-trip purposes.
func convertVariable(v wireVariable) (Variable, error) {
	vt := VariableType(v.Type)
	variable := Variable{Key: v.Key, Type: vt}

	if vt == VarSeparator {
		return variable, nil
	}

	var coerced any
	cfg := &mapstructure.DecoderConfig{
		Result:           &coerced,
		WeaklyTypedInput: true,
	}
	switch vt {
	case VarBool:
		var b bool
		cfg.Result = &b
		dec, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return Variable{}, newMalformed("variable %q: %v", v.Key, err)
		}
		if err := dec.Decode(v.Value); err != nil {
			return Variable{}, newMalformed("variable %q: cannot coerce %v to bool", v.Key, v.Value)
		}
		variable.Value = b
	case VarInt:
		var i int
		cfg.Result = &i
		dec, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return Variable{}, newMalformed("variable %q: %v", v.Key, err)
		}
		if err := dec.Decode(v.Value); err != nil {
			return Variable{}, newMalformed("variable %q: cannot coerce %v to int", v.Key, v.Value)
		}
		variable.Value = i
	case VarFloat, VarFixed:
		var f float64
		cfg.Result = &f
		dec, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return Variable{}, newMalformed("variable %q: %v", v.Key, err)
		}
		if err := dec.Decode(v.Value); err != nil {
			return Variable{}, newMalformed("variable %q: cannot coerce %v to float", v.Key, v.Value)
		}
		variable.Value = f
	default: // string, or unspecified
		variable.Value = fmt.Sprintf("%v", v.Value)
		if v.Value == nil {
			variable.Value = ""
		}
	}
	return variable, nil
}

// validateInvariants checks the structural invariants every loaded project
// must satisfy: connections (other than JumpToNode edges and a SubFlow
// node's SubFlow-typed edge, both of which cross into another flow) must
// target a node within the same flow, element-scoped connections must
// reference a real element, and at most one FailCondition connection may
// exist per applicable node.
func validateInvariants(p *Project) error {
	for fi := range p.Flows {
		flow := &p.Flows[fi]
		nodeIDs := make(map[string]bool, len(flow.Nodes))
		for _, n := range flow.Nodes {
			nodeIDs[n.ID] = true
		}
		for _, n := range flow.Nodes {
			failCount := 0
			for _, c := range n.Connections {
				if c.Type == ConnFailCondition {
					failCount++
					continue
				}
				if n.Type == NodeJumpToNode {
					continue // jump targets live in another flow via JumpTo
				}
				if n.Type == NodeSubFlow && c.Type == ConnSubFlow {
					continue // the SubFlow edge calls into another flow's Start node
				}
				if !nodeIDs[c.To] {
					return newMalformed("flow %q node %q connection targets unknown node %q", flow.ID, n.ID, c.To)
				}
				if (n.Type == NodeChoice || n.Type == NodeCondition || n.Type == NodeSequence) && c.NodeElementID != "" {
					if _, ok := n.Element(c.NodeElementID); !ok {
						return newMalformed("flow %q node %q connection references unknown element %q", flow.ID, n.ID, c.NodeElementID)
					}
				}
			}
			if failCount > 1 {
				return newMalformed("flow %q node %q has %d FailCondition connections, want at most 1", flow.ID, n.ID, failCount)
			}
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
