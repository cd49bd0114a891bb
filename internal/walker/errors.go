package walker

import "fmt"

// FlowErrorKind classifies a structural failure the walker hands back to
// the host rather than rendering as text.
type FlowErrorKind string

const (
	UnreachableEnd FlowErrorKind = "UnreachableEnd"
	BadJump        FlowErrorKind = "BadJump"
	DepthExceeded  FlowErrorKind = "DepthExceeded"
)

// FlowError is returned only for structural problems: a current flow, current
// node, or connection target that cannot be found in the project
// (UnreachableEnd), or a pass-through chain exceeding the configured depth
// cap (DepthExceeded). A JumpToNode whose target is missing is reported as a
// BadJumpOutcome, not as a FlowError; the walker never returns the BadJump
// kind.
type FlowError struct {
	Kind    FlowErrorKind
	FlowID  string
	NodeID  string
	Message string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s (flow=%s node=%s)", e.Kind, e.Message, e.FlowID, e.NodeID)
}
