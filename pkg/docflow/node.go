package docflow

// NodeID identifies a node in the fixed workflow topology.
type NodeID string

// End is the terminal node identifier.
const End NodeID = "__end__"

// Shared source-preparation chain.
const (
	NodeValidateSources NodeID = "validate_sources"
	NodeResolveSources  NodeID = "resolve_sources"
	NodeExtractSources  NodeID = "extract_sources"
	NodeMergeSources    NodeID = "merge_sources"
)

// Document branch.
const (
	NodeDetectFormat     NodeID = "detect_format"
	NodeParseContent     NodeID = "parse_content"
	NodeTransformContent NodeID = "transform_content"
	NodeEnhanceContent   NodeID = "enhance_content"
	NodeGenerateImages   NodeID = "generate_images"
	NodeDescribeImages   NodeID = "describe_images"
	NodePersistImages    NodeID = "persist_images"
	NodeGenerateOutput   NodeID = "generate_output"
	NodeValidateOutput   NodeID = "validate_output"
)

// Podcast, mind map and image branches.
const (
	NodeGenerateScript  NodeID = "generate_script"
	NodeSynthesizeAudio NodeID = "synthesize_audio"
	NodeGenerateMindMap NodeID = "generate_mindmap"
	NodeGenerateImage   NodeID = "generate_image"
	NodeEditImage       NodeID = "edit_image"
)

// Shared reports whether the node belongs to the source-preparation chain.
func (id NodeID) Shared() bool {
	switch id {
	case NodeValidateSources, NodeResolveSources, NodeExtractSources, NodeMergeSources:
		return true
	}
	return false
}

// NodeFunc is the signature for all node functions.
//
// A node receives the execution context and the current state and returns the
// updated state together with its outcome. A nil error means success. A non-nil
// error is the node's failure result: the engine records it in State.Errors and
// keeps going along the normal edge. The returned state should carry whatever
// partial progress the node made before failing.
//
// Example:
//
//	func countWords(ctx docflow.Context, s docflow.State) (docflow.State, error) {
//	    if s.RawContent == "" {
//	        return s, docflow.Fail("No content to count")
//	    }
//	    s.Metadata.Set("words", len(strings.Fields(s.RawContent)))
//	    return s, nil
//	}
type NodeFunc func(ctx Context, s State) (State, error)

// Transition is the outcome of a conditional edge.
type Transition struct {
	// Next is the node to run next, or End.
	Next NodeID
	// Retry marks the transition as a retry. The engine increments
	// Metadata.RetryCount before following it.
	Retry bool
}

// RouterFunc computes the next node from state. Routers must not mutate state.
type RouterFunc func(ctx Context, s State) Transition

// Registry maps node identifiers to their implementations.
type Registry map[NodeID]NodeFunc

// Register adds fn under id and returns the registry for chaining.
// It panics on an empty id or a nil function.
func (r Registry) Register(id NodeID, fn NodeFunc) Registry {
	if id == "" {
		panic("docflow: node ID cannot be empty")
	}
	if id == End {
		panic("docflow: cannot register reserved node ID " + string(End))
	}
	if fn == nil {
		panic("docflow: node function cannot be nil")
	}
	r[id] = fn
	return r
}
