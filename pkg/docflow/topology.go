package docflow

import "errors"

// SharedChain is the source-preparation chain every run starts with.
var SharedChain = []NodeID{
	NodeValidateSources,
	NodeResolveSources,
	NodeExtractSources,
	NodeMergeSources,
}

// BranchChains lists the strictly linear node chain of each branch.
var BranchChains = map[Branch][]NodeID{
	BranchDocument: {
		NodeDetectFormat,
		NodeParseContent,
		NodeTransformContent,
		NodeEnhanceContent,
		NodeGenerateImages,
		NodeDescribeImages,
		NodePersistImages,
		NodeGenerateOutput,
		NodeValidateOutput,
	},
	BranchPodcast:       {NodeGenerateScript, NodeSynthesizeAudio},
	BranchMindMap:       {NodeGenerateMindMap},
	BranchImageGenerate: {NodeGenerateImage},
	BranchImageEdit:     {NodeEditImage},
}

// Route selects the branch for s. It reads OutputType only.
func Route(s State) Branch {
	return s.OutputType.Branch()
}

// conditional is an edge whose target is chosen at runtime.
type conditional struct {
	route   RouterFunc
	targets []NodeID
}

// topology is the fixed adjacency table of the workflow.
type topology struct {
	entry   NodeID
	edges   map[NodeID]NodeID
	routers map[NodeID]conditional
}

// newTopology builds the adjacency table. The only cycle is the retry edge
// from validate_output back to generate_output.
func newTopology(maxRetries int) *topology {
	t := &topology{
		entry:   SharedChain[0],
		edges:   make(map[NodeID]NodeID),
		routers: make(map[NodeID]conditional),
	}
	linkChain(t.edges, SharedChain, "")

	branchTargets := make([]NodeID, 0, len(BranchChains))
	for _, b := range branchOrder {
		chain := BranchChains[b]
		branchTargets = append(branchTargets, chain[0])
		if b == BranchDocument {
			// validate_output leaves through the retry supervisor instead.
			linkChain(t.edges, chain[:len(chain)-1], NodeValidateOutput)
			continue
		}
		linkChain(t.edges, chain, End)
	}

	t.routers[NodeMergeSources] = conditional{
		route: func(_ Context, s State) Transition {
			return Transition{Next: BranchChains[Route(s)][0]}
		},
		targets: branchTargets,
	}
	t.routers[NodeValidateOutput] = conditional{
		route:   RetrySupervisor(maxRetries, NodeGenerateOutput),
		targets: []NodeID{NodeGenerateOutput, End},
	}
	return t
}

// maxRunLength is the number of node visits of the longest run: the shared
// chain, the longest branch and two visits per retry, plus the final routing
// step.
func maxRunLength(maxRetries int) int {
	longest := 0
	for _, chain := range BranchChains {
		longest = max(longest, len(chain))
	}
	return len(SharedChain) + longest + 2*maxRetries + 1
}

var branchOrder = []Branch{BranchDocument, BranchPodcast, BranchMindMap, BranchImageGenerate, BranchImageEdit}

// linkChain adds simple edges chain[i] -> chain[i+1]. A non-empty last target
// is linked from the final element.
func linkChain(edges map[NodeID]NodeID, chain []NodeID, last NodeID) {
	for i := 0; i+1 < len(chain); i++ {
		edges[chain[i]] = chain[i+1]
	}
	if last != "" && len(chain) > 0 && chain[len(chain)-1] != last {
		edges[chain[len(chain)-1]] = last
	}
}

// nodes returns every node referenced by the table.
func (t *topology) nodes() []NodeID {
	seen := map[NodeID]bool{}
	var out []NodeID
	add := func(id NodeID) {
		if id != End && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(t.entry)
	for from, to := range t.edges {
		add(from)
		add(to)
	}
	for from, c := range t.routers {
		add(from)
		for _, to := range c.targets {
			add(to)
		}
	}
	return out
}

// successors returns every possible next node of id.
func (t *topology) successors(id NodeID) []NodeID {
	if c, ok := t.routers[id]; ok {
		return c.targets
	}
	if to, ok := t.edges[id]; ok {
		return []NodeID{to}
	}
	return nil
}

// validate checks that every node is registered and can reach End.
// Problems are joined into a single error.
func (t *topology) validate(reg Registry) error {
	var errs []error
	for _, id := range t.nodes() {
		if _, ok := reg[id]; !ok {
			errs = append(errs, &TopologyError{NodeID: id, Err: ErrNodeNotRegistered})
		}
	}

	// Propagate "can reach End" backwards until nothing changes.
	reaches := map[NodeID]bool{End: true}
	for changed := true; changed; {
		changed = false
		for _, id := range t.nodes() {
			if reaches[id] {
				continue
			}
			for _, next := range t.successors(id) {
				if reaches[next] {
					reaches[id] = true
					changed = true
					break
				}
			}
		}
	}
	for _, id := range t.nodes() {
		if !reaches[id] {
			errs = append(errs, &TopologyError{NodeID: id, Err: ErrNoPathToEnd})
		}
	}
	return errors.Join(errs...)
}

// position returns the 1-based step of id within the run for branch b and the
// total number of steps. Unknown nodes report (0, total).
func position(b Branch, id NodeID) (step, total int) {
	chain := BranchChains[b]
	total = len(SharedChain) + len(chain)
	for i, n := range SharedChain {
		if n == id {
			return i + 1, total
		}
	}
	for i, n := range chain {
		if n == id {
			return len(SharedChain) + i + 1, total
		}
	}
	return 0, total
}
