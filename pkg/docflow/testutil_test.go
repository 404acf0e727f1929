package docflow

import (
	"context"
	"sync"
)

// tracker records node executions in order.
type tracker struct {
	mu    sync.Mutex
	calls []NodeID
}

func (t *tracker) record(id NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, id)
}

func (t *tracker) count(id NodeID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		if c == id {
			n++
		}
	}
	return n
}

func (t *tracker) sequence() []NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]NodeID(nil), t.calls...)
}

// makeTrackingNode creates a node that records its execution and does nothing else.
func makeTrackingNode(id NodeID, tr *tracker) NodeFunc {
	return func(ctx Context, s State) (State, error) {
		tr.record(id)
		return s, nil
	}
}

// makeFailingNode creates a node that records its execution and fails with err.
func makeFailingNode(id NodeID, tr *tracker, err error) NodeFunc {
	return func(ctx Context, s State) (State, error) {
		tr.record(id)
		return s, err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc {
	return func(ctx Context, s State) (State, error) {
		panic(value)
	}
}

// fullRegistry registers a tracking node for every node in the topology.
func fullRegistry(tr *tracker) Registry {
	reg := Registry{}
	for _, id := range SharedChain {
		reg.Register(id, makeTrackingNode(id, tr))
	}
	for _, chain := range BranchChains {
		for _, id := range chain {
			reg.Register(id, makeTrackingNode(id, tr))
		}
	}
	return reg
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background(), WithSessionID("session_test"))
}
