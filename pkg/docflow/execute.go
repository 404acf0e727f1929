package docflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/randalmurphal/docflow/pkg/docflow/observability"
)

// Engine runs the fixed workflow topology over a node registry.
// An Engine holds no per-run state and is safe for concurrent use.
type Engine struct {
	registry Registry
	topo     *topology
	cfg      engineConfig
}

// NewEngine validates reg against the topology and returns an Engine.
// Every node in the topology must be registered; all problems are joined.
func NewEngine(reg Registry, opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.iterationsSet {
		cfg.maxIterations = max(cfg.maxIterations, maxRunLength(cfg.maxRetries))
	}
	topo := newTopology(cfg.maxRetries)
	if err := topo.validate(reg); err != nil {
		return nil, err
	}
	frozen := make(Registry, len(reg))
	for id, fn := range reg {
		frozen[id] = fn
	}
	return &Engine{registry: frozen, topo: topo, cfg: cfg}, nil
}

// MaxRetries returns the configured retry budget of the document branch.
func (e *Engine) MaxRetries() int {
	return e.cfg.maxRetries
}

// Run executes the workflow with the given initial state.
//
// Node failures never abort a run: they are appended to State.Errors and the
// run continues along the normal edge. The returned error is non-nil only for
// engine faults (nil context, bad router result, iteration limit), in which
// case the state at the point of failure is returned alongside it.
//
// Execution flow:
//  1. Run the shared chain; once source processing is skipped the remaining
//     shared nodes are passed through.
//  2. Route to the branch selected by OutputType.
//  3. Run the branch chain, following the retry edge while the supervisor allows.
//
// There is no cancellation between nodes. ctx is handed to nodes so that their
// external calls may honor it.
func (e *Engine) Run(ctx Context, s State) (result State, runErr error) {
	if ctx == nil {
		return s, ErrNilContext
	}
	ec := asExecution(ctx)
	if s.Metadata.SessionID == "" {
		s.Metadata.SessionID = ec.sessionID
	}

	start := time.Now()
	observability.LogRunStart(ec.logger, ec.sessionID, string(s.OutputType))

	spanCtx, runSpan := e.cfg.spans.StartRunSpan(ec.Context, ec.sessionID, string(s.OutputType))
	defer func() {
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
		} else if len(result.Errors) > 0 {
			msg = result.LastError()
		}
		e.cfg.spans.EndSpan(runSpan, msg)
	}()

	var (
		current   = e.topo.entry
		attempts  = make(map[NodeID]int)
		nodeCount int
	)
	for iterations := 1; current != End; iterations++ {
		if iterations > e.cfg.maxIterations {
			runErr = &MaxIterationsError{Max: e.cfg.maxIterations, LastNodeID: current}
			break
		}

		if current.Shared() && s.Metadata.SkipSourceProcessing {
			if s.Metadata.SkipReason != SkipNotRequired {
				observability.LogNodeSkipped(ec.logger, string(current), s.Metadata.SkipReason.Describe())
			}
		} else {
			attempts[current]++
			s = e.runNode(spanCtx, ec, current, attempts[current], s)
			nodeCount++
		}

		next, err := e.nextNode(spanCtx, ec, current, &s)
		if err != nil {
			runErr = err
			break
		}
		current = next
	}

	duration := time.Since(start)
	e.cfg.metrics.RecordRun(ec.Context, string(Route(s)), runErr == nil && len(s.Errors) == 0, duration)
	if runErr != nil {
		observability.LogRunError(ec.logger, ec.sessionID, runErr, float64(duration.Milliseconds()), string(current))
	} else {
		observability.LogRunComplete(ec.logger, ec.sessionID, float64(duration.Milliseconds()), nodeCount, len(s.Errors))
	}
	return s, runErr
}

// runNode executes one node and folds its outcome into the state.
func (e *Engine) runNode(spanCtx context.Context, ec *executionContext, id NodeID, attempt int, s State) State {
	nodeCtx := ec.forNode(id, attempt)
	tracingCtx, nodeSpan := e.cfg.spans.StartNodeSpan(spanCtx, string(id))
	nodeCtx.Context = tracingCtx

	observability.LogNodeStart(ec.logger, string(id))
	start := time.Now()

	wasSkipped := s.Metadata.SkipSourceProcessing
	next, err := e.execute(nodeCtx, id, s)

	msg := ""
	if err != nil {
		msg = failureMessage(id, err)
		next.AddError(msg)
		if reason := failureSkip(err); reason != "" && id.Shared() {
			next.Metadata.Skip(reason)
		}
		observability.LogNodeError(ec.logger, string(id), msg)
	} else {
		observability.LogNodeComplete(ec.logger, string(id), float64(time.Since(start).Milliseconds()))
	}
	if !wasSkipped && next.Metadata.SkipSourceProcessing {
		e.cfg.metrics.RecordSkip(tracingCtx, string(next.Metadata.SkipReason))
	}

	e.cfg.metrics.RecordNodeExecution(tracingCtx, string(id), time.Since(start), err != nil)
	e.cfg.spans.EndSpan(nodeSpan, msg)
	return next
}

// execute calls the node with panic recovery. A panic yields the input state
// and a PanicError.
func (e *Engine) execute(ctx *executionContext, id NodeID, s State) (result State, err error) {
	fn := e.registry[id]
	if fn == nil {
		return s, &NodeError{NodeID: id, Err: ErrNodeNotRegistered}
	}

	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{NodeID: id, Value: r, Stack: string(debug.Stack())}
			ctx.logger.Error("node panicked", "panic", fmt.Sprint(r), "stack", pe.Stack)
			result, err = s, pe
		}
	}()

	return fn(ctx, s)
}

// nextNode determines the next node, following conditional edges first.
// A retry transition increments the retry counter before it is taken.
func (e *Engine) nextNode(spanCtx context.Context, ec *executionContext, current NodeID, s *State) (NodeID, error) {
	if c, ok := e.topo.routers[current]; ok {
		routerCtx := ec.forNode(current, 1)
		tr := c.route(routerCtx, *s)
		if tr.Next == "" || !slices.Contains(c.targets, tr.Next) {
			return "", &RouterError{FromNode: current, Returned: tr.Next, Err: ErrUnknownNode}
		}
		if tr.Retry {
			s.Metadata.RetryCount++
			observability.LogRetry(ec.logger, string(tr.Next), s.Metadata.RetryCount, e.cfg.maxRetries, s.LastError())
			e.cfg.metrics.RecordRetry(spanCtx, string(tr.Next))
			e.cfg.spans.AddSpanEvent(spanCtx, "retry")
		}
		return tr.Next, nil
	}

	next, ok := e.topo.edges[current]
	if !ok {
		return "", &NodeError{NodeID: current, Err: fmt.Errorf("%w: no outgoing edge", ErrUnknownNode)}
	}
	return next, nil
}
