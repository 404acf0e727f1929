package docflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/docflow/pkg/docflow/observability"
)

// Context provides execution context to nodes.
// It extends context.Context with workflow services and metadata.
//
// Context is immutable after creation. The engine derives a context per node
// with the node ID set and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with session and node context.
	// Never returns nil.
	Logger() *slog.Logger

	// Progress returns the progress reporter. Never returns nil.
	Progress() observability.Reporter

	// SessionID returns the session this run belongs to.
	SessionID() string

	// NodeID returns the current node being executed.
	// Empty before execution starts.
	NodeID() NodeID

	// Attempt returns the attempt number of the current node (1 = first attempt).
	Attempt() int
}

type executionContext struct {
	context.Context

	logger    *slog.Logger
	progress  observability.Reporter
	sessionID string
	nodeID    NodeID
	attempt   int
}

func (c *executionContext) Logger() *slog.Logger             { return c.logger }
func (c *executionContext) Progress() observability.Reporter { return c.progress }
func (c *executionContext) SessionID() string                { return c.sessionID }
func (c *executionContext) NodeID() NodeID                   { return c.nodeID }
func (c *executionContext) Attempt() int                     { return c.attempt }

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProgress sets the progress reporter for the context.
func WithProgress(r observability.Reporter) ContextOption {
	return func(c *executionContext) {
		if r != nil {
			c.progress = r
		}
	}
}

// WithSessionID sets the session identifier. If not set, a random ID is used.
func WithSessionID(id string) ContextOption {
	return func(c *executionContext) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := docflow.NewContext(context.Background(),
//	    docflow.WithLogger(logger),
//	    docflow.WithSessionID(sessionID))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:   ctx,
		logger:    slog.Default(),
		progress:  observability.NoopReporter{},
		sessionID: uuid.New().String(),
		attempt:   1,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// forNode returns a derived context for running nodeID.
func (c *executionContext) forNode(nodeID NodeID, attempt int) *executionContext {
	return &executionContext{
		Context:   c.Context,
		logger:    observability.EnrichLogger(c.logger, c.sessionID, string(nodeID), attempt),
		progress:  c.progress,
		sessionID: c.sessionID,
		nodeID:    nodeID,
		attempt:   attempt,
	}
}

// asExecution converts any Context into the internal implementation so the
// engine can derive per-node contexts from caller-supplied implementations.
func asExecution(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context:   ctx,
		logger:    ctx.Logger(),
		progress:  ctx.Progress(),
		sessionID: ctx.SessionID(),
		nodeID:    ctx.NodeID(),
		attempt:   ctx.Attempt(),
	}
}
