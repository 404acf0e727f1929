package docflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for topology validation.
var (
	// ErrNodeNotRegistered indicates the topology references a node with no implementation.
	ErrNodeNotRegistered = errors.New("node not registered")

	// ErrNoPathToEnd indicates a node in the topology cannot reach End.
	ErrNoPathToEnd = errors.New("no path to end")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations indicates the execution loop exceeded the configured limit.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrUnknownNode indicates a router or edge produced a node that does not exist.
	ErrUnknownNode = errors.New("unknown node")
)

// Failure is a node outcome destined for State.Errors.
//
// Message is the user-facing text. When Skip is set on a shared-chain node the
// engine also marks source processing as skipped with that reason.
type Failure struct {
	Message string
	Skip    SkipReason
	Cause   error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return f.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Fail returns a Failure with the given message.
func Fail(msg string) error {
	return &Failure{Message: msg}
}

// Failf returns a Failure with a formatted message. A wrapped %w error becomes the cause.
func Failf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &Failure{Message: err.Error(), Cause: errors.Unwrap(err)}
}

// FailSkip returns a Failure that also skips source processing with reason.
func FailSkip(reason SkipReason, msg string) error {
	return &Failure{Message: msg, Skip: reason}
}

// TopologyError reports an invalid topology or registry.
type TopologyError struct {
	// NodeID is the node the problem was found at.
	NodeID NodeID
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TopologyError) Error() string {
	return fmt.Sprintf("topology: node %s: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TopologyError) Unwrap() error {
	return e.Err
}

// NodeError wraps a node failure with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID NodeID
	// Err is the failure returned by the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID NodeID
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// RouterError wraps errors from conditional edge routing.
type RouterError struct {
	// FromNode is the node with the conditional edge.
	FromNode NodeID
	// Returned is the value the router returned.
	Returned NodeID
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError provides context when the loop limit is exceeded.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID NodeID
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// failureMessage converts a node error into the string recorded in State.Errors.
func failureMessage(id NodeID, err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Message
	}
	var p *PanicError
	if errors.As(err, &p) {
		return fmt.Sprintf("Unexpected error in %s: %v", id, p.Value)
	}
	return err.Error()
}

// failureSkip returns the skip reason carried by err, if any.
func failureSkip(err error) SkipReason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Skip
	}
	return ""
}
