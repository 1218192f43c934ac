package ast

import (
	"errors"
	"fmt"
)

// ErrNodeRange indicates a node id outside the arena of its tree.
var ErrNodeRange = errors.New("node id out of range")

// ErrAttached indicates an attempt to attach a node that already has a parent.
var ErrAttached = errors.New("node already attached")

// InternalError reports a broken internal invariant: a node kind without a
// rule, a reference cycle, a missing required child. It is raised with panic
// and turned back into an error at the boundary of a pass by Guard.
type InternalError struct {
	Op   string
	Node string
	Err  error
}

func (e *InternalError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("internal error in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("internal error in %s at %s: %v", e.Op, e.Node, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Fail panics with an InternalError.
func Fail(op, node string, err error) {
	panic(&InternalError{Op: op, Node: node, Err: err})
}

// Guard recovers an InternalError panic into *errp. It must be deferred
// directly. Any other panic is propagated.
func Guard(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*InternalError)
	if !ok {
		panic(r)
	}
	*errp = ie
}
