package impact

import (
	"fmt"

	"github.com/phobologic/astsync/internal/ast"
	"github.com/phobologic/astsync/internal/resolve"
)

// ActionKind is the kind of behavioural model element a statement becomes.
type ActionKind uint8

const (
	ActionInternal ActionKind = iota
	ActionBranch
	ActionLoop
	ActionExternalCall
	ActionInternalCall
)

func (k ActionKind) String() string {
	switch k {
	case ActionInternal:
		return "internal"
	case ActionBranch:
		return "branch"
	case ActionLoop:
		return "loop"
	case ActionExternalCall:
		return "external_call"
	case ActionInternalCall:
		return "internal_call"
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

// Action is one reconstructed model element.
type Action struct {
	Kind ActionKind
	// Stat is the statement the action was derived from.
	Stat ast.NodeID
	// Callee names the called function for call actions.
	Callee string
	// Description is a human readable label.
	Description string
}

// Reconstruct derives the actions for stmt. If statements become a branch
// when any branch is marked, loops become a loop when their body is marked,
// and other statements yield one action per resolved call they contain.
// Call actions are recorded against the called declaration.
func (i *Info) Reconstruct(stmt ast.NodeID) []Action {
	t := i.tree
	switch t.Kind(stmt) {
	case ast.KindIf:
		if i.NeedsReconstruction(stmt) {
			return []Action{{Kind: ActionBranch, Stat: stmt, Description: "IF " + condKind(t, stmt)}}
		}
		return []Action{{Kind: ActionInternal, Stat: stmt, Description: "IF BLOCK " + condKind(t, stmt)}}
	case ast.KindWhile, ast.KindRepeat, ast.KindNumericFor, ast.KindGenericFor:
		if i.IsMarked(t.Child(stmt, ast.SlotBody)) {
			return []Action{{Kind: ActionLoop, Stat: stmt, Description: t.Describe(stmt)}}
		}
		return []Action{{Kind: ActionInternal, Stat: stmt, Description: "LOOP BLOCK " + t.Describe(stmt)}}
	}

	var out []Action
	for _, cs := range i.resolver.CallsIn(stmt) {
		if cs.Mocked() {
			continue
		}
		out = append(out, i.callAction(stmt, cs))
	}
	return out
}

func (i *Info) callAction(stmt ast.NodeID, cs resolve.CallSite) Action {
	d, _ := cs.Target.Get()
	a := Action{Stat: stmt, Callee: d.Name}

	if i.resolver.IsExternal(cs) {
		a.Kind = ActionExternalCall
		a.Description = "CALL_TO_SEFF " + d.Name
		i.RecordAction(d, a)
		return a
	}

	if !i.NeedsDeclaration(d) {
		a.Kind = ActionInternal
		a.Description = "CALL_TO_NON_SEFF " + d.Name
		return a
	}

	switch i.policy {
	case PolicyExternalCallAction:
		a.Kind = ActionExternalCall
		a.Description = "CALL_TO_SEFF " + d.Name
		i.RecordAction(d, a)
	case PolicyInternalCallAction:
		a.Kind = ActionInternalCall
		a.Description = "CALL_TO_INTERNAL_SEFF " + d.Name
		i.RecordAction(d, a)
	default:
		a.Kind = ActionInternal
		a.Description = "CALL_TO_INTERNAL_NON_SEFF " + d.Name
	}
	return a
}

func condKind(t *ast.Tree, ifStat ast.NodeID) string {
	return t.Kind(t.Child(ifStat, ast.SlotCond)).String()
}
