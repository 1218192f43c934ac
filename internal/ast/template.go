package ast

import "fmt"

// Template describes a subtree to be materialised by Build.
type Template struct {
	Kind   Kind
	Name   string
	Op     string
	Text   string
	Number Number
	Line   int

	// ID labels the node so that other templates can refer to it.
	ID string
	// RefTo is the ID of the node this one refers to. "?" marks an
	// unresolved reference.
	RefTo string

	Kids []SlotTemplate
}

// SlotTemplate is one child of a Template.
type SlotTemplate struct {
	Slot Slot
	Node Template
}

// UnresolvedRef is the RefTo value for references that stay unresolved.
const UnresolvedRef = "?"

// Build materialises tpl as a new tree and returns the ids of labelled nodes.
func Build(tpl Template) (*Tree, map[string]NodeID, error) {
	t := NewTree()
	ids := make(map[string]NodeID)
	type pending struct {
		id NodeID
		to string
	}
	var refs []pending

	var add func(parent NodeID, slot Slot, tp *Template) (NodeID, error)
	add = func(parent NodeID, slot Slot, tp *Template) (NodeID, error) {
		if !tp.Kind.Valid() {
			return NoNode, fmt.Errorf("template %q: invalid kind %v", tp.ID, tp.Kind)
		}
		id := t.Add(Node{
			Kind:   tp.Kind,
			Name:   tp.Name,
			Op:     tp.Op,
			Text:   tp.Text,
			Number: tp.Number,
			Line:   tp.Line,
		})
		if parent != NoNode {
			t.Append(parent, slot, id)
		}
		if tp.ID != "" {
			if _, dup := ids[tp.ID]; dup {
				return NoNode, fmt.Errorf("template: duplicate id %q", tp.ID)
			}
			ids[tp.ID] = id
		}
		if tp.RefTo != "" {
			refs = append(refs, pending{id: id, to: tp.RefTo})
		}
		for i := range tp.Kids {
			if _, err := add(id, tp.Kids[i].Slot, &tp.Kids[i].Node); err != nil {
				return NoNode, err
			}
		}
		return id, nil
	}

	root, err := add(NoNode, SlotNone, &tpl)
	if err != nil {
		return nil, nil, err
	}
	t.SetRoot(root)

	for _, p := range refs {
		if p.to == UnresolvedRef {
			t.nodes[p.id].Ref = Unresolved()
			continue
		}
		target, ok := ids[p.to]
		if !ok {
			return nil, nil, fmt.Errorf("template: reference to unknown id %q", p.to)
		}
		t.nodes[p.id].Ref = Resolved(target)
	}
	return t, ids, nil
}
