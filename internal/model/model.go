// Package model defines the report structures astsync serializes.
package model

// ChunkCaller names the caller of calls made outside any function.
const ChunkCaller = "<chunk>"

// ComponentInfo summarises one component of a snapshot.
type ComponentInfo struct {
	Name   string
	Files  []string
	Served int // functions called from other components
	Rank   float64
}

// Function is a function other components call, whose behavioural model
// must therefore be kept in sync.
type Function struct {
	Name      string
	Component string
	File      string
	Line      int
	ServedBy  string // first external caller, as component:function
	Marked    int    // blocks marked inside the function
}

// Declaration is a function no call site resolves to.
type Declaration struct {
	Name      string
	Component string
	File      string
	Line      int
}

// CallSite is one call into another component.
type CallSite struct {
	Caller          string
	Callee          string
	Component       string
	TargetComponent string
	File            string
	Line            int
}

// Dependency represents an edge in the component graph:
// Source calls functions declared in Target.
type Dependency struct {
	Source  string
	Target  string
	Symbols []string
}

// Block is a block marked for reconstruction.
type Block struct {
	Function string
	File     string
	Line     int
	Role     string // body, then, elseif, else, loop or do
}

// Action is one reconstructed model element.
type Action struct {
	Function    string
	Kind        string
	Callee      string
	File        string
	Line        int
	Description string
}

// Change is a statement touched by a diff.
type Change struct {
	File        string
	Line        int
	Statement   string
	Reconstruct bool
}

// Report is the complete impact analysis of a snapshot, ready for
// serialization.
type Report struct {
	Project      string
	Policy       string
	Fingerprint  string
	Components   []ComponentInfo
	Functions    []Function
	CallSites    []CallSite
	Dependencies []Dependency
	Blocks       []Block
	Actions      []Action
	Changes      []Change
	Unused       []Declaration
}

// NodeRef locates a syntax node for match reports.
type NodeRef struct {
	Kind string
	Name string
	File string
	Line int
}

// Pair is one old/new correspondence.
type Pair struct {
	Old NodeRef
	New NodeRef
}

// MatchReport is the result of matching two snapshots.
type MatchReport struct {
	Old     string
	New     string
	Pairs   []Pair
	Deleted []NodeRef
	Added   []NodeRef
}
