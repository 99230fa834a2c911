package domain

import "go.trai.ch/zerr"

// NodeID addresses a ResolvedPackage in the graph's arena. Nodes reference
// each other by handle rather than by pointer so that logical dependency
// cycles (A requires B, B requires A) stay representable.
type NodeID int

// ScopeID addresses a resolution scope.
type ScopeID int

const (
	// RootScope is the shared scope hoisted packages resolve into.
	RootScope ScopeID = 0

	// NoNode is the absent node handle.
	NoNode NodeID = -1
)

type scope struct {
	parent  ScopeID
	owner   NodeID // node that required an incompatible version; NoNode for root
	depth   int
	entries map[InternedString]NodeID
	order   []NodeID // insertion order, drives deterministic walks
}

// Graph is the resolved dependency graph: an arena of ResolvedPackages grouped
// into resolution scopes. Within one scope a name maps to at most one node;
// conflicting versions live in nested scopes keyed to the requiring package.
type Graph struct {
	nodes     []ResolvedPackage
	edges     [][]NodeID
	nodeScope []ScopeID
	scopes    []*scope
}

// NewGraph creates an empty graph with its root scope.
func NewGraph() *Graph {
	g := &Graph{}
	g.scopes = append(g.scopes, &scope{parent: -1, owner: NoNode, entries: make(map[InternedString]NodeID)})
	return g
}

// AddPackage registers a package in the given scope and returns its handle.
// The one-version-per-name-per-scope invariant is enforced here.
func (g *Graph) AddPackage(sid ScopeID, pkg ResolvedPackage) (NodeID, error) {
	sc, err := g.scope(sid)
	if err != nil {
		return NoNode, err
	}
	if _, exists := sc.entries[pkg.Name]; exists {
		return NoNode, zerr.With(zerr.Wrap(ErrDuplicatePackage, "name taken in scope"), "package", pkg.Name.String())
	}

	pkg.Depth = sc.depth
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, pkg)
	g.edges = append(g.edges, nil)
	g.nodeScope = append(g.nodeScope, sid)

	sc.entries[pkg.Name] = id
	sc.order = append(sc.order, id)
	return id, nil
}

// OpenScope creates a nested scope owned by the given node.
func (g *Graph) OpenScope(parent ScopeID, owner NodeID) (ScopeID, error) {
	parentScope, err := g.scope(parent)
	if err != nil {
		return 0, err
	}
	sid := ScopeID(len(g.scopes))
	g.scopes = append(g.scopes, &scope{
		parent:  parent,
		owner:   owner,
		depth:   parentScope.depth + 1,
		entries: make(map[InternedString]NodeID),
	})
	return sid, nil
}

// AddEdge records that parent's resolution includes child. Edges may point at
// ancestors; cycle handling happens during the postorder walk.
func (g *Graph) AddEdge(parent, child NodeID) {
	g.edges[parent] = append(g.edges[parent], child)
}

// LookupLocal finds a name in exactly the given scope.
func (g *Graph) LookupLocal(sid ScopeID, name InternedString) (NodeID, bool) {
	sc, err := g.scope(sid)
	if err != nil {
		return NoNode, false
	}
	id, ok := sc.entries[name]
	return id, ok
}

// LookupChain finds a name in the given scope or any ancestor, nearest first.
func (g *Graph) LookupChain(sid ScopeID, name InternedString) (NodeID, bool) {
	for sid >= 0 {
		sc := g.scopes[sid]
		if id, ok := sc.entries[name]; ok {
			return id, true
		}
		sid = sc.parent
	}
	return NoNode, false
}

// Package returns the node for the given handle. The returned pointer is into
// the arena; callers must treat it as read-only.
func (g *Graph) Package(id NodeID) *ResolvedPackage {
	return &g.nodes[id]
}

// Children returns a node's resolved dependencies in declaration order.
func (g *Graph) Children(id NodeID) []NodeID {
	return g.edges[id]
}

// ScopeOf returns the scope a node was registered in.
func (g *Graph) ScopeOf(id NodeID) ScopeID {
	return g.nodeScope[id]
}

// ScopeOwner returns the node owning the scope, or NoNode for the root scope.
func (g *Graph) ScopeOwner(sid ScopeID) NodeID {
	return g.scopes[sid].owner
}

// OwnerPath returns the chain of scope-owner names from the root down to the
// node's scope. Empty for hoisted packages. The install layout and lockfile
// ordering both derive from this path.
func (g *Graph) OwnerPath(id NodeID) []string {
	var rev []string
	sid := g.nodeScope[id]
	for sid > 0 {
		sc := g.scopes[sid]
		if sc.owner != NoNode {
			rev = append(rev, g.nodes[sc.owner].Name.String())
		}
		sid = sc.parent
	}
	path := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// RootOrder returns the root scope's nodes in insertion order.
func (g *Graph) RootOrder() []NodeID {
	return g.scopes[RootScope].order
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) scope(sid ScopeID) (*scope, error) {
	if sid < 0 || int(sid) >= len(g.scopes) {
		return nil, zerr.With(zerr.Wrap(ErrUnknownScope, "handle out of range"), "scope", int(sid))
	}
	return g.scopes[sid], nil
}
