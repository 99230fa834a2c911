package domain

// InstallPlan is the dependency-first ordering of graph nodes: a package
// appears only after everything it depends on. Derived per invocation, never
// persisted.
type InstallPlan struct {
	Order []NodeID
}

// NewInstallPlan computes the postorder walk of the graph, starting from the
// root scope in declaration order. Back edges from dependency cycles are
// skipped: each node appears exactly once, after as many of its dependencies
// as the cycle allows.
func NewInstallPlan(g *Graph) *InstallPlan {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]uint8, g.Len())
	order := make([]NodeID, 0, g.Len())

	var visit func(id NodeID)
	visit = func(id NodeID) {
		state[id] = visiting
		for _, child := range g.Children(id) {
			if state[child] == unvisited {
				visit(child)
			}
		}
		state[id] = done
		order = append(order, id)
	}

	for _, id := range g.RootOrder() {
		if state[id] == unvisited {
			visit(id)
		}
	}

	// Nodes only reachable through nested scopes of cyclic subtrees are
	// covered by the root walk; anything left is unreachable and dropped.
	return &InstallPlan{Order: order}
}
