package umi

// Component is a set of UMIs reachable from a seed UMI by following graph
// edges forward. Members are listed in breadth-first discovery order, seed
// first.
type Component []string

// reachable returns every UMI reachable from seed in g, following edges
// forward only. Nodes already in found are not revisited; every node
// returned is added to found.
func reachable(g Graph, seed string, found map[string]bool) Component {
	component := Component{seed}
	found[seed] = true
	for next := 0; next < len(component); next++ {
		for _, neighbor := range g[component[next]] {
			if found[neighbor] {
				continue
			}
			found[neighbor] = true
			component = append(component, neighbor)
		}
	}
	return component
}

// FindComponents partitions the UMIs of g into components. Seeds are taken
// in descending count order (ties by ascending UMI); each seed not yet
// claimed by an earlier component starts a new component containing
// everything reachable from it. Components are returned in seed order, are
// pairwise disjoint, and together cover every UMI of g.
func FindComponents(g Graph, counts Counts) []Component {
	found := make(map[string]bool, len(g))
	var components []Component
	for _, seed := range counts.byAbundance() {
		if found[seed] {
			continue
		}
		components = append(components, reachable(g, seed, found))
	}
	return components
}
