package umi

// Group is the list of UMIs attributed to one molecule. Group[0] is the
// canonical UMI.
type Group []string

// GroupDirectional resolves each component into exactly one group. Members
// of a component are ordered by descending count (ties by ascending UMI) so
// that the most abundant member becomes the canonical UMI. A UMI already
// placed in an earlier group is never placed again.
func GroupDirectional(components []Component, counts Counts) []Group {
	observed := make(map[string]bool)
	groups := make([]Group, 0, len(components))
	for _, component := range components {
		if len(component) == 1 {
			observed[component[0]] = true
			groups = append(groups, Group{component[0]})
			continue
		}
		members := append([]string(nil), component...)
		counts.sortByAbundance(members)
		group := make(Group, 0, len(members))
		for _, u := range members {
			if observed[u] {
				continue
			}
			observed[u] = true
			group = append(group, u)
		}
		groups = append(groups, group)
	}
	return groups
}

// Cluster runs directional clustering over counts with the given edit
// distance threshold and returns one group per molecule. The groups
// partition the keys of counts.
func Cluster(counts Counts, threshold int) []Group {
	g := BuildGraph(counts, threshold)
	return GroupDirectional(FindComponents(g, counts), counts)
}
