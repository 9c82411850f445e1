package analyzer

// Expand returns seeds plus every name reachable from them in at most depth
// breadth-first rounds over graph. A depth of zero or less returns the seeds.
// Expansion stops after depth rounds even if the frontier is not exhausted.
func Expand(g CallGraph, seeds []string, depth int) NameSet {
	visited := NewNameSet(seeds...)
	frontier := NewNameSet(seeds...)

	for round := 0; round < depth && len(frontier) > 0; round++ {
		next := NameSet{}
		for name := range frontier {
			for callee := range g[name] {
				if visited.Has(callee) {
					continue
				}
				visited.Add(callee)
				next.Add(callee)
			}
		}
		frontier = next
	}

	return visited
}

// Expand runs Expand over the file's call graph.
func (a *Analyzer) Expand(seeds []string, depth int) NameSet {
	return Expand(a.graph, seeds, depth)
}

// ExtractWithDependencies extracts roots together with the functions they
// call, directly or indirectly, up to depth levels. Callees that are not
// defined in the file are dropped.
func (a *Analyzer) ExtractWithDependencies(roots []string, depth int) *Functions {
	return a.Extract(a.Expand(roots, depth).Sorted())
}
