package parser

// parentCandidate is a property that lists a child in its childIds.
type parentCandidate struct {
	parentID string
	// listLen is the length of the parent's child list; shorter lists are more specific.
	listLen int
	// order is the parent's declaration index, used to break ties.
	order int
}

// hierarchy resolves parent/child links between the properties of one match.
type hierarchy struct {
	props []*Property
	byID  map[string]*Property
}

func newHierarchy(props []*Property) *hierarchy {
	h := &hierarchy{props: props, byID: make(map[string]*Property, len(props))}
	for _, p := range props {
		h.byID[p.ID] = p
	}
	return h
}

// resolveHierarchy runs the post-pass over all properties of a match:
// cycle breaking, orphan linking, plugin fallback and display-name expansion.
func resolveHierarchy(props []*Property) {
	h := newHierarchy(props)
	h.breakCycles()
	h.linkOrphans()
	h.linkPluginRows()
	h.expandNames()
}

// isAncestor reports whether id appears on the parent chain starting at from.
func (h *hierarchy) isAncestor(id, from string) bool {
	seen := make(map[string]bool)
	for cur := from; cur != ""; {
		if cur == id {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		p, ok := h.byID[cur]
		if !ok {
			return false
		}
		cur = p.ParentID
	}
	return false
}

// breakCycles clears declared parent links that would close a loop,
// keeping the parent/child graph a forest.
func (h *hierarchy) breakCycles() {
	for _, p := range h.props {
		if p.ParentID == "" {
			continue
		}
		if p.ParentID == p.ID || h.isAncestor(p.ID, p.ParentID) {
			p.ParentID = ""
		}
	}
}

// linkOrphans gives each parentless child the most specific parent listing it.
// Candidates are collected in declaration order; the smallest child list wins and
// ties go to the first declared parent.
func (h *hierarchy) linkOrphans() {
	candidates := make(map[string][]parentCandidate)
	var children []string

	for order, parent := range h.props {
		for _, childID := range parent.ChildIDs {
			child, ok := h.byID[childID]
			if !ok || child.ParentID != "" || childID == parent.ID {
				continue
			}
			if _, seen := candidates[childID]; !seen {
				children = append(children, childID)
			}
			candidates[childID] = append(candidates[childID], parentCandidate{
				parentID: parent.ID,
				listLen:  len(parent.ChildIDs),
				order:    order,
			})
		}
	}

	for _, childID := range children {
		best := candidates[childID][0]
		for _, c := range candidates[childID][1:] {
			if c.listLen < best.listLen {
				best = c
			}
		}
		// Links made earlier in this loop may have turned the child into an ancestor.
		if h.isAncestor(childID, best.parentID) {
			continue
		}
		h.byID[childID].ParentID = best.parentID
	}
}

// linkPluginRows attaches hidden parentless rows to the only visible parentless
// row owned by the same plugin.
func (h *hierarchy) linkPluginRows() {
	visibleRoots := make(map[string][]*Property)
	for _, p := range h.props {
		if p.Visible && p.ParentID == "" && p.PluginID != "" {
			visibleRoots[p.PluginID] = append(visibleRoots[p.PluginID], p)
		}
	}

	for _, p := range h.props {
		if p.Visible || p.ParentID != "" || p.PluginID == "" {
			continue
		}
		roots := visibleRoots[p.PluginID]
		if len(roots) != 1 || h.isAncestor(p.ID, roots[0].ID) {
			continue
		}
		p.ParentID = roots[0].ID
	}
}

// expandNames rewrites one-word child names that only make sense next to their parent.
func (h *hierarchy) expandNames() {
	original := make(map[string]string, len(h.props))
	siblings := make(map[string][]string)
	for _, p := range h.props {
		original[p.ID] = p.DisplayName
		if p.ParentID != "" {
			siblings[p.ParentID] = append(siblings[p.ParentID], p.ID)
		}
	}

	for _, p := range h.props {
		if p.ParentID == "" || !isSingleWord(original[p.ID]) {
			continue
		}
		parentName, ok := original[p.ParentID]
		if !ok || !containsWord(parentName, original[p.ID]) {
			continue
		}
		var others []string
		for _, id := range siblings[p.ParentID] {
			if id != p.ID {
				others = append(others, original[id])
			}
		}
		p.DisplayName = expandName(original[p.ID], parentName, others)
	}
}
