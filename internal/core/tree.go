package core

// BuildTree projects a flat, ordered slice of categories into a forest of
// root nodes with recursively nested children.
//
// Two passes, O(n) time and space: first an id -> node arena so parents are
// addressable regardless of input order, then a linking pass that appends
// each child to its parent's Children slice. A node whose parent is missing
// from the input is treated as a root rather than dropped.
//
// Sibling order preserves the input order; callers wanting name-sorted
// output sort the input before projecting.
func BuildTree(categories []Category) []*CategoryNode {
	nodes := make(map[string]*CategoryNode, len(categories))
	for i := range categories {
		nodes[categories[i].ID] = &CategoryNode{
			Category: categories[i],
			Children: []*CategoryNode{},
		}
	}

	roots := make([]*CategoryNode, 0, len(categories))
	for i := range categories {
		node := nodes[categories[i].ID]
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok {
			// Orphan: parent filtered out or missing. Surface it as a root
			// so no record silently disappears from the projection.
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return roots
}

// CountNodes returns the total number of nodes in the forest, roots plus
// all descendants.
func CountNodes(forest []*CategoryNode) int {
	n := 0
	for _, root := range forest {
		n += 1 + CountNodes(root.Children)
	}
	return n
}
