package model

const MaxCategoryNameLen = 120

type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentCategory"`
}

// CategoryNode is a category with its materialized children.
type CategoryNode struct {
	Category
	Children []CategoryNode `json:"children"`
}

// BuildCategoryTree nests a flat category list. A category whose parent is
// missing from the list is treated as a root. Sibling order follows the input.
func BuildCategoryTree(flat []Category) []CategoryNode {
	known := make(map[string]bool, len(flat))
	for _, c := range flat {
		known[c.ID] = true
	}
	byParent := make(map[string][]Category)
	for _, c := range flat {
		parent := ""
		if c.ParentID != nil && known[*c.ParentID] && *c.ParentID != c.ID {
			parent = *c.ParentID
		}
		byParent[parent] = append(byParent[parent], c)
	}

	seen := make(map[string]bool, len(flat))
	var build func(parent string) []CategoryNode
	build = func(parent string) []CategoryNode {
		nodes := make([]CategoryNode, 0, len(byParent[parent]))
		for _, c := range byParent[parent] {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			nodes = append(nodes, CategoryNode{Category: c, Children: build(c.ID)})
		}
		return nodes
	}
	return build("")
}

// CategorySubtree returns rootID followed by the ids of all its descendants.
// It returns nil when rootID is not in flat.
func CategorySubtree(flat []Category, rootID string) []string {
	children := make(map[string][]string)
	found := false
	for _, c := range flat {
		if c.ID == rootID {
			found = true
		}
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}
	if !found {
		return nil
	}
	out := []string{rootID}
	seen := map[string]bool{rootID: true}
	for i := 0; i < len(out); i++ {
		for _, id := range children[out[i]] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// CreatesCycle reports whether making parentID the parent of id would put id
// on its own ancestor chain.
func CreatesCycle(flat []Category, id, parentID string) bool {
	parents := make(map[string]*string, len(flat))
	for _, c := range flat {
		parents[c.ID] = c.ParentID
	}
	cur := parentID
	for steps := 0; steps <= len(flat); steps++ {
		if cur == id {
			return true
		}
		p, ok := parents[cur]
		if !ok || p == nil {
			return false
		}
		cur = *p
	}
	return true
}
