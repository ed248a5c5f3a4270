package dom

// Filter decides whether a node is kept in the rasterized output. Returning
// false drops the node together with its subtree.
type Filter func(*Node) bool

// interactiveTags are controls that carry no meaning on a printed page.
var interactiveTags = []string{"button", "input", "select"}

// ExclusionFilter returns a [Filter] rejecting elements whose class list
// intersects excludeClassNames, and every button, input or select element.
func ExclusionFilter(excludeClassNames []string) Filter {
	excluded := make(map[string]struct{}, len(excludeClassNames))
	for _, c := range excludeClassNames {
		excluded[c] = struct{}{}
	}
	return func(n *Node) bool {
		if n.Kind != ElementNode {
			return true
		}
		for _, c := range n.Classes() {
			if _, ok := excluded[c]; ok {
				return false
			}
		}
		return !n.IsElement(interactiveTags...)
	}
}
