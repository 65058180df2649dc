// Package structure classifies paragraph features into semantic roles and
// assembles them into a document tree.
package structure

import (
	"fmt"

	"github.com/waterdrop26651/FormulaAI/internal/feature"
)

// Role is the semantic classification of a paragraph.
type Role string

const (
	RoleRoot      Role = "root" // synthetic, depth 0 only
	RoleTitle     Role = "title"
	RoleBody      Role = "body"
	RoleListItem  Role = "list_item"
	RoleQuote     Role = "quote"
	RoleCaption   Role = "caption"
	RoleReference Role = "reference"
	RoleUnknown   Role = "unknown"
)

// MaxHeadingLevel caps document-derived heading ranks.
const MaxHeadingLevel = 6

// HeadingRole returns the role for heading level n (1-based, capped at
// MaxHeadingLevel).
func HeadingRole(n int) Role {
	if n < 1 {
		n = 1
	}
	if n > MaxHeadingLevel {
		n = MaxHeadingLevel
	}
	return Role(fmt.Sprintf("heading%d", n))
}

// HeadingLevel returns the level of a heading role, or 0 if r is not a
// heading.
func HeadingLevel(r Role) int {
	var n int
	if _, err := fmt.Sscanf(string(r), "heading%d", &n); err != nil {
		return 0
	}
	if n < 1 || n > MaxHeadingLevel {
		return 0
	}
	return n
}

// nestLevel places a role in the document nesting hierarchy: root is 0,
// title 1, heading N is N+1, everything else is a leaf below the deepest
// heading.
func nestLevel(r Role) int {
	switch {
	case r == RoleRoot:
		return 0
	case r == RoleTitle:
		return 1
	case HeadingLevel(r) > 0:
		return HeadingLevel(r) + 1
	default:
		return MaxHeadingLevel + 2
	}
}

// Node is one classified paragraph in the structure tree. The root node is
// synthetic and carries no feature.
type Node struct {
	Role     Role
	Depth    int
	Feature  *feature.ParagraphFeature
	Parent   *Node
	Children []*Node

	// ListLevel is the indentation-derived nesting of a list item,
	// 0 for non-list nodes.
	ListLevel int
}

// Tree is the classified document: a synthetic root whose descendants map
// 1:1 onto the input paragraphs.
type Tree struct {
	Root *Node

	// nodes holds all non-root nodes in document order.
	nodes []*Node
}

// AllNodes returns every paragraph node in document order. The slice is
// shared; callers must not mutate it.
func (t *Tree) AllNodes() []*Node {
	return t.nodes
}

// Len returns the paragraph count of the tree.
func (t *Tree) Len() int { return len(t.nodes) }

// Roles returns the distinct roles present in the tree, in first-seen
// document order.
func (t *Tree) Roles() []Role {
	seen := make(map[Role]bool)
	var roles []Role
	for _, n := range t.nodes {
		if !seen[n.Role] {
			seen[n.Role] = true
			roles = append(roles, n.Role)
		}
	}
	return roles
}
