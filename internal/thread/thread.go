// Package thread arranges a post's approved comments for display.
package thread

import "inkwell/internal/models"

// Node is a comment with the replies displayed beneath it.
type Node struct {
	Comment  *models.Comment `json:"comment"`
	Children []*Node         `json:"children"`
}

// Build groups comments, already ordered by parent then creation time, into
// root nodes each carrying its direct replies. Nesting stops at one level:
// replies to replies are not attached anywhere.
func Build(comments []*models.Comment) []*Node {
	byParent := make(map[uint][]*models.Comment)
	var roots []*models.Comment
	for _, c := range comments {
		if !c.IsReply() {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	forest := make([]*Node, 0, len(roots))
	for _, root := range roots {
		node := &Node{Comment: root, Children: []*Node{}}
		for _, child := range byParent[root.ID] {
			node.Children = append(node.Children, &Node{Comment: child, Children: []*Node{}})
		}
		forest = append(forest, node)
	}
	return forest
}

// BuildNested is Build without the depth limit. Replies whose parent is not
// in the input are dropped.
func BuildNested(comments []*models.Comment) []*Node {
	byParent := make(map[uint][]*models.Comment)
	var roots []*models.Comment
	for _, c := range comments {
		if !c.IsReply() {
			roots = append(roots, c)
			continue
		}
		byParent[*c.ParentID] = append(byParent[*c.ParentID], c)
	}

	forest := make([]*Node, 0, len(roots))
	var frontier []*Node
	for _, root := range roots {
		node := &Node{Comment: root, Children: []*Node{}}
		forest = append(forest, node)
		frontier = append(frontier, node)
	}

	seen := make(map[uint]bool, len(comments))
	for len(frontier) > 0 {
		node := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if seen[node.Comment.ID] {
			continue
		}
		seen[node.Comment.ID] = true

		for _, child := range byParent[node.Comment.ID] {
			childNode := &Node{Comment: child, Children: []*Node{}}
			node.Children = append(node.Children, childNode)
			frontier = append(frontier, childNode)
		}
	}
	return forest
}

// Count returns the number of comments in the forest.
func Count(forest []*Node) int {
	n := 0
	stack := append([]*Node(nil), forest...)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		stack = append(stack, node.Children...)
	}
	return n
}
