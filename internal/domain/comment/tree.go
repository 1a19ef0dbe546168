package comment

// Node is a comment with its direct replies.
type Node struct {
	Comment *Comment
	Replies []*Node
}

// BuildTree assembles a flat comment list into root nodes with nested replies.
//
// Roots keep their input order and replies keep encounter order under their
// parent. A reply whose parent is absent from the input, or whose parent is
// itself a reply, is left out: the tree never has more than two levels.
func BuildTree(comments []*Comment) []*Node {
	roots, _ := BuildTreeWithStats(comments)
	return roots
}

// BuildTreeWithStats is BuildTree that also reports how many comments were
// left out of the tree.
func BuildTreeWithStats(comments []*Comment) ([]*Node, int) {
	lookup := make(map[ID]*Node, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		lookup[c.ID] = &Node{Comment: c, Replies: []*Node{}}
	}

	roots := make([]*Node, 0, len(comments))
	dropped := 0
	for _, c := range comments {
		if c == nil {
			continue
		}
		node := lookup[c.ID]
		if c.IsRoot() {
			roots = append(roots, node)
			continue
		}
		parent, ok := lookup[*c.ParentID]
		if !ok || !parent.Comment.IsRoot() {
			dropped++
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}
	return roots, dropped
}

// Count returns the number of comments reachable in the tree.
func Count(roots []*Node) int {
	n := 0
	for _, r := range roots {
		n += 1 + len(r.Replies)
	}
	return n
}
