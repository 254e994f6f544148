// Package tagforest holds the in-memory hierarchy of tags.
//
// Nodes live in an arena keyed by tag id; parent and child links are ids, so
// the structure has no pointer cycles and lookups are O(1). The forest does no
// locking of its own; callers serialize mutation.
package tagforest

import (
	"fmt"
	"slices"

	"github.com/starford/docket/internal/apperr"
)

// Row is one persisted tag record.
type Row struct {
	ID       int64
	Name     string
	ParentID int64
}

// Node is a tag in the forest. ParentID 0 marks a root; ID 0 marks a node
// that has not been saved yet.
type Node struct {
	ID       int64
	Name     string
	ParentID int64
	Children []int64
}

// Forest is an ordered collection of tag trees.
type Forest struct {
	nodes map[int64]*Node
	roots []int64
}

// New returns an empty forest.
func New() *Forest {
	return &Forest{nodes: make(map[int64]*Node)}
}

// Build assembles a forest from flat rows. Every row must end up reachable
// from a root; otherwise the result is a *apperr.ConsistencyError counting the
// rows left over.
func Build(rows []Row) (*Forest, error) {
	f := New()
	dup := 0
	for _, r := range rows {
		if _, ok := f.nodes[r.ID]; ok || r.ID == 0 {
			dup++
			continue
		}
		f.nodes[r.ID] = &Node{ID: r.ID, Name: r.Name, ParentID: r.ParentID}
	}

	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if seen[r.ID] || r.ID == 0 {
			continue
		}
		seen[r.ID] = true
		if r.ParentID == 0 {
			f.roots = append(f.roots, r.ID)
			continue
		}
		if p, ok := f.nodes[r.ParentID]; ok && r.ParentID != r.ID {
			p.Children = append(p.Children, r.ID)
		}
	}

	reached := 0
	for _, id := range f.roots {
		reached += len(f.Descendants(id))
	}
	if lost := len(f.nodes) - reached + dup; lost > 0 {
		return nil, &apperr.ConsistencyError{Unattached: lost}
	}
	return f, nil
}

// Len returns the number of nodes.
func (f *Forest) Len() int { return len(f.nodes) }

// Roots returns the root ids in order.
func (f *Forest) Roots() []int64 {
	return append([]int64(nil), f.roots...)
}

// Find returns the node with the given id.
func (f *Forest) Find(id int64) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// FindByName returns the first node in pre-order whose name matches.
func (f *Forest) FindByName(name string) (*Node, bool) {
	var found *Node
	f.Walk(func(n *Node, _ int) bool {
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Add links a saved node under its parent, or into the root list when
// ParentID is 0. Adding a node that is already linked there is a no-op.
func (f *Forest) Add(n *Node) error {
	if n.ID == 0 {
		return fmt.Errorf("tagforest: add: %w", apperr.Validation("node has no id"))
	}
	if n.ParentID == 0 {
		if !slices.Contains(f.roots, n.ID) {
			f.roots = append(f.roots, n.ID)
		}
		f.nodes[n.ID] = n
		return nil
	}
	p, ok := f.nodes[n.ParentID]
	if !ok || n.ParentID == n.ID {
		return fmt.Errorf("tagforest: add %d: parent %d: %w", n.ID, n.ParentID, apperr.ErrNotFound)
	}
	if !slices.Contains(p.Children, n.ID) {
		p.Children = append(p.Children, n.ID)
	}
	f.nodes[n.ID] = n
	return nil
}

// Delete unlinks a node from its parent (or the root list) and drops it from
// the arena. Its children are left alone; delete a subtree bottom-up using
// Descendants.
func (f *Forest) Delete(id int64) bool {
	n, ok := f.nodes[id]
	if !ok {
		return false
	}
	if n.ParentID == 0 {
		f.roots = remove(f.roots, id)
	} else if p, ok := f.nodes[n.ParentID]; ok {
		p.Children = remove(p.Children, id)
	}
	delete(f.nodes, id)
	return true
}

// Descendants returns id followed by all of its descendants in pre-order.
func (f *Forest) Descendants(id int64) []int64 {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	out := []int64{id}
	for _, c := range n.Children {
		out = append(out, f.Descendants(c)...)
	}
	return out
}

// Reparent moves a node under newParent. It performs no cycle check; use
// IsDescendant first.
func (f *Forest) Reparent(id, newParent int64) error {
	n, ok := f.nodes[id]
	if !ok {
		return fmt.Errorf("tagforest: reparent %d: %w", id, apperr.ErrNotFound)
	}
	if newParent == id {
		return fmt.Errorf("tagforest: reparent %d: %w", id, apperr.Validation("tag cannot be its own parent"))
	}
	if newParent != 0 {
		if _, ok := f.nodes[newParent]; !ok {
			return fmt.Errorf("tagforest: reparent %d: parent %d: %w", id, newParent, apperr.ErrNotFound)
		}
	}
	f.Delete(id)
	n.ParentID = newParent
	return f.Add(n)
}

// IsDescendant reports whether id equals ancestor or lies below it.
func (f *Forest) IsDescendant(id, ancestor int64) bool {
	for steps := 0; steps <= len(f.nodes); steps++ {
		if id == ancestor {
			return true
		}
		n, ok := f.nodes[id]
		if !ok || n.ParentID == 0 {
			return false
		}
		id = n.ParentID
	}
	return false
}

// Walk visits every node in pre-order with its depth. Returning false stops
// the walk.
func (f *Forest) Walk(fn func(n *Node, depth int) bool) {
	var visit func(id int64, depth int) bool
	visit = func(id int64, depth int) bool {
		n := f.nodes[id]
		if !fn(n, depth) {
			return false
		}
		for _, c := range n.Children {
			if !visit(c, depth+1) {
				return false
			}
		}
		return true
	}
	for _, r := range f.roots {
		if !visit(r, 0) {
			return
		}
	}
}

// Rows flattens the forest back to rows in pre-order.
func (f *Forest) Rows() []Row {
	out := make([]Row, 0, len(f.nodes))
	f.Walk(func(n *Node, _ int) bool {
		out = append(out, Row{ID: n.ID, Name: n.Name, ParentID: n.ParentID})
		return true
	})
	return out
}

// Subtree returns the set of ids in the subtrees rooted at each of ids.
func (f *Forest) Subtree(ids ...int64) map[int64]struct{} {
	out := make(map[int64]struct{})
	for _, id := range ids {
		for _, d := range f.Descendants(id) {
			out[d] = struct{}{}
		}
	}
	return out
}

func remove(s []int64, v int64) []int64 {
	for i, x := range s {
		if x == v {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

// Clone returns a deep copy that shares nothing with f.
func (f *Forest) Clone() *Forest {
	c := &Forest{nodes: make(map[int64]*Node, len(f.nodes)), roots: append([]int64(nil), f.roots...)}
	for id, n := range f.nodes {
		cp := *n
		cp.Children = append([]int64(nil), n.Children...)
		c.nodes[id] = &cp
	}
	return c
}
