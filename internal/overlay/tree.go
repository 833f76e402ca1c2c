package overlay

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/danieljhkim/modsync/internal/loadout"
)

// Node is a directory or file in a Tree. Exactly one of Children and Entry
// is set.
type Node struct {
	Name     string
	Path     loadout.GamePath
	Children map[string]*Node
	Entry    *Entry
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Entry == nil
}

// Leaf is a file node flattened for iteration.
type Leaf struct {
	Path  loadout.GamePath
	Entry Entry
}

// Tree is a flattened loadout materialized as one directory tree per
// location.
type Tree struct {
	roots map[loadout.LocationID]*Node
	order []loadout.ModID
	size  int
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{roots: make(map[loadout.LocationID]*Node)}
}

// ErrPathConflict is returned when a file and a directory claim the same
// path.
var ErrPathConflict = errors.New("file and directory at the same path")

// BuildTree materializes f. It does not modify f. A file whose path is also
// a directory of another file fails with ErrPathConflict naming both mods.
func BuildTree(f *Flattened) (*Tree, error) {
	t := NewTree()
	t.order = append([]loadout.ModID(nil), f.Order...)
	for _, p := range f.Paths() {
		e := f.Files[p]
		if err := t.Insert(p, e); err != nil {
			return nil, fmt.Errorf("%w (from mod %s)", err, e.Mod.Name)
		}
	}
	return t, nil
}

// Flattened converts the tree back to a path map. It is the inverse of
// BuildTree.
func (t *Tree) Flattened() *Flattened {
	out := &Flattened{
		Files: make(map[loadout.GamePath]Entry, t.size),
		Order: append([]loadout.ModID(nil), t.order...),
	}
	for _, leaf := range t.Files() {
		out.Files[leaf.Path] = leaf.Entry
	}
	return out
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{
		roots: make(map[loadout.LocationID]*Node, len(t.roots)),
		order: append([]loadout.ModID(nil), t.order...),
		size:  t.size,
	}
	for loc, root := range t.roots {
		out.roots[loc] = root.clone()
	}
	return out
}

func (n *Node) clone() *Node {
	c := &Node{Name: n.Name, Path: n.Path}
	if !n.IsDir() {
		e := *n.Entry
		c.Entry = &e
		return c
	}
	c.Children = make(map[string]*Node, len(n.Children))
	for name, child := range n.Children {
		c.Children[name] = child.clone()
	}
	return c
}

// Order returns the sort order the tree was built from.
func (t *Tree) Order() []loadout.ModID {
	return append([]loadout.ModID(nil), t.order...)
}

// Len returns the number of files.
func (t *Tree) Len() int {
	return t.size
}

// Get returns the file entry at p.
func (t *Tree) Get(p loadout.GamePath) (Entry, bool) {
	n := t.lookup(p)
	if n == nil || n.IsDir() {
		return Entry{}, false
	}
	return *n.Entry, true
}

// HasDir reports whether p is a directory in the tree.
func (t *Tree) HasDir(p loadout.GamePath) bool {
	n := t.lookup(p)
	return n != nil && n.IsDir()
}

func (t *Tree) lookup(p loadout.GamePath) *Node {
	n := t.roots[p.Location]
	if n == nil {
		return nil
	}
	if p.Path == "" {
		return n
	}
	for _, seg := range p.Segments() {
		if !n.IsDir() {
			return nil
		}
		n = n.Children[seg]
		if n == nil {
			return nil
		}
	}
	return n
}

// Insert places e at p, creating parent directories. An existing file at p
// is replaced.
func (t *Tree) Insert(p loadout.GamePath, e Entry) error {
	root := t.roots[p.Location]
	if root == nil {
		root = &Node{Path: loadout.GamePath{Location: p.Location}, Children: make(map[string]*Node)}
		t.roots[p.Location] = root
	}

	segs := p.Segments()
	n := root
	for i, seg := range segs[:len(segs)-1] {
		child := n.Children[seg]
		if child == nil {
			child = &Node{
				Name:     seg,
				Path:     loadout.GamePath{Location: p.Location, Path: strings.Join(segs[:i+1], "/")},
				Children: make(map[string]*Node),
			}
			n.Children[seg] = child
		}
		if !child.IsDir() {
			return fmt.Errorf("%w: cannot insert %s, %s is a file from mod %s", ErrPathConflict, p, child.Path, child.Entry.Mod.Name)
		}
		n = child
	}

	name := segs[len(segs)-1]
	existing := n.Children[name]
	if existing != nil && existing.IsDir() {
		return fmt.Errorf("%w: cannot insert %s, path is a directory", ErrPathConflict, p)
	}
	if existing == nil {
		t.size++
	}
	entry := e
	n.Children[name] = &Node{Name: name, Path: p, Entry: &entry}
	return nil
}

// Remove deletes the file at p and prunes directories left empty. It
// reports whether a file was removed.
func (t *Tree) Remove(p loadout.GamePath) bool {
	root := t.roots[p.Location]
	if root == nil {
		return false
	}

	segs := p.Segments()
	stack := []*Node{root}
	n := root
	for _, seg := range segs[:len(segs)-1] {
		n = n.Children[seg]
		if n == nil || !n.IsDir() {
			return false
		}
		stack = append(stack, n)
	}

	leaf := n.Children[segs[len(segs)-1]]
	if leaf == nil || leaf.IsDir() {
		return false
	}
	delete(n.Children, segs[len(segs)-1])
	t.size--

	for i := len(stack) - 1; i > 0; i-- {
		if len(stack[i].Children) > 0 {
			break
		}
		delete(stack[i-1].Children, stack[i].Name)
	}
	if len(root.Children) == 0 {
		delete(t.roots, p.Location)
	}
	return true
}

// Files returns every file in sorted path order.
func (t *Tree) Files() []Leaf {
	var out []Leaf
	for _, loc := range t.locations() {
		walk(t.roots[loc], func(n *Node) {
			out = append(out, Leaf{Path: n.Path, Entry: *n.Entry})
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Less(out[j].Path) })
	return out
}

// Dirs returns every non-root directory in sorted path order.
func (t *Tree) Dirs() []loadout.GamePath {
	var out []loadout.GamePath
	for _, loc := range t.locations() {
		var visit func(n *Node)
		visit = func(n *Node) {
			for _, child := range n.Children {
				if child.IsDir() {
					out = append(out, child.Path)
					visit(child)
				}
			}
		}
		visit(t.roots[loc])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (t *Tree) locations() []loadout.LocationID {
	locs := make([]loadout.LocationID, 0, len(t.roots))
	for loc := range t.roots {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	return locs
}

func walk(n *Node, fn func(*Node)) {
	if !n.IsDir() {
		fn(n)
		return
	}
	for _, child := range n.Children {
		walk(child, fn)
	}
}
