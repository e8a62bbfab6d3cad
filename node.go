package plaque

import "github.com/go-gl/mathgl/mgl64"

// --- ID counter ---

// nodeIDCounter is a plain counter (no atomic: the scene is owned by the
// update goroutine).
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// --- Node ---

// Node is the scene graph element. A single flat struct serves containers,
// model meshes and overlay planes.
type Node struct {
	// Identity
	ID   uint32
	Name string
	Type NodeType

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local). Rotation is XYZ Euler in radians.
	Position Vec3
	Rotation Vec3
	Scale    Vec3

	// Computed
	worldMatrix    mgl64.Mat4
	transformDirty bool

	// Rendering
	Visible       bool
	RenderOrder   int
	CastShadow    bool
	ReceiveShadow bool

	// Mesh is set for NodeTypeMesh and NodeTypeOverlay.
	Mesh *Mesh

	// Overlay fields (NodeTypeOverlay)
	OverlayKind OverlayKind
	OverlayID   string

	// Extras carries loader metadata, such as glTF node extras.
	Extras map[string]any

	// Per-node pointer callbacks, used by the color picker.
	OnPointerOver func(*Node)
	OnPointerOut  func(*Node)

	modelRoot bool
	disposed  bool
}

func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.Scale = Vec3{1, 1, 1}
	n.Visible = true
	n.transformDirty = true
	n.worldMatrix = mgl64.Ident4()
}

// NewContainer creates a group node with no visual output.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeContainer}
	nodeDefaults(n)
	return n
}

// NewModelRoot creates a container marking the top of an imported model.
// Unnamed mesh keys are paths relative to it.
func NewModelRoot(name string) *Node {
	n := NewContainer(name)
	n.modelRoot = true
	return n
}

// IsModelRoot reports whether n was created by NewModelRoot.
func (n *Node) IsModelRoot() bool {
	return n.modelRoot
}

// NewMeshNode creates a model mesh node.
func NewMeshNode(name string, geom *Geometry, mat *Material) *Node {
	n := &Node{Name: name, Type: NodeTypeMesh, Mesh: &Mesh{Geometry: geom, Material: mat}}
	nodeDefaults(n)
	return n
}

// NewOverlayNode creates an overlay plane for the overlay with the given ID.
func NewOverlayNode(kind OverlayKind, overlayID string, geom *Geometry, mat *Material) *Node {
	n := &Node{
		Name:        overlayID,
		Type:        NodeTypeOverlay,
		Mesh:        &Mesh{Geometry: geom, Material: mat},
		OverlayKind: kind,
		OverlayID:   overlayID,
	}
	nodeDefaults(n)
	return n
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("plaque: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("plaque: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
	markSubtreeDirty(child)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if globalDebug {
		debugCheckDisposed(n, "RemoveChild (parent)")
		debugCheckDisposed(child, "RemoveChild (child)")
	}
	if child.Parent != n {
		panic("plaque: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	markSubtreeDirty(child)
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, child := range n.children {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	n.children = n.children[:0]
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// IndexOf returns the position of child among n's children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// FindByName returns the first node in the subtree (including n) whose Name
// matches, in depth-first order.
func (n *Node) FindByName(name string) *Node {
	var found *Node
	Walk(n, func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants. Textures are not touched; they
// belong to the caches that created them.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.Parent = nil
	n.Mesh = nil
	n.Extras = nil
	n.OnPointerOver = nil
	n.OnPointerOut = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Traversal ---

// Walk visits n and its descendants depth-first in child order. Returning
// false from fn skips that node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, child := range n.children {
		Walk(child, fn)
	}
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// markSubtreeDirty sets transformDirty on node and all its descendants.
func markSubtreeDirty(node *Node) {
	node.transformDirty = true
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}
