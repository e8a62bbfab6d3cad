package plaque

import "fmt"

// globalDebug enables tree sanity checks on every mutation.
var globalDebug bool

// SetDebugMode enables or disables debug checks. When on, tree operations on
// disposed nodes panic and deep or wide trees are reported through Logger.
func SetDebugMode(enabled bool) {
	globalDebug = enabled
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. Only called in debug mode.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("plaque debug: %s on disposed node %q", op, n.Name))
	}
}

// debugMaxTreeDepth is the depth past which debugCheckTreeDepth warns.
const debugMaxTreeDepth = 64

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		Logger().Warn("plaque: tree depth exceeds threshold",
			"depth", depth, "threshold", debugMaxTreeDepth, "node", n.Name)
	}
}

// debugMaxChildCount is the child count past which debugCheckChildCount warns.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		Logger().Warn("plaque: node has many children",
			"node", n.Name, "children", len(n.children), "threshold", debugMaxChildCount)
	}
}

// ComposerStats summarizes composer resources for diagnostics.
type ComposerStats struct {
	ImagePlanes      int
	TextPlanes       int
	MaskEntries      int
	TextEntries      int
	TextHits         int
	TextMisses       int
	LoadedImages     int
	AdaptedMaterials int
}

// String formats the stats on one line.
func (s ComposerStats) String() string {
	return fmt.Sprintf("planes: %d image, %d text | masks: %d | text textures: %d (hits %d, misses %d) | images: %d | adapted materials: %d",
		s.ImagePlanes, s.TextPlanes, s.MaskEntries, s.TextEntries, s.TextHits, s.TextMisses, s.LoadedImages, s.AdaptedMaterials)
}
