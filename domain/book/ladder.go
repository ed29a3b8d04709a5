package book

// ladder is one side of the book: a red-black tree of price levels with a
// cached pointer to the best rung. Bids construct it descending so that
// best() is the highest price; asks ascending so best() is the lowest.
//
// Invariants: every node is red or black, the root is black, a red node
// has no red child, and every root-to-nil path carries the same number of
// black nodes. nil children count as black.

type nodeColor bool

const (
	red   nodeColor = true
	black nodeColor = false
)

type node struct {
	px     int64
	level  *Level
	color  nodeColor
	left   *node
	right  *node
	parent *node
}

type ladder struct {
	root       *node
	size       int
	minNode    *node
	maxNode    *node
	descending bool
}

func newLadder(descending bool) *ladder {
	return &ladder{descending: descending}
}

func (t *ladder) len() int { return t.size }

func (t *ladder) empty() bool { return t.size == 0 }

// best returns the level first in priority order: the cached max for a
// descending (bid) ladder, the cached min otherwise.
func (t *ladder) best() *Level {
	n := t.minNode
	if t.descending {
		n = t.maxNode
	}
	if n == nil {
		return nil
	}
	return n.level
}

// bestPx returns the best price; ok is false when the side is empty.
func (t *ladder) bestPx() (int64, bool) {
	lvl := t.best()
	if lvl == nil {
		return 0, false
	}
	return lvl.px, true
}

func (t *ladder) get(px int64) *Level {
	n := t.search(px)
	if n == nil {
		return nil
	}
	return n.level
}

// upsert returns the level at px, creating it if absent.
func (t *ladder) upsert(px int64) *Level {
	if t.root == nil {
		lvl := newLevel(px)
		n := &node{px: px, level: lvl, color: black}
		t.root = n
		t.minNode = n
		t.maxNode = n
		t.size = 1
		return lvl
	}

	var parent *node
	cur := t.root
	for cur != nil {
		parent = cur
		switch {
		case px < cur.px:
			cur = cur.left
		case px > cur.px:
			cur = cur.right
		default:
			return cur.level
		}
	}

	lvl := newLevel(px)
	n := &node{px: px, level: lvl, color: red, parent: parent}
	if px < parent.px {
		parent.left = n
	} else {
		parent.right = n
	}
	t.size++

	if px < t.minNode.px {
		t.minNode = n
	}
	if px > t.maxNode.px {
		t.maxNode = n
	}

	t.insertFixup(n)
	return lvl
}

// remove deletes the level at px if present.
func (t *ladder) remove(px int64) {
	n := t.search(px)
	if n == nil {
		return
	}
	t.size--

	if n == t.minNode {
		t.minNode = t.successor(n)
	}
	if n == t.maxNode {
		t.maxNode = t.predecessor(n)
	}

	t.deleteNode(n)
}

// walk visits levels best-first until fn returns false.
func (t *ladder) walk(fn func(*Level) bool) {
	if t.descending {
		t.reverseInOrder(t.root, fn)
	} else {
		t.inOrder(t.root, fn)
	}
}

func (t *ladder) search(px int64) *node {
	cur := t.root
	for cur != nil {
		switch {
		case px < cur.px:
			cur = cur.left
		case px > cur.px:
			cur = cur.right
		default:
			return cur
		}
	}
	return nil
}

func (t *ladder) inOrder(n *node, fn func(*Level) bool) bool {
	if n == nil {
		return true
	}
	if !t.inOrder(n.left, fn) {
		return false
	}
	if !fn(n.level) {
		return false
	}
	return t.inOrder(n.right, fn)
}

func (t *ladder) reverseInOrder(n *node, fn func(*Level) bool) bool {
	if n == nil {
		return true
	}
	if !t.reverseInOrder(n.right, fn) {
		return false
	}
	if !fn(n.level) {
		return false
	}
	return t.reverseInOrder(n.left, fn)
}

func (t *ladder) successor(n *node) *node {
	if n.right != nil {
		cur := n.right
		for cur.left != nil {
			cur = cur.left
		}
		return cur
	}
	parent := n.parent
	for parent != nil && n == parent.right {
		n = parent
		parent = parent.parent
	}
	return parent
}

func (t *ladder) predecessor(n *node) *node {
	if n.left != nil {
		cur := n.left
		for cur.right != nil {
			cur = cur.right
		}
		return cur
	}
	parent := n.parent
	for parent != nil && n == parent.left {
		n = parent
		parent = parent.parent
	}
	return parent
}

func (t *ladder) rotateLeft(x *node) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *ladder) rotateRight(x *node) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.right {
		x.parent.right = y
	} else {
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

func (t *ladder) insertFixup(z *node) {
	for z.parent != nil && z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y != nil && y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.right {
					z = z.parent
					t.rotateLeft(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rotateRight(z.parent.parent)
			}
		} else {
			y := z.parent.parent.left
			if y != nil && y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
			} else {
				if z == z.parent.left {
					z = z.parent
					t.rotateRight(z)
				}
				z.parent.color = black
				z.parent.parent.color = red
				t.rotateLeft(z.parent.parent)
			}
		}
	}
	t.root.color = black
}

func (t *ladder) transplant(u, v *node) {
	if u.parent == nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	if v != nil {
		v.parent = u.parent
	}
}

func (t *ladder) deleteNode(z *node) {
	var x, xParent *node
	y := z
	yColor := y.color

	if z.left == nil {
		x = z.right
		xParent = z.parent
		t.transplant(z, z.right)
	} else if z.right == nil {
		x = z.left
		xParent = z.parent
		t.transplant(z, z.left)
	} else {
		y = z.right
		for y.left != nil {
			y = y.left
		}
		yColor = y.color
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yColor == black {
		t.deleteFixup(x, xParent)
	}
}

func (t *ladder) deleteFixup(x, xParent *node) {
	for x != t.root && (x == nil || x.color == black) {
		if x == xParent.left {
			w := xParent.right
			if w != nil && w.color == red {
				w.color = black
				xParent.color = red
				t.rotateLeft(xParent)
				w = xParent.right
			}
			if w == nil || ((w.left == nil || w.left.color == black) && (w.right == nil || w.right.color == black)) {
				if w != nil {
					w.color = red
				}
				x = xParent
				xParent = x.parent
			} else {
				if w.right == nil || w.right.color == black {
					if w.left != nil {
						w.left.color = black
					}
					w.color = red
					t.rotateRight(w)
					w = xParent.right
				}
				w.color = xParent.color
				xParent.color = black
				if w.right != nil {
					w.right.color = black
				}
				t.rotateLeft(xParent)
				x = t.root
			}
		} else {
			w := xParent.left
			if w != nil && w.color == red {
				w.color = black
				xParent.color = red
				t.rotateRight(xParent)
				w = xParent.left
			}
			if w == nil || ((w.right == nil || w.right.color == black) && (w.left == nil || w.left.color == black)) {
				if w != nil {
					w.color = red
				}
				x = xParent
				xParent = x.parent
			} else {
				if w.left == nil || w.left.color == black {
					if w.right != nil {
						w.right.color = black
					}
					w.color = red
					t.rotateLeft(w)
					w = xParent.left
				}
				w.color = xParent.color
				xParent.color = black
				if w.left != nil {
					w.left.color = black
				}
				t.rotateRight(xParent)
				x = t.root
			}
		}
	}
	if x != nil {
		x.color = black
	}
}
