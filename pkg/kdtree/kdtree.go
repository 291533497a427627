// Package kdtree provides a balanced 3D kd-tree with bounded k-nearest
// neighbour queries. Trees are immutable once built.
package kdtree

import (
	"cmp"
	"container/heap"
	"math/bits"
	"slices"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

type node[T any] struct {
	point core.Vec3
	axis  int
	value T
}

// Tree is a left-balanced kd-tree stored in an implicit array layout:
// the children of node i are 2i+1 and 2i+2.
type Tree[T any] struct {
	nodes []node[T]
}

// Neighbor is one result of a nearest-neighbour query
type Neighbor[T any] struct {
	Value           T
	DistanceSquared float64
}

// New builds a tree over values located by position
func New[T any](values []T, position func(T) core.Vec3) *Tree[T] {
	items := make([]node[T], len(values))
	for i, v := range values {
		items[i] = node[T]{point: position(v), value: v}
	}
	t := &Tree[T]{nodes: make([]node[T], len(values))}
	t.build(items, 0, 0)
	return t
}

// Len returns the number of points in the tree
func (t *Tree[T]) Len() int {
	return len(t.nodes)
}

// build places the median of items (by the depth's axis) at index and
// recurses so that the left subtree is always a complete tree
func (t *Tree[T]) build(items []node[T], index, depth int) {
	num := len(items)
	if num == 0 {
		return
	}
	if num == 1 {
		items[0].axis = -1
		t.nodes[index] = items[0]
		return
	}

	axis := depth % 3
	mid := leftSubtreeSize(num)
	nthElement(items, mid, func(a, b node[T]) bool {
		return a.point.Axis(axis) < b.point.Axis(axis)
	})

	n := items[mid]
	n.axis = axis
	t.nodes[index] = n
	t.build(items[:mid], 2*index+1, depth+1)
	t.build(items[mid+1:], 2*index+2, depth+1)
}

// leftSubtreeSize returns how many of num nodes go to the left of the root
// in a left-balanced complete tree
func leftSubtreeSize(num int) int {
	h := bits.Len(uint(num)) - 1
	return min((1<<h)-1, num-(1<<(h-1)))
}

// FindNearest returns up to k values closest to p within radius, sorted by
// increasing distance. The result reuses the storage of out.
func (t *Tree[T]) FindNearest(p core.Vec3, k int, radius float64, out []Neighbor[T]) []Neighbor[T] {
	out = out[:0]
	if k <= 0 || len(t.nodes) == 0 {
		return out
	}

	q := query[T]{tree: t, p: p, k: k, r2: radius * radius, heap: neighborHeap[T](out)}
	q.visit(0)

	out = q.heap
	slices.SortFunc(out, func(a, b Neighbor[T]) int {
		return cmp.Compare(a.DistanceSquared, b.DistanceSquared)
	})
	return out
}

type query[T any] struct {
	tree *Tree[T]
	p    core.Vec3
	k    int
	r2   float64 // current pruning radius squared
	heap neighborHeap[T]
}

func (q *query[T]) visit(index int) {
	if index >= len(q.tree.nodes) {
		return
	}
	n := &q.tree.nodes[index]
	diff := q.p.Subtract(n.point)

	if left := 2*index + 1; left < len(q.tree.nodes) {
		d := diff.Axis(n.axis)
		near, far := left, left+1
		if d >= 0 {
			near, far = far, near
		}
		q.visit(near)
		if d*d < q.r2 {
			q.visit(far)
		}
	}

	if d2 := diff.LengthSquared(); d2 < q.r2 {
		heap.Push(&q.heap, Neighbor[T]{Value: n.value, DistanceSquared: d2})
		if q.heap.Len() > q.k {
			heap.Pop(&q.heap)
		}
		if q.heap.Len() == q.k {
			q.r2 = q.heap[0].DistanceSquared
		}
	}
}

// neighborHeap is a max-heap on distance
type neighborHeap[T any] []Neighbor[T]

func (h neighborHeap[T]) Len() int           { return len(h) }
func (h neighborHeap[T]) Less(i, j int) bool { return h[i].DistanceSquared > h[j].DistanceSquared }
func (h neighborHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *neighborHeap[T]) Push(x any) {
	*h = append(*h, x.(Neighbor[T]))
}

func (h *neighborHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
