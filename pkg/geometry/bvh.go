package geometry

import (
	"sort"

	"github.com/df07/go-resampling-bdpt/pkg/core"
)

// BVHNode represents a node in the Bounding Volume Hierarchy
type BVHNode struct {
	BoundingBox core.AABB
	Left        *BVHNode
	Right       *BVHNode
	Spheres     []*Sphere // Leaf contents (nil for internal nodes)
}

// BVH is a Bounding Volume Hierarchy over spheres. It is immutable once
// built and safe for concurrent queries.
type BVH struct {
	Root *BVHNode
}

// Leaf threshold: if we have this many or fewer spheres, store them in a leaf node
const leafThreshold = 8

// NewBVH builds a BVH over a copy of spheres
func NewBVH(spheres []*Sphere) *BVH {
	if len(spheres) == 0 {
		return &BVH{}
	}
	spheresCopy := make([]*Sphere, len(spheres))
	copy(spheresCopy, spheres)
	return &BVH{Root: buildBVH(spheresCopy)}
}

// buildBVH splits at the median along the longest axis until leaves are small
func buildBVH(spheres []*Sphere) *BVHNode {
	boundingBox := spheres[0].BoundingBox()
	for _, s := range spheres[1:] {
		boundingBox = boundingBox.Union(s.BoundingBox())
	}

	if len(spheres) <= leafThreshold {
		return &BVHNode{BoundingBox: boundingBox, Spheres: spheres}
	}

	axis := boundingBox.LongestAxis()
	sort.SliceStable(spheres, func(i, j int) bool {
		return spheres[i].Center.Axis(axis) < spheres[j].Center.Axis(axis)
	})

	mid := len(spheres) / 2
	return &BVHNode{
		BoundingBox: boundingBox,
		Left:        buildBVH(spheres[:mid]),
		Right:       buildBVH(spheres[mid:]),
	}
}

// Hit finds the nearest sphere along the ray and shrinks ray.TMax to it
func (bvh *BVH) Hit(ray *core.Ray) (HitRecord, bool) {
	if bvh.Root == nil {
		return HitRecord{}, false
	}
	return hitNode(bvh.Root, ray)
}

func hitNode(node *BVHNode, ray *core.Ray) (HitRecord, bool) {
	if !node.BoundingBox.Hit(*ray) {
		return HitRecord{}, false
	}

	if node.Spheres != nil {
		var closest HitRecord
		hitAnything := false
		for _, s := range node.Spheres {
			// Hit shrinks ray.TMax, so later spheres must be closer
			if hit, ok := s.Hit(ray); ok {
				closest = hit
				hitAnything = true
			}
		}
		return closest, hitAnything
	}

	closest, hitAnything := hitNode(node.Left, ray)
	if hit, ok := hitNode(node.Right, ray); ok {
		closest = hit
		hitAnything = true
	}
	return closest, hitAnything
}

// Occludes reports whether any sphere blocks the ray inside its range
func (bvh *BVH) Occludes(ray core.Ray) bool {
	return bvh.Root != nil && occludesNode(bvh.Root, ray)
}

func occludesNode(node *BVHNode, ray core.Ray) bool {
	if !node.BoundingBox.Hit(ray) {
		return false
	}
	if node.Spheres != nil {
		for _, s := range node.Spheres {
			if s.Occludes(ray) {
				return true
			}
		}
		return false
	}
	return occludesNode(node.Left, ray) || occludesNode(node.Right, ray)
}
