package integrator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/df07/go-resampling-bdpt/pkg/core"
	"github.com/df07/go-resampling-bdpt/pkg/kdtree"
	"github.com/df07/go-resampling-bdpt/pkg/material"
	"github.com/df07/go-resampling-bdpt/pkg/scene"
)

// Candidate references one vertex of a light path shared by all cache points
// of an iteration. Connecting to it yields a strategy with S() light vertices.
type Candidate struct {
	Path  *LightPath
	Index int
}

// Vertex returns the referenced light vertex
func (c Candidate) Vertex() *LightVertex {
	return c.Path.At(c.Index)
}

// S returns the number of light vertices used when connecting to the candidate
func (c Candidate) S() int {
	return c.Index + 1
}

// AppendCandidates appends every real vertex of paths to out
func AppendCandidates(out []Candidate, paths []LightPath) []Candidate {
	for p := range paths {
		for i := 0; i < paths[p].Len(); i++ {
			out = append(out, Candidate{Path: &paths[p], Index: i})
		}
	}
	return out
}

// CachePoint is a camera vertex that resamples the shared candidate pool.
// Z is its normalization estimate for the current iteration and Q the
// estimate recycled from neighbouring cache points of the previous one.
type CachePoint struct {
	Point  core.Vec3
	Normal core.Vec3
	Z      float64
	Q      float64

	hasQ         bool
	distribution *core.Distribution[Candidate]
}

// NewCachePoint creates the cache point at camera vertex v, taking Q from
// the mean Z of the vertex's neighbours in prev
func NewCachePoint(v *CameraVertex, prev *CacheSet) CachePoint {
	c := CachePoint{Point: v.Point, Normal: v.Normal}
	if caches := v.Caches(); len(caches) > 0 {
		sum := 0.0
		for _, idx := range caches {
			sum += prev.Point(idx).Z
		}
		c.Q = sum / float64(len(caches))
		c.hasQ = true
	}
	return c
}

// CalcDistribution builds the resampling distribution over candidates into
// dist (reusing its storage) and sets Z. Without recycled neighbours Q
// falls back to Z.
func (c *CachePoint) CalcDistribution(s *scene.Scene, candidates []Candidate, m int, dist *core.Distribution[Candidate]) {
	dist.Rebuild(candidates, func(cand Candidate) float64 {
		y := cand.Vertex()
		return y.Throughput.MultiplyVec(c.CalcFGV(s, y.Point, y.Normal, y.BRDF)).Luminance()
	})
	c.distribution = dist
	c.Z = dist.NormalizationConstant() / float64(m)
	if !c.hasQ {
		c.Q = c.Z
		c.hasQ = true
	}
}

// CalcFGV evaluates brdf at x (normal n) toward the cache point times the
// geometry term clamped to GeometryClamp, or zero when the two points do
// not face each other or are mutually occluded
func (c *CachePoint) CalcFGV(s *scene.Scene, x, n core.Vec3, brdf material.BRDF) core.Vec3 {
	d := c.Point.Subtract(x)
	dist2 := d.LengthSquared()
	wo := core.NewDirection(d, n)
	if !wo.UpperHemisphere() {
		return core.Vec3{}
	}
	wi := core.NewDirection(d.Negate(), c.Normal)
	if !wi.UpperHemisphere() {
		return core.Vec3{}
	}
	if s.Occluded(x, wo.Vec(), math.Sqrt(dist2)) {
		return core.Vec3{}
	}
	g := min(wo.AbsCos()*wi.AbsCos()/dist2, GeometryClamp)
	return brdf.F(wo).Multiply(g)
}

// NormalizationConstant returns the total weight of the resampling distribution
func (c *CachePoint) NormalizationConstant() float64 {
	c.checkDistribution()
	return c.distribution.NormalizationConstant()
}

// Sample resamples one candidate and returns it with its probability.
// It fails when every candidate has zero weight.
func (c *CachePoint) Sample(sampler core.Sampler) (Candidate, float64, bool) {
	c.checkDistribution()
	s, ok := c.distribution.Sample(sampler)
	return s.Value, s.PMF, ok
}

// Release drops the distribution so its storage can be reused
func (c *CachePoint) Release() {
	c.distribution = nil
}

func (c *CachePoint) checkDistribution() {
	if c.distribution == nil {
		panic("cache point used before CalcDistribution")
	}
}

// CacheSet is the arena of one iteration's cache points with a kd-tree over
// their positions. It is immutable and safe for concurrent reads.
type CacheSet struct {
	points []CachePoint
	tree   *kdtree.Tree[int32]
	meanZ  float64
}

// NewCacheSet takes ownership of points and indexes them
func NewCacheSet(points []CachePoint) *CacheSet {
	ids := make([]int32, len(points))
	z := make([]float64, len(points))
	for i := range points {
		points[i].Release()
		ids[i] = int32(i)
		z[i] = points[i].Z
	}
	c := &CacheSet{
		points: points,
		tree:   kdtree.New(ids, func(i int32) core.Vec3 { return points[i].Point }),
	}
	if len(z) > 0 {
		c.meanZ = stat.Mean(z, nil)
	}
	return c
}

// Len returns the number of cache points; a nil set is empty
func (c *CacheSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// Point returns cache point i
func (c *CacheSet) Point(i int32) *CachePoint {
	return &c.points[i]
}

// MeanZ returns the mean normalization estimate of the set, false when empty
func (c *CacheSet) MeanZ() (float64, bool) {
	if c.Len() == 0 {
		return 0, false
	}
	return c.meanZ, true
}

// Nearest returns up to k cache points closest to p within radius, nearest first
func (c *CacheSet) Nearest(p core.Vec3, k int, radius float64, out []kdtree.Neighbor[int32]) []kdtree.Neighbor[int32] {
	return c.tree.FindNearest(p, k, radius, out)
}
