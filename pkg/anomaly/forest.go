package anomaly

import (
	"math"
	"math/rand"
)

// isoTree is one isolation tree: a binary tree of random axis-aligned splits
type isoTree struct {
	feature int
	split   float64
	left    *isoTree
	right   *isoTree
	size    int // leaf only: number of training points that landed here
}

// Forest is a trained isolation ensemble. A forest is immutable once
// built, which is what makes lock-free scoring safe.
type Forest struct {
	trees      []*isoTree
	sampleSize int
}

// NewForest trains an isolation forest on the given vectors. Each tree is
// grown on a random subsample with splits drawn uniformly between the
// observed min and max of a random feature.
func NewForest(vectors [][]float64, trees, sampleSize int, rng *rand.Rand) *Forest {
	if sampleSize > len(vectors) {
		sampleSize = len(vectors)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))
	if maxDepth < 1 {
		maxDepth = 1
	}

	f := &Forest{
		trees:      make([]*isoTree, trees),
		sampleSize: sampleSize,
	}
	for i := range f.trees {
		sample := make([][]float64, sampleSize)
		for j := range sample {
			sample[j] = vectors[rng.Intn(len(vectors))]
		}
		f.trees[i] = growTree(sample, 0, maxDepth, rng)
	}
	return f
}

func growTree(points [][]float64, depth, maxDepth int, rng *rand.Rand) *isoTree {
	if len(points) <= 1 || depth >= maxDepth {
		return &isoTree{size: len(points)}
	}

	// Pick a feature with spread; bail out to a leaf if every feature is constant
	dims := len(points[0])
	feature, lo, hi := -1, 0.0, 0.0
	for _, fi := range rng.Perm(dims) {
		mn, mx := points[0][fi], points[0][fi]
		for _, p := range points[1:] {
			if p[fi] < mn {
				mn = p[fi]
			}
			if p[fi] > mx {
				mx = p[fi]
			}
		}
		if mx > mn {
			feature, lo, hi = fi, mn, mx
			break
		}
	}
	if feature < 0 {
		return &isoTree{size: len(points)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, p := range points {
		if p[feature] < split {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}

	return &isoTree{
		feature: feature,
		split:   split,
		left:    growTree(left, depth+1, maxDepth, rng),
		right:   growTree(right, depth+1, maxDepth, rng),
	}
}

// pathLength returns the isolation depth of v in the tree, with the
// standard average-path adjustment for unsplit leaf populations
func (t *isoTree) pathLength(v []float64, depth float64) float64 {
	if t.left == nil && t.right == nil {
		return depth + avgPathLength(t.size)
	}
	if v[t.feature] < t.split {
		return t.left.pathLength(v, depth+1)
	}
	return t.right.pathLength(v, depth+1)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search among n points
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}

// Score returns the anomaly score of v in (0, 1). Values near 1 isolate
// quickly and are outliers; values near 0.5 and below are typical.
func (f *Forest) Score(v []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.trees {
		sum += t.pathLength(v, 0)
	}
	mean := sum / float64(len(f.trees))
	c := avgPathLength(f.sampleSize)
	if c == 0 {
		return 0
	}
	return math.Pow(2, -mean/c)
}
