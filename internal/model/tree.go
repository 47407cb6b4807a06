package model

import (
	"math"
	"sort"
)

// treeNode is one node of a regression tree. Fields are exported so the
// whole tree serializes through gob as part of the model artifact.
type treeNode struct {
	Leaf      bool
	Value     float64 // leaf prediction, mean of the node's targets
	Feature   int
	Threshold float64
	NaNLeft   bool // which child receives rows missing the split feature
	Left      *treeNode
	Right     *treeNode
}

// regressionTree is a CART regression tree grown by greedy variance
// reduction. Rows with a missing (NaN) value for a split feature are
// routed to the child that held the larger share of observed training
// rows at that node.
type regressionTree struct {
	Root *treeNode
}

// treeParams bounds tree growth. A nil importances slice disables
// importance accumulation.
type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	importances     []float64
}

// fitTree grows a tree over the sample indices idx of X.
func fitTree(X [][]float64, y []float64, idx []int, p treeParams) *regressionTree {
	return &regressionTree{Root: growNode(X, y, idx, 0, p)}
}

func growNode(X [][]float64, y []float64, idx []int, depth int, p treeParams) *treeNode {
	sum, sumsq := 0.0, 0.0
	for _, i := range idx {
		sum += y[i]
		sumsq += y[i] * y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sumsq - sum*sum/n

	node := &treeNode{Leaf: true, Value: mean}
	if depth >= p.maxDepth || len(idx) < p.minSamplesSplit || sse <= 1e-12 {
		return node
	}

	feature, threshold, improvement, ok := bestSplit(X, y, idx, p.minSamplesLeaf)
	if !ok {
		return node
	}

	var left, right []int
	var nObsLeft, nObsRight int
	for _, i := range idx {
		v := X[i][feature]
		if math.IsNaN(v) {
			continue
		}
		if v <= threshold {
			left = append(left, i)
			nObsLeft++
		} else {
			right = append(right, i)
			nObsRight++
		}
	}
	nanLeft := nObsLeft >= nObsRight
	for _, i := range idx {
		if !math.IsNaN(X[i][feature]) {
			continue
		}
		if nanLeft {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return node
	}

	if p.importances != nil {
		p.importances[feature] += improvement
	}

	node.Leaf = false
	node.Feature = feature
	node.Threshold = threshold
	node.NaNLeft = nanLeft
	node.Left = growNode(X, y, left, depth+1, p)
	node.Right = growNode(X, y, right, depth+1, p)
	return node
}

// bestSplit scans every feature for the threshold minimizing the summed
// squared error of the two children. Rows with NaN in a feature are
// excluded from that feature's scan. Returns ok=false when no split
// satisfies the minimum leaf size.
func bestSplit(X [][]float64, y []float64, idx []int, minLeaf int) (feature int, threshold, improvement float64, ok bool) {
	if len(idx) == 0 {
		return 0, 0, 0, false
	}
	nFeatures := len(X[idx[0]])

	type obs struct {
		v float64
		y float64
	}
	bestSSE := math.Inf(1)

	for f := 0; f < nFeatures; f++ {
		var os []obs
		for _, i := range idx {
			v := X[i][f]
			if math.IsNaN(v) {
				continue
			}
			os = append(os, obs{v: v, y: y[i]})
		}
		if len(os) < 2*minLeaf {
			continue
		}
		sort.Slice(os, func(a, b int) bool { return os[a].v < os[b].v })

		var totalSum, totalSumsq float64
		for _, o := range os {
			totalSum += o.y
			totalSumsq += o.y * o.y
		}
		nodeSSE := totalSumsq - totalSum*totalSum/float64(len(os))

		var leftSum, leftSumsq float64
		for k := 0; k < len(os)-1; k++ {
			leftSum += os[k].y
			leftSumsq += os[k].y * os[k].y
			if os[k].v == os[k+1].v {
				continue
			}
			nL := k + 1
			nR := len(os) - nL
			if nL < minLeaf || nR < minLeaf {
				continue
			}
			sseL := leftSumsq - leftSum*leftSum/float64(nL)
			rightSum := totalSum - leftSum
			rightSumsq := totalSumsq - leftSumsq
			sseR := rightSumsq - rightSum*rightSum/float64(nR)
			if sseL+sseR < bestSSE {
				bestSSE = sseL + sseR
				feature = f
				threshold = (os[k].v + os[k+1].v) / 2
				improvement = nodeSSE - (sseL + sseR)
				ok = true
			}
		}
	}
	if improvement <= 0 {
		return 0, 0, 0, false
	}
	return feature, threshold, improvement, ok
}

// predict walks the tree for a single feature vector.
func (t *regressionTree) predict(x []float64) float64 {
	node := t.Root
	for !node.Leaf {
		v := x[node.Feature]
		goLeft := false
		if math.IsNaN(v) {
			goLeft = node.NaNLeft
		} else {
			goLeft = v <= node.Threshold
		}
		if goLeft {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}
