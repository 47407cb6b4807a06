package model

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
)

// randomForest is a bagged ensemble of regression trees. Hyperparameters
// follow the system's established defaults: 100 trees, depth 15, at
// least 10 samples to split and 5 per leaf.
type randomForest struct {
	Trees       []*regressionTree
	Importances []float64
	NumFeatures int
}

const (
	forestTrees           = 100
	forestMaxDepth        = 15
	forestMinSamplesSplit = 10
	forestMinSamplesLeaf  = 5
)

func newRandomForest() *randomForest { return &randomForest{} }

// fit grows the ensemble. Trees are fit on bootstrap resamples drawn
// from per-tree generators seeded as seed+treeIndex, so the ensemble is
// reproducible and independent of worker scheduling; parallelism only
// affects wall-clock time.
func (rf *randomForest) fit(X [][]float64, y []float64, seed int64, workers int) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("random forest: no training rows")
	}
	rf.NumFeatures = len(X[0])
	rf.Trees = make([]*regressionTree, forestTrees)
	perTree := make([][]float64, forestTrees)

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for t := 0; t < forestTrees; t++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(t int) {
			defer wg.Done()
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(seed + int64(t)))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
			imp := make([]float64, rf.NumFeatures)
			rf.Trees[t] = fitTree(X, y, idx, treeParams{
				maxDepth:        forestMaxDepth,
				minSamplesSplit: forestMinSamplesSplit,
				minSamplesLeaf:  forestMinSamplesLeaf,
				importances:     imp,
			})
			perTree[t] = imp
		}(t)
	}
	wg.Wait()

	rf.Importances = make([]float64, rf.NumFeatures)
	for _, imp := range perTree {
		for f, v := range imp {
			rf.Importances[f] += v
		}
	}
	normalize(rf.Importances)
	return nil
}

func (rf *randomForest) predict(x []float64) float64 {
	var sum float64
	for _, t := range rf.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(rf.Trees))
}

// memberPredict returns every tree's individual prediction; the spread
// across members is the ensemble-disagreement uncertainty proxy.
func (rf *randomForest) memberPredict(x []float64) []float64 {
	out := make([]float64, len(rf.Trees))
	for i, t := range rf.Trees {
		out[i] = t.predict(x)
	}
	return out
}

func (rf *randomForest) featureImportances() []float64 {
	out := make([]float64, len(rf.Importances))
	copy(out, rf.Importances)
	return out
}

func normalize(v []float64) {
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
