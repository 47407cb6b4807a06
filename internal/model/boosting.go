package model

import "fmt"

// gradientBoosting is a least-squares gradient boosted tree ensemble:
// an initial constant prediction plus 100 shallow trees each fit to the
// residuals of the stages before it. Stages are inherently sequential,
// so this kind does not parallelize its fit.
type gradientBoosting struct {
	Init        float64
	Trees       []*regressionTree
	Importances []float64
	NumFeatures int
}

const (
	boostStages       = 100
	boostMaxDepth     = 5
	boostLearningRate = 0.1
)

func newGradientBoosting() *gradientBoosting { return &gradientBoosting{} }

func (gb *gradientBoosting) fit(X [][]float64, y []float64, seed int64, workers int) error {
	n := len(X)
	if n == 0 {
		return fmt.Errorf("gradient boosting: no training rows")
	}
	gb.NumFeatures = len(X[0])
	gb.Importances = make([]float64, gb.NumFeatures)

	var sum float64
	for _, v := range y {
		sum += v
	}
	gb.Init = sum / float64(n)

	current := make([]float64, n)
	for i := range current {
		current[i] = gb.Init
	}
	residual := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	gb.Trees = make([]*regressionTree, 0, boostStages)
	for stage := 0; stage < boostStages; stage++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		tree := fitTree(X, residual, idx, treeParams{
			maxDepth:        boostMaxDepth,
			minSamplesSplit: 2,
			minSamplesLeaf:  1,
			importances:     gb.Importances,
		})
		gb.Trees = append(gb.Trees, tree)
		for i := range current {
			current[i] += boostLearningRate * tree.predict(X[i])
		}
	}
	normalize(gb.Importances)
	return nil
}

func (gb *gradientBoosting) predict(x []float64) float64 {
	out := gb.Init
	for _, t := range gb.Trees {
		out += boostLearningRate * t.predict(x)
	}
	return out
}

// memberPredict returns each stage tree's raw residual prediction,
// matching the established uncertainty behavior for boosted ensembles.
func (gb *gradientBoosting) memberPredict(x []float64) []float64 {
	out := make([]float64, len(gb.Trees))
	for i, t := range gb.Trees {
		out[i] = t.predict(x)
	}
	return out
}

func (gb *gradientBoosting) featureImportances() []float64 {
	out := make([]float64, len(gb.Importances))
	copy(out, gb.Importances)
	return out
}
