package services

import (
	"math"
	"math/rand"
	"sort"
)

// standardScaler is a zero-mean unit-variance transform fitted on the
// training split only. Constant features transform to zero rather than NaN.
type standardScaler struct {
	means []float64
	stds  []float64
}

func (s *standardScaler) fit(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	nFeatures := len(rows[0])
	s.means = make([]float64, nFeatures)
	s.stds = make([]float64, nFeatures)

	for j := 0; j < nFeatures; j++ {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[j]
		}
		s.means[j] = calculateMean(col)
		s.stds[j] = calculatePopStdDev(col)
		if s.stds[j] == 0 {
			s.stds[j] = 1
		}
	}
}

func (s *standardScaler) transformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.means[j]) / s.stds[j]
	}
	return out
}

func (s *standardScaler) transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.transformRow(row)
	}
	return out
}

// linearModel is ordinary least squares with an intercept, solved through
// the normal equations with a small ridge term for numerical stability.
type linearModel struct {
	coefficients []float64 // last entry is the intercept
}

func (m *linearModel) fit(rows [][]float64, targets []float64) {
	n := len(rows)
	if n == 0 {
		return
	}
	p := len(rows[0]) + 1 // +1 intercept

	// Build X^T X and X^T y with an implicit trailing ones column.
	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	xty := make([]float64, p)

	row := make([]float64, p)
	for i := 0; i < n; i++ {
		copy(row, rows[i])
		row[p-1] = 1
		for a := 0; a < p; a++ {
			for b := 0; b < p; b++ {
				xtx[a][b] += row[a] * row[b]
			}
			xty[a] += row[a] * targets[i]
		}
	}
	for a := 0; a < p; a++ {
		xtx[a][a] += 1e-8
	}

	m.coefficients = solveLinearSystem(xtx, xty)
}

func (m *linearModel) predict(row []float64) float64 {
	if len(m.coefficients) == 0 {
		return 0
	}
	p := len(m.coefficients)
	sum := m.coefficients[p-1]
	for j := 0; j < p-1 && j < len(row); j++ {
		sum += m.coefficients[j] * row[j]
	}
	return sum
}

// solveLinearSystem performs Gaussian elimination with partial pivoting.
// The caller guarantees a non-singular (ridge-regularized) matrix.
func solveLinearSystem(a [][]float64, b []float64) []float64 {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		if a[col][col] == 0 {
			continue
		}
		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		if a[r][r] != 0 {
			x[r] = sum / a[r][r]
		}
	}
	return x
}

// treeNode is one node of a regression tree. Leaves carry the mean target.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

// regressionTree is a depth-limited CART regressor splitting on squared
// error reduction. Impurity decrease is accumulated per feature for the
// importance report.
type regressionTree struct {
	root        *treeNode
	maxDepth    int
	importances []float64
}

func (t *regressionTree) fit(rows [][]float64, targets []float64) {
	if len(rows) == 0 {
		return
	}
	t.importances = make([]float64, len(rows[0]))
	indices := make([]int, len(rows))
	for i := range indices {
		indices[i] = i
	}
	t.root = t.build(rows, targets, indices, 0)
}

func (t *regressionTree) build(rows [][]float64, targets []float64, indices []int, depth int) *treeNode {
	mean, sse := meanAndSSE(targets, indices)
	if depth >= t.maxDepth || len(indices) < 2 || sse == 0 {
		return &treeNode{leaf: true, value: mean}
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	var bestLeft, bestRight []int

	for j := range rows[indices[0]] {
		feature, threshold, gain, left, right := bestSplitOnFeature(rows, targets, indices, j, sse)
		if gain > bestGain {
			bestFeature, bestThreshold, bestGain = feature, threshold, gain
			bestLeft, bestRight = left, right
		}
	}

	if bestFeature < 0 {
		return &treeNode{leaf: true, value: mean}
	}

	t.importances[bestFeature] += bestGain
	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      t.build(rows, targets, bestLeft, depth+1),
		right:     t.build(rows, targets, bestRight, depth+1),
	}
}

func (t *regressionTree) predict(row []float64) float64 {
	node := t.root
	if node == nil {
		return 0
	}
	for !node.leaf {
		if row[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

func meanAndSSE(targets []float64, indices []int) (mean, sse float64) {
	if len(indices) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range indices {
		sum += targets[i]
	}
	mean = sum / float64(len(indices))
	for _, i := range indices {
		diff := targets[i] - mean
		sse += diff * diff
	}
	return mean, sse
}

// bestSplitOnFeature scans all distinct thresholds of one feature using
// prefix sums, returning the split with the largest squared-error reduction.
func bestSplitOnFeature(rows [][]float64, targets []float64, indices []int, feature int, parentSSE float64) (int, float64, float64, []int, []int) {
	n := len(indices)
	ordered := make([]int, n)
	copy(ordered, indices)
	sort.SliceStable(ordered, func(a, b int) bool {
		return rows[ordered[a]][feature] < rows[ordered[b]][feature]
	})

	prefixSum := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i, idx := range ordered {
		prefixSum[i+1] = prefixSum[i] + targets[idx]
		prefixSq[i+1] = prefixSq[i] + targets[idx]*targets[idx]
	}

	bestGain, bestPos := 0.0, -1
	for k := 1; k < n; k++ {
		if rows[ordered[k-1]][feature] == rows[ordered[k]][feature] {
			continue
		}
		leftN, rightN := float64(k), float64(n-k)
		leftSSE := prefixSq[k] - prefixSum[k]*prefixSum[k]/leftN
		rightSum := prefixSum[n] - prefixSum[k]
		rightSSE := (prefixSq[n] - prefixSq[k]) - rightSum*rightSum/rightN
		gain := parentSSE - leftSSE - rightSSE
		if gain > bestGain {
			bestGain, bestPos = gain, k
		}
	}

	if bestPos < 0 {
		return -1, 0, 0, nil, nil
	}
	threshold := (rows[ordered[bestPos-1]][feature] + rows[ordered[bestPos]][feature]) / 2
	left := append([]int(nil), ordered[:bestPos]...)
	right := append([]int(nil), ordered[bestPos:]...)
	return feature, threshold, bestGain, left, right
}

// randomForest bags depth-limited regression trees over bootstrap samples.
// Randomness comes only from the seeded source, so fits are reproducible.
type randomForest struct {
	trees    []*regressionTree
	nTrees   int
	maxDepth int
	seed     int64
}

func (f *randomForest) fit(rows [][]float64, targets []float64) {
	rng := rand.New(rand.NewSource(f.seed))
	n := len(rows)
	f.trees = make([]*regressionTree, 0, f.nTrees)

	for b := 0; b < f.nTrees; b++ {
		sampleRows := make([][]float64, n)
		sampleTargets := make([]float64, n)
		for i := 0; i < n; i++ {
			pick := rng.Intn(n)
			sampleRows[i] = rows[pick]
			sampleTargets[i] = targets[pick]
		}
		tree := &regressionTree{maxDepth: f.maxDepth}
		tree.fit(sampleRows, sampleTargets)
		f.trees = append(f.trees, tree)
	}
}

func (f *randomForest) predict(row []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, tree := range f.trees {
		sum += tree.predict(row)
	}
	return sum / float64(len(f.trees))
}

func (f *randomForest) featureImportances(nFeatures int) []float64 {
	return normalizeImportances(f.trees, nFeatures)
}

// gradientBoosting fits shallow trees to the running residuals, shrunk by
// the learning rate, starting from the target mean.
type gradientBoosting struct {
	trees        []*regressionTree
	baseline     float64
	nRounds      int
	maxDepth     int
	learningRate float64
}

func (g *gradientBoosting) fit(rows [][]float64, targets []float64) {
	n := len(rows)
	if n == 0 {
		return
	}
	g.baseline = calculateMean(targets)
	g.trees = make([]*regressionTree, 0, g.nRounds)

	residuals := make([]float64, n)
	for i, y := range targets {
		residuals[i] = y - g.baseline
	}

	for round := 0; round < g.nRounds; round++ {
		tree := &regressionTree{maxDepth: g.maxDepth}
		tree.fit(rows, residuals)
		g.trees = append(g.trees, tree)
		for i := range residuals {
			residuals[i] -= g.learningRate * tree.predict(rows[i])
		}
	}
}

func (g *gradientBoosting) predict(row []float64) float64 {
	sum := g.baseline
	for _, tree := range g.trees {
		sum += g.learningRate * tree.predict(row)
	}
	return sum
}

func (g *gradientBoosting) featureImportances(nFeatures int) []float64 {
	return normalizeImportances(g.trees, nFeatures)
}

func normalizeImportances(trees []*regressionTree, nFeatures int) []float64 {
	totals := make([]float64, nFeatures)
	var grand float64
	for _, tree := range trees {
		for j, imp := range tree.importances {
			if j < nFeatures {
				totals[j] += imp
				grand += imp
			}
		}
	}
	if grand > 0 {
		for j := range totals {
			totals[j] /= grand
		}
	}
	return totals
}
