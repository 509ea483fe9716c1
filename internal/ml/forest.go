package ml

import "fmt"

// Tree is a single decision tree in flat array form: node i branches left
// when the sample's feature value is <= Threshold[i]. Leaves are marked by a
// child index of -1 and carry per-class sample counts in Value.
type Tree struct {
	ChildrenLeft  []int        `json:"children_left"`
	ChildrenRight []int        `json:"children_right"`
	Feature       []int        `json:"feature"`
	Threshold     []float64    `json:"threshold"`
	Value         [][2]float64 `json:"value"`
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("inconsistent node arrays")
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] >= n || t.ChildrenRight[i] >= n {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if t.ChildrenLeft[i] >= 0 && t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, t.Feature[i])
		}
	}
	return nil
}

// classProbability walks the tree for one sample and returns the positive
// class fraction at the reached leaf.
func (t *Tree) classProbability(sample []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] >= 0 {
		if sample[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}

	neg, pos := t.Value[node][0], t.Value[node][1]
	total := neg + pos
	if total == 0 {
		return 0
	}
	return pos / total
}

// forestProbability averages the positive class fraction over all trees,
// mirroring how the ensemble's predict_proba works.
func forestProbability(trees []Tree, sample []float64) float64 {
	if len(trees) == 0 {
		return 0
	}
	sum := 0.0
	for i := range trees {
		sum += trees[i].classProbability(sample)
	}
	return sum / float64(len(trees))
}

// splitCountImportances approximates feature importance by counting how often
// each feature is used as a split, normalized to sum to 1.
func splitCountImportances(trees []Tree, nFeatures int) []float64 {
	counts := make([]float64, nFeatures)
	total := 0.0
	for i := range trees {
		t := &trees[i]
		for node := range t.Feature {
			if t.ChildrenLeft[node] >= 0 {
				counts[t.Feature[node]]++
				total++
			}
		}
	}
	if total > 0 {
		for i := range counts {
			counts[i] /= total
		}
	}
	return counts
}
