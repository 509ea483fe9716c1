package preprocess

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Imputation strategies.
const (
	StrategyMean   = "mean"
	StrategyMedian = "median"
	StrategyDrop   = "drop"
)

// Summary reports what the cleaning pipeline did to an uploaded dataset.
type Summary struct {
	TotalRecords        int            `json:"total_records"`
	ValidRecords        int            `json:"valid_records"`
	InvalidRecords      int            `json:"invalid_records"`
	OutliersRemoved     int            `json:"outliers_removed"`
	MissingValuesFilled int            `json:"missing_values_filled"`
	MissingPerColumn    map[string]int `json:"missing_per_column,omitempty"`
	FeatureCount        int            `json:"features_count"`
}

// valid drops NaN entries from a column, returning the finite values.
func valid(column []float64) []float64 {
	out := make([]float64, 0, len(column))
	for _, v := range column {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func columnFill(column []float64, strategy string) (float64, error) {
	values := valid(column)
	if len(values) == 0 {
		return 0, nil
	}

	switch strategy {
	case StrategyMean:
		return stat.Mean(values, nil), nil
	case StrategyMedian:
		sort.Float64s(values)
		return stat.Quantile(0.5, stat.Empirical, values, nil), nil
	default:
		return 0, fmt.Errorf("unknown imputation strategy %q", strategy)
	}
}

// HandleMissingValues fills NaN cells per column using the given strategy
// (mean or median; drop removes rows containing any NaN). Returns per-column
// fill counts.
func HandleMissingValues(nf *NumericFrame, strategy string) (map[string]int, error) {
	filled := make(map[string]int)

	if strategy == StrategyDrop {
		keep := make([]bool, nf.numRows)
		kept := 0
		for i := 0; i < nf.numRows; i++ {
			keep[i] = true
			for _, name := range nf.Columns {
				if math.IsNaN(nf.Data[name][i]) {
					keep[i] = false
					break
				}
			}
			if keep[i] {
				kept++
			}
		}
		dropRows(nf, keep, kept)
		return filled, nil
	}

	for _, name := range nf.Columns {
		fill, err := columnFill(nf.Data[name], strategy)
		if err != nil {
			return nil, err
		}
		column := nf.Data[name]
		for i, v := range column {
			if math.IsNaN(v) {
				column[i] = fill
				filled[name]++
			}
		}
	}

	return filled, nil
}

// RemoveOutliers drops rows where any column's z-score magnitude is at or
// above nStd standard deviations. Returns the number of rows removed.
func RemoveOutliers(nf *NumericFrame, nStd float64) int {
	if nStd <= 0 {
		nStd = 3
	}

	means := make(map[string]float64, len(nf.Columns))
	stds := make(map[string]float64, len(nf.Columns))
	for _, name := range nf.Columns {
		values := valid(nf.Data[name])
		if len(values) < 2 {
			continue
		}
		means[name] = stat.Mean(values, nil)
		stds[name] = stat.StdDev(values, nil)
	}

	keep := make([]bool, nf.numRows)
	kept := 0
	for i := 0; i < nf.numRows; i++ {
		keep[i] = true
		for _, name := range nf.Columns {
			sigma, ok := stds[name]
			if !ok || sigma == 0 {
				continue
			}
			v := nf.Data[name][i]
			if math.IsNaN(v) {
				continue
			}
			if math.Abs((v-means[name])/sigma) >= nStd {
				keep[i] = false
				break
			}
		}
		if keep[i] {
			kept++
		}
	}

	removed := nf.numRows - kept
	dropRows(nf, keep, kept)
	return removed
}

// Standardize scales every column to zero mean and unit variance. Columns
// with zero variance are left untouched.
func Standardize(nf *NumericFrame) {
	for _, name := range nf.Columns {
		column := nf.Data[name]
		values := valid(column)
		if len(values) < 2 {
			continue
		}
		mean := stat.Mean(values, nil)
		sigma := stat.StdDev(values, nil)
		if sigma == 0 {
			continue
		}
		for i, v := range column {
			if !math.IsNaN(v) {
				column[i] = (v - mean) / sigma
			}
		}
	}
}

// Correlation computes the Pearson correlation between two columns over rows
// where both are present.
func Correlation(nf *NumericFrame, col1, col2 string) (float64, error) {
	a, ok := nf.Data[col1]
	if !ok {
		return 0, fmt.Errorf("unknown column %q", col1)
	}
	b, ok := nf.Data[col2]
	if !ok {
		return 0, fmt.Errorf("unknown column %q", col2)
	}

	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(b))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < 2 {
		return 0, fmt.Errorf("not enough paired values for correlation")
	}

	return stat.Correlation(xs, ys, nil), nil
}

func dropRows(nf *NumericFrame, keep []bool, kept int) {
	for _, name := range nf.Columns {
		column := nf.Data[name]
		out := make([]float64, 0, kept)
		for i, v := range column {
			if keep[i] {
				out = append(out, v)
			}
		}
		nf.Data[name] = out
	}
	nf.numRows = kept
}
