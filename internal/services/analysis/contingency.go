package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"healthdash/internal/models"
)

// Crosstab counts records for every pair of row and column values.
// Rows and columns are sorted; records missing either value are left out.
func Crosstab(ps *models.PatientSet, rowField, colField models.Field) *models.ContingencyTable {
	rowSet := make(map[string]int)
	colSet := make(map[string]int)
	for i := range ps.Patients {
		r := ps.Patients[i].Value(rowField)
		c := ps.Patients[i].Value(colField)
		if r == "" || c == "" {
			continue
		}
		rowSet[r] = 0
		colSet[c] = 0
	}

	rows := sortedKeys(rowSet)
	cols := sortedKeys(colSet)
	for i, r := range rows {
		rowSet[r] = i
	}
	for j, c := range cols {
		colSet[c] = j
	}

	counts := make([][]float64, len(rows))
	for i := range counts {
		counts[i] = make([]float64, len(cols))
	}
	for i := range ps.Patients {
		r := ps.Patients[i].Value(rowField)
		c := ps.Patients[i].Value(colField)
		if r == "" || c == "" {
			continue
		}
		counts[rowSet[r]][colSet[c]]++
	}

	return &models.ContingencyTable{
		RowField: rowField,
		ColField: colField,
		Rows:     rows,
		Cols:     cols,
		Counts:   counts,
	}
}

// ChiSquare runs the chi-square test of independence on table.
// Yates' continuity correction is applied when there is one degree of freedom.
func ChiSquare(table *models.ContingencyTable) (*models.ChiSquareResult, error) {
	nRows, nCols := len(table.Rows), len(table.Cols)
	if nRows == 0 || nCols == 0 {
		return nil, fmt.Errorf("%w: empty contingency table", ErrDegenerate)
	}

	total := table.Total()
	rowSums := make([]float64, nRows)
	colSums := make([]float64, nCols)
	for i, row := range table.Counts {
		for j, c := range row {
			rowSums[i] += c
			colSums[j] += c
		}
	}

	expected := make([][]float64, nRows)
	for i := range expected {
		expected[i] = make([]float64, nCols)
		for j := range expected[i] {
			expected[i][j] = rowSums[i] * colSums[j] / total
			if expected[i][j] == 0 {
				return nil, fmt.Errorf("%w: zero expected frequency at (%s, %s)",
					ErrDegenerate, table.Rows[i], table.Cols[j])
			}
		}
	}

	dof := (nRows - 1) * (nCols - 1)
	result := &models.ChiSquareResult{
		Table:    table,
		DOF:      dof,
		Expected: expected,
	}

	if dof == 0 {
		result.Statistic = 0
		result.PValue = 1
		return result, nil
	}

	correct := dof == 1
	var statistic float64
	for i, row := range table.Counts {
		for j, observed := range row {
			diff := observed - expected[i][j]
			if correct {
				// Shrink |diff| by 0.5 without crossing zero
				diff = math.Copysign(math.Max(math.Abs(diff)-0.5, 0), diff)
			}
			statistic += diff * diff / expected[i][j]
		}
	}

	result.Statistic = statistic
	result.YatesCorrected = correct
	result.PValue = distuv.ChiSquared{K: float64(dof)}.Survival(statistic)
	return result, nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
