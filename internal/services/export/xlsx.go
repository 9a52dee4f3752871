package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"healthdash/internal/models"
)

// Sheet names of the workbook
const (
	SheetRecords  = "Records"
	SheetSummary  = "Summary"
	SheetInsurers = "Billing by Insurer"
	SheetAnalysis = "Analysis"
)

var recordHeaders = []interface{}{
	"Name", "Age", "Age Group", "Gender", "Medical Condition", "Date of Admission",
	"Doctor", "Hospital", "Insurance Provider", "Billing Amount", "Admission Type",
}

// WriteXLSX writes the view as a workbook: the records, the metrics, billing
// per insurer and, when present, the statistical results.
func WriteXLSX(w io.Writer, v *View) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		return err
	}
	if err := writeRecords(f, v.Patients); err != nil {
		return fmt.Errorf("records sheet: %w", err)
	}
	if err := writeSummary(f, v); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeInsurers(f, v.Patients); err != nil {
		return fmt.Errorf("insurer sheet: %w", err)
	}
	if v.Report != nil {
		if err := writeAnalysis(f, v.Report); err != nil {
			return fmt.Errorf("analysis sheet: %w", err)
		}
	}

	return f.Write(w)
}

func writeRecords(f *excelize.File, ps *models.PatientSet) error {
	if err := f.SetSheetRow(SheetRecords, "A1", &recordHeaders); err != nil {
		return err
	}

	for i := range ps.Patients {
		p := &ps.Patients[i]
		row := []interface{}{
			p.Name, nil, p.AgeGroup, p.Gender, p.MedicalCondition, nil,
			p.Doctor, p.Hospital, p.InsuranceProvider, nil, p.AdmissionType,
		}
		if p.AgeValid {
			row[1] = p.Age
		}
		if p.DateValid {
			row[5] = p.AdmissionDate.Format("2006-01-02")
		}
		if p.BillingValid {
			row[9] = p.BillingAmount
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetRecords, cell, &row); err != nil {
			return err
		}
	}
	return f.SetPanes(SheetRecords, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, v *View) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}

	m := v.Metrics
	rows := [][]interface{}{
		{"Year", v.Label},
		{"Total Patients", m.TotalPatients},
		{"Total Billing", m.TotalBilling},
		{"Total Hospitals", m.TotalHospitals},
		{"Total Doctors", m.TotalDoctors},
		{"Total Insurers", m.TotalInsurers},
		{"Records", m.RecordCount},
	}
	return setRows(f, SheetSummary, 1, rows)
}

func writeInsurers(f *excelize.File, ps *models.PatientSet) error {
	if _, err := f.NewSheet(SheetInsurers); err != nil {
		return err
	}

	rows := [][]interface{}{{"Insurance Provider", "Total Billing Amount"}}
	for _, t := range ps.BillingBy(models.FieldInsuranceProvider) {
		rows = append(rows, []interface{}{t.Value, t.Total})
	}
	return setRows(f, SheetInsurers, 1, rows)
}

func writeAnalysis(f *excelize.File, r *models.AnalysisReport) error {
	if _, err := f.NewSheet(SheetAnalysis); err != nil {
		return err
	}

	rows := [][]interface{}{{"Test", "Group", "N", "Statistic", "p-value", "Significant", "Interpretation"}}
	if c := r.ChiSquare; c != nil {
		rows = append(rows, []interface{}{"Chi-square (Gender x Admission Type)", "", int(c.Table.Total()),
			c.Statistic, c.PValue, c.Significant, c.Interpretation})
	}
	for _, ga := range []models.GroupAnalysis{r.HospitalBilling, r.ConditionAge} {
		for _, n := range ga.Normality {
			rows = append(rows, []interface{}{"Shapiro-Wilk (" + ga.Variable + ")", n.Group, n.N,
				n.W, n.PValue, n.Significant, n.Interpretation})
		}
		if l := ga.Levene; l != nil {
			rows = append(rows, []interface{}{"Levene (" + ga.Variable + " by " + string(ga.GroupField) + ")", "",
				"", l.Statistic, l.PValue, l.Significant, l.Interpretation})
		}
	}
	if a := r.ANOVA; a != nil {
		rows = append(rows, []interface{}{"One-way ANOVA (Billing Amount by Hospital)", "", a.N,
			a.F, a.PValue, a.Significant, a.Interpretation})
	}
	if k := r.Kruskal; k != nil {
		rows = append(rows, []interface{}{"Kruskal-Wallis (Age by Medical Condition)", "", k.N,
			k.H, k.PValue, k.Significant, k.Interpretation})
	}
	for _, s := range r.Skipped {
		rows = append(rows, []interface{}{s.Step + " (skipped)", s.Group, s.N, nil, nil, nil, s.Reason})
	}

	return setRows(f, SheetAnalysis, 1, rows)
}

func setRows(f *excelize.File, sheet string, startRow int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, startRow+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
