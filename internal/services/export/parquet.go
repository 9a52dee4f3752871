package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"healthdash/internal/models"
)

// PatientRow is the Parquet schema of a cleaned record.
// Missing numeric and date values are stored as nulls.
type PatientRow struct {
	RecordHash        string   `parquet:"record_hash"`
	Name              string   `parquet:"name"`
	Age               *float64 `parquet:"age,optional"`
	AgeGroup          *string  `parquet:"age_group,optional"`
	Gender            *string  `parquet:"gender,optional"`
	MedicalCondition  *string  `parquet:"medical_condition,optional"`
	AdmissionDate     *string  `parquet:"admission_date,optional"`
	AdmissionYear     *int32   `parquet:"admission_year,optional"`
	Doctor            *string  `parquet:"doctor,optional"`
	Hospital          *string  `parquet:"hospital,optional"`
	InsuranceProvider *string  `parquet:"insurance_provider,optional"`
	BillingAmount     *float64 `parquet:"billing_amount,optional"`
	AdmissionType     *string  `parquet:"admission_type,optional"`
}

// NewPatientRow converts a record to its Parquet row
func NewPatientRow(p *models.PatientRecord) PatientRow {
	row := PatientRow{
		RecordHash:        p.Hash,
		Name:              p.Name,
		Age:               optionalFloat(p.Age, p.AgeValid),
		AgeGroup:          optionalString(p.AgeGroup),
		Gender:            optionalString(p.Gender),
		MedicalCondition:  optionalString(p.MedicalCondition),
		Doctor:            optionalString(p.Doctor),
		Hospital:          optionalString(p.Hospital),
		InsuranceProvider: optionalString(p.InsuranceProvider),
		BillingAmount:     optionalFloat(p.BillingAmount, p.BillingValid),
		AdmissionType:     optionalString(p.AdmissionType),
	}
	if p.DateValid {
		date := p.AdmissionDate.Format("2006-01-02")
		year := int32(p.Year)
		row.AdmissionDate = &date
		row.AdmissionYear = &year
	}
	return row
}

// WriteParquet writes the records of ps as a zstd-compressed Parquet file
func WriteParquet(w io.Writer, ps *models.PatientSet) error {
	writer := parquet.NewGenericWriter[PatientRow](w,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("healthdash", "1.0", ""),
	)

	const batchSize = 1024
	batch := make([]PatientRow, 0, batchSize)
	for i := range ps.Patients {
		batch = append(batch, NewPatientRow(&ps.Patients[i]))
		if len(batch) == batchSize {
			if _, err := writer.Write(batch); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := writer.Write(batch); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
