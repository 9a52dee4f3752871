package export

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"healthdash/internal/models"
)

var patientColumns = []string{
	"record_hash", "name", "age", "age_group", "gender", "medical_condition",
	"admission_date", "admission_year", "doctor", "hospital",
	"insurance_provider", "billing_amount", "admission_type",
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
	record_hash        TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	age                DOUBLE PRECISION,
	age_group          TEXT,
	gender             TEXT,
	medical_condition  TEXT,
	admission_date     DATE,
	admission_year     INTEGER,
	doctor             TEXT,
	hospital           TEXT,
	insurance_provider TEXT,
	billing_amount     DOUBLE PRECISION,
	admission_type     TEXT
)`

// PublishPostgres replaces the contents of table with the records of ps
// using COPY inside one transaction. It returns the number of rows copied.
func PublishPostgres(ctx context.Context, connStr, table string, ps *models.PatientSet, logger zerolog.Logger) (int64, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return 0, fmt.Errorf("parse connection: %w", err)
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}

	ident := pgx.Identifier{table}
	if _, err := pool.Exec(ctx, fmt.Sprintf(createTableSQL, ident.Sanitize())); err != nil {
		return 0, fmt.Errorf("create table %s: %w", table, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+ident.Sanitize()); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}

	rows := make([][]interface{}, 0, ps.Len())
	for i := range ps.Patients {
		rows = append(rows, copyRow(&ps.Patients[i]))
	}

	copied, err := tx.CopyFrom(ctx, ident, patientColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	logger.Info().Str("table", table).Int64("rows", copied).Msg("published to postgres")
	return copied, nil
}

// copyRow orders a record's values like patientColumns
func copyRow(p *models.PatientRecord) []interface{} {
	row := NewPatientRow(p)

	var date, year interface{}
	if p.DateValid {
		date = p.AdmissionDate
		year = int32(p.Year)
	}

	return []interface{}{
		row.RecordHash, row.Name, row.Age, row.AgeGroup, row.Gender, row.MedicalCondition,
		date, year, row.Doctor, row.Hospital,
		row.InsuranceProvider, row.BillingAmount, row.AdmissionType,
	}
}
