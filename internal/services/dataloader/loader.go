package dataloader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"healthdash/internal/models"
	"healthdash/internal/services/classifier"
	"healthdash/internal/services/storage"
)

// ErrMissingColumn is returned when a required column is absent from the header
var ErrMissingColumn = errors.New("missing required column")

// Canonical column names of the source table
const (
	ColName              = "Name"
	ColAge               = "Age"
	ColGender            = "Gender"
	ColMedicalCondition  = "Medical Condition"
	ColDateOfAdmission   = "Date of Admission"
	ColDoctor            = "Doctor"
	ColHospital          = "Hospital"
	ColInsuranceProvider = "Insurance Provider"
	ColBillingAmount     = "Billing Amount"
	ColAdmissionType     = "Admission Type"
)

// RequiredColumns lists every column the loader needs, in source order
var RequiredColumns = []string{
	ColName, ColAge, ColGender, ColMedicalCondition, ColDateOfAdmission,
	ColDoctor, ColHospital, ColInsuranceProvider, ColBillingAmount, ColAdmissionType,
}

// columnMappings maps header variants (lowercased) onto canonical names
var columnMappings = map[string][]string{
	ColName:              {"name", "patient name", "patient"},
	ColAge:               {"age", "patient age"},
	ColGender:            {"gender", "sex"},
	ColMedicalCondition:  {"medical condition", "condition", "diagnosis"},
	ColDateOfAdmission:   {"date of admission", "admission date", "admitted", "date"},
	ColDoctor:            {"doctor", "physician", "attending doctor"},
	ColHospital:          {"hospital", "facility", "hospital name"},
	ColInsuranceProvider: {"insurance provider", "insurer", "insurance", "payer"},
	ColBillingAmount:     {"billing amount", "billing", "amount billed", "charges"},
	ColAdmissionType:     {"admission type", "type of admission"},
}

// missingMarkers are cell values read as missing
var missingMarkers = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"n/a":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"<NA>": true,
	"#N/A": true,
}

// dateFormats are tried in order when parsing admission dates
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// LoadResult is a cleaned table plus the counts gathered while cleaning it
type LoadResult struct {
	Patients     *models.PatientSet
	SourceRows   int
	MissingNames int
	InvalidDates int
	FileInfo     os.FileInfo
	Path         string
}

// Report summarises the load for the API and the logs
func (r *LoadResult) Report() *models.DatasetReport {
	report := &models.DatasetReport{
		File:         r.Path,
		SourceRows:   r.SourceRows,
		MissingNames: r.MissingNames,
		InvalidDates: r.InvalidDates,
		Records:      r.Patients.Len(),
		Years:        r.Patients.Years(),
		StartDate:    r.Patients.MinDate(),
		EndDate:      r.Patients.MaxDate(),
	}
	if r.FileInfo != nil {
		report.SizeBytes = r.FileInfo.Size()
		report.ModTime = r.FileInfo.ModTime()
	}
	return report
}

// DataLoader reads and cleans the patient table
type DataLoader struct {
	path   string
	store  *storage.Storage
	logger zerolog.Logger

	mu      sync.Mutex
	cached  *LoadResult
	size    int64
	modTime time.Time
}

// New creates a DataLoader for the file at path
func New(path string, store *storage.Storage, logger zerolog.Logger) *DataLoader {
	return &DataLoader{
		path:   path,
		store:  store,
		logger: logger.With().Str("component", "dataloader").Logger(),
	}
}

// Path returns the source file path
func (dl *DataLoader) Path() string {
	return dl.path
}

// Load returns the cleaned table, re-reading the file only when its size or mtime changed
func (dl *DataLoader) Load() (*LoadResult, error) {
	info, err := dl.store.Stat(dl.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dl.path, err)
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.cached != nil && info.Size() == dl.size && info.ModTime().Equal(dl.modTime) {
		return dl.cached, nil
	}

	result, err := dl.loadFile()
	if err != nil {
		return nil, err
	}
	result.FileInfo = info

	dl.cached = result
	dl.size = info.Size()
	dl.modTime = info.ModTime()
	return result, nil
}

// Invalidate drops the cached table
func (dl *DataLoader) Invalidate() {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.cached = nil
}

func (dl *DataLoader) loadFile() (*LoadResult, error) {
	file, err := dl.store.OpenFile(dl.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dl.path, err)
	}
	defer file.Close()

	result, err := dl.parse(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dl.path, err)
	}
	result.Path = dl.path

	dl.logger.Info().
		Str("file", dl.path).
		Int("source_rows", result.SourceRows).
		Int("missing_names", result.MissingNames).
		Int("invalid_dates", result.InvalidDates).
		Int("records", result.Patients.Len()).
		Msg("dataset loaded")

	return result, nil
}

// parse reads CSV from r and cleans it
func (dl *DataLoader) parse(r io.Reader) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	for _, col := range RequiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("%w: %s (tried: %v)", ErrMissingColumn, col, columnMappings[col])
		}
	}

	result := &LoadResult{}
	var patients []models.PatientRecord
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			// An unbalanced quote swallows every following line into one
			// field, so only errors confined to a single line are skipped.
			var pe *csv.ParseError
			if errors.As(err, &pe) && (errors.Is(pe.Err, csv.ErrQuote) || pe.StartLine != pe.Line) {
				return nil, fmt.Errorf("parse line %d: %w", pe.StartLine, err)
			}
			dl.logger.Warn().Err(err).Int("line", lineNum).Msg("skipping malformed line")
			continue
		}
		result.SourceRows++

		p := buildRecord(record, colIndex)
		p.Line = lineNum

		// Invalid dates are counted before the name filter.
		if !p.DateValid {
			result.InvalidDates++
		}
		if p.Name == "" {
			result.MissingNames++
			continue
		}

		p.ComputeDerivedFields()
		p.Hash = p.ComputeHash()
		patients = append(patients, p)
	}

	patients = classifier.ClassifyPatients(patients)
	result.Patients = models.NewPatientSet(patients)
	return result, nil
}

// buildRecord maps one CSV row onto a PatientRecord
func buildRecord(record []string, colIndex map[string]int) models.PatientRecord {
	field := func(col string) string {
		idx, ok := colIndex[col]
		if !ok || idx >= len(record) {
			return ""
		}
		return cleanCell(record[idx])
	}

	p := models.PatientRecord{
		Name:              field(ColName),
		Gender:            field(ColGender),
		MedicalCondition:  field(ColMedicalCondition),
		Doctor:            field(ColDoctor),
		Hospital:          field(ColHospital),
		InsuranceProvider: field(ColInsuranceProvider),
		AdmissionType:     field(ColAdmissionType),
	}
	p.Age, p.AgeValid = parseNumber(field(ColAge))
	p.BillingAmount, p.BillingValid = parseNumber(field(ColBillingAmount))
	p.AdmissionDate, p.DateValid = parseDate(field(ColDateOfAdmission))
	return p
}

// cleanCell trims a cell and maps missing markers to ""
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if missingMarkers[s] {
		return ""
	}
	return s
}

// normalizeColumnName maps a header cell onto its canonical name
func normalizeColumnName(col string) string {
	col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	key := strings.ToLower(strings.Join(strings.Fields(col), " "))
	for standard, variants := range columnMappings {
		for _, variant := range variants {
			if key == variant {
				return standard
			}
		}
	}
	return col
}

// buildColumnIndex creates a normalized column index from CSV headers
func buildColumnIndex(header []string) map[string]int {
	colIndex := make(map[string]int)
	for i, col := range header {
		normalized := normalizeColumnName(col)
		if _, exists := colIndex[normalized]; !exists {
			colIndex[normalized] = i
		}
	}
	return colIndex
}

// parseDate tries each known format; ok is false when none matches
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber parses a numeric cell, accepting currency symbols and thousands separators
func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
