package templates

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"healthdash/internal/services/metrics"
)

// Renderer handles template rendering
type Renderer struct {
	templates *template.Template
	debug     bool
	baseDir   string
	logger    zerolog.Logger
}

// New creates a new template renderer
func New(templateDir string, debug bool, logger zerolog.Logger) (*Renderer, error) {
	r := &Renderer{
		debug:   debug,
		baseDir: templateDir,
		logger:  logger.With().Str("component", "templates").Logger(),
	}

	if err := r.loadTemplates(); err != nil {
		return nil, err
	}

	return r, nil
}

// getFuncMap returns the template function map
func getFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatMoney":   metrics.FormatCurrency,
		"formatNumber":  formatNumber,
		"formatPercent": formatPercent,
		"formatDate":    formatDate,
		"formatStat":    formatStat,
		"formatPValue":  formatPValue,
		"add":           add,
		"sub":           sub,
		"seq":           seq,
		"dict":          dict,
		"list":          list,
		"toJSON":        toJSON,
		"lower":         strings.ToLower,
		"join":          strings.Join,
		"now":           time.Now,
		"colorClass":    colorClass,
		"significance":  significanceClass,
	}
}

var (
	templateCallRe = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)
	lineNumberRe   = regexp.MustCompile(`:(\d+):`)
)

// loadTemplates parses all templates with strict validation
func (r *Renderer) loadTemplates() error {
	tmpl := template.New("").Funcs(getFuncMap())

	var templateFiles []string
	for _, subdir := range []string{"layouts", "pages", "partials"} {
		pattern := filepath.Join(r.baseDir, subdir, "*.html")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		templateFiles = append(templateFiles, matches...)
	}

	if len(templateFiles) == 0 {
		return fmt.Errorf("no template files found in %s", r.baseDir)
	}

	// Parse each file on its own so errors point at the right file
	var parseErrors []string
	for _, file := range templateFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Sprintf("%s: failed to read: %v", file, err))
			continue
		}

		if _, err := tmpl.New(filepath.Base(file)).Parse(string(content)); err != nil {
			parseErrors = append(parseErrors, formatTemplateError(file, string(content), err))
		}
	}

	if len(parseErrors) > 0 {
		for _, e := range parseErrors {
			r.logger.Error().Msg("template parse error\n" + e)
		}
		return fmt.Errorf("template parsing failed with %d error(s)", len(parseErrors))
	}

	if err := r.validateTemplateReferences(tmpl, templateFiles); err != nil {
		return err
	}

	r.templates = tmpl
	r.logger.Debug().Int("files", len(templateFiles)).Msg("templates loaded")
	return nil
}

// formatTemplateError formats a template error with the surrounding lines
func formatTemplateError(file, content string, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  File: %s\n", file)

	errStr := err.Error()
	lineNum := extractLineNumber(errStr)
	if lineNum <= 0 {
		fmt.Fprintf(&sb, "  Error: %s\n", errStr)
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Line: %d\n  Error: %s\n  Context:\n", lineNum, errStr)
	lines := strings.Split(content, "\n")
	start := max(lineNum-3, 0)
	end := min(lineNum+2, len(lines))
	for i := start; i < end; i++ {
		marker := "   "
		if i+1 == lineNum {
			marker = ">>>"
		}
		fmt.Fprintf(&sb, "    %s %4d | %s\n", marker, i+1, lines[i])
	}
	return sb.String()
}

// extractLineNumber pulls the ":LINE:" part out of a template error
func extractLineNumber(errStr string) int {
	matches := lineNumberRe.FindStringSubmatch(errStr)
	if len(matches) < 2 {
		return 0
	}
	var lineNum int
	fmt.Sscanf(matches[1], "%d", &lineNum)
	return lineNum
}

// validateTemplateReferences checks that every {{template "name"}} call
// names a defined template
func (r *Renderer) validateTemplateReferences(tmpl *template.Template, files []string) error {
	defined := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		if t.Name() != "" {
			defined[t.Name()] = true
		}
	}

	var refErrors []string
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(strings.NewReader(string(content)))
		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := scanner.Text()
			for _, match := range templateCallRe.FindAllStringSubmatch(line, -1) {
				if !defined[match[1]] {
					refErrors = append(refErrors, fmt.Sprintf("%s:%d: undefined template %q", file, lineNum, match[1]))
				}
			}
		}
	}

	if len(refErrors) > 0 {
		names := make([]string, 0, len(defined))
		for name := range defined {
			if !strings.HasSuffix(name, ".html") {
				names = append(names, name)
			}
		}
		sort.Strings(names)

		for _, e := range refErrors {
			r.logger.Error().Strs("defined", names).Msg(e)
		}
		return fmt.Errorf("found %d undefined template reference(s)", len(refErrors))
	}

	return nil
}

// Reload reloads templates (useful for development)
func (r *Renderer) Reload() error {
	return r.loadTemplates()
}

// Render renders a full page with the base layout
func (r *Renderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	return r.execute(w, name, data, "page")
}

// RenderPartial renders a partial template (no base layout)
func (r *Renderer) RenderPartial(w http.ResponseWriter, name string, data interface{}) error {
	return r.execute(w, name, data, "partial")
}

func (r *Renderer) execute(w http.ResponseWriter, name string, data interface{}, kind string) error {
	// In debug mode, reload templates on each request
	if r.debug {
		if err := r.loadTemplates(); err != nil {
			r.logger.Error().Err(err).Msg("reloading templates")
		}
	}

	var buf strings.Builder
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		r.logger.Error().Err(err).Str(kind, name).Msg("rendering template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := io.WriteString(w, buf.String())
	return err
}

// RenderToString renders a template to a string
func (r *Renderer) RenderToString(name string, data interface{}) (string, error) {
	var buf strings.Builder
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Template functions

func formatNumber(v interface{}) string {
	return metrics.FormatNumber(toFloat(v), 0)
}

func formatPercent(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatStat prints a test statistic with four significant digits
func formatStat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

func formatPValue(p float64) string {
	if p < 0.0001 {
		return "< 0.0001"
	}
	return fmt.Sprintf("%.4f", p)
}

func add(a, b interface{}) interface{} {
	// Keep ints as ints so templates can compare them with eq
	if ai, ok := a.(int); ok {
		if bi, ok := b.(int); ok {
			return ai + bi
		}
	}
	return toFloat(a) + toFloat(b)
}

func sub(a, b interface{}) interface{} {
	if ai, ok := a.(int); ok {
		if bi, ok := b.(int); ok {
			return ai - bi
		}
	}
	return toFloat(a) - toFloat(b)
}

func toFloat(v interface{}) float64 {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float64:
		return val
	case float32:
		return float64(val)
	default:
		return 0
	}
}

// seq generates a sequence of integers
func seq(start, end int) []int {
	if end < start {
		return nil
	}
	result := make([]int, end-start+1)
	for i := range result {
		result[i] = start + i
	}
	return result
}

func list(values ...interface{}) []interface{} {
	return values
}

// dict creates a map from key-value pairs
func dict(values ...interface{}) map[string]interface{} {
	if len(values)%2 != 0 {
		return nil
	}
	result := make(map[string]interface{})
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		result[key] = values[i+1]
	}
	return result
}

func toJSON(v interface{}) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return template.JS("null")
	}
	return template.JS(b)
}

func colorClass(v float64) string {
	switch {
	case v > 0:
		return "text-green-600"
	case v < 0:
		return "text-red-600"
	default:
		return "text-gray-600"
	}
}

// significanceClass styles a result row by whether the null was rejected
func significanceClass(significant bool) string {
	if significant {
		return "bg-amber-50 text-amber-800"
	}
	return "text-gray-700"
}
