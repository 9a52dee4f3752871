// Package main smoke-tests a running healthdash server endpoint by endpoint.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type endpoint struct {
	path        string
	method      string
	status      int
	contentType string
	contains    []string
}

// endpoints are checked against the unfiltered table unless -year is given
var endpoints = []endpoint{
	// Pages
	{path: "/dashboard", contentType: "text/html", contains: []string{"Healthcare Dashboard", "Total Patients"}},
	{path: "/explorer", contentType: "text/html", contains: []string{"Filtered Data", "Search"}},
	{path: "/analysis", contentType: "text/html", contains: []string{"Statistical Analysis"}},

	// Dashboard partials and chart data
	{path: "/dashboard/kpis", contentType: "text/html", contains: []string{"Total Patients"}},
	{path: "/dashboard/charts/data/gender", contentType: "application/json", contains: []string{`"data"`}},
	{path: "/dashboard/charts/data/age-group", contentType: "application/json", contains: []string{`"data"`}},
	{path: "/dashboard/charts/data/billing-by-year", contentType: "application/json", contains: []string{`"data"`}},
	{path: "/dashboard/charts/data/condition", contentType: "application/json", contains: []string{`"data"`}},
	{path: "/dashboard/charts/data/admission-type", contentType: "application/json", contains: []string{`"data"`}},
	{path: "/dashboard/charts/data/insurer", contentType: "application/json", contains: []string{`"data"`}},
	{path: "/dashboard/charts/data/unknown", status: http.StatusBadRequest, contentType: "text/plain"},
	{path: "/dashboard/kpi/billing", contentType: "text/html", contains: []string{"Total Billing"}},
	{path: "/dashboard/kpi/patients/export", contentType: "text/csv", contains: []string{"Year,Total Patients"}},

	// Explorer
	{path: "/explorer/records", contentType: "text/html"},
	{path: "/explorer/record/missing", status: http.StatusNotFound, contentType: "text/plain"},

	// Statistical block
	{path: "/analysis/charts/hospital-billing", contentType: "application/json"},
	{path: "/analysis/charts/condition-age", contentType: "application/json"},
	{path: "/api/analysis", contentType: "application/json", contains: []string{`"skipped"`}},

	// API
	{path: "/api/health", contentType: "application/json", contains: []string{`"status":"ok"`}},
	{path: "/api/years", contentType: "application/json", contains: []string{"All Years"}},
	{path: "/api/metrics", contentType: "application/json", contains: []string{`"total_patients"`}},
	{path: "/api/dataset", contentType: "application/json", contains: []string{`"records"`}},

	// Downloads
	{path: "/export/xlsx", contentType: "spreadsheetml"},
	{path: "/export/parquet", contentType: "parquet"},
	{path: "/export/chart/condition.png", contentType: "image/png"},
}

type result struct {
	endpoint endpoint
	status   int
	duration time.Duration
	err      error
}

func main() {
	base := flag.String("url", "http://localhost:8080", "Base URL of the server to validate")
	year := flag.String("year", "", "admission year to pass on every request")
	verbose := flag.Bool("v", false, "Verbose output")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	client := &http.Client{Timeout: *timeout}

	fmt.Printf("Validating %s (%d endpoints)\n\n", *base, len(endpoints))

	var failed int
	for _, ep := range endpoints {
		r := check(client, *base, *year, ep)
		switch {
		case r.err != nil:
			failed++
			fmt.Printf("FAIL %-6s %s\n     %v\n", ep.verb(), ep.path, r.err)
		case *verbose:
			fmt.Printf("ok   %-6s %s %d (%v)\n", ep.verb(), ep.path, r.status, r.duration.Round(time.Millisecond))
		}
	}

	fmt.Printf("\n%d passed, %d failed\n", len(endpoints)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func (ep endpoint) verb() string {
	if ep.method == "" {
		return http.MethodGet
	}
	return ep.method
}

func (ep endpoint) wantStatus() int {
	if ep.status == 0 {
		return http.StatusOK
	}
	return ep.status
}

func check(client *http.Client, base, year string, ep endpoint) result {
	start := time.Now()

	target := base + ep.path
	if year != "" {
		target += "?" + url.Values{"year": {year}}.Encode()
	}

	req, err := http.NewRequest(ep.verb(), target, nil)
	if err != nil {
		return result{endpoint: ep, err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{endpoint: ep, err: fmt.Errorf("read body: %w", err)}
	}

	r := result{endpoint: ep, status: resp.StatusCode, duration: time.Since(start)}
	if resp.StatusCode != ep.wantStatus() {
		r.err = fmt.Errorf("status %d, expected %d", resp.StatusCode, ep.wantStatus())
		return r
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, ep.contentType) {
		r.err = fmt.Errorf("content type %q, expected %q", ct, ep.contentType)
		return r
	}

	if ep.contentType == "application/json" && !json.Valid(body) {
		r.err = fmt.Errorf("invalid JSON")
		return r
	}

	for _, needle := range ep.contains {
		if !strings.Contains(string(body), needle) {
			r.err = fmt.Errorf("missing expected content %q", needle)
			return r
		}
	}
	return r
}
