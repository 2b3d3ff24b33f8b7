package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/sitelens/models"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:8080", "sitelens API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	runs    = flag.Int("runs", 3, "Number of runs per domain for averaging")
	maxAge  = flag.Int("max-age-ms", 0, "max_age_ms sent with each request (0 disables the cache)")
	domains = flag.String("domains", "", "Comma-separated domains (default: built-in list)")
	output  = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Default domains covering several site types.
var defaultDomains = []struct {
	Label  string
	Domain string
}{
	{"Static", "example.com"},
	{"Docs", "go.dev"},
	{"News", "bbc.com"},
	{"Code", "github.com"},
	{"IDN", "bücher.de"},
}

// --- Benchmark result types ---

type runResult struct {
	Run         int    `json:"run"`
	TotalMs     int64  `json:"total_ms"`
	UpstreamMs  int64  `json:"upstream_ms"`
	PageLoadMs  int64  `json:"page_load_ms"`
	MetaTags    int    `json:"meta_tags"`
	Links       int    `json:"links"`
	Images      int    `json:"images"`
	CacheStatus string `json:"cache_status,omitempty"`
	HTTPStatus  int    `json:"http_status"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type domainAverages struct {
	TotalMs    float64 `json:"total_ms"`
	UpstreamMs float64 `json:"upstream_ms"`
	Images     float64 `json:"images"`
	Links      float64 `json:"links"`
}

type domainResult struct {
	Domain   string          `json:"domain"`
	Label    string          `json:"label"`
	Runs     []runResult     `json:"runs"`
	Averages *domainAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp     string         `json:"timestamp"`
	APIURL        string         `json:"api_url"`
	RunsPerDomain int            `json:"runs_per_domain"`
	Results       []domainResult `json:"results"`
}

func main() {
	flag.Parse()

	targets := defaultDomains
	if *domains != "" {
		targets = nil
		for _, d := range strings.Split(*domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				targets = append(targets, struct {
					Label  string
					Domain string
				}{"Custom", d})
			}
		}
	}

	fmt.Println("=== sitelens Benchmark Suite ===")
	fmt.Printf("API URL:     %s\n", *apiURL)
	fmt.Printf("Runs/domain: %d\n", *runs)
	fmt.Printf("Output:      %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure sitelens is running (e.g. sitelens serve)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		APIURL:        *apiURL,
		RunsPerDomain: *runs,
	}

	client := &http.Client{Timeout: 150 * time.Second}
	for _, t := range targets {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.Domain)
		dr := domainResult{Domain: t.Domain, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkDomain(client, t.Domain, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d images  %s\n", rr.TotalMs, rr.Images, rr.CacheStatus)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			dr.Runs = append(dr.Runs, rr)
		}

		dr.Averages = computeAverages(dr.Runs)
		report.Results = append(report.Results, dr)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkDomain(client *http.Client, domain string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(models.AnalyzeRequest{Domain: domain, MaxAgeMs: *maxAge})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/analyze", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var ar models.AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = ar.Success
	rr.TotalMs = time.Since(start).Milliseconds()
	rr.UpstreamMs = ar.Timing.UpstreamMs
	rr.CacheStatus = ar.CacheStatus
	if ar.Report != nil {
		rr.PageLoadMs = ar.Report.ResponseTimeMs
		rr.MetaTags = len(ar.Report.MetaTags)
		rr.Links = len(ar.Report.Links)
		rr.Images = len(ar.Report.Images)
	}
	if ar.Error != nil {
		rr.Error = fmt.Sprintf("[%s] %s", ar.Error.Code, ar.Error.Message)
	}

	return rr
}

func computeAverages(runs []runResult) *domainAverages {
	var successCount int
	var avg domainAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.UpstreamMs += float64(r.UpstreamMs)
		avg.Images += float64(r.Images)
		avg.Links += float64(r.Links)
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.UpstreamMs /= n
	avg.Images /= n
	avg.Links /= n
	return &avg
}

func printTable(results []domainResult) {
	fmt.Println(strings.Repeat("─", 80))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Domain\tAvg Latency\tUpstream\tImages\tLinks\tOK\n")
	fmt.Fprintf(w, "──────\t───────────\t────────\t──────\t─────\t──\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t0/%d\n", truncate(r.Domain, 32), len(r.Runs))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%.0f\t%.0f\t%d/%d\n",
			truncate(r.Domain, 32),
			int64(r.Averages.TotalMs),
			int64(r.Averages.UpstreamMs),
			r.Averages.Images,
			r.Averages.Links,
			successes(r.Runs),
			len(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 80))
}

func successes(runs []runResult) int {
	n := 0
	for _, r := range runs {
		if r.Success {
			n++
		}
	}
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
