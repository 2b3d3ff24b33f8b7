package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/sitelens/models"
	"github.com/use-agent/sitelens/render"
)

// apiClient talks to a running sitelens server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func main() {
	apiURL := os.Getenv("SITELENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		apiKey:  os.Getenv("SITELENS_API_KEY"),
		http:    &http.Client{Timeout: 150 * time.Second},
	}

	s := server.NewMCPServer(
		"sitelens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzeTool := mcp.NewTool("analyze_domain",
		mcp.WithDescription("Look up a domain and return the meta tags, links and image URLs of its home page."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Domain to analyze, e.g. 'example.com'. Schemes, paths and ports are stripped."),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (default) or 'json'"),
			mcp.Enum("text", "json"),
		),
		mcp.WithNumber("max_age_ms",
			mcp.Description("Accept a cached report younger than this many milliseconds"),
		),
	)
	s.AddTool(analyzeTool, handleAnalyze(c))

	archiveTool := mcp.NewTool("archive_images",
		mcp.WithDescription("Download every image of a domain into a zip archive on the sitelens server. Waits for the archive and returns its manifest summary and download path."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Domain whose images should be archived"),
		),
		mcp.WithString("webhook_url",
			mcp.Description("Optional URL notified with archive.completed or archive.failed"),
		),
	)
	s.AddTool(archiveTool, handleArchive(c))

	getArchiveTool := mcp.NewTool("get_archive",
		mcp.WithDescription("Get the status and manifest of an archive job."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Archive job id returned by archive_images"),
		),
	)
	s.AddTool(getArchiveTool, handleGetArchive(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request to the sitelens API and returns the response body.
func (c *apiClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return data, resp.StatusCode, err
}

// apiError extracts the structured error from a failed response.
func apiError(body []byte, status int) string {
	var resp models.AnalyzeResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Error != nil {
		return fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
	}
	return fmt.Sprintf("HTTP %d", status)
}

// pollArchive polls a job until it is no longer processing.
func (c *apiClient) pollArchive(ctx context.Context, id string) (*models.ArchiveStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			st, err := c.archiveStatus(ctx, id)
			if err != nil {
				return nil, err
			}
			if st.Status != "processing" {
				return st, nil
			}
		}
	}
}

func (c *apiClient) archiveStatus(ctx context.Context, id string) (*models.ArchiveStatusResponse, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/v1/archives/"+id, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s", apiError(body, status))
	}
	var st models.ArchiveStatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("parse archive status: %w", err)
	}
	return &st, nil
}

func handleAnalyze(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}
		req := models.AnalyzeRequest{
			Domain:   domain,
			MaxAgeMs: request.GetInt("max_age_ms", 0),
		}

		body, status, err := c.do(ctx, http.MethodPost, "/api/v1/analyze", req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusOK {
			return mcp.NewToolResultError(apiError(body, status)), nil
		}

		var resp models.AnalyzeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success || resp.Report == nil {
			return mcp.NewToolResultError(apiError(body, status)), nil
		}

		if request.GetString("format", "text") == "json" {
			out, _ := json.MarshalIndent(resp.Report, "", "  ")
			return mcp.NewToolResultText(string(out)), nil
		}
		return mcp.NewToolResultText(render.Text(resp.Report)), nil
	}
}

func handleArchive(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}
		req := models.ArchiveRequest{
			Domain:     domain,
			WebhookURL: request.GetString("webhook_url", ""),
		}

		body, status, err := c.do(ctx, http.MethodPost, "/api/v1/archives", req)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if status != http.StatusAccepted {
			return mcp.NewToolResultError(apiError(body, status)), nil
		}
		var job models.ArchiveJobResponse
		if err := json.Unmarshal(body, &job); err != nil || job.ID == "" {
			return mcp.NewToolResultError("archive job creation failed"), nil
		}

		st, err := c.pollArchive(ctx, job.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling archive job %s failed: %v", job.ID, err)), nil
		}
		return mcp.NewToolResultText(formatStatus(c.baseURL, st)), nil
	}
}

func handleGetArchive(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		st, err := c.archiveStatus(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatStatus(c.baseURL, st)), nil
	}
}

func formatStatus(baseURL string, st *models.ArchiveStatusResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Archive %s: %s (%d images)\n", st.ID, st.Status, st.Total)
	if st.Error != nil {
		fmt.Fprintf(&sb, "Error: [%s] %s\n", st.Error.Code, st.Error.Message)
	}
	if st.DownloadURL != "" {
		fmt.Fprintf(&sb, "Download: %s%s (%s)\n", baseURL, st.DownloadURL, st.FileName)
	}
	if m := st.Manifest; m != nil {
		fmt.Fprintf(&sb, "Fetched %d, failed %d, skipped %d, %d bytes\n", m.Fetched, m.Failed, m.Skipped, m.Bytes)
		for _, e := range m.Entries {
			switch {
			case e.Error != "":
				fmt.Fprintf(&sb, "  FAILED %s: %s\n", e.URL, e.Error)
			case e.DuplicateOf != "":
				fmt.Fprintf(&sb, "  %s = %s\n", e.URL, e.DuplicateOf)
			default:
				fmt.Fprintf(&sb, "  %s -> %s\n", e.URL, e.File)
			}
		}
	}
	return sb.String()
}
