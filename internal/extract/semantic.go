package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// SemanticClient calls the cloud parsing API that produces the coarse
// semantic view of a document: typed items in reading order with
// approximate geometry. Results are cached on disk keyed by filename, so
// re-running a pipeline does not re-parse.
type SemanticClient struct {
	apiKey     string
	baseURL    string
	cacheDir   string
	httpClient *http.Client
	log        *slog.Logger

	pollInterval time.Duration
}

func NewSemanticClient(apiKey, baseURL, cacheDir string, log *slog.Logger) *SemanticClient {
	return &SemanticClient{
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		cacheDir: cacheDir,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log:          log,
		pollInterval: 2 * time.Second,
	}
}

type parseJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error_message,omitempty"`
}

// Wire shape of one semantic item. Tables arrive either as rows or as an
// HTML fragment; headings carry lvl.
type wireItem struct {
	Type  string     `json:"type"`
	Value string     `json:"value,omitempty"`
	MD    string     `json:"md,omitempty"`
	Lvl   int        `json:"lvl,omitempty"`
	Rows  [][]string `json:"rows,omitempty"`
	HTML  string     `json:"html,omitempty"`
	BBox  BBox       `json:"bBox"`
}

type wirePage struct {
	Page  int        `json:"page"`
	Items []wireItem `json:"items"`
}

type parseResult struct {
	Pages []wirePage `json:"pages"`
}

// Parse returns the page-ordered semantic items for the PDF, from cache
// when available.
func (c *SemanticClient) Parse(ctx context.Context, pdfPath string) ([]SemanticPage, error) {
	cachePath := filepath.Join(c.cacheDir, "semantic", filepath.Base(pdfPath)+".json")
	if data, err := os.ReadFile(cachePath); err == nil {
		var result parseResult
		if err := json.Unmarshal(data, &result); err == nil {
			c.log.Info("loaded cached parse result", "path", cachePath)
			return convertPages(result.Pages), nil
		}
		c.log.Warn("ignoring unreadable parse cache", "path", cachePath)
	}

	jobID, err := c.upload(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	c.log.Info("parse job submitted", "job_id", jobID)

	if err := c.waitForJob(ctx, jobID); err != nil {
		return nil, err
	}

	raw, err := c.fetchResult(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
		if err := os.WriteFile(cachePath, raw, 0o644); err != nil {
			c.log.Warn("could not write parse cache", "path", cachePath, "error", err)
		}
	}

	var result parseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return convertPages(result.Pages), nil
}

func (c *SemanticClient) upload(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/parsing/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var job parseJob
	if err := c.do(req, &job); err != nil {
		return "", err
	}
	if job.ID == "" {
		return "", fmt.Errorf("upload returned no job id")
	}
	return job.ID, nil
}

func (c *SemanticClient) waitForJob(ctx context.Context, jobID string) error {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/parsing/job/"+jobID, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var job parseJob
		if err := c.do(req, &job); err != nil {
			return fmt.Errorf("poll job %s: %w", jobID, err)
		}
		switch job.Status {
		case "SUCCESS":
			return nil
		case "ERROR", "CANCELLED":
			return fmt.Errorf("parse job %s failed: %s", jobID, job.Error)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *SemanticClient) fetchResult(ctx context.Context, jobID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/parsing/job/"+jobID+"/result/json", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return raw, nil
}

func (c *SemanticClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return json.Unmarshal(raw, out)
}

func convertPages(pages []wirePage) []SemanticPage {
	out := make([]SemanticPage, 0, len(pages))
	for _, wp := range pages {
		sp := SemanticPage{Page: wp.Page}
		for _, item := range wp.Items {
			value := item.MD
			if value == "" {
				value = item.Value
			}
			rows := item.Rows
			if len(rows) == 0 && item.HTML != "" {
				rows = ParseTableHTML(item.HTML)
			}
			sp.Items = append(sp.Items, SemanticItem{
				Kind:  item.Type,
				Page:  wp.Page,
				Value: value,
				Rows:  rows,
				Level: item.Lvl,
				BBox:  item.BBox,
			})
		}
		out = append(out, sp)
	}
	return out
}

// ParseTableHTML flattens an HTML table fragment into rows of cell text.
func ParseTableHTML(fragment string) [][]string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var rows [][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					row = append(row, strings.TrimSpace(nodeText(c)))
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
