// Package virustotal implements the reputation service port over the VirusTotal v3 REST API.
package virustotal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/phishguard/internal/moderation/reputation"
)

const (
	DefaultBaseURL = "https://www.virustotal.com/api/v3"
	apiKeyHeader   = "x-apikey"
	categoryBad    = "malicious"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Entry
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) { client.httpClient = c }
}

// WithRequestsPerMinute throttles outgoing calls to the account quota. Zero disables throttling.
func WithRequestsPerMinute(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func New(apiKey, baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     log.WithField("object", "VirusTotal"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type (
	analysisStats   map[string]int
	analysisResults map[string]struct {
		Category string `json:"category"`
		Result   string `json:"result"`
	}

	objectResponse struct {
		Data struct {
			ID         string `json:"id"`
			Type       string `json:"type"`
			Attributes struct {
				LastAnalysisStats   analysisStats   `json:"last_analysis_stats"`
				LastAnalysisResults analysisResults `json:"last_analysis_results"`
				Status              string          `json:"status"`
				Stats               analysisStats   `json:"stats"`
				Results             analysisResults `json:"results"`
			} `json:"attributes"`
		} `json:"data"`
	}

	errorResponse struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
)

func (c *Client) FileReport(ctx context.Context, sha256 string) (reputation.Report, error) {
	var resp objectResponse
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(sha256), nil, "", &resp); err != nil {
		return reputation.Report{}, err
	}
	attrs := resp.Data.Attributes
	return toReport(attrs.LastAnalysisStats, attrs.LastAnalysisResults), nil
}

func (c *Client) URLReport(ctx context.Context, urlID string) (reputation.Report, error) {
	var resp objectResponse
	if err := c.do(ctx, http.MethodGet, "/urls/"+url.PathEscape(urlID), nil, "", &resp); err != nil {
		return reputation.Report{}, err
	}
	attrs := resp.Data.Attributes
	return toReport(attrs.LastAnalysisStats, attrs.LastAnalysisResults), nil
}

// SubmitFile streams a multipart upload without buffering the whole file.
func (c *Client) SubmitFile(ctx context.Context, name string, body io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, body)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	var resp objectResponse
	if err := c.do(ctx, http.MethodPost, "/files", pr, mw.FormDataContentType(), &resp); err != nil {
		_ = pr.CloseWithError(err)
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("virustotal: empty analysis id")
	}
	return resp.Data.ID, nil
}

func (c *Client) Analysis(ctx context.Context, analysisID string) (reputation.Analysis, error) {
	var resp objectResponse
	if err := c.do(ctx, http.MethodGet, "/analyses/"+url.PathEscape(analysisID), nil, "", &resp); err != nil {
		return reputation.Analysis{}, err
	}
	attrs := resp.Data.Attributes
	return reputation.Analysis{
		Status: attrs.Status,
		Report: toReport(attrs.Stats, attrs.Results),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("virustotal: wait for quota: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("virustotal: create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("accept", "application/json")
	if contentType != "" {
		req.Header.Set("content-type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("virustotal: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(method, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("virustotal: decode response: %w", err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	var apiErr errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return reputation.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		c.logger.WithFields(log.Fields{
			"status": resp.StatusCode,
			"code":   apiErr.Error.Code,
		}).Error("virustotal rejected the api key")
		return fmt.Errorf("%w: %s", reputation.ErrUnavailable, apiErr.Error.Code)
	}
	return fmt.Errorf("virustotal: %s %s: status %d %s", method, path, resp.StatusCode, apiErr.Error.Code)
}

func toReport(stats analysisStats, results analysisResults) reputation.Report {
	report := reputation.Report{
		Malicious: stats[categoryBad],
		Results:   make(map[string]string),
	}
	for _, n := range stats {
		report.Total += n
	}
	for engine, r := range results {
		if r.Category == categoryBad && r.Result != "" {
			report.Results[engine] = r.Result
		}
	}
	return report
}
