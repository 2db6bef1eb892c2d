// Package remote is the typed HTTP client for the controller service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultBaseURL is used when no server origin is configured.
const DefaultBaseURL = "http://localhost:8600"

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	// Timeout bounds each HTTP exchange. Zero leaves calls unbounded.
	Timeout time.Duration
	// RetryMaxElapsed bounds transport-error retries of GET requests. Zero
	// disables retries.
	RetryMaxElapsed time.Duration
	HTTPClient      *http.Client
}

// Client talks to the controller REST API.
type Client struct {
	baseURL         string
	token           string
	retryMaxElapsed time.Duration
	http            *http.Client
}

// New builds a client from options.
func New(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:         base,
		token:           strings.TrimSpace(opts.Token),
		retryMaxElapsed: opts.RetryMaxElapsed,
		http:            httpClient,
	}
}

// BaseURL returns the configured server origin.
func (c *Client) BaseURL() string { return c.baseURL }

// --- Workspaces ---

func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workspaces", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentWorkspace returns nil when the server has no current workspace.
func (c *Client) CurrentWorkspace(ctx context.Context) (*Workspace, error) {
	var out *Workspace
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/workspaces/current", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MountWorkspace(ctx context.Context, path string) (*Workspace, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("workspace path is required")
	}
	var out Workspace
	body := map[string]string{"path": path}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/workspaces/mount", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SelectWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, errors.New("workspace id is required")
	}
	var out Workspace
	body := map[string]string{"workspace_id": workspaceID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/workspaces/select", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Controller ---

func (c *Client) ListBundles(ctx context.Context, workspaceID string) ([]Bundle, error) {
	var out []Bundle
	if err := c.doJSON(ctx, http.MethodGet, "/api/controller/bundles", workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RunCycle(ctx context.Context, req CycleRequest) (*CycleRun, error) {
	if strings.TrimSpace(req.BundleArtifactID) == "" {
		return nil, errors.New("bundle artifact id is required")
	}
	if req.Mode == "" {
		req.Mode = ModeLive
	}
	var out CycleRun
	if err := c.doJSON(ctx, http.MethodPost, "/api/controller/cycle", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListReports(ctx context.Context, workspaceID string) ([]ReportSummary, error) {
	var out []ReportSummary
	if err := c.doJSON(ctx, http.MethodGet, "/api/controller/reports", workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetArtifactDocument fetches the stored document of one artifact.
func (c *Client) GetArtifactDocument(ctx context.Context, artifactID, workspaceID string) (*ArtifactDocument, error) {
	var out ArtifactDetail
	path := "/api/controller/artifacts/" + url.PathEscape(artifactID)
	if err := c.doJSON(ctx, http.MethodGet, path, workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Document, nil
}

func (c *Client) DiffArtifacts(ctx context.Context, baseID, compareID, workspaceID string) (*DiffResult, error) {
	var out DiffResult
	body := map[string]string{"base_id": baseID, "compare_id": compareID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/controller/artifacts/diff", workspaceQuery(workspaceID), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Artifacts ---

func (c *Client) ListArtifacts(ctx context.Context, artifactType, workspaceID string) ([]ArtifactEntry, error) {
	q := workspaceQuery(workspaceID)
	if artifactType != "" {
		if q == nil {
			q = url.Values{}
		}
		q.Set("artifact_type", artifactType)
	}
	var out []ArtifactEntry
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/artifacts", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetArtifactDetail(ctx context.Context, artifactID, workspaceID string) (*ArtifactDetail, error) {
	var out ArtifactDetail
	path := "/api/v1/artifacts/" + url.PathEscape(artifactID)
	if err := c.doJSON(ctx, http.MethodGet, path, workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateArtifact(ctx context.Context, payload ArtifactPayload, workspaceID string) (*ArtifactDetail, error) {
	var out ArtifactDetail
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/artifacts", workspaceQuery(workspaceID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateArtifact(ctx context.Context, artifactID string, payload ArtifactPayload, workspaceID string) (*ArtifactDetail, error) {
	var out ArtifactDetail
	path := "/api/v1/artifacts/" + url.PathEscape(artifactID)
	if err := c.doJSON(ctx, http.MethodPut, path, workspaceQuery(workspaceID), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- LLM configuration ---

func (c *Client) ListPromptTemplates(ctx context.Context, workspaceID string) ([]PromptTemplate, error) {
	var out []PromptTemplate
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/llm/prompt-templates", workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListLLMConfigs(ctx context.Context, workspaceID string) ([]LLMConfig, error) {
	var out []LLMConfig
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/llm/configs", workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateLLMConfig(ctx context.Context, req LLMConfigRequest, workspaceID string) (*LLMConfig, error) {
	req.PromptVersion = strings.TrimSpace(req.PromptVersion)
	req.ModelID = strings.TrimSpace(req.ModelID)
	req.ModelVersion = strings.TrimSpace(req.ModelVersion)
	var out LLMConfig
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/llm/configs", workspaceQuery(workspaceID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Runs ---

func (c *Client) GetRunStatus(ctx context.Context, runID, workspaceID string) (*RunStatus, error) {
	var out RunStatus
	path := "/api/v1/runs/" + url.PathEscape(runID)
	if err := c.doJSON(ctx, http.MethodGet, path, workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelRun(ctx context.Context, runID, workspaceID string) (*RunStatus, error) {
	var out RunStatus
	path := "/api/v1/runs/" + url.PathEscape(runID) + "/cancel"
	if err := c.doJSON(ctx, http.MethodPost, path, workspaceQuery(workspaceID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Transport ---

func workspaceQuery(workspaceID string) url.Values {
	if strings.TrimSpace(workspaceID) == "" {
		return nil
	}
	return url.Values{"workspace_id": []string{workspaceID}}
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = buf
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	attempt := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Only transport failures are retried.
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(decodeAPIError(resp))
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
		return nil
	}

	if method != http.MethodGet || c.retryMaxElapsed <= 0 {
		return unwrapPermanent(attempt())
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = c.retryMaxElapsed
	return unwrapPermanent(backoff.Retry(attempt, backoff.WithContext(bo, ctx)))
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
