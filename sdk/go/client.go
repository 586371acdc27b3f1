package lexsdk

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
)

// Client is a minimal lex HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v1",
		Timeout:  10 * time.Second,
	}
}

// Stage is one stage row of a case.
type Stage struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	StageName   string  `json:"stage_name"`
	StageNumber int     `json:"stage_number"`
	Status      string  `json:"status"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type AdvanceResult struct {
	PreviousStage Stage  `json:"previous_stage"`
	CurrentStage  *Stage `json:"current_stage"`
}

type Document struct {
	ID           string   `json:"id"`
	CaseID       string   `json:"case_id"`
	DocumentType string   `json:"document_type"`
	Title        string   `json:"title"`
	Sections     []string `json:"sections"`
	Content      string   `json:"content"`
	CreatedAt    string   `json:"created_at"`
}

type Verification struct {
	ID              string          `json:"id"`
	DocumentID      string          `json:"document_id"`
	DocumentTitle   string          `json:"document_title"`
	Criteria        map[string]bool `json:"criteria"`
	Recommendations []string        `json:"recommendations"`
	CreatedAt       string          `json:"created_at"`
}

type Alert struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
	ResolvedBy  *string `json:"resolved_by,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	CaseID     string `json:"case_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses. Code is the error envelope's code when
// the body carried one.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == code
}

// InitializeWorkflow starts the workflow of a case.
func (c *Client) InitializeWorkflow(ctx context.Context, caseID string) (Stage, error) {
	var resp Stage
	err := c.do(ctx, http.MethodPost, c.casePath(caseID, "workflow"), nil, &resp)
	return resp, err
}

// CurrentStage returns the stage in progress, nil when there is none.
func (c *Client) CurrentStage(ctx context.Context, caseID string) (*Stage, error) {
	var resp struct {
		Current *Stage `json:"current"`
	}
	err := c.do(ctx, http.MethodGet, c.casePath(caseID, "workflow/current"), nil, &resp)
	return resp.Current, err
}

// Advance completes the current stage. With requireComplete the server
// refuses while the checklist, checked against evidence, is incomplete.
func (c *Client) Advance(ctx context.Context, caseID string, requireComplete bool, evidence map[string]bool) (AdvanceResult, error) {
	body := map[string]any{"require_complete": requireComplete}
	if len(evidence) > 0 {
		body["evidence"] = evidence
	}
	var resp AdvanceResult
	err := c.do(ctx, http.MethodPost, c.casePath(caseID, "workflow/advance"), body, &resp)
	return resp, err
}

// SetStageStatus overrides the status of one stage.
func (c *Client) SetStageStatus(ctx context.Context, caseID, stage, status string) (Stage, error) {
	var resp Stage
	endpoint := c.casePath(caseID, "workflow/stages/"+url.PathEscape(stage))
	err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// CreateDraft renders a document of docType from caseData.
func (c *Client) CreateDraft(ctx context.Context, caseID, docType string, caseData map[string]any) (Document, error) {
	if caseData == nil {
		caseData = map[string]any{}
	}
	body := map[string]any{
		"case_id":       caseID,
		"document_type": docType,
		"case_data":     caseData,
	}
	var resp Document
	err := c.do(ctx, http.MethodPost, c.path("documents"), body, &resp)
	return resp, err
}

// Verify runs the verification engine on a stored draft.
func (c *Client) Verify(ctx context.Context, documentID string) (Verification, error) {
	var resp Verification
	err := c.do(ctx, http.MethodPost, c.path("verifications"), map[string]any{"document_id": documentID}, &resp)
	return resp, err
}

// CreateAlert raises an alert on a case.
func (c *Client) CreateAlert(ctx context.Context, caseID, title, priority string) (Alert, error) {
	body := map[string]any{"case_id": caseID, "title": title}
	if priority != "" {
		body["priority"] = priority
	}
	var resp Alert
	err := c.do(ctx, http.MethodPost, c.path("alerts"), body, &resp)
	return resp, err
}

// ResolveAlert resolves a pending alert.
func (c *Client) ResolveAlert(ctx context.Context, alertID string) (Alert, error) {
	var resp Alert
	err := c.do(ctx, http.MethodPost, c.path("alerts/"+url.PathEscape(alertID)+"/resolve"), nil, &resp)
	return resp, err
}

// Events returns recent events of a case, newest first.
func (c *Client) Events(ctx context.Context, caseID string, limit int) ([]Event, error) {
	q := url.Values{}
	if caseID != "" {
		q.Set("case_id", caseID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := c.path("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Event `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) path(p string) string {
	return strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) casePath(caseID, p string) string {
	return c.path(fmt.Sprintf("cases/%s/%s", url.PathEscape(caseID), p))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
