package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Workspace is a remote workspace as returned by the workspace service.
type Workspace struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	OrgID       string `json:"org_id"`
	HubURL      string `json:"hub_url"`
}

// CreateError reports a failed workspace creation. It is fatal for the
// notebook test it occurred in; no execution is attempted.
type CreateError struct {
	Status int
	Body   string
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("workspace creation returned %d: %s", e.Status, e.Body)
}

// API is the subset of the workspace service the lifecycle manager
// needs. *Client implements it; tests substitute fakes.
type API interface {
	Create(ctx context.Context, name, description string) (*Workspace, error)
	Delete(ctx context.Context, id string) error
}

// Client is a workspace service REST client scoped to one organization.
type Client struct {
	hubURL string
	orgID  string
	tokens *TokenSource
	client *http.Client
}

// NewClient creates a workspace client. Requests carry a bounded
// timeout independent of any notebook budget.
func NewClient(hubURL, orgID string, tokens *TokenSource) *Client {
	return &Client{
		hubURL: strings.TrimRight(hubURL, "/"),
		orgID:  orgID,
		tokens: tokens,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// conflictRetryDelay is the pause between deleting a same-named
// workspace and recreating it; swappable in tests.
var conflictRetryDelay = 2 * time.Second

// Create makes a new workspace and returns it. A name conflict, left
// behind by a crashed run, is resolved once: the existing workspace is
// deleted and creation retried.
func (c *Client) Create(ctx context.Context, name, description string) (*Workspace, error) {
	return c.create(ctx, name, description, true)
}

func (c *Client) create(ctx context.Context, name, description string, retryConflict bool) (*Workspace, error) {
	body, err := json.Marshal(map[string]any{
		"name":                      name,
		"description":               description,
		"bounding_box":              nil,
		"default_coordinate_system": "",
		"labels":                    nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workspace request: %w", err)
	}

	url := fmt.Sprintf("%s/workspace/orgs/%s/workspaces", c.hubURL, c.orgID)
	resp, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict && retryConflict {
		if err := c.deleteByName(ctx, name); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(conflictRetryDelay):
		}
		return c.create(ctx, name, description, false)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &CreateError{Status: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var ws Workspace
	if err := json.NewDecoder(resp.Body).Decode(&ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace response: %w", err)
	}
	return &ws, nil
}

// deleteByName lists the organization's workspaces and deletes every
// one matching name.
func (c *Client) deleteByName(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/workspace/orgs/%s/workspaces", c.hubURL, c.orgID)
	resp, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("workspace listing returned %d", resp.StatusCode)
	}

	var listing struct {
		Workspaces []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"workspaces"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return fmt.Errorf("failed to parse workspace listing: %w", err)
	}

	for _, ws := range listing.Workspaces {
		if ws.Name == name {
			if err := c.Delete(ctx, ws.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete removes a workspace by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/workspace/orgs/%s/workspaces/%s", c.hubURL, c.orgID, id)
	resp, err := c.do(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK, http.StatusAccepted:
		return nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("workspace deletion returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workspace request failed: %w", err)
	}
	return resp, nil
}
