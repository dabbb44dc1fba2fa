package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Kernel identifies a running kernel on the gateway.
type Kernel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client talks to a Jupyter kernel gateway.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// NewClient creates a gateway client for the given base URL. The token
// is optional; when set it is sent on every request.
func NewClient(rawURL, token string, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL %q: %w", rawURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}, nil
}

// StartKernel launches a kernel of the given name on the gateway.
func (c *Client) StartKernel(ctx context.Context, name string) (*Kernel, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kernel request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+"/api/kernels", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kernel start failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway returned %d starting kernel: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var k Kernel
	if err := json.NewDecoder(resp.Body).Decode(&k); err != nil {
		return nil, fmt.Errorf("failed to parse kernel response: %w", err)
	}
	c.logger.Debug("kernel started", zap.String("kernel_id", k.ID), zap.String("name", k.Name))
	return &k, nil
}

// ShutdownKernel stops a kernel by id.
func (c *Client) ShutdownKernel(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL.String()+"/api/kernels/"+id, nil)
	if err != nil {
		return fmt.Errorf("failed to build shutdown request: %w", err)
	}
	c.authorize(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kernel shutdown failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d shutting down kernel %s", resp.StatusCode, id)
	}
	c.logger.Debug("kernel shut down", zap.String("kernel_id", id))
	return nil
}

// Connect opens the channels websocket for a running kernel.
func (c *Client) Connect(ctx context.Context, kernelID string) (*Session, error) {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/api/kernels/" + kernelID + "/channels"

	hdr := http.Header{}
	c.authorize(hdr)

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), hdr)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect kernel channels (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect kernel channels: %w", err)
	}

	return &Session{
		conn:      conn,
		sessionID: uuid.NewString(),
		logger:    c.logger,
	}, nil
}

func (c *Client) authorize(h http.Header) {
	if c.token != "" {
		h.Set("Authorization", "token "+c.token)
	}
}
