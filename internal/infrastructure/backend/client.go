// Package backend is the HTTP client both widget sides use to reach the widget API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
)

const maxResponseBytes = 1 << 20

// Client calls the widget API. It performs exactly one attempt per call.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logging.ChanneledLogger
}

// NewClient creates a client for baseURL. A nil httpClient gets a 30s default.
func NewClient(baseURL string, httpClient *http.Client, logger *logging.ChanneledLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// FetchWidgetConfig returns the remote display overrides for a widget.
func (c *Client) FetchWidgetConfig(ctx context.Context, widgetID string) (widgets.Overrides, error) {
	const op = "fetch widget config"
	var out widgets.Overrides
	body, err := c.do(ctx, op, http.MethodGet, c.widgetPath(widgetID, "/config/"), "", nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return out, nil
}

// InitWidget performs the init exchange.
func (c *Client) InitWidget(ctx context.Context, widgetID string, req customer.InitRequest) (customer.InitResponse, error) {
	const op = "init widget"
	body, err := c.do(ctx, op, http.MethodPost, c.widgetPath(widgetID, "/init/"), "", req)
	if err != nil {
		return customer.InitResponse{}, err
	}
	resp, err := customer.DecodeInitResponse(body)
	if err != nil {
		return customer.InitResponse{}, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return resp, nil
}

// GetMe fetches the current customer profile.
func (c *Client) GetMe(ctx context.Context, widgetID, token string) (customer.Profile, error) {
	const op = "get me"
	body, err := c.do(ctx, op, http.MethodGet, c.widgetPath(widgetID, "/me/"), token, nil)
	if err != nil {
		return customer.Profile{}, err
	}
	p, err := customer.DecodeProfile(body)
	if err != nil {
		return customer.Profile{}, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return p, nil
}

// AddEmailIdentity attaches an email to the customer and returns the updated profile.
func (c *Client) AddEmailIdentity(ctx context.Context, widgetID, token, email string) (customer.Profile, error) {
	const op = "add email identity"
	body, err := c.do(ctx, op, http.MethodPost, c.widgetPath(widgetID, "/me/identities/"), token,
		map[string]string{"email": email})
	if err != nil {
		return customer.Profile{}, err
	}
	p, err := customer.DecodeProfile(body)
	if err != nil {
		return customer.Profile{}, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return p, nil
}

func (c *Client) ListThreads(ctx context.Context, widgetID, token string) ([]threads.Thread, error) {
	const op = "list threads"
	body, err := c.do(ctx, op, http.MethodGet, c.widgetPath(widgetID, "/threads/chat/"), token, nil)
	if err != nil {
		return nil, err
	}
	out, err := threads.DecodeThreads(body)
	if err != nil {
		return nil, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return out, nil
}

func (c *Client) CreateThread(ctx context.Context, widgetID, token, message string) (threads.CreateThreadResponse, error) {
	const op = "create thread"
	body, err := c.do(ctx, op, http.MethodPost, c.widgetPath(widgetID, "/threads/chat/"), token,
		threads.MessageBody{Message: message})
	if err != nil {
		return threads.CreateThreadResponse{}, err
	}
	out, err := threads.DecodeCreateThread(body)
	if err != nil {
		return threads.CreateThreadResponse{}, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context, widgetID, token, threadID string) ([]threads.Chat, error) {
	const op = "list messages"
	body, err := c.do(ctx, op, http.MethodGet, c.threadPath(widgetID, threadID), token, nil)
	if err != nil {
		return nil, err
	}
	out, err := threads.DecodeChats(body)
	if err != nil {
		return nil, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, widgetID, token, threadID, message string) (threads.Chat, error) {
	const op = "send message"
	body, err := c.do(ctx, op, http.MethodPost, c.threadPath(widgetID, threadID), token,
		threads.MessageBody{Message: message})
	if err != nil {
		return threads.Chat{}, err
	}
	out, err := threads.DecodeChat(body)
	if err != nil {
		return threads.Chat{}, &widgeterr.SchemaValidationError{Op: op, Err: err}
	}
	return out, nil
}

func (c *Client) widgetPath(widgetID, suffix string) string {
	return fmt.Sprintf("%s/widgets/%s%s", c.baseURL, widgetID, suffix)
}

func (c *Client) threadPath(widgetID, threadID string) string {
	return c.widgetPath(widgetID, "/threads/chat/"+threadID+"/messages/")
}

// do sends one request and returns the body of a 2xx response. Anything else is a NetworkError.
func (c *Client) do(ctx context.Context, op, method, url, token string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &widgeterr.NetworkError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.API().Warn("Backend request failed", "op", op, "url", url, "error", err)
		return nil, &widgeterr.NetworkError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &widgeterr.NetworkError{Op: op, URL: url, Err: err}
	}
	c.logger.API().Debug("Backend request completed", "op", op, "status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &widgeterr.NetworkError{Op: op, URL: url, Status: resp.StatusCode}
	}
	return body, nil
}
