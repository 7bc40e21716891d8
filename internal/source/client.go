package source

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"context"
	"log/slog"

	"github.com/worklens/worklens/internal/faults"
	"github.com/worklens/worklens/internal/tokens"
)

// Client is the HTTP client shared by adapter implementations. It attaches the
// bearer credential, spaces consecutive requests by a minimum interval, emits a
// paired request/response trace at debug level, and maps failures into the
// fault taxonomy.
type Client struct {
	http        *http.Client
	tokens      tokens.Provider
	logger      *slog.Logger
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// NewClient builds a client for one remote host.
func NewClient(provider tokens.Provider, minInterval time.Duration, logger *slog.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: 30 * time.Second},
		tokens:      provider,
		logger:      logger,
		minInterval: minInterval,
	}
}

// GetJSON issues a GET request and decodes the JSON response body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	body, _, err := c.get(ctx, rawURL, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return faults.Wrap(err, faults.KindDataProcessing, "malformed response payload").
			With("url", rawURL)
	}
	return nil
}

// GetJSONPaged issues a GET request and additionally returns the value of the
// named response header, which paginated APIs use to point at the next page.
func (c *Client) GetJSONPaged(ctx context.Context, rawURL string, query url.Values, header string, out any) (string, error) {
	body, resp, err := c.get(ctx, rawURL, query)
	if err != nil {
		return "", err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return "", faults.Wrap(err, faults.KindDataProcessing, "malformed response payload").
			With("url", rawURL)
	}
	return resp.Header.Get(header), nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) ([]byte, *http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, err
	}

	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, faults.Wrap(err, faults.KindValidation, "failed to build request").
			With("url", rawURL)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	c.throttle(ctx)

	c.logger.Debug("sending request", "method", req.Method, "url", rawURL)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, faults.Wrap(err, faults.KindNetwork, "request failed").
			With("url", rawURL)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Milliseconds()
	c.logger.Debug(fmt.Sprintf("status %d (%dms)", resp.StatusCode, elapsed), "url", rawURL)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil, nil, faults.FromHTTPStatus(resp.StatusCode, rawURL, retryAfter(resp))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, faults.Wrap(err, faults.KindNetwork, "failed to read response body").
			With("url", rawURL)
	}

	return body, resp, nil
}

// throttle enforces the minimum interval between consecutive requests to this
// host. Requests through one client are therefore strictly sequential.
func (c *Client) throttle(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.minInterval <= 0 {
		c.lastRequest = time.Now()
		return
	}

	wait := c.minInterval - time.Since(c.lastRequest)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
}

func retryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}
