package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/restock/internal/domain/model"
	"github.com/okian/restock/internal/domain/types"
)

// maxResponseBytes bounds how much of a response body the probe reads.
const maxResponseBytes = 64 << 20

// catalogView mirrors the GET /catalog body.
type catalogView struct {
	Items   []model.EnrichedItem `json:"items"`
	Count   int                  `json:"count"`
	Summary types.Summary        `json:"summary"`
}

type health struct {
	Status          string `json:"status"`
	ClassifierReady bool   `json:"classifierReady"`
}

// client issues GETs against the service under test.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// getJSON fetches path with params and decodes the body into v.
func (c *client) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d: %s", ErrUnexpectedStatus, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *client) catalog(ctx context.Context, params url.Values) (catalogView, error) {
	var view catalogView
	err := c.getJSON(ctx, "/catalog", params, &view)
	return view, err
}
