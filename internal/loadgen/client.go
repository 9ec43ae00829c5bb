package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/SmitUplenchwar2687/Stall/internal/bench"
)

// Target is what the runner drives. Client talks to a stall server over
// HTTP; Direct calls an in-process engine.
type Target interface {
	Read(ctx context.Context, id int64, sleepMs int) (bench.ReadResult, error)
	Increment(ctx context.Context, req bench.IncrementRequest, sleepMs int) (bench.IncrementResult, error)
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Kind    string `json:"kind"`
	ID      *int64 `json:"id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// Client calls the /api/db endpoints of a stall server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil hc gets a client with a
// generous timeout, since induced delays can be long.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Read(ctx context.Context, id int64, sleepMs int) (bench.ReadResult, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(id, 10))
	q.Set("sleepMs", strconv.Itoa(sleepMs))

	var res bench.ReadResult
	err := c.do(ctx, http.MethodGet, "/api/db/read?"+q.Encode(), nil, &res)
	return res, err
}

func (c *Client) Increment(ctx context.Context, req bench.IncrementRequest, sleepMs int) (bench.IncrementResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return bench.IncrementResult{}, errors.Wrap(err, "encoding request")
	}
	var res bench.IncrementResult
	err = c.do(ctx, http.MethodPost, "/api/db/tx?sleepMs="+strconv.Itoa(sleepMs), body, &res)
	return res, err
}

// Health returns nil when the server and its database answer /health.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Kind == "" {
			apiErr.Kind = "http_" + strconv.Itoa(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

// Engine is the in-process workload engine. bench.Service implements it.
type Engine interface {
	ReadWithDelay(ctx context.Context, id int64, delayMs int) (bench.ReadResult, error)
	IncrementInTransaction(ctx context.Context, req bench.IncrementRequest, delayMs int) (bench.IncrementResult, error)
}

// Direct adapts an Engine to Target so a plan can run without HTTP.
func Direct(e Engine) Target {
	return direct{e}
}

type direct struct{ e Engine }

func (d direct) Read(ctx context.Context, id int64, sleepMs int) (bench.ReadResult, error) {
	return d.e.ReadWithDelay(ctx, id, sleepMs)
}

func (d direct) Increment(ctx context.Context, req bench.IncrementRequest, sleepMs int) (bench.IncrementResult, error) {
	return d.e.IncrementInTransaction(ctx, req, sleepMs)
}

// ErrorKind names the failure class of err as reported to the caller:
// the server's kind for API errors, the engine's taxonomy otherwise.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return string(bench.KindOf(err))
}
