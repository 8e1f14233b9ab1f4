// Package remote implements the engine's Store contract against the notewire
// backend: versioned reads/writes over HTTP and a websocket change feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"notewire/internal/engine"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	defaultMaxRetries  = 4
)

// Client holds the transport state shared by every collection: base URL,
// bearer token and the device id the server uses to suppress echo events.
type Client struct {
	baseURL    string
	token      string
	deviceID   string
	maxRetries uint64
	http       *http.Client
}

func NewClient(baseURL, token, deviceID string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		deviceID:   deviceID,
		maxRetries: defaultMaxRetries,
		http:       &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// envelope mirrors the server's JSON response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type putRequest[T any] struct {
	Entity          T     `json:"entity"`
	ExpectedVersion int64 `json:"expected_version"`
}

// Collection binds a Client to one server collection and entity type. It
// satisfies engine.Store[T].
type Collection[T engine.Entity] struct {
	client *Client
	name   string
}

func NewCollection[T engine.Entity](c *Client, name string) *Collection[T] {
	return &Collection[T]{client: c, name: name}
}

func (col *Collection[T]) FetchAll(ctx context.Context) ([]T, error) {
	var docs []T
	err := col.client.retry(ctx, func() error {
		env, status, err := col.client.do(ctx, http.MethodGet, col.path(""), nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return statusError(col.name, status, env)
		}
		docs = docs[:0]
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &docs); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode %s list: %w", col.name, err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (col *Collection[T]) Put(ctx context.Context, doc T, expectedVersion int64) (T, error) {
	var saved T
	body := putRequest[T]{Entity: doc, ExpectedVersion: expectedVersion}

	err := col.client.retry(ctx, func() error {
		env, status, err := col.client.do(ctx, http.MethodPut, col.path(doc.EntityID()), body)
		if err != nil {
			return err
		}

		switch status {
		case http.StatusOK, http.StatusCreated:
			if err := json.Unmarshal(env.Data, &saved); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode saved %s: %w", col.name, err))
			}
			return nil

		case http.StatusConflict:
			var remote T
			if err := json.Unmarshal(env.Data, &remote); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode conflict copy: %w", err))
			}
			return backoff.Permanent(&engine.ConflictError[T]{Remote: remote})

		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return backoff.Permanent(&engine.ValidationError{Reason: env.Error})

		default:
			return statusError(col.name, status, env)
		}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return saved, nil
}

func (col *Collection[T]) Delete(ctx context.Context, id string) error {
	return col.client.retry(ctx, func() error {
		env, status, err := col.client.do(ctx, http.MethodDelete, col.path(id), nil)
		if err != nil {
			return err
		}
		// absent id is a successful delete
		if status == http.StatusOK || status == http.StatusNotFound {
			return nil
		}
		return statusError(col.name, status, env)
	})
}

func (col *Collection[T]) path(id string) string {
	if id == "" {
		return "/api/v1/" + col.name
	}
	return "/api/v1/" + col.name + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, backoff.Permanent(fmt.Errorf("failed to encode request: %w", err))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Device-ID", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return &env, resp.StatusCode, nil
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(op, bo)
}

func statusError(collection string, status int, env *envelope) error {
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := fmt.Errorf("%s request failed: %d %s", collection, status, msg)
	// client errors other than the ones mapped above will not heal by retry
	if status >= 400 && status < 500 {
		return backoff.Permanent(err)
	}
	return err
}
