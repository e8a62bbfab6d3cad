package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/phanxgames/plaque"
)

// Client talks to a template server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ plaque.TemplateStore = (*Client)(nil)

// NewClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

type templateEnvelope struct {
	Template plaque.Template `json:"template"`
}

type listEnvelope struct {
	Templates []plaque.Template `json:"templates"`
}

func (c *Client) Create(ctx context.Context, t plaque.Template) (plaque.Template, error) {
	var out templateEnvelope
	if err := c.do(ctx, http.MethodPost, "/templates", t, &out); err != nil {
		return plaque.Template{}, err
	}
	return out.Template, nil
}

func (c *Client) List(ctx context.Context) ([]plaque.Template, error) {
	var out listEnvelope
	if err := c.do(ctx, http.MethodGet, "/templates", nil, &out); err != nil {
		return nil, err
	}
	return out.Templates, nil
}

func (c *Client) Get(ctx context.Context, id string) (plaque.Template, error) {
	var out templateEnvelope
	if err := c.do(ctx, http.MethodGet, "/templates/"+url.PathEscape(id), nil, &out); err != nil {
		return plaque.Template{}, err
	}
	return out.Template, nil
}

func (c *Client) Update(ctx context.Context, t plaque.Template) (plaque.Template, error) {
	var out templateEnvelope
	if err := c.do(ctx, http.MethodPut, "/templates/"+url.PathEscape(t.ID), t, &out); err != nil {
		return plaque.Template{}, err
	}
	return out.Template, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/templates/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("store: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("store: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&apiErr)
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", ErrInvalid, apiErr.Error)
		}
		return fmt.Errorf("store: %s %s: %s", method, path, apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("store: decode response: %w", err)
	}
	return nil
}
