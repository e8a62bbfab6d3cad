package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/phanxgames/plaque"
)

// Client uploads authoring files to a relay server.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ plaque.ModelUploader = (*Client)(nil)

// NewClient returns a client for the relay at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("relay: parse base url: %w", err)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, http: hc}, nil
}

// UploadModel streams r as the multipart field "file" and returns the
// converted model's absolute URL.
func (c *Client) UploadModel(ctx context.Context, filename string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath("upload").String(), pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay: upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	var body struct {
		URL     string `json:"url"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("relay: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Error == "" {
			body.Error = resp.Status
		}
		if body.Details != "" {
			return "", fmt.Errorf("relay: %s (%s)", body.Error, body.Details)
		}
		return "", fmt.Errorf("relay: %s", body.Error)
	}
	if body.URL == "" {
		return "", fmt.Errorf("relay: response has no url")
	}
	ref, err := url.Parse(body.URL)
	if err != nil {
		return "", fmt.Errorf("relay: parse model url: %w", err)
	}
	return c.base.ResolveReference(ref).String(), nil
}
