// Package books queries the Google Books volumes API.
package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"

	"authform/models"
)

const DefaultBaseURL = "https://www.googleapis.com/books/v1"

// ErrUpstream wraps every failure to obtain a usable answer from the API.
var ErrUpstream = errors.New("google books request failed")

type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient returns a client for the API rooted at baseURL. A nil httpClient
// means a pooled go-cleanhttp client, a nil logger means zap.NewNop.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo models.Volume `json:"volumeInfo"`
	} `json:"items"`
}

// Search runs a free text volume query. A query without hits returns an empty
// slice and no error.
func (c *Client) Search(ctx context.Context, query string) ([]models.Volume, error) {
	u := c.baseURL + "/volumes?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("google books returned an error",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	volumes := make([]models.Volume, 0, len(out.Items))
	for _, item := range out.Items {
		v := item.VolumeInfo
		if v.Authors == nil {
			v.Authors = []string{}
		}
		volumes = append(volumes, v)
	}
	c.logger.Debug("google books search", zap.String("query", query), zap.Int("hits", len(volumes)))
	return volumes, nil
}

// Lookup searches by title and author.
func (c *Client) Lookup(ctx context.Context, title, author string) ([]models.Volume, error) {
	return c.Search(ctx, fmt.Sprintf("intitle:%s inauthor:%s", title, author))
}
