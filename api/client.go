package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Perafan18/chain-forge/version"
)

// Client is a typed HTTP client over the server's routes.
type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAPIKey sends the key on every request; the server only checks it on
// mutating ones.
func WithAPIKey(key string) Option {
	return func(cl *Client) {
		cl.apiKey = key
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("baseURL must not be empty")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cl := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(cl)
	}
	return cl, nil
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return HealthResponse{}, err
	}
	return out, nil
}

func (c *Client) Version(ctx context.Context) (version.Info, error) {
	var out version.Info
	if err := c.doJSON(ctx, http.MethodGet, "/version", nil, &out); err != nil {
		return version.Info{}, err
	}
	return out, nil
}

func (c *Client) CreateChain(ctx context.Context) (CreateChainResponse, error) {
	var out CreateChainResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chains", nil, &out); err != nil {
		return CreateChainResponse{}, err
	}
	return out, nil
}

func (c *Client) ListChains(ctx context.Context) ([]string, error) {
	var out ChainListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/chains", nil, &out); err != nil {
		return nil, err
	}
	return out.Chains, nil
}

func (c *Client) GetChain(ctx context.Context, id string) (ChainResponse, error) {
	var out ChainResponse
	if err := c.doJSON(ctx, http.MethodGet, "/chains/"+id, nil, &out); err != nil {
		return ChainResponse{}, err
	}
	return out, nil
}

func (c *Client) ValidateChain(ctx context.Context, id string) (ValidateResponse, error) {
	var out ValidateResponse
	if err := c.doJSON(ctx, http.MethodGet, "/chains/"+id+"/validate", nil, &out); err != nil {
		return ValidateResponse{}, err
	}
	return out, nil
}

// AddBlock mines data onto the chain. The request blocks until mining
// completes, so pair high difficulties with a generous http.Client timeout.
func (c *Client) AddBlock(ctx context.Context, id, data string, difficulty int) (BlockResponse, error) {
	var out BlockResponse
	req := AddBlockRequest{Data: data, Difficulty: difficulty}
	if err := c.doJSON(ctx, http.MethodPost, "/chains/"+id+"/blocks", &req, &out); err != nil {
		return BlockResponse{}, err
	}
	return out, nil
}

func (c *Client) GetBlock(ctx context.Context, id string, index int) (BlockResponse, error) {
	var out BlockResponse
	path := "/chains/" + id + "/blocks/" + strconv.Itoa(index)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return BlockResponse{}, err
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && apiErr.Error != "" {
			return fmt.Errorf("http %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("http %s %s: status %d", method, path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
