// Package embedclient is the concrete Embedder the binary wires in:
// an HTTP client for a local embedding server. Per spec.md §6 the
// embedding model loader itself — weights, forward pass, device
// selection — is an external collaborator; this package only owns the
// text→vector HTTP call the embedding builder and search planner
// consume through embedding.Embedder.
package embedclient

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// Client calls a local embedding server's batch-embed endpoint.
type Client struct {
	http      *resty.Client
	endpoint  string
	modelName string
	dim       int
}

// New builds a Client. endpoint is the embedding server's base URL
// (e.g. "http://127.0.0.1:8090"); modelName/dim identify the model for
// the embedding-model-identity guard in internal/vector.
func New(endpoint, modelName string, dim int) *Client {
	return &Client{
		http:      resty.New(),
		endpoint:  endpoint,
		modelName: modelName,
		dim:       dim,
	}
}

// Name identifies the model for vector.CheckModelIdentity.
func (c *Client) Name() string { return c.modelName }

// Dim is the model's output vector dimension.
func (c *Client) Dim() int { return c.dim }

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// EmbedBatch posts texts to the embedding server and returns one
// vector per input, in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out embedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embedRequest{Texts: texts}).
		SetResult(&out).
		Post(c.endpoint + "/embed")
	if err != nil {
		return nil, rpmerr.New(rpmerr.EmbedError, c.endpoint, err)
	}
	if resp.IsError() {
		return nil, rpmerr.New(rpmerr.EmbedError, c.endpoint, fmt.Errorf("http status %d", resp.StatusCode()))
	}
	if len(out.Vectors) != len(texts) {
		return nil, rpmerr.New(rpmerr.EmbedError, c.endpoint, fmt.Errorf("expected %d vectors, got %d", len(texts), len(out.Vectors)))
	}
	return out.Vectors, nil
}
