package repomd

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/nn1a/rpm-vec/internal/rpmerr"
)

// Decompress dispatches on file extension: .gz decodes as gzip, .zst/.zstd
// decodes as zstd, anything else passes through unchanged.
func Decompress(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return decompressGzip(data)
	case ".zst", ".zstd":
		return decompressZstd(data)
	default:
		return data, nil
	}
}

func decompressGzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, rpmerr.New(rpmerr.CompressionError, "gzip", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, rpmerr.New(rpmerr.CompressionError, "gzip", err)
	}
	return out, nil
}

func decompressZstd(data []byte) ([]byte, error) {
	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, rpmerr.New(rpmerr.CompressionError, "zstd", err)
	}
	defer zr.Close()
	out, err := zr.DecodeAll(data, nil)
	if err != nil {
		return nil, rpmerr.New(rpmerr.CompressionError, "zstd", err)
	}
	return out, nil
}

// FetchLocal reads repomd/primary/filelists content from a local file
// path, used by single-shot indexing outside of the sync daemon.
func FetchLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rpmerr.New(rpmerr.StorageError, path, err)
	}
	return data, nil
}

// Fetcher retrieves rpm-md documents over HTTP(S). It is the default
// implementation of the "HTTP fetch primitive" external collaborator
// named in the core's interface contract.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher builds a Fetcher with the given per-request deadline.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: resty.New().SetTimeout(timeout),
	}
}

// Get fetches url and returns its raw bytes, honoring ctx for
// cancellation/deadline as required by the sync task's suspension points.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, rpmerr.New(rpmerr.NetworkError, url, err)
	}
	if resp.IsError() {
		return nil, rpmerr.New(rpmerr.NetworkError, url, fmt.Errorf("http status %d", resp.StatusCode()))
	}
	return resp.Body(), nil
}
