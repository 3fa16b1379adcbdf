package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redactyl/livegrab/internal/types"
)

// HTTP streams the body of a GET request.
type HTTP struct {
	URL       string
	Header    http.Header
	Client    *http.Client
	ChunkSize int
	Carry     int
}

// NewHTTP returns a reader for url with a client that never times out on
// its own; the capture deadline bounds it.
func NewHTTP(url string) *HTTP {
	return &HTTP{URL: url, Client: &http.Client{Timeout: 0}, ChunkSize: DefaultChunkSize, Carry: DefaultCarry}
}

func (h *HTTP) Descriptor() types.SourceDescriptor {
	return types.SourceDescriptor{Kind: types.SourceHTTP, Location: h.URL}
}

func (h *HTTP) Open(ctx context.Context) (Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	desc := h.Descriptor()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		desc.Metadata = map[string]string{"content_type": ct}
	}
	desc.Metadata = withFetched(desc.Metadata)
	return newStream(resp.Body, desc, h.ChunkSize, h.Carry), nil
}

func withFetched(m map[string]string) map[string]string {
	if m == nil {
		m = map[string]string{}
	}
	m["fetched_at"] = time.Now().UTC().Format(time.RFC3339)
	return m
}
