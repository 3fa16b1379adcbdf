package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redactyl/livegrab/internal/types"
)

// Sink delivers a finished report.
type Sink interface {
	Emit(ctx context.Context, r *types.Report) error
}

// Format selects how a WriterSink renders.
type Format string

const (
	FormatTable Format = "table"
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatSARIF Format = "sarif"
)

// ParseFormat accepts the names of the formats above.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatText, FormatJSON, FormatSARIF:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, text, json or sarif)", s)
}

// WriterSink renders to a writer, normally stdout.
type WriterSink struct {
	W       io.Writer
	Format  Format
	Print   PrintOptions
	Version string
}

func (s *WriterSink) Emit(_ context.Context, r *types.Report) error {
	switch s.Format {
	case FormatJSON:
		return WriteJSON(s.W, r, !s.Print.NoColor && IsTerminal(s.W))
	case FormatSARIF:
		return WriteSARIF(s.W, r, s.Version)
	case FormatText:
		PrintText(s.W, r, s.Print)
		return nil
	default:
		return PrintTable(s.W, r, s.Print)
	}
}

// FileSink writes the report as JSON, readable only by the owner since
// provenance may name sensitive locations.
type FileSink struct {
	Path string
}

func (s *FileSink) Emit(_ context.Context, r *types.Report) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".livegrab-report-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := WriteJSON(tmp, r, false); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

const uploadSchemaVersion = "1"

type uploadEnvelope struct {
	Tool    string        `json:"tool"`
	Version string        `json:"version"`
	Schema  string        `json:"schema_version"`
	Host    string        `json:"host,omitempty"`
	Report  *types.Report `json:"report"`
}

// HTTPSink POSTs the report to a collector.
type HTTPSink struct {
	URL     string
	Token   string
	Version string
	// NoMeta omits the host name from the envelope.
	NoMeta bool
	Client *http.Client
}

func (s *HTTPSink) Emit(ctx context.Context, r *types.Report) error {
	env := uploadEnvelope{Tool: "livegrab", Version: s.Version, Schema: uploadSchemaVersion, Report: r}
	if !s.NoMeta {
		env.Host, _ = os.Hostname()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload status %d", resp.StatusCode)
	}
	return nil
}

// Multi emits to every sink and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, r *types.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
