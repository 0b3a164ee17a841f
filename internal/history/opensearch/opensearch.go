// Package opensearch indexes history events as documents over the REST API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/spawnd/internal/history"
)

const requestTimeout = 5 * time.Second

type Sink struct {
	http     *http.Client
	endpoint string
}

// New targets <baseURL>/<index>/_doc.
func New(baseURL, index string) *Sink {
	return &Sink{
		http:     &http.Client{Timeout: requestTimeout},
		endpoint: strings.TrimRight(baseURL, "/") + "/" + index + "/_doc",
	}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Type, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(doc))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	reason, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	if msg := strings.TrimSpace(string(reason)); msg != "" {
		return fmt.Errorf("opensearch index %s: status %d: %s", s.endpoint, resp.StatusCode, msg)
	}
	return fmt.Errorf("opensearch index %s: status %d", s.endpoint, resp.StatusCode)
}
