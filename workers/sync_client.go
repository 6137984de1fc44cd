// workers/sync_client.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// SyncClient reads change feeds from the sync service.
type SyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewSyncClient(baseURL, serviceToken string) *SyncClient {
	return &SyncClient{
		BaseURL: baseURL,
		Token:   serviceToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// getChanges GETs path?since=<RFC3339> and decodes the JSON body into out.
func (c *SyncClient) getChanges(ctx context.Context, path string, since time.Time, out any) error {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid sync service URL %q: %w", c.BaseURL, err)
	}
	endpoint := base.JoinPath(path)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("create request to %s: %w", endpoint, err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("call sync service: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if readErr != nil {
			log.Printf("[SYNC] ⚠️ Failed to read error body from %s: %v", endpoint, readErr)
		}
		return fmt.Errorf("sync service returned %d for %s: %s", resp.StatusCode, path, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sync service response: %w", err)
	}
	return nil
}

// poll runs step immediately and then every interval until ctx is done.
func poll(ctx context.Context, name string, interval time.Duration, step func(context.Context) error) {
	log.Printf("🔁 Starting %s (every %s)", name, interval)
	if err := step(ctx); err != nil {
		log.Printf("⚠️ %s initial run failed: %v", name, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := step(ctx); err != nil {
				log.Printf("❌ %s batch failed: %v", name, err)
			}
		case <-ctx.Done():
			log.Printf("⏹️ %s stopped", name)
			return
		}
	}
}
