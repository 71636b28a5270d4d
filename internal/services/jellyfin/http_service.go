package jellyfin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"showseed/internal/config"
)

const refreshTimeout = 30 * time.Second

// HTTPDoer is the subset of *http.Client used for library refreshes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// refreshingService copies like SimpleService and then asks Jellyfin to
// rescan its libraries.
type refreshingService struct {
	*SimpleService
	endpoint  string
	token     string
	userAgent string
	client    HTTPDoer
}

// NewConfiguredService returns a refreshing service when Jellyfin is enabled
// with a URL and API key, and a plain SimpleService otherwise.
func NewConfiguredService(cfg *config.Config) Service {
	if cfg == nil {
		return NewSimpleService(false)
	}
	simple := NewSimpleService(cfg.Library.OverwriteExisting)
	if !cfg.Jellyfin.Enabled || strings.TrimSpace(cfg.Jellyfin.URL) == "" || strings.TrimSpace(cfg.Jellyfin.APIKey) == "" {
		return simple
	}
	svc := newRefreshingService(simple, cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, &http.Client{Timeout: refreshTimeout})
	svc.userAgent = cfg.Torrent.UserAgent
	return svc
}

// NewHTTPService wraps simple with a refresh against the Jellyfin server at
// baseURL.
func NewHTTPService(simple *SimpleService, baseURL, apiKey string, client HTTPDoer) Service {
	return newRefreshingService(simple, baseURL, apiKey, client)
}

func newRefreshingService(simple *SimpleService, baseURL, apiKey string, client HTTPDoer) *refreshingService {
	return &refreshingService{
		SimpleService: simple,
		endpoint:      strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/Library/Refresh",
		token:         strings.TrimSpace(apiKey),
		client:        client,
	}
}

func (s *refreshingService) Refresh(ctx context.Context) error {
	if s.client == nil || s.token == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("jellyfin refresh request: %w", err)
	}
	req.Header.Set("X-Emby-Token", s.token)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin refresh: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("jellyfin refresh: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
