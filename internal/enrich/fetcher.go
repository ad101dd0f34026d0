// Package enrich retrieves and extracts a summary of the academy's public
// page. Failure is always returned as data: the router must be able to
// treat an unreachable or unparseable source as a plain result.
package enrich

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ektifabot/internal/domain"
)

const (
	fetchTimeout  = 10 * time.Second
	fetchMaxBytes = 512 * 1024
	userAgent     = "EktifaBot/1.0"
)

// Renderer produces the post-script HTML of a page. Implemented by the
// headless-Chrome browser in this package; optional.
type Renderer interface {
	RenderHTML(ctx context.Context, url string) (string, error)
}

// Fetcher implements domain.Fetcher against a single configured source URL.
type Fetcher struct {
	sourceURL string
	maxLen    int
	client    *http.Client
	renderer  Renderer
	logger    *slog.Logger
}

type FetcherConfig struct {
	SourceURL string
	MaxLen    int // max summary characters
	Renderer  Renderer
	Logger    *slog.Logger
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 3500
	}
	return &Fetcher{
		sourceURL: cfg.SourceURL,
		maxLen:    cfg.MaxLen,
		client:    &http.Client{Timeout: fetchTimeout},
		renderer:  cfg.Renderer,
		logger:    cfg.Logger,
	}
}

// Fetch retrieves the source page and extracts a bounded summary plus an
// optional image reference. Any transport or extraction failure comes back
// as OK=false with a human-readable detail.
func (f *Fetcher) Fetch(ctx context.Context) domain.EnrichmentResult {
	page, err := f.get(ctx)
	if err != nil {
		f.logger.Warn("enrichment fetch failed", "url", f.sourceURL, "err", err)
		return domain.EnrichmentResult{OK: false, ErrorDetail: err.Error()}
	}

	body, imageRef := extractSummary(page)

	// A page whose content is assembled by scripts can come back empty from
	// a static GET; retry through the headless browser when configured.
	if body == "" && f.renderer != nil {
		rendered, rerr := f.renderer.RenderHTML(ctx, f.sourceURL)
		if rerr != nil {
			f.logger.Warn("rendered fetch failed", "url", f.sourceURL, "err", rerr)
		} else {
			body, imageRef = extractSummary(rendered)
		}
	}

	if body == "" {
		return domain.EnrichmentResult{OK: false, ErrorDetail: "no extractable content at " + f.sourceURL}
	}

	return domain.EnrichmentResult{
		Body:     truncateSummary(body, f.maxLen),
		ImageRef: imageRef,
		OK:       true,
	}
}

func (f *Fetcher) get(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", f.sourceURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, f.sourceURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}
