package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

const renderTimeout = 30 * time.Second

// Browser renders pages through headless Chrome. Used as the fallback
// Renderer for script-assembled pages.
type Browser struct {
	profileDir string
	logger     *slog.Logger
}

type BrowserConfig struct {
	ProfileDir string // Chrome user data directory; empty uses a throwaway profile
	Logger     *slog.Logger
}

func NewBrowser(cfg BrowserConfig) *Browser {
	return &Browser{
		profileDir: cfg.ProfileDir,
		logger:     cfg.Logger,
	}
}

// RenderHTML navigates to url and returns the document HTML after scripts
// have run.
func (b *Browser) RenderHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.UserAgent(userAgent),
	)
	if b.profileDir != "" {
		if err := os.MkdirAll(b.profileDir, 0o755); err != nil {
			b.logger.Warn("cannot create browser profile dir", "dir", b.profileDir, "err", err)
		} else {
			opts = append(opts, chromedp.UserDataDir(b.profileDir))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, renderTimeout)
	defer timeoutCancel()

	var page string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &page),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return page, nil
}
