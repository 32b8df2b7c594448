package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrRenderTimeout is returned when the page did not finish loading
// inside the render budget.
var ErrRenderTimeout = errors.New("page render timed out")

// Renderer returns the final rendered HTML of a URL. The adapter for
// JS-walled sources depends on this interface so tests can stub it.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer drives a headless Chrome through chromedp, with a
// rotated user agent and the usual automation fingerprints disabled.
type ChromeRenderer struct {
	userAgents *UserAgentPool
	timeout    time.Duration
}

func NewChromeRenderer(userAgents *UserAgentPool, timeout time.Duration) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChromeRenderer{userAgents: userAgents, timeout: timeout}
}

func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(r.userAgents.Random()),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrRenderTimeout
		}
		return "", err
	}
	return html, nil
}
