// Package headless drives a headless Chrome to collect links that only appear
// after scrolling and clicking "load more".
package headless

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	scrollScript = `window.scrollTo(0, document.body.scrollHeight);`
	linksScript  = `Array.from(document.querySelectorAll("a[href*='/video/']")).map(a => a.href)`
)

// Config controls the harvester.
type Config struct {
	Headless          bool
	UserAgent         string
	Headers           http.Header
	NavigationTimeout time.Duration
	// Target stops the harvest once this many links are collected.
	Target int
	// ScrollPause is waited after every scroll and after every click.
	ScrollPause time.Duration
	// IdlePause is waited after a scroll that produced nothing new.
	IdlePause time.Duration
	// MaxIdleScrolls ends the harvest after this many consecutive scrolls
	// without new links.
	MaxIdleScrolls int
	// LoadMoreClass is the class of the "Xem thêm" button.
	LoadMoreClass string
}

// Harvester collects video page links from an infinitely scrolling hub.
type Harvester struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewHarvester starts a Chrome allocator. Call Close when done.
func NewHarvester(cfg Config, logger *zap.Logger) (*Harvester, error) {
	if cfg.Target <= 0 {
		return nil, fmt.Errorf("target must be > 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ScrollPause <= 0 {
		cfg.ScrollPause = 2 * time.Second
	}
	if cfg.MaxIdleScrolls <= 0 {
		cfg.MaxIdleScrolls = 5
	}
	if cfg.LoadMoreClass == "" {
		cfg.LoadMoreClass = "view-more-seciton"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Harvester{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context.
func (h *Harvester) Close() {
	h.allocCancel()
}

// Harvest opens hubURL and scrolls until Target links are collected or the
// page stops yielding new ones. Links are returned in discovery order. A
// failure mid-harvest returns what was collected so far with the error.
func (h *Harvester) Harvest(ctx context.Context, hubURL string) ([]string, error) {
	taskCtx, taskCancel := chromedp.NewContext(h.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	h.logger.Info("opening video hub", zap.String("url", hubURL))
	navCtx, navCancel := context.WithTimeout(taskCtx, h.cfg.NavigationTimeout)
	err := chromedp.Run(navCtx,
		h.networkSetupAction(),
		chromedp.Navigate(hubURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	navCancel()
	if err != nil {
		return nil, fmt.Errorf("chromedp navigate: %w", err)
	}

	set := newLinkSet(hubURL)
	idle := 0
	for set.Len() < h.cfg.Target && idle < h.cfg.MaxIdleScrolls {
		if err := chromedp.Run(taskCtx, chromedp.Evaluate(scrollScript, nil), chromedp.Sleep(h.cfg.ScrollPause)); err != nil {
			return set.Links(), fmt.Errorf("scroll: %w", err)
		}
		if clicked, err := h.clickLoadMore(taskCtx); err != nil {
			h.logger.Debug("load more click failed", zap.Error(err))
		} else if clicked {
			h.logger.Debug("clicked load more")
		}

		var hrefs []string
		if err := chromedp.Run(taskCtx, chromedp.Evaluate(linksScript, &hrefs)); err != nil {
			return set.Links(), fmt.Errorf("collect links: %w", err)
		}
		added := set.Add(hrefs)
		h.logger.Info("collected video links",
			zap.Int("total", set.Len()),
			zap.Int("target", h.cfg.Target),
			zap.Int("new", added),
		)
		if added > 0 {
			idle = 0
			continue
		}
		idle++
		if h.cfg.IdlePause > 0 {
			if err := chromedp.Run(taskCtx, chromedp.Sleep(h.cfg.IdlePause)); err != nil {
				return set.Links(), fmt.Errorf("idle pause: %w", err)
			}
		}
	}
	return set.Links(), nil
}

// clickLoadMore clicks the first visible load-more button via script.
func (h *Harvester) clickLoadMore(ctx context.Context) (bool, error) {
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickScript(h.cfg.LoadMoreClass), &clicked)); err != nil {
		return false, err
	}
	if clicked {
		if err := chromedp.Run(ctx, chromedp.Sleep(h.cfg.ScrollPause)); err != nil {
			return true, err
		}
	}
	return clicked, nil
}

func (h *Harvester) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if h.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(h.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(h.cfg.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(h.cfg.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// clickScript returns JS that clicks the first element of class cls when it
// is rendered, and reports whether it did.
func clickScript(cls string) string {
	return fmt.Sprintf(`(() => {
  const el = document.getElementsByClassName(%q)[0];
  if (!el || el.offsetParent === null) { return false; }
  el.click();
  return true;
})()`, cls)
}

// linkSet keeps harvested links unique and ordered.
type linkSet struct {
	hub   string
	seen  map[string]struct{}
	order []string
}

func newLinkSet(hubURL string) *linkSet {
	return &linkSet{hub: hubURL, seen: make(map[string]struct{})}
}

// Add keeps hrefs that point at a video page (not the hub listing itself) and
// returns how many were new.
func (s *linkSet) Add(hrefs []string) int {
	added := 0
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" || !strings.Contains(href, "/video/") || s.isHub(href) {
			continue
		}
		if _, ok := s.seen[href]; ok {
			continue
		}
		s.seen[href] = struct{}{}
		s.order = append(s.order, href)
		added++
	}
	return added
}

// isHub reports whether href is the hub page itself, ignoring scheme, query,
// fragment and a trailing slash.
func (s *linkSet) isHub(href string) bool {
	hub, err := url.Parse(s.hub)
	if err != nil {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, hub.Host) &&
		strings.TrimRight(u.Path, "/") == strings.TrimRight(hub.Path, "/")
}

func (s *linkSet) Len() int { return len(s.order) }

func (s *linkSet) Links() []string {
	return append([]string(nil), s.order...)
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
