package webfetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxChars = 4000
)

// Page is the readable content extracted from a rendered web page.
type Page struct {
	URL      string
	Title    string
	Text     string
	TopImage string
}

// Renderer loads a page and extracts its readable content.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
}

// ChromeRenderer renders pages through a scoped headless Chrome instance.
// The browser lifecycle is fully contained in Render so cancellation or a
// timeout always releases the process.
type ChromeRenderer struct {
	Timeout  time.Duration
	MaxChars int
}

func NewChromeRenderer(timeout time.Duration, maxChars int) *ChromeRenderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &ChromeRenderer{Timeout: timeout, MaxChars: maxChars}
}

func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (Page, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Page{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return Page{URL: pageURL}, err
	}
	text := strings.TrimSpace(article.TextContent)
	if runes := []rune(text); len(runes) > r.MaxChars {
		text = string(runes[:r.MaxChars])
	}

	return Page{
		URL:      pageURL,
		Title:    strings.TrimSpace(article.Title),
		Text:     text,
		TopImage: article.Image,
	}, nil
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("SourceFinder/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
