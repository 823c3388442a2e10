// Package pdf prints HTML pages to PDF with a headless Chrome.
package pdf

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Rasterizer turns a complete HTML page into a PDF.
type Rasterizer interface {
	Render(ctx context.Context, page string) ([]byte, error)
}

// Chrome is a Rasterizer driving a headless Chrome. The browser is started on
// the first render and reused afterwards.
type Chrome struct {
	bin        string
	controlURL string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewChrome returns a rasterizer. bin is the Chrome binary to launch; when
// empty the launcher looks for one, downloading it if needed. controlURL
// connects to an already running browser instead.
func NewChrome(bin, controlURL string) *Chrome {
	return &Chrome{bin: bin, controlURL: controlURL}
}

func (c *Chrome) ensureBrowser() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		return c.browser, nil
	}

	controlURL := c.controlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).Leakless(false)
		if c.bin != "" {
			l = l.Bin(c.bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, errl.Errorf("launching chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, errl.Errorf("connect to chrome: %w", err)
	}
	slog.Info("Chrome connected", "url", controlURL)
	c.browser = browser
	return browser, nil
}

// Render loads page into a fresh tab and prints it using the page's own CSS
// page size.
func (c *Chrome) Render(ctx context.Context, page string) ([]byte, error) {
	browser, err := c.ensureBrowser()
	if err != nil {
		return nil, err
	}

	p, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errl.Errorf("opening tab: %w", err)
	}
	defer p.Close()

	if err := p.SetDocumentContent(page); err != nil {
		return nil, errl.Errorf("loading document: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, errl.Errorf("waiting for document: %w", err)
	}

	r, err := p.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, errl.Errorf("printing to pdf: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errl.Errorf("reading pdf stream: %w", err)
	}
	return data, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	return err
}
