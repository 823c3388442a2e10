package html

import (
	"bytes"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/evidenceledger/docgen/internal/errl"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

// RendererFiber renders the page views of the web server.
type RendererFiber struct {
	engine *html.Engine
}

// Templates renders documents outside of any request.
type Templates struct {
	engine *html.Engine
}

// NewRendererFiber creates a new HTML renderer.
// It supports both embedded templates (in viewsfs) and external templates (in extDir).
// If extDir exists, the templates are loaded from there and reload controls whether
// they are re-read on every render. Otherwise the templates are loaded from viewsfs.
func NewRendererFiber(reload bool, viewsfs fs.FS, extDir string, extension string, funcs map[string]any) (*RendererFiber, error) {

	engine, err := newEngine(reload, viewsfs, extDir, extension, funcs)
	if err != nil {
		return nil, errl.Error(err)
	}

	return &RendererFiber{engine: engine}, nil
}

// NewTemplates loads a set of embedded templates with the given helper functions.
func NewTemplates(fsys fs.FS, extension string, funcs map[string]any) (*Templates, error) {

	engine, err := newEngine(false, fsys, "", extension, funcs)
	if err != nil {
		return nil, errl.Error(err)
	}

	return &Templates{engine: engine}, nil
}

func newEngine(reload bool, viewsfs fs.FS, extDir string, extension string, funcs map[string]any) (*html.Engine, error) {

	var engine *html.Engine

	// Check if extDir exists in the os file system
	fi, err := os.Stat(extDir)
	if extDir != "" && err == nil && fi.IsDir() {
		slog.Info("Using external HTML templates", "dir", extDir)
		engine = html.NewFileSystem(http.Dir(extDir), extension)
	} else {
		engine = html.NewFileSystem(http.FS(viewsfs), extension)
	}
	engine.Reload(reload)

	for name, fn := range funcs {
		engine.AddFunc(name, fn)
	}

	if err := engine.Load(); err != nil {
		return nil, errl.Errorf("failed to load HTML templates: %w", err)
	}

	for _, tpl := range engine.Templates.Templates() {
		slog.Debug("Loaded template", "name", tpl.Name())
	}

	return engine, nil
}

// ResponseSecurityHeadersFiber sets the security headers for the response according to best practices
func ResponseSecurityHeadersFiber(c *fiber.Ctx) {

	c.Set("Content-Security-Policy", "frame-ancestors 'none';")
	c.Set("X-Frame-Options", "DENY")
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
	c.Set("Cross-Origin-Opener-Policy", "same-origin")
	c.Set("Cross-Origin-Resource-Policy", "same-site")
	c.Set("Permissions-Policy", "microphone=(), geolocation=(), payment=(), interest-cohort=()")
	c.Set("X-Powered-By", "webserver")

}

func (h *RendererFiber) Render(c *fiber.Ctx, templateName string, data map[string]any, layout ...string) error {

	c.Set("Content-Type", "text/html; charset=utf-8")
	ResponseSecurityHeadersFiber(c)

	out := &bytes.Buffer{}

	if err := h.engine.Render(out, templateName, data, layout...); err != nil {
		slog.Error("Error rendering template",
			slog.String("template", templateName),
			slog.String("error", err.Error()),
		)
		return fiber.NewError(fiber.StatusInternalServerError, "rendering response")
	}

	return c.Send(out.Bytes())

}

// Execute renders templateName into a string.
func (t *Templates) Execute(templateName string, data map[string]any) (string, error) {

	out := &bytes.Buffer{}
	if err := t.engine.Render(out, templateName, data); err != nil {
		return "", errl.Errorf("rendering %s: %w", templateName, err)
	}
	return out.String(), nil

}
