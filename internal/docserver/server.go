// Package docserver is the web server of the document generator. It serves
// the form pages, the session API used by the form scripts and the admin
// screens for the company and contact catalogs.
package docserver

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/evidenceledger/docgen/internal/autofill"
	"github.com/evidenceledger/docgen/internal/compose"
	"github.com/evidenceledger/docgen/internal/database"
	"github.com/evidenceledger/docgen/internal/extract"
	"github.com/evidenceledger/docgen/internal/html"
	"github.com/evidenceledger/docgen/internal/session"
	"github.com/evidenceledger/docgen/internal/submit"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/favicon"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config is the part of the configuration used by the web server.
type Config struct {
	Development   bool
	Port          string
	URL           string
	AdminPassword string
	SessionSecret string
	SessionTTL    time.Duration
	// FilesDir is served under /files.
	FilesDir string
}

// Deps are the services the handlers work with.
type Deps struct {
	DB        *database.Database
	Sessions  *session.Manager
	Autofill  *autofill.Controller
	Extractor *extract.Extractor
	Composer  *compose.Composer
	Submit    *submit.Pipeline
}

// Server is the document generator web server.
type Server struct {
	cfg        Config
	httpServer *fiber.App
	htmlRender *html.RendererFiber
	cookies    *sessionCookies

	db        *database.Database
	sessions  *session.Manager
	autofill  *autofill.Controller
	extractor *extract.Extractor
	composer  *compose.Composer
	submit    *submit.Pipeline
}

//go:embed views/*
var viewsfs embed.FS

// New creates the web server and registers all routes.
func New(deps Deps, cfg Config) (*Server, error) {

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	views, err := fs.Sub(viewsfs, "views")
	if err != nil {
		return nil, err
	}

	// The engine to display the HTML screens to the users.
	// In development the templates are re-read from disk on every request.
	htmlrender, err := html.NewRendererFiber(cfg.Development, views, "internal/docserver/views", ".hbs", viewFuncs)
	if err != nil {
		slog.Error("Failed to initialize template engine", "error", err)
		return nil, err
	}

	httpServer := fiber.New(fiber.Config{
		AppName:                 "DocGen",
		ServerHeader:            "DocGen",
		EnableTrustedProxyCheck: false,
		ReadTimeout:             30 * time.Second,
		WriteTimeout:            90 * time.Second, // printing the PDF takes a while
		BodyLimit:               32 * 1024 * 1024,
		ErrorHandler:            errorHandler,
		JSONEncoder:             json.Marshal,
		JSONDecoder:             json.Unmarshal,
	})

	// Recovers from panics anywhere in the stack chain and handles the control to the centralized ErrorHandler
	httpServer.Use(recover.New())

	// Helmet middleware helps secure your apps by setting various HTTP headers.
	httpServer.Use(helmet.New())

	// Ignores favicon requests
	httpServer.Use(favicon.New())

	// Logs HTTP request/response details
	httpServer.Use(logger.New())

	httpServer.Use(cors.New())

	if cfg.FilesDir != "" {
		httpServer.Static("/files", cfg.FilesDir)
	}

	s := &Server{
		cfg:        cfg,
		httpServer: httpServer,
		htmlRender: htmlrender,
		cookies: &sessionCookies{
			issuer: cfg.URL,
			secret: []byte(cfg.SessionSecret),
			ttl:    cfg.SessionTTL,
			secure: strings.HasPrefix(cfg.URL, "https://"),
		},
		db:        deps.DB,
		sessions:  deps.Sessions,
		autofill:  deps.Autofill,
		extractor: deps.Extractor,
		composer:  deps.Composer,
		submit:    deps.Submit,
	}

	// Register the health check endpoint
	s.httpServer.Get("/health", func(c *fiber.Ctx) error {
		slog.Info("Health check", "from", c.Hostname())
		return c.JSON(fiber.Map{"status": "healthy", "hostname": c.Hostname()})
	})

	s.registerPageHandlers()
	s.registerSessionHandlers()
	if err := s.registerAdminHandlers(cfg.AdminPassword); err != nil {
		return nil, err
	}

	return s, nil
}

// Start listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {

	if s.httpServer == nil {
		return errors.New("server not initialized")
	}

	addr := net.JoinHostPort("0.0.0.0", s.cfg.Port)
	slog.Info("Starting DocGen server", "addr", addr, "url", s.cfg.URL)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Listen(addr); err != nil {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.httpServer.Shutdown()
	}

}

// errorHandler answers unhandled errors with a JSON body. Internal errors are
// logged and their detail is not sent.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}

// sessionFromCookie returns the live session bound to the request, if any.
func (s *Server) sessionFromCookie(c *fiber.Ctx) (*session.Store, bool) {
	id, err := s.cookies.parse(c.Cookies(sessionCookieName))
	if err != nil {
		return nil, false
	}
	return s.sessions.Get(id)
}

// startSession creates a session and binds it to the browser.
func (s *Server) startSession(c *fiber.Ctx) (*session.Store, error) {
	st := s.sessions.Create()
	cookie, err := s.cookies.generate(st.ID, st.DocumentID)
	if err != nil {
		s.sessions.Drop(st.ID)
		return nil, err
	}
	c.Cookie(cookie)
	return st, nil
}
