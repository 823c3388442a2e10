package mainserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evidenceledger/docgen/internal/appconfig"
	"github.com/evidenceledger/docgen/internal/autofill"
	"github.com/evidenceledger/docgen/internal/cache"
	"github.com/evidenceledger/docgen/internal/compose"
	"github.com/evidenceledger/docgen/internal/database"
	"github.com/evidenceledger/docgen/internal/docserver"
	"github.com/evidenceledger/docgen/internal/extract"
	"github.com/evidenceledger/docgen/internal/lookup"
	"github.com/evidenceledger/docgen/internal/pdf"
	"github.com/evidenceledger/docgen/internal/session"
	"github.com/evidenceledger/docgen/internal/storage"
	"github.com/evidenceledger/docgen/internal/submit"
)

// webServer runs until ctx is cancelled and returns once it has shut down.
type webServer interface {
	Start(ctx context.Context) error
}

// Server wires the services of the document generator and runs the web server.
type Server struct {
	cfg       *appconfig.Config
	docServer webServer
	db        *database.Database
	autofill  *autofill.Controller
	chrome    *pdf.Chrome
}

// New creates a new server instance.
// It creates the shared cache, the database and the services used by the web server.
func New(ctx context.Context, cfg *appconfig.Config) (*Server, error) {

	// Create a global in-memory cache with expiration time of 10 minutes.
	// It holds the form sessions and the answers of the registries.
	cache := cache.New(10 * time.Minute)

	// The database is opened when the server starts
	db := database.New(cfg.DBPath)

	lookups := lookup.New(lookup.Options{
		BaseURL:   cfg.LookupURL,
		PostalURL: cfg.PostalURL,
		RateLimit: appconfig.Duration(cfg.LookupInterval, 0),
		Cache:     cache,
		CacheTTL:  10 * time.Minute,
	})
	if cfg.LookupURL == "" {
		slog.Warn("No CPF/CNPJ registry configured, identifier lookups are disabled")
	}

	sessions := session.NewManager(cache, appconfig.Duration(cfg.SessionTTL, 2*time.Hour))
	sessions.SetDebounce(appconfig.Duration(cfg.Debounce, session.DefaultDebounce))

	af := autofill.New(lookups, db)

	// Extraction is optional: without a key the feature is silently disabled
	var gen extract.Generator
	if cfg.GeminiAPIKey != "" {
		gemini, err := extract.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("Document extraction disabled", "error", err)
		} else {
			gen = gemini
		}
	}
	extractor, err := extract.New(gen)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction prompts: %w", err)
	}

	composer, err := compose.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load document templates: %w", err)
	}

	bucket, err := storage.NewBucket(cfg.UploadsDir, "/files")
	if err != nil {
		return nil, err
	}

	chrome := pdf.NewChrome(cfg.ChromeBin, cfg.ChromeURL)

	pipeline := submit.New(submit.Options{
		Uploads:  bucket,
		Docs:     db,
		Composer: composer,
		PDF:      chrome,
		BaseURL:  cfg.URL,
		Phone:    cfg.HandoffPhone,
	})

	docServer, err := docserver.New(docserver.Deps{
		DB:        db,
		Sessions:  sessions,
		Autofill:  af,
		Extractor: extractor,
		Composer:  composer,
		Submit:    pipeline,
	}, docserver.Config{
		Development:   cfg.Development,
		Port:          cfg.Port,
		URL:           cfg.URL,
		AdminPassword: cfg.AdminPassword,
		SessionSecret: cfg.SessionSecret,
		SessionTTL:    appconfig.Duration(cfg.SessionTTL, 2*time.Hour),
		FilesDir:      bucket.Root(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create web server: %w", err)
	}

	return &Server{
		cfg:       cfg,
		docServer: docServer,
		db:        db,
		autofill:  af,
		chrome:    chrome,
	}, nil

}

// Start opens the database and runs the web server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {

	if s.db == nil {
		return errors.New("server not initialized")
	}

	// Initialize database
	if err := s.db.Initialize(s.cfg.Seed); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer s.db.Close()
	defer s.chrome.Close()

	done := make(chan error, 1)

	go func() {
		done <- s.docServer.Start(ctx)
	}()

	slog.Info("Server started",
		"port", s.cfg.Port,
		"url", s.cfg.URL,
		"development", s.cfg.Development,
		"database", s.cfg.DBPath,
		"uploads", s.cfg.UploadsDir)

	// Wait for the server to fail or context to be cancelled
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("docgen server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutting down server")
		// Handlers still in flight use the database, which is closed on return
		if err := <-done; err != nil {
			slog.Error("Web server shutdown failed", "error", err)
		}
		// Let lookups already running write their answers
		s.autofill.Wait()
		return nil
	}
}
