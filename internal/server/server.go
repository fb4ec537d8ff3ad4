package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sourcefinder/config"
	"sourcefinder/internal/retrieval"
	"sourcefinder/internal/session"
	"sourcefinder/internal/source"
	"sourcefinder/internal/source/academic"
	"sourcefinder/internal/source/news"
	"sourcefinder/internal/source/reddit"
	"sourcefinder/internal/source/twitter"
	"sourcefinder/internal/source/web"
	"sourcefinder/internal/telemetry"
	"sourcefinder/models"
	"sourcefinder/provider"
)

const serviceName = "sourcefinder"

// Server wires the retrieval pipeline, session store and LLM provider behind
// the HTTP API.
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	sessions session.Store
	llm      provider.Provider
	orch     *retrieval.Orchestrator
	tele     *telemetry.Telemetry
	janitor  *session.Janitor
	logger   *log.Logger
}

// New assembles the server from configuration: source adapters from
// credentials, the configured session store, the LLM provider and the
// metrics registry.
func New(cfg *config.Config) (*Server, error) {
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewStore(cfg.Sessions, cfg.Storage.Redis)
	if err != nil {
		return nil, err
	}

	var tele *telemetry.Telemetry
	registry := prometheus.NewRegistry()
	if cfg.Telemetry.Enabled {
		tele = telemetry.New(registry)
	}

	orch := retrieval.NewOrchestrator(buildRegistry(cfg.Sources), cfg.Retrieval.AdapterTimeout, tele)

	janitor, err := session.NewJanitor(sessions, cfg.Sessions.SweepCron, cfg.Sessions.Retention)
	if err != nil {
		return nil, fmt.Errorf("invalid sessions.sweep_cron: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		sessions: sessions,
		llm:      llm,
		orch:     orch,
		tele:     tele,
		janitor:  janitor,
		logger:   log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
	s.echo = s.buildEcho(registry)
	return s, nil
}

func (s *Server) buildEcho(registry *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": serviceName,
			"message": "SourceFinder API is running",
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
	if s.cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.POST("/process-query", s.handleProcessQuery)
	api.GET("/sources", s.handleSources)
	api.GET("/chats", s.handleListChats)
	api.POST("/chats", s.handleRefreshChats)
	api.GET("/current-session", s.handleCurrentSession)

	return e
}

// buildRegistry wires one adapter per source whose credentials are present.
// arXiv and Reddit need no credential and are always on.
func buildRegistry(cfg config.SourcesConfig) source.Registry {
	registry := source.Registry{
		models.KindReddit:   reddit.New(cfg.Reddit),
		models.KindAcademic: academic.New(cfg.Academic),
	}
	if cfg.Twitter.BearerToken != "" {
		registry[models.KindTwitter] = twitter.New(cfg.Twitter)
	}
	if cfg.Web.SerperAPIKey != "" {
		registry[models.KindWeb] = web.New(cfg.Web)
	}
	if cfg.News.APIKey != "" {
		registry[models.KindNews] = news.New(cfg.News)
	}
	return registry
}

// Run starts the retention janitor and serves until the listener fails.
func (s *Server) Run() error {
	s.janitor.Start()
	defer s.janitor.Stop()
	s.logger.Printf("listening on %s", s.cfg.Server.Address)
	return s.echo.Start(s.cfg.Server.Address)
}

// Shutdown stops the HTTP listener and closes the session store.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	if cerr := s.sessions.Close(); err == nil {
		err = cerr
	}
	return err
}
