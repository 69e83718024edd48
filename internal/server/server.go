package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/guiyumin/streamdl/internal/core/i18n"
	"github.com/guiyumin/streamdl/internal/core/version"
	"github.com/guiyumin/streamdl/internal/dispatch"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Response is the standard API response structure
type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// Server is the HTTP front-end of streamdl
type Server struct {
	port       int
	apiKey     string
	cfg        *config.Config
	lib        dispatch.Library
	dispatcher *dispatch.Dispatcher
	t          *i18n.Translations
	server     *http.Server
	engine     *gin.Engine
	log        *logrus.Entry
}

// NewServer creates a new HTTP server backed by lib
func NewServer(cfg *config.Config, lib dispatch.Library) *Server {
	return &Server{
		port:       cfg.Server.Port,
		apiKey:     cfg.Server.APIKey,
		cfg:        cfg,
		lib:        lib,
		dispatcher: dispatch.New(lib, cfg, "/"),
		t:          i18n.GetTranslations(cfg.Language),
		log:        logrus.WithField("component", "server"),
	}
}

// Handler returns the routed gin engine, building it on first use
func (s *Server) Handler() http.Handler {
	if s.engine == nil {
		s.engine = s.newEngine()
	}
	return s.engine
}

func (s *Server) newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.tmpl")))

	engine.Use(gin.Recovery())
	engine.Use(s.loggingMiddleware())
	engine.Use(s.errorBoundary())
	if s.apiKey != "" {
		engine.Use(s.jwtAuthMiddleware())
	}

	engine.GET("/", s.handleIndex)
	downloadMethods := []string{http.MethodGet, http.MethodPost, http.MethodHead}
	engine.Match(downloadMethods, "/download", s.handleDownload)
	engine.Match(downloadMethods, "/redirect", s.handleDownload)

	api := engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/auth/status", s.handleAuthStatus)
	api.POST("/auth/token", s.handleGenerateToken)
	api.GET("/info", s.handleInfo)

	return engine
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if !config.Exists() {
		s.log.Warn(s.t.Server.NoConfigWarning)
		s.log.Warn(s.t.Server.RunInitHint)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams can run for as long as the conversion does
		IdleTimeout:  120 * time.Second,
	}

	s.log.WithFields(logrus.Fields{
		"port":    s.port,
		"stream":  s.cfg.Stream,
		"convert": s.cfg.Convert.Enabled,
		"remux":   s.cfg.Remux,
	}).Info("starting streamdl server")
	if s.apiKey != "" {
		s.log.Info("API key authentication enabled")
	}

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Middleware

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)

		c.Next()

		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"bytes":      c.Writer.Size(),
			"latency":    time.Since(start).String(),
		}).Info("request")
	}
}

// errorBoundary renders errors attached with c.Error. Nothing is rendered
// once the response has started.
func (s *Server) errorBoundary() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		s.log.WithError(err).WithField("request_id", c.GetString("request_id")).Error("request failed")
		if c.Writer.Written() {
			return
		}

		status, message := s.errorStatus(err)
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(status, Response{Code: status, Data: nil, Message: message})
			return
		}
		s.displayError(c, status, message)
	}
}

func (s *Server) errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, dispatch.ErrInvalidCustomFormat):
		return http.StatusBadRequest, s.t.Errors.InvalidCustomFormat
	case errors.Is(err, dispatch.ErrInvalidBitrate), errors.Is(err, dispatch.ErrInvalidSeek):
		return http.StatusBadRequest, s.t.Errors.InvalidRequest
	default:
		return http.StatusInternalServerError, s.t.Errors.Generic
	}
}

func (s *Server) displayError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.tmpl", gin.H{
		"Title":   s.t.UI.ErrorTitle,
		"T":       s.t.UI,
		"Message": message,
	})
}

// Handlers

func (s *Server) handleIndex(c *gin.Context) {
	s.setSessionCookie(c)
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"Title":    s.t.UI.Title,
		"T":        s.t.UI,
		"Convert":  s.cfg.Convert.Enabled,
		"Seek":     s.cfg.Convert.Enabled && s.cfg.Convert.Seek,
		"Advanced": s.cfg.Convert.Advanced,
		"Formats":  s.cfg.Convert.AdvancedFormats,
		"Bitrate":  s.cfg.Convert.AudioBitrate,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"status":  "ok",
			"version": version.Version,
		},
		Message: "everything is good",
	})
}
