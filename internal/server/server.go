// Package server exposes the federated read operations over HTTP.
//
// Every response uses the envelope
//
//	{"status": "ok", "data": ...}
//	{"status": "error", "error": {"code": "NOT_FOUND", "message": "..."}}
//
// and /metrics serves the Prometheus registry the server was given.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/query"
)

const shutdownTimeout = 5 * time.Second

// Server serves the read API of one federation.
type Server struct {
	query    *query.Engine
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer sets the registry /metrics serves.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New creates a server over q.
func New(q *query.Engine, opts ...Option) *Server {
	s := &Server{
		query:    q,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Response is the JSON envelope of every endpoint.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed request.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	r.GET("/constructs/:id", s.getConstruct)
	r.GET("/types/:type", s.listType)

	r.GET("/categories/:id/objects", s.related(construct.TypeCategory, s.query.ObjectsInCategory))
	r.GET("/categories/:id/morphisms", s.related(construct.TypeCategory, s.query.MorphismsInCategory))
	r.GET("/categories/:id/functors/from", s.related(construct.TypeCategory, s.query.FunctorsFrom))
	r.GET("/categories/:id/functors/to", s.related(construct.TypeCategory, s.query.FunctorsTo))

	r.GET("/objects/:id/morphisms/from", s.related(construct.TypeObject, s.query.MorphismsFrom))
	r.GET("/objects/:id/morphisms/to", s.related(construct.TypeObject, s.query.MorphismsTo))

	r.GET("/functors/:id/mappings/objects", s.related(construct.TypeFunctor, s.query.ObjectMappings))
	r.GET("/functors/:id/mappings/morphisms", s.related(construct.TypeFunctor, s.query.MorphismMappings))

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Status: "ok", Data: gin.H{"stores": s.query.Federation().IDs()}})
}

func (s *Server) getConstruct(c *gin.Context) {
	id := c.Param("id")
	found, err := s.query.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if found == nil {
		s.fail(c, construct.NewNotFoundError("", id))
		return
	}
	ok(c, found)
}

func (s *Server) listType(c *gin.Context) {
	t, valid := construct.ParseType(c.Param("type"))
	if !valid {
		c.JSON(http.StatusBadRequest, Response{
			Status: "error",
			Error:  &ResponseError{Code: "BAD_REQUEST", Message: "unknown construct type " + c.Param("type")},
		})
		return
	}
	cs, err := s.query.List(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, cs)
}

// related serves an operator keyed on the :id construct, which must exist
// and be of owner type.
func (s *Server) related(owner construct.Type, op func(context.Context, string) ([]*construct.Construct, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")
		found, err := s.query.Get(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		if found == nil || found.Type != owner {
			s.fail(c, construct.NewNotFoundError(owner, id))
			return
		}
		cs, err := op(ctx, id)
		if err != nil {
			s.fail(c, err)
			return
		}
		ok(c, cs)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Status: "ok", Data: data})
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var cerr *construct.Error
	if errors.As(err, &cerr) {
		code = string(cerr.Code)
		switch cerr.Code {
		case construct.ErrCodeNotFound:
			status = http.StatusNotFound
		case construct.ErrCodeNotAttached:
			status = http.StatusBadRequest
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, Response{
		Status: "error",
		Error:  &ResponseError{Code: code, Message: err.Error()},
	})
}
