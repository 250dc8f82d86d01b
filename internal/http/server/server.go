// Package server wires the local control API: window status, player logs,
// remote-control keys, quality pinning and configuration reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edirooss/camwall/internal/http/handler"
	mw "github.com/edirooss/camwall/internal/http/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	maxConcurrent   = 16
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	Addr string
	// CORSOrigins enables CORS for the listed origins (a dashboard served
	// from elsewhere). Empty disables CORS.
	CORSOrigins []string
	Dev         bool

	Controller handler.Controller
	Logs       handler.LogSource
	Reload     handler.ReloadFunc // nil when the configuration cannot be reloaded
}

// NewRouter builds the gin engine with middlewares and routes.
func NewRouter(log *zap.Logger, opts Options) *gin.Engine {
	if !opts.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer()
	r := gin.New()

	r.Use(gin.Recovery()) // outermost
	r.Use(mw.RequestID())
	r.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		IsDevelopment:      opts.Dev,
	}))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  opts.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
			ExposeHeaders: []string{"X-Request-ID", "X-Total-Count"},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(mw.AccessLog(log.Named("access")))
	r.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	})

	sys := handler.NewSystemHandler(log, opts.Reload)
	wins := handler.NewWindowsHandler(log, opts.Controller, opts.Logs)

	api := r.Group("/api")
	api.GET("/ping", sys.Ping)

	requireValidID := mw.RequireValidWindowID()
	api.GET("/windows", wins.GetWindowList)
	api.GET("/windows/:id", requireValidID, wins.GetWindow)
	api.GET("/windows/:id/logs", requireValidID, wins.GetWindowLogs)

	control := api.Group("", mw.LimitConcurrentRequests(maxConcurrent))
	control.POST("/windows/:id/quality", requireValidID, wins.SetQuality)
	control.POST("/keys/:key", wins.PressKey)
	control.POST("/reload", sys.Reload)

	return r
}

// Server runs the control API until its context ends.
type Server struct {
	log *zap.Logger
	srv *http.Server
}

func New(log *zap.Logger, opts Options) *Server {
	log = log.Named("http")
	return &Server{
		log: log,
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(log, opts),
			ReadHeaderTimeout: 2 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("running HTTP server", zap.String("addr", s.srv.Addr))
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("server closed")
	return nil
}
