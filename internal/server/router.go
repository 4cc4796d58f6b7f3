// Package server exposes the optional, read-only telemetry endpoints:
//
//	GET {basePath}/status   supervisor snapshot as JSON
//	GET {basePath}/metrics  Prometheus metrics
//
// It is off unless a listen address is configured.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keeprun/keeprun/internal/metrics"
	"github.com/keeprun/keeprun/internal/supervisor"
)

// StatusSource yields the current supervisor snapshot.
type StatusSource interface {
	Status() supervisor.Status
}

type Router struct {
	src      StatusSource
	basePath string
}

// NewRouter constructs a Router. basePath may be empty or start with '/';
// no trailing slash.
func NewRouter(src StatusSource, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.src.Status())
}

// NewServer starts a standalone telemetry server on addr using this router.
// Call Close on the returned server to shut it down.
func NewServer(addr, basePath string, src StatusSource) (*http.Server, error) {
	router := NewRouter(src, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv, nil
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
