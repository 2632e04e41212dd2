// Package web exposes the simulation over HTTP: historical candles, the
// simulated price stream, and simulation reset, plus health probes.
package web

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/archelon/pricesim/sim"
	"github.com/archelon/pricesim/source"
)

// apiVersion is reported by the health endpoint.
const apiVersion = "0.1.0"

type Server struct {
	router   *gin.Engine
	registry *sim.Registry
	src      source.CandleSource
	log      *logrus.Entry
	started  time.Time
}

func NewServer(registry *sim.Registry, src source.CandleSource, log *logrus.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:   router,
		registry: registry,
		src:      src,
		log:      log.WithField("component", "web"),
		started:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)
	s.router.GET("/ready", s.ready)

	md := s.router.Group("/market")
	{
		md.GET("/candles", s.getCandles)
		md.GET("/price", s.getPrice)
		md.POST("/reset-simulation", s.resetSimulation)
	}
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("http server listening")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    apiVersion,
		"go_version": runtime.Version(),
	})
}

func (s *Server) ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}
