// Package api exposes evaluation reports, gap reports, and a leaderboard
// over HTTP.
package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glossalab/lobench/internal/config"
)

type Server struct {
	router     *gin.Engine
	reportsDir string
	gapsDir    string
}

func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: nil config")
	}
	r := gin.New()
	s := &Server{
		router:     r,
		reportsDir: cfg.Server.ReportsDir,
		gapsDir:    cfg.Server.GapsDir,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
