package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("LOBENCH_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("LOBENCH_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set LOBENCH_API_KEY or set LOBENCH_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/reports", s.handleListReports)
	api.GET("/reports/:name", s.handleGetReport)

	api.GET("/gaps", s.handleListGaps)
	api.GET("/gaps/:name", s.handleGetGap)

	api.GET("/leaderboard", s.handleGetLeaderboard)

	return nil
}
