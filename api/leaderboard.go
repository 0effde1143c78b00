package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/glossalab/lobench/internal/report"
)

type leaderboardEntry struct {
	Model    string  `json:"model"`
	Report   string  `json:"report"`
	Dataset  string  `json:"dataset"`
	N        int     `json:"n"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// handleGetLeaderboard ranks models by overall accuracy across stored
// reports. With ?report= set, only that report contributes; otherwise a
// model keeps its best overall accuracy across all reports.
func (s *Server) handleGetLeaderboard(c *gin.Context) {
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	var names []string
	if only := strings.TrimSpace(c.Query("report")); only != "" {
		path, err := resolveJSONFile(s.reportsDir, only)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
		names = []string{filepath.Base(path)}
	} else {
		entries, err := listJSONFiles(s.reportsDir)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
	}

	best := make(map[string]leaderboardEntry)
	for _, name := range names {
		rep, err := report.ReadFile(filepath.Join(s.reportsDir, name))
		if err != nil {
			// Skip unreadable files so one bad report does not hide the rest.
			continue
		}
		for model, mr := range rep.Models {
			entry := leaderboardEntry{
				Model:    model,
				Report:   name,
				Dataset:  rep.Dataset,
				N:        mr.Overall.N,
				Correct:  mr.Overall.Correct,
				Accuracy: mr.Overall.Accuracy,
			}
			if prev, ok := best[model]; !ok || entry.Accuracy > prev.Accuracy {
				best[model] = entry
			}
		}
	}

	out := make([]leaderboardEntry, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Accuracy != out[j].Accuracy {
			return out[i].Accuracy > out[j].Accuracy
		}
		return out[i].Model < out[j].Model
	})
	if len(out) > limit {
		out = out[:limit]
	}

	c.JSON(http.StatusOK, out)
}
