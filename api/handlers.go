package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glossalab/lobench/internal/report"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type fileEntry struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

func (s *Server) handleListReports(c *gin.Context) {
	entries, err := listJSONFiles(s.reportsDir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleGetReport(c *gin.Context) {
	path, err := resolveJSONFile(s.reportsDir, c.Param("name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	rep, err := report.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(c, http.StatusNotFound, errors.New("report not found"))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (s *Server) handleListGaps(c *gin.Context) {
	entries, err := listJSONFiles(s.gapsDir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) handleGetGap(c *gin.Context) {
	path, err := resolveJSONFile(s.gapsDir, c.Param("name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	gap, err := report.ReadGapFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(c, http.StatusNotFound, errors.New("gap report not found"))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gap)
}

// listJSONFiles lists *.json files in dir, newest first. A missing directory
// reads as empty rather than an error.
func listJSONFiles(dir string) ([]fileEntry, error) {
	if strings.TrimSpace(dir) == "" {
		return []fileEntry{}, nil
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []fileEntry{}, nil
		}
		return nil, err
	}

	out := make([]fileEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileEntry{
			Name:       e.Name(),
			ModifiedAt: info.ModTime().UTC(),
			SizeBytes:  info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// resolveJSONFile maps a client-supplied name onto a file inside dir,
// rejecting anything that would escape it.
func resolveJSONFile(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name is required")
	}
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", errors.New("invalid name")
	}
	if !strings.HasSuffix(name, ".json") {
		name += ".json"
	}
	return filepath.Join(dir, name), nil
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
