package httpapi

import (
	"net/http"
	"strconv"

	"example.com/sketch-mvp/internal/archive"
	"example.com/sketch-mvp/internal/logging"
	"github.com/gin-gonic/gin"
)

const (
	defaultRecentGames = 20
	maxRecentGames     = 100
)

type GameArchive interface {
	Recent(limit int) ([]archive.Record, error)
}

// GamesHandler lists finished games. A nil Archive lists nothing.
type GamesHandler struct {
	Archive GameArchive
}

func (h *GamesHandler) Recent(c *gin.Context) {
	limit := defaultRecentGames
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "bad_request", "limit must be a positive number")
			return
		}
		limit = min(n, maxRecentGames)
	}
	if h.Archive == nil {
		c.JSON(http.StatusOK, []archive.Record{})
		return
	}

	recs, err := h.Archive.Recent(limit)
	if err != nil {
		logging.FromContext(c.Request.Context()).Errorw("read archive failed", "error", err)
		writeError(c, http.StatusInternalServerError, "internal", "failed to read archive")
		return
	}
	if recs == nil {
		recs = []archive.Record{}
	}
	c.JSON(http.StatusOK, recs)
}
