package httpapi

import (
	"errors"
	"net/http"

	"example.com/sketch-mvp/internal/game"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: msg})
}

// writeGameError maps coordinator errors to HTTP statuses.
func writeGameError(c *gin.Context, err error) {
	code := game.ErrorCode(err)
	switch {
	case errors.Is(err, game.ErrValidation):
		writeError(c, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, game.ErrStaleState):
		writeError(c, http.StatusConflict, code, err.Error())
	case errors.Is(err, game.ErrForbidden):
		writeError(c, http.StatusForbidden, code, err.Error())
	case errors.Is(err, game.ErrNotFound):
		writeError(c, http.StatusNotFound, code, err.Error())
	default:
		// store failures are logged by the coordinator
		writeError(c, http.StatusInternalServerError, code, "internal error")
	}
}
