package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vedsirdeshmukh/meta-are-sub001/pkg/store"
)

// writeStoreError maps store-layer errors to HTTP error responses.
func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run not found"})
	case errors.Is(err, store.ErrNoJudgment):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no judgment recorded for run"})
	case errors.Is(err, store.ErrMissingScenario):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "scenario is required"})
	case errors.Is(err, store.ErrInvalidRunStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid run status"})
	default:
		slog.Error("unexpected store error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
