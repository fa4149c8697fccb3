package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidTransactionType),
		errors.Is(err, models.ErrMissingExpiry),
		errors.Is(err, models.ErrInvalidProduct),
		errors.Is(err, models.ErrInvalidSupplier):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnknownProduct),
		errors.Is(err, models.ErrUnknownBatch),
		errors.Is(err, models.ErrDraftNotFound),
		errors.Is(err, models.ErrModelNotTrained),
		errors.Is(err, models.ErrSupplierNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrInvalidDraftTransition),
		errors.Is(err, models.ErrDuplicateDraft):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var short *models.InsufficientStockError
	if errors.As(err, &short) {
		body["available"] = short.Available
		body["requested"] = short.Requested
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Debug("invalid request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
