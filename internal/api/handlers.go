package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"vitals-service/internal/ingest"
	"vitals-service/internal/logging"
	"vitals-service/internal/models"
)

// ReadingStore exposes the reading queries the API serves.
type ReadingStore interface {
	GetLatestReading(ctx context.Context, userID int64) (*models.Reading, error)
	GetReadingHistory(ctx context.Context, userID int64, days, limit, offset int) ([]models.Reading, int, error)
}

// AlertStore exposes the alert queries and acknowledgment. AcknowledgeAlert
// returns a nil alert when the id does not exist.
type AlertStore interface {
	GetAlertsByUserID(ctx context.Context, userID int64, ackFilter string, limit int) ([]models.Alert, error)
	AcknowledgeAlert(ctx context.Context, alertID int64) (*models.Alert, error)
	CountActiveAlerts(ctx context.Context) (int, error)
}

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	ingest   *ingest.Service
	readings ReadingStore
	alerts   AlertStore
	pinger   Pinger
	logger   *logging.Logger
}

func NewHandler(svc *ingest.Service, readings ReadingStore, alerts AlertStore, pinger Pinger, logger *logging.Logger) *Handler {
	return &Handler{ingest: svc, readings: readings, alerts: alerts, pinger: pinger, logger: logger}
}

// SubmitReading handles POST /medical-data.
func (h *Handler) SubmitReading(c *gin.Context) {
	var sub ingest.ReadingSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		h.logger.Errorf("Invalid reading payload: %v", err)
		respondError(c, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}

	res, err := h.ingest.SubmitSingle(c.Request.Context(), sub)
	if err != nil {
		h.ingestError(c, err)
		return
	}
	respond(c, http.StatusCreated, res, "Medical data received successfully")
}

// SubmitBatch handles POST /medical-data/batch.
func (h *Handler) SubmitBatch(c *gin.Context) {
	var batch ingest.BatchSubmission
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.logger.Errorf("Invalid batch payload: %v", err)
		respondError(c, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return
	}

	res, err := h.ingest.SubmitBatch(c.Request.Context(), batch)
	if err != nil {
		h.ingestError(c, err)
		return
	}
	respond(c, http.StatusCreated, res, "Batch upload processed")
}

// GetLatestReading handles GET /medical-data/latest.
func (h *Handler) GetLatestReading(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}

	r, err := h.readings.GetLatestReading(c.Request.Context(), userID)
	if err != nil {
		h.logger.Errorf("Get latest reading for user %d failed: %v", userID, err)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to get latest reading")
		return
	}
	if r == nil {
		respondError(c, http.StatusNotFound, CodeNotFound, "No readings found")
		return
	}
	respond(c, http.StatusOK, r, "")
}

// GetReadingHistory handles GET /medical-data/history.
func (h *Handler) GetReadingHistory(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	days := queryInt(c, "days", 7)
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)
	if limit > 500 {
		limit = 500
	}

	list, total, err := h.readings.GetReadingHistory(c.Request.Context(), userID, days, limit, offset)
	if err != nil {
		h.logger.Errorf("Get reading history for user %d failed: %v", userID, err)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to get reading history")
		return
	}
	respond(c, http.StatusOK, gin.H{"readings": list, "total": total}, "")
}

// GetAlerts handles GET /alerts.
func (h *Handler) GetAlerts(c *gin.Context) {
	userID, ok := queryUserID(c)
	if !ok {
		return
	}
	ackFilter := c.DefaultQuery("acknowledged", "all")
	if ackFilter != "all" && ackFilter != "true" && ackFilter != "false" {
		respondError(c, http.StatusBadRequest, CodeValidationError, "acknowledged must be all, true or false")
		return
	}
	limit := queryInt(c, "limit", 50)

	list, err := h.alerts.GetAlertsByUserID(c.Request.Context(), userID, ackFilter, limit)
	if err != nil {
		h.logger.Errorf("Get alerts for user %d failed: %v", userID, err)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to get alerts")
		return
	}
	respond(c, http.StatusOK, gin.H{"alerts": list, "count": len(list)}, "")
}

// AcknowledgeAlert handles POST /alerts/:id/acknowledge.
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, CodeValidationError, "Invalid alert id")
		return
	}

	alert, err := h.alerts.AcknowledgeAlert(c.Request.Context(), id)
	if err != nil {
		h.logger.Errorf("Acknowledge alert %d failed: %v", id, err)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Failed to acknowledge alert")
		return
	}
	if alert == nil {
		respondError(c, http.StatusNotFound, CodeNotFound, "Alert not found")
		return
	}
	respond(c, http.StatusOK, alert, "Alert acknowledged")
}

// Health handles GET /health. The device agent also uses it as its
// connectivity probe.
func (h *Handler) Health(c *gin.Context) {
	dbStatus := "connected"
	if err := h.pinger.Ping(c.Request.Context()); err != nil {
		dbStatus = "disconnected"
	}
	active, _ := h.alerts.CountActiveAlerts(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"database":      dbStatus,
		"active_alerts": active,
	})
}

func (h *Handler) ingestError(c *gin.Context, err error) {
	var verr *ingest.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, CodeValidationError, verr.Error())
	case errors.Is(err, ingest.ErrUserNotFound):
		respondError(c, http.StatusNotFound, CodeNotFound, "User not found")
	default:
		h.logger.Errorf("Ingest failed: %v", err)
		respondError(c, http.StatusInternalServerError, CodeInternalError, "Internal server error")
	}
}

func queryUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, http.StatusBadRequest, CodeValidationError, "user_id is required")
		return 0, false
	}
	return userID, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if n, err := strconv.Atoi(c.Query(key)); err == nil && n >= 0 {
		return n
	}
	return def
}
