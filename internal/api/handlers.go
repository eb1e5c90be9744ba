package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"expiry-notifier/internal/config"
	"expiry-notifier/internal/db"
	"expiry-notifier/internal/expiry"
	"expiry-notifier/internal/logging"
	"expiry-notifier/internal/models"
	"expiry-notifier/internal/notification"
	"expiry-notifier/internal/sheet"
)

// Runner starts notification passes.
type Runner interface {
	Run(ctx context.Context, today time.Time, opts notification.Options) (notification.Report, error)
	Today() time.Time
}

// AuditStore lists recorded send attempts.
type AuditStore interface {
	ListAudit(ctx context.Context, f db.AuditFilter) ([]models.AuditEntry, error)
}

type Handler struct {
	runner Runner
	audit  AuditStore
	hub    *Hub
	logger *logging.Logger
}

// NewHandler returns a Handler. audit may be nil when no database is
// configured.
func NewHandler(runner Runner, audit AuditStore, hub *Hub, logger *logging.Logger) *Handler {
	return &Handler{runner: runner, audit: audit, hub: hub, logger: logger}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TriggerRun runs a pass now. ?force=true ignores the run guard and
// ?date=YYYY-MM-DD overrides today.
func (h *Handler) TriggerRun(c *gin.Context) {
	today, ok := h.day(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))

	// a pass must not stop half way because the caller hung up
	ctx := context.WithoutCancel(c.Request.Context())
	rep, err := h.runner.Run(ctx, today, notification.Options{Force: force, Trigger: "http"})
	if err != nil {
		h.respondRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Preview renders the digests a pass would send, without side effects.
func (h *Handler) Preview(c *gin.Context) {
	today, ok := h.day(c)
	if !ok {
		return
	}
	rep, err := h.runner.Run(c.Request.Context(), today, notification.Options{DryRun: true, Trigger: "preview"})
	if err != nil {
		h.respondRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) ListAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audit store not configured"})
		return
	}
	limit := 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	entries, err := h.audit.ListAudit(c.Request.Context(), db.AuditFilter{
		DocumentID: c.Query("document_id"),
		Status:     models.DispatchStatus(c.Query("status")),
		Limit:      limit,
	})
	if err != nil {
		h.logger.Errorf("Failed to list audit entries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit entries"})
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Event stream upgrade failed: %v", err)
		return
	}
	h.hub.serve(conn)
}

func (h *Handler) day(c *gin.Context) (time.Time, bool) {
	today := h.runner.Today()
	s := c.Query("date")
	if s == "" {
		return today, true
	}
	d, err := time.ParseInLocation(expiry.DayLayout, s, today.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

func (h *Handler) respondRunError(c *gin.Context, err error) {
	if errors.Is(err, config.ErrMissingConfig) || errors.Is(err, sheet.ErrMissingColumn) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.logger.Errorf("Run failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
