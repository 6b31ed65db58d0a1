package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/scheduler"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db      *gorm.DB
	harness *scheduler.Harness
}

func NewHealthHandler(db *gorm.DB, harness *scheduler.Harness) *HealthHandler {
	return &HealthHandler{db: db, harness: harness}
}

type HealthResponse struct {
	Status   string                         `json:"status"`
	Database string                         `json:"database"`
	Jobs     map[string]scheduler.JobStatus `json:"jobs"`
	Time     string                         `json:"time"`
}

// Health godoc
// @Summary Service health
// @Description Database reachability and the state of every scheduled job
// @Tags public
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Jobs:     h.harness.Status(),
		Time:     formatTime(time.Now()),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		response.Status = "degraded"
		response.Database = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
