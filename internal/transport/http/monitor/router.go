package monitorhttp

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"modelwatch/internal/orchestrator"
	"modelwatch/internal/types"
)

// Router exposes the monitoring query and retraining control endpoints.
type Router struct {
	orch *orchestrator.Orchestrator
}

// NewRouter builds the API router.
func NewRouter(orch *orchestrator.Orchestrator) *Router {
	return &Router{orch: orch}
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/model-health", r.handleModelHealth)
	group.GET("/model-alerts", r.handleModelAlerts)
	group.GET("/model/:key/calibration", r.handleCalibration)
	group.GET("/retraining-status", r.handleRetrainingStatus)
	group.POST("/retrain/:key", r.handleForceRetrain)
}

func (r *Router) handleModelHealth(c *gin.Context) {
	overview, err := r.orch.HealthOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (r *Router) handleModelAlerts(c *gin.Context) {
	overview, err := r.orch.AlertsOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (r *Router) handleCalibration(c *gin.Context) {
	key, err := types.ParseModelKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseTimeParam(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + err.Error()})
		return
	}
	end, err := parseTimeParam(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + err.Error()})
		return
	}
	report, err := r.orch.Calibration(c.Request.Context(), key, start, end)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if !report.HasData {
		// Distinguish "no qualifying data" from a calibration score of
		// zero; clients must not render this as a score.
		c.JSON(http.StatusOK, gin.H{
			"model_key":    key,
			"status":       "no_data",
			"total_trades": report.TotalTrades,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model_key": key, "status": "ok", "report": report})
}

func (r *Router) handleRetrainingStatus(c *gin.Context) {
	var keyFilter *types.ModelKey
	if raw := c.Query("model_key"); raw != "" {
		key, err := types.ParseModelKey(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		keyFilter = &key
	}
	report, err := r.orch.Status(c.Request.Context(), keyFilter)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

type forceRetrainRequest struct {
	Reason string `json:"reason"`
}

func (r *Router) handleForceRetrain(c *gin.Context) {
	key, err := types.ParseModelKey(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req forceRetrainRequest
	_ = c.ShouldBindJSON(&req)

	job, err := r.orch.ForceRetrain(c.Request.Context(), key, req.Reason)
	if err != nil {
		if errors.Is(err, orchestrator.ErrJobInProgress) ||
			errors.Is(err, orchestrator.ErrCooldown) ||
			errors.Is(err, orchestrator.ErrConcurrency) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
