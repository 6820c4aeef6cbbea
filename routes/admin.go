package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"docindex-platform/internal/progress"
	"docindex-platform/internal/queue"
	"docindex-platform/internal/telemetry"
	"docindex-platform/middleware"
	"docindex-platform/models"
	"docindex-platform/services"
	"docindex-platform/utils"

	"github.com/gin-gonic/gin"
)

// ReindexStarter begins a full reindex run; *queue.Driver implements it.
type ReindexStarter interface {
	Start(ctx context.Context) (string, error)
}

type ProgressReader interface {
	Latest(ctx context.Context) (*models.ProgressSnapshot, error)
}

type RunReader interface {
	Get(ctx context.Context, runID string) (*models.ReindexRun, error)
	List(ctx context.Context, limit int64) ([]models.ReindexRun, error)
}

type AdminDeps struct {
	Guard      middleware.LockChecker
	Starter    ReindexStarter
	Progress   ProgressReader
	Runs       RunReader
	Limiter    middleware.Counter
	RateLimit  int
	RateWindow time.Duration
	Metrics    *telemetry.Metrics
}

func SetupAdminRoutes(router *gin.Engine, deps AdminDeps, authMiddleware *middleware.AuthMiddleware) {
	admin := router.Group("/api/admin/reindex")
	admin.Use(authMiddleware.RequireAuth())
	admin.Use(middleware.OperatorGuard())

	admin.POST("",
		middleware.AdminGuard(),
		middleware.RateLimitMiddleware(deps.Limiter, deps.RateLimit, deps.RateWindow),
		middleware.ReindexGuard(deps.Guard, "start reindex", deps.Metrics),
		StartReindex(deps.Starter),
	)
	admin.GET("/status", ReindexStatus(deps.Progress, deps.Guard))
	admin.GET("/lock", LockStatus(deps.Guard))
	admin.GET("/runs", ListRuns(deps.Runs))
	admin.GET("/runs/:id", GetRun(deps.Runs))
	admin.GET("/runs/:id/export", ExportRun(deps.Runs))
}

// StartReindex queues the init step of a new run and answers 202 with its id.
func StartReindex(starter ReindexStarter) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID, err := starter.Start(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to start reindex", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"run_id":  runID,
			"message": "Reindex started",
		})
	}
}

func ReindexStatus(reader ProgressReader, guard middleware.LockChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()

		st := guard.Check(ctx)
		snap, err := reader.Latest(ctx)
		if errors.Is(err, progress.ErrNoProgress) {
			c.JSON(http.StatusOK, gin.H{"lock": st, "progress": nil})
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read reindex progress", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"lock": st, "progress": snap})
	}
}

func LockStatus(guard middleware.LockChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithShortTimeout(c.Request.Context())
		defer cancel()
		c.JSON(http.StatusOK, guard.Check(ctx))
	}
}

func ListRuns(runs RunReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
		if err != nil || limit < 1 || limit > 100 {
			limit = 20
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := runs.List(ctx, limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list reindex runs", nil)
			return
		}
		if list == nil {
			list = []models.ReindexRun{}
		}
		c.JSON(http.StatusOK, gin.H{"runs": list, "count": len(list)})
	}
}

func GetRun(runs RunReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		run, err := runs.Get(ctx, c.Param("id"))
		if errors.Is(err, queue.ErrRunNotFound) {
			utils.RespondWithNotFound(c, "Reindex run not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read reindex run", nil)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// ExportRun downloads a run report as JSON or an Excel workbook.
func ExportRun(runs RunReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		format := c.DefaultQuery("format", services.ExportFormatExcel)
		if format != services.ExportFormatExcel && format != services.ExportFormatJSON {
			utils.RespondWithBadRequest(c, "Unsupported export format", gin.H{"supported": []string{services.ExportFormatExcel, services.ExportFormatJSON}})
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		run, err := runs.Get(ctx, c.Param("id"))
		if errors.Is(err, queue.ErrRunNotFound) {
			utils.RespondWithNotFound(c, "Reindex run not found")
			return
		}
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read reindex run", nil)
			return
		}

		if err := services.StreamRunReport(c, services.BuildRunReport(run, time.Now()), format); err != nil {
			utils.RespondWithInternalError(c, "Failed to export reindex run", gin.H{"error": err.Error()})
		}
	}
}
