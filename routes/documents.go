package routes

import (
	"context"
	"errors"
	"net/http"

	"docindex-platform/internal/catalog"
	"docindex-platform/internal/lock"
	"docindex-platform/internal/queue"
	"docindex-platform/internal/telemetry"
	"docindex-platform/middleware"
	"docindex-platform/services"
	"docindex-platform/utils"

	"github.com/gin-gonic/gin"
)

// DocumentOperations is implemented by *services.DocumentService.
type DocumentOperations interface {
	Delete(ctx context.Context, id string) error
	Enqueue(ctx context.Context, id, operation string) (string, error)
}

func SetupDocumentRoutes(router *gin.Engine, docs DocumentOperations, guard middleware.LockChecker, metrics *telemetry.Metrics, authMiddleware *middleware.AuthMiddleware) {
	group := router.Group("/api/documents")
	group.Use(authMiddleware.RequireAuth())
	group.Use(middleware.OperatorGuard())

	group.DELETE("/:id", middleware.ReindexGuard(guard, "delete document", metrics), DeleteDocument(docs))
	group.POST("/:id/reprocess", middleware.ReindexGuard(guard, "reprocess document", metrics), EnqueueDocument(docs, queue.OpReprocess))
	group.POST("/:id/reindex", middleware.ReindexGuard(guard, "reindex document", metrics), EnqueueDocument(docs, queue.OpReindex))
}

func DeleteDocument(docs DocumentOperations) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		// The lock may be taken between the guard and the service call.
		if err := docs.Delete(ctx, id); err != nil {
			respondServiceError(c, "delete document", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted", "id": id})
	}
}

func EnqueueDocument(docs DocumentOperations, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		taskID, err := docs.Enqueue(ctx, id, operation)
		if err != nil {
			respondServiceError(c, operation+" document", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"id":        id,
			"operation": operation,
			"task_id":   taskID,
			"status":    "queued",
		})
	}
}

func respondDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrDocumentNotFound):
		utils.RespondWithNotFound(c, "Document not found")
	case errors.Is(err, services.ErrNoActiveResource):
		utils.RespondWithConflict(c, "no_active_index", "No search index has been built yet", nil)
	default:
		utils.RespondWithInternalError(c, "Document operation failed", gin.H{"error": err.Error()})
	}
}

// respondServiceError maps errors from the document service onto the API
// envelope.
func respondServiceError(c *gin.Context, operation string, err error) {
	var locked *lock.LockedError
	switch {
	case errors.As(err, &locked):
		middleware.RespondLocked(c, operation, locked.StartedAt)
	default:
		respondDocumentError(c, err)
	}
}
