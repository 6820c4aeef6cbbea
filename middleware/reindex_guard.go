package middleware

import (
	"context"
	"time"

	"docindex-platform/internal/telemetry"
	"docindex-platform/models"
	"docindex-platform/utils"

	"github.com/gin-gonic/gin"
)

// LockChecker reports the reindex lock; *lock.Guard implements it.
type LockChecker interface {
	Check(ctx context.Context) models.LockState
}

// ReindexGuard refuses the route with 409 while a full reindex runs.
func ReindexGuard(guard LockChecker, operation string, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := guard.Check(c.Request.Context())
		if st.Degraded {
			c.Header("X-Reindex-Lock", "unknown")
		}
		if !st.Locked {
			c.Next()
			return
		}

		metrics.RecordLockRefusal(c.Request.Context(), operation)
		RespondLocked(c, operation, st.StartedAt)
		c.Abort()
	}
}

// RespondLocked writes the 409 body shared by the guard and handlers that
// meet a lock error later on.
func RespondLocked(c *gin.Context, operation string, startedAt time.Time) {
	utils.RespondWithConflict(c, "reindex_in_progress",
		"A full reindex is in progress; try again when it completes",
		gin.H{
			"operation": operation,
			"startedAt": startedAt.UTC().Format(time.RFC3339),
		})
}
