package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"docindex-platform/models"

	"github.com/gin-gonic/gin"
)

// AuditRecorder accepts events without blocking; *audit.Logger implements it.
type AuditRecorder interface {
	LogAsync(event *models.AuditEvent)
}

var sensitiveFields = []string{"password", "token", "secret", "key"}

// AuditMiddleware records every mutating request once it has been served.
func AuditMiddleware(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		var bodyBytes []byte
		if c.Request.Body != nil {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		c.Next()

		recorder.LogAsync(createAuditEvent(c, bodyBytes))
	}
}

func createAuditEvent(c *gin.Context, bodyBytes []byte) *models.AuditEvent {
	resource, resourceID := extractResource(c)
	return &models.AuditEvent{
		UserID:     GetUserID(c),
		Role:       GetRole(c),
		Action:     mapHTTPMethodToAction(c.Request.Method),
		Resource:   resource,
		ResourceID: resourceID,
		IPAddress:  c.ClientIP(),
		RequestID:  GetRequestID(c),
		Status:     c.Writer.Status(),
		Success:    c.Writer.Status() < 400,
		Changes:    extractChangesFromBody(bodyBytes),
	}
}

// mapHTTPMethodToAction maps HTTP methods to audit actions
func mapHTTPMethodToAction(method string) string {
	switch method {
	case "POST":
		return "CREATE"
	case "PUT", "PATCH":
		return "UPDATE"
	case "DELETE":
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// extractResource names the resource from the matched route, e.g.
// "/api/documents/:id/reprocess" gives ("documents/reprocess", <id>).
func extractResource(c *gin.Context) (string, string) {
	route := c.FullPath()
	if route == "" {
		return "unknown", ""
	}
	var parts []string
	for _, seg := range strings.Split(strings.TrimPrefix(route, "/api/"), "/") {
		if seg == "" || strings.HasPrefix(seg, ":") {
			continue
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/"), c.Param("id")
}

func extractChangesFromBody(bodyBytes []byte) map[string]interface{} {
	if len(bodyBytes) == 0 {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return map[string]interface{}{"raw_body_bytes": len(bodyBytes)}
	}

	filtered := make(map[string]interface{}, len(body))
	for key, value := range body {
		if containsSensitiveField(key) {
			filtered[key] = "[REDACTED]"
			continue
		}
		filtered[key] = value
	}
	return filtered
}

func containsSensitiveField(field string) bool {
	field = strings.ToLower(field)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(field, sensitive) {
			return true
		}
	}
	return false
}
