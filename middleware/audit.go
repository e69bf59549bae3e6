package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"clicksprout/internal/logger"

	"github.com/gin-gonic/gin"
)

const auditBodyLimit = 64 << 10

var sensitiveFields = []string{"password", "token", "secret", "key"}

// AuditEvent describes one state-changing request
type AuditEvent struct {
	RequestID string
	Operator  string
	Action    string
	Resource  string
	Path      string
	Status    int
	Duration  time.Duration
	Changes   map[string]interface{}
}

// AuditMiddleware writes an audit log line for every state-changing request
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodOptions || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		start := time.Now()

		var bodyBytes []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, auditBodyLimit))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(bodyBytes), c.Request.Body))
		}

		c.Next()

		event := createAuditEvent(c, bodyBytes, start)
		attrs := []any{
			"request_id", event.RequestID,
			"operator", event.Operator,
			"action", event.Action,
			"resource", event.Resource,
			"path", event.Path,
			"status", event.Status,
			"duration_ms", event.Duration.Milliseconds(),
		}
		if len(event.Changes) > 0 {
			attrs = append(attrs, "changes", event.Changes)
		}
		if event.Status >= 400 {
			logger.Warn("Audit: request rejected", attrs...)
			return
		}
		logger.Info("Audit: request applied", attrs...)
	}
}

func createAuditEvent(c *gin.Context, bodyBytes []byte, start time.Time) AuditEvent {
	operator := GetOperator(c)
	if operator == "" {
		operator = "anonymous"
	}
	return AuditEvent{
		RequestID: GetRequestID(c),
		Operator:  operator,
		Action:    auditAction(c),
		Resource:  resourceFromPath(c.Request.URL.Path),
		Path:      c.Request.URL.Path,
		Status:    c.Writer.Status(),
		Duration:  time.Since(start),
		Changes:   extractChangesFromBody(bodyBytes),
	}
}

// auditAction prefers the explicit action parameter the engine routes use
func auditAction(c *gin.Context) string {
	if action := c.Query("action"); action != "" {
		return action
	}
	switch c.Request.Method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return strings.ToLower(c.Request.Method)
}

func resourceFromPath(path string) string {
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			return part
		}
	}
	return "root"
}

func extractChangesFromBody(bodyBytes []byte) map[string]interface{} {
	if len(bodyBytes) == 0 {
		return nil
	}
	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil
	}
	for key := range body {
		if isSensitiveField(key) {
			body[key] = "[REDACTED]"
		}
	}
	return body
}

func isSensitiveField(field string) bool {
	field = strings.ToLower(field)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(field, sensitive) {
			return true
		}
	}
	return false
}
