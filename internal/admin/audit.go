package admin

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxAuditBodyBytes = 1024 // 1KB summary limit

// generateRequestID creates a short random request ID for audit correlation.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// summarizeBody renders a log-safe view of a mutating request body. Start
// requests can carry hundreds of unit IDs, so they are reduced to the fields
// an auditor needs; anything else is logged raw, truncated at 1KB.
func summarizeBody(path string, body []byte) string {
	if strings.HasSuffix(path, "/transfers/start") {
		var req startRequest
		if err := json.Unmarshal(body, &req); err == nil {
			return fmt.Sprintf("units=%d contract=%s recipient=%s sender=%s",
				len(req.UnitIDs), req.ContractAddress, req.Recipient, req.Sender)
		}
	}
	if len(body) > maxAuditBodyBytes {
		return string(body[:maxAuditBodyBytes]) + "...(truncated)"
	}
	return string(body)
}

// AuditMiddleware logs every mutating request. The admin API drives signing
// sessions that move real assets, so each start/retry/skip/reset is recorded
// with who sent it and what the server answered.
func AuditMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	auditLogger := logger.With("component", "admin_audit")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		requestID := generateRequestID()

		// Extract authenticated user if Basic Auth is used.
		user, _, _ := r.BasicAuth()

		var bodySummary string
		if r.Body != nil {
			bodyBytes, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
			if err == nil {
				bodySummary = summarizeBody(r.URL.Path, bodyBytes)
				// Restore body for downstream handlers
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}
		}

		sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sw, r)

		auditLogger.Info("admin API audit",
			"request_id", requestID,
			"timestamp", start.UTC().Format(time.RFC3339),
			"user", user,
			"remote_addr", r.RemoteAddr,
			"method", r.Method,
			"path", r.URL.Path,
			"body_summary", bodySummary,
			"response_status", sw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.statusCode = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.written {
		sw.written = true
	}
	return sw.ResponseWriter.Write(b)
}
