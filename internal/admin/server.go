package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recepoksuz/nft-transferd/internal/domain/model"
	"github.com/recepoksuz/nft-transferd/internal/orchestrator"
	signerrpc "github.com/recepoksuz/nft-transferd/internal/signer/rpc"
)

const (
	maxRequestBodyBytes  = 1 << 20 // 1 MB
	defaultMaxBatchUnits = 500
	signerProbeTimeout   = 2 * time.Second
)

// BatchDriver is the orchestrator surface the admin API drives. Satisfied by
// *orchestrator.Orchestrator; tests provide a mock.
type BatchDriver interface {
	StartTransfer(ctx context.Context, unitIDs []string, params model.SessionParams) (uuid.UUID, error)
	Retry(ctx context.Context) error
	Skip(ctx context.Context) error
	Reset(ctx context.Context) error
	Snapshot() model.BatchSnapshot
}

// SignerProbe reads the wallet bridge's signing state for the health surface.
// Satisfied by *signerrpc.Client; nil disables the probe.
type SignerProbe interface {
	GetStatus(ctx context.Context) (*signerrpc.Status, error)
}

// Server provides an HTTP-based admin API for operating transfer batches.
type Server struct {
	driver   BatchDriver
	probe    SignerProbe
	network  model.Network
	maxUnits int
	logger   *slog.Logger
	started  time.Time
}

func NewServer(driver BatchDriver, probe SignerProbe, network model.Network, maxUnits int, logger *slog.Logger) *Server {
	if maxUnits <= 0 {
		maxUnits = defaultMaxBatchUnits
	}
	return &Server{
		driver:   driver,
		probe:    probe,
		network:  network,
		maxUnits: maxUnits,
		logger:   logger.With("component", "admin"),
		started:  time.Now(),
	}
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/v1/transfers/start", s.handleStart)
	mux.HandleFunc("POST /admin/v1/transfers/retry", s.handleRetry)
	mux.HandleFunc("POST /admin/v1/transfers/skip", s.handleSkip)
	mux.HandleFunc("POST /admin/v1/transfers/reset", s.handleReset)
	mux.HandleFunc("GET /admin/v1/transfers/status", s.handleStatus)
	mux.HandleFunc("GET /admin/v1/transfers/records", s.handleRecords)
	mux.HandleFunc("GET /admin/v1/health", s.handleHealth)
	return mux
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

type startRequest struct {
	UnitIDs         []string `json:"unit_ids"`
	ContractAddress string   `json:"contract_address"`
	Recipient       string   `json:"recipient"`
	Sender          string   `json:"sender"`
}

func (req *startRequest) validate(maxUnits int) string {
	if len(req.UnitIDs) == 0 {
		return "unit_ids is required"
	}
	if len(req.UnitIDs) > maxUnits {
		return fmt.Sprintf("too many units in one batch (max %d)", maxUnits)
	}
	seen := make(map[string]struct{}, len(req.UnitIDs))
	for _, id := range req.UnitIDs {
		if strings.TrimSpace(id) == "" {
			return "unit_ids must not contain empty entries"
		}
		if _, dup := seen[id]; dup {
			return "unit_ids must not contain duplicates"
		}
		seen[id] = struct{}{}
	}
	if !isHexAddress(req.ContractAddress) {
		return "contract_address must be a 0x-prefixed address"
	}
	if !isHexAddress(req.Recipient) {
		return "recipient must be a 0x-prefixed address"
	}
	if !isHexAddress(req.Sender) {
		return "sender must be a 0x-prefixed address"
	}
	return ""
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if msg := req.validate(s.maxUnits); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	sessionID, err := s.driver.StartTransfer(r.Context(), req.UnitIDs, model.SessionParams{
		ContractAddress: req.ContractAddress,
		Recipient:       req.Recipient,
		Sender:          req.Sender,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrBatchActive) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("start transfer failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("batch start accepted",
		"session_id", sessionID,
		"units", len(req.UnitIDs),
		"remote_addr", r.RemoteAddr,
	)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sessionID,
		"total":      len(req.UnitIDs),
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.driver.Retry(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	if err := s.driver.Skip(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.driver.Reset(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.driver.Snapshot())
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	snap := s.driver.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": snap.SessionID,
		"total":      snap.TotalCount,
		"records":    snap.Records,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.driver.Snapshot()
	resp := map[string]any{
		"status":         "ok",
		"network":        s.network,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"phase":          snap.Phase,
		"active_session": snap.SessionID != uuid.Nil,
	}

	// Best effort: an unreachable bridge degrades the report, not the
	// endpoint.
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), signerProbeTimeout)
		defer cancel()
		if st, err := s.probe.GetStatus(ctx); err != nil {
			resp["signer"] = map[string]any{"reachable": false, "error": err.Error()}
		} else {
			resp["signer"] = map[string]any{
				"reachable":          true,
				"awaiting_signature": st.AwaitingSignature,
				"tx_hash":            st.TxHash,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
